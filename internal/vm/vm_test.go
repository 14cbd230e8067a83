package vm

import (
	"testing"

	"rpi64kernel/internal/allocator"
	"rpi64kernel/internal/kconfig"
)

func TestDecomposeComposeRoundTrip(t *testing.T) {
	cases := []struct{ l2, l3 int }{
		{0, 0}, {0, 1}, {1, 0}, {2, 8191}, {1, 4096},
	}
	for _, c := range cases {
		va := composeAddr(c.l2, c.l3)
		gotL2, gotL3 := decomposeAddr(va)
		if gotL2 != c.l2 || gotL3 != c.l3 {
			t.Errorf("decompose(compose(%d,%d)) = (%d,%d)", c.l2, c.l3, gotL2, gotL3)
		}
	}
}

func TestDecomposeAddrRejectsMisalignedAddress(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on misaligned address")
		}
	}()
	decomposeAddr(1)
}

func TestDecomposeAddrRejectsOutOfRangeL2(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on out-of-range l2 index")
		}
	}()
	decomposeAddr(VirtualAddr(3) << 29)
}

func newTestUserTable(t *testing.T) (*UserPageTable, *allocator.Allocator) {
	t.Helper()
	const size = 64 * PageSize
	buf := make([]byte, size)
	mem := &SliceMemory{Base: 0x1000_0000, Buf: buf}
	alloc := allocator.New(uintptr(mem.Base), uintptr(mem.Base)+uintptr(size))
	return NewUser(alloc, mem), alloc
}

func TestUserAllocWritesAndMaps(t *testing.T) {
	ut, _ := newTestUserTable(t)
	page, err := ut.Alloc(kconfig.UserImgBase, PermRWX)
	if err != nil {
		t.Fatalf("Alloc failed: %v", err)
	}
	if len(page) != PageSize {
		t.Fatalf("expected page view of size %d, got %d", PageSize, len(page))
	}
	page[0] = 0xAB
	if ut.Stats() != 1 {
		t.Errorf("expected 1 mapped page, got %d", ut.Stats())
	}
}

func TestUserDoubleMapPanics(t *testing.T) {
	ut, _ := newTestUserTable(t)
	if _, err := ut.Alloc(kconfig.UserImgBase, PermRW); err != nil {
		t.Fatalf("first alloc failed: %v", err)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double map")
		}
	}()
	ut.Alloc(kconfig.UserImgBase, PermRW)
}

func TestUserAllocBelowImgBasePanics(t *testing.T) {
	ut, _ := newTestUserTable(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for address below UserImgBase")
		}
	}()
	ut.Alloc(kconfig.UserImgBase-PageSize, PermRW)
}

func TestDestroyReturnsAllPagesToAllocator(t *testing.T) {
	ut, alloc := newTestUserTable(t)
	const n = 5
	for i := 0; i < n; i++ {
		if _, err := ut.Alloc(kconfig.UserImgBase+VirtualAddr(i*PageSize), PermRWX); err != nil {
			t.Fatalf("alloc %d failed: %v", i, err)
		}
	}
	if ut.Stats() != n {
		t.Fatalf("expected %d mapped pages, got %d", n, ut.Stats())
	}
	ut.Destroy()
	if ut.Stats() != 0 {
		t.Fatalf("expected 0 mapped pages after destroy, got %d", ut.Stats())
	}
	// Every freed page should be reusable: n fresh allocations of the
	// same layout must all succeed again.
	for i := 0; i < n; i++ {
		if p := alloc.Alloc(PageSize, PageSize); p == 0 {
			t.Fatalf("expected reused page allocation %d to succeed", i)
		}
	}
}
