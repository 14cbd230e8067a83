package vm

import (
	"fmt"

	"rpi64kernel/internal/allocator"
	"rpi64kernel/internal/kconfig"
	"rpi64kernel/internal/kernelerr"
)

// PagePerm is the permission a caller requests when mapping a user page.
// RWX covers the loader's text pages (no W^X enforcement in this kernel);
// RW covers the stack and any other writable-only page.
type PagePerm int

const (
	PermRW PagePerm = iota
	PermRWX
)

func (p PagePerm) accessPerm() AccessPerm { return APUserRW }

// UserPageTable is a PageTable used for a process's address space. Unlike
// the kernel table, it starts empty and grows one page at a time via
// Alloc, and it owns every page it maps: Destroy returns them all to the
// allocator they came from.
type UserPageTable struct {
	*PageTable
	alloc *allocator.Allocator
	mem   Memory
}

// NewUser builds an empty user page table backed by alloc for leaf pages
// and mem for viewing their contents.
func NewUser(alloc *allocator.Allocator, mem Memory) *UserPageTable {
	return &UserPageTable{
		PageTable: New(APUserRW, AttrMem),
		alloc:     alloc,
		mem:       mem,
	}
}

// Alloc maps a fresh 64 KiB page at va with the given permission and
// returns a writable view of its contents for the loader to fill. va must
// be at or above kconfig.UserImgBase — it panics otherwise, the same as a
// double map, since both are programming errors in the loader, not
// conditions a caller can recover from. The table-relative address
// va-UserImgBase is what's actually decomposed into L2/L3 indices.
//
// Returns kernelerr.NoMemory if the physical allocator is exhausted.
func (u *UserPageTable) Alloc(va VirtualAddr, perm PagePerm) ([]byte, error) {
	if va < kconfig.UserImgBase {
		panic(fmt.Sprintf("vm: address %#x is below UserImgBase %#x", va, uint64(kconfig.UserImgBase)))
	}
	rel := va - kconfig.UserImgBase
	l2, l3 := decomposeAddr(rel)
	phys := u.alloc.Alloc(PageSize, PageSize)
	if phys == 0 {
		return nil, kernelerr.New("vm.UserPageTable.Alloc", kernelerr.NoMemory, nil)
	}
	p := PhysicalAddr(phys)
	u.mapPage(l2, l3, p, perm.accessPerm(), AttrMem, ShInnerShareable)
	return u.mem.View(p), nil
}

// Destroy returns every mapped page back to the allocator it came from.
// Call exactly once, when the owning process is dropped; using the table
// afterward is undefined.
func (u *UserPageTable) Destroy() {
	for i := range u.l3 {
		for j := range u.l3[i].entries {
			e := u.l3[i].entries[j]
			if e.isValid() {
				u.alloc.Dealloc(uintptr(e.addr()), PageSize, PageSize)
				u.l3[i].entries[j] = newRawEntry()
			}
		}
	}
}
