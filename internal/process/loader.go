package process

import (
	"io"

	"rpi64kernel/internal/allocator"
	"rpi64kernel/internal/fsimg"
	"rpi64kernel/internal/kconfig"
	"rpi64kernel/internal/kernelerr"
	"rpi64kernel/internal/vm"
)

// Loader builds fresh processes: it owns no state of its own beyond
// references to the kernel's global collaborators (the physical
// allocator, the memory view the allocator's addresses live in, the
// kernel page table, and the flat-image filesystem stand-in). engine.Boot
// constructs exactly one Loader; process tests construct their own
// against fakes.
type Loader struct {
	Alloc     *allocator.Allocator
	Mem       vm.Memory
	KernelPT  *vm.PageTable
	Fs        fsimg.Store
}

// New allocates an empty process (empty user page table, zeroed trap
// frame, state Ready). Returns kernelerr.NoMemory if the user page table
// can't be constructed — in this design that can't actually fail (table
// construction needs no physical pages up front), but the signature
// mirrors the Rust original's fallible Process::new and leaves room for a
// future stack pre-allocation.
func (l *Loader) New() (*Process, error) {
	vmap := vm.NewUser(l.Alloc, l.Mem)
	return newEmpty(vmap), nil
}

// Load opens path through the filesystem collaborator, maps its contents
// into a fresh process starting at kconfig.UserImgBase, adds a stack page,
// and initializes the trap frame to enter the image at offset 0. It never
// parses an executable header: the file is a flat image entered directly.
func (l *Loader) Load(path string) (*Process, error) {
	p, err := l.doLoad(path)
	if err != nil {
		return nil, err
	}
	p.Context.ElrEL1 = kconfig.UserImgBase
	p.Context.Ttbr0EL1 = uint64(l.KernelPT.BaseAddr())
	p.Context.Ttbr1EL1 = uint64(p.Vmap.BaseAddr())
	// D, A and F bits set so debug/SError/FIQ stay masked in the new
	// task; IRQ (the I bit) is left clear so timer preemption works.
	p.Context.SpsrEL1 = (1 << 9) | (1 << 8) | (1 << 6)
	return p, nil
}

// doLoad maps the file's contents page by page starting at UserImgBase,
// stopping at the first short read (treated identically to a clean EOF;
// SPEC_FULL.md §9 preserves this — a corrupt image and a small image look
// the same to the loader). It then skips one guard page and maps a single
// RW stack page.
func (l *Loader) doLoad(path string) (*Process, error) {
	file, err := l.Fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	vmap := vm.NewUser(l.Alloc, l.Mem)
	va := vm.VirtualAddr(kconfig.UserImgBase)

	for {
		buf, err := vmap.Alloc(va, vm.PermRWX)
		if err != nil {
			return nil, err
		}
		n, rerr := io.ReadFull(file, buf)
		if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
			return nil, kernelerr.New("process.Loader.doLoad", kernelerr.IoError, rerr)
		}
		if n == len(buf) && rerr == nil {
			va += vm.PageSize
			continue
		}
		// Short read (including a zero-byte one): this is the final text
		// page, loading stops here.
		break
	}

	// Skip a guard page, then map the stack.
	va += vm.PageSize * 2
	stack, err := vmap.Alloc(va, vm.PermRW)
	if err != nil {
		return nil, err
	}

	p := newEmpty(vmap)
	p.Context.SpEL0 = uint64(va) + uint64(len(stack)) - 16
	return p, nil
}
