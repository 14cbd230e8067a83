// Package process represents a runnable user task — its trap frame, its
// user page table, and its scheduling state — and the loader that maps an
// on-disk flat image into a fresh process's virtual space.
package process

import (
	"rpi64kernel/internal/trapframe"
	"rpi64kernel/internal/vm"
)

// Id is a process identifier, assigned by the scheduler on enqueue and
// never recycled.
type Id = uint64

// Process is the complete state of one user task: its saved trap frame,
// its user page table, and its scheduling state. A Process owns its trap
// frame and its user page table; dropping a process (via Destroy) drops
// the page table, which in turn returns every mapped page to the
// allocator it came from.
type Process struct {
	Context *trapframe.TrapFrame
	Vmap    *vm.UserPageTable
	State   State
}

// newEmpty builds a process with a zeroed trap frame, an empty user page
// table, and state Ready. Used by both New and the loader.
func newEmpty(vmap *vm.UserPageTable) *Process {
	return &Process{
		Context: &trapframe.TrapFrame{},
		Vmap:    vmap,
		State:   ReadyState(),
	}
}

// Destroy releases the process's user page table and every page it maps.
// Call exactly once; this is what backs the scheduler's kill() path.
func (p *Process) Destroy() {
	p.Vmap.Destroy()
}
