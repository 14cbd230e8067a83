// Package trapframe defines the saved architectural state carried across
// an exception, the exception (source, kind) pair, and the syndrome
// decoder (SPEC_FULL §4.5). It depends on nothing else in this module so
// that process, scheduler, and dispatch can all sit above it without a
// cycle.
package trapframe

// Q128 is a single 128-bit SIMD register, represented as two 64-bit halves
// since Go has no native 128-bit integer.
type Q128 struct {
	Hi, Lo uint64
}

// TrapFrame carries every architectural register saved across an
// exception: program counter, saved program status, user stack pointer,
// thread-id register, the two translation base registers, the SIMD
// register file, the general-purpose registers, and the always-zero
// register. Field order here is part of this kernel's informal ABI with
// the (simulated) entry glue in internal/engine — keep the two in sync
// if reordered, per SPEC_FULL.md §9.
type TrapFrame struct {
	SpsrEL1 uint64 // saved program status
	ElrEL1  uint64 // program counter at exception entry
	TpidrEL0 uint64 // thread-id register; doubles as the process Id
	SpEL0   uint64 // user stack pointer
	Ttbr0EL1 uint64 // kernel translation base
	Ttbr1EL1 uint64 // user translation base

	Q [32]Q128
	X [30]uint64
	Xzr uint64
}
