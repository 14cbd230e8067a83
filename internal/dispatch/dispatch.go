// Package dispatch is the trap path's second half: handle_exception from
// SPEC_FULL.md §4.5, sitting above trapframe, process, scheduler, timer
// and irq without creating an import cycle (the simulated entry glue in
// internal/engine calls into this package; nothing below it calls back up).
package dispatch

import (
	"log"
	"time"

	"rpi64kernel/internal/irq"
	"rpi64kernel/internal/kconfig"
	"rpi64kernel/internal/process"
	"rpi64kernel/internal/scheduler"
	"rpi64kernel/internal/timer"
	"rpi64kernel/internal/trapframe"
)

// Console is the byte-oriented device syscall 4 (write) goes through.
// Defined here rather than imported from package console so this package
// doesn't have to depend on term/keyboard just to dispatch a syscall.
type Console interface {
	WriteByte(b byte) error
}

// DebugShell is invoked on a Brk trap; console.Shell satisfies it.
type DebugShell interface {
	Run(tf *trapframe.TrapFrame)
}

// Dispatcher holds every collaborator handle_exception needs. engine.Boot
// builds exactly one, and the engine's timer callback calls HandleException.
type Dispatcher struct {
	Sched   *scheduler.Scheduler
	Console Console
	Shell   DebugShell
	Clock   timer.Source
	Irq     irq.Controller
	// Tick is the interval re-armed after every timer irq; zero means
	// kconfig.Tick.
	Tick time.Duration
}

// HandleException is the dispatcher the architectural entry glue calls
// after saving the full trap frame: on Irq, service the timer and
// re-arm; otherwise decode the syndrome and route Brk to the debug shell
// and Svc to the syscall layer. Everything else is only logged:
// HandleException then returns with tf unchanged and does not halt or
// loop.
func (d *Dispatcher) HandleException(info trapframe.Info, esr uint32, tf *trapframe.TrapFrame) {
	if info.Kind == trapframe.Irq {
		d.handleTimerIrq(tf)
		return
	}

	syn := trapframe.DecodeSyndrome(esr)
	switch syn.Kind {
	case trapframe.Brk:
		if d.Shell != nil {
			d.Shell.Run(tf)
		}
		tf.ElrEL1 += 4
	case trapframe.Svc:
		d.dispatchSyscall(syn.Imm16, tf)
	case trapframe.DataAbort:
		log.Printf("dispatch: fatal data abort: fault=%v level=%d esr=%#x pc=%#x",
			syn.Abort.Fault, syn.Abort.Level, esr, tf.ElrEL1)
	default:
		log.Printf("dispatch: unhandled exception kind=%v esr=%#x pc=%#x",
			syn.Kind, esr, tf.ElrEL1)
	}
}

// handleTimerIrq is the single-core legacy system timer path: preempt the
// current task, select the next ready one, and re-arm the next tick.
func (d *Dispatcher) handleTimerIrq(tf *trapframe.TrapFrame) {
	if ack, ok := d.Irq.(interface{ Ack(irq.Source) }); ok {
		ack.Ack(irq.Timer)
	}
	d.Sched.Switch(process.ReadyState(), tf)
	if d.Clock != nil {
		tick := d.Tick
		if tick == 0 {
			tick = kconfig.Tick
		}
		d.Clock.TickIn(tick)
	}
}
