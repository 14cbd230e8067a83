package dispatch

import (
	"time"

	"rpi64kernel/internal/process"
	"rpi64kernel/internal/trapframe"
)

// Syscall numbers, per SPEC_FULL.md §4.6 (unchanged from spec.md's table).
const (
	sysSleep  = 1
	sysTime   = 2
	sysExit   = 3
	sysWrite  = 4
	sysGetpid = 5
)

// dispatchSyscall routes an Svc immediate to its handler. Unknown numbers
// are silently ignored, leaving x7 untouched.
func (d *Dispatcher) dispatchSyscall(nr uint16, tf *trapframe.TrapFrame) {
	switch nr {
	case sysSleep:
		d.doSleep(tf)
	case sysTime:
		d.doTime(tf)
	case sysExit:
		d.doExit(tf)
	case sysWrite:
		d.doWrite(tf)
	case sysGetpid:
		d.doGetpid(tf)
	}
}

// doSleep transitions the caller to Waiting with a poll predicate that
// fires once wall time passes start+ms, staging the elapsed time and
// success status into the process's own saved frame so they are in place
// the moment it is switched back in.
func (d *Dispatcher) doSleep(tf *trapframe.TrapFrame) {
	ms := tf.X[0]
	start := d.Clock.Now()
	deadline := start + time.Duration(ms)*time.Millisecond

	poll := func(p *process.Process) bool {
		now := d.Clock.Now()
		if now < deadline {
			return false
		}
		p.Context.X[0] = uint64((now - start) / time.Millisecond)
		p.Context.X[7] = 1
		return true
	}
	d.Sched.Switch(process.WaitingState(poll), tf)
}

// doTime returns wall time split into seconds and a sub-second
// nanosecond remainder.
func (d *Dispatcher) doTime(tf *trapframe.TrapFrame) {
	now := d.Clock.Now()
	tf.X[0] = uint64(now / time.Second)
	tf.X[1] = uint64(now % time.Second)
	tf.X[7] = 1
}

// doExit schedules the caller out as Dead via the schedule-out-only path
// (scheduler.Switch), never scheduler.Kill: Kill also destroys the page
// table synchronously, which the exiting task's own in-flight trap path
// cannot survive.
func (d *Dispatcher) doExit(tf *trapframe.TrapFrame) {
	d.Sched.Switch(process.DeadState(), tf)
}

// doWrite writes a single byte to the console.
func (d *Dispatcher) doWrite(tf *trapframe.TrapFrame) {
	b := byte(tf.X[0])
	if d.Console == nil {
		tf.X[7] = 0
		return
	}
	if err := d.Console.WriteByte(b); err != nil {
		tf.X[7] = 0
		return
	}
	tf.X[7] = 1
}

// doGetpid returns the caller's own thread-id register as its Id.
func (d *Dispatcher) doGetpid(tf *trapframe.TrapFrame) {
	tf.X[0] = tf.TpidrEL0
	tf.X[7] = 1
}
