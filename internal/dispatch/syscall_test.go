package dispatch

import (
	"errors"
	"testing"
	"time"

	"rpi64kernel/internal/process"
	"rpi64kernel/internal/scheduler"
	"rpi64kernel/internal/timer"
	"rpi64kernel/internal/trapframe"
	"rpi64kernel/internal/vm"
)

func newRunningProc(s *scheduler.Scheduler, tf *trapframe.TrapFrame) scheduler.Id {
	p := &process.Process{
		Context: &trapframe.TrapFrame{},
		Vmap:    vm.NewUser(nil, nil),
		State:   process.ReadyState(),
	}
	id, _ := s.Add(p)
	gotID, _ := s.SwitchTo(tf)
	if gotID != id {
		panic("test setup: expected newly added process to be selected")
	}
	return id
}

type fakeConsole struct {
	written []byte
	failNext bool
}

func (f *fakeConsole) WriteByte(b byte) error {
	if f.failNext {
		return errors.New("write failed")
	}
	f.written = append(f.written, b)
	return nil
}

func TestDoGetpidReturnsThreadId(t *testing.T) {
	s := scheduler.New(nil)
	var tf trapframe.TrapFrame
	id := newRunningProc(s, &tf)

	d := &Dispatcher{Sched: s}
	d.doGetpid(&tf)

	if tf.X[0] != uint64(id) {
		t.Errorf("X[0] = %d, want %d", tf.X[0], id)
	}
	if tf.X[7] != 1 {
		t.Errorf("X[7] = %d, want 1", tf.X[7])
	}
}

func TestDoWriteSendsByteAndSetsSuccess(t *testing.T) {
	var tf trapframe.TrapFrame
	tf.X[0] = 'A'
	con := &fakeConsole{}
	d := &Dispatcher{Console: con}

	d.doWrite(&tf)

	if len(con.written) != 1 || con.written[0] != 'A' {
		t.Errorf("console got %v, want ['A']", con.written)
	}
	if tf.X[7] != 1 {
		t.Errorf("X[7] = %d, want 1", tf.X[7])
	}
}

func TestDoWriteFailureClearsStatus(t *testing.T) {
	var tf trapframe.TrapFrame
	con := &fakeConsole{failNext: true}
	d := &Dispatcher{Console: con}

	d.doWrite(&tf)

	if tf.X[7] != 0 {
		t.Errorf("X[7] = %d, want 0 on console failure", tf.X[7])
	}
}

func TestDoTimeReturnsSecondsAndSubsec(t *testing.T) {
	clock := timer.NewFake(nil)
	clock.Advance(2*time.Second + 500*time.Millisecond)

	var tf trapframe.TrapFrame
	d := &Dispatcher{Clock: clock}
	d.doTime(&tf)

	if tf.X[0] != 2 {
		t.Errorf("X[0] (seconds) = %d, want 2", tf.X[0])
	}
	if tf.X[1] != uint64(500*time.Millisecond) {
		t.Errorf("X[1] (subsec ns) = %d, want %d", tf.X[1], uint64(500*time.Millisecond))
	}
	if tf.X[7] != 1 {
		t.Errorf("X[7] = %d, want 1", tf.X[7])
	}
}

func TestDoSleepWakesAfterElapsedTimeWithSuccess(t *testing.T) {
	s := scheduler.New(nil)
	var tf trapframe.TrapFrame
	sleeper := newRunningProc(s, &tf)
	other := &process.Process{
		Context: &trapframe.TrapFrame{},
		Vmap:    vm.NewUser(nil, nil),
		State:   process.ReadyState(),
	}
	s.Add(other)

	clock := timer.NewFake(nil)
	d := &Dispatcher{Sched: s, Clock: clock}

	tf.X[0] = 100 // sleep(100ms)
	d.doSleep(&tf)

	// sleep() schedules the caller out and switches to the other ready
	// process; the sleeper is not selected again until time passes.
	if tf.TpidrEL0 == uint64(sleeper) {
		t.Fatalf("expected scheduler to switch away from the sleeping process")
	}

	clock.Advance(150 * time.Millisecond)

	// Switch the "other" process out so the sleeper (now woken) is next.
	var tf2 trapframe.TrapFrame
	tf2.TpidrEL0 = tf.TpidrEL0
	id := s.Switch(process.ReadyState(), &tf2)
	if id != sleeper {
		t.Fatalf("expected woken sleeper %d to be selected, got %d", sleeper, id)
	}
	if tf2.X[0] < 100 {
		t.Errorf("elapsed ms = %d, want >= 100", tf2.X[0])
	}
	if tf2.X[7] != 1 {
		t.Errorf("X[7] = %d, want 1 on wakeup", tf2.X[7])
	}
}

func TestDoExitUsesScheduleOutPathNotKill(t *testing.T) {
	s := scheduler.New(nil)
	var tf trapframe.TrapFrame
	newRunningProc(s, &tf)
	other := &process.Process{
		Context: &trapframe.TrapFrame{},
		Vmap:    vm.NewUser(nil, nil),
		State:   process.ReadyState(),
	}
	s.Add(other)
	lenBefore := s.Len()

	d := &Dispatcher{Sched: s}
	d.doExit(&tf)

	if s.Len() != lenBefore {
		t.Errorf("exit must not remove the process from the queue (len %d, want %d)", s.Len(), lenBefore)
	}
}

func TestDispatchSyscallIgnoresUnknownNumber(t *testing.T) {
	var tf trapframe.TrapFrame
	tf.X[7] = 42
	d := &Dispatcher{}
	d.dispatchSyscall(99, &tf)

	if tf.X[7] != 42 {
		t.Errorf("unknown syscall must leave X[7] untouched, got %d", tf.X[7])
	}
}
