// Package scheduler implements the round-robin, timer-preemptive process
// scheduler: a single ordered queue behind one coarse mutex, with three
// primitive operations (Add, ScheduleOut, SwitchTo) composed into Switch
// and Kill.
package scheduler

import (
	"sync"

	"rpi64kernel/internal/process"
	"rpi64kernel/internal/trapframe"
)

// Id is a process identifier; aliased here so callers don't need to import
// package process just to talk about one.
type Id = process.Id

// Idler lets the scheduler's idle path do something other than spin when
// no process is ready — on real hardware, a wait-for-interrupt
// instruction; here, anything the caller supplies (internal/engine uses a
// short sleep so the simulated machine doesn't busy-loop a host CPU).
type Idler interface {
	Idle()
}

// IdlerFunc adapts a function to Idler.
type IdlerFunc func()

func (f IdlerFunc) Idle() { f() }

// Scheduler owns the process queue behind a single mutex, independent of
// the allocator's own lock (the user page-table destructor calls into the
// allocator while the scheduler already holds this lock — nesting a
// shared lock across both would deadlock; see DESIGN.md).
type Scheduler struct {
	mu        sync.Mutex
	processes []*process.Process
	lastID    Id
	idler     Idler
}

// New returns a scheduler with an empty queue. idle is invoked by Switch
// whenever no process is ready; pass nil to spin (busy-wait) instead.
func New(idle Idler) *Scheduler {
	return &Scheduler{idler: idle}
}

// Add assigns the next Id, stores it into the process's thread-id
// register, and enqueues it at the tail. Returns (0, false) on Id
// overflow, leaving the queue unchanged — callers must treat that as
// "system full" and refuse the process.
func (s *Scheduler) Add(p *process.Process) (Id, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.lastID + 1
	if next == 0 { // wrapped past ^uint64(0)
		return 0, false
	}
	s.lastID = next
	p.Context.TpidrEL0 = next
	s.processes = append(s.processes, p)
	return next, true
}

// Len reports the current queue length, mainly for tests and diagnostics.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.processes)
}

// ScheduleOut finds the Running process matching tf.TpidrEL0, copies tf
// into its saved trap frame, transitions it to newState, and moves it to
// the tail. Returns false if no Running process matches (the first-call
// bootstrap case, when there is no "current" task yet).
func (s *Scheduler) ScheduleOut(newState process.State, tf *trapframe.TrapFrame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scheduleOutLocked(newState, tf)
}

func (s *Scheduler) scheduleOutLocked(newState process.State, tf *trapframe.TrapFrame) bool {
	idx := -1
	for i, p := range s.processes {
		if p.State.Kind == process.Running && p.Context.TpidrEL0 == tf.TpidrEL0 {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	cur := s.processes[idx]
	*cur.Context = *tf
	cur.State = newState
	s.processes = append(s.processes[:idx], s.processes[idx+1:]...)
	s.processes = append(s.processes, cur)
	return true
}

// SwitchTo scans the queue in order for the first ready process, moves it
// to the head, transitions it to Running, and copies its saved trap frame
// into tf. Returns (0, false) if nothing is ready.
func (s *Scheduler) SwitchTo(tf *trapframe.TrapFrame) (Id, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.switchToLocked(tf)
}

func (s *Scheduler) switchToLocked(tf *trapframe.TrapFrame) (Id, bool) {
	idx := -1
	for i, p := range s.processes {
		if p.IsReady() {
			idx = i
			break
		}
	}
	if idx < 0 {
		return 0, false
	}
	next := s.processes[idx]
	s.processes = append(s.processes[:idx], s.processes[idx+1:]...)
	s.processes = append([]*process.Process{next}, s.processes...)
	next.State = process.RunningState()
	*tf = *next.Context
	return next.Context.TpidrEL0, true
}

// Switch schedules the current task out as newState then selects the next
// ready task, looping through the idler while none is ready (the idle
// path — also exercised by idle cores in the multi-core design).
func (s *Scheduler) Switch(newState process.State, tf *trapframe.TrapFrame) Id {
	s.mu.Lock()
	s.scheduleOutLocked(newState, tf)
	s.mu.Unlock()

	for {
		s.mu.Lock()
		id, ok := s.switchToLocked(tf)
		s.mu.Unlock()
		if ok {
			return id
		}
		if s.idler != nil {
			s.idler.Idle()
		}
	}
}

// Kill schedules the current task out as Dead, removes it (it is now at
// the tail, same as any other scheduled-out task), and destroys its
// resources. Returns (0, false) if there was no current task to kill.
func (s *Scheduler) Kill(tf *trapframe.TrapFrame) (Id, bool) {
	s.mu.Lock()
	ok := s.scheduleOutLocked(process.DeadState(), tf)
	if !ok {
		s.mu.Unlock()
		return 0, false
	}
	n := len(s.processes)
	dead := s.processes[n-1]
	s.processes = s.processes[:n-1]
	s.mu.Unlock()

	id := dead.Context.TpidrEL0
	dead.Destroy()
	return id, true
}
