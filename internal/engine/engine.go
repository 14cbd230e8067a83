// Package engine assembles the kernel core's collaborators into a
// runnable whole — the Go analogue of the entry glue + main loop that in
// the real ARM64 kernel live in assembly and crate::main: build the
// kernel page table, seed the allocator, load process images, and drive
// the timer-preemptive scheduling loop. cmd/kernel is a thin flag/signal
// wrapper around this package, the same split cmd/mipsvm keeps between
// its main.go and package mips.
package engine

import (
	"log"
	"time"

	"rpi64kernel/internal/allocator"
	"rpi64kernel/internal/console"
	"rpi64kernel/internal/dispatch"
	"rpi64kernel/internal/fsimg"
	"rpi64kernel/internal/irq"
	"rpi64kernel/internal/kconfig"
	"rpi64kernel/internal/kernelerr"
	"rpi64kernel/internal/process"
	"rpi64kernel/internal/scheduler"
	"rpi64kernel/internal/timer"
	"rpi64kernel/internal/trapframe"
	"rpi64kernel/internal/vm"
)

// Config is everything boot needs to know: the board's memory map, the
// filesystem collaborator to load images from, and the set of image
// paths to start as the initial process set.
type Config struct {
	MemorySize uintptr
	IOBase     vm.VirtualAddr
	IOBaseEnd  vm.VirtualAddr
	Fs         fsimg.Store
	Images     []string
	Verbose    bool
	// Tick overrides the scheduler's preemption quantum; zero means use
	// kconfig.Tick.
	Tick time.Duration
}

// Kernel is the booted, running core: its allocator, kernel page table,
// loader, scheduler and trap dispatcher, plus the stop channel the signal
// handler in cmd/kernel closes to end the run loop cleanly.
type Kernel struct {
	cfg        Config
	alloc      *allocator.Allocator
	mem        vm.Memory
	kernelPT   *vm.PageTable
	loader     *process.Loader
	sched      *scheduler.Scheduler
	dispatcher *dispatch.Dispatcher
	clock      *timer.System
	irqCtrl    *irq.Local
	stop       chan struct{}

	// liveTf is the trap frame of whichever process is currently Running —
	// the Go stand-in for the live frame that would sit on the kernel
	// stack between an exception entry and its eret. Every simulated
	// exception (here, only timer ticks) dispatches through it.
	liveTf trapframe.TrapFrame
}

// Boot builds every collaborator and loads cfg.Images as the initial
// process set. It returns an error only if an image fails to load or the
// process table is already full (Id overflow, unreachable in practice).
func Boot(cfg Config, con console.Console, shell dispatch.DebugShell) (*Kernel, error) {
	mem := &vm.SliceMemory{Base: 0, Buf: make([]byte, cfg.MemorySize)}
	// The first page stays out of the allocator's region: address 0 is
	// the allocator's failure value, so the region must not start there.
	alloc := allocator.New(uintptr(mem.Base)+vm.PageSize, uintptr(mem.Base)+uintptr(cfg.MemorySize))
	kernelPT := vm.BuildKernelTable(vm.VirtualAddr(cfg.MemorySize), cfg.IOBase, cfg.IOBaseEnd)

	k := &Kernel{
		cfg:      cfg,
		alloc:    alloc,
		mem:      mem,
		kernelPT: kernelPT,
		loader:   &process.Loader{Alloc: alloc, Mem: mem, KernelPT: kernelPT, Fs: cfg.Fs},
		sched:    scheduler.New(scheduler.IdlerFunc(func() { time.Sleep(time.Millisecond) })),
		irqCtrl:  irq.NewLocal(),
		stop:     make(chan struct{}),
	}
	k.clock = timer.NewSystem(k.onTick)
	k.dispatcher = &dispatch.Dispatcher{
		Sched:   k.sched,
		Console: con,
		Shell:   shell,
		Clock:   k.clock,
		Irq:     k.irqCtrl,
		Tick:    cfg.Tick,
	}
	k.irqCtrl.Enable(irq.Timer)

	for _, path := range cfg.Images {
		p, err := k.loader.Load(path)
		if err != nil {
			return nil, err
		}
		if _, ok := k.sched.Add(p); !ok {
			return nil, kernelerr.New("engine.Boot", kernelerr.Overflow, nil)
		}
		k.logf("loaded %s", path)
	}
	return k, nil
}

// onTick is the timer's fire callback: it raises the timer irq source and
// routes a synthetic Irq exception through the dispatcher against the
// live frame, mirroring what the real one-shot compare-interrupt does on
// hardware.
func (k *Kernel) onTick() {
	k.irqCtrl.Raise(irq.Timer)
	k.dispatcher.HandleException(trapframe.Info{Kind: trapframe.Irq}, 0, &k.liveTf)
}

// Run performs the initial dispatch (SPEC_FULL.md §4.4: select the first
// ready task into the live frame), arms the first preemption tick, and
// blocks until Stop is called.
func (k *Kernel) Run() {
	k.sched.SwitchTo(&k.liveTf)

	tick := k.cfg.Tick
	if tick == 0 {
		tick = kconfig.Tick
	}
	k.logf("starting scheduler, tick=%s", tick)
	k.clock.TickIn(tick)
	<-k.stop
}

// Stop ends Run, letting cmd/kernel shut down on SIGINT/SIGTERM.
func (k *Kernel) Stop() {
	close(k.stop)
}

func (k *Kernel) logf(format string, v ...interface{}) {
	if k.cfg.Verbose {
		log.Printf(format, v...)
	}
}
