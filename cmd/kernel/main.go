// Command kernel boots the simulated ARM64 kernel core: it builds the
// identity-mapped kernel page table, loads each -image as a process, and
// drives the timer-preemptive scheduler until interrupted.
package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"rpi64kernel/internal/console"
	"rpi64kernel/internal/engine"
	"rpi64kernel/internal/fsimg"
	"rpi64kernel/internal/kconfig"
)

// imageList collects repeated -image flags into a slice.
type imageList []string

func (l *imageList) String() string { return strings.Join(*l, ",") }
func (l *imageList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	var images imageList
	flag.Var(&images, "image", "path to a flat process image; repeatable")
	verbose := flag.Bool("v", false, "enable verbose logging")
	memoryFlag := flag.Uint64("memory", 128*1024*1024, "simulated RAM size in bytes")
	tickFlag := flag.Duration("tick", kconfig.Tick, "scheduler preemption quantum")
	raw := flag.Bool("raw-term", false, "route the write syscall through the raw-mode terminal instead of plain stdout")
	flag.Parse()

	if len(images) == 0 {
		log.Fatal("at least one -image is required")
	}

	printIfVerbose(*verbose, "booting kernel: memory=%d bytes, tick=%s", *memoryFlag, *tickFlag)

	// The debug shell always needs the host terminal in raw mode to read
	// single keystrokes; -raw-term additionally routes the write syscall
	// through it instead of plain stdout.
	term, err := console.Open(int(os.Stdin.Fd()))
	if err != nil {
		log.Fatalf("console.Open: %v", err)
	}
	defer term.Restore()

	var con console.Console = &stdioConsole{}
	if *raw {
		con = term
	}
	shell := console.NewShell(term, os.Stdout)

	cfg := engine.Config{
		MemorySize: uintptr(*memoryFlag),
		IOBase:     kconfig.IOBase,
		IOBaseEnd:  kconfig.IOBaseEnd,
		Fs:         fsimg.OSStore{},
		Images:     images,
		Verbose:    *verbose,
		Tick:       *tickFlag,
	}

	k, err := engine.Boot(cfg, con, shell)
	if err != nil {
		log.Fatalf("boot failed: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		printIfVerbose(*verbose, "signal received, stopping kernel...")
		k.Stop()
	}()

	k.Run()
	printIfVerbose(*verbose, "kernel stopped.")
}

// stdioConsole is the non-raw-mode console.Console: plain stdin/stdout,
// used when -raw-term is left off.
type stdioConsole struct{}

func (stdioConsole) ReadByte() (byte, error) {
	var b [1]byte
	_, err := os.Stdin.Read(b[:])
	return b[0], err
}

func (stdioConsole) WriteByte(b byte) error {
	_, err := os.Stdout.Write([]byte{b})
	return err
}

func printIfVerbose(verbose bool, format string, v ...interface{}) {
	if verbose {
		log.Printf(format, v...)
	}
}
