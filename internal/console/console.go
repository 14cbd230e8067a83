// Package console is the byte-oriented console collaborator (SPEC_FULL.md
// §6) plus the interactive debug shell entered on a Brk trap (§4.5). The
// real implementation puts the host terminal into raw mode with
// golang.org/x/term and reads single keystrokes with
// github.com/eiannone/keyboard — the same two libraries the loader's
// teacher kernel imported but never wired up (main.go kept term.MakeRaw
// commented out); here both are live.
package console

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/eiannone/keyboard"
	"golang.org/x/term"
)

// Console is the byte-oriented device the write syscall and the debug
// shell both go through, behind a single mutex (SPEC_FULL §6).
type Console interface {
	ReadByte() (byte, error)
	WriteByte(b byte) error
}

// Terminal is the real Console: stdin/stdout behind a mutex, with the
// host terminal switched to raw mode for the lifetime of the kernel so
// user-program writes and debug-shell keystrokes don't get mangled by
// line buffering or local echo.
type Terminal struct {
	mu       sync.Mutex
	in       *bufio.Reader
	out      io.Writer
	fd       int
	oldState *term.State
}

// Open switches the given file descriptor (normally int(os.Stdin.Fd()))
// into raw mode and returns a Terminal console backed by stdin/stdout.
// Restore must be called on shutdown to hand the terminal back.
func Open(fd int) (*Terminal, error) {
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("console.Open: %w", err)
	}
	return &Terminal{
		in:       bufio.NewReader(os.Stdin),
		out:      os.Stdout,
		fd:       fd,
		oldState: old,
	}, nil
}

// Restore puts the terminal back into its original (cooked) mode.
func (c *Terminal) Restore() error {
	if c.oldState == nil {
		return nil
	}
	return term.Restore(c.fd, c.oldState)
}

func (c *Terminal) ReadByte() (byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.in.ReadByte()
}

func (c *Terminal) WriteByte(b byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.out.Write([]byte{b})
	return err
}

// ReadKey blocks for a single keystroke, raw-mode control keys included.
// It is used by the debug shell, which dispatches on one key at a time
// rather than the raw byte stream the write syscall produces.
func (c *Terminal) ReadKey() (rune, keyboard.Key, error) {
	return keyboard.GetSingleKey()
}
