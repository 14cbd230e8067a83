package console

import (
	"fmt"
	"io"

	"github.com/eiannone/keyboard"
	"rpi64kernel/internal/trapframe"
)

// KeyReader reads one keystroke at a time; *Terminal satisfies it via
// keyboard.GetSingleKey. Tests supply a fakeKeyReader instead of driving
// a real terminal.
type KeyReader interface {
	ReadKey() (rune, keyboard.Key, error)
}

// Shell is the minimal interactive command loop entered on a Brk trap
// (SPEC_FULL.md §4.5), recovering the feature the distillation reduced to
// "enter a synchronous debug shell": single-keystroke `r`(eg dump),
// `s`(tep), `c`(ontinue) and `q`(uit) commands, the same
// keyboard.GetSingleKey single-key style the teacher's LC-3 keyboard
// register handling used, rather than a no-op.
type Shell struct {
	keys KeyReader
	out  io.Writer
}

// NewShell builds a Shell reading keystrokes from keys and writing
// prompts and output to out.
func NewShell(keys KeyReader, out io.Writer) *Shell {
	return &Shell{keys: keys, out: out}
}

// Run drives the command loop against the trapped process's frame until
// the operator presses s, c, q or Ctrl-C, or a key read fails. step exits
// the loop just like continue (there is no single-instruction trap to arm
// in this simulated core); quit does the same, since there is nothing left
// for Brk's caller to do but resume.
func (s *Shell) Run(tf *trapframe.TrapFrame) {
	fmt.Fprintln(s.out, "breakpoint hit; press r(eg), s(tep), c(ontinue) or q(uit)")
	for {
		fmt.Fprint(s.out, "(dbg) ")
		ch, key, err := s.keys.ReadKey()
		if err != nil {
			return
		}
		if key == keyboard.KeyCtrlC {
			return
		}
		switch ch {
		case 'r':
			s.printRegs(tf)
		case 's', 'c', 'q':
			return
		default:
			fmt.Fprintln(s.out, "unknown command")
		}
	}
}

func (s *Shell) printRegs(tf *trapframe.TrapFrame) {
	fmt.Fprintf(s.out, "  pc=%#016x sp=%#016x spsr=%#016x tpidr=%d\n",
		tf.ElrEL1, tf.SpEL0, tf.SpsrEL1, tf.TpidrEL0)
	for i, x := range tf.X {
		fmt.Fprintf(s.out, "  x%-2d=%#016x\n", i, x)
	}
}
