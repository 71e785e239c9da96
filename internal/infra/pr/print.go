// Package pr is a thin wrapper for unified output in an interactive CLI.
// It wires readline up with a cancelable stdin, redirects stdout/stderr to
// its buffers, and exposes print helpers for normal and diagnostic output.
package pr

import (
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/chzyer/readline"
	"github.com/kr/pretty"
)

var (
	rl *readline.Instance

	// out and errOut point at os.Stdout/os.Stderr until Init() redirects
	// them to the readline instance's own buffers.
	out    io.Writer = os.Stdout
	errOut io.Writer = os.Stderr

	// mu guards swapping the writer references only; writes themselves are
	// not serialized here and must be safe on the underlying writer.
	mu sync.Mutex

	// cancelableIn lets InterruptReadline close stdin to unblock a pending
	// Readline() call with io.EOF.
	cancelableIn interface{ Close() error }
)

// Init sets up readline and redirects the package's output streams to its
// stdout/stderr. Not meant to be called twice.
func Init() error {
	cs := readline.NewCancelableStdin(os.Stdin)
	newRl, err := readline.NewEx(&readline.Config{Stdin: cs})
	if err != nil {
		_ = cs.Close()
		return err
	}
	rl = newRl

	mu.Lock()
	cancelableIn = cs
	out = rl.Stdout()
	errOut = rl.Stderr()
	mu.Unlock()

	return nil
}

// InterruptReadline closes the cancelable stdin so a blocked Readline()
// returns with io.EOF. Idempotent.
func InterruptReadline() {
	if cancelableIn != nil {
		_ = cancelableIn.Close()
	}
}

// SetPrompt sets the prompt string. Assumes Init has already been called.
func SetPrompt(prompt string) {
	rl.SetPrompt(prompt)
}

// Rl returns the current readline instance, or nil if Init was never called.
func Rl() *readline.Instance {
	return rl
}

// Stdout returns the current stdout writer.
func Stdout() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return out
}

// Stderr returns the current stderr writer.
func Stderr() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return errOut
}

// Print writes to Stdout without a trailing newline.
func Print(a ...any) {
	fmt.Fprint(Stdout(), a...)
}

// Println writes to Stdout followed by a newline.
func Println(a ...any) {
	fmt.Fprintln(Stdout(), a...)
}

// Printf formats and writes to Stdout.
func Printf(format string, a ...any) {
	fmt.Fprintf(Stdout(), format, a...)
}

// ErrPrint writes to Stderr without a trailing newline.
func ErrPrint(a ...any) {
	fmt.Fprint(Stderr(), a...)
}

// ErrPrintln writes to Stderr followed by a newline.
func ErrPrintln(a ...any) {
	fmt.Fprintln(Stderr(), a...)
}

// ErrPrintf formats and writes to Stderr.
func ErrPrintf(format string, a ...any) {
	fmt.Fprintf(Stderr(), format, a...)
}

// PP pretty-prints v to Stdout.
func PP(v any) {
	fmt.Fprintf(Stdout(), "%# v\n", pretty.Formatter(v))
}

// Pf returns a pretty-printed rendering of v.
func Pf(v any) string {
	return fmt.Sprintf("%# v\n", pretty.Formatter(v))
}
