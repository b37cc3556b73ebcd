package workflow

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/logrusorgru/aurora/v4"
)

// au colours the demo output.
var au = aurora.New(aurora.WithColors(true))

// SetColors turns the terminal colours on or off.
func SetColors(on bool) {
	au = aurora.New(aurora.WithColors(on))
}

// Header prints a step title.
func Header(w io.Writer, msg string) {
	fmt.Fprintf(w, "\n%s\n", au.White(msg))
}

// Explain prints the explanation that follows a step.
func Explain(w io.Writer, msg string) {
	fmt.Fprintf(w, "\n%s\n", au.Cyan("EXPLANATION:\n"+msg))
}

// Nothing prints the message shown when the local node has no part in a step.
func Nothing(w io.Writer) {
	fmt.Fprintln(w, au.Green("Do nothing this step"))
}

// Failure prints a step error.
func Failure(w io.Writer, msg string) {
	fmt.Fprintln(w, au.Red(msg))
}

// Info prints a plain line.
func Info(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, format+"\n", args...)
}

// =============================================================================

// Pauser waits between steps.
type Pauser interface {
	Pause(ctx context.Context, w io.Writer) error
}

// Prompt waits for the user to press enter.
type Prompt struct {
	in *bufio.Reader
}

// NewPrompt constructs a prompt reading from in.
func NewPrompt(in io.Reader) *Prompt {
	return &Prompt{in: bufio.NewReader(in)}
}

// Pause implements Pauser.
func (p *Prompt) Pause(ctx context.Context, w io.Writer) error {
	fmt.Fprint(w, "PRESS ENTER TO CONTINUE: ")

	done := make(chan error, 1)
	go func() {
		_, err := p.in.ReadString('\n')
		if err == io.EOF {
			err = nil
		}
		done <- err
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		return err
	}
}

// NoPrompt never waits.
type NoPrompt struct{}

// Pause implements Pauser.
func (NoPrompt) Pause(ctx context.Context, w io.Writer) error {
	fmt.Fprintln(w, "Skipping prompt")
	return nil
}

// Indent prefixes every line of s.
func Indent(s string, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}
