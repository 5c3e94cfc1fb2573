package restore

import (
	"bufio"
	"errors"
	"fmt"
	"io"
)

// Confirmer asks the operator before anything destructive happens.
// A nil error means proceed.
type Confirmer interface {
	Confirm(prompt string) error
}

// ConfirmFunc adapts a function to Confirmer
type ConfirmFunc func(prompt string) error

// Confirm calls f
func (f ConfirmFunc) Confirm(prompt string) error {
	return f(prompt)
}

// PromptConfirmer waits for the operator to press Enter.
// Interrupting the process is the way to abort; a closed input aborts too.
type PromptConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

// NewPromptConfirmer reads answers from in and writes prompts to out
func NewPromptConfirmer(in io.Reader, out io.Writer) *PromptConfirmer {
	return &PromptConfirmer{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// Confirm prints prompt and blocks until a line is read
func (p *PromptConfirmer) Confirm(prompt string) error {
	_, _ = fmt.Fprint(p.out, prompt+" ")

	_, err := p.in.ReadString('\n')
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		_, _ = fmt.Fprintln(p.out)
		return ErrAborted
	default:
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
}
