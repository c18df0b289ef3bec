package shell

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
)

// Prompter asks the user to confirm a destructive console action.
type Prompter interface {
	// Confirm shows message and reports whether the user answered yes.
	Confirm(message string) (bool, error)
}

// confirmed accepts "y" and "yes" in any case; everything else is no.
func confirmed(answer string) bool {
	a := strings.ToLower(strings.TrimSpace(answer))
	return a == "y" || a == "yes"
}

// ReadlinePrompter asks through the console's own line editor so the
// answer does not compete with readline for stdin.
type ReadlinePrompter struct {
	rl *readline.Instance
}

// Confirm implements Prompter.
func (p *ReadlinePrompter) Confirm(message string) (bool, error) {
	p.rl.SetPrompt(message + " [y/N]: ")
	defer p.rl.SetPrompt(prompt)
	line, err := p.rl.Readline()
	if err == readline.ErrInterrupt || err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read confirmation: %w", err)
	}
	return confirmed(line), nil
}

// IOPrompter reads answers line by line from a reader.
type IOPrompter struct {
	in  *bufio.Scanner
	out io.Writer
}

// NewIOPrompter creates a prompter reading r and writing prompts to w.
func NewIOPrompter(r io.Reader, w io.Writer) *IOPrompter {
	return &IOPrompter{in: bufio.NewScanner(r), out: w}
}

// Confirm implements Prompter. EOF answers no.
func (p *IOPrompter) Confirm(message string) (bool, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", message)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return false, fmt.Errorf("failed to read confirmation: %w", err)
		}
		return false, nil
	}
	return confirmed(p.in.Text()), nil
}

var (
	_ Prompter = (*ReadlinePrompter)(nil)
	_ Prompter = (*IOPrompter)(nil)
)
