package secrets

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// ErrNoTerminal is returned when a prompt is needed but stdin is not a
// terminal.
var ErrNoTerminal = errors.New("no terminal available for interactive prompt")

// Prompter asks the operator for a value.
type Prompter interface {
	Prompt(label string) (string, error)
}

// TerminalPrompter reads values from the controlling terminal with echo
// disabled.
type TerminalPrompter struct {
	in  *os.File
	out io.Writer
}

// NewStdinPrompter prompts on stderr without echo when stdin is a terminal.
// Otherwise values are read line by line from stdin.
func NewStdinPrompter() Prompter {
	return promptFor(os.Stdin, os.Stderr)
}

func promptFor(in *os.File, out io.Writer) Prompter {
	if term.IsTerminal(int(in.Fd())) {
		return &TerminalPrompter{in: in, out: out}
	}
	return NewReaderPrompter(in)
}

// Prompt shows label and reads one line without echoing it.
func (p *TerminalPrompter) Prompt(label string) (string, error) {
	fd := int(p.in.Fd())
	if !term.IsTerminal(fd) {
		return "", ErrNoTerminal
	}

	fmt.Fprintf(p.out, "%s: ", label)
	value, err := term.ReadPassword(fd)
	fmt.Fprintln(p.out)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", strings.ToLower(label), err)
	}
	return strings.TrimSpace(string(value)), nil
}

// ReaderPrompter reads one line per prompt from r. It backs runs where stdin
// is piped in.
type ReaderPrompter struct {
	scanner *bufio.Scanner
}

// NewReaderPrompter wraps r.
func NewReaderPrompter(r io.Reader) *ReaderPrompter {
	return &ReaderPrompter{scanner: bufio.NewScanner(r)}
}

func (p *ReaderPrompter) Prompt(string) (string, error) {
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}
