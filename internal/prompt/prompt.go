// Package prompt is the interaction seam between the synchronization
// engine and a terminal user. Engines take the [Prompter] interface so
// tests can script every answer.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrCancelled reports that the user aborted the current operation.
var ErrCancelled = errors.New("cancelled")

// Prompter asks the user to make a choice.
type Prompter interface {
	// Select presents numbered options and returns the chosen index.
	Select(question string, options []string) (int, error)
	// Confirm asks a yes/no question.
	Confirm(question string) (bool, error)
	// Input asks for a free-form line. Empty input returns def.
	Input(question, def string) (string, error)
}

// Terminal is a [Prompter] reading answers line by line.
type Terminal struct {
	In  io.Reader
	Out io.Writer

	reader *bufio.Reader
}

// NewTerminal returns a Terminal prompting on out and reading from in.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{In: in, Out: out, reader: bufio.NewReader(in)}
}

// Select implements [Prompter]. Entering "q" cancels.
func (t *Terminal) Select(question string, options []string) (int, error) {
	fmt.Fprintln(t.Out, question)
	for i, opt := range options {
		fmt.Fprintf(t.Out, "  %d) %s\n", i+1, opt)
	}
	for {
		fmt.Fprintf(t.Out, "Choice [1-%d, q to cancel]: ", len(options))
		line, err := t.readLine()
		if err != nil {
			return 0, err
		}
		if line == "q" {
			return 0, ErrCancelled
		}
		n, err := strconv.Atoi(line)
		if err == nil && n >= 1 && n <= len(options) {
			return n - 1, nil
		}
		fmt.Fprintln(t.Out, "Invalid choice.")
	}
}

// Confirm implements [Prompter]. Empty input means no.
func (t *Terminal) Confirm(question string) (bool, error) {
	fmt.Fprintf(t.Out, "%s [y/N]: ", question)
	line, err := t.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Input implements [Prompter].
func (t *Terminal) Input(question, def string) (string, error) {
	if def != "" {
		fmt.Fprintf(t.Out, "%s [%s]: ", question, def)
	} else {
		fmt.Fprintf(t.Out, "%s: ", question)
	}
	line, err := t.readLine()
	if err != nil {
		return "", err
	}
	if line == "" {
		return def, nil
	}
	return line, nil
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.reader.ReadString('\n')
	if err != nil && line == "" {
		if errors.Is(err, io.EOF) {
			return "", ErrCancelled
		}
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

var _ Prompter = (*Terminal)(nil)
