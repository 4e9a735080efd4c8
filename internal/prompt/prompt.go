// Package prompt obtains operator confirmation for model names that fail the
// quantization check. The decision itself is made by the caller.
package prompt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// Confirmer asks the operator a yes/no question and returns the raw answer
type Confirmer interface {
	Confirm(ctx context.Context, question string) (string, error)
}

// LineConfirmer prints the question and reads one line of input
type LineConfirmer struct {
	in  *bufio.Reader
	out io.Writer
}

// NewLineConfirmer creates a confirmer reading from in and writing to out
func NewLineConfirmer(in io.Reader, out io.Writer) *LineConfirmer {
	return &LineConfirmer{in: bufio.NewReader(in), out: out}
}

// Confirm returns the raw line typed by the operator without the trailing newline.
// EOF without input yields an empty answer.
func (c *LineConfirmer) Confirm(ctx context.Context, question string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if _, err := fmt.Fprintf(c.out, "%s [y/N]: ", question); err != nil {
		return "", fmt.Errorf("failed to write prompt: %w", err)
	}

	line, err := c.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// DenyConfirmer answers every question with an empty string, which callers
// treat as a refusal. Used for non-interactive runs.
type DenyConfirmer struct{}

// Confirm always declines
func (DenyConfirmer) Confirm(context.Context, string) (string, error) {
	return "", nil
}

// NewTerminalConfirmer returns the interactive bubbletea prompt when in is a
// terminal, otherwise a line reader over the same streams
func NewTerminalConfirmer(in *os.File, out *os.File) Confirmer {
	if in != nil && term.IsTerminal(int(in.Fd())) {
		return NewTeaConfirmer(in, out)
	}
	return NewLineConfirmer(in, out)
}
