package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"

	"gpustack/internal/setup"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#00d7ff"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fd75f"))
	warnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffd700"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5f5f")).Bold(true)
	hintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fafff"))
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#87d7af"))
	dimStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
)

// console writes operator-facing output, separate from structured logs
type console struct {
	w io.Writer
}

func newConsole(w io.Writer) console {
	return console{w: w}
}

func (c console) title(s string) {
	fmt.Fprintln(c.w, titleStyle.Render(s))
}

func (c console) line(format string, args ...interface{}) {
	fmt.Fprintf(c.w, format+"\n", args...)
}

func (c console) field(label string, value interface{}) {
	fmt.Fprintf(c.w, "  %s %v\n", labelStyle.Render(label+":"), value)
}

func (c console) ok(s string) {
	fmt.Fprintf(c.w, "%s %s\n", okStyle.Render("✓"), s)
}

func (c console) warn(s string) {
	fmt.Fprintf(c.w, "%s %s\n", warnStyle.Render("!"), s)
}

func (c console) fail(s string) {
	fmt.Fprintf(c.w, "%s %s\n", errorStyle.Render("✗"), s)
}

func (c console) hint(s string) {
	fmt.Fprintf(c.w, "  %s\n", hintStyle.Render("hint: "+s))
}

// step prints one setup step as it completes
func (c console) step(s setup.StepResult) {
	label := fmt.Sprintf("[%s] %s", s.Name, s.Message)
	switch s.Status {
	case setup.StatusOK:
		c.ok(label)
	case setup.StatusWarn:
		c.warn(label)
	case setup.StatusFatal:
		c.fail(label)
	default:
		fmt.Fprintf(c.w, "%s %s\n", dimStyle.Render("-"), dimStyle.Render(label))
	}
	if s.Hint != "" && s.Status == setup.StatusWarn {
		c.hint(s.Hint)
	}
}
