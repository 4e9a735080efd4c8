package prompt

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	questionStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#ffd700"))
	inputStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff"))
	hintStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#5fafff"))
)

// confirmModel is a single-line free-text prompt
type confirmModel struct {
	question string
	input    []rune
	done     bool
	canceled bool
}

func newConfirmModel(question string) confirmModel {
	return confirmModel{question: question}
}

func (m confirmModel) Init() tea.Cmd {
	return nil
}

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	switch keyMsg.Type {
	case tea.KeyEnter:
		m.done = true
		return m, tea.Quit
	case tea.KeyCtrlC, tea.KeyEsc:
		m.canceled = true
		return m, tea.Quit
	case tea.KeyBackspace:
		if len(m.input) > 0 {
			m.input = m.input[:len(m.input)-1]
		}
	case tea.KeySpace:
		m.input = append(m.input, ' ')
	case tea.KeyRunes:
		m.input = append(m.input, keyMsg.Runes...)
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done || m.canceled {
		return ""
	}
	var b strings.Builder
	b.WriteString(questionStyle.Render(m.question))
	b.WriteString(" ")
	b.WriteString(hintStyle.Render("[y/N]"))
	b.WriteString(" ")
	b.WriteString(inputStyle.Render(string(m.input)))
	b.WriteString("\n")
	return b.String()
}

// answer is what the operator typed; a canceled prompt answers nothing
func (m confirmModel) answer() string {
	if m.canceled {
		return ""
	}
	return string(m.input)
}

// TeaConfirmer renders the question with bubbletea
type TeaConfirmer struct {
	in  io.Reader
	out io.Writer
}

// NewTeaConfirmer creates an interactive confirmer on the given streams
func NewTeaConfirmer(in io.Reader, out io.Writer) *TeaConfirmer {
	return &TeaConfirmer{in: in, out: out}
}

// Confirm runs the prompt until Enter, Esc or Ctrl+C
func (c *TeaConfirmer) Confirm(ctx context.Context, question string) (string, error) {
	program := tea.NewProgram(
		newConfirmModel(question),
		tea.WithInput(c.in),
		tea.WithOutput(c.out),
		tea.WithContext(ctx),
	)

	final, err := program.Run()
	if err != nil {
		return "", fmt.Errorf("prompt failed: %w", err)
	}

	m, ok := final.(confirmModel)
	if !ok {
		return "", fmt.Errorf("unexpected prompt model %T", final)
	}
	return m.answer(), nil
}
