package prompt

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	questionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#6BCB77"))

	hintStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#888888")).
			MarginTop(1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FFD93D"))
)

// TUI prompts with small bubbletea programs.
type TUI struct {
	in  io.Reader
	out io.Writer
}

var _ Prompter = (*TUI)(nil)

// NewTUI creates a TUI prompter.
func NewTUI(in io.Reader, out io.Writer) *TUI {
	return &TUI{in: in, out: out}
}

// Confirm shows a yes/no toggle. y/n answer directly; Esc or Ctrl+C aborts.
func (t *TUI) Confirm(ctx context.Context, question string) (bool, error) {
	final, err := t.run(ctx, confirmModel{question: question})
	if err != nil {
		return false, err
	}
	m := final.(confirmModel)
	if m.aborted {
		return false, ErrAborted
	}
	return m.answer, nil
}

// ChooseOne shows a filterable list of options.
func (t *TUI) ChooseOne(ctx context.Context, question string, options []string) (string, error) {
	if len(options) == 0 {
		return "", ErrNoOptions
	}
	final, err := t.run(ctx, newChooseModel(question, options))
	if err != nil {
		return "", err
	}
	m := final.(chooseModel)
	if m.aborted || m.choice == "" {
		return "", ErrAborted
	}
	return m.choice, nil
}

func (t *TUI) run(ctx context.Context, model tea.Model) (tea.Model, error) {
	p := tea.NewProgram(model,
		tea.WithContext(ctx),
		tea.WithInput(t.in),
		tea.WithOutput(t.out))
	final, err := p.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(err, tea.ErrProgramKilled) {
			return nil, ErrAborted
		}
		return nil, fmt.Errorf("prompt: %w", err)
	}
	return final, nil
}

// confirmModel is a yes/no toggle.
type confirmModel struct {
	question string
	answer   bool
	aborted  bool
	done     bool
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch key.String() {
	case "ctrl+c", "esc":
		m.aborted = true
		return m, tea.Quit
	case "y", "Y":
		m.answer, m.done = true, true
		return m, tea.Quit
	case "n", "N":
		m.answer, m.done = false, true
		return m, tea.Quit
	case "left", "right", "tab", "h", "l":
		m.answer = !m.answer
	case "enter":
		m.done = true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done || m.aborted {
		return ""
	}
	yes, no := "Yes", "No"
	if m.answer {
		yes = selectedStyle.Render("[Yes]")
	} else {
		no = selectedStyle.Render("[No]")
	}
	return fmt.Sprintf("%s\n\n  %s   %s\n%s\n",
		questionStyle.Render(m.question), yes, no,
		hintStyle.Render("y/n to answer, ←/→ to toggle, enter to confirm, esc to cancel"))
}

type optionItem string

func (i optionItem) Title() string       { return string(i) }
func (i optionItem) Description() string { return "" }
func (i optionItem) FilterValue() string { return string(i) }

// chooseModel wraps a bubbles list of options.
type chooseModel struct {
	list    list.Model
	choice  string
	aborted bool
}

func newChooseModel(question string, options []string) chooseModel {
	items := make([]list.Item, len(options))
	for i, opt := range options {
		items[i] = optionItem(opt)
	}

	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = false
	delegate.SetSpacing(0)

	l := list.New(items, delegate, 40, len(options)+8)
	l.Title = question
	l.Styles.Title = questionStyle
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	return chooseModel{list: l}
}

func (m chooseModel) Init() tea.Cmd { return nil }

func (m chooseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.list.SetSize(msg.Width, min(msg.Height-2, len(m.list.Items())+8))
		return m, nil
	case tea.KeyMsg:
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "esc":
			m.aborted = true
			return m, tea.Quit
		case "enter":
			if item, ok := m.list.SelectedItem().(optionItem); ok {
				m.choice = string(item)
			}
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m chooseModel) View() string {
	if m.choice != "" || m.aborted {
		return ""
	}
	return m.list.View()
}
