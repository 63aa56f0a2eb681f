package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"shadowdeck/internal/session"
)

// prompt is a modal question drawn over the active tab. A prompt either asks
// yes/no or collects one or more text values.
type prompt struct {
	title    string
	question string
	inputs   []textinput.Model
	focus    int

	// onAnswer receives a yes/no answer; used when inputs is empty.
	onAnswer func(yes bool) tea.Cmd
	// onSubmit receives the input values.
	onSubmit func(values []string) tea.Cmd
	// onCancel runs on esc. Nil means esc just closes the prompt.
	onCancel func() tea.Cmd
}

func newInput(placeholder string) textinput.Model {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 2048
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorAccent)
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorFg)
	ti.Width = 48
	return ti
}

// confirmPrompt asks a yes/no question.
func confirmPrompt(title, question string, onAnswer func(yes bool) tea.Cmd) *prompt {
	return &prompt{title: title, question: question, onAnswer: onAnswer}
}

// inputPrompt asks for one value per placeholder.
func inputPrompt(title, question string, placeholders []string, onSubmit func([]string) tea.Cmd) *prompt {
	p := &prompt{title: title, question: question, onSubmit: onSubmit}
	for _, ph := range placeholders {
		p.inputs = append(p.inputs, newInput(ph))
	}
	p.inputs[0].Focus()
	return p
}

// update handles a key for the prompt. done reports that the prompt closed.
func (p *prompt) update(msg tea.Msg) (cmd tea.Cmd, done bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		if len(p.inputs) > 0 {
			p.inputs[p.focus], cmd = p.inputs[p.focus].Update(msg)
		}
		return cmd, false
	}

	if key.Matches(km, keys.Back) {
		if p.onCancel != nil {
			return p.onCancel(), true
		}
		return nil, true
	}

	if len(p.inputs) == 0 {
		switch strings.ToLower(km.String()) {
		case "y":
			return p.onAnswer(true), true
		case "n":
			return p.onAnswer(false), true
		}
		return nil, false
	}

	switch km.String() {
	case "enter":
		if p.focus < len(p.inputs)-1 {
			p.move(1)
			return nil, false
		}
		values := make([]string, len(p.inputs))
		for i, in := range p.inputs {
			values[i] = strings.TrimSpace(in.Value())
		}
		return p.onSubmit(values), true
	case "up", "shift+tab":
		p.move(-1)
		return nil, false
	case "down", "tab":
		p.move(1)
		return nil, false
	}

	p.inputs[p.focus], cmd = p.inputs[p.focus].Update(msg)
	return cmd, false
}

func (p *prompt) move(dir int) {
	p.inputs[p.focus].Blur()
	p.focus = (p.focus + dir + len(p.inputs)) % len(p.inputs)
	p.inputs[p.focus].Focus()
}

func (p *prompt) view(width int) string {
	var b strings.Builder
	b.WriteString(cardTitleStyle.Render(p.title))
	b.WriteString("\n")
	b.WriteString(p.question)
	b.WriteString("\n\n")

	if len(p.inputs) == 0 {
		b.WriteString(helpKeyStyle.Render("y") + helpDescStyle.Render(" yes  "))
		b.WriteString(helpKeyStyle.Render("n") + helpDescStyle.Render(" no  "))
		b.WriteString(helpKeyStyle.Render("esc") + helpDescStyle.Render(" cancel"))
	} else {
		for _, in := range p.inputs {
			b.WriteString(in.View())
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(helpKeyStyle.Render("enter") + helpDescStyle.Render(" next/confirm  "))
		b.WriteString(helpKeyStyle.Render("esc") + helpDescStyle.Render(" cancel"))
	}

	w := width - 8
	if w > 72 {
		w = 72
	}
	if w < 30 {
		w = 30
	}
	return promptStyle.Width(w).Render(b.String())
}

// pendingQuestion is the confirmation text for unsaved changes of kind p.
func pendingQuestion(p session.Pending) string {
	if p == session.PendingMisc {
		return "Settings have unsaved changes. Save them?"
	}
	return "The current profile has unsaved changes. Save them?"
}
