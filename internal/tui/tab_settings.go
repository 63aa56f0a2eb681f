package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"shadowdeck/internal/core/types"
	"shadowdeck/internal/session"
)

// settingKind distinguishes the ways a setting is edited.
type settingKind int

const (
	settingToggle settingKind = iota // On/off flag.
	settingChoice                    // Cycle through predefined options.
	settingText                      // Free-text input.
)

// settingDef defines a setting's display metadata and how it reaches the
// session.
type settingDef struct {
	label       string
	description string
	kind        settingKind
	choices     []string // Only for settingChoice.

	get func(s *session.Session) string
	set func(s *session.Session, v string)
}

func boolString(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func backendChoices() []string {
	out := make([]string, len(types.BackendTypes))
	for i, t := range types.BackendTypes {
		out[i] = t.String()
	}
	return out
}

var settingDefs = []settingDef{
	{
		label: "Auto Hide", description: "Switch to the log when the backend starts", kind: settingToggle,
		get: func(s *session.Session) string { return boolString(s.Store().AutoHide()) },
		set: func(s *session.Session, v string) { s.SetAutoHide(v == "on") },
	},
	{
		label: "Auto Start", description: "Start the backend when shadowdeck opens", kind: settingToggle,
		get: func(s *session.Session) string { return boolString(s.Store().AutoStart()) },
		set: func(s *session.Session, v string) { s.SetAutoStart(v == "on") },
	},
	{
		label: "Debug", description: "Verbose backend output and debug logging", kind: settingToggle,
		get: func(s *session.Session) string { return boolString(s.Store().Debug()) },
		set: func(s *session.Session, v string) { s.SetDebug(v == "on") },
	},
	{
		label: "Backend", description: "Shadowsocks implementation to launch", kind: settingChoice,
		choices: backendChoices(),
		get:     func(s *session.Session) string { return s.Store().BackendType().String() },
		set: func(s *session.Session, v string) {
			if t, err := types.ParseBackendType(v); err == nil {
				s.SetBackendType(t)
			}
		},
	},
	{
		label: "Backend Path", description: "Executable to launch; the kind follows the file name", kind: settingText,
		get: func(s *session.Session) string { return s.Store().BackendPath() },
		set: func(s *session.Session, v string) { s.SetBackendPath(v) },
	},
}

type settingsModel struct {
	cursor  int
	editing bool
	input   textinput.Model
	width   int
	height  int
}

func newSettingsModel() settingsModel {
	ti := textinput.New()
	ti.CharLimit = 1024
	ti.Prompt = "> "
	ti.PromptStyle = lipgloss.NewStyle().Foreground(colorAccent)
	ti.TextStyle = lipgloss.NewStyle().Foreground(colorFg)

	return settingsModel{input: ti}
}

func (sm *settingsModel) setSize(w, h int) {
	sm.width = w
	sm.height = h
	sm.input.Width = w / 2
}

func (sm *settingsModel) currentDef() settingDef {
	if sm.cursor >= 0 && sm.cursor < len(settingDefs) {
		return settingDefs[sm.cursor]
	}
	return settingDefs[0]
}

// choiceIndex returns the position of the current value in def.choices.
func choiceIndex(def settingDef, val string) int {
	for i, c := range def.choices {
		if c == val {
			return i
		}
	}
	return 0
}

func (sm *settingsModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	if sm.editing {
		return sm.updateEditing(msg, root)
	}

	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}
	s := root.session
	def := sm.currentDef()

	switch {
	case key.Matches(km, keys.Save):
		if err := s.SaveMisc(); err != nil {
			root.notifyErr("Save failed", err)
			return nil
		}
		root.notify("Settings saved")
		return nil
	case key.Matches(km, keys.Up):
		if sm.cursor > 0 {
			sm.cursor--
		}
	case key.Matches(km, keys.Down):
		if sm.cursor < len(settingDefs)-1 {
			sm.cursor++
		}
	case km.String() == "enter", km.String() == " ":
		switch def.kind {
		case settingToggle:
			sm.toggle(root, def)
		case settingChoice:
			sm.cycleChoice(root, def, 1)
		case settingText:
			sm.editing = true
			sm.input.SetValue(def.get(s))
			sm.input.CursorEnd()
			sm.input.Focus()
			return textinput.Blink
		}
	case km.String() == "left", km.String() == "h":
		if def.kind == settingChoice {
			sm.cycleChoice(root, def, -1)
		}
	case km.String() == "right", km.String() == "l":
		if def.kind == settingChoice {
			sm.cycleChoice(root, def, 1)
		}
	}
	return nil
}

func (sm *settingsModel) toggle(root *Model, def settingDef) {
	if def.get(root.session) == "on" {
		def.set(root.session, "off")
	} else {
		def.set(root.session, "on")
	}
}

// cycleChoice moves to the next or previous choice.
func (sm *settingsModel) cycleChoice(root *Model, def settingDef, dir int) {
	idx := choiceIndex(def, def.get(root.session))
	idx = (idx + dir + len(def.choices)) % len(def.choices)
	def.set(root.session, def.choices[idx])
	root.notify(fmt.Sprintf("%s: %s (%s)", def.label, def.get(root.session), orNotFound(root.session.Store().BackendPath())))
}

func (sm *settingsModel) updateEditing(msg tea.Msg, root *Model) tea.Cmd {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, keys.Back):
			sm.editing = false
			sm.input.Blur()
			return nil
		case km.String() == "enter":
			sm.editing = false
			sm.input.Blur()
			def := sm.currentDef()
			def.set(root.session, strings.TrimSpace(sm.input.Value()))
			return nil
		}
	}

	var cmd tea.Cmd
	sm.input, cmd = sm.input.Update(msg)
	return cmd
}

func (sm *settingsModel) View(root *Model) string {
	var b strings.Builder
	s := root.session

	title := "Settings"
	if s.MiscDirty() {
		title += " (modified)"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	for i, def := range settingDefs {
		isSelected := i == sm.cursor
		val := def.get(s)
		if def.kind == settingText && val == "" {
			val = "not found"
		}

		var line string
		if isSelected {
			label := lipgloss.NewStyle().Bold(true).Foreground(colorAccent).Width(18).Render("> " + def.label)
			switch {
			case sm.editing:
				line = label + sm.input.View()
			case def.kind == settingChoice:
				line = label + renderChoices(def, val)
			default:
				line = label + lipgloss.NewStyle().Foreground(colorFg).Render(val)
			}
		} else {
			label := lipgloss.NewStyle().Foreground(colorFg).Width(18).Render("  " + def.label)
			line = label + lipgloss.NewStyle().Foreground(colorDimFg).Render(val)
		}
		b.WriteString(line + "\n")

		if isSelected && !sm.editing {
			hint := def.description
			switch def.kind {
			case settingToggle:
				hint += "  (enter/space to toggle)"
			case settingChoice:
				hint += "  (enter/arrows to change)"
			default:
				hint += "  (enter to edit)"
			}
			b.WriteString(lipgloss.NewStyle().
				Foreground(colorDimFg).
				PaddingLeft(2).
				Render("  "+hint) + "\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(dimStyle.Render("ctrl+s saves settings; backend changes are saved with the profile"))

	return forceHeight(b.String(), sm.width, sm.height)
}

// renderChoices renders the choice selector with the active choice highlighted.
func renderChoices(def settingDef, current string) string {
	var parts []string
	for _, c := range def.choices {
		if c == current {
			parts = append(parts, lipgloss.NewStyle().
				Bold(true).
				Foreground(colorAccent).
				Render("["+c+"]"))
		} else {
			parts = append(parts, lipgloss.NewStyle().
				Foreground(colorDimFg).
				Render(" "+c+" "))
		}
	}
	return strings.Join(parts, " ")
}

func orNotFound(path string) string {
	if path == "" {
		return "backend not found"
	}
	return path
}
