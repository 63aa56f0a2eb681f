package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"shadowdeck/internal/storage/models"
)

var fieldLabels = map[models.Field]string{
	models.FieldName:       "Name",
	models.FieldServer:     "Server",
	models.FieldServerPort: "Server Port",
	models.FieldPassword:   "Password",
	models.FieldLocalAddr:  "Local Address",
	models.FieldLocalPort:  "Local Port",
	models.FieldMethod:     "Method",
	models.FieldTimeout:    "Timeout (s)",
}

// editModel holds one text input per profile field. Every change is pushed
// into the session's working copy.
type editModel struct {
	inputs []textinput.Model
	cursor int
	width  int
	height int
	// invalid is the message of the last validation, shown under the form.
	invalid string
}

func newEditModel() editModel {
	inputs := make([]textinput.Model, len(models.Fields))
	for i, f := range models.Fields {
		ti := textinput.New()
		ti.CharLimit = 256
		ti.Prompt = ""
		ti.TextStyle = lipgloss.NewStyle().Foreground(colorFg)
		switch f {
		case models.FieldPassword:
			ti.EchoMode = textinput.EchoPassword
			ti.EchoCharacter = '•'
		case models.FieldMethod:
			ti.ShowSuggestions = true
			ti.SetSuggestions(models.Methods)
			ti.KeyMap.AcceptSuggestion = key.NewBinding(key.WithKeys("right"))
		}
		inputs[i] = ti
	}
	inputs[0].Focus()
	return editModel{inputs: inputs}
}

func (em *editModel) setSize(w, h int) {
	em.width = w
	em.height = h
	for i := range em.inputs {
		em.inputs[i].Width = w / 2
	}
}

// load fills the inputs from p without reporting changes.
func (em *editModel) load(p models.Profile) {
	for i, f := range models.Fields {
		em.inputs[i].SetValue(p.Get(f))
		em.inputs[i].CursorEnd()
	}
}

func (em *editModel) move(dir int) {
	em.inputs[em.cursor].Blur()
	em.cursor = (em.cursor + dir + len(em.inputs)) % len(em.inputs)
	em.inputs[em.cursor].Focus()
}

func (em *editModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	s := root.session

	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, keys.Save):
			if err := s.Save(); err != nil {
				root.notifyErr("Save failed", err)
				return nil
			}
			root.profileChanged()
			em.validate(root)
			root.notify("Profile saved")
			return nil

		case key.Matches(km, keys.Revert):
			if err := s.Revert(); err != nil {
				root.notifyErr("Revert failed", err)
				return nil
			}
			em.load(s.Working())
			em.invalid = ""
			root.notify("Changes reverted")
			return nil

		case km.String() == "up":
			em.move(-1)
			return nil

		case km.String() == "down", km.String() == "enter":
			em.move(1)
			return nil
		}
	}

	if root.session.Store().Len() == 0 {
		return nil
	}

	var cmd tea.Cmd
	before := em.inputs[em.cursor].Value()
	em.inputs[em.cursor], cmd = em.inputs[em.cursor].Update(msg)
	if after := em.inputs[em.cursor].Value(); after != before {
		if err := s.SetField(models.Fields[em.cursor], after); err != nil {
			root.notifyErr("Edit failed", err)
		}
		em.invalid = ""
	}
	return cmd
}

// validate records why the working copy cannot be started, if it cannot.
func (em *editModel) validate(root *Model) {
	em.invalid = ""
	if err := root.session.Validate(); err != nil {
		em.invalid = err.Error()
	}
}

func (em *editModel) View(root *Model) string {
	var b strings.Builder

	title := "Edit profile"
	if root.session.Store().Len() == 0 {
		b.WriteString(titleStyle.Render(title))
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("No profile to edit."))
		return forceHeight(b.String(), em.width, em.height)
	}
	if root.session.ProfileDirty() {
		title += " (modified)"
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	for i, f := range models.Fields {
		style := lipgloss.NewStyle().Foreground(colorFg).Width(18)
		marker := "  "
		if i == em.cursor {
			style = style.Bold(true).Foreground(colorAccent)
			marker = "> "
		}
		b.WriteString(style.Render(marker+fieldLabels[f]) + em.inputs[i].View() + "\n")
	}

	b.WriteString("\n")
	if em.invalid != "" {
		b.WriteString(warningStyle.Render("Not ready to start: "+em.invalid) + "\n")
	}
	b.WriteString(dimStyle.Render("ctrl+s save · ctrl+r revert · ↑/↓ move · → complete method"))

	return forceHeight(b.String(), em.width, em.height)
}
