package tui

import "github.com/charmbracelet/bubbles/key"

type keyMap struct {
	Quit, Help       key.Binding
	TabNext, TabPrev key.Binding
	Enter, Back      key.Binding
	Up, Down         key.Binding
	Start, Stop      key.Binding
	Add, Duplicate   key.Binding
	Delete, Import   key.Binding
	Test, TestAll    key.Binding
	Save, Revert     key.Binding
}

// bind builds a binding whose help key is the first key unless label is set.
func bind(desc, label string, keys ...string) key.Binding {
	if label == "" {
		label = keys[0]
	}
	return key.NewBinding(key.WithKeys(keys...), key.WithHelp(label, desc))
}

var keys = keyMap{
	Quit:      bind("quit", "q", "q", "ctrl+c"),
	Help:      bind("help", "", "?"),
	TabNext:   bind("next tab", "", "tab"),
	TabPrev:   bind("prev tab", "", "shift+tab"),
	Enter:     bind("select", "", "enter"),
	Back:      bind("back", "", "esc"),
	Up:        bind("up", "↑/k", "up", "k"),
	Down:      bind("down", "↓/j", "down", "j"),
	Start:     bind("start", "", "s"),
	Stop:      bind("stop", "", "S"),
	Add:       bind("add", "", "a"),
	Duplicate: bind("duplicate", "", "D"),
	Delete:    bind("delete", "", "x"),
	Import:    bind("import links", "", "i"),
	Test:      bind("test latency", "", "t"),
	TestAll:   bind("test all", "", "T"),
	Save:      bind("save", "", "ctrl+s"),
	Revert:    bind("revert", "", "ctrl+r"),
}

// ShortHelp is the one-line help bar.
func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.TabNext, k.Start, k.Stop, k.Add, k.Save, k.Help, k.Quit}
}

// FullHelp is the expanded help, one group per line.
func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.TabNext, k.TabPrev, k.Enter, k.Back},
		{k.Start, k.Stop, k.Test, k.TestAll},
		{k.Add, k.Duplicate, k.Delete, k.Import},
		{k.Save, k.Revert, k.Help, k.Quit},
	}
}
