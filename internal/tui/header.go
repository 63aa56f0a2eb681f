package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"shadowdeck/internal/core/types"
)

var tabNames = [tabCount]string{"Profiles", "Edit", "Log", "Settings"}

// headerState is what the header shows besides the tabs.
type headerState struct {
	state        types.State
	profile      string
	profileDirty bool
	miscDirty    bool
}

func renderPill(h headerState) string {
	switch h.state {
	case types.StateRunning:
		return runningPillStyle.Render(strings.TrimSpace("RUNNING " + h.profile))
	case types.StateStarting:
		return busyPillStyle.Render("STARTING")
	case types.StateStopping:
		return busyPillStyle.Render("STOPPING")
	}
	return stoppedPillStyle.Render("STOPPED")
}

func rule(width int) string {
	return plain.Foreground(colorBorder).Render(strings.Repeat("─", max(width, 0)))
}

// renderHeader draws the logo and backend pill on one line, the tab bar
// below and a rule under both.
func renderHeader(activeTab int, h headerState, width int) string {
	right := renderPill(h)
	if h.miscDirty {
		right = dirtyStyle.Render("● settings") + right
	}
	if h.profileDirty {
		right = dirtyStyle.Render("● profile") + right
	}
	left := logoStyle.Render("SHADOWDECK")
	gap := max(width-lipgloss.Width(left)-lipgloss.Width(right), 1)

	tabs := make([]string, len(tabNames))
	for i, name := range tabNames {
		style := inactiveTabStyle
		if i == activeTab {
			style = activeTabStyle
		}
		tabs[i] = style.Render(name)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		left+strings.Repeat(" ", gap)+right,
		lipgloss.JoinHorizontal(lipgloss.Bottom, tabs...),
		rule(width),
	)
}

func renderFooter(helpText string, width int) string {
	return lipgloss.JoinVertical(lipgloss.Left, rule(width), helpBarStyle.Render(helpText))
}

func helpLine(bindings []key.Binding, sep string) string {
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		if b.Enabled() {
			parts = append(parts, helpKeyStyle.Render(b.Help().Key)+" "+helpDescStyle.Render(b.Help().Desc))
		}
	}
	return strings.Join(parts, helpSepStyle.Render(sep))
}

func renderHelpBar(full bool) string {
	if !full {
		return helpLine(keys.ShortHelp(), " | ")
	}
	groups := keys.FullHelp()
	lines := make([]string, len(groups))
	for i, g := range groups {
		lines[i] = helpLine(g, "  ")
	}
	return strings.Join(lines, "\n")
}
