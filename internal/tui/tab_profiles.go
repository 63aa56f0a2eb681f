package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"shadowdeck/internal/session"
	"shadowdeck/internal/storage/models"
)

type profilesModel struct {
	table     table.Model
	profiles  []models.Profile
	latencies map[string]string
	current   int
	width     int
	height    int

	// Testing state.
	testingSingle bool
	testingBatch  bool
	batchProgress progress.Model
	batchCurrent  int
	batchTotal    int
}

func profileColumns(w int) []table.Column {
	nameW, serverW := 24, 28
	if w > 100 {
		nameW = w/4 - 2
		serverW = w/4 + 2
	}
	return []table.Column{
		{Title: " ", Width: 1},
		{Title: "Name", Width: nameW},
		{Title: "Server", Width: serverW},
		{Title: "Method", Width: 24},
		{Title: "Local", Width: 16},
		{Title: "Latency", Width: 8},
	}
}

func newProfilesModel() profilesModel {
	t := table.New(
		table.WithColumns(profileColumns(0)),
		table.WithFocused(true),
		table.WithHeight(10),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorBorder).
		BorderBottom(true).
		Bold(true).
		Foreground(colorAccent)
	s.Selected = s.Selected.
		Foreground(colorFg).
		Background(lipgloss.AdaptiveColor{Light: "#DCEBFA", Dark: "#16324A"}).
		Bold(true)
	t.SetStyles(s)

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithoutPercentage(),
	)

	return profilesModel{
		table:         t,
		latencies:     make(map[string]string),
		current:       -1,
		batchProgress: p,
	}
}

func (pm *profilesModel) setSize(w, h int) {
	pm.width = w
	pm.height = h
	pm.adjustTableHeight()
	pm.table.SetColumns(profileColumns(w))
	pm.batchProgress.Width = w - 4
}

// adjustTableHeight leaves room for the testing indicator line.
func (pm *profilesModel) adjustTableHeight() {
	overhead := 0
	if pm.testingSingle || pm.testingBatch {
		overhead++
	}
	th := pm.height - overhead
	if th < 1 {
		th = 1
	}
	pm.table.SetHeight(th)
}

// setProfiles refreshes the rows. The cursor stays on the same row index
// when possible.
func (pm *profilesModel) setProfiles(profiles []models.Profile, current int) {
	pm.profiles = profiles
	pm.current = current
	pm.renderRows()

	cursor := pm.table.Cursor()
	if cursor >= len(profiles) || cursor < 0 {
		cursor = current
	}
	if cursor < 0 {
		cursor = 0
	}
	pm.table.SetCursor(cursor)
}

func (pm *profilesModel) setLatencies(l map[string]string) {
	pm.latencies = l
	pm.renderRows()
}

func (pm *profilesModel) renderRows() {
	rows := make([]table.Row, len(pm.profiles))
	for i, p := range pm.profiles {
		marker := ""
		if i == pm.current {
			marker = "*"
		}
		lat := pm.latencies[p.Name]
		if lat == "" {
			lat = "-"
		}
		name := p.Name
		if name == "" {
			name = "(unnamed)"
		}
		rows[i] = table.Row{
			marker,
			truncate(name, 40),
			truncate(p.Server+":"+p.ServerPort, 40),
			p.Method,
			p.LocalAddr + ":" + p.LocalPort,
			lat,
		}
	}
	pm.table.SetRows(rows)
}

func (pm *profilesModel) selectedIndex() int {
	idx := pm.table.Cursor()
	if idx >= 0 && idx < len(pm.profiles) {
		return idx
	}
	return -1
}

func (pm *profilesModel) updateProgress(msg latencyTestProgressMsg) {
	pm.batchCurrent = msg.current
	pm.batchTotal = msg.total
}

func (pm *profilesModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	if km, ok := msg.(tea.KeyMsg); ok {
		s := root.session
		idx := pm.selectedIndex()

		switch {
		case key.Matches(km, keys.Enter):
			if idx >= 0 && idx != s.CurrentIndex() {
				return root.withConfirm(root.profilePending(), func(confirm session.ConfirmFunc) tea.Cmd {
					if err := s.Select(idx, confirm); err != nil {
						root.notifyErr("Select failed", err)
						return nil
					}
					root.profileChanged()
					root.notify(fmt.Sprintf("Selected %s", s.Working().Name))
					return nil
				})
			}
			return nil

		case key.Matches(km, keys.Add):
			return root.askAddProfile(false)

		case key.Matches(km, keys.Duplicate):
			if idx >= 0 {
				return root.withConfirm(root.profilePending(), func(confirm session.ConfirmFunc) tea.Cmd {
					if _, err := s.DuplicateProfile(idx, confirm); err != nil {
						root.notifyErr("Duplicate failed", err)
						return nil
					}
					root.profileChanged()
					root.notify(fmt.Sprintf("Added %s", s.Working().Name))
					return nil
				})
			}
			return nil

		case key.Matches(km, keys.Delete):
			if idx >= 0 {
				name := pm.profiles[idx].Name
				root.prompt = confirmPrompt("Delete profile",
					fmt.Sprintf("Delete profile %q?", name),
					func(yes bool) tea.Cmd {
						if !yes {
							return nil
						}
						if err := s.DeleteProfile(idx); err != nil {
							root.notifyErr("Delete failed", err)
							return nil
						}
						root.profileChanged()
						root.notify(fmt.Sprintf("Deleted %s", name))
						return nil
					})
			}
			return nil

		case key.Matches(km, keys.Import):
			return root.askImport()

		case key.Matches(km, keys.Test):
			if idx >= 0 && !pm.testingSingle && !pm.testingBatch {
				pm.testingSingle = true
				pm.adjustTableHeight()
				return testSingleLatency(root.tester, pm.profiles[idx])
			}
			return nil

		case key.Matches(km, keys.TestAll):
			if len(pm.profiles) > 0 && !pm.testingBatch && !pm.testingSingle {
				pm.testingBatch = true
				pm.batchCurrent = 0
				pm.batchTotal = len(pm.profiles)
				pm.adjustTableHeight()
				return testBatchLatency(root.tester, pm.profiles, root.send)
			}
			return nil
		}
	}

	var cmd tea.Cmd
	pm.table, cmd = pm.table.Update(msg)
	return cmd
}

func (pm *profilesModel) View(s spinner.Model) string {
	var b strings.Builder

	if pm.testingSingle {
		b.WriteString(s.View() + " Testing latency...\n")
	} else if pm.testingBatch {
		pct := 0.0
		if pm.batchTotal > 0 {
			pct = float64(pm.batchCurrent) / float64(pm.batchTotal)
		}
		b.WriteString(fmt.Sprintf("%s Testing %d/%d ", s.View(), pm.batchCurrent, pm.batchTotal))
		b.WriteString(pm.batchProgress.ViewAs(pct))
		b.WriteString("\n")
	}

	if len(pm.profiles) == 0 {
		b.WriteString(dimStyle.Render("No profiles. Press 'a' to add one or 'i' to import links."))
	} else {
		b.WriteString(pm.table.View())
	}

	return forceHeight(b.String(), pm.width, pm.height)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-1] + "~"
}
