package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"shadowdeck/internal/core/types"
)

// maxLogBytes bounds the backend output kept in memory.
const maxLogBytes = 256 << 10

// logModel shows backend output and, while a backend runs, its status.
type logModel struct {
	viewport viewport.Model
	buf      []byte
	width    int
	height   int

	status *types.Status
	stats  *types.Stats
}

func newLogModel() logModel {
	vp := viewport.New(0, 0)
	vp.Style = logStyle
	return logModel{viewport: vp}
}

func (lm *logModel) setSize(w, h int) {
	lm.width = w
	lm.height = h
	lm.viewport.Width = w
	lm.viewport.Height = max(h-lm.statusHeight(), 1)
	lm.refresh()
}

func (lm *logModel) statusHeight() int {
	return 2
}

// append adds output and follows the tail if the view was at the bottom.
func (lm *logModel) append(data []byte) {
	follow := lm.viewport.AtBottom()
	lm.buf = append(lm.buf, data...)
	if len(lm.buf) > maxLogBytes {
		cut := len(lm.buf) - maxLogBytes
		if nl := strings.IndexByte(string(lm.buf[cut:]), '\n'); nl >= 0 {
			cut += nl + 1
		}
		lm.buf = append([]byte(nil), lm.buf[cut:]...)
	}
	lm.refresh()
	if follow {
		lm.viewport.GotoBottom()
	}
}

// mark writes a line of our own between backend output.
func (lm *logModel) mark(line string) {
	if n := len(lm.buf); n > 0 && lm.buf[n-1] != '\n' {
		lm.buf = append(lm.buf, '\n')
	}
	lm.append([]byte(dimStyle.Render(fmt.Sprintf("--- %s %s", time.Now().Format("15:04:05"), line)) + "\n"))
}

func (lm *logModel) refresh() {
	lm.viewport.SetContent(string(lm.buf))
}

func (lm *logModel) updateStatus(msg statusResultMsg) {
	lm.status = msg.status
	lm.stats = msg.stats
}

func (lm *logModel) Update(msg tea.Msg, root *Model) tea.Cmd {
	var cmd tea.Cmd
	lm.viewport, cmd = lm.viewport.Update(msg)
	return cmd
}

func (lm *logModel) View() string {
	status := lm.renderStatus()
	var body string
	if len(lm.buf) == 0 {
		body = dimStyle.Render("No backend output yet.")
	} else {
		body = lm.viewport.View()
	}
	return forceHeight(lipgloss.JoinVertical(lipgloss.Left, status, body), lm.width, lm.height)
}

func (lm *logModel) renderStatus() string {
	if lm.status == nil || !lm.status.Running() {
		return dimStyle.Render("Backend not running") + "\n"
	}

	st := lm.status
	parts := []string{
		row("Profile", st.ProfileName),
		row("PID", fmt.Sprintf("%d", st.PID)),
		row("Uptime", formatDuration(st.Uptime)),
		row("Backend", st.BackendType.String()),
	}
	if lm.stats != nil {
		parts = append(parts,
			row("RSS", formatBytes(lm.stats.RSS)),
			row("CPU", fmt.Sprintf("%.1f%%", lm.stats.CPUPercent)),
		)
	}
	return strings.Join(parts, "  ") + "\n"
}

func row(label, value string) string {
	return cardLabelStyle.Render(label+":") + " " + cardValueStyle.Render(value)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm %ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}

func formatBytes(b uint64) string {
	const (
		kb = 1024
		mb = kb * 1024
		gb = mb * 1024
	)
	switch {
	case b >= gb:
		return fmt.Sprintf("%.1f GB", float64(b)/float64(gb))
	case b >= mb:
		return fmt.Sprintf("%.1f MB", float64(b)/float64(mb))
	case b >= kb:
		return fmt.Sprintf("%.1f KB", float64(b)/float64(kb))
	default:
		return fmt.Sprintf("%d B", b)
	}
}
