package tui

import "github.com/charmbracelet/lipgloss"

var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#1F6FB2", Dark: "#5FB3F9"}
	colorOK     = lipgloss.AdaptiveColor{Light: "#0A8F5A", Dark: "#3DD68C"}
	colorBad    = lipgloss.AdaptiveColor{Light: "#C4314B", Dark: "#F2667F"}
	colorBusy   = lipgloss.AdaptiveColor{Light: "#B86E00", Dark: "#F5B041"}
	colorFg     = lipgloss.AdaptiveColor{Light: "#1B1F24", Dark: "#E8EAED"}
	colorDimFg  = lipgloss.AdaptiveColor{Light: "#8A8F98", Dark: "#7D828A"}
	colorBorder = lipgloss.AdaptiveColor{Light: "#D0D4DA", Dark: "#3A3F45"}
)

var (
	plain  = lipgloss.NewStyle()
	bold   = plain.Bold(true)
	accent = bold.Foreground(colorAccent)

	logoStyle        = accent.PaddingRight(2)
	activeTabStyle   = accent.Underline(true).Padding(0, 2)
	inactiveTabStyle = plain.Foreground(colorDimFg).Padding(0, 2)

	pill             = bold.Foreground(lipgloss.Color("#FFFFFF")).Padding(0, 1)
	runningPillStyle = pill.Background(colorOK)
	stoppedPillStyle = pill.Background(colorBad)
	busyPillStyle    = pill.Background(colorBusy)
	dirtyStyle       = bold.Foreground(colorBusy).PaddingRight(1)

	helpBarStyle  = plain.Foreground(colorDimFg).Padding(0, 1)
	helpKeyStyle  = accent
	helpDescStyle = plain.Foreground(colorDimFg)
	helpSepStyle  = plain.Foreground(colorBorder)

	titleStyle     = accent.MarginBottom(1)
	warningStyle   = plain.Foreground(colorBusy)
	dimStyle       = plain.Foreground(colorDimFg)
	cardTitleStyle = accent.MarginBottom(1)
	cardLabelStyle = plain.Foreground(colorDimFg)
	cardValueStyle = plain.Foreground(colorFg)
	logStyle       = plain.Foreground(colorFg)
	spinnerStyle   = plain.Foreground(colorAccent)

	promptStyle = plain.
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorAccent).
			Padding(1, 2)

	notifSuccessStyle = bold.Foreground(colorOK).Padding(0, 1)
	notifErrorStyle   = bold.Foreground(colorBad).Padding(0, 1)
)
