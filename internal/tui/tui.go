// Package tui is the full-screen terminal front end. It drives the editing
// session and shows what the backend controller reports on the event bus.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"shadowdeck/internal/core/types"
	"shadowdeck/internal/events"
	"shadowdeck/internal/latency"
	"shadowdeck/internal/session"
	"shadowdeck/internal/storage"
	"shadowdeck/internal/subscription"
	pkgerrors "shadowdeck/pkg/errors"
)

// Tab indices.
const (
	tabProfiles = 0
	tabEdit     = 1
	tabLog      = 2
	tabSettings = 3
	tabCount    = 4
)

// Backend is the read side of the process controller plus shutdown.
type Backend interface {
	State() types.State
	Status() *types.Status
	Stats() (*types.Stats, error)
	Logs() (io.ReadCloser, error)
	Shutdown(ctx context.Context) error
}

// Deps holds all dependencies injected into the TUI.
type Deps struct {
	Session  *session.Session
	Backend  Backend
	Bus      *events.Bus
	Tester   *latency.Tester
	Importer *subscription.Importer
	History  storage.History // may be nil
	// NewProbeScheduler builds the periodic latency prober. It may return
	// nil when probing is disabled.
	NewProbeScheduler func(onResult func(*latency.BatchResult)) (*latency.Scheduler, error)
	// StopTimeout bounds the backend shutdown on quit.
	StopTimeout time.Duration
	Logger      *slog.Logger
}

// Model is the root BubbleTea model.
type Model struct {
	// Dependencies.
	session   *session.Session
	backend   Backend
	tester    *latency.Tester
	importer  *subscription.Importer
	history   storage.History
	scheduler *latency.Scheduler
	logger    *slog.Logger
	stopAfter time.Duration

	// send delivers messages from background work; set by NewProgram.
	send func(tea.Msg)

	// Dimensions.
	width  int
	height int

	// Navigation.
	activeTab int
	showHelp  bool

	// Tab models.
	profilesTab profilesModel
	editTab     editModel
	logTab      logModel
	settingsTab settingsModel

	// prompt, when set, receives all keys.
	prompt *prompt

	starting bool
	quitting bool

	// Notification.
	notification    string
	notificationErr bool
	notifVersion    int

	// Spinner for async operations.
	spinner spinner.Model
}

// NewModel creates a new root Model.
func NewModel(deps Deps) *Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = spinnerStyle

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	stopAfter := deps.StopTimeout
	if stopAfter <= 0 {
		stopAfter = 5 * time.Second
	}

	m := &Model{
		session:     deps.Session,
		backend:     deps.Backend,
		tester:      deps.Tester,
		importer:    deps.Importer,
		history:     deps.History,
		logger:      logger.With("component", "tui"),
		stopAfter:   stopAfter + 2*time.Second,
		send:        func(tea.Msg) {},
		activeTab:   tabProfiles,
		spinner:     s,
		profilesTab: newProfilesModel(),
		editTab:     newEditModel(),
		logTab:      newLogModel(),
		settingsTab: newSettingsModel(),
	}
	m.profileChanged()
	return m
}

func (m *Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.spinner.Tick,
		loadPreviousLog(m.backend),
		m.reloadLatencies(),
	}
	if m.scheduler != nil {
		s := m.scheduler
		cmds = append(cmds, func() tea.Msg {
			if err := s.Start(context.Background()); err != nil {
				m.logger.Warn("probe scheduler did not start", "error", err)
			}
			return nil
		})
	}

	// An empty store publishes EmptyStore, which opens the add prompt.
	if m.session.EnsureProfile() && m.session.AutoStartReady() {
		m.starting = true
		cmds = append(cmds, startBackend(m.session, nil))
	}
	return tea.Batch(cmds...)
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	prevNotifVersion := m.notifVersion

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		ch := m.contentHeight()
		m.profilesTab.setSize(msg.Width, ch)
		m.editTab.setSize(msg.Width, ch)
		m.logTab.setSize(msg.Width, ch)
		m.settingsTab.setSize(msg.Width, ch)
		return m, nil

	case tea.KeyMsg:
		if p := m.prompt; p != nil {
			cmd, done := p.update(msg)
			// Answering may already have opened the next prompt.
			if done && m.prompt == p {
				m.prompt = nil
			}
			return m, m.withNotification(prevNotifVersion, cmd)
		}
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, m.withNotification(prevNotifVersion, cmd)
		}

	case eventMsg:
		cmds = append(cmds, m.handleEvent(msg.event))

	// Backend.
	case startResultMsg:
		m.starting = false
		if msg.err != nil {
			m.notifyErr("Start failed", msg.err)
			m.logTab.mark("start failed: " + msg.err.Error())
			if errors.Is(msg.err, pkgerrors.ErrProfileInvalid) {
				m.editTab.validate(m)
				m.activeTab = tabEdit
			}
		}
	case shutdownDoneMsg:
		if msg.err != nil {
			m.logger.Warn("backend shutdown", "error", msg.err)
		}
		return m, tea.Quit

	// Status polling.
	case statusTickMsg:
		if m.backend.State() != types.StateIdle {
			cmds = append(cmds, pollStatus(m.backend), statusTick())
		}
	case statusResultMsg:
		m.logTab.updateStatus(msg)

	case previousLogMsg:
		if len(msg.data) > 0 && len(m.logTab.buf) == 0 {
			m.logTab.append(msg.data)
			m.logTab.mark("output of the previous run")
		}

	// Latency.
	case latenciesLoadedMsg:
		m.profilesTab.setLatencies(msg.latencies)
	case latencyTestProgressMsg:
		m.profilesTab.updateProgress(msg)
	case latencyTestDoneMsg:
		m.profilesTab.testingBatch = false
		m.profilesTab.adjustTableHeight()
		m.notify(fmt.Sprintf("Tested %d: %d ok, %d failed",
			msg.batch.Tested, msg.batch.Succeeded, msg.batch.Failed))
		cmds = append(cmds, m.reloadLatencies())
	case singleLatencyDoneMsg:
		m.profilesTab.testingSingle = false
		m.profilesTab.adjustTableHeight()
		if msg.result.Latency.Success {
			m.notify(fmt.Sprintf("%s: %dms", msg.result.Profile.Name, *msg.result.Latency.LatencyMS))
		} else {
			m.setNotification(fmt.Sprintf("%s: failed (%s)", msg.result.Profile.Name, msg.result.Latency.ErrorMessage), true)
		}
		cmds = append(cmds, m.reloadLatencies())
	case probeResultMsg:
		cmds = append(cmds, m.reloadLatencies())

	// Import.
	case importResultMsg:
		cmds = append(cmds, m.handleImport(msg))

	// Notification.
	case clearNotificationMsg:
		if msg.version == m.notifVersion {
			m.notification = ""
			m.notificationErr = false
		}
	}

	// Spinner.
	var spin tea.Cmd
	m.spinner, spin = m.spinner.Update(msg)
	cmds = append(cmds, spin)

	// Delegate to the prompt or the active tab.
	if m.prompt != nil {
		cmd, _ := m.prompt.update(msg)
		cmds = append(cmds, cmd)
	} else {
		switch m.activeTab {
		case tabProfiles:
			cmds = append(cmds, m.profilesTab.Update(msg, m))
		case tabEdit:
			cmds = append(cmds, m.editTab.Update(msg, m))
		case tabLog:
			cmds = append(cmds, m.logTab.Update(msg, m))
		case tabSettings:
			cmds = append(cmds, m.settingsTab.Update(msg, m))
		}
	}

	return m, m.withNotification(prevNotifVersion, tea.Batch(cmds...))
}

// withNotification schedules the auto-clear of a notification set since
// prev.
func (m *Model) withNotification(prev int, cmd tea.Cmd) tea.Cmd {
	if m.notifVersion > prev && m.notification != "" {
		return tea.Batch(cmd, clearNotification(4*time.Second, m.notifVersion))
	}
	return cmd
}

// handleEvent reacts to controller and session notifications.
func (m *Model) handleEvent(e events.Event) tea.Cmd {
	switch ev := e.(type) {
	case events.Started:
		m.logTab.mark(fmt.Sprintf("started %s (pid %d) listening on %s", ev.ProfileName, ev.PID, ev.Local))
		m.notify(fmt.Sprintf("Started %s", ev.ProfileName))
		if m.session.Store().AutoHide() {
			m.activeTab = tabLog
		}
		return tea.Batch(pollStatus(m.backend), statusTick())

	case events.Output:
		m.logTab.append(ev.Data)

	case events.Stopped:
		switch {
		case ev.Requested:
			m.logTab.mark("stopped")
			m.notify("Backend stopped")
		case ev.Err != nil:
			m.logTab.mark(fmt.Sprintf("backend exited (code %d): %v", ev.ExitCode, ev.Err))
			m.setNotification(fmt.Sprintf("Backend exited unexpectedly (code %d)", ev.ExitCode), true)
		default:
			m.logTab.mark(fmt.Sprintf("backend exited (code %d)", ev.ExitCode))
			m.setNotification("Backend exited", ev.ExitCode != 0)
		}
		m.logTab.updateStatus(statusResultMsg{status: m.backend.Status()})

	case events.SpawnFailed:
		m.logTab.mark("failed to start backend: " + ev.Err.Error())

	case events.ProfileSelected:
		m.profileChanged()

	case events.EmptyStore:
		if m.prompt == nil && !m.quitting {
			return m.askAddProfile(true)
		}

	case events.MiscChanged, events.ConfigChanged:
		// Dirty markers are read from the session when rendering.
	}
	return nil
}

func (m *Model) handleImport(msg importResultMsg) tea.Cmd {
	if msg.err != nil && msg.result == nil {
		m.notifyErr("Import failed", msg.err)
		return nil
	}
	r := msg.result
	if r.Added > 0 && !m.session.ProfileDirty() {
		m.session.Refresh(nil)
	}
	m.profileChanged()
	if msg.err != nil {
		m.notifyErr("Import failed", msg.err)
	} else {
		m.setNotification(fmt.Sprintf("Imported %d, skipped %d, failed %d", r.Added, r.Skipped, r.Failed), r.Added == 0 && r.Failed > 0)
	}
	return m.reloadLatencies()
}

func (m *Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	header := renderHeader(m.activeTab, headerState{
		state:        m.backend.State(),
		profile:      m.session.Working().Name,
		profileDirty: m.session.ProfileDirty(),
		miscDirty:    m.session.MiscDirty(),
	}, m.width)

	var content string
	switch {
	case m.prompt != nil:
		content = forceHeight(lipgloss.Place(m.width, m.contentHeight(), lipgloss.Center, lipgloss.Center, m.prompt.view(m.width)), m.width, m.contentHeight())
	case m.quitting:
		content = forceHeight(m.spinner.View()+" Stopping backend...", m.width, m.contentHeight())
	default:
		switch m.activeTab {
		case tabProfiles:
			content = m.profilesTab.View(m.spinner)
		case tabEdit:
			content = m.editTab.View(m)
		case tabLog:
			content = m.logTab.View()
		case tabSettings:
			content = m.settingsTab.View(m)
		}
	}

	var notif string
	if m.notification != "" {
		if m.notificationErr {
			notif = notifErrorStyle.Render("! " + m.notification)
		} else {
			notif = notifSuccessStyle.Render("* " + m.notification)
		}
	}

	helpText := renderHelpBar(m.showHelp)
	footer := renderFooter(helpText, m.width)

	parts := []string{header}
	if notif != "" {
		parts = append(parts, notif)
	}
	parts = append(parts, content, footer)
	output := lipgloss.JoinVertical(lipgloss.Left, parts...)

	// Force exactly m.height lines to prevent BubbleTea rendering drift.
	return forceHeight(output, m.width, m.height)
}

// forceHeight ensures the string has exactly `height` lines, each padded to `width`.
// This prevents BubbleTea from leaving ghost lines when switching tabs.
func forceHeight(s string, width, height int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > height {
		lines = lines[:height]
	}
	blank := strings.Repeat(" ", width)
	for len(lines) < height {
		lines = append(lines, blank)
	}
	return strings.Join(lines, "\n")
}

func (m *Model) contentHeight() int {
	overhead := 5
	if m.showHelp {
		overhead += 3
	}
	h := m.height - overhead
	if h < 1 {
		h = 1
	}
	return h
}

// handleGlobalKey handles keys that work on every tab. handled is false
// when the key belongs to the active tab.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if m.quitting {
		return nil, true
	}

	// Text entry owns printable keys.
	typing := m.activeTab == tabEdit || (m.activeTab == tabSettings && m.settingsTab.editing)

	switch {
	case msg.String() == "ctrl+c":
		return m.quit(), true

	case key.Matches(msg, keys.TabNext) && !(m.activeTab == tabSettings && m.settingsTab.editing):
		m.switchTab((m.activeTab + 1) % tabCount)
		return nil, true

	case key.Matches(msg, keys.TabPrev) && !(m.activeTab == tabSettings && m.settingsTab.editing):
		m.switchTab((m.activeTab - 1 + tabCount) % tabCount)
		return nil, true
	}

	if typing {
		return nil, false
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return m.quit(), true

	case key.Matches(msg, keys.Help):
		m.showHelp = !m.showHelp
		ch := m.contentHeight()
		m.profilesTab.setSize(m.width, ch)
		m.editTab.setSize(m.width, ch)
		m.logTab.setSize(m.width, ch)
		m.settingsTab.setSize(m.width, ch)
		return nil, true

	case key.Matches(msg, keys.Start):
		return m.start(), true

	case key.Matches(msg, keys.Stop):
		if m.backend.State() != types.StateIdle {
			m.session.Stop()
			m.notify("Stopping backend...")
		}
		return nil, true
	}
	return nil, false
}

func (m *Model) switchTab(tab int) {
	if m.activeTab == tabEdit && tab != tabEdit {
		m.editTab.validate(m)
	}
	m.activeTab = tab
}

// start launches the backend once unsaved edits are confirmed.
func (m *Model) start() tea.Cmd {
	if m.starting || m.backend.State() != types.StateIdle {
		m.setNotification("Backend is already running", true)
		return nil
	}
	if !m.session.EnsureProfile() {
		return nil
	}
	return m.withConfirm(m.profilePending(), func(confirm session.ConfirmFunc) tea.Cmd {
		m.starting = true
		return startBackend(m.session, confirm)
	})
}

// quit runs the unsaved changes check, then shuts the backend down.
func (m *Model) quit() tea.Cmd {
	var pending []session.Pending
	if m.session.ProfileDirty() {
		pending = append(pending, session.PendingProfile)
	}
	if m.session.MiscDirty() {
		pending = append(pending, session.PendingMisc)
	}
	return m.withConfirm(pending, func(confirm session.ConfirmFunc) tea.Cmd {
		if err := m.session.Close(confirm); err != nil {
			m.logger.Error("failed to save on exit", "error", err)
		}
		m.quitting = true
		return tea.Batch(m.spinner.Tick, shutdown(m.backend, m.stopAfter))
	})
}

// profilePending lists the confirmation needed before leaving the working
// copy.
func (m *Model) profilePending() []session.Pending {
	if m.session.ProfileDirty() {
		return []session.Pending{session.PendingProfile}
	}
	return nil
}

// withConfirm asks one save question per pending kind, then runs action with
// the collected answers. Esc on any question cancels the action.
func (m *Model) withConfirm(pending []session.Pending, action func(session.ConfirmFunc) tea.Cmd) tea.Cmd {
	if len(pending) == 0 {
		return action(nil)
	}

	answers := make(map[session.Pending]session.Decision, len(pending))
	confirm := func(p session.Pending) session.Decision { return answers[p] }

	var ask func(i int) tea.Cmd
	ask = func(i int) tea.Cmd {
		if i == len(pending) {
			return action(confirm)
		}
		p := pending[i]
		m.prompt = confirmPrompt("Unsaved changes", pendingQuestion(p), func(yes bool) tea.Cmd {
			if yes {
				answers[p] = session.Save
			} else {
				answers[p] = session.Discard
			}
			return ask(i + 1)
		})
		return nil
	}
	return ask(0)
}

// askAddProfile opens the add prompt. When enforced, declining adds a blank
// profile so there is always one to edit.
func (m *Model) askAddProfile(enforced bool) tea.Cmd {
	question := "Name of the new profile, and optionally an ss:// link to fill it from."
	if enforced {
		question = "There are no profiles yet. " + question
	}

	add := func(values []string) tea.Cmd {
		name, uri := values[0], values[1]
		return m.withConfirm(m.profilePending(), func(confirm session.ConfirmFunc) tea.Cmd {
			var err error
			if uri != "" {
				_, err = m.session.AddProfileFromURI(name, uri, confirm)
			} else {
				_, err = m.session.AddProfile(name, confirm)
			}
			if err != nil {
				m.notifyErr("Add failed", err)
				if enforced {
					return m.dismissEmptyStore()
				}
				return nil
			}
			m.profileChanged()
			m.notify(fmt.Sprintf("Added %s", m.session.Working().Name))
			m.activeTab = tabEdit
			return nil
		})
	}

	p := inputPrompt("Add profile", question, []string{"name", "ss://... (optional)"}, add)
	if enforced {
		p.onCancel = m.dismissEmptyStore
	}
	m.prompt = p
	return textinput.Blink
}

func (m *Model) dismissEmptyStore() tea.Cmd {
	if err := m.session.DismissEmptyStore(); err != nil {
		m.notifyErr("Could not create a profile", err)
	}
	m.profileChanged()
	return nil
}

// askImport opens the import prompt.
func (m *Model) askImport() tea.Cmd {
	m.prompt = inputPrompt("Import links",
		"File path or http(s) URL with one ss:// link per line.",
		[]string{"path or URL"},
		func(values []string) tea.Cmd {
			if values[0] == "" {
				return nil
			}
			m.notify("Importing...")
			return importLinks(m.importer, m.session.Store(), values[0])
		})
	return textinput.Blink
}

// profileChanged refreshes the views that depend on the profile list and
// the working copy.
func (m *Model) profileChanged() {
	store := m.session.Store()
	m.profilesTab.setProfiles(store.Profiles(), store.CurrentIndex())
	m.editTab.load(m.session.Working())
}

func (m *Model) reloadLatencies() tea.Cmd {
	return loadLatencies(m.history, m.session.Store().Profiles())
}

func (m *Model) setNotification(text string, isErr bool) {
	m.notification = text
	m.notificationErr = isErr
	m.notifVersion++
}

func (m *Model) notify(text string) {
	m.setNotification(text, false)
}

func (m *Model) notifyErr(what string, err error) {
	m.setNotification(fmt.Sprintf("%s: %v", what, err), true)
}

// NewProgram creates a bubbletea program with alt screen. Bus events are
// forwarded to the program until the returned stop function is called.
func NewProgram(deps Deps) (p *tea.Program, stop func()) {
	m := NewModel(deps)
	p = tea.NewProgram(m, tea.WithAltScreen())

	q := newPump()
	m.send = q.push
	unsubscribe := deps.Bus.Subscribe(func(e events.Event) {
		q.push(eventMsg{event: e})
	})

	if deps.NewProbeScheduler != nil {
		scheduler, err := deps.NewProbeScheduler(func(b *latency.BatchResult) {
			q.push(probeResultMsg{batch: b})
		})
		if err != nil {
			m.logger.Warn("latency probes disabled", "error", err)
		}
		m.scheduler = scheduler
	}

	go q.run(p.Send)

	return p, func() {
		unsubscribe()
		q.close()
		if m.scheduler != nil && m.scheduler.IsRunning() {
			m.scheduler.Stop()
		}
	}
}
