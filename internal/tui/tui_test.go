package tui

import (
	"context"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowdeck/internal/core/process"
	"shadowdeck/internal/core/types"
	"shadowdeck/internal/events"
	"shadowdeck/internal/latency"
	"shadowdeck/internal/logging"
	"shadowdeck/internal/session"
	"shadowdeck/internal/storage"
	"shadowdeck/internal/storage/models"
	"shadowdeck/internal/subscription"
	pkgerrors "shadowdeck/pkg/errors"
)

type fakeBackend struct {
	mu       sync.Mutex
	state    types.State
	starts   int
	shutdown bool
}

func (f *fakeBackend) Start(process.StartRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != types.StateIdle {
		return &pkgerrors.BackendError{Err: pkgerrors.ErrAlreadyRunning}
	}
	f.state = types.StateRunning
	f.starts++
	return nil
}

func (f *fakeBackend) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = types.StateIdle
	return nil
}

func (f *fakeBackend) State() types.State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeBackend) Status() *types.Status {
	return &types.Status{State: f.State()}
}

func (f *fakeBackend) Stats() (*types.Stats, error) { return &types.Stats{}, nil }

func (f *fakeBackend) Logs() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader("")), nil
}

func (f *fakeBackend) Shutdown(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shutdown = true
	f.state = types.StateIdle
	return nil
}

func newTestModel(t *testing.T, names ...string) (*Model, *storage.Store, *events.Bus) {
	t.Helper()

	store := storage.New(filepath.Join(t.TempDir(), "gui-config.json"))
	for _, name := range names {
		i := store.AddProfile(name)
		p, _ := store.Profile(i)
		p.Server = "203.0.113.7"
		p.ServerPort = "8388"
		p.Password = "pw"
		require.NoError(t, store.SetProfile(i, p))
	}
	if len(names) > 0 {
		require.NoError(t, store.SetCurrentIndex(0))
	}

	bus := events.NewBus()
	backend := &fakeBackend{}
	logger := logging.Discard()
	sess := session.New(store, backend, bus, session.Options{Logger: logger})

	m := NewModel(Deps{
		Session:  sess,
		Backend:  backend,
		Bus:      bus,
		Tester:   latency.NewTester(nil, latency.TesterConfig{Timeout: time.Second}),
		Importer: subscription.NewImporter(nil, logger),
		Logger:   logger,
	})
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, store, bus
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPumpKeepsOrder(t *testing.T) {
	p := newPump()
	var mu sync.Mutex
	var got []int
	done := make(chan struct{})
	go p.run(func(msg tea.Msg) {
		mu.Lock()
		got = append(got, msg.(int))
		n := len(got)
		mu.Unlock()
		if n == 100 {
			close(done)
		}
	})
	for i := 0; i < 100; i++ {
		p.push(i)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("pump did not deliver")
	}
	p.close()
	p.push(101)

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestSelectAsksToSaveDirtyProfile(t *testing.T) {
	m, store, _ := newTestModel(t, "home", "work")

	require.NoError(t, m.session.SetField(models.FieldServer, "198.51.100.1"))
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, m.prompt)
	assert.Equal(t, 0, m.session.CurrentIndex())

	m.Update(keyRunes("y"))
	assert.Nil(t, m.prompt)
	assert.Equal(t, 1, m.session.CurrentIndex())
	assert.False(t, m.session.ProfileDirty())

	saved, err := store.Profile(0)
	require.NoError(t, err)
	assert.Equal(t, "198.51.100.1", saved.Server)
}

func TestEscCancelsPendingSelect(t *testing.T) {
	m, _, _ := newTestModel(t, "home", "work")

	require.NoError(t, m.session.SetField(models.FieldServer, "198.51.100.1"))
	m.Update(tea.KeyMsg{Type: tea.KeyDown})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.Update(tea.KeyMsg{Type: tea.KeyEsc})

	assert.Nil(t, m.prompt)
	assert.Equal(t, 0, m.session.CurrentIndex())
	assert.True(t, m.session.ProfileDirty())
}

func TestQuitAsksForProfileThenSettings(t *testing.T) {
	m, store, _ := newTestModel(t, "home")

	require.NoError(t, m.session.SetField(models.FieldServer, "198.51.100.1"))
	m.session.SetAutoStart(true)

	m.Update(keyRunes("q"))
	require.NotNil(t, m.prompt)
	assert.Contains(t, m.prompt.question, "profile")

	m.Update(keyRunes("n"))
	require.NotNil(t, m.prompt)
	assert.Contains(t, m.prompt.question, "Settings")

	_, cmd := m.Update(keyRunes("y"))
	assert.Nil(t, m.prompt)
	assert.True(t, m.quitting)
	require.NotNil(t, cmd)

	reloaded, err := storage.Load(store.Path())
	require.NoError(t, err)
	assert.True(t, reloaded.AutoStart())
	p, _ := reloaded.Profile(0)
	assert.Equal(t, "203.0.113.7", p.Server)
}

func TestEmptyStorePromptDismissAddsBlankProfile(t *testing.T) {
	m, store, _ := newTestModel(t)

	m.Update(eventMsg{event: events.EmptyStore{}})
	require.NotNil(t, m.prompt)

	m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.Nil(t, m.prompt)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 0, m.session.CurrentIndex())
}

func TestAddProfileFromPrompt(t *testing.T) {
	m, store, _ := newTestModel(t, "home")

	m.Update(keyRunes("a"))
	require.NotNil(t, m.prompt)
	m.Update(keyRunes("lab"))
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})

	assert.Nil(t, m.prompt)
	assert.Equal(t, 2, store.Len())
	assert.Equal(t, "lab", m.session.Working().Name)
	assert.Equal(t, tabEdit, m.activeTab)
}

func TestStartedOpensLogWhenAutoHide(t *testing.T) {
	m, _, _ := newTestModel(t, "home")
	m.session.SetAutoHide(true)

	m.Update(eventMsg{event: events.Started{PID: 42, ProfileName: "home", Local: "127.0.0.1:1080"}})
	m.Update(eventMsg{event: events.Output{Data: []byte("listening\n")}})

	assert.Equal(t, tabLog, m.activeTab)
	assert.Contains(t, string(m.logTab.buf), "pid 42")
	assert.Contains(t, string(m.logTab.buf), "listening")
}

func TestStartShortcut(t *testing.T) {
	m, _, _ := newTestModel(t, "home")

	_, cmd := m.Update(keyRunes("s"))
	require.NotNil(t, cmd)
	assert.True(t, m.starting)
}

func TestHeaderPill(t *testing.T) {
	for _, tc := range []struct {
		state types.State
		want  string
	}{
		{types.StateIdle, "STOPPED"},
		{types.StateStarting, "STARTING"},
		{types.StateRunning, "RUNNING home"},
		{types.StateStopping, "STOPPING"},
	} {
		out := renderHeader(tabProfiles, headerState{state: tc.state, profile: "home", profileDirty: true}, 100)
		assert.Contains(t, out, tc.want)
		assert.Contains(t, out, "profile")
	}
}

func TestEditTabPushesFieldsIntoSession(t *testing.T) {
	m, _, _ := newTestModel(t, "home")
	m.activeTab = tabEdit

	// Name is the first field; typing appends to it.
	m.Update(keyRunes("2"))
	assert.Equal(t, "home2", m.session.Working().Name)
	assert.True(t, m.session.ProfileDirty())

	m.Update(tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.False(t, m.session.ProfileDirty())
}
