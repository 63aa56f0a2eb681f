package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shadowdeck/internal/core/types"
	"shadowdeck/internal/events"
	"shadowdeck/internal/logging"
	"shadowdeck/internal/session"
	"shadowdeck/internal/storage"
	"shadowdeck/internal/storage/sqlite"
	pkgerrors "shadowdeck/pkg/errors"
)

func testOptions(t *testing.T) Options {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("SUDO_USER", "")
	t.Setenv("XDG_CONFIG_HOME", "")

	settings := filepath.Join(home, "shadowdeck.yaml")
	content := "history_db: " + filepath.Join(home, "history.db") + "\nstop_timeout: 1s\n"
	require.NoError(t, os.WriteFile(settings, []byte(content), 0600))

	return Options{
		StorePath:    filepath.Join(home, "gui-config.json"),
		SettingsPath: settings,
		Logger:       logging.Discard(),
	}
}

func TestNewWiresComponents(t *testing.T) {
	a, err := New(testOptions(t))
	require.NoError(t, err)
	defer a.Close()

	assert.NoError(t, a.StoreErr)
	assert.Equal(t, 0, a.Store.Len())
	assert.NotNil(t, a.History)
	assert.NotNil(t, a.Session)
	assert.Equal(t, time.Second, a.Settings.StopTimeout)
	assert.Equal(t, types.StateIdle, a.Controller.State())
	assert.Equal(t, "tcp", a.Tester.Strategy().Name())

	sched, err := a.NewProbeScheduler(nil)
	require.NoError(t, err)
	assert.Nil(t, sched, "probing is off by default")
}

func TestNewWithMalformedStore(t *testing.T) {
	opts := testOptions(t)
	require.NoError(t, os.WriteFile(opts.StorePath, []byte("]"), 0600))

	a, err := New(opts)
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, errors.Is(a.StoreErr, pkgerrors.ErrConfigLoad))
	assert.Equal(t, -1, a.Store.CurrentIndex())
	assert.False(t, a.Session.EnsureProfile())
}

func TestStartWithoutBackendFailsValidation(t *testing.T) {
	opts := testOptions(t)
	t.Setenv("PATH", t.TempDir())

	a, err := New(opts)
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Session.AddProfileFromURI("home", "ss://YWVzLTI1Ni1jZmI6cGFzc3dvcmRAMS4yLjMuNDo4Mzg4", nil)
	require.NoError(t, err)

	err = a.Session.Start(nil)
	assert.True(t, errors.Is(err, pkgerrors.ErrProfileInvalid))
	assert.Equal(t, types.StateIdle, a.Controller.State())
}

func TestRecorderKeepsHistoryAndProxy(t *testing.T) {
	db, err := sqlite.New(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer db.Close()

	bus := events.NewBus()
	r := newRecorder(db, true, slog.LevelInfo, logging.Discard())

	var proxyCalls []string
	r.enableProxy = func(host string, port int) error {
		proxyCalls = append(proxyCalls, "on "+host)
		assert.Equal(t, 1080, port)
		return nil
	}
	r.disableProxy = func() error {
		proxyCalls = append(proxyCalls, "off")
		return nil
	}
	r.attach(bus)
	defer r.detach()

	now := time.Now()
	bus.Publish(events.Started{
		PID: 99, ProfileName: "home", Server: "1.2.3.4", Local: "127.0.0.1:1080",
		Path: "/usr/bin/ss-local", Type: types.BackendLibev, At: now,
	})
	bus.Publish(events.Stopped{PID: 99, ExitCode: 1, Err: errors.New("exit status 1"), At: now.Add(time.Second)})

	runs, err := db.ListRuns(context.Background(), storage.RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "home", runs[0].ProfileName)
	assert.Equal(t, "libev", runs[0].BackendType)
	assert.False(t, runs[0].Running())
	require.NotNil(t, runs[0].ExitCode)
	assert.Equal(t, 1, *runs[0].ExitCode)
	assert.False(t, runs[0].Requested)
	assert.Equal(t, "exit status 1", runs[0].Error)

	assert.Equal(t, []string{"on 127.0.0.1", "off"}, proxyCalls)
}

func TestRecorderFollowsDebugBothWays(t *testing.T) {
	store := storage.New("")
	bus := events.NewBus()
	sess := session.New(store, nil, bus, session.Options{Logger: logging.Discard()})

	r := newRecorder(nil, false, slog.LevelWarn, logging.Discard())
	r.attach(bus)
	defer r.detach()
	logging.SetLevel(slog.LevelWarn)
	t.Cleanup(func() { logging.SetLevel(slog.LevelInfo) })

	sess.SetDebug(true)
	assert.Equal(t, slog.LevelDebug, logging.Level())

	// Misc is still dirty, so only the debug event reports these toggles.
	sess.SetDebug(false)
	assert.Equal(t, slog.LevelWarn, logging.Level())
	sess.SetDebug(true)
	assert.Equal(t, slog.LevelDebug, logging.Level())
	sess.SetDebug(false)
	assert.Equal(t, slog.LevelWarn, logging.Level())
}
