// Package app wires the store, settings, history, event bus, backend
// controller and editing session together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"shadowdeck/internal/config"
	"shadowdeck/internal/core/backend"
	"shadowdeck/internal/core/process"
	"shadowdeck/internal/events"
	"shadowdeck/internal/latency"
	"shadowdeck/internal/logging"
	"shadowdeck/internal/paths"
	"shadowdeck/internal/session"
	"shadowdeck/internal/storage"
	"shadowdeck/internal/storage/sqlite"
	"shadowdeck/internal/subscription"
)

// BackendLogName is the file in the cache directory receiving backend output.
const BackendLogName = "backend.log"

// Options select the files the application works on. Empty values use the
// platform defaults.
type Options struct {
	StorePath    string
	SettingsPath string
	// LogLevel overrides the level from the settings file.
	LogLevel string
	Logger   *slog.Logger
	// NoHistory skips opening the history database.
	NoHistory bool
}

// App represents the application context
type App struct {
	Settings     *config.Settings
	SettingsPath string

	Store *storage.Store
	// StoreErr is set when the store file could not be read; the store is
	// then empty but usable.
	StoreErr error

	History    storage.History
	Bus        *events.Bus
	Locator    *backend.Locator
	Controller *process.Controller
	Session    *session.Session
	Tester     *latency.Tester
	Importer   *subscription.Importer
	Logger     *slog.Logger

	recorder *recorder
}

// New creates a new application instance
func New(opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	settingsPath := opts.SettingsPath
	if settingsPath == "" {
		p, err := paths.SettingsPath()
		if err != nil {
			return nil, err
		}
		settingsPath = p
	}
	settings, err := config.Load(settingsPath)
	if err != nil {
		logger.Warn("using default settings", "error", err)
	}
	for _, w := range settings.Warnings {
		logger.Warn("settings: " + w)
	}

	storePath := opts.StorePath
	if storePath == "" {
		p, err := paths.StorePath()
		if err != nil {
			return nil, err
		}
		storePath = p
	}
	store, storeErr := storage.Load(storePath)
	if storeErr != nil {
		logger.Warn("starting with an empty profile store", "error", storeErr)
	}

	a := &App{
		Settings:     settings,
		SettingsPath: settingsPath,
		Store:        store,
		StoreErr:     storeErr,
		Bus:          events.NewBus(),
		Locator:      backend.NewLocator(paths.BinDirs()),
		Logger:       logger,
	}
	baseLevel := a.applyLogLevel(opts.LogLevel)

	if !opts.NoHistory {
		a.openHistory()
	}

	backendLog := ""
	if dir, err := paths.CacheDir(); err == nil {
		backendLog = filepath.Join(dir, BackendLogName)
	}
	a.Controller = process.New(a.Bus, process.Config{
		StopTimeout: settings.StopTimeout,
		LogPath:     backendLog,
	}, logger)

	extra, err := settings.ExtraArgs()
	if err != nil {
		logger.Warn("ignoring backend_extra_args", "error", err)
	}
	a.Session = session.New(store, a.Controller, a.Bus, session.Options{
		Locator:   a.Locator,
		ExtraArgs: extra,
		Logger:    logger,
	})

	strategy, err := latency.NewStrategy(settings.Probe.Strategy, settings.Probe.URL)
	if err != nil {
		return nil, err
	}
	a.Tester = latency.NewTester(a.latencyRecorder(), latency.TesterConfig{
		Workers:  int64(settings.Probe.Workers),
		Timeout:  settings.Probe.Timeout,
		Strategy: strategy,
	})
	a.Importer = subscription.NewImporter(nil, logger)

	a.recorder = newRecorder(a.History, settings.SystemProxy, baseLevel, logger)
	a.recorder.attach(a.Bus)

	return a, nil
}

func (a *App) openHistory() {
	path, err := a.Settings.HistoryPath()
	if err != nil {
		a.Logger.Warn("history disabled", "error", err)
		return
	}
	db, err := sqlite.New(path)
	if err != nil {
		a.Logger.Warn("history disabled", "path", path, "error", err)
		return
	}
	a.History = db

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if n, err := db.CloseDanglingRuns(ctx, time.Now()); err == nil && n > 0 {
		a.Logger.Info("closed runs left open by a previous session", "count", n)
	}
}

// latencyRecorder returns the history as a latency.Recorder, or nil.
func (a *App) latencyRecorder() latency.Recorder {
	if a.History == nil {
		return nil
	}
	return a.History
}

// applyLogLevel sets the log level from the override, the settings file and
// the store's debug flag, in that order of precedence. It returns the level
// without the debug flag applied.
func (a *App) applyLogLevel(override string) slog.Level {
	name := a.Settings.LogLevel
	if override != "" {
		name = override
	}
	level, err := logging.ParseLevel(name)
	if err != nil {
		a.Logger.Warn("invalid log level", "level", name)
	}
	if a.Store.Debug() && level > slog.LevelDebug {
		logging.SetLevel(slog.LevelDebug)
	} else {
		logging.SetLevel(level)
	}
	return level
}

// NewProbeScheduler returns a scheduler for periodic probes of all
// profiles, or nil when probe.interval is zero.
func (a *App) NewProbeScheduler(onResult func(*latency.BatchResult)) (*latency.Scheduler, error) {
	if a.Settings.Probe.Interval <= 0 {
		return nil, nil
	}
	return latency.NewScheduler(a.Tester, a.Store.Profiles, a.Settings.Probe.Interval, onResult, a.Logger)
}

// SaveSettings persists the application settings.
func (a *App) SaveSettings() error {
	return a.Settings.Save(a.SettingsPath)
}

// Shutdown stops the backend, waiting at most until ctx ends, and releases
// resources.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	if err := a.Controller.Shutdown(ctx); err != nil {
		shutdownErr = fmt.Errorf("backend did not stop cleanly: %w", err)
	}
	if a.recorder != nil {
		a.recorder.detach()
	}
	if a.History != nil {
		if err := a.History.Close(); err != nil && shutdownErr == nil {
			shutdownErr = err
		}
	}
	return shutdownErr
}

// Close shuts down with the configured stop timeout plus a grace period.
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.Settings.StopTimeout+2*time.Second)
	defer cancel()
	return a.Shutdown(ctx)
}
