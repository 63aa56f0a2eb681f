package app

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"strconv"
	"sync"
	"time"

	"shadowdeck/internal/core/sysproxy"
	"shadowdeck/internal/events"
	"shadowdeck/internal/logging"
	"shadowdeck/internal/storage"
	"shadowdeck/internal/storage/models"
)

// recorder reacts to controller events: it keeps the run history, toggles
// the desktop proxy and follows the debug flag.
type recorder struct {
	mu          sync.Mutex
	history     storage.History
	systemProxy bool
	proxyOn     bool
	run         *models.Run
	unsubscribe func()
	logger      *slog.Logger
	// baseLevel is the level to return to when debug is switched off.
	baseLevel slog.Level

	// replaced in tests
	enableProxy  func(host string, port int) error
	disableProxy func() error
}

func newRecorder(history storage.History, systemProxy bool, baseLevel slog.Level, logger *slog.Logger) *recorder {
	return &recorder{
		history:      history,
		systemProxy:  systemProxy,
		baseLevel:    baseLevel,
		logger:       logger.With("component", "recorder"),
		enableProxy:  sysproxy.Enable,
		disableProxy: sysproxy.Disable,
	}
}

func (r *recorder) attach(bus *events.Bus) {
	r.unsubscribe = bus.Subscribe(r.handle)
}

func (r *recorder) detach() {
	if r.unsubscribe != nil {
		r.unsubscribe()
		r.unsubscribe = nil
	}
}

func (r *recorder) handle(e events.Event) {
	if _, chunk := e.(events.Output); !chunk {
		r.logger.Debug("event", "name", events.Name(e))
	}
	switch ev := e.(type) {
	case events.Started:
		r.started(ev)
	case events.Stopped:
		r.stopped(ev)
	case events.DebugChanged:
		r.followDebug(ev.Enabled)
	}
}

func (r *recorder) started(ev events.Started) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.history != nil {
		run := &models.Run{
			ProfileName: ev.ProfileName,
			Server:      ev.Server,
			BackendType: ev.Type.String(),
			BackendPath: ev.Path,
			PID:         ev.PID,
			StartedAt:   ev.At,
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.history.CreateRun(ctx, run); err != nil {
			r.logger.Warn("failed to record run", "error", err)
		} else {
			r.run = run
		}
	}

	if r.systemProxy {
		host, portStr, err := net.SplitHostPort(ev.Local)
		port, convErr := strconv.Atoi(portStr)
		if err != nil || convErr != nil {
			r.logger.Warn("cannot enable system proxy", "listener", ev.Local)
			return
		}
		if err := r.enableProxy(host, port); err != nil {
			r.logger.Warn("failed to enable system proxy", "error", err)
			return
		}
		r.proxyOn = true
		r.logger.Info("system proxy enabled", "listener", ev.Local)
	}
}

func (r *recorder) stopped(ev events.Stopped) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.run != nil && r.history != nil {
		code := ev.ExitCode
		at := ev.At
		r.run.StoppedAt = &at
		r.run.ExitCode = &code
		r.run.Requested = ev.Requested
		if ev.Err != nil {
			r.run.Error = ev.Err.Error()
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.history.FinishRun(ctx, r.run); err != nil {
			r.logger.Warn("failed to record run end", "error", err)
		}
	}
	r.run = nil

	if r.proxyOn {
		if err := r.disableProxy(); err != nil && !errors.Is(err, errors.ErrUnsupported) {
			r.logger.Warn("failed to disable system proxy", "error", err)
		}
		r.proxyOn = false
	}
}

// followDebug logs at debug level while the flag is set and at the
// configured level otherwise.
func (r *recorder) followDebug(on bool) {
	if on {
		logging.SetLevel(slog.LevelDebug)
		return
	}
	logging.SetLevel(r.baseLevel)
}
