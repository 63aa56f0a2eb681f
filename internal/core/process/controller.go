// Package process supervises a single shadowsocks backend child process.
package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	processInfo "github.com/shirou/gopsutil/process"

	"shadowdeck/internal/core/backend"
	"shadowdeck/internal/core/types"
	"shadowdeck/internal/events"
	"shadowdeck/internal/paths"
	"shadowdeck/internal/storage/models"
	pkgerrors "shadowdeck/pkg/errors"
)

// DefaultStopTimeout bounds how long Stop waits for a graceful exit before
// killing the backend.
const DefaultStopTimeout = 5 * time.Second

const readChunkSize = 4096

// Config holds controller options.
type Config struct {
	StopTimeout time.Duration
	// LogPath, when set, receives a copy of all backend output.
	LogPath string
}

// StartRequest describes one backend launch.
type StartRequest struct {
	Profile models.Profile
	Path    string
	Type    types.BackendType
	Options backend.ArgsOptions
}

// Controller owns at most one backend process.
//
// Start and Stop never block on the child: Start returns once the process has
// been spawned and Stop returns once termination has been requested. Exits are
// reported through events.Stopped.
type Controller struct {
	mu     sync.Mutex
	state  types.State
	cmd    *exec.Cmd
	status types.Status
	done   chan struct{}

	stopRequested bool

	bus    *events.Bus
	cfg    Config
	logger *slog.Logger

	// command builds the exec.Cmd; replaced in tests.
	command func(name string, args ...string) *exec.Cmd
}

// New creates an idle controller publishing to bus.
func New(bus *events.Bus, cfg Config, logger *slog.Logger) *Controller {
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		bus:     bus,
		cfg:     cfg,
		logger:  logger.With("component", "process"),
		command: exec.Command,
	}
}

// Start spawns the backend. It fails with ErrAlreadyRunning unless the
// controller is idle, including while a previous backend is still stopping.
func (c *Controller) Start(req StartRequest) error {
	c.mu.Lock()

	if c.state != types.StateIdle {
		state := c.state
		c.mu.Unlock()
		return &pkgerrors.BackendError{
			Type: req.Type.String(),
			Path: req.Path,
			Err:  fmt.Errorf("%w (%s)", pkgerrors.ErrAlreadyRunning, state),
		}
	}

	if req.Path == "" {
		c.mu.Unlock()
		err := fmt.Errorf("%w: %w", pkgerrors.ErrSpawn, pkgerrors.ErrBackendNotFound)
		c.bus.Publish(events.SpawnFailed{Path: req.Path, Type: req.Type, Err: err})
		return &pkgerrors.BackendError{Type: req.Type.String(), Err: err}
	}

	c.state = types.StateStarting

	args := backend.Args(req.Type, req.Path, req.Profile, req.Options)
	cmd := c.command(req.Path, args...)
	if cmd.Env == nil {
		cmd.Env = os.Environ()
	}
	configureCommand(cmd)
	// Grandchildren holding the pipe must not keep Wait from returning.
	cmd.WaitDelay = 2 * time.Second

	pr, pw := io.Pipe()
	var out io.Writer = pw
	var logFile *os.File
	if c.cfg.LogPath != "" {
		f, err := os.OpenFile(c.cfg.LogPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			c.logger.Warn("cannot open backend log", "path", c.cfg.LogPath, "error", err)
		} else {
			paths.ChownToRealUser(c.cfg.LogPath)
			logFile = f
			out = io.MultiWriter(pw, f)
		}
	}
	cmd.Stdout = out
	cmd.Stderr = out

	if err := cmd.Start(); err != nil {
		c.state = types.StateIdle
		c.mu.Unlock()

		pw.Close()
		pr.Close()
		if logFile != nil {
			logFile.Close()
		}

		spawnErr := fmt.Errorf("%w: %w", pkgerrors.ErrSpawn, err)
		c.logger.Error("backend spawn failed", "path", req.Path, "type", req.Type, "error", err)
		c.bus.Publish(events.SpawnFailed{Path: req.Path, Type: req.Type, Err: spawnErr})
		return &pkgerrors.BackendError{Type: req.Type.String(), Path: req.Path, Err: spawnErr}
	}

	now := time.Now()
	done := make(chan struct{})
	c.cmd = cmd
	c.done = done
	c.stopRequested = false
	c.state = types.StateRunning
	c.status = types.Status{
		State:       types.StateRunning,
		PID:         cmd.Process.Pid,
		StartedAt:   now,
		BackendType: req.Type,
		BackendPath: req.Path,
		ProfileName: req.Profile.Name,
	}
	c.mu.Unlock()

	c.logger.Info("backend started",
		"pid", cmd.Process.Pid, "path", req.Path, "type", req.Type, "profile", req.Profile.Name)

	// Started goes out before any Output or Stopped for this process.
	c.bus.Publish(events.Started{
		PID:         cmd.Process.Pid,
		ProfileName: req.Profile.Name,
		Server:      req.Profile.Server,
		Local:       net.JoinHostPort(req.Profile.LocalAddr, req.Profile.LocalPort),
		Path:        req.Path,
		Type:        req.Type,
		At:          now,
	})

	readerDone := make(chan struct{})
	go c.forwardOutput(pr, readerDone)
	go c.wait(cmd, pw, logFile, readerDone, done)

	return nil
}

// forwardOutput publishes every chunk read from the merged stdout/stderr
// pipe in arrival order.
func (c *Controller) forwardOutput(r io.ReadCloser, done chan<- struct{}) {
	defer close(done)
	defer r.Close()

	buf := make([]byte, readChunkSize)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			c.bus.Publish(events.Output{Data: chunk})
		}
		if err != nil {
			return
		}
	}
}

func (c *Controller) wait(cmd *exec.Cmd, pw *io.PipeWriter, logFile *os.File, readerDone <-chan struct{}, done chan<- struct{}) {
	waitErr := cmd.Wait()
	pw.Close()
	<-readerDone
	if logFile != nil {
		logFile.Close()
	}

	exitCode := 0
	var exitErr *exec.ExitError
	if errors.As(waitErr, &exitErr) {
		exitCode = exitErr.ExitCode()
	} else if waitErr != nil {
		exitCode = -1
	}

	c.mu.Lock()
	requested := c.stopRequested
	pid := c.status.PID
	c.state = types.StateIdle
	c.cmd = nil
	c.status = types.Status{State: types.StateIdle}
	c.stopRequested = false
	c.mu.Unlock()

	stopped := events.Stopped{
		PID:       pid,
		ExitCode:  exitCode,
		Requested: requested,
		At:        time.Now(),
	}
	if !requested && waitErr != nil {
		stopped.Err = waitErr
	}

	if requested {
		c.logger.Info("backend stopped", "pid", pid, "exit_code", exitCode)
	} else {
		c.logger.Warn("backend exited unexpectedly", "pid", pid, "exit_code", exitCode, "error", waitErr)
	}

	c.bus.Publish(stopped)
	close(done)
}

// Stop asks the backend to exit and returns immediately. It is a no-op when
// idle or already stopping. The backend is killed if it has not exited
// within the configured stop timeout.
func (c *Controller) Stop() error {
	c.mu.Lock()
	if c.state == types.StateIdle || c.state == types.StateStopping || c.cmd == nil {
		c.mu.Unlock()
		return nil
	}

	c.state = types.StateStopping
	c.status.State = types.StateStopping
	c.stopRequested = true
	proc := c.cmd.Process
	done := c.done
	timeout := c.cfg.StopTimeout
	c.mu.Unlock()

	c.logger.Debug("stopping backend", "pid", proc.Pid)

	if err := terminate(proc); err != nil {
		c.logger.Debug("graceful terminate failed, killing", "pid", proc.Pid, "error", err)
		kill(proc)
	}

	go func() {
		select {
		case <-done:
		case <-time.After(timeout):
			c.logger.Warn("backend did not exit in time, killing", "pid", proc.Pid, "timeout", timeout)
			kill(proc)
		}
	}()

	return nil
}

// Shutdown stops the backend and waits for it to exit or for ctx to end,
// whichever comes first. When ctx ends first the backend is killed.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	var proc *os.Process
	if c.cmd != nil {
		proc = c.cmd.Process
	}
	c.mu.Unlock()

	if proc == nil {
		return nil
	}

	c.Stop()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		kill(proc)
		return ctx.Err()
	}
}

// Wait blocks until the current backend has exited or ctx ends. It returns
// immediately when idle.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	done := c.done
	idle := c.state == types.StateIdle
	c.mu.Unlock()

	if idle || done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() types.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsRunning reports whether a backend process exists.
func (c *Controller) IsRunning() bool {
	return c.State() != types.StateIdle
}

// Status returns the current status
func (c *Controller) Status() *types.Status {
	c.mu.Lock()
	defer c.mu.Unlock()

	status := c.status
	status.State = c.state
	if c.state != types.StateIdle && !status.StartedAt.IsZero() {
		status.Uptime = time.Since(status.StartedAt)
	}
	return &status
}

// Stats returns resource usage of the running backend.
func (c *Controller) Stats() (*types.Stats, error) {
	c.mu.Lock()
	pid := c.status.PID
	running := c.state != types.StateIdle
	c.mu.Unlock()

	if !running || pid == 0 {
		return &types.Stats{}, nil
	}

	p, err := processInfo.NewProcess(int32(pid))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect backend process: %w", err)
	}

	stats := &types.Stats{}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		stats.RSS = mem.RSS
	}
	if cpu, err := p.CPUPercent(); err == nil {
		stats.CPUPercent = cpu
	}
	if n, err := p.NumThreads(); err == nil {
		stats.NumThreads = n
	}
	return stats, nil
}

// Logs returns the output of the most recent backend run.
func (c *Controller) Logs() (io.ReadCloser, error) {
	if c.cfg.LogPath == "" {
		return nil, fmt.Errorf("backend log is disabled")
	}
	return os.Open(c.cfg.LogPath)
}
