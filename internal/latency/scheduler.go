package latency

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"

	"shadowdeck/internal/storage/models"
)

// ProfileSource returns the profiles a scheduled run should probe.
type ProfileSource func() []models.Profile

// Scheduler runs batch probes periodically.
type Scheduler struct {
	mu        sync.Mutex
	scheduler gocron.Scheduler
	tester    *Tester
	source    ProfileSource
	interval  time.Duration
	onResult  func(*BatchResult)
	logger    *slog.Logger
	running   bool
}

// NewScheduler creates a scheduler probing source every interval. onResult,
// if set, receives every completed batch.
func NewScheduler(tester *Tester, source ProfileSource, interval time.Duration, onResult func(*BatchResult), logger *slog.Logger) (*Scheduler, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("probe interval must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	return &Scheduler{
		scheduler: scheduler,
		tester:    tester,
		source:    source,
		interval:  interval,
		onResult:  onResult,
		logger:    logger.With("component", "latency"),
	}, nil
}

// Start schedules the periodic job and runs a first probe immediately.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	_, err := s.scheduler.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			s.RunNow(ctx)
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithStartAt(gocron.WithStartImmediately()),
	)
	if err != nil {
		return fmt.Errorf("failed to create probe job: %w", err)
	}

	s.scheduler.Start()
	s.running = true
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return fmt.Errorf("scheduler is not running")
	}

	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}

	s.running = false
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RunNow probes all profiles once.
func (s *Scheduler) RunNow(ctx context.Context) *BatchResult {
	profiles := s.source()
	if len(profiles) == 0 {
		return &BatchResult{}
	}

	batch := s.tester.TestBatch(ctx, profiles, nil)
	s.logger.Debug("scheduled probe finished",
		"tested", batch.Tested, "succeeded", batch.Succeeded, "failed", batch.Failed,
		"duration", batch.Duration)

	if s.onResult != nil {
		s.onResult(batch)
	}
	return batch
}
