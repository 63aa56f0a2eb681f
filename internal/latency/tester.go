package latency

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"shadowdeck/internal/storage/models"
)

// Recorder stores probe results. storage.History satisfies it.
type Recorder interface {
	RecordLatency(ctx context.Context, latency *models.LatencyTest) error
}

// TestResult holds the outcome for a single profile test.
type TestResult struct {
	Profile models.Profile
	Latency *models.LatencyTest
}

// BatchResult holds the outcome of testing multiple profiles.
type BatchResult struct {
	Results   []*TestResult
	Tested    int
	Succeeded int
	Failed    int
	Duration  time.Duration
}

// ProgressFunc is called each time a single test completes during batch testing.
type ProgressFunc func(result *TestResult, current, total int)

// TesterConfig holds configuration for the Tester.
type TesterConfig struct {
	Workers  int64
	Timeout  time.Duration
	Strategy Strategy
}

// Tester orchestrates latency testing.
type Tester struct {
	recorder Recorder
	config   TesterConfig
}

// NewTester creates a new Tester. recorder may be nil.
func NewTester(recorder Recorder, cfg TesterConfig) *Tester {
	if cfg.Workers <= 0 {
		cfg.Workers = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Strategy == nil {
		cfg.Strategy = &TCPStrategy{}
	}
	return &Tester{
		recorder: recorder,
		config:   cfg,
	}
}

// Strategy returns the strategy in use.
func (t *Tester) Strategy() Strategy {
	return t.config.Strategy
}

// TestSingle probes one profile within the configured timeout and hands
// the outcome to the recorder.
func (t *Tester) TestSingle(ctx context.Context, profile models.Profile) *TestResult {
	probeCtx, cancel := context.WithTimeout(ctx, t.config.Timeout)
	ms, err := t.config.Strategy.Test(probeCtx, profile)
	cancel()

	lt := &models.LatencyTest{
		ProfileName:  profile.Name,
		Server:       profile.Server,
		TestStrategy: t.config.Strategy.Name(),
		TestedAt:     time.Now(),
		Success:      err == nil,
	}
	if err != nil {
		lt.ErrorMessage = err.Error()
	} else {
		lt.LatencyMS = &ms
	}

	if t.recorder != nil {
		// History is advisory; a failed write does not fail the probe.
		_ = t.recorder.RecordLatency(ctx, lt)
	}
	return &TestResult{Profile: profile, Latency: lt}
}

// TestBatch probes profiles with at most Workers probes in flight. Profiles
// not started before ctx ends are left out of the result. Results come back
// fastest first with failures last.
func (t *Tester) TestBatch(ctx context.Context, profiles []models.Profile, progress ProgressFunc) *BatchResult {
	began := time.Now()
	sem := semaphore.NewWeighted(t.config.Workers)

	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		batch BatchResult
	)
	for _, p := range profiles {
		if sem.Acquire(ctx, 1) != nil {
			break
		}
		wg.Add(1)
		go func(p models.Profile) {
			defer wg.Done()
			defer sem.Release(1)

			r := t.TestSingle(ctx, p)

			mu.Lock()
			batch.Results = append(batch.Results, r)
			batch.Tested++
			if r.Latency.Success {
				batch.Succeeded++
			} else {
				batch.Failed++
			}
			done := batch.Tested
			mu.Unlock()

			if progress != nil {
				progress(r, done, len(profiles))
			}
		}(p)
	}
	wg.Wait()

	sort.SliceStable(batch.Results, func(i, j int) bool {
		return faster(batch.Results[i].Latency, batch.Results[j].Latency)
	})
	batch.Duration = time.Since(began)
	return &batch
}

// faster orders successful probes by latency ahead of failed ones.
func faster(a, b *models.LatencyTest) bool {
	if a.Success != b.Success {
		return a.Success
	}
	return a.Success && *a.LatencyMS < *b.LatencyMS
}
