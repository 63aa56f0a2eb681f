package tui

import (
	"context"
	"fmt"
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"shadowdeck/internal/latency"
	"shadowdeck/internal/session"
	"shadowdeck/internal/storage"
	"shadowdeck/internal/storage/models"
	"shadowdeck/internal/subscription"
)

// maxPreviousLog bounds how much of the last run's output is shown at startup.
const maxPreviousLog = 64 << 10

// startBackend launches the backend for the working copy.
func startBackend(s *session.Session, confirm session.ConfirmFunc) tea.Cmd {
	return func() tea.Msg {
		return startResultMsg{err: s.Start(confirm)}
	}
}

// shutdown stops the backend, waiting at most timeout.
func shutdown(b Backend, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return shutdownDoneMsg{err: b.Shutdown(ctx)}
	}
}

// pollStatus fetches backend status and resource usage.
func pollStatus(b Backend) tea.Cmd {
	return func() tea.Msg {
		status := b.Status()
		if !status.Running() {
			return statusResultMsg{status: status}
		}
		stats, _ := b.Stats()
		return statusResultMsg{status: status, stats: stats}
	}
}

// statusTick returns a tea.Cmd that fires after 2 seconds.
func statusTick() tea.Cmd {
	return tea.Tick(2*time.Second, func(time.Time) tea.Msg {
		return statusTickMsg{}
	})
}

// loadPreviousLog reads the tail of the last run's output.
func loadPreviousLog(b Backend) tea.Cmd {
	return func() tea.Msg {
		rc, err := b.Logs()
		if err != nil {
			return previousLogMsg{}
		}
		defer rc.Close()
		data, _ := io.ReadAll(rc)
		if len(data) > maxPreviousLog {
			data = data[len(data)-maxPreviousLog:]
		}
		return previousLogMsg{data: data}
	}
}

// loadLatencies fetches the latest probe result for every profile.
func loadLatencies(history storage.History, profiles []models.Profile) tea.Cmd {
	return func() tea.Msg {
		out := make(map[string]string, len(profiles))
		if history == nil {
			return latenciesLoadedMsg{latencies: out}
		}
		ctx := context.Background()
		for _, p := range profiles {
			lat, err := history.GetLatestLatency(ctx, p.Name)
			if err != nil || lat == nil {
				continue
			}
			if lat.Success && lat.LatencyMS != nil {
				out[p.Name] = fmt.Sprintf("%dms", *lat.LatencyMS)
			} else {
				out[p.Name] = "fail"
			}
		}
		return latenciesLoadedMsg{latencies: out}
	}
}

// testSingleLatency probes one profile.
func testSingleLatency(tester *latency.Tester, p models.Profile) tea.Cmd {
	return func() tea.Msg {
		return singleLatencyDoneMsg{result: tester.TestSingle(context.Background(), p)}
	}
}

// testBatchLatency probes every profile, reporting progress through send.
func testBatchLatency(tester *latency.Tester, profiles []models.Profile, send func(tea.Msg)) tea.Cmd {
	return func() tea.Msg {
		progress := func(result *latency.TestResult, current, total int) {
			send(latencyTestProgressMsg{result: result, current: current, total: total})
		}
		return latencyTestDoneMsg{batch: tester.TestBatch(context.Background(), profiles, progress)}
	}
}

// importLinks appends the profiles read from source to the store.
func importLinks(imp *subscription.Importer, store *storage.Store, source string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		result, err := imp.Import(ctx, source, store)
		return importResultMsg{result: result, err: err}
	}
}

// clearNotification returns a command that fires after a delay.
func clearNotification(d time.Duration, version int) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return clearNotificationMsg{version: version}
	})
}
