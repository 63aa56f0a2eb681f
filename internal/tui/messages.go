package tui

import (
	"shadowdeck/internal/core/types"
	"shadowdeck/internal/events"
	"shadowdeck/internal/latency"
	"shadowdeck/internal/subscription"
)

// eventMsg carries a bus event into the update loop.
type eventMsg struct {
	event events.Event
}

// Backend lifecycle messages.

type startResultMsg struct {
	err error
}

type shutdownDoneMsg struct {
	err error
}

// Status polling messages.

type statusTickMsg struct{}

type statusResultMsg struct {
	status *types.Status
	stats  *types.Stats
}

// previousLogMsg holds the output of the last run, read at startup.
type previousLogMsg struct {
	data []byte
}

// Latency messages.

type latenciesLoadedMsg struct {
	latencies map[string]string
}

type latencyTestProgressMsg struct {
	result  *latency.TestResult
	current int
	total   int
}

type latencyTestDoneMsg struct {
	batch *latency.BatchResult
}

type singleLatencyDoneMsg struct {
	result *latency.TestResult
}

// probeResultMsg is sent by the probe scheduler.
type probeResultMsg struct {
	batch *latency.BatchResult
}

// Import messages.

type importResultMsg struct {
	result *subscription.Result
	err    error
}

// Notification message.

type clearNotificationMsg struct {
	version int
}
