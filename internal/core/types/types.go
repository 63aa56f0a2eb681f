package types

import (
	"fmt"
	"strings"
	"time"
)

// BackendType identifies which shadowsocks implementation a backend
// executable belongs to. The numeric values are stable and persisted.
type BackendType int

const (
	BackendLibev  BackendType = iota // also used when unspecified
	BackendNodeJS                    // shadowsocks-nodejs
	BackendGo                        // shadowsocks-go
	BackendPython                    // shadowsocks (python)
)

// BackendTypes lists all known backend kinds in id order.
var BackendTypes = []BackendType{BackendLibev, BackendNodeJS, BackendGo, BackendPython}

var backendNames = map[BackendType]string{
	BackendLibev:  "libev",
	BackendNodeJS: "nodejs",
	BackendGo:     "go",
	BackendPython: "python",
}

func (t BackendType) String() string {
	if name, ok := backendNames[t]; ok {
		return name
	}
	return backendNames[BackendLibev]
}

// ParseBackendType accepts a backend name or its numeric id. The empty
// string maps to libev.
func ParseBackendType(s string) (BackendType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "unspecified" {
		return BackendLibev, nil
	}
	for t, name := range backendNames {
		if s == name || s == fmt.Sprint(int(t)) {
			return t, nil
		}
	}
	return BackendLibev, fmt.Errorf("unknown backend type: %s (available: libev, nodejs, go, python)", s)
}

func (t BackendType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *BackendType) UnmarshalText(b []byte) error {
	parsed, err := ParseBackendType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// State is the process controller lifecycle state.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Status represents backend runtime status
type Status struct {
	State       State
	PID         int
	StartedAt   time.Time
	Uptime      time.Duration
	BackendType BackendType
	BackendPath string
	ProfileName string
}

// Running reports whether a child process currently exists.
func (s *Status) Running() bool {
	return s.State == StateRunning || s.State == StateStarting || s.State == StateStopping
}

// Stats represents resource usage of the backend process
type Stats struct {
	RSS        uint64  // resident memory in bytes
	CPUPercent float64 // since process start
	NumThreads int32
}

// UnmarshalJSON accepts both the name and the legacy numeric id.
func (t *BackendType) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "null" {
		*t = BackendLibev
		return nil
	}
	return t.UnmarshalText([]byte(s))
}
