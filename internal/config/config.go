// Package config handles the application settings file. Profiles live in the
// store, not here.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/shlex"
	"gopkg.in/yaml.v3"

	"shadowdeck/internal/paths"
)

// Settings are the application preferences persisted in shadowdeck.yaml.
type Settings struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level"`
	// HistoryDB is the SQLite file for run and latency history. Empty means
	// the default location in the data directory.
	HistoryDB string `yaml:"history_db"`
	// StopTimeout bounds a graceful backend stop before it is killed.
	StopTimeout time.Duration `yaml:"stop_timeout"`
	// SystemProxy points the desktop SOCKS proxy at the backend while it runs.
	SystemProxy bool `yaml:"system_proxy"`
	// BackendExtraArgs is appended to every backend command line, shell quoted.
	BackendExtraArgs string `yaml:"backend_extra_args"`

	Probe ProbeSettings `yaml:"probe"`

	// Warnings lists values replaced by defaults during Load.
	Warnings []string `yaml:"-"`
}

// ProbeSettings configures latency probes.
type ProbeSettings struct {
	// Interval between scheduled probes; zero disables scheduling.
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
	Workers  int           `yaml:"workers"`
	// Strategy is tcp or socks.
	Strategy string `yaml:"strategy"`
	// URL is fetched through the local proxy by the socks strategy.
	URL string `yaml:"url"`
}

var logLevels = []string{"debug", "info", "warn", "error"}

var strategies = []string{"tcp", "socks"}

// Default returns the built-in settings.
func Default() *Settings {
	return &Settings{
		LogLevel:    "info",
		StopTimeout: 5 * time.Second,
		Probe: ProbeSettings{
			Interval: 0,
			Timeout:  5 * time.Second,
			Workers:  10,
			Strategy: "tcp",
			URL:      "https://www.gstatic.com/generate_204",
		},
	}
}

// Load reads settings from path on top of the defaults. A missing file
// yields the defaults. Unknown keys are rejected.
func Load(path string) (*Settings, error) {
	s := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return s, fmt.Errorf("error reading settings: %w", err)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(s); err != nil && !errors.Is(err, io.EOF) {
		return Default(), fmt.Errorf("error parsing settings %s: %w", path, err)
	}

	s.normalize()
	return s, nil
}

// normalize replaces invalid values by their defaults and records a warning
// for each.
func (s *Settings) normalize() {
	d := Default()
	warn := func(key string, value interface{}, fallback interface{}) {
		s.Warnings = append(s.Warnings, fmt.Sprintf("invalid %s %v, using %v", key, value, fallback))
	}

	s.LogLevel = strings.ToLower(s.LogLevel)
	if !contains(logLevels, s.LogLevel) {
		warn("log_level", s.LogLevel, d.LogLevel)
		s.LogLevel = d.LogLevel
	}
	if s.StopTimeout <= 0 {
		warn("stop_timeout", s.StopTimeout, d.StopTimeout)
		s.StopTimeout = d.StopTimeout
	}
	if s.Probe.Interval < 0 {
		warn("probe.interval", s.Probe.Interval, d.Probe.Interval)
		s.Probe.Interval = d.Probe.Interval
	}
	if s.Probe.Timeout <= 0 {
		warn("probe.timeout", s.Probe.Timeout, d.Probe.Timeout)
		s.Probe.Timeout = d.Probe.Timeout
	}
	if s.Probe.Workers <= 0 {
		warn("probe.workers", s.Probe.Workers, d.Probe.Workers)
		s.Probe.Workers = d.Probe.Workers
	}
	s.Probe.Strategy = strings.ToLower(s.Probe.Strategy)
	if !contains(strategies, s.Probe.Strategy) {
		warn("probe.strategy", s.Probe.Strategy, d.Probe.Strategy)
		s.Probe.Strategy = d.Probe.Strategy
	}
	if s.Probe.URL == "" {
		s.Probe.URL = d.Probe.URL
	}
	if _, err := shlex.Split(s.BackendExtraArgs); err != nil {
		warn("backend_extra_args", strconv.Quote(s.BackendExtraArgs), `""`)
		s.BackendExtraArgs = ""
	}
}

// Save writes the settings to path.
func (s *Settings) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("error creating settings directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("error serializing settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("error saving settings: %w", err)
	}
	paths.ChownToRealUser(path)
	return nil
}

// ExtraArgs splits BackendExtraArgs the way a POSIX shell would.
func (s *Settings) ExtraArgs() ([]string, error) {
	if strings.TrimSpace(s.BackendExtraArgs) == "" {
		return nil, nil
	}
	return shlex.Split(s.BackendExtraArgs)
}

// HistoryPath returns the history database location.
func (s *Settings) HistoryPath() (string, error) {
	if s.HistoryDB != "" {
		return s.HistoryDB, nil
	}
	dir, err := paths.DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history.db"), nil
}

// Keys lists the settable keys in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(accessors))
	for k := range accessors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of key formatted for display.
func (s *Settings) Get(key string) (string, error) {
	a, ok := accessors[key]
	if !ok {
		return "", unknownKey(key)
	}
	return a.get(s), nil
}

// Set parses value and assigns it to key. The value is validated; an invalid
// value leaves the settings unchanged.
func (s *Settings) Set(key, value string) error {
	a, ok := accessors[key]
	if !ok {
		return unknownKey(key)
	}

	updated := *s
	updated.Warnings = nil
	if err := a.set(&updated, value); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	updated.normalize()
	if len(updated.Warnings) > 0 {
		return fmt.Errorf("%s", updated.Warnings[0])
	}
	*s = updated
	return nil
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown setting %q (available: %s)", key, strings.Join(Keys(), ", "))
}

type accessor struct {
	get func(*Settings) string
	set func(*Settings, string) error
}

var accessors = map[string]accessor{
	"log_level": {
		get: func(s *Settings) string { return s.LogLevel },
		set: func(s *Settings, v string) error { s.LogLevel = v; return nil },
	},
	"history_db": {
		get: func(s *Settings) string { return s.HistoryDB },
		set: func(s *Settings, v string) error { s.HistoryDB = v; return nil },
	},
	"stop_timeout": {
		get: func(s *Settings) string { return s.StopTimeout.String() },
		set: durationSetter(func(s *Settings) *time.Duration { return &s.StopTimeout }),
	},
	"system_proxy": {
		get: func(s *Settings) string { return strconv.FormatBool(s.SystemProxy) },
		set: func(s *Settings, v string) error {
			b, err := strconv.ParseBool(v)
			s.SystemProxy = b
			return err
		},
	},
	"backend_extra_args": {
		get: func(s *Settings) string { return s.BackendExtraArgs },
		set: func(s *Settings, v string) error {
			if _, err := shlex.Split(v); err != nil {
				return err
			}
			s.BackendExtraArgs = v
			return nil
		},
	},
	"probe.interval": {
		get: func(s *Settings) string { return s.Probe.Interval.String() },
		set: durationSetter(func(s *Settings) *time.Duration { return &s.Probe.Interval }),
	},
	"probe.timeout": {
		get: func(s *Settings) string { return s.Probe.Timeout.String() },
		set: durationSetter(func(s *Settings) *time.Duration { return &s.Probe.Timeout }),
	},
	"probe.workers": {
		get: func(s *Settings) string { return strconv.Itoa(s.Probe.Workers) },
		set: func(s *Settings, v string) error {
			n, err := strconv.Atoi(v)
			s.Probe.Workers = n
			return err
		},
	},
	"probe.strategy": {
		get: func(s *Settings) string { return s.Probe.Strategy },
		set: func(s *Settings, v string) error { s.Probe.Strategy = v; return nil },
	},
	"probe.url": {
		get: func(s *Settings) string { return s.Probe.URL },
		set: func(s *Settings, v string) error { s.Probe.URL = v; return nil },
	},
}

func durationSetter(field func(*Settings) *time.Duration) func(*Settings, string) error {
	return func(s *Settings, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return err
		}
		*field(s) = d
		return nil
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
