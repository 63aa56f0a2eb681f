package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingReturnsDefaults(t *testing.T) {
	s, err := Load(filepath.Join(t.TempDir(), "shadowdeck.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestLoadOverlaysFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shadowdeck.yaml")
	content := `
log_level: debug
stop_timeout: 2s
backend_extra_args: --fast-open -u
probe:
  interval: 10m
  strategy: socks
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", s.LogLevel)
	assert.Equal(t, 2*time.Second, s.StopTimeout)
	assert.Equal(t, 10*time.Minute, s.Probe.Interval)
	assert.Equal(t, "socks", s.Probe.Strategy)
	// Unset keys keep their defaults.
	assert.Equal(t, 10, s.Probe.Workers)
	assert.Equal(t, 5*time.Second, s.Probe.Timeout)
	assert.Empty(t, s.Warnings)

	args, err := s.ExtraArgs()
	require.NoError(t, err)
	assert.Equal(t, []string{"--fast-open", "-u"}, args)
}

func TestLoadInvalidValuesFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shadowdeck.yaml")
	content := "log_level: loud\nprobe:\n  workers: -3\n  strategy: icmp\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "info", s.LogLevel)
	assert.Equal(t, 10, s.Probe.Workers)
	assert.Equal(t, "tcp", s.Probe.Strategy)
	assert.Len(t, s.Warnings, 3)
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shadowdeck.yaml")
	require.NoError(t, os.WriteFile(path, []byte("theme: dark\n"), 0600))

	s, err := Load(path)
	assert.Error(t, err)
	assert.Equal(t, Default(), s)
}

func TestLoadEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shadowdeck.yaml")
	require.NoError(t, os.WriteFile(path, nil, 0600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Default(), s)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "shadowdeck.yaml")
	s := Default()
	s.SystemProxy = true
	s.Probe.Interval = 30 * time.Minute
	s.BackendExtraArgs = `--plugin "obfs local"`

	require.NoError(t, s.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, s, loaded)
}

func TestSetAndGet(t *testing.T) {
	s := Default()

	require.NoError(t, s.Set("probe.workers", "4"))
	assert.Equal(t, 4, s.Probe.Workers)

	require.NoError(t, s.Set("stop_timeout", "750ms"))
	v, err := s.Get("stop_timeout")
	require.NoError(t, err)
	assert.Equal(t, "750ms", v)

	require.NoError(t, s.Set("system_proxy", "true"))
	assert.True(t, s.SystemProxy)

	assert.Error(t, s.Set("probe.workers", "many"))
	assert.Error(t, s.Set("probe.strategy", "icmp"))
	assert.Equal(t, "tcp", s.Probe.Strategy)
	assert.Error(t, s.Set("backend_extra_args", `"unterminated`))
	assert.Error(t, s.Set("nope", "1"))

	_, err = s.Get("nope")
	assert.Error(t, err)
	assert.Contains(t, Keys(), "probe.interval")
}
