package errors

import (
	"errors"
	"fmt"
)

// Common error types
var (
	// Store errors
	ErrConfigLoad      = errors.New("failed to load configuration")
	ErrConfigSave      = errors.New("failed to save configuration")
	ErrIndexOutOfRange = errors.New("profile index out of range")
	ErrNoProfiles      = errors.New("no profiles")
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileInvalid  = errors.New("invalid profile or configuration")
	ErrURIInvalid      = errors.New("invalid URI")

	// Backend errors
	ErrBackendNotFound = errors.New("backend executable not found")
	ErrSpawn           = errors.New("failed to start backend")
	ErrAlreadyRunning  = errors.New("backend is already running")
	ErrNotRunning      = errors.New("backend is not running")

	// Import errors
	ErrImportEmpty = errors.New("no shadowsocks links found")
	ErrFetchFailed = errors.New("failed to fetch link list")

	// Probe errors
	ErrProbeFailed = errors.New("latency probe failed")
)

// ConfigError represents a failure to read or write the persisted store.
// Op is "load" or "save".
type ConfigError struct {
	Path string
	Op   string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ConfigError) Unwrap() []error {
	if e.Op == "save" {
		return []error{ErrConfigSave, e.Err}
	}
	return []error{ErrConfigLoad, e.Err}
}

// IndexError represents an access outside the profile list
type IndexError struct {
	Index int
	Len   int
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("profile index %d out of range [0, %d)", e.Index, e.Len)
}

func (e *IndexError) Unwrap() error {
	return ErrIndexOutOfRange
}

// URIError represents a link that could not be imported
type URIError struct {
	URI string
	Err error
}

func (e *URIError) Error() string {
	return fmt.Sprintf("invalid URI %q: %v", e.URI, e.Err)
}

func (e *URIError) Unwrap() []error {
	return []error{ErrURIInvalid, e.Err}
}

// BackendError represents a backend-related error
type BackendError struct {
	Type string
	Path string
	Err  error
}

func (e *BackendError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("%s backend: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("%s backend (%s): %v", e.Type, e.Path, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// ValidationError names the first profile field that blocks a launch.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q: %s", e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrProfileInvalid
}
