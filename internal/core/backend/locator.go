// Package backend finds shadowsocks local executables and builds their
// command lines.
package backend

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"shadowdeck/internal/core/types"
)

// ExecName returns the executable base name searched for a backend kind on goos.
func ExecName(t types.BackendType, goos string) string {
	switch t {
	case types.BackendNodeJS:
		return "sslocal"
	case types.BackendGo:
		return "shadowsocks-local"
	case types.BackendPython:
		// On Windows the nodejs package installs sslocal.cmd, so the python
		// implementation is launched through the interpreter instead.
		if goos == "windows" {
			return "python"
		}
		return "sslocal"
	default:
		return "ss-local"
	}
}

// Detect guesses the backend kind from the file name in path. It is only a
// hint for deciding whether path needs to be searched again.
func Detect(path string) types.BackendType {
	return detect(path, runtime.GOOS)
}

func detect(path, goos string) types.BackendType {
	name := baseName(path)

	switch {
	case name == "ss-local":
		return types.BackendLibev
	case name == "shadowsocks-local":
		return types.BackendGo
	case strings.HasPrefix(name, "python"):
		return types.BackendPython
	case name == "sslocal":
		if goos != "windows" && strings.Contains(strings.ToLower(path), "python") {
			return types.BackendPython
		}
		return types.BackendNodeJS
	}
	return types.BackendLibev
}

// baseName returns the lower-cased file name of path without extension.
// Backslashes are treated as separators so Windows paths detect anywhere.
func baseName(path string) string {
	base := strings.ToLower(filepath.Base(strings.ReplaceAll(path, `\`, "/")))
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// Locator resolves backend executables. The zero value is not usable; use
// NewLocator.
type Locator struct {
	// SearchDirs are searched in order before PATH.
	SearchDirs []string

	goos     string
	lookPath func(string) (string, error)
}

// NewLocator creates a Locator searching dirs first, then PATH.
func NewLocator(dirs []string) *Locator {
	return &Locator{
		SearchDirs: dirs,
		goos:       runtime.GOOS,
		lookPath:   exec.LookPath,
	}
}

// Resolve returns the executable to run for backend kind t.
//
// An explicit path whose detected kind already matches t is returned as is.
// Otherwise the search dirs and then PATH are searched for the kind's
// executable name. When nothing is found the explicit path is returned
// unchanged, so a working configuration is never cleared by a failed search.
func (l *Locator) Resolve(t types.BackendType, explicit string) string {
	if explicit != "" && detect(explicit, l.goos) == t {
		return explicit
	}

	name := ExecName(t, l.goos)
	if found := l.findInDirs(name); found != "" {
		return found
	}
	if found, err := l.lookPath(name); err == nil && found != "" {
		if abs, err := filepath.Abs(found); err == nil {
			return abs
		}
		return found
	}
	return explicit
}

func (l *Locator) findInDirs(name string) string {
	candidates := []string{name}
	if l.goos == "windows" {
		candidates = append(candidates, name+".exe", name+".cmd", name+".bat")
	}

	for _, dir := range l.SearchDirs {
		if dir == "" {
			continue
		}
		for _, c := range candidates {
			path := filepath.Join(dir, c)
			if isExecutable(path, l.goos) {
				if abs, err := filepath.Abs(path); err == nil {
					return abs
				}
				return path
			}
		}
	}
	return ""
}

func isExecutable(path, goos string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}
	if goos == "windows" {
		return true
	}
	return info.Mode()&0111 != 0
}
