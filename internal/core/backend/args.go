package backend

import (
	"strconv"
	"strings"

	"shadowdeck/internal/core/types"
	"shadowdeck/internal/storage/models"
)

// ArgsOptions adjusts the generated command line.
type ArgsOptions struct {
	Verbose bool     // ask the backend for verbose logging
	Extra   []string // appended verbatim
}

// Args builds the argument list for launching executable path as backend
// kind t with profile p.
func Args(t types.BackendType, path string, p models.Profile, opts ArgsOptions) []string {
	var args []string

	// python.exe needs the module name in front of the shadowsocks flags.
	if t == types.BackendPython && isInterpreter(path) {
		args = append(args, "-m", "shadowsocks.local")
	}

	args = append(args,
		"-s", p.Server,
		"-p", p.ServerPort,
		"-k", p.Password,
		"-m", p.Method,
		"-b", p.LocalAddr,
		"-l", p.LocalPort,
		"-t", strconv.Itoa(p.TimeoutSeconds()),
	)

	if opts.Verbose {
		switch t {
		case types.BackendGo:
			args = append(args, "-d")
		case types.BackendLibev, types.BackendPython:
			args = append(args, "-v")
		}
	}

	return append(args, opts.Extra...)
}

func isInterpreter(path string) bool {
	return strings.HasPrefix(baseName(path), "python")
}
