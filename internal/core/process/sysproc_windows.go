//go:build windows

package process

import (
	"os"
	"os/exec"
)

func configureCommand(cmd *exec.Cmd) {}

// Console programs cannot be interrupted individually on Windows.
func terminate(proc *os.Process) error {
	return proc.Kill()
}

func kill(proc *os.Process) {
	proc.Kill()
}
