//go:build !windows

package process

import (
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	"shadowdeck/internal/paths"
)

// configureCommand puts the backend in its own process group so terminal
// signals reach only shadowdeck, which then stops the whole group.
func configureCommand(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	// When invoked via sudo, drop the backend back to the real user's UID/GID.
	if uid, gid, ok := paths.RealUser(); ok {
		cmd.SysProcAttr.Credential = &syscall.Credential{
			Uid: uint32(uid),
			Gid: uint32(gid),
		}
	}
}

func terminate(proc *os.Process) error {
	if err := unix.Kill(-proc.Pid, unix.SIGTERM); err == nil {
		return nil
	}
	return proc.Signal(unix.SIGTERM)
}

func kill(proc *os.Process) {
	if err := unix.Kill(-proc.Pid, unix.SIGKILL); err != nil {
		proc.Kill()
	}
}
