//go:build unix

package executor

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts the command in its own process group and kills
// the whole group on cancellation, so helpers forked by the binary die too.
func killProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		if c.Process == nil {
			return nil
		}
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}
