//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// killProcessGroup starts c in its own process group and kills the whole
// group on cancellation, so children of sh -c die with it.
func killProcessGroup(c *exec.Cmd) {
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error {
		return syscall.Kill(-c.Process.Pid, syscall.SIGKILL)
	}
}
