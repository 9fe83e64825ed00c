//go:build unix

package runner

import (
	"os/exec"
	"syscall"
)

// terminateProcess sends SIGTERM, the runner's preferred polite
// termination primitive for a local subprocess.
func terminateProcess(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	return cmd.Process.Signal(syscall.SIGTERM)
}
