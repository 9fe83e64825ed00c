//go:build unix

package process

import (
	"os/exec"
	"syscall"
)

// ConfigureChildSignals starts the child in its own process group. It does
// not touch signal dispositions: Go's runtime handles (rather than
// ignores) SIGPIPE, and handled signals revert to their default on exec,
// so a downstream program relying on pipe-close (SIGPIPE) semantics
// already behaves as it would run standalone. Every package that spawns
// a shard child, not just this one, calls it.
func ConfigureChildSignals(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}
