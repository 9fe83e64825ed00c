//go:build !unix

package process

import "os/exec"

// ConfigureChildSignals is a no-op on platforms without process groups.
func ConfigureChildSignals(cmd *exec.Cmd) {}
