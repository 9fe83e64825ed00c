// Package process implements the process primitive: spawning one child
// with explicit argv, captured or redirected stdio, and no shell.
package process

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/comav-bio/prunner/internal/perrors"
)

// Spec describes one child invocation.
type Spec struct {
	Argv    []string
	Dir     string
	Env     []string // nil means inherit the current environment
	Stdin   *os.File // nil means /dev/null
	Stdout  *os.File // nil means captured into Result.Stdout
	Stderr  *os.File // nil means captured into Result.Stderr
	Logger  *logrus.Entry
}

// Result is what a child produced.
type Result struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Run spawns spec's child and blocks until it exits, capturing stdout and
// stderr unless the caller redirected them to files. A non-zero exit is
// reported only through Result.ExitCode; the error is non-nil only when
// the child could not be started at all (e.g. the binary is not found).
func Run(ctx context.Context, spec Spec) (Result, error) {
	cmd := exec.CommandContext(ctx, spec.Argv[0], spec.Argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = spec.Env
	ConfigureChildSignals(cmd)

	var stdoutBuf, stderrBuf bytes.Buffer
	if spec.Stdout != nil {
		cmd.Stdout = spec.Stdout
	} else {
		cmd.Stdout = &stdoutBuf
	}
	if spec.Stderr != nil {
		cmd.Stderr = spec.Stderr
	} else {
		cmd.Stderr = &stderrBuf
	}
	if spec.Stdin != nil {
		cmd.Stdin = spec.Stdin
	}

	logger := spec.Logger
	if logger != nil {
		logger.WithField("argv", spec.Argv).WithField("dir", spec.Dir).Debug("spawning child")
	}
	start := time.Now()

	err := cmd.Run()

	exitCode := 0
	var startErr error
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	} else if err != nil {
		exitCode = -1
		startErr = err
	}

	if logger != nil {
		logger.WithField("exit_code", exitCode).
			WithField("elapsed", time.Since(start)).
			Info("child exited")
	}

	return Result{
		Stdout:   stdoutBuf.Bytes(),
		Stderr:   stderrBuf.Bytes(),
		ExitCode: exitCode,
	}, startErr
}

// RunRaiseOnError behaves like Run but returns an *perrors.ExternalCommandError
// when the child exits non-zero.
func RunRaiseOnError(ctx context.Context, spec Spec) (Result, error) {
	res, err := Run(ctx, spec)
	if err != nil {
		return res, err
	}
	if res.ExitCode != 0 {
		return res, &perrors.ExternalCommandError{
			Argv:     spec.Argv,
			Stdout:   string(res.Stdout),
			Stderr:   string(res.Stderr),
			ExitCode: res.ExitCode,
		}
	}
	return res, nil
}
