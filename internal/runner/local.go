package runner

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/comav-bio/prunner/internal/process"
)

// Local spawns one subprocess per shard, each chdir'd into its own
// workspace so that the shard's basename-only argv resolves correctly.
//
// Go's os/exec has no per-process "run in directory X without touching
// the parent's cwd" primitive the way posix_spawn file actions do, so
// Local serializes the chdir+spawn step across shards and restores the
// dispatcher's original working directory at the end of each Launch, so
// it is back in place once every shard has been launched.
type Local struct {
	Logger *logrus.Entry
	mu     sync.Mutex
}

// Launch chdirs into job.WorkDir, starts the child, and restores the
// caller's previous working directory before returning.
func (l *Local) Launch(ctx context.Context, job ShardJob) (Job, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	if err := os.Chdir(job.WorkDir); err != nil {
		return nil, err
	}
	defer os.Chdir(cwd)

	var stdin *os.File
	if job.Stdin != nil {
		// reopen read-only inside the workspace, per the local-runner
		// contract: the shard's own fd, not a dup of the dispatcher's.
		f, err := os.Open(job.Stdin.Name())
		if err != nil {
			return nil, err
		}
		stdin = f
	}

	cmd := exec.CommandContext(ctx, job.Argv[0], job.Argv[1:]...)
	cmd.Dir = job.WorkDir
	process.ConfigureChildSignals(cmd)
	if stdin != nil {
		cmd.Stdin = stdin
	}
	if job.Stdout != nil {
		cmd.Stdout = job.Stdout
	}
	if job.Stderr != nil {
		cmd.Stderr = job.Stderr
	}

	if l.Logger != nil {
		l.Logger.WithField("shard", job.Index).WithField("argv", job.Argv).Info("launching local shard")
	}

	if err := cmd.Start(); err != nil {
		if stdin != nil {
			stdin.Close()
		}
		return nil, err
	}

	return &localJob{cmd: cmd, stdin: stdin, logger: l.Logger, index: job.Index}, nil
}

// DefaultSplits returns the number of online processors.
func (l *Local) DefaultSplits(ctx context.Context) (int, error) {
	return runtime.NumCPU(), nil
}

type localJob struct {
	cmd    *exec.Cmd
	stdin  *os.File
	logger *logrus.Entry
	index  int

	mu      sync.Mutex
	done    bool
	code    int
	waitErr error
}

func (j *localJob) Wait(ctx context.Context) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done {
		return j.code, j.waitErr
	}
	err := j.cmd.Wait()
	if j.stdin != nil {
		j.stdin.Close()
	}
	j.done = true
	if j.cmd.ProcessState != nil {
		j.code = j.cmd.ProcessState.ExitCode()
	} else if err != nil {
		j.code = -1
	}
	if j.logger != nil {
		j.logger.WithField("shard", j.index).WithField("exit_code", j.code).Info("local shard exited")
	}
	return j.code, nil
}

// Poll reports the exit code once Wait has reaped the shard; os/exec
// offers no race-free way to check liveness without reaping, so a local
// shard's code is only known after Wait runs. Dispatcher.Wait always
// calls Wait on every shard, so this only returns non-nil after that.
func (j *localJob) Poll(ctx context.Context) (*int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.done {
		code := j.code
		return &code, nil
	}
	return nil, nil
}

func (j *localJob) Kill() error {
	if j.cmd.Process == nil {
		return nil
	}
	return j.cmd.Process.Kill()
}

func (j *localJob) Terminate() error {
	return terminateProcess(j.cmd)
}
