package driver

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"

	"github.com/comav-bio/prunner/internal/dispatcher"
	"github.com/comav-bio/prunner/internal/monitor"
	"github.com/comav-bio/prunner/internal/perrors"
	"github.com/comav-bio/prunner/internal/runner"
	"github.com/comav-bio/prunner/internal/stream"
)

// Run builds the dispatcher for job, wires SIGTERM/SIGINT/SIGABRT to an
// immediate kill, blocks until every shard finishes, and returns the
// process exit code the caller's main should use. bus may be nil, which
// disables monitor event publishing entirely.
//
// On any error building or running the job, Run prints one colorized
// line naming the error's taxonomy kind to stderr (or diagErr, when
// given, for the full diagnostic) and returns exit code 1.
func Run(job JobSpec, r runner.Runner, logger *logrus.Entry, bus *monitor.Bus, diagErr *os.File) int {
	ctx := context.Background()

	argv := job.BuildArgv()
	if len(argv) == 0 {
		reportError(fmt.Errorf("no command given"), diagErr)
		return 1
	}

	cleanedArgv, inlineSchema, err := stream.ParseInline(argv)
	if err != nil {
		reportError(err, diagErr)
		return 1
	}

	fileSchema, err := job.LoadSchema()
	if err != nil {
		reportError(err, diagErr)
		return 1
	}

	schema := append(inlineSchema, fileSchema...)

	std, err := openStdio(job)
	if err != nil {
		reportError(err, diagErr)
		return 1
	}
	defer closeStdio(std)

	d := dispatcher.New(r, logger)
	d.Events = bus

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGABRT)
	killed := make(chan struct{})
	go func() {
		select {
		case <-sigCh:
			d.Kill()
			close(killed)
		case <-ctx.Done():
		}
	}()

	if err := d.Construct(ctx, cleanedArgv, schema, std, job.Splits); err != nil {
		reportError(err, diagErr)
		return 1
	}

	code, err := d.Wait(ctx)
	if err != nil {
		reportError(err, diagErr)
		return 1
	}

	select {
	case <-killed:
		return -1
	default:
	}

	return code
}

func openStdio(job JobSpec) (stream.StdHandles, error) {
	var std stream.StdHandles
	if job.Input != "" {
		f, err := os.Open(job.Input)
		if err != nil {
			return std, err
		}
		std.Stdin = f
	}
	if job.Output != "" {
		f, err := os.OpenFile(job.Output, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return std, err
		}
		std.Stdout = f
	}
	if job.ErrorFile != "" {
		f, err := os.OpenFile(job.ErrorFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return std, err
		}
		std.Stderr = f
	}
	return std, nil
}

func closeStdio(std stream.StdHandles) {
	if std.Stdin != nil {
		std.Stdin.Close()
	}
	if std.Stdout != nil {
		std.Stdout.Close()
	}
	if std.Stderr != nil {
		std.Stderr.Close()
	}
}

// reportError prints one colorized line naming err's taxonomy kind, and
// writes the full diagnostic to diagErr when the caller supplied one.
func reportError(err error, diagErr *os.File) {
	red := color.New(color.FgRed, color.Bold)
	red.Fprintf(os.Stderr, "prunner: %s error: ", perrors.Kind(err))
	fmt.Fprintln(os.Stderr, err)

	if diagErr == nil {
		return
	}
	if ext, ok := err.(*perrors.ExternalCommandError); ok {
		fmt.Fprintf(diagErr, "argv: %v\nexit code: %d\nstdout:\n%s\nstderr:\n%s\n",
			ext.Argv, ext.ExitCode, ext.Stdout, ext.Stderr)
		return
	}
	if rerr, ok := err.(*perrors.RunnerError); ok && rerr.Stderr != "" {
		fmt.Fprintf(diagErr, "%s\nstderr:\n%s\n", rerr.Msg, rerr.Stderr)
	}
}
