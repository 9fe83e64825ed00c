// Package dispatcher implements the central orchestrator: it binds a
// schema against a concrete argv, splits inputs into shards, rewrites
// per-shard argv, hands jobs to a runner, and joins shard outputs back
// into the caller's requested files once every shard has finished.
package dispatcher

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/comav-bio/prunner/internal/joiner"
	"github.com/comav-bio/prunner/internal/monitor"
	"github.com/comav-bio/prunner/internal/perrors"
	"github.com/comav-bio/prunner/internal/runner"
	"github.com/comav-bio/prunner/internal/splitter"
	"github.com/comav-bio/prunner/internal/stream"
	"github.com/comav-bio/prunner/internal/workspace"
)

// State is the dispatcher's lifecycle state.
type State int

const (
	Created State = iota
	Splitting
	Launched
	Waiting
	Joining
	Done
	Killed
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Splitting:
		return "splitting"
	case Launched:
		return "launched"
	case Waiting:
		return "waiting"
	case Joining:
		return "joining"
	case Done:
		return "done"
	case Killed:
		return "killed"
	default:
		return "unknown"
	}
}

// shard holds one shard's workspace, rewritten argv, stdio handles, and
// its runner job, once launched. Its per-binding file refs live in
// Dispatcher.refsByBinding.
type shard struct {
	id      uuid.UUID
	index   int
	ws      *workspace.Workspace
	argv    []string
	stdin   *os.File
	stdout  *os.File
	stderr  *os.File
	job     runner.Job
	done    bool
	code    int
}

// Dispatcher orchestrates one parallel run of a single wrapped command.
type Dispatcher struct {
	Runner runner.Runner
	Logger *logrus.Entry
	// Events, if set, receives shard lifecycle transitions for the
	// optional monitor server. Nil disables event publishing entirely.
	Events *monitor.Bus

	state   State
	mu      sync.Mutex
	bindErr error

	shards   []*shard
	bindings []stream.Binding
	// refsByBinding[i][s] is binding i's file ref for shard s.
	refsByBinding [][]stream.FileRef
}

// New returns an idle dispatcher bound to the given runner.
func New(r runner.Runner, logger *logrus.Entry) *Dispatcher {
	return &Dispatcher{Runner: r, Logger: logger, state: Created}
}

// State returns the dispatcher's current lifecycle state.
func (d *Dispatcher) State() State {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Construct binds streams, splits inputs into shards, rewrites each
// shard's argv, and launches every shard. It does not block waiting for
// any shard to finish.
func (d *Dispatcher) Construct(ctx context.Context, argv []string, schema stream.Schema, std stream.StdHandles, requestedN int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := stream.Validate(schema); err != nil {
		return err
	}

	bindings, err := stream.Bind(argv, schema, std)
	if err != nil {
		return err
	}
	d.bindings = bindings
	d.state = Splitting

	n := requestedN
	if n <= 0 {
		splits, err := d.Runner.DefaultSplits(ctx)
		if err != nil {
			return err
		}
		n = splits
	}

	workspaces, err := buildWorkspaces(n, d.Logger)
	if err != nil {
		return err
	}

	k := -1 // effective shard count, fixed by the first splittable input
	refsByBinding := make([][]stream.FileRef, len(bindings))

	// Splittable (non-passthrough) inputs are processed first so K
	// settles before any NoSplit/passthrough input is replicated K times.
	order := splitOrder(bindings)

	for _, i := range order {
		b := bindings[i]
		splitFn, err := splitter.Resolve(b)
		if err != nil {
			return err
		}

		activeDirs := workspaceDirs(workspaces)
		if k >= 0 {
			activeDirs = activeDirs[:k]
		}

		refs, err := splitFn(b.File, activeDirs)
		if err != nil {
			return err
		}

		if b.Def.Role == stream.RoleInput && !b.Def.HasSpecial(stream.NoSplit) {
			if k == -1 {
				if len(refs) == 0 {
					closeWorkspaces(workspaces)
					return &perrors.EmptyInputError{}
				}
				k = len(refs)
				workspaces = workspaces[:k]
			} else if len(refs) != k {
				closeWorkspaces(workspaces)
				return &perrors.SplitterError{
					Msg: fmt.Sprintf("shard count mismatch: fixed at %d, got %d", k, len(refs)),
				}
			}
		}

		refsByBinding[i] = refs
	}

	if k == -1 {
		// no splittable input at all: every input was NoSplit/output;
		// the requested shard count stands.
		k = n
	}
	if k <= 0 {
		closeWorkspaces(workspaces)
		return &perrors.EmptyInputError{}
	}
	workspaces = workspaces[:k]

	d.refsByBinding = refsByBinding

	shards := make([]*shard, k)
	for s := 0; s < k; s++ {
		shards[s] = &shard{id: uuid.New(), index: s, ws: workspaces[s]}
	}
	d.shards = shards

	if err := d.rewriteArgv(argv, std); err != nil {
		return err
	}

	for _, sh := range shards {
		inFiles, outFiles := d.shardFileNames(sh.index)
		job, err := d.Runner.Launch(ctx, runner.ShardJob{
			Index:       sh.index,
			WorkDir:     sh.ws.Dir(),
			Argv:        sh.argv,
			Stdin:       sh.stdin,
			Stdout:      sh.stdout,
			Stderr:      sh.stderr,
			InputFiles:  inFiles,
			OutputFiles: outFiles,
		})
		if err != nil {
			return err
		}
		sh.job = job
		if d.Logger != nil {
			d.Logger.WithField("shard", sh.index).WithField("shard_id", sh.id).Info("shard launched")
		}
		d.publish(sh, "launched", nil)
	}

	d.state = Launched
	return nil
}

// shardFileNames collects the basenames of one shard's argv-bound input
// and output files, for runners (the batch runner) that need to declare
// file transfer or check transferability per shard.
func (d *Dispatcher) shardFileNames(shardIdx int) (in, out []string) {
	for i, b := range d.bindings {
		if b.ResolvedIndex() < 0 {
			continue
		}
		refs := d.refsByBinding[i]
		if shardIdx >= len(refs) || refs[shardIdx].IsNil() {
			continue
		}
		name := filepath.Base(refs[shardIdx].Path())
		if b.Def.Role == stream.RoleInput {
			in = append(in, name)
		} else {
			out = append(out, name)
		}
	}
	return in, out
}

// rewriteArgv builds each shard's own argv, substituting the basename of
// that shard's file for every argv-resolved binding, and wiring stdio
// bindings into the shard's stdin/stdout/stderr handles.
func (d *Dispatcher) rewriteArgv(argv []string, std stream.StdHandles) error {
	for s, sh := range d.shards {
		shardArgv := make([]string, len(argv))
		copy(shardArgv, argv)

		for i, b := range d.bindings {
			refs := d.refsByBinding[i]
			if s >= len(refs) || refs[s].IsNil() {
				continue
			}
			ref := refs[s]

			switch b.Location.Kind {
			case stream.LocArgvPositional, stream.LocArgvNamed:
				idx := b.ResolvedIndex()
				if idx >= 0 && idx < len(shardArgv) {
					shardArgv[idx] = filepath.Base(ref.Path())
				}
			case stream.LocStdin:
				f, err := os.Open(ref.Path())
				if err != nil {
					return err
				}
				sh.stdin = f
			case stream.LocStdout:
				f, err := os.OpenFile(ref.Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
				if err != nil {
					return err
				}
				sh.stdout = f
			case stream.LocStderr:
				f, err := os.OpenFile(ref.Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
				if err != nil {
					return err
				}
				sh.stderr = f
			}
		}

		sh.argv = shardArgv
	}
	return nil
}

// Wait blocks until every shard has exited, then runs every output's
// joiner and unconditionally reclaims every shard's workspace.
func (d *Dispatcher) Wait(ctx context.Context) (int, error) {
	d.mu.Lock()
	d.state = Waiting
	shards := d.shards
	d.mu.Unlock()

	for _, sh := range shards {
		code, err := sh.job.Wait(ctx)
		if err != nil {
			return 0, err
		}
		sh.done = true
		sh.code = code
		c := code
		d.publish(sh, "exited", &c)
	}

	d.mu.Lock()
	d.state = Joining
	d.mu.Unlock()

	joinErr := d.join()

	for _, sh := range shards {
		sh.ws.Close()
	}

	d.mu.Lock()
	d.state = Done
	d.mu.Unlock()

	if joinErr != nil {
		return 0, joinErr
	}
	return d.returncodeLocked(), nil
}

// join runs every output binding's joiner over its shard files,
// in shard-index order, even when one or more shards exited non-zero,
// so partial outputs remain available for debugging.
func (d *Dispatcher) join() error {
	for i, b := range d.bindings {
		if b.Def.Role != stream.RoleOutput {
			continue
		}
		joinFn, err := joiner.Resolve(b)
		if err != nil {
			return err
		}
		if err := joinFn(b.File, d.refsByBinding[i]); err != nil {
			return err
		}
	}
	return nil
}

// Returncode is a non-blocking snapshot of the aggregate exit code: the
// first non-zero code observed in ascending shard-index order, else 0,
// or nil (with a nil error) if any shard has not yet reported.
func (d *Dispatcher) Returncode(ctx context.Context) (*int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, sh := range d.shards {
		if sh.done {
			continue
		}
		code, err := sh.job.Poll(ctx)
		if err != nil {
			return nil, err
		}
		if code == nil {
			return nil, nil
		}
		sh.done = true
		sh.code = *code
	}

	code := d.returncodeLocked()
	return &code, nil
}

func (d *Dispatcher) returncodeLocked() int {
	for _, sh := range d.shards {
		if sh.code != 0 {
			return sh.code
		}
	}
	return 0
}

// Kill forwards an immediate kill to every launched shard. Calling Kill
// before any shard has launched is a no-op.
func (d *Dispatcher) Kill() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sh := range d.shards {
		if sh.job == nil {
			continue
		}
		if err := sh.job.Kill(); err != nil {
			return err
		}
	}
	d.state = Killed
	return nil
}

// Terminate forwards a polite termination request to every launched
// shard. Calling Terminate before any shard has launched is a no-op.
func (d *Dispatcher) Terminate() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, sh := range d.shards {
		if sh.job == nil {
			continue
		}
		if err := sh.job.Terminate(); err != nil {
			return err
		}
	}
	return nil
}

// buildWorkspaces eagerly creates n shard workspace directories.
func buildWorkspaces(n int, logger *logrus.Entry) ([]*workspace.Workspace, error) {
	workspaces := make([]*workspace.Workspace, 0, n)
	for i := 0; i < n; i++ {
		ws, err := workspace.New("", logger)
		if err != nil {
			closeWorkspaces(workspaces)
			return nil, err
		}
		workspaces = append(workspaces, ws)
	}
	return workspaces, nil
}

func closeWorkspaces(workspaces []*workspace.Workspace) {
	for _, ws := range workspaces {
		ws.Close()
	}
}

func workspaceDirs(workspaces []*workspace.Workspace) []string {
	dirs := make([]string, len(workspaces))
	for i, ws := range workspaces {
		dirs[i] = ws.Dir()
	}
	return dirs
}

// publish sends one shard lifecycle event to the monitor bus, if the
// dispatcher has one configured.
func (d *Dispatcher) publish(sh *shard, state string, exitCode *int) {
	if d.Events == nil {
		return
	}
	d.Events.Publish(monitor.Event{
		ShardIndex: sh.index,
		ShardID:    sh.id.String(),
		State:      state,
		ExitCode:   exitCode,
		Time:       time.Now(),
	})
}

// splitOrder returns binding indices ordered so that splittable
// (non-NoSplit) input bindings come first, letting K settle before any
// passthrough input is replicated K times.
func splitOrder(bindings []stream.Binding) []int {
	var first, rest []int
	for i, b := range bindings {
		if b.Def.Role == stream.RoleInput && !b.Def.HasSpecial(stream.NoSplit) {
			first = append(first, i)
		} else {
			rest = append(rest, i)
		}
	}
	return append(first, rest...)
}
