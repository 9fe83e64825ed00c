// Package runner defines the pluggable back-end that spawns one shard's
// process, and ships a local-subprocess runner and a batch-submission
// runner that satisfy it.
package runner

import (
	"context"
	"os"
)

// ShardJob is everything a runner needs to launch one shard.
type ShardJob struct {
	Index   int
	WorkDir string
	Argv    []string // already rewritten to basename-only file tokens
	Stdin   *os.File
	Stdout  *os.File
	Stderr  *os.File

	// InputFiles and OutputFiles name the shard's own input/output file
	// tokens by basename. The local runner ignores both; the batch
	// runner uses InputFiles to populate Transfer_input_files and
	// OutputFiles to check transferability.
	InputFiles  []string
	OutputFiles []string
}

// Job is a handle to one launched shard, in any runner backend.
type Job interface {
	// Wait blocks until the shard terminates and returns its exit code.
	Wait(ctx context.Context) (int, error)
	// Poll returns the exit code if the shard has already terminated, or
	// nil if it is still running.
	Poll(ctx context.Context) (*int, error)
	// Kill terminates the shard immediately; in-flight writes may be lost.
	Kill() error
	// Terminate asks the shard's runner to stop it via its preferred,
	// more polite termination primitive.
	Terminate() error
}

// Runner is the pluggable back-end for launching shard processes.
type Runner interface {
	// Launch starts one shard job and returns immediately with a handle
	// to it; it must not block waiting for the shard to finish.
	Launch(ctx context.Context, job ShardJob) (Job, error)
	// DefaultSplits returns this runner's recommended shard count when the
	// caller supplies none.
	DefaultSplits(ctx context.Context) (int, error)
}
