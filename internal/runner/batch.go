package runner

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/comav-bio/prunner/internal/perrors"
	"github.com/comav-bio/prunner/internal/process"
)

// Batch launches shards on an external batch scheduler by writing a job
// description file and submitting it, polling the scheduler's queue and
// the job's log file for completion rather than holding a live handle to
// the child the way Local does.
//
// The scheduler itself is invoked as a handful of external binaries
// (Submit/Query/Wait/Remove/Status), so Batch never links against a
// scheduler client library; any scheduler that speaks the same job-file
// dialect and exposes equivalent binaries can be substituted by changing
// the configured names.
type Batch struct {
	Logger *logrus.Entry

	Submit string // default "condor_submit"
	Query  string // default "condor_q"
	Wait   string // default "condor_wait"
	Remove string // default "condor_rm"
	Status string // default "condor_status"

	TransferFiles      bool
	TransferExecutable bool
	Requirements       string

	// LogDir, if set, overrides the default per-shard log placement
	// (inside the shard's own workspace) with shard-<index>.log files
	// under this directory instead, for a caller-named condor log path.
	LogDir string
}

func (b *Batch) binary(name, fallback string) string {
	if name == "" {
		return fallback
	}
	return name
}

// Launch writes a job file for job, submits it, and returns a handle that
// polls the scheduler and job log for completion.
func (b *Batch) Launch(ctx context.Context, job ShardJob) (Job, error) {
	if b.TransferFiles {
		for _, f := range job.OutputFiles {
			if filepath.Dir(f) != "." {
				return nil, &perrors.TransferabilityError{
					Msg: fmt.Sprintf("output file %q is not transferable: it has a directory component", f),
				}
			}
		}
	}

	executable, err := resolveExecutable(ctx, job.Argv[0], b)
	if err != nil {
		return nil, err
	}

	logDir := job.WorkDir
	if b.LogDir != "" {
		logDir = b.LogDir
	}
	logPath := filepath.Join(logDir, fmt.Sprintf("shard-%d.log", job.Index))
	logFile, err := os.Create(logPath)
	if err != nil {
		return nil, err
	}
	logFile.Close()

	jobFilePath := filepath.Join(job.WorkDir, fmt.Sprintf("shard-%d.job", job.Index))
	jobFile, err := os.Create(jobFilePath)
	if err != nil {
		return nil, err
	}
	err = writeJobFile(jobFile, jobFileParams{
		Executable:         executable,
		Arguments:          strings.Join(job.Argv[1:], " "),
		LogPath:            logPath,
		TransferFiles:      b.TransferFiles,
		TransferExecutable: b.TransferExecutable,
		InputFiles:         job.InputFiles,
		Requirements:       b.Requirements,
		Stdout:             namedPath(job.Stdout),
		Stderr:             namedPath(job.Stderr),
		Stdin:              namedPath(job.Stdin),
	})
	jobFile.Close()
	if err != nil {
		return nil, err
	}

	submit := b.binary(b.Submit, "condor_submit")
	res, err := process.Run(ctx, process.Spec{Argv: []string{submit, jobFilePath}, Logger: b.Logger})
	if err != nil {
		return nil, &perrors.RunnerError{Msg: submit + " not found in PATH"}
	}
	if res.ExitCode != 0 {
		return nil, &perrors.RunnerError{Msg: "there was a problem with " + submit, Stderr: string(res.Stderr)}
	}

	clusterID := parseClusterID(string(res.Stdout))
	if clusterID == "" {
		return nil, &perrors.RunnerError{Msg: submit + " did not report a cluster id", Stderr: string(res.Stdout)}
	}

	if b.Logger != nil {
		b.Logger.WithField("shard", job.Index).WithField("cluster", clusterID).Info("submitted batch shard")
	}

	return &batchJob{
		batch:     b,
		index:     job.Index,
		clusterID: clusterID,
		logPath:   logPath,
	}, nil
}

// DefaultSplits asks the scheduler for its total slot count and doubles
// it, so the submission queue stays warm while earlier shards finish.
func (b *Batch) DefaultSplits(ctx context.Context) (int, error) {
	status := b.binary(b.Status, "condor_status")
	res, err := process.Run(ctx, process.Spec{Argv: []string{status, "-total"}, Logger: b.Logger})
	if err != nil {
		return 0, &perrors.RunnerError{Msg: status + " not found in PATH"}
	}
	if res.ExitCode != 0 {
		return 0, &perrors.RunnerError{Msg: "there was a problem with " + status, Stderr: string(res.Stderr)}
	}
	for _, line := range strings.Split(string(res.Stdout), "\n") {
		line = strings.ToLower(strings.TrimSpace(line))
		if strings.HasPrefix(line, "total") && !strings.Contains(line, "owner") {
			fields := strings.Fields(line)
			if len(fields) < 2 {
				continue
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				continue
			}
			return n * 2, nil
		}
	}
	return 0, &perrors.RunnerError{Msg: status + " output did not contain a total slot count"}
}

func namedPath(f *os.File) string {
	if f == nil {
		return ""
	}
	return f.Name()
}

// resolveExecutable applies the batch runner's binary-resolution rule: an
// absolute path is used as-is, a relative path containing a separator is
// made absolute, and a bare name is looked up on PATH.
func resolveExecutable(ctx context.Context, name string, b *Batch) (string, error) {
	if filepath.IsAbs(name) {
		return name, nil
	}
	if strings.ContainsRune(name, os.PathSeparator) {
		return filepath.Abs(name)
	}
	res, err := process.Run(ctx, process.Spec{Argv: []string{"which", name}, Logger: b.Logger})
	if err != nil || res.ExitCode != 0 {
		return "", &perrors.RunnerError{Msg: fmt.Sprintf("could not resolve %q on PATH", name)}
	}
	return strings.TrimSpace(string(res.Stdout)), nil
}

// parseClusterID scans condor_submit's stdout for a line like
// "1 job(s) submitted to cluster 15." and returns the trailing number.
func parseClusterID(stdout string) string {
	for _, line := range strings.Split(stdout, "\n") {
		if strings.Contains(line, "submitted to cluster") {
			line = strings.TrimSpace(strings.TrimRight(strings.TrimSpace(line), "."))
			fields := strings.Fields(line)
			if len(fields) == 0 {
				continue
			}
			return fields[len(fields)-1]
		}
	}
	return ""
}

type jobFileParams struct {
	Executable         string
	Arguments          string
	LogPath            string
	TransferFiles      bool
	TransferExecutable bool
	InputFiles         []string
	Requirements       string
	Stdout, Stderr, Stdin string
}

// writeJobFile renders the line-oriented job description: one
// Key = value per line, terminated by a bare Queue line.
func writeJobFile(w *os.File, p jobFileParams) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "Executable = %s\n", p.Executable)
	fmt.Fprintf(bw, "Arguments = \"%s\"\n", p.Arguments)
	fmt.Fprintf(bw, "Universe = vanilla\n")
	fmt.Fprintf(bw, "Log = %s\n", p.LogPath)
	if p.TransferFiles {
		fmt.Fprintf(bw, "When_to_transfer_output = ON_EXIT\n")
	}
	fmt.Fprintf(bw, "Getenv = True\n")
	if p.TransferExecutable {
		fmt.Fprintf(bw, "Transfer_executable = True\n")
	}
	if len(p.InputFiles) > 0 {
		fmt.Fprintf(bw, "Transfer_input_files = %s\n", strings.Join(p.InputFiles, ","))
		if p.TransferFiles {
			fmt.Fprintf(bw, "Should_transfer_files = IF_NEEDED\n")
		}
	}
	if p.Requirements != "" {
		fmt.Fprintf(bw, "Requirements = %s\n", p.Requirements)
	}
	if p.Stdout != "" {
		fmt.Fprintf(bw, "Output = %s\n", p.Stdout)
	}
	if p.Stderr != "" {
		fmt.Fprintf(bw, "Error = %s\n", p.Stderr)
	}
	if p.Stdin != "" {
		fmt.Fprintf(bw, "Input = %s\n", p.Stdin)
	}
	fmt.Fprintf(bw, "Queue\n")
	return bw.Flush()
}

type batchJob struct {
	batch     *Batch
	index     int
	clusterID string
	logPath   string

	mu   sync.Mutex
	code *int
}

// Poll queries the scheduler's queue listing; the cluster id's absence
// means the job has left the queue, at which point the log is scanned
// for the exit code.
func (j *batchJob) Poll(ctx context.Context) (*int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.code != nil {
		return j.code, nil
	}

	query := j.batch.binary(j.batch.Query, "condor_q")
	res, err := process.Run(ctx, process.Spec{
		Argv:   []string{query, j.clusterID, "-format", `"%d.\n"`, "ClusterId"},
		Logger: j.batch.Logger,
	})
	if err != nil {
		return nil, &perrors.RunnerError{Msg: query + " not found in PATH"}
	}
	if res.ExitCode != 0 {
		return nil, &perrors.RunnerError{Msg: "there was a problem with " + query, Stderr: string(res.Stderr)}
	}
	if strings.Contains(string(res.Stdout), j.clusterID) {
		return nil, nil
	}
	code, err := j.readReturnCode()
	if err != nil {
		return nil, err
	}
	j.code = &code
	return j.code, nil
}

// Wait blocks on the scheduler's own wait primitive, then reads the
// exit code from the job log.
func (j *batchJob) Wait(ctx context.Context) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.code != nil {
		return *j.code, nil
	}

	waitBin := j.batch.binary(j.batch.Wait, "condor_wait")
	res, err := process.Run(ctx, process.Spec{Argv: []string{waitBin, j.logPath}, Logger: j.batch.Logger})
	if err != nil {
		return 0, &perrors.RunnerError{Msg: waitBin + " not found in PATH"}
	}
	if res.ExitCode != 0 {
		return 0, &perrors.RunnerError{Msg: "there was a problem with " + waitBin, Stderr: string(res.Stderr)}
	}
	code, err := j.readReturnCode()
	if err != nil {
		return 0, err
	}
	j.code = &code
	return code, nil
}

func (j *batchJob) Kill() error {
	return j.remove()
}

func (j *batchJob) Terminate() error {
	return j.remove()
}

func (j *batchJob) remove() error {
	remove := j.batch.binary(j.batch.Remove, "condor_rm")
	res, err := process.Run(context.Background(), process.Spec{Argv: []string{remove, j.clusterID}, Logger: j.batch.Logger})
	if err != nil {
		return &perrors.RunnerError{Msg: remove + " not found in PATH"}
	}
	if res.ExitCode != 0 {
		return &perrors.RunnerError{Msg: "there was a problem with " + remove, Stderr: string(res.Stderr)}
	}
	return nil
}

// readReturnCode scans the job log for a "return value N" line, the
// scheduler's own record of the child's exit status.
func (j *batchJob) readReturnCode() (int, error) {
	f, err := os.Open(j.logPath)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	code := 0
	found := false
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if idx := strings.Index(line, "return value"); idx >= 0 {
			rest := strings.TrimSpace(line[idx+len("return value"):])
			rest = strings.TrimRight(rest, ")")
			n, err := strconv.Atoi(strings.TrimSpace(rest))
			if err == nil {
				code = n
				found = true
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return 0, err
	}
	if !found {
		return 0, &perrors.RunnerError{Msg: "batch log " + j.logPath + " did not report a return value"}
	}
	return code, nil
}
