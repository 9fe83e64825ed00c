package dispatcher

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comav-bio/prunner/internal/runner"
	"github.com/comav-bio/prunner/internal/stream"
)

func writeLines(t *testing.T, n int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.txt")
	f, err := os.Create(path)
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		if i > 0 {
			_, err := f.WriteString("\n")
			require.NoError(t, err)
		}
		_, err := f.WriteString("record\n")
		require.NoError(t, err)
	}
	require.NoError(t, f.Close())
	return path
}

func catSchema() stream.Schema {
	return stream.Schema{
		{Location: stream.Location{Kind: stream.LocArgvPositional, Index: 0}, Role: stream.RoleInput,
			Splitter: stream.SplitterSpec{Kind: stream.SplitterKindTag, Tag: "blank-line"}},
		{Location: stream.Location{Kind: stream.LocArgvPositional, Index: 1}, Role: stream.RoleOutput},
	}
}

func TestConstructAndWaitBalancedSplitJoinsOutput(t *testing.T) {
	in := writeLines(t, 6)
	out := filepath.Join(t.TempDir(), "out.txt")

	d := New(&runner.Local{}, nil)
	argv := []string{"cp", in, out}
	err := d.Construct(context.Background(), argv, catSchema(), stream.StdHandles{}, 3)
	require.NoError(t, err)
	assert.Equal(t, Launched, d.State())

	code, err := d.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Equal(t, Done, d.State())

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, 6, countOccurrences(string(data), "record"))
}

func countOccurrences(s, sub string) int {
	count := 0
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			count++
		}
	}
	return count
}

func TestConstructFixesKDownWhenFewerRecordsThanRequestedSplits(t *testing.T) {
	in := writeLines(t, 2)
	out := filepath.Join(t.TempDir(), "out.txt")

	d := New(&runner.Local{}, nil)
	argv := []string{"cat", in, out}
	err := d.Construct(context.Background(), argv, catSchema(), stream.StdHandles{}, 8)
	require.NoError(t, err)
	assert.Len(t, d.shards, 2)

	_, err = d.Wait(context.Background())
	require.NoError(t, err)
}

func TestConstructEmptyInputIsError(t *testing.T) {
	in := filepath.Join(t.TempDir(), "empty.txt")
	require.NoError(t, os.WriteFile(in, nil, 0644))
	out := filepath.Join(t.TempDir(), "out.txt")

	d := New(&runner.Local{}, nil)
	argv := []string{"cat", in, out}
	err := d.Construct(context.Background(), argv, catSchema(), stream.StdHandles{}, 2)
	require.Error(t, err)
}

// fakeRunner and fakeJob give deterministic control over per-shard exit
// codes, for testing the aggregate returncode rule without depending on
// externally-observable subprocess timing.
type fakeRunner struct {
	codes []int
}

func (r *fakeRunner) Launch(ctx context.Context, job runner.ShardJob) (runner.Job, error) {
	return &fakeJob{code: r.codes[job.Index]}, nil
}

func (r *fakeRunner) DefaultSplits(ctx context.Context) (int, error) {
	return len(r.codes), nil
}

type fakeJob struct {
	code int
}

func (j *fakeJob) Wait(ctx context.Context) (int, error) { return j.code, nil }
func (j *fakeJob) Poll(ctx context.Context) (*int, error) {
	code := j.code
	return &code, nil
}
func (j *fakeJob) Kill() error      { return nil }
func (j *fakeJob) Terminate() error { return nil }

func TestReturncodeReflectsFirstNonZeroShardInAscendingIndexOrder(t *testing.T) {
	in := writeLines(t, 4)
	out := filepath.Join(t.TempDir(), "out.txt")

	d := New(&fakeRunner{codes: []int{0, 0, 5, 9}}, nil)
	argv := []string{"cat", in, out}
	err := d.Construct(context.Background(), argv, catSchema(), stream.StdHandles{}, 4)
	require.NoError(t, err)

	code, err := d.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, code)
}

func TestWorkspacesAreIsolatedPerShard(t *testing.T) {
	in := writeLines(t, 4)
	out := filepath.Join(t.TempDir(), "out.txt")

	d := New(&runner.Local{}, nil)
	argv := []string{"cat", in, out}
	err := d.Construct(context.Background(), argv, catSchema(), stream.StdHandles{}, 2)
	require.NoError(t, err)

	dirs := map[string]bool{}
	for _, sh := range d.shards {
		assert.False(t, dirs[sh.ws.Dir()])
		dirs[sh.ws.Dir()] = true
	}

	_, err = d.Wait(context.Background())
	require.NoError(t, err)

	for dir := range dirs {
		_, err := os.Stat(dir)
		assert.True(t, os.IsNotExist(err))
	}
}

func TestKillBeforeLaunchIsNoOp(t *testing.T) {
	d := New(&runner.Local{}, nil)
	assert.NoError(t, d.Kill())
	assert.Equal(t, Killed, d.State())
}
