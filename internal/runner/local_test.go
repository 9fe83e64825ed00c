package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLaunchWaitCapturesExitCode(t *testing.T) {
	dir := t.TempDir()
	out, err := os.Create(filepath.Join(dir, "stdout"))
	require.NoError(t, err)
	defer out.Close()

	l := &Local{}
	job, err := l.Launch(context.Background(), ShardJob{
		Index:   0,
		WorkDir: dir,
		Argv:    []string{"sh", "-c", "echo hi; exit 3"},
		Stdout:  out,
	})
	require.NoError(t, err)

	code, err := job.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, code)

	data, err := os.ReadFile(out.Name())
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(data))
}

func TestLocalPollBeforeWaitIsNil(t *testing.T) {
	dir := t.TempDir()
	l := &Local{}
	job, err := l.Launch(context.Background(), ShardJob{
		Index:   0,
		WorkDir: dir,
		Argv:    []string{"sleep", "0.2"},
	})
	require.NoError(t, err)

	code, err := job.Poll(context.Background())
	require.NoError(t, err)
	assert.Nil(t, code)

	_, err = job.Wait(context.Background())
	require.NoError(t, err)
}

func TestLocalWaitIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	l := &Local{}
	job, err := l.Launch(context.Background(), ShardJob{
		Index:   0,
		WorkDir: dir,
		Argv:    []string{"true"},
	})
	require.NoError(t, err)

	code1, err := job.Wait(context.Background())
	require.NoError(t, err)
	code2, err := job.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, code1, code2)
}

func TestLocalDefaultSplitsIsPositive(t *testing.T) {
	l := &Local{}
	n, err := l.DefaultSplits(context.Background())
	require.NoError(t, err)
	assert.Greater(t, n, 0)
}
