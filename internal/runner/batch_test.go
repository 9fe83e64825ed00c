package runner

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comav-bio/prunner/internal/perrors"
)

func readJobFileLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	return lines
}

func TestWriteJobFileMinimal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shard.job")
	f, err := os.Create(path)
	require.NoError(t, err)

	err = writeJobFile(f, jobFileParams{
		Executable: "/usr/bin/prog",
		Arguments:  "a b",
		LogPath:    "/tmp/shard.log",
	})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	lines := readJobFileLines(t, path)
	assert.Contains(t, lines, "Executable = /usr/bin/prog")
	assert.Contains(t, lines, `Arguments = "a b"`)
	assert.Contains(t, lines, "Universe = vanilla")
	assert.Contains(t, lines, "Log = /tmp/shard.log")
	assert.Contains(t, lines, "Getenv = True")
	assert.Equal(t, "Queue", lines[len(lines)-1])
	assert.NotContains(t, lines, "When_to_transfer_output = ON_EXIT")
}

func TestWriteJobFileWithTransferAndRequirements(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shard.job")
	f, err := os.Create(path)
	require.NoError(t, err)

	err = writeJobFile(f, jobFileParams{
		Executable:    "/usr/bin/prog",
		Arguments:     "x",
		LogPath:       "/tmp/shard.log",
		TransferFiles: true,
		InputFiles:    []string{"a.txt", "b.txt"},
		Requirements:  `Arch == "X86_64"`,
		Stdout:        "/tmp/out",
		Stderr:        "/tmp/err",
		Stdin:         "/tmp/in",
	})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	text := strings.Join(readJobFileLines(t, path), "\n")
	assert.Contains(t, text, "When_to_transfer_output = ON_EXIT")
	assert.Contains(t, text, "Transfer_input_files = a.txt,b.txt")
	assert.Contains(t, text, "Should_transfer_files = IF_NEEDED")
	assert.Contains(t, text, `Requirements = Arch == "X86_64"`)
	assert.Contains(t, text, "Output = /tmp/out")
	assert.Contains(t, text, "Error = /tmp/err")
	assert.Contains(t, text, "Input = /tmp/in")
}

func TestParseClusterIDFromSubmitOutput(t *testing.T) {
	stdout := "Submitting job(s).\n1 job(s) submitted to cluster 42.\n"
	assert.Equal(t, "42", parseClusterID(stdout))
}

func TestParseClusterIDMissingReturnsEmpty(t *testing.T) {
	assert.Equal(t, "", parseClusterID("nothing useful here\n"))
}

func TestResolveExecutableAbsolutePath(t *testing.T) {
	b := &Batch{}
	path, err := resolveExecutable(context.Background(), "/usr/bin/prog", b)
	require.NoError(t, err)
	assert.Equal(t, "/usr/bin/prog", path)
}

func TestResolveExecutableRelativeWithSeparator(t *testing.T) {
	b := &Batch{}
	path, err := resolveExecutable(context.Background(), "./prog", b)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
	assert.True(t, strings.HasSuffix(path, "prog"))
}

func TestLaunchRejectsNonTransferableOutput(t *testing.T) {
	b := &Batch{TransferFiles: true}
	_, err := b.Launch(context.Background(), ShardJob{
		Index:       0,
		WorkDir:     t.TempDir(),
		Argv:        []string{"/bin/true"},
		OutputFiles: []string{"sub/dir/out.txt"},
	})
	require.Error(t, err)
	var transferErr *perrors.TransferabilityError
	require.ErrorAs(t, err, &transferErr)
}

func TestBatchBinaryDefaultsFallBack(t *testing.T) {
	b := &Batch{}
	assert.Equal(t, "condor_submit", b.binary(b.Submit, "condor_submit"))

	b.Submit = "my_submit"
	assert.Equal(t, "my_submit", b.binary(b.Submit, "condor_submit"))
}
