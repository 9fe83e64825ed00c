package splitter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comav-bio/prunner/internal/stream"
)

func TestBalancedEvenSplit(t *testing.T) {
	large, largeSize, small, smallSize := Balanced(10, 5)
	assert.Equal(t, 0, large)
	assert.Equal(t, 5, small)
	assert.Equal(t, 2, smallSize)
	assert.Equal(t, 0, largeSize)
}

func TestBalancedUnevenSplit(t *testing.T) {
	large, largeSize, small, smallSize := Balanced(10, 3)
	assert.Equal(t, 1, large)
	assert.Equal(t, 4, largeSize)
	assert.Equal(t, 2, small)
	assert.Equal(t, 3, smallSize)
	assert.Equal(t, large*largeSize+small*smallSize, 10)
}

func TestBalancedMoreShardsThanRecords(t *testing.T) {
	large, largeSize, small, _ := Balanced(2, 5)
	assert.Equal(t, 2, large)
	assert.Equal(t, 1, largeSize)
	assert.Equal(t, 3, small)
}

func writeTempFile(t *testing.T, contents string) string {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "in-*.txt")
	require.NoError(t, err)
	_, err = f.WriteString(contents)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return f.Name()
}

func makeWorkspaces(t *testing.T, n int) []string {
	t.Helper()
	dirs := make([]string, n)
	for i := range dirs {
		dirs[i] = t.TempDir()
	}
	return dirs
}

func readAll(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRegexSplitBlankLineBoundary(t *testing.T) {
	path := writeTempFile(t, "rec1a\nrec1b\n\nrec2\n\nrec3\n")
	workspaces := makeWorkspaces(t, 3)

	kindSplit, err := Kind("blank-line")
	require.NoError(t, err)

	refs, err := kindSplit(stream.PathRef(path), workspaces)
	require.NoError(t, err)
	require.Len(t, refs, 3)

	total := ""
	for _, ref := range refs {
		total += readAll(t, ref.Path())
	}
	assert.Equal(t, "rec1a\nrec1b\n\nrec2\n\nrec3\n", total)
}

func TestRegexSplitFixesKDownWhenFewerRecordsThanShards(t *testing.T) {
	path := writeTempFile(t, "only one record\n")
	workspaces := makeWorkspaces(t, 4)

	split := Regex("never-matches-anything-here")
	refs, err := split(stream.PathRef(path), workspaces)
	require.NoError(t, err)
	assert.Len(t, refs, 1)
}

func TestPassthroughCopyReplicatesToEveryWorkspace(t *testing.T) {
	path := writeTempFile(t, "shared config\n")
	workspaces := makeWorkspaces(t, 3)

	refs, err := PassthroughCopy()(stream.PathRef(path), workspaces)
	require.NoError(t, err)
	require.Len(t, refs, 3)
	for _, ref := range refs {
		assert.Equal(t, "shared config\n", readAll(t, ref.Path()))
	}
}

func TestPassthroughEmptyProducesOnePlaceholderPerWorkspace(t *testing.T) {
	path := writeTempFile(t, "ignored\n")
	workspaces := makeWorkspaces(t, 2)

	refs, err := PassthroughEmpty()(stream.PathRef(path), workspaces)
	require.NoError(t, err)
	require.Len(t, refs, 2)
	for i, ref := range refs {
		assert.Equal(t, filepath.Dir(ref.Path()), workspaces[i])
	}
}

func TestFastqSplitGroupsFourLinesPerRecord(t *testing.T) {
	fastq := "@r1\nACGT\n+\nIIII\n@r2\nTTTT\n+\nJJJJ\n@r3\nGGGG\n+\nKKKK\n@r4\nCCCC\n+\nLLLL\n"
	path := writeTempFile(t, fastq)
	workspaces := makeWorkspaces(t, 2)

	split, err := Kind("fastq")
	require.NoError(t, err)
	refs, err := split(stream.PathRef(path), workspaces)
	require.NoError(t, err)
	require.Len(t, refs, 2)

	for _, ref := range refs {
		lines := len(splitLines(readAll(t, ref.Path())))
		assert.Equal(t, 0, lines%4)
	}
}

func splitLines(s string) []string {
	var lines []string
	cur := ""
	for _, r := range s {
		if r == '\n' {
			lines = append(lines, cur)
			cur = ""
			continue
		}
		cur += string(r)
	}
	if cur != "" {
		lines = append(lines, cur)
	}
	return lines
}

func TestSAMSplitKeepsHeaderOnlyInFirstShard(t *testing.T) {
	sam := "@HD\tVN:1.6\n@SQ\tSN:chr1\nread1\t0\tchr1\t1\nread2\t0\tchr1\t5\nread3\t0\tchr1\t9\n"
	path := writeTempFile(t, sam)
	workspaces := makeWorkspaces(t, 3)

	split, err := Kind("sam")
	require.NoError(t, err)
	refs, err := split(stream.PathRef(path), workspaces)
	require.NoError(t, err)
	require.Len(t, refs, 3)

	first := readAll(t, refs[0].Path())
	assert.Contains(t, first, "@HD")
	for _, ref := range refs[1:] {
		assert.NotContains(t, readAll(t, ref.Path()), "@HD")
	}
}

func TestKindUnknownTagIsSplitterError(t *testing.T) {
	_, err := Kind("not-a-real-kind")
	require.Error(t, err)
}

func TestRegexSplitRoundTripsMissingFinalNewline(t *testing.T) {
	path := writeTempFile(t, "hola")
	workspaces := makeWorkspaces(t, 2)

	split := Regex("never-matches-anything-here")
	refs, err := split(stream.PathRef(path), workspaces)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "hola", readAll(t, refs[0].Path()))
}

func TestRegexSplitPreservesCRLFLineEndings(t *testing.T) {
	path := writeTempFile(t, "rec1\r\n\r\nrec2\r\n")
	workspaces := makeWorkspaces(t, 2)

	kindSplit, err := Kind("blank-line")
	require.NoError(t, err)
	refs, err := kindSplit(stream.PathRef(path), workspaces)
	require.NoError(t, err)

	total := ""
	for _, ref := range refs {
		total += readAll(t, ref.Path())
	}
	assert.Equal(t, "rec1\r\n\r\nrec2\r\n", total)
}
