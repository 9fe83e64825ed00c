package splitter

import (
	"bufio"
	"os"
	"path/filepath"

	"github.com/comav-bio/prunner/internal/stream"
)

// splitFastq counts FASTQ records as fixed 4-line groups (id line, sequence,
// '+' separator, quality) rather than scanning for a boundary token, since
// FASTQ records carry no unique marker line. It mirrors the record-shape
// the original FastqGeneralIterator-based splitter relied on, without
// parsing the sequence/quality payload itself.
func splitFastq(src stream.FileRef, workspaces []string) ([]stream.FileRef, error) {
	lines, err := countLines(src.Path())
	if err != nil {
		return nil, err
	}
	records := lines / 4

	return splitFixedGroup(src, workspaces, records, 4)
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	for scanner.Scan() {
		n++
	}
	return n, scanner.Err()
}

// splitFixedGroup is the shared engine for record kinds whose boundary is
// a fixed number of lines (e.g. FASTQ's 4-line records) rather than a
// marker line.
func splitFixedGroup(src stream.FileRef, workspaces []string, records, linesPerRecord int) ([]stream.FileRef, error) {
	if records == 0 {
		return nil, nil
	}
	k := len(workspaces)
	if k > records {
		k = records
	}
	workspaces = workspaces[:k]

	mode, err := fileMode(src.Path())
	if err != nil {
		return nil, err
	}

	largeCount, largeSize, smallCount, smallSize := Balanced(records, k)
	sizes := make([]int, 0, k)
	for i := 0; i < largeCount; i++ {
		sizes = append(sizes, largeSize)
	}
	for i := 0; i < smallCount; i++ {
		sizes = append(sizes, smallSize)
	}

	f, err := os.Open(src.Path())
	if err != nil {
		return nil, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	suffix := filepath.Ext(src.Path())
	out := make([]stream.FileRef, 0, k)

	for _, size := range sizes {
		dst, err := os.CreateTemp(workspaces[len(out)], "shard-*"+suffix)
		if err != nil {
			return nil, err
		}
		linesToWrite := size * linesPerRecord
		for i := 0; i < linesToWrite && scanner.Scan(); i++ {
			if _, err := dst.WriteString(scanner.Text() + "\n"); err != nil {
				dst.Close()
				return nil, err
			}
		}
		if err := dst.Close(); err != nil {
			return nil, err
		}
		if err := applyMode(dst.Name(), mode); err != nil {
			return nil, err
		}
		out = append(out, stream.PathRef(dst.Name()))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
