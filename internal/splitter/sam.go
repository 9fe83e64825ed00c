package splitter

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/comav-bio/prunner/internal/stream"
)

// splitSAM counts non-header lines (those not starting with "@") as
// records and balance-partitions them across shards, but routes the
// leading "@"-prefixed header block into the first shard only. This
// mirrors bam.py's header-preserving join from the other direction: if
// every shard kept its own header copy, the matching "sam" joiner would
// have to strip all but the first anyway, so the splitter avoids
// duplicating the header at all.
func splitSAM(src stream.FileRef, workspaces []string) ([]stream.FileRef, error) {
	header, records, err := countSAM(src.Path())
	if err != nil {
		return nil, err
	}
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

	for shardIdx, size := range sizes {
		dst, err := os.CreateTemp(workspaces[shardIdx], "shard-*"+suffix)
		if err != nil {
			return nil, err
		}
		if shardIdx == 0 {
			for _, h := range header {
				if _, err := dst.WriteString(h); err != nil {
					dst.Close()
					return nil, err
				}
			}
		}
		written := 0
		for written < size && scanner.Scan() {
			line := scanner.Text()
			if strings.HasPrefix(line, "@") {
				continue // already emitted as header
			}
			if _, err := dst.WriteString(line + "\n"); err != nil {
				dst.Close()
				return nil, err
			}
			written++
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

func countSAM(path string) (header []string, records int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "@") {
			header = append(header, line+"\n")
			continue
		}
		records++
	}
	return header, records, scanner.Err()
}
