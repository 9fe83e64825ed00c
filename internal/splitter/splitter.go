// Package splitter implements the built-in splitter registry: functions
// that cut one input file into one file per shard workspace.
package splitter

import (
	"bufio"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/comav-bio/prunner/internal/perrors"
	"github.com/comav-bio/prunner/internal/stream"
)

// Balanced computes, for r records split across k shards, the number of
// larger shards (size ceil(r/k)) and smaller shards (size floor(r/k)).
// Larger shards come first, matching the balanced-partition rule: r mod k
// shards of size ceil(r/k), then k - (r mod k) shards of size floor(r/k).
// When r divides evenly there are no larger shards and largeSize is 0.
func Balanced(records, shards int) (largeCount, largeSize, smallCount, smallSize int) {
	if shards <= 0 {
		return 0, 0, 0, 0
	}
	if shards >= records {
		// one record per shard used, rest get zero; modeled as smallSize=0
		return records, 1, shards - records, 0
	}
	largeCount = records % shards
	smallCount = shards - largeCount
	smallSize = records / shards
	if largeCount > 0 {
		largeSize = smallSize + 1
	}
	return
}

// Regex builds a splitter whose record boundary is any line containing
// (for a plain string pattern) or matching (for a regex pattern) expr.
func Regex(pattern string) stream.SplitFunc {
	isLiteral, re := compilePattern(pattern)
	return func(src stream.FileRef, workspaces []string) ([]stream.FileRef, error) {
		isBoundary := func(line string) bool {
			if isLiteral {
				return strings.Contains(line, pattern)
			}
			return re.MatchString(line)
		}
		return splitByBoundary(src, workspaces, isBoundary)
	}
}

// compilePattern mirrors the original's "string-contains for plain
// strings, regex search otherwise" rule: a pattern containing no regex
// metacharacters is treated as a literal substring match.
func compilePattern(pattern string) (literal bool, re *regexp.Regexp) {
	if !strings.ContainsAny(pattern, `.*+?()[]{}|^$\`) {
		return true, nil
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return true, nil
	}
	return false, compiled
}

// Kind builds a splitter for a named record format.
func Kind(tag string) (stream.SplitFunc, error) {
	switch tag {
	case "blank-line":
		return func(src stream.FileRef, workspaces []string) ([]stream.FileRef, error) {
			return splitByBoundary(src, workspaces, func(line string) bool {
				return strings.TrimRight(line, "\r\n") == ""
			})
		}, nil
	case "fastq":
		return splitFastq, nil
	case "sam":
		return splitSAM, nil
	default:
		return nil, &perrors.SplitterError{Msg: "unknown kind splitter tag: " + tag}
	}
}

// PassthroughCopy returns a splitter that writes an identical copy of src
// into every workspace, for NoSplit inputs that must travel to every shard.
func PassthroughCopy() stream.SplitFunc {
	return func(src stream.FileRef, workspaces []string) ([]stream.FileRef, error) {
		out := make([]stream.FileRef, 0, len(workspaces))
		for _, ws := range workspaces {
			dst, err := shardFilePath(src, ws)
			if err != nil {
				return nil, err
			}
			if err := copyFile(src.Path(), dst); err != nil {
				return nil, err
			}
			out = append(out, stream.PathRef(dst))
		}
		return out, nil
	}
}

// PassthroughEmpty returns a splitter that produces only placeholder
// paths, one per workspace, for output streams.
func PassthroughEmpty() stream.SplitFunc {
	return func(src stream.FileRef, workspaces []string) ([]stream.FileRef, error) {
		out := make([]stream.FileRef, 0, len(workspaces))
		for _, ws := range workspaces {
			dst, err := shardFilePath(src, ws)
			if err != nil {
				return nil, err
			}
			out = append(out, stream.PathRef(dst))
		}
		return out, nil
	}
}

func shardFilePath(src stream.FileRef, workspace string) (string, error) {
	suffix := filepath.Ext(src.Path())
	f, err := os.CreateTemp(workspace, "shard-*"+suffix)
	if err != nil {
		return "", err
	}
	name := f.Name()
	f.Close()
	return name, nil
}

func copyFile(srcPath, dstPath string) error {
	info, err := os.Stat(srcPath)
	if err != nil {
		return err
	}
	in, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dstPath, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, info.Mode())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Chmod(dstPath, info.Mode())
}

// splitByBoundary is the shared engine for the regex and blank-line
// splitters: it counts records delimited by isBoundary, then distributes
// them across workspaces with the balanced-partition rule, closing each
// shard file as soon as it is fully written to respect the FD budget.
func splitByBoundary(src stream.FileRef, workspaces []string, isBoundary func(string) bool) ([]stream.FileRef, error) {
	records, err := countRecords(src.Path(), isBoundary)
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

	f, err := os.Open(src.Path())
	if err != nil {
		return nil, err
	}
	defer f.Close()
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

	out := make([]stream.FileRef, 0, k)
	reader := bufio.NewReaderSize(f, 64*1024)

	var pending strings.Builder
	haveFirst := false
	recordIdx := 0

	flushRecord := func(w io.Writer) error {
		_, err := io.WriteString(w, pending.String())
		pending.Reset()
		return err
	}

	wsIdx := 0
	var cur *os.File
	remaining := 0
	suffix := filepath.Ext(src.Path())

	openNext := func() error {
		dst, err := os.CreateTemp(workspaces[wsIdx], "shard-*"+suffix)
		if err != nil {
			return err
		}
		cur = dst
		remaining = sizes[wsIdx]
		out = append(out, stream.PathRef(dst.Name()))
		wsIdx++
		return nil
	}

	if err := openNext(); err != nil {
		return nil, err
	}

	for {
		line, readErr := reader.ReadString('\n')
		if len(line) > 0 {
			if isBoundary(line) && haveFirst {
				if err := flushRecord(cur); err != nil {
					return nil, err
				}
				recordIdx++
				remaining--
				if remaining <= 0 && wsIdx < len(workspaces) {
					if err := cur.Close(); err != nil {
						return nil, err
					}
					if err := applyMode(out[len(out)-1].Path(), mode); err != nil {
						return nil, err
					}
					if err := openNext(); err != nil {
						return nil, err
					}
				}
				pending.WriteString(line)
			} else {
				pending.WriteString(line)
				haveFirst = true
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return nil, readErr
		}
	}
	if err := flushRecord(cur); err != nil {
		return nil, err
	}
	if err := cur.Close(); err != nil {
		return nil, err
	}
	if err := applyMode(out[len(out)-1].Path(), mode); err != nil {
		return nil, err
	}

	return out, nil
}

func countRecords(path string, isBoundary func(string) bool) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	reader := bufio.NewReaderSize(f, 64*1024)
	count := 0
	haveFirst := false
	for {
		line, readErr := reader.ReadString('\n')
		if len(line) > 0 {
			if isBoundary(line) {
				if haveFirst {
					count++
				}
				haveFirst = true
			} else {
				haveFirst = true
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				break
			}
			return 0, readErr
		}
	}
	if haveFirst {
		count++ // the final, still-open record
	}
	return count, nil
}

func fileMode(path string) (os.FileMode, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.Mode(), nil
}

func applyMode(path string, mode os.FileMode) error {
	return os.Chmod(path, mode)
}
