// Package joiner implements the joiner registry: functions that fuse
// shard-ordered output files into the caller's requested output file.
package joiner

import (
	"io"
	"os"
	"strings"

	"github.com/comav-bio/prunner/internal/perrors"
	"github.com/comav-bio/prunner/internal/stream"
)

// Concat is the default joiner: it copies bytes in shard-index order,
// overwriting the output.
func Concat(out stream.FileRef, in []stream.FileRef) error {
	dst, err := openOut(out)
	if err != nil {
		return err
	}
	defer dst.Close()

	for _, ref := range in {
		if ref.IsNil() {
			continue
		}
		if err := appendFile(dst, ref.Path()); err != nil {
			return err
		}
	}
	return nil
}

// SAM concatenates shard outputs but keeps only the first shard's leading
// "@"-prefixed header lines, avoiding the header duplication naive
// concatenation would produce for alignment-format text.
func SAM(out stream.FileRef, in []stream.FileRef) error {
	dst, err := openOut(out)
	if err != nil {
		return err
	}
	defer dst.Close()

	for i, ref := range in {
		if ref.IsNil() {
			continue
		}
		if i == 0 {
			if err := appendFile(dst, ref.Path()); err != nil {
				return err
			}
			continue
		}
		if err := appendFileSkippingHeader(dst, ref.Path()); err != nil {
			return err
		}
	}
	return nil
}

// Resolve picks the joiner function for an output binding: the binding's
// declared joiner spec, defaulting to Concat when unspecified.
func Resolve(b stream.Binding) (stream.JoinFunc, error) {
	switch b.Def.Joiner.Kind {
	case stream.JoinerTag:
		switch b.Def.Joiner.Tag {
		case "sam":
			return SAM, nil
		case "concat", "":
			return Concat, nil
		default:
			return nil, &perrors.SplitterError{Msg: "unknown joiner tag: " + b.Def.Joiner.Tag}
		}
	case stream.JoinerCustom:
		if b.Def.Joiner.Custom == nil {
			return nil, &perrors.SplitterError{Msg: "custom joiner declared but not provided"}
		}
		return b.Def.Joiner.Custom, nil
	default:
		return Concat, nil
	}
}

func openOut(out stream.FileRef) (*os.File, error) {
	if h := out.Handle(); h != nil {
		return h, nil
	}
	return os.OpenFile(out.Path(), os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0644)
}

func appendFile(dst io.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()
	_, err = io.Copy(dst, src)
	return err
}

func appendFileSkippingHeader(dst io.Writer, path string) error {
	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return err
	}
	lines := strings.SplitAfter(string(data), "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "@") {
			continue
		}
		if _, err := io.WriteString(dst, line); err != nil {
			return err
		}
	}
	return nil
}
