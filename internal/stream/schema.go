// Package stream implements the command-line model: a declarative
// StreamSchema plus a concrete argv is resolved into typed StreamBindings.
package stream

import "os"

// Role is the direction of a stream relative to the wrapped command.
type Role int

const (
	RoleInput Role = iota
	RoleOutput
)

func (r Role) String() string {
	if r == RoleInput {
		return "in"
	}
	return "out"
}

// LocationKind distinguishes where in the invocation a stream lives.
type LocationKind int

const (
	LocStdin LocationKind = iota
	LocStdout
	LocStderr
	LocArgvPositional
	LocArgvNamed
)

// Location describes where a stream is found in a command line.
//
// For LocArgvPositional, Index follows the psubprocess convention: it
// names the index where a leading option *would* be, so the file itself
// is at Index+1 once resolved (negative indices count from the end of
// argv, as in Python slicing).
//
// For LocArgvNamed, Options holds the equivalent option strings (e.g.
// "-i", "--input") any one of which marks the stream.
type Location struct {
	Kind    LocationKind
	Index   int
	Options []string
}

// SpecialFlag names a non-default treatment for a stream.
type SpecialFlag int

const (
	NoSplit SpecialFlag = iota
	NoTransfer
	NoSupport
)

// SplitterKind selects which built-in splitter a ParamDef uses.
type SplitterKind int

const (
	SplitterNone SplitterKind = iota
	SplitterRegex
	SplitterKindTag // named record format, e.g. "fastq", "sam", "blank-line"
	SplitterPassthroughCopy
	SplitterPassthroughEmpty
	SplitterCustom
)

// SplitterSpec configures how an input stream is cut into shards.
type SplitterSpec struct {
	Kind    SplitterKind
	Pattern string // for SplitterRegex: literal substring or regex source
	Tag     string // for SplitterKindTag: "fastq", "sam", "blank-line", ...
	Custom  SplitFunc
}

// JoinerKind selects which joiner a ParamDef's output stream uses.
type JoinerKind int

const (
	JoinerConcat JoinerKind = iota
	JoinerTag
	JoinerCustom
)

// JoinerSpec configures how an output stream's shard files are fused.
type JoinerSpec struct {
	Kind   JoinerKind
	Tag    string
	Custom JoinFunc
}

// SplitFunc cuts one file into len(workspaces) shard files, returning one
// FileRef per workspace in workspace order.
type SplitFunc func(src FileRef, workspaces []string) ([]FileRef, error)

// JoinFunc fuses the given shard-ordered input files into out.
type JoinFunc func(out FileRef, in []FileRef) error

// ParamDef is one user-declared schema entry.
type ParamDef struct {
	Location Location
	Role     Role
	Splitter SplitterSpec
	Joiner   JoinerSpec
	Special  map[SpecialFlag]bool
}

// HasSpecial reports whether flag is set on the definition.
func (p ParamDef) HasSpecial(flag SpecialFlag) bool {
	return p.Special != nil && p.Special[flag]
}

// Schema is an ordered sequence of ParamDefs; the order is preserved into
// StreamBinding and drives argv-rewriting and join order.
type Schema []ParamDef

// FileRef is the tagged variant normalizing "file by path" vs "file by
// open handle" so downstream code never branches on "is it a string?".
type FileRef struct {
	path   string
	handle *os.File
	isPath bool
	isNil  bool
}

// PathRef builds a FileRef naming a file by path.
func PathRef(path string) FileRef { return FileRef{path: path, isPath: true} }

// HandleRef builds a FileRef wrapping an open file handle.
func HandleRef(f *os.File) FileRef { return FileRef{handle: f, isPath: false} }

// NilRef builds the absent FileRef, used when a binding has no file.
func NilRef() FileRef { return FileRef{isNil: true} }

// IsNil reports whether the ref carries neither a path nor a handle.
func (f FileRef) IsNil() bool { return f.isNil }

// IsPath reports whether the ref is backed by a path string rather than an
// open handle.
func (f FileRef) IsPath() bool { return f.isPath && !f.isNil }

// Path returns the path form of the ref. If the ref wraps a handle, its
// Name() is returned instead.
func (f FileRef) Path() string {
	if f.isNil {
		return ""
	}
	if f.isPath {
		return f.path
	}
	return f.handle.Name()
}

// Handle returns the underlying *os.File, or nil if the ref is path-backed.
func (f FileRef) Handle() *os.File {
	if f.isNil || f.isPath {
		return nil
	}
	return f.handle
}
