// Package driver implements the shared CLI shim both entry-point
// binaries wrap: flag parsing into a JobSpec, signal-triggered kill, and
// colorized single-line error reporting.
package driver

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/comav-bio/prunner/internal/perrors"
	"github.com/comav-bio/prunner/internal/stream"
)

// JobSpec is everything the driver needs to build and run one
// dispatcher invocation.
type JobSpec struct {
	Command      string
	Splits       int
	Output       string
	ErrorFile    string
	Input        string
	SchemaArg    string
	Requirements string
}

// paramDefDTO mirrors stream.ParamDef in a JSON-friendly shape, the
// literal/file schema format accepted by -d: a JSON array of these.
type paramDefDTO struct {
	Location struct {
		Kind    string   `json:"kind"`
		Index   int      `json:"index"`
		Options []string `json:"options"`
	} `json:"location"`
	Role     string `json:"role"`
	Splitter struct {
		Kind    string `json:"kind"`
		Pattern string `json:"pattern"`
		Tag     string `json:"tag"`
	} `json:"splitter"`
	Joiner struct {
		Kind string `json:"kind"`
		Tag  string `json:"tag"`
	} `json:"joiner"`
	Special []string `json:"special"`
}

// BuildArgv splits Command into argv the way the original command-line
// tools do: on whitespace, with no shell involved.
func (j JobSpec) BuildArgv() []string {
	return strings.Fields(j.Command)
}

// LoadSchema resolves -d's value, a path to a file or a literal JSON
// array of ParamDef-shaped records, into a stream.Schema. An empty
// SchemaArg yields an empty schema (the caller is expected to rely
// entirely on inline tokens embedded in the command string).
func (j JobSpec) LoadSchema() (stream.Schema, error) {
	if j.SchemaArg == "" {
		return nil, nil
	}

	raw := j.SchemaArg
	if data, err := os.ReadFile(j.SchemaArg); err == nil {
		raw = string(data)
	}

	var dtos []paramDefDTO
	if err := json.Unmarshal([]byte(raw), &dtos); err != nil {
		return nil, &perrors.SchemaError{Msg: "could not parse schema definition: " + err.Error()}
	}

	schema := make(stream.Schema, 0, len(dtos))
	for _, dto := range dtos {
		def, err := dto.toParamDef()
		if err != nil {
			return nil, err
		}
		schema = append(schema, def)
	}
	return schema, nil
}

func (d paramDefDTO) toParamDef() (stream.ParamDef, error) {
	var def stream.ParamDef

	switch d.Role {
	case "in", "input", "":
		def.Role = stream.RoleInput
	case "out", "output":
		def.Role = stream.RoleOutput
	default:
		return def, &perrors.SchemaError{Msg: "unknown schema role: " + d.Role}
	}

	switch d.Location.Kind {
	case "stdin":
		def.Location = stream.Location{Kind: stream.LocStdin}
	case "stdout":
		def.Location = stream.Location{Kind: stream.LocStdout}
	case "stderr":
		def.Location = stream.Location{Kind: stream.LocStderr}
	case "positional":
		def.Location = stream.Location{Kind: stream.LocArgvPositional, Index: d.Location.Index}
	case "named":
		def.Location = stream.Location{Kind: stream.LocArgvNamed, Options: d.Location.Options}
	default:
		return def, &perrors.SchemaError{Msg: "unknown schema location kind: " + d.Location.Kind}
	}

	switch d.Splitter.Kind {
	case "":
		// left as SplitterNone; valid only for NoSplit inputs or outputs
	case "regex":
		def.Splitter = stream.SplitterSpec{Kind: stream.SplitterRegex, Pattern: d.Splitter.Pattern}
	case "kind":
		def.Splitter = stream.SplitterSpec{Kind: stream.SplitterKindTag, Tag: d.Splitter.Tag}
	case "passthrough-copy":
		def.Splitter = stream.SplitterSpec{Kind: stream.SplitterPassthroughCopy}
	case "passthrough-empty":
		def.Splitter = stream.SplitterSpec{Kind: stream.SplitterPassthroughEmpty}
	default:
		return def, &perrors.SchemaError{Msg: "unknown schema splitter kind: " + d.Splitter.Kind}
	}

	switch d.Joiner.Kind {
	case "", "concat":
		// left as the zero value; joiner.Resolve defaults to Concat
	case "tag":
		def.Joiner = stream.JoinerSpec{Kind: stream.JoinerTag, Tag: d.Joiner.Tag}
	default:
		return def, &perrors.SchemaError{Msg: "unknown schema joiner kind: " + d.Joiner.Kind}
	}

	for _, flag := range d.Special {
		if def.Special == nil {
			def.Special = map[stream.SpecialFlag]bool{}
		}
		switch flag {
		case "no_split", "NoSplit":
			def.Special[stream.NoSplit] = true
		case "no_transfer", "NoTransfer":
			def.Special[stream.NoTransfer] = true
		case "no_support", "NoSupport":
			def.Special[stream.NoSupport] = true
		default:
			return def, &perrors.SchemaError{Msg: "unknown special flag: " + flag}
		}
	}

	return def, nil
}
