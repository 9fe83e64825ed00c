package stream

import "github.com/comav-bio/prunner/internal/perrors"

// Validate enforces the StreamSchema-level invariants from the data
// model: at most one binding per physical stdio channel, and a splitter
// declared for every input that isn't NoSplit.
func Validate(schema Schema) error {
	seenStd := map[LocationKind]bool{}
	for _, def := range schema {
		switch def.Location.Kind {
		case LocStdin, LocStdout, LocStderr:
			if seenStd[def.Location.Kind] {
				return &perrors.SchemaError{Msg: "schema declares the same stdio channel twice"}
			}
			seenStd[def.Location.Kind] = true
		}

		if def.Role == RoleInput && !def.HasSpecial(NoSplit) {
			if def.Splitter.Kind == SplitterNone {
				return &perrors.SchemaError{Msg: "an input stream requires a splitter unless it is NoSplit"}
			}
		}
	}
	return nil
}
