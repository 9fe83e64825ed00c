package stream

import (
	"os"

	"github.com/comav-bio/prunner/internal/perrors"
)

// StdHandles carries the caller's own stdio handles, any of which may be
// nil when the command doesn't use that channel.
type StdHandles struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Bind resolves schema against argv, producing one Binding per ParamDef in
// schema order, extended with synthetic bindings for any caller-supplied
// stdio handle the schema left unrepresented.
//
// Bind never mutates argv; callers that need the cleaned argv from the
// inline schema language should call ParseInline first.
func Bind(argv []string, schema Schema, std StdHandles) ([]Binding, error) {
	bindings := make([]Binding, 0, len(schema)+3)
	seenStd := map[LocationKind]bool{}

	for _, def := range schema {
		b, err := bindOne(argv, def, std)
		if err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
		if def.Location.Kind == LocStdin || def.Location.Kind == LocStdout || def.Location.Kind == LocStderr {
			seenStd[def.Location.Kind] = true
		}
	}

	if std.Stdin != nil && !seenStd[LocStdin] {
		bindings = append(bindings, Binding{
			Def:      ParamDef{Location: Location{Kind: LocStdin}, Role: RoleInput},
			File:     HandleRef(std.Stdin),
			Location: Location{Kind: LocStdin},
		})
	}
	if std.Stdout != nil && !seenStd[LocStdout] {
		bindings = append(bindings, Binding{
			Def:      ParamDef{Location: Location{Kind: LocStdout}, Role: RoleOutput},
			File:     HandleRef(std.Stdout),
			Location: Location{Kind: LocStdout},
		})
	}
	if std.Stderr != nil && !seenStd[LocStderr] {
		bindings = append(bindings, Binding{
			Def:      ParamDef{Location: Location{Kind: LocStderr}, Role: RoleOutput},
			File:     HandleRef(std.Stderr),
			Location: Location{Kind: LocStderr},
		})
	}

	return bindings, nil
}

func bindOne(argv []string, def ParamDef, std StdHandles) (Binding, error) {
	switch def.Location.Kind {
	case LocStdin:
		return Binding{Def: def, File: handleOrNil(std.Stdin), Location: def.Location}, nil
	case LocStdout:
		return Binding{Def: def, File: handleOrNil(std.Stdout), Location: def.Location}, nil
	case LocStderr:
		return Binding{Def: def, File: handleOrNil(std.Stderr), Location: def.Location}, nil

	case LocArgvNamed:
		for i, tok := range argv {
			if containsStr(def.Location.Options, tok) {
				if i+1 >= len(argv) {
					return Binding{}, &perrors.SchemaError{
						Msg: "option " + tok + " has no following value in argv",
					}
				}
				loc := Location{Kind: LocArgvNamed, Index: i + 1, Options: def.Location.Options}
				return Binding{Def: def, File: PathRef(argv[i+1]), Location: loc}, nil
			}
		}
		// no match: permitted for optional parameters
		return Binding{Def: def, File: NilRef(), Location: Location{Kind: LocArgvNamed, Index: -1, Options: def.Location.Options}}, nil

	case LocArgvPositional:
		p := def.Location.Index
		if p < 0 {
			p = len(argv) + p
		}
		if p < 0 || p+1 >= len(argv) {
			return Binding{}, &perrors.SchemaError{
				Msg: "positional index out of range given the concrete argv",
			}
		}
		loc := Location{Kind: LocArgvPositional, Index: p + 1}
		return Binding{Def: def, File: PathRef(argv[p+1]), Location: loc}, nil

	default:
		return Binding{}, &perrors.SchemaError{Msg: "unknown stream location kind"}
	}
}

func handleOrNil(f *os.File) FileRef {
	if f == nil {
		return NilRef()
	}
	return HandleRef(f)
}

func containsStr(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
