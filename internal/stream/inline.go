package stream

import (
	"strings"

	"github.com/comav-bio/prunner/internal/perrors"
)

// ParseInline scans argv for inline schema tokens of the form
// ">defn#value#" (input) or "<defn#value#" (output), where defn is a
// ";"-separated list of key=val pairs (e.g. "splitter=>"). It returns the
// cleaned argv (each matched token replaced by its value) together with
// the ParamDefs synthesized from those tokens, appended in argv order.
//
// A token whose value begins with "-" becomes an ArgvNamed definition on
// that option string; otherwise it becomes ArgvPositional at the token's
// index in the cleaned argv.
func ParseInline(argv []string) ([]string, Schema, error) {
	cleaned := make([]string, 0, len(argv))
	var defs Schema

	for _, tok := range argv {
		if !isInlineToken(tok) {
			cleaned = append(cleaned, tok)
			continue
		}

		var role Role
		switch tok[0] {
		case '>':
			role = RoleInput
		case '<':
			role = RoleOutput
		}

		body := tok[1 : len(tok)-1]
		parts := strings.SplitN(body, "#", 2)
		if len(parts) != 2 {
			return nil, nil, &perrors.SchemaError{Msg: "malformed inline schema token: " + tok}
		}
		definition, value := parts[0], parts[1]

		// LocArgvPositional.Index names the slot one before the file
		// token (see Location's doc comment), so it is the cleaned
		// slice's length before the value is appended, minus one.
		index := len(cleaned) - 1
		cleaned = append(cleaned, value)

		def := ParamDef{Role: role}
		if strings.HasPrefix(value, "-") {
			def.Location = Location{Kind: LocArgvNamed, Options: []string{strings.TrimRight(value, "-")}}
		} else {
			def.Location = Location{Kind: LocArgvPositional, Index: index}
		}

		if definition != "" {
			for _, item := range strings.Split(definition, ";") {
				if item == "" {
					continue
				}
				kv := strings.SplitN(item, "=", 2)
				if len(kv) != 2 {
					return nil, nil, &perrors.SchemaError{Msg: "malformed inline schema definition item: " + item}
				}
				if err := applyInlineKV(&def, kv[0], kv[1]); err != nil {
					return nil, nil, err
				}
			}
		}

		defs = append(defs, def)
	}

	return cleaned, defs, nil
}

func isInlineToken(tok string) bool {
	if len(tok) < 2 {
		return false
	}
	return (tok[0] == '>' || tok[0] == '<') && tok[len(tok)-1] == '#'
}

func applyInlineKV(def *ParamDef, key, value string) error {
	switch key {
	case "splitter":
		def.Splitter = SplitterSpec{Kind: SplitterRegex, Pattern: value}
	case "kind":
		def.Splitter = SplitterSpec{Kind: SplitterKindTag, Tag: value}
	case "joiner":
		def.Joiner = JoinerSpec{Kind: JoinerTag, Tag: value}
	case "special":
		if def.Special == nil {
			def.Special = map[SpecialFlag]bool{}
		}
		switch value {
		case "no_split", "NoSplit":
			def.Special[NoSplit] = true
		case "no_transfer", "NoTransfer":
			def.Special[NoTransfer] = true
		case "no_support", "NoSupport":
			def.Special[NoSupport] = true
		default:
			return &perrors.SchemaError{Msg: "unknown special flag: " + value}
		}
	default:
		return &perrors.SchemaError{Msg: "unknown inline schema key: " + key}
	}
	return nil
}
