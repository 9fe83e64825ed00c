package splitter

import (
	"github.com/comav-bio/prunner/internal/perrors"
	"github.com/comav-bio/prunner/internal/stream"
)

// Resolve picks the splitter function for a binding, per the registry
// rules in spec §4.3: NoSplit inputs always get Passthrough(copy); output
// bindings always get Passthrough(empty); otherwise the binding's
// declared splitter spec is used.
func Resolve(b stream.Binding) (stream.SplitFunc, error) {
	if b.Def.Role == stream.RoleOutput {
		return PassthroughEmpty(), nil
	}

	if b.Def.HasSpecial(stream.NoSplit) {
		return PassthroughCopy(), nil
	}

	switch b.Def.Splitter.Kind {
	case stream.SplitterRegex:
		return Regex(b.Def.Splitter.Pattern), nil
	case stream.SplitterKindTag:
		return Kind(b.Def.Splitter.Tag)
	case stream.SplitterPassthroughCopy:
		return PassthroughCopy(), nil
	case stream.SplitterPassthroughEmpty:
		return PassthroughEmpty(), nil
	case stream.SplitterCustom:
		if b.Def.Splitter.Custom == nil {
			return nil, &perrors.SplitterError{Msg: "custom splitter declared but not provided"}
		}
		return b.Def.Splitter.Custom, nil
	default:
		return nil, &perrors.SplitterError{Msg: "no splitter declared for a non-passthrough input stream"}
	}
}
