package stream

// Binding is a resolved pairing of a schema ParamDef to a concrete argv
// position (or stdio channel) and a file reference.
type Binding struct {
	Def      ParamDef
	File     FileRef
	Location Location // resolved: for argv kinds, Index is the absolute file-token index
}

// ResolvedIndex returns the absolute argv index of the file token for
// argv-bound locations, or -1 for stdio locations.
func (b Binding) ResolvedIndex() int {
	switch b.Location.Kind {
	case LocArgvPositional, LocArgvNamed:
		return b.Location.Index
	default:
		return -1
	}
}
