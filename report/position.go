package report

import "fmt"

// Position identifies a location in a MIL source unit for diagnostics.  Line
// and column numbers are zero-indexed.
type Position struct {
	// File is the representative path of the source unit.
	File string

	// Line and Col locate the start of the construct.
	Line, Col int
}

// BuiltinPosition is the position used for definitions synthesized by the
// compiler itself: derived blocks, specializations, builtin primitives, etc.
var BuiltinPosition = &Position{File: "<builtin>"}

func (p *Position) String() string {
	if p == nil || p == BuiltinPosition {
		return "<builtin>"
	}

	return fmt.Sprintf("%s:%d:%d", p.File, p.Line+1, p.Col+1)
}
