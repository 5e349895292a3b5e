package mil

import (
	"fmt"

	"milc/typing"
)

// Atom is the parent interface for the smallest syntactic values of MIL:
// temporaries, literal constants, and references to top-level definitions.
// Atoms are immutable and appear in argument lists and tails.
type Atom interface {
	// Repr returns the textual representation of the atom.
	Repr() string

	atom()
}

// -----------------------------------------------------------------------------

// Temp is a local binder, unique by identity rather than by name.  A temp is
// owned by exactly one definition at a time: derived and specialized copies
// always allocate fresh temps.
type Temp struct {
	num int

	// Type is the type assigned to this temp during checking.
	Type typing.Type
}

var tempCount int

// NewTemp allocates a fresh temporary.
func NewTemp() *Temp {
	tempCount++
	return &Temp{num: tempCount}
}

// MakeTemps allocates n fresh temporaries.
func MakeTemps(n int) []*Temp {
	ts := make([]*Temp, n)
	for i := range ts {
		ts[i] = NewTemp()
	}

	return ts
}

func (t *Temp) Repr() string {
	return fmt.Sprintf("t%d", t.num)
}

func (t *Temp) atom() {}

// -----------------------------------------------------------------------------

// WordConst is a literal machine word or bit-vector constant.  Wide bit
// vector constants keep their full value here until representation lowering
// splits them into machine words.
type WordConst struct {
	Value int64

	// Type records the constant's checked type.  It is a word unless the
	// constant was written at a bit-vector type.
	Type typing.Type
}

func (wc *WordConst) Repr() string {
	return fmt.Sprintf("%d", wc.Value)
}

func (wc *WordConst) atom() {}

// -----------------------------------------------------------------------------

// FlagConst is a literal boolean flag.
type FlagConst struct {
	Value bool
}

func (fc *FlagConst) Repr() string {
	if fc.Value {
		return "true"
	}

	return "false"
}

func (fc *FlagConst) atom() {}

// -----------------------------------------------------------------------------

// Global is a reference to a top-level definition used as a value: a
// TopLevel, an Area, or an External.
type Global struct {
	Defn Defn
}

func (g *Global) Repr() string {
	return g.Defn.Name()
}

func (g *Global) atom() {}

// -----------------------------------------------------------------------------

// ReprAtoms renders an argument list.
func ReprAtoms(args []Atom) string {
	s := ""
	for i, a := range args {
		if i > 0 {
			s += ", "
		}

		s += a.Repr()
	}

	return s
}
