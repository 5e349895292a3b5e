package mil

import (
	"milc/typing"
)

// Tail is the parent interface for the terminal and callable forms of MIL
// code: returns, calls, primitive calls, and allocations.
type Tail interface {
	// Repr returns the textual representation of the tail.
	Repr() string

	tail()
}

// -----------------------------------------------------------------------------

// Return delivers the given atoms as the result of the enclosing block.
type Return struct {
	Args []Atom
}

func (r *Return) Repr() string {
	return "return [" + ReprAtoms(r.Args) + "]"
}

func (r *Return) tail() {}

// -----------------------------------------------------------------------------

// BlockCall transfers control to another block with the given arguments.
type BlockCall struct {
	Target *Block
	Args   []Atom

	// Inst records the monomorphic instance of the target's scheme chosen by
	// inference at this call site.  The specializer reads it to decide which
	// instantiation of the target to generate.
	Inst *typing.BlockType
}

func (bc *BlockCall) Repr() string {
	return bc.Target.Id + "[" + ReprAtoms(bc.Args) + "]"
}

func (bc *BlockCall) tail() {}

// -----------------------------------------------------------------------------

// Enter applies a closure value to a tuple of arguments.
type Enter struct {
	Fun  Atom
	Args []Atom
}

func (e *Enter) Repr() string {
	return e.Fun.Repr() + " @ [" + ReprAtoms(e.Args) + "]"
}

func (e *Enter) tail() {}

// -----------------------------------------------------------------------------

// PrimCall invokes a primitive operation.
type PrimCall struct {
	Prim *Prim
	Args []Atom

	// Inst is the instance chosen for polymorphic primitives; nil for
	// monomorphic ones.
	Inst *typing.BlockType
}

func (pc *PrimCall) Repr() string {
	return pc.Prim.Name + "((" + ReprAtoms(pc.Args) + "))"
}

func (pc *PrimCall) tail() {}

// -----------------------------------------------------------------------------

// ClosAlloc allocates a closure capturing the given atoms for the stored
// environment of a closure definition.
type ClosAlloc struct {
	Defn *ClosureDefn
	Args []Atom
}

func (ca *ClosAlloc) Repr() string {
	return ca.Defn.Id + "{" + ReprAtoms(ca.Args) + "}"
}

func (ca *ClosAlloc) tail() {}

// -----------------------------------------------------------------------------

// DataAlloc allocates a data value with the given constructor tag and
// component atoms.
type DataAlloc struct {
	// Con is the constructor name; Tag is its runtime discriminant.
	Con string
	Tag int

	Args []Atom

	// Inst is the allocated value's data type instance.
	Inst *typing.ConType
}

func (da *DataAlloc) Repr() string {
	return da.Con + "(" + ReprAtoms(da.Args) + ")"
}

func (da *DataAlloc) tail() {}

// -----------------------------------------------------------------------------

// ApplyTail applies a temp substitution to a tail, returning a new tail that
// shares the original's targets.
func ApplyTail(t Tail, s *TempSubst) Tail {
	switch v := t.(type) {
	case *Return:
		return &Return{Args: s.ApplyAtoms(v.Args)}
	case *BlockCall:
		return &BlockCall{Target: v.Target, Args: s.ApplyAtoms(v.Args), Inst: v.Inst}
	case *Enter:
		return &Enter{Fun: s.ApplyAtom(v.Fun), Args: s.ApplyAtoms(v.Args)}
	case *PrimCall:
		return &PrimCall{Prim: v.Prim, Args: s.ApplyAtoms(v.Args), Inst: v.Inst}
	case *ClosAlloc:
		return &ClosAlloc{Defn: v.Defn, Args: s.ApplyAtoms(v.Args)}
	case *DataAlloc:
		return &DataAlloc{Con: v.Con, Tag: v.Tag, Args: s.ApplyAtoms(v.Args), Inst: v.Inst}
	}

	return t
}

// TailArgs returns the atoms appearing in a tail.
func TailArgs(t Tail) []Atom {
	switch v := t.(type) {
	case *Return:
		return v.Args
	case *BlockCall:
		return v.Args
	case *Enter:
		return append([]Atom{v.Fun}, v.Args...)
	case *PrimCall:
		return v.Args
	case *ClosAlloc:
		return v.Args
	case *DataAlloc:
		return v.Args
	}

	return nil
}

// PureTail returns whether removing a binding of this tail is safe when its
// results are unused.
func PureTail(t Tail) bool {
	switch v := t.(type) {
	case *Return, *ClosAlloc, *DataAlloc:
		return true
	case *PrimCall:
		return v.Prim.Pure
	}

	return false
}
