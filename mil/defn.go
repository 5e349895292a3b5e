package mil

import (
	"fmt"

	"milc/report"
	"milc/typing"
)

// Defn is the parent interface for top-level MIL definitions.  A definition
// has a stable identity (its pointer), a dependency set computed from its
// body, and a position for diagnostics.  Definitions are rewritten in place
// by the optimizer but never deleted once created: dead ones are only marked
// unreachable and excluded from emission.
type Defn interface {
	// Name returns the identifier associated with the definition.
	Name() string

	// Pos returns the definition's source position.
	Pos() *report.Position

	defn()
}

// -----------------------------------------------------------------------------

// Block is a named IR function: formal parameters, a sequential code body,
// and a type scheme.
type Block struct {
	Id       string
	Position *report.Position

	Params []*Temp
	Code   Code

	// Declared is the pre-declared scheme, if the source carried one;
	// generalization fills it in otherwise.
	Declared *typing.Scheme

	// Defining is the skeleton type used while checking the body.  It is nil
	// after a failed check.
	Defining *typing.BlockType

	// DoesntReturn is computed by return analysis: when set, a binding of
	// this block's call can be treated as the end of the sequence.
	DoesntReturn bool

	// NumberCalls counts non-tail calls to this block; only multiply-called
	// blocks get standalone functions.
	NumberCalls int

	// Reachable is set by the reachability shake; unreachable blocks are
	// excluded from emission but kept in the program.
	Reachable bool
}

var blockCount int

// NewBlock creates a new anonymous block with a generated identifier.
func NewBlock(pos *report.Position, params []*Temp, code Code) *Block {
	blockCount++
	return &Block{
		Id:       fmt.Sprintf("b%d", blockCount),
		Position: pos,
		Params:   params,
		Code:     code,
	}
}

func (b *Block) Name() string          { return b.Id }
func (b *Block) Pos() *report.Position { return b.Position }
func (b *Block) defn()                 {}

// Instantiate returns a fresh monomorphic instance of the block's type for a
// call site.
func (b *Block) Instantiate(sol *typing.Solver, pos *report.Position) *typing.BlockType {
	if b.Declared != nil {
		return b.Declared.Instantiate(sol, pos)
	}

	return b.Defining
}

// IsGoto tests whether this block is a "goto" block: its body is an
// immediate call to another block, and either this block has parameters or
// the called block takes no arguments.  (A block defined by b[] = b'[a1,...]
// is an entry block, not a goto block.)
func (b *Block) IsGoto() *BlockCall {
	if bc, ok := IsDone(b.Code).(*BlockCall); ok {
		if len(b.Params) > 0 || len(bc.Args) == 0 {
			return bc
		}
	}

	return nil
}

// InlineTail tests whether a call to this block with the given arguments can
// be replaced by a single tail, returning the substituted tail or nil.
func (b *Block) InlineTail(args []Atom) Tail {
	if tail := IsDone(b.Code); tail != nil {
		var s *TempSubst
		return ApplyTail(tail, s.Extend(b.Params, args))
	}

	return nil
}

// AtomBlock makes a block of the form `name[] = return a` where a is a
// constant or global (a temp would be out of scope).
func AtomBlock(name string, a Atom) *Block {
	b := NewBlock(report.BuiltinPosition, nil, &Done{Tail: &Return{Args: []Atom{a}}})
	b.Id = name
	return b
}

// -----------------------------------------------------------------------------

// ClosureDefn defines a closure: a stored environment, entry parameters, and
// a tail body that runs when the closure is entered.
type ClosureDefn struct {
	Id       string
	Position *report.Position

	// Stored are the temps bound to the captured environment.
	Stored []*Temp

	// Args are the temps bound to the arguments supplied on entry.
	Args []*Temp

	Tail Tail

	// Declared is the closure's value scheme (a FunType body).
	Declared  *typing.Scheme
	Reachable bool
}

var closureCount int

// NewClosureDefn creates a new anonymous closure definition.
func NewClosureDefn(pos *report.Position, stored, args []*Temp, tail Tail) *ClosureDefn {
	closureCount++
	return &ClosureDefn{
		Id:       fmt.Sprintf("k%d", closureCount),
		Position: pos,
		Stored:   stored,
		Args:     args,
		Tail:     tail,
	}
}

func (cd *ClosureDefn) Name() string          { return cd.Id }
func (cd *ClosureDefn) Pos() *report.Position { return cd.Position }
func (cd *ClosureDefn) defn()                 {}

// -----------------------------------------------------------------------------

// TopLevel is a global value definition whose initializer tail runs during
// program initialization.
type TopLevel struct {
	Id       string
	Position *report.Position

	Tail Tail

	Declared  *typing.Scheme
	Reachable bool
}

func (tl *TopLevel) Name() string          { return tl.Id }
func (tl *TopLevel) Pos() *report.Position { return tl.Position }
func (tl *TopLevel) defn()                 {}

// -----------------------------------------------------------------------------

// Area is a static storage definition with an alignment, an area type, and
// an optional initializer.
type Area struct {
	Id       string
	Position *report.Position

	Alignment int64
	AreaType  typing.Type
	Init      Atom

	// Size is the resolved byte size, filled in by representation lowering.
	Size int64

	Declared  *typing.Scheme
	Reachable bool
}

func (a *Area) Name() string          { return a.Id }
func (a *Area) Pos() *report.Position { return a.Position }
func (a *Area) defn()                 {}

// -----------------------------------------------------------------------------

// External is an opaque, foreign definition: only its name and declared type
// are known.
type External struct {
	Id       string
	Position *report.Position

	Declared  *typing.Scheme
	Reachable bool
}

func (e *External) Name() string          { return e.Id }
func (e *External) Pos() *report.Position { return e.Position }
func (e *External) defn()                 {}

// -----------------------------------------------------------------------------

// Dependencies returns the definitions directly referenced by d's body.
func Dependencies(d Defn) []Defn {
	var deps []Defn
	seen := make(map[Defn]bool)

	add := func(dep Defn) {
		if dep != nil && !seen[dep] {
			seen[dep] = true
			deps = append(deps, dep)
		}
	}

	switch v := d.(type) {
	case *Block:
		codeDeps(v.Code, add)
	case *ClosureDefn:
		tailDeps(v.Tail, add)
	case *TopLevel:
		tailDeps(v.Tail, add)
	case *Area:
		if g, ok := v.Init.(*Global); ok {
			add(g.Defn)
		}
	}

	return deps
}

func codeDeps(c Code, add func(Defn)) {
	switch v := c.(type) {
	case *Bind:
		tailDeps(v.Tail, add)
		codeDeps(v.Rest, add)
	case *Done:
		tailDeps(v.Tail, add)
	case *If:
		atomDeps([]Atom{v.Cond}, add)
		codeDeps(v.Then, add)
		codeDeps(v.Else, add)
	case *Case:
		atomDeps([]Atom{v.Scrut}, add)
		for _, alt := range v.Alts {
			codeDeps(alt.Body, add)
		}

		if v.Default != nil {
			codeDeps(v.Default, add)
		}
	}
}

func tailDeps(t Tail, add func(Defn)) {
	if bc, ok := t.(*BlockCall); ok {
		add(bc.Target)
	}

	if ca, ok := t.(*ClosAlloc); ok {
		add(ca.Defn)
	}

	atomDeps(TailArgs(t), add)
}

func atomDeps(args []Atom, add func(Defn)) {
	for _, a := range args {
		if g, ok := a.(*Global); ok {
			add(g.Defn)
		}
	}
}
