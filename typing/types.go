package typing

import (
	"fmt"
	"strings"

	"milc/report"
)

// Type is the parent interface for all MIL types.
type Type interface {
	// Repr returns a representative string of the type for purposes of error
	// reporting and trace output.
	Repr() string
}

// -----------------------------------------------------------------------------

// PrimType represents a machine-representable primitive type.  It should be
// one of the enumerated primitive types.
type PrimType int

// Enumeration of different primitive types.
const (
	PrimWord = iota // A full machine word.
	PrimFlag        // A boolean flag.
	PrimAddr        // A machine address.
	PrimUnit        // The empty (zero width) type; erased during lowering.
)

func (pt PrimType) Repr() string {
	switch pt {
	case PrimWord:
		return "word"
	case PrimFlag:
		return "flag"
	case PrimAddr:
		return "addr"
	default:
		// PrimUnit
		return "unit"
	}
}

// -----------------------------------------------------------------------------

// BitType represents a bit vector type of a known width.  Bit vectors are not
// machine representable: representation lowering rewrites every BitType into
// zero or more machine words.
type BitType int

func (bt BitType) Repr() string {
	return fmt.Sprintf("bit %d", int(bt))
}

// -----------------------------------------------------------------------------

// TupleType represents a tuple of types: the domain or range of a block.
type TupleType []Type

func (tt TupleType) Repr() string {
	sb := strings.Builder{}
	sb.WriteRune('[')

	for i, t := range tt {
		sb.WriteString(t.Repr())

		if i < len(tt)-1 {
			sb.WriteString(", ")
		}
	}

	sb.WriteRune(']')
	return sb.String()
}

// -----------------------------------------------------------------------------

// ConType represents a named (algebraic) data type applied to zero or more
// type arguments.
type ConType struct {
	Name string
	Args []Type
}

func (ct *ConType) Repr() string {
	if len(ct.Args) == 0 {
		return ct.Name
	}

	sb := strings.Builder{}
	sb.WriteString(ct.Name)
	for _, arg := range ct.Args {
		sb.WriteRune(' ')
		sb.WriteString(arg.Repr())
	}

	return sb.String()
}

// -----------------------------------------------------------------------------

// FunType represents the type of an enterable value: a closure that accepts a
// tuple of arguments and produces a tuple of results.  The range is kept as a
// bare Type so that it can remain an undetermined variable while inference is
// still discovering the result arity.
type FunType struct {
	Dom TupleType
	Rng Type
}

func (ft *FunType) Repr() string {
	return ft.Dom.Repr() + " ->> " + ft.Rng.Repr()
}

// -----------------------------------------------------------------------------

// TVar represents a unification type variable.  Each type variable has an ID
// that is unique within its solver.
type TVar struct {
	ID    int
	Value Type
	Pos   *report.Position
}

func (tv *TVar) Repr() string {
	if tv.Value != nil {
		return tv.Value.Repr()
	}

	return fmt.Sprintf("t%d", tv.ID)
}

// -----------------------------------------------------------------------------

// TGen represents a generic type variable bound by an enclosing scheme.  The
// integer is an index into the scheme's quantifier list.
type TGen int

func (tg TGen) Repr() string {
	return fmt.Sprintf("g%d", int(tg))
}

// -----------------------------------------------------------------------------

// Prune chases the substitution stored in determined type variables,
// returning the representative of the given type.
func Prune(t Type) Type {
	for {
		tv, ok := t.(*TVar)
		if !ok || tv.Value == nil {
			return t
		}

		t = tv.Value
	}
}

// Equals compares two types structurally.  Type variables compare by
// identity after pruning; generics compare by index.
func Equals(a, b Type) bool {
	a, b = Prune(a), Prune(b)

	switch v := a.(type) {
	case PrimType:
		pb, ok := b.(PrimType)
		return ok && v == pb
	case BitType:
		bb, ok := b.(BitType)
		return ok && v == bb
	case TGen:
		gb, ok := b.(TGen)
		return ok && v == gb
	case *TVar:
		return a == b
	case TupleType:
		tb, ok := b.(TupleType)
		if !ok || len(v) != len(tb) {
			return false
		}

		for i, t := range v {
			if !Equals(t, tb[i]) {
				return false
			}
		}

		return true
	case *ConType:
		cb, ok := b.(*ConType)
		if !ok || v.Name != cb.Name || len(v.Args) != len(cb.Args) {
			return false
		}

		for i, arg := range v.Args {
			if !Equals(arg, cb.Args[i]) {
				return false
			}
		}

		return true
	case *FunType:
		fb, ok := b.(*FunType)
		return ok && Equals(v.Dom, fb.Dom) && Equals(v.Rng, fb.Rng)
	}

	return false
}

// FreeTVars appends the undetermined type variables of t to acc in
// first-occurrence order, skipping duplicates.
func FreeTVars(t Type, acc []*TVar) []*TVar {
	switch v := Prune(t).(type) {
	case *TVar:
		for _, tv := range acc {
			if tv == v {
				return acc
			}
		}

		return append(acc, v)
	case TupleType:
		for _, elem := range v {
			acc = FreeTVars(elem, acc)
		}
	case *ConType:
		for _, arg := range v.Args {
			acc = FreeTVars(arg, acc)
		}
	case *FunType:
		acc = FreeTVars(v.Dom, acc)
		acc = FreeTVars(v.Rng, acc)
	}

	return acc
}

// substitute rewrites t, replacing generics and type variables according to
// the two maps.  Either map may be nil.  Types without any replaced leaves
// are returned unchanged.
func substitute(t Type, gens []Type, vars map[*TVar]Type) Type {
	switch v := Prune(t).(type) {
	case TGen:
		if gens != nil && int(v) < len(gens) {
			return gens[v]
		}

		return v
	case *TVar:
		if rep, ok := vars[v]; ok {
			return rep
		}

		return v
	case TupleType:
		nt := make(TupleType, len(v))
		for i, elem := range v {
			nt[i] = substitute(elem, gens, vars)
		}

		return nt
	case *ConType:
		if len(v.Args) == 0 {
			return v
		}

		nargs := make([]Type, len(v.Args))
		for i, arg := range v.Args {
			nargs[i] = substitute(arg, gens, vars)
		}

		return &ConType{Name: v.Name, Args: nargs}
	case *FunType:
		return &FunType{
			Dom: substitute(v.Dom, gens, vars).(TupleType),
			Rng: substitute(v.Rng, gens, vars),
		}
	default:
		return v
	}
}

// MatchTVars matches a type skeleton containing undetermined variables
// against an instance of it, recording what each variable stands for.  The
// instance is assumed to have the skeleton's shape; positions that do not
// line up are skipped rather than reported.
func MatchTVars(skel, inst Type, vars map[*TVar]Type) {
	inst = Prune(inst)

	switch v := Prune(skel).(type) {
	case *TVar:
		if _, ok := vars[v]; !ok {
			vars[v] = inst
		}
	case TupleType:
		it, ok := inst.(TupleType)
		if !ok || len(it) != len(v) {
			return
		}

		for i, elem := range v {
			MatchTVars(elem, it[i], vars)
		}
	case *ConType:
		ic, ok := inst.(*ConType)
		if !ok || len(ic.Args) != len(v.Args) {
			return
		}

		for i, arg := range v.Args {
			MatchTVars(arg, ic.Args[i], vars)
		}
	case *FunType:
		if_, ok := inst.(*FunType)
		if !ok {
			return
		}

		MatchTVars(v.Dom, if_.Dom, vars)
		MatchTVars(v.Rng, if_.Rng, vars)
	}
}

// SubstGenerics replaces every TGen index in t with the corresponding type
// from args.
func SubstGenerics(t Type, args []Type) Type {
	return substitute(t, args, nil)
}

// SubstTVars replaces the mapped type variables of t.
func SubstTVars(t Type, vars map[*TVar]Type) Type {
	return substitute(t, nil, vars)
}
