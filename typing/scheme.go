package typing

import (
	"fmt"

	"milc/report"
)

// BlockType is the monomorphic type of a block: a domain tuple consumed by
// the block's parameters and a range tuple produced by its body.  The range
// is a bare Type because it may remain an undetermined variable until the
// body has been checked.
type BlockType struct {
	Dom TupleType
	Rng Type
}

func (bt *BlockType) Repr() string {
	return bt.Dom.Repr() + " >>= " + bt.Rng.Repr()
}

// Key returns the canonical string form of a fully determined block type.
// It is used to key the specialization table.
func (bt *BlockType) Key() string {
	return bt.Repr()
}

// -----------------------------------------------------------------------------

// Scheme is a possibly quantified block type.  Quantified positions appear in
// the body as TGen indices in [0, Arity).  A scheme with Arity zero is
// monomorphic.
type Scheme struct {
	// Arity is the number of quantified generic variables.
	Arity int

	// Body is the block type skeleton containing TGen leaves.
	Body *BlockType
}

// MonoScheme wraps a monomorphic block type as a quantifier-free scheme.
func MonoScheme(bt *BlockType) *Scheme {
	return &Scheme{Body: bt}
}

// Quantified returns whether the scheme has any generic variables.
func (s *Scheme) Quantified() bool {
	return s.Arity > 0
}

func (s *Scheme) Repr() string {
	if !s.Quantified() {
		return s.Body.Repr()
	}

	return fmt.Sprintf("forall %d. %s", s.Arity, s.Body.Repr())
}

// Instantiate produces a fresh monomorphic instance of the scheme by
// replacing every generic with a new type variable from the solver.
func (s *Scheme) Instantiate(sol *Solver, pos *report.Position) *BlockType {
	if !s.Quantified() {
		return s.Body
	}

	fresh := make([]Type, s.Arity)
	for i := range fresh {
		fresh[i] = sol.NewTVar(pos)
	}

	return s.InstantiateWith(fresh)
}

// InstantiateWith produces the instance of the scheme at the given type
// arguments.
func (s *Scheme) InstantiateWith(args []Type) *BlockType {
	if len(args) != s.Arity {
		report.ICE("scheme instantiated with %d arguments; expected %d", len(args), s.Arity)
	}

	return &BlockType{
		Dom: SubstGenerics(s.Body.Dom, args).(TupleType),
		Rng: SubstGenerics(s.Body.Rng, args),
	}
}

// Generalize quantifies the given type variables of bt, producing a scheme
// whose generics are numbered by first occurrence in the type.  Variables of
// bt not listed in gens are left in place.
func Generalize(bt *BlockType, gens []*TVar) *Scheme {
	quantify := make(map[*TVar]Type)
	n := 0

	// number the quantified variables by first occurrence
	for _, tv := range FreeTVars(bt.Dom, FreeTVars(bt.Rng, nil)) {
		for _, g := range gens {
			if g == tv {
				quantify[tv] = TGen(n)
				n++
				break
			}
		}
	}

	return &Scheme{
		Arity: n,
		Body: &BlockType{
			Dom: SubstTVars(bt.Dom, quantify).(TupleType),
			Rng: SubstTVars(bt.Rng, quantify),
		},
	}
}

// RemoveArgs returns the scheme with the domain positions where used is
// false dropped.  Surviving generics are renumbered by first occurrence;
// generics mentioned only by removed positions disappear from the scheme.
func (s *Scheme) RemoveArgs(used []bool) *Scheme {
	dom := make(TupleType, 0, len(s.Body.Dom))
	for i, t := range s.Body.Dom {
		if used[i] {
			dom = append(dom, t)
		}
	}

	if !s.Quantified() {
		return &Scheme{Body: &BlockType{Dom: dom, Rng: s.Body.Rng}}
	}

	order := collectGens(dom, collectGens(s.Body.Rng, nil))

	args := make([]Type, s.Arity)
	for i := range args {
		args[i] = TGen(0)
	}

	for n, g := range order {
		args[g] = TGen(n)
	}

	return &Scheme{
		Arity: len(order),
		Body: &BlockType{
			Dom: SubstGenerics(dom, args).(TupleType),
			Rng: SubstGenerics(s.Body.Rng, args),
		},
	}
}

func collectGens(t Type, acc []TGen) []TGen {
	switch v := Prune(t).(type) {
	case TGen:
		for _, g := range acc {
			if g == v {
				return acc
			}
		}

		return append(acc, v)
	case TupleType:
		for _, e := range v {
			acc = collectGens(e, acc)
		}
	case *ConType:
		for _, e := range v.Args {
			acc = collectGens(e, acc)
		}
	case *FunType:
		acc = collectGens(v.Dom, acc)
		acc = collectGens(v.Rng, acc)
	}

	return acc
}

// AlphaEquiv compares two schemes for equality up to a consistent renaming of
// their generic variables.
func (s *Scheme) AlphaEquiv(other *Scheme) bool {
	if s.Arity != other.Arity {
		return false
	}

	fwd := make(map[TGen]TGen)
	bwd := make(map[TGen]TGen)
	return alphaTypes(s.Body.Dom, other.Body.Dom, fwd, bwd) &&
		alphaTypes(s.Body.Rng, other.Body.Rng, fwd, bwd)
}

// alphaTypes compares two types under a growing bijection between their
// generic variables.
func alphaTypes(a, b Type, fwd, bwd map[TGen]TGen) bool {
	a, b = Prune(a), Prune(b)

	switch v := a.(type) {
	case TGen:
		gb, ok := b.(TGen)
		if !ok {
			return false
		}

		if mapped, ok := fwd[v]; ok {
			return mapped == gb
		}

		if _, taken := bwd[gb]; taken {
			return false
		}

		fwd[v] = gb
		bwd[gb] = v
		return true
	case TupleType:
		tb, ok := b.(TupleType)
		if !ok || len(v) != len(tb) {
			return false
		}

		for i, elem := range v {
			if !alphaTypes(elem, tb[i], fwd, bwd) {
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
			if !alphaTypes(arg, cb.Args[i], fwd, bwd) {
				return false
			}
		}

		return true
	case *FunType:
		fb, ok := b.(*FunType)
		return ok && alphaTypes(v.Dom, fb.Dom, fwd, bwd) && alphaTypes(v.Rng, fb.Rng, fwd, bwd)
	default:
		return Equals(a, b)
	}
}

// SpecializingSubst computes the generic arguments that instantiate the
// scheme to the given monomorphic block type.  It is used by the specializer
// to recover the substitution from a recorded instantiation.
func (s *Scheme) SpecializingSubst(inst *BlockType) []Type {
	args := make([]Type, s.Arity)
	matchGenerics(s.Body.Dom, inst.Dom, args)
	matchGenerics(s.Body.Rng, inst.Rng, args)
	return args
}

// matchGenerics matches a scheme skeleton against an instance, recording the
// type found at each generic position.
func matchGenerics(skel, inst Type, args []Type) {
	skel, inst = Prune(skel), Prune(inst)

	switch v := skel.(type) {
	case TGen:
		if int(v) < len(args) && args[v] == nil {
			args[v] = inst
		}
	case TupleType:
		it, ok := inst.(TupleType)
		if ok && len(v) == len(it) {
			for i, elem := range v {
				matchGenerics(elem, it[i], args)
			}
		}
	case *ConType:
		ic, ok := inst.(*ConType)
		if ok && len(v.Args) == len(ic.Args) {
			for i, arg := range v.Args {
				matchGenerics(arg, ic.Args[i], args)
			}
		}
	case *FunType:
		ifn, ok := inst.(*FunType)
		if ok {
			matchGenerics(v.Dom, ifn.Dom, args)
			matchGenerics(v.Rng, ifn.Rng, args)
		}
	}
}
