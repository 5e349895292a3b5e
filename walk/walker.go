// Package walk type checks a MIL program and generalizes the type of every
// definition.  Checking proceeds one strongly connected component at a time,
// callees first, so that the types of non-recursive callees are fully
// generalized before their callers are examined.
package walk

import (
	"milc/depm"
	"milc/mil"
	"milc/report"
	"milc/typing"
)

// Walker holds the state of one checking run.
type Walker struct {
	rep  *report.Reporter
	sol  *typing.Solver
	prog *mil.Program
}

// Check type checks and generalizes every definition of the program.  It
// returns false if any definition failed to check; diagnostics are
// accumulated on the reporter either way.
func Check(prog *mil.Program, graph *depm.Graph, rep *report.Reporter) bool {
	w := &Walker{rep: rep, sol: typing.NewSolver(), prog: prog}

	before := rep.ErrorCount()
	for _, scc := range graph.SCCs {
		w.checkSCC(scc)
	}

	return rep.ErrorCount() == before
}

// checkSCC checks the definitions of one component together: initial types
// first so that mutually recursive references see each other's skeletons,
// then the bodies, then generalization of the group.
func (w *Walker) checkSCC(scc *depm.SCC) {
	defer report.CatchFailure(w.rep)

	for _, d := range scc.Defns {
		w.setInitialType(d)
	}

	for _, d := range scc.Defns {
		w.checkBody(d)
	}

	for _, d := range scc.Defns {
		w.generalize(d)
	}
}

// setInitialType renames a definition's temps so that every definition owns
// a distinct set, and installs the skeleton type that its body will be
// checked against.
func (w *Walker) setInitialType(d mil.Defn) {
	switch v := d.(type) {
	case *mil.Block:
		old := v.Params
		v.Params = mil.MakeTemps(len(old))

		atoms := make([]mil.Atom, len(v.Params))
		for i, t := range v.Params {
			atoms[i] = t
		}

		var s *mil.TempSubst
		v.Code = mil.CopyCode(v.Code, s.Extend(old, atoms))

		dom := make(typing.TupleType, len(v.Params))
		for i, t := range v.Params {
			t.Type = w.sol.NewTVar(v.Position)
			dom[i] = t.Type
		}

		if v.Declared == nil {
			v.Defining = &typing.BlockType{Dom: dom, Rng: w.sol.NewTVar(v.Position)}
		} else {
			v.Defining = v.Declared.Instantiate(w.sol, v.Position)
			if err := w.sol.Unify(typing.Type(v.Defining.Dom), typing.Type(dom), v.Position); err != nil {
				panic(err)
			}
		}
	case *mil.ClosureDefn:
		for _, t := range v.Stored {
			t.Type = w.sol.NewTVar(v.Position)
		}

		for _, t := range v.Args {
			t.Type = w.sol.NewTVar(v.Position)
		}
	}
}

// checkBody infers the type of a definition's body and unifies it with the
// skeleton.  A failure is recoverable only when the definition's type was
// fully declared; then the failure is reported, the definition is marked as
// having failed, and checking of the rest of the component continues.
func (w *Walker) checkBody(d mil.Defn) {
	switch v := d.(type) {
	case *mil.Block:
		if err := w.inferCode(v.Code, v.Defining.Rng, v.Position); err != nil {
			if v.Declared != nil {
				w.rep.Report(err.(*report.Failure))
				v.Defining = nil
				return
			}

			panic(err)
		}
	case *mil.ClosureDefn:
		rng, doesntReturn, err := w.inferTail(v.Tail, v.Position)
		if err != nil {
			panic(err)
		}

		dom := make(typing.TupleType, len(v.Args))
		for i, t := range v.Args {
			dom[i] = t.Type
		}

		var frng typing.Type = rng
		if doesntReturn {
			frng = w.sol.NewTVar(v.Position)
		}

		fun := &typing.FunType{Dom: dom, Rng: frng}
		if v.Declared != nil {
			inst := v.Declared.Instantiate(w.sol, v.Position)
			if err := w.sol.Unify(inst.Rng, typing.TupleType{fun}, v.Position); err != nil {
				panic(err)
			}
		} else {
			v.Declared = typing.MonoScheme(&typing.BlockType{
				Dom: typing.TupleType{},
				Rng: typing.TupleType{fun},
			})
		}
	case *mil.TopLevel:
		rng, _, err := w.inferTail(v.Tail, v.Position)
		if err != nil {
			panic(err)
		}

		if v.Declared != nil {
			inst := v.Declared.Instantiate(w.sol, v.Position)
			if err := w.sol.Unify(inst.Rng, rng, v.Position); err != nil {
				panic(err)
			}
		} else {
			v.Declared = typing.MonoScheme(&typing.BlockType{Dom: typing.TupleType{}, Rng: rng})
		}
	case *mil.Area:
		if v.Alignment <= 0 || v.Alignment&(v.Alignment-1) != 0 {
			panic(report.Raise(v.Position, "area %s alignment %d is not a power of two", v.Id, v.Alignment))
		}

		if v.Init != nil {
			it, err := w.atomType(v.Init, v.Position)
			if err != nil {
				panic(err)
			}

			if err := w.sol.Unify(it, v.AreaType, v.Position); err != nil {
				panic(err)
			}
		}
	}
}

// generalize computes the final scheme of a definition, compares it against
// any declared scheme, and reports ambiguous quantified variables.
func (w *Walker) generalize(d mil.Defn) {
	b, ok := d.(*mil.Block)
	if !ok || b.Defining == nil {
		return
	}

	gens := typing.FreeTVars(b.Defining.Dom, typing.FreeTVars(b.Defining.Rng, nil))
	inferred := typing.Generalize(b.Defining, gens)
	w.rep.Tracef("inferred %s :: %s", b.Id, inferred.Repr())

	if b.Declared == nil {
		b.Declared = inferred
	} else if !b.Declared.AlphaEquiv(inferred) {
		panic(report.Raise(b.Position,
			"declared type \"%s\" for \"%s\" does not match inferred type \"%s\"",
			b.Declared.Repr(), b.Id, inferred.Repr()))
	}

	w.findAmbigTVars(b, gens)
}

// findAmbigTVars reports quantified variables of the block's type that have
// no occurrence in a type observable from the block's own code.  This is a
// warning: generalization still completes so that the rest of the program
// can be checked.
func (w *Walker) findAmbigTVars(b *mil.Block, gens []*typing.TVar) {
	var observable []*typing.TVar
	for _, t := range b.Params {
		observable = typing.FreeTVars(t.Type, observable)
	}

	observable = collectCodeTVars(b.Code, observable)

	for _, g := range gens {
		found := false
		for _, o := range observable {
			if o == g {
				found = true
				break
			}
		}

		if !found {
			w.rep.Warnf(b.Position,
				"block \"%s\" used at type %s with ambiguous type variable %s",
				b.Id, b.Defining.Repr(), g.Repr())
		}
	}
}

// collectCodeTVars gathers the type variables of every temp bound in a code
// sequence and of every call instantiation recorded in it.
func collectCodeTVars(c mil.Code, acc []*typing.TVar) []*typing.TVar {
	switch v := c.(type) {
	case *mil.Bind:
		for _, t := range v.Vars {
			if t.Type != nil {
				acc = typing.FreeTVars(t.Type, acc)
			}
		}

		acc = collectTailTVars(v.Tail, acc)
		return collectCodeTVars(v.Rest, acc)
	case *mil.Done:
		return collectTailTVars(v.Tail, acc)
	case *mil.If:
		acc = collectCodeTVars(v.Then, acc)
		return collectCodeTVars(v.Else, acc)
	case *mil.Case:
		for _, alt := range v.Alts {
			acc = collectCodeTVars(alt.Body, acc)
		}

		if v.Default != nil {
			acc = collectCodeTVars(v.Default, acc)
		}
	}

	return acc
}

func collectTailTVars(t mil.Tail, acc []*typing.TVar) []*typing.TVar {
	switch v := t.(type) {
	case *mil.BlockCall:
		if v.Inst != nil {
			acc = typing.FreeTVars(v.Inst.Dom, acc)
			acc = typing.FreeTVars(v.Inst.Rng, acc)
		}
	case *mil.PrimCall:
		if v.Inst != nil {
			acc = typing.FreeTVars(v.Inst.Dom, acc)
			acc = typing.FreeTVars(v.Inst.Rng, acc)
		}
	}

	return acc
}
