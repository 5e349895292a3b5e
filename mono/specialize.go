// Package mono eliminates polymorphism by specialization: it rebuilds the
// program from its entry points, duplicating every polymorphic definition
// once per distinct monomorphic instance it is used at.  The output program
// contains no quantified schemes and no undetermined type variables outside
// of ambiguous positions that nothing constrains.
package mono

import (
	"fmt"

	"milc/mil"
	"milc/report"
	"milc/typing"
)

// key identifies one specialization: the original definition plus the
// canonical form of the instance it is being built at.
type key struct {
	origin mil.Defn
	inst   string
}

// Specializer carries the state of one specialization run.
type Specializer struct {
	src *mil.Program
	out *mil.Program
	rep *report.Reporter

	// table maps each requested specialization to its definition in the
	// output program.  Entries are inserted before their bodies are built so
	// that recursive definitions resolve to the copy under construction.
	table map[key]mil.Defn

	count int
}

// Specialize rebuilds prog with every polymorphic definition replaced by its
// monomorphic instances.  Entry points must already be monomorphic; a
// polymorphic entry point is a hard failure because no caller exists to
// determine its instance.
func Specialize(prog *mil.Program, rep *report.Reporter) *mil.Program {
	sp := &Specializer{
		src:   prog,
		out:   mil.NewProgram(),
		rep:   rep,
		table: make(map[key]mil.Defn),
	}

	for _, d := range prog.Entrypoints {
		sp.out.AddEntrypoint(sp.entry(d))
	}

	sp.out.Shake()
	return sp.out
}

func (sp *Specializer) entry(d mil.Defn) mil.Defn {
	switch v := d.(type) {
	case *mil.Block:
		if v.Declared != nil && v.Declared.Quantified() {
			panic(report.Raise(v.Position, "entry point %s has a polymorphic type: %s", v.Id, v.Declared.Repr()))
		}

		if v.Defining == nil {
			report.ICE("entry point %s reached specialization without a type", v.Id)
		}

		nb := sp.block(v, concreteBlockType(v.Defining))
		nb.Id = v.Id
		return nb
	case *mil.TopLevel:
		return sp.topLevel(v)
	}

	report.ICE("definition %s cannot be an entry point", d.Name())
	return nil
}

// concreteBlockType deep-prunes a block type so its canonical form is stable.
func concreteBlockType(bt *typing.BlockType) *typing.BlockType {
	none := map[*typing.TVar]typing.Type{}
	return &typing.BlockType{
		Dom: typing.SubstTVars(bt.Dom, none).(typing.TupleType),
		Rng: typing.SubstTVars(bt.Rng, none),
	}
}

// -----------------------------------------------------------------------------

// block returns the specialization of b at the given concrete instance,
// building it on first request.
func (sp *Specializer) block(b *mil.Block, inst *typing.BlockType) *mil.Block {
	k := key{origin: b, inst: inst.Key()}
	if nd, ok := sp.table[k]; ok {
		return nd.(*mil.Block)
	}

	if b.Defining == nil {
		report.ICE("block %s reached specialization without a type", b.Id)
	}

	nb := mil.NewBlock(b.Position, nil, nil)
	nb.Id = sp.name(b.Id, b.Declared != nil && b.Declared.Quantified())
	nb.Declared = typing.MonoScheme(inst)
	nb.Defining = inst
	nb.DoesntReturn = b.DoesntReturn

	sp.table[k] = nb
	sp.out.AddDefn(nb)

	// recover what each generic variable of the skeleton stands for in this
	// instance
	vars := make(map[*typing.TVar]typing.Type)
	typing.MatchTVars(b.Defining.Dom, inst.Dom, vars)
	typing.MatchTVars(b.Defining.Rng, inst.Rng, vars)

	env := make(map[*mil.Temp]*mil.Temp)
	nb.Params = sp.temps(b.Params, env, vars)
	nb.Code = sp.code(b.Code, env, vars)

	sp.rep.Tracef("specialized %s as %s :: %s", b.Id, nb.Id, inst.Repr())
	return nb
}

func (sp *Specializer) name(base string, quantified bool) string {
	if !quantified {
		return base
	}

	sp.count++
	return fmt.Sprintf("%s$%d", base, sp.count)
}

func (sp *Specializer) temps(ts []*mil.Temp, env map[*mil.Temp]*mil.Temp, vars map[*typing.TVar]typing.Type) []*mil.Temp {
	nts := make([]*mil.Temp, len(ts))
	for i, t := range ts {
		nt := mil.NewTemp()
		if t.Type != nil {
			nt.Type = typing.SubstTVars(t.Type, vars)
		}

		env[t] = nt
		nts[i] = nt
	}

	return nts
}

func (sp *Specializer) code(c mil.Code, env map[*mil.Temp]*mil.Temp, vars map[*typing.TVar]typing.Type) mil.Code {
	switch v := c.(type) {
	case *mil.Bind:
		tail := sp.tail(v.Tail, env, vars)
		return &mil.Bind{
			Vars: sp.temps(v.Vars, env, vars),
			Tail: tail,
			Rest: sp.code(v.Rest, env, vars),
		}
	case *mil.Done:
		return &mil.Done{Tail: sp.tail(v.Tail, env, vars)}
	case *mil.If:
		return &mil.If{
			Cond: sp.atom(v.Cond, env, vars),
			Then: sp.code(v.Then, env, vars),
			Else: sp.code(v.Else, env, vars),
		}
	case *mil.Case:
		nc := &mil.Case{
			Scrut: sp.atom(v.Scrut, env, vars),
			Alts:  make([]*mil.Alt, len(v.Alts)),
		}

		for i, alt := range v.Alts {
			nc.Alts[i] = &mil.Alt{Con: alt.Con, Tag: alt.Tag, Body: sp.code(alt.Body, env, vars)}
		}

		if v.Default != nil {
			nc.Default = sp.code(v.Default, env, vars)
		}

		return nc
	}

	return c
}

func (sp *Specializer) tail(t mil.Tail, env map[*mil.Temp]*mil.Temp, vars map[*typing.TVar]typing.Type) mil.Tail {
	switch v := t.(type) {
	case *mil.Return:
		return &mil.Return{Args: sp.atoms(v.Args, env, vars)}
	case *mil.BlockCall:
		inst := sp.callInstance(v, vars)
		return &mil.BlockCall{
			Target: sp.block(v.Target, inst),
			Args:   sp.atoms(v.Args, env, vars),
			Inst:   inst,
		}
	case *mil.Enter:
		return &mil.Enter{
			Fun:  sp.atom(v.Fun, env, vars),
			Args: sp.atoms(v.Args, env, vars),
		}
	case *mil.PrimCall:
		npc := &mil.PrimCall{Prim: v.Prim, Args: sp.atoms(v.Args, env, vars)}
		if v.Inst != nil {
			npc.Inst = &typing.BlockType{
				Dom: typing.SubstTVars(v.Inst.Dom, vars).(typing.TupleType),
				Rng: typing.SubstTVars(v.Inst.Rng, vars),
			}
		}

		return npc
	case *mil.ClosAlloc:
		return &mil.ClosAlloc{
			Defn: sp.closure(v.Defn, vars),
			Args: sp.atoms(v.Args, env, vars),
		}
	case *mil.DataAlloc:
		nda := &mil.DataAlloc{Con: v.Con, Tag: v.Tag, Args: sp.atoms(v.Args, env, vars)}
		if v.Inst != nil {
			nda.Inst = typing.SubstTVars(v.Inst, vars).(*typing.ConType)
		}

		return nda
	}

	return t
}

// callInstance determines the concrete instance a call commits its target
// to.  Calls checked against a quantified scheme carry a recorded instance;
// calls to monomorphic blocks use the target's own type.
func (sp *Specializer) callInstance(bc *mil.BlockCall, vars map[*typing.TVar]typing.Type) *typing.BlockType {
	if bc.Inst != nil {
		return &typing.BlockType{
			Dom: typing.SubstTVars(bc.Inst.Dom, vars).(typing.TupleType),
			Rng: typing.SubstTVars(bc.Inst.Rng, vars),
		}
	}

	if bc.Target.Defining == nil {
		report.ICE("call to unchecked block %s during specialization", bc.Target.Id)
	}

	return concreteBlockType(bc.Target.Defining)
}

func (sp *Specializer) atoms(args []mil.Atom, env map[*mil.Temp]*mil.Temp, vars map[*typing.TVar]typing.Type) []mil.Atom {
	nargs := make([]mil.Atom, len(args))
	for i, a := range args {
		nargs[i] = sp.atom(a, env, vars)
	}

	return nargs
}

func (sp *Specializer) atom(a mil.Atom, env map[*mil.Temp]*mil.Temp, vars map[*typing.TVar]typing.Type) mil.Atom {
	switch v := a.(type) {
	case *mil.Temp:
		if nt, ok := env[v]; ok {
			return nt
		}

		report.ICE("temp %s escaped its definition during specialization", v.Repr())
	case *mil.WordConst:
		nt := v.Type
		if nt != nil {
			nt = typing.SubstTVars(nt, vars)
		}

		return &mil.WordConst{Value: v.Value, Type: nt}
	case *mil.Global:
		return &mil.Global{Defn: sp.global(v.Defn)}
	}

	return a
}

// -----------------------------------------------------------------------------

// closure returns the specialization of cd for the given enclosing instance.
// A closure inherits the generics of the block that allocates it, so its
// instance is determined by what its temps' types become under vars.
func (sp *Specializer) closure(cd *mil.ClosureDefn, vars map[*typing.TVar]typing.Type) *mil.ClosureDefn {
	k := key{origin: cd, inst: closureKey(cd, vars)}
	if nd, ok := sp.table[k]; ok {
		return nd.(*mil.ClosureDefn)
	}

	ncd := mil.NewClosureDefn(cd.Position, nil, nil, nil)
	if cd.Declared != nil && !cd.Declared.Quantified() {
		ncd.Declared = typing.MonoScheme(&typing.BlockType{
			Dom: typing.SubstTVars(cd.Declared.Body.Dom, vars).(typing.TupleType),
			Rng: typing.SubstTVars(cd.Declared.Body.Rng, vars),
		})
	}

	sp.table[k] = ncd
	sp.out.AddDefn(ncd)

	env := make(map[*mil.Temp]*mil.Temp)
	ncd.Stored = sp.temps(cd.Stored, env, vars)
	ncd.Args = sp.temps(cd.Args, env, vars)
	ncd.Tail = sp.tail(cd.Tail, env, vars)
	return ncd
}

func closureKey(cd *mil.ClosureDefn, vars map[*typing.TVar]typing.Type) string {
	s := ""
	for _, t := range append(append([]*mil.Temp{}, cd.Stored...), cd.Args...) {
		if t.Type != nil {
			s += typing.SubstTVars(t.Type, vars).Repr()
		}

		s += ";"
	}

	return s
}

// -----------------------------------------------------------------------------

// global copies a referenced top-level value, area, or external into the
// output program.  These are monomorphic, so each is copied exactly once.
func (sp *Specializer) global(d mil.Defn) mil.Defn {
	k := key{origin: d}
	if nd, ok := sp.table[k]; ok {
		return nd
	}

	switch v := d.(type) {
	case *mil.TopLevel:
		return sp.topLevel(v)
	case *mil.Area:
		na := &mil.Area{
			Id:        v.Id,
			Position:  v.Position,
			Alignment: v.Alignment,
			AreaType:  v.AreaType,
			Size:      v.Size,
			Declared:  v.Declared,
		}

		sp.table[k] = na
		sp.out.AddDefn(na)

		if v.Init != nil {
			na.Init = sp.atom(v.Init, nil, nil)
		}

		return na
	case *mil.External:
		ne := &mil.External{Id: v.Id, Position: v.Position, Declared: v.Declared}
		sp.table[k] = ne
		sp.out.AddDefn(ne)
		return ne
	}

	report.ICE("definition %s referenced as a global", d.Name())
	return nil
}

func (sp *Specializer) topLevel(tl *mil.TopLevel) *mil.TopLevel {
	k := key{origin: tl}
	if nd, ok := sp.table[k]; ok {
		return nd.(*mil.TopLevel)
	}

	ntl := &mil.TopLevel{Id: tl.Id, Position: tl.Position, Declared: tl.Declared}
	sp.table[k] = ntl
	sp.out.AddDefn(ntl)

	env := make(map[*mil.Temp]*mil.Temp)
	ntl.Tail = sp.tail(tl.Tail, env, nil)
	return ntl
}
