package opt

import (
	"milc/mil"
	"milc/typing"
)

// Variant kinds for the derived-block cache.
const (
	variantEnter = iota
	variantCont
	variantKnownCons
	variantDupArgs
)

// consPattern records a known constructor for one argument position of a
// derived block; a nil pattern means the position carries no information.
type consPattern struct {
	Con   string
	Tag   int
	Arity int
	Inst  *typing.ConType
}

func (p *consPattern) matches(o *consPattern) bool {
	if p == nil || o == nil {
		return p == o
	}

	return p.Con == o.Con && p.Tag == o.Tag && p.Arity == o.Arity
}

// variant is one cache entry: the kind, the parameters that distinguish it
// from other variants of the same kind, and the derived block.  Entries are
// inserted before the derived body is built so that a recursive derivation
// request resolves to the block under construction.
type variant struct {
	kind  int
	enter int
	dups  []int
	cons  []*consPattern
	block *mil.Block
}

func copyTemps(ts []*mil.Temp) []*mil.Temp {
	nts := make([]*mil.Temp, len(ts))
	for i, t := range ts {
		nt := mil.NewTemp()
		nt.Type = t.Type
		nts[i] = nt
	}

	return nts
}

func tempAtoms(ts []*mil.Temp) []mil.Atom {
	atoms := make([]mil.Atom, len(ts))
	for i, t := range ts {
		atoms[i] = t
	}

	return atoms
}

// -----------------------------------------------------------------------------

// deriveWithEnter derives a variant of b that absorbs a following m-argument
// enter: wherever b would return a function value, the variant enters it
// with m extra parameters instead.
func (ctx *Context) deriveWithEnter(b *mil.Block, m int) *mil.Block {
	for _, v := range ctx.derived[b] {
		if v.kind == variantEnter && v.enter == m {
			return v.block
		}
	}

	nparams := copyTemps(b.Params)
	extra := mil.MakeTemps(m)

	nb := mil.NewBlock(b.Position, append(nparams, extra...), nil)
	ctx.derived[b] = append(ctx.derived[b], &variant{kind: variantEnter, enter: m, block: nb})
	ctx.Prog.AddDefn(nb)

	var s *mil.TempSubst
	nb.Code = ctx.enterCode(mil.CopyCode(b.Code, s.Extend(b.Params, tempAtoms(nparams))), extra)
	ctx.note("derived %s from %s to absorb a following enter", nb.Name(), b.Name())
	return nb
}

func (ctx *Context) enterCode(c mil.Code, extra []*mil.Temp) mil.Code {
	switch v := c.(type) {
	case *mil.Bind:
		v.Rest = ctx.enterCode(v.Rest, extra)
		return v
	case *mil.If:
		v.Then = ctx.enterCode(v.Then, extra)
		v.Else = ctx.enterCode(v.Else, extra)
		return v
	case *mil.Case:
		for _, alt := range v.Alts {
			alt.Body = ctx.enterCode(alt.Body, extra)
		}

		if v.Default != nil {
			v.Default = ctx.enterCode(v.Default, extra)
		}

		return v
	case *mil.Done:
		if tailDoesntReturn(v.Tail) {
			return v
		}

		switch t := v.Tail.(type) {
		case *mil.Return:
			if len(t.Args) == 1 {
				return &mil.Done{Tail: &mil.Enter{Fun: t.Args[0], Args: tempAtoms(extra)}}
			}
		case *mil.BlockCall:
			nb := ctx.deriveWithEnter(t.Target, len(extra))
			args := append(append([]mil.Atom{}, t.Args...), tempAtoms(extra)...)
			return &mil.Done{Tail: &mil.BlockCall{Target: nb, Args: args}}
		case *mil.ClosAlloc:
			if len(t.Defn.Args) == len(extra) {
				var s *mil.TempSubst
				s = s.Extend(t.Defn.Stored, t.Args).Extend(t.Defn.Args, tempAtoms(extra))
				return &mil.Done{Tail: mil.ApplyTail(t.Defn.Tail, s)}
			}
		}

		r := mil.NewTemp()
		return &mil.Bind{
			Vars: []*mil.Temp{r},
			Tail: v.Tail,
			Rest: &mil.Done{Tail: &mil.Enter{Fun: r, Args: tempAtoms(extra)}},
		}
	}

	return c
}

// -----------------------------------------------------------------------------

// deriveWithCont derives a variant of b that takes an extra continuation
// parameter and enters it with the result instead of returning.
func (ctx *Context) deriveWithCont(b *mil.Block) *mil.Block {
	for _, v := range ctx.derived[b] {
		if v.kind == variantCont {
			return v.block
		}
	}

	nparams := copyTemps(b.Params)
	k := mil.NewTemp()

	nb := mil.NewBlock(b.Position, append(nparams, k), nil)
	ctx.derived[b] = append(ctx.derived[b], &variant{kind: variantCont, block: nb})
	ctx.Prog.AddDefn(nb)

	var s *mil.TempSubst
	nb.Code = ctx.contCode(mil.CopyCode(b.Code, s.Extend(b.Params, tempAtoms(nparams))), k)
	ctx.note("derived %s from %s to absorb a continuation", nb.Name(), b.Name())
	return nb
}

func (ctx *Context) contCode(c mil.Code, k *mil.Temp) mil.Code {
	switch v := c.(type) {
	case *mil.Bind:
		v.Rest = ctx.contCode(v.Rest, k)
		return v
	case *mil.If:
		v.Then = ctx.contCode(v.Then, k)
		v.Else = ctx.contCode(v.Else, k)
		return v
	case *mil.Case:
		for _, alt := range v.Alts {
			alt.Body = ctx.contCode(alt.Body, k)
		}

		if v.Default != nil {
			v.Default = ctx.contCode(v.Default, k)
		}

		return v
	case *mil.Done:
		if tailDoesntReturn(v.Tail) {
			return v
		}

		switch t := v.Tail.(type) {
		case *mil.Return:
			return &mil.Done{Tail: &mil.Enter{Fun: k, Args: t.Args}}
		case *mil.BlockCall:
			nb := ctx.deriveWithCont(t.Target)
			args := append(append([]mil.Atom{}, t.Args...), k)
			return &mil.Done{Tail: &mil.BlockCall{Target: nb, Args: args}}
		}

		r := mil.NewTemp()
		return &mil.Bind{
			Vars: []*mil.Temp{r},
			Tail: v.Tail,
			Rest: &mil.Done{Tail: &mil.Enter{Fun: k, Args: []mil.Atom{r}}},
		}
	}

	return c
}

// -----------------------------------------------------------------------------

// deriveWithKnownCons derives a variant of b whose parameters at the known
// positions are replaced by the fields of the known constructor.  The body
// reallocates the value from its fields, which later flow rounds then use to
// resolve case branches.
func (ctx *Context) deriveWithKnownCons(b *mil.Block, pats []*consPattern) *mil.Block {
	any := false
	for _, p := range pats {
		if p != nil {
			any = true
		}
	}

	if !any {
		return nil
	}

outer:
	for _, v := range ctx.derived[b] {
		if v.kind != variantKnownCons || len(v.cons) != len(pats) {
			continue
		}

		for i, p := range v.cons {
			if !p.matches(pats[i]) {
				continue outer
			}
		}

		return v.block
	}

	type init struct {
		orig   *mil.Temp
		pat    *consPattern
		fields []*mil.Temp
	}

	var nparams []*mil.Temp
	var inits []init
	var s *mil.TempSubst

	for i, p := range b.Params {
		if pats[i] == nil {
			np := copyTemps([]*mil.Temp{p})[0]
			nparams = append(nparams, np)
			s = s.Bind(p, np)
			continue
		}

		fields := mil.MakeTemps(pats[i].Arity)
		nparams = append(nparams, fields...)

		orig := copyTemps([]*mil.Temp{p})[0]
		s = s.Bind(p, orig)
		inits = append(inits, init{orig: orig, pat: pats[i], fields: fields})
	}

	nb := mil.NewBlock(b.Position, nparams, nil)
	ctx.derived[b] = append(ctx.derived[b], &variant{kind: variantKnownCons, cons: pats, block: nb})
	ctx.Prog.AddDefn(nb)

	body := mil.CopyCode(b.Code, s)
	for i := len(inits) - 1; i >= 0; i-- {
		in := inits[i]
		body = &mil.Bind{
			Vars: []*mil.Temp{in.orig},
			Tail: &mil.DataAlloc{Con: in.pat.Con, Tag: in.pat.Tag, Args: tempAtoms(in.fields), Inst: in.pat.Inst},
			Rest: body,
		}
	}

	nb.Code = body
	ctx.note("derived %s from %s for known constructor arguments", nb.Name(), b.Name())
	return nb
}

// -----------------------------------------------------------------------------

// deriveWithDuplicateArgs derives a variant of b that drops parameters known
// to duplicate earlier arguments at a call site.  dups[i] is zero for a
// unique position and j+1 when position i repeats position j.
func (ctx *Context) deriveWithDuplicateArgs(b *mil.Block, dups []int) *mil.Block {
outer:
	for _, v := range ctx.derived[b] {
		if v.kind != variantDupArgs || len(v.dups) != len(dups) {
			continue
		}

		for i, d := range v.dups {
			if d != dups[i] {
				continue outer
			}
		}

		return v.block
	}

	var nparams []*mil.Temp
	var s *mil.TempSubst

	for i, p := range b.Params {
		if dups[i] == 0 {
			np := copyTemps([]*mil.Temp{p})[0]
			nparams = append(nparams, np)
			s = s.Bind(p, np)
		}
	}

	for i, p := range b.Params {
		if dups[i] != 0 {
			s = s.Bind(p, s.Apply(b.Params[dups[i]-1]))
		}
	}

	nb := mil.NewBlock(b.Position, nparams, nil)
	ctx.derived[b] = append(ctx.derived[b], &variant{kind: variantDupArgs, dups: dups, block: nb})
	ctx.Prog.AddDefn(nb)

	nb.Code = mil.CopyCode(b.Code, s)
	ctx.note("derived %s from %s to merge duplicate arguments", nb.Name(), b.Name())
	return nb
}
