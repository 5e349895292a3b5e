package opt

import "milc/mil"

// facts maps a temp to the pure tail that produced it.  Temps bind exactly
// once, so facts never need invalidation; branches still get their own copy
// so a fact learned in one arm cannot leak into a sibling.
type facts map[*mil.Temp]mil.Tail

func copyFacts(fs facts) facts {
	nfs := make(facts, len(fs))
	for t, tl := range fs {
		nfs[t] = tl
	}

	return nfs
}

// flow performs the local dataflow rewrites: copy propagation of returned
// atoms, constant folding, dead pure-binding removal, branch resolution
// against known constructors and flags, closure-entry shortcuts, and the
// call rewrites that request derived block variants.
func (ctx *Context) flow() {
	for _, b := range ctx.Prog.Blocks() {
		if !mil.Reachable(b) {
			continue
		}

		b.Code = ctx.flowCode(b, b.Code, make(facts), nil)
	}
}

func (ctx *Context) flowCode(src *mil.Block, c mil.Code, fs facts, s *mil.TempSubst) mil.Code {
	switch v := c.(type) {
	case *mil.Bind:
		tail := ctx.rewriteTail(src, mil.ApplyTail(v.Tail, s), fs)

		// (vars <- return as; rest)  ==>  rest[as/vars]
		if ret, ok := tail.(*mil.Return); ok && len(ret.Args) == len(v.Vars) {
			ctx.note("propagated return binding in %s", src.Name())
			return ctx.flowCode(src, v.Rest, fs, s.Extend(v.Vars, ret.Args))
		}

		// Code after a non-returning call can never run.
		if tailDoesntReturn(tail) {
			ctx.note("truncated code after non-returning call in %s", src.Name())
			return &mil.Done{Tail: tail}
		}

		// (r <- b[as]; r @ bs)  and  (r <- b[as]; k @ [r])  redirect to
		// derived variants of b that absorb the enter.
		if bc, ok := tail.(*mil.BlockCall); ok && len(v.Vars) == 1 {
			if nc := ctx.absorbEnter(src, bc, v.Vars[0], v.Rest, s); nc != nil {
				return nc
			}
		}

		if len(v.Vars) == 1 && mil.PureTail(tail) {
			switch tail.(type) {
			case *mil.ClosAlloc, *mil.DataAlloc:
				fs[v.Vars[0]] = tail
			}
		}

		rest := ctx.flowCode(src, v.Rest, fs, s)

		if mil.PureTail(tail) && !usesAny(rest, v.Vars) {
			ctx.note("removed unused pure binding in %s", src.Name())
			return rest
		}

		return &mil.Bind{Vars: v.Vars, Tail: tail, Rest: rest}
	case *mil.Done:
		return &mil.Done{Tail: ctx.rewriteTail(src, mil.ApplyTail(v.Tail, s), fs)}
	case *mil.If:
		cond := s.ApplyAtom(v.Cond)

		if fc, ok := cond.(*mil.FlagConst); ok {
			ctx.note("folded constant branch in %s", src.Name())

			if fc.Value {
				return ctx.flowCode(src, v.Then, fs, s)
			}

			return ctx.flowCode(src, v.Else, fs, s)
		}

		return &mil.If{
			Cond: cond,
			Then: ctx.flowCode(src, v.Then, copyFacts(fs), s),
			Else: ctx.flowCode(src, v.Else, copyFacts(fs), s),
		}
	case *mil.Case:
		scrut := s.ApplyAtom(v.Scrut)

		if t, ok := scrut.(*mil.Temp); ok {
			if da, ok := fs[t].(*mil.DataAlloc); ok {
				if arm := selectAlt(v, da); arm != nil {
					ctx.note("resolved case on known constructor in %s", src.Name())
					return ctx.flowCode(src, arm, fs, s)
				}
			}
		}

		nc := &mil.Case{Scrut: scrut, Alts: make([]*mil.Alt, len(v.Alts))}
		for i, alt := range v.Alts {
			nc.Alts[i] = &mil.Alt{
				Con:  alt.Con,
				Tag:  alt.Tag,
				Body: ctx.flowCode(src, alt.Body, copyFacts(fs), s),
			}
		}

		if v.Default != nil {
			nc.Default = ctx.flowCode(src, v.Default, copyFacts(fs), s)
		}

		return nc
	}

	return c
}

// selectAlt picks the case arm matching a known allocation, falling back to
// the default arm.
func selectAlt(c *mil.Case, da *mil.DataAlloc) mil.Code {
	for _, alt := range c.Alts {
		if alt.Tag == da.Tag {
			return alt.Body
		}
	}

	return c.Default
}

// absorbEnter recognizes a call whose sole result is immediately entered and
// redirects it to a derived variant of the callee.  The result temp must not
// be needed anywhere else.
func (ctx *Context) absorbEnter(src *mil.Block, bc *mil.BlockCall, r *mil.Temp, rest mil.Code, s *mil.TempSubst) mil.Code {
	done, ok := rest.(*mil.Done)
	if !ok {
		return nil
	}

	e, ok := done.Tail.(*mil.Enter)
	if !ok {
		return nil
	}

	fun := s.ApplyAtom(e.Fun)
	args := s.ApplyAtoms(e.Args)

	if fun == mil.Atom(r) && !atomsContain(args, r) {
		derived := ctx.deriveWithEnter(bc.Target, len(args))
		ctx.note("absorbed enter after call to %s in %s", bc.Target.Name(), src.Name())
		nargs := append(append([]mil.Atom{}, bc.Args...), args...)
		return &mil.Done{Tail: &mil.BlockCall{Target: derived, Args: nargs}}
	}

	if len(args) == 1 && args[0] == mil.Atom(r) && fun != mil.Atom(r) {
		derived := ctx.deriveWithCont(bc.Target)
		ctx.note("absorbed continuation after call to %s in %s", bc.Target.Name(), src.Name())
		nargs := append(append([]mil.Atom{}, bc.Args...), fun)
		return &mil.Done{Tail: &mil.BlockCall{Target: derived, Args: nargs}}
	}

	return nil
}

// rewriteTail simplifies a single tail under the current facts.
func (ctx *Context) rewriteTail(src *mil.Block, t mil.Tail, fs facts) mil.Tail {
	switch v := t.(type) {
	case *mil.PrimCall:
		if nt := foldPrim(v); nt != nil {
			ctx.note("folded constant %s in %s", v.Prim.Name, src.Name())
			return nt
		}
	case *mil.Enter:
		// Entering a closure we just allocated runs its body directly.
		if f, ok := v.Fun.(*mil.Temp); ok {
			if ca, ok := fs[f].(*mil.ClosAlloc); ok && len(ca.Defn.Args) == len(v.Args) {
				ctx.note("entered known closure %s in %s", ca.Defn.Name(), src.Name())

				var s *mil.TempSubst
				s = s.Extend(ca.Defn.Stored, ca.Args).Extend(ca.Defn.Args, v.Args)
				return ctx.rewriteTail(src, mil.ApplyTail(ca.Defn.Tail, s), fs)
			}
		}
	case *mil.BlockCall:
		// A single-tail callee inlines as its tail even in bind position.
		if v.Target != src {
			if nt := v.Target.InlineTail(v.Args); nt != nil {
				ctx.note("replaced call to %s with its tail in %s", v.Target.Name(), src.Name())
				return ctx.rewriteTail(src, nt, fs)
			}
		}

		if nt := ctx.mergeDuplicateArgs(src, v); nt != nil {
			return nt
		}

		if nt := ctx.applyKnownCons(src, v, fs); nt != nil {
			return nt
		}
	}

	return t
}

// mergeDuplicateArgs rewrites a call that passes the same atom in several
// positions to target a variant with the duplicates removed.
func (ctx *Context) mergeDuplicateArgs(src *mil.Block, bc *mil.BlockCall) mil.Tail {
	if ctx.isEntry(bc.Target) {
		return nil
	}

	dups := make([]int, len(bc.Args))
	any := false

	for i, a := range bc.Args {
		for j := 0; j < i; j++ {
			if dups[j] == 0 && sameAtom(bc.Args[j], a) {
				dups[i] = j + 1
				any = true
				break
			}
		}
	}

	if !any {
		return nil
	}

	derived := ctx.deriveWithDuplicateArgs(bc.Target, dups)

	var nargs []mil.Atom
	for i, a := range bc.Args {
		if dups[i] == 0 {
			nargs = append(nargs, a)
		}
	}

	ctx.note("merged duplicate arguments of call to %s in %s", bc.Target.Name(), src.Name())
	return &mil.BlockCall{Target: derived, Args: nargs}
}

// applyKnownCons rewrites a call whose arguments include freshly allocated
// data values to target a variant that takes the fields directly.
func (ctx *Context) applyKnownCons(src *mil.Block, bc *mil.BlockCall, fs facts) mil.Tail {
	if bc.Target == src || ctx.isEntry(bc.Target) {
		return nil
	}

	// Candidates either scrutinize a parameter or are small enough that
	// pushing the fields through them costs nothing; anything else would
	// only churn.
	if !scrutinizesParams(bc.Target) && !ctx.isSmall(bc.Target) {
		return nil
	}

	pats := make([]*consPattern, len(bc.Args))
	allocs := make([]*mil.DataAlloc, len(bc.Args))
	any := false

	for i, a := range bc.Args {
		t, ok := a.(*mil.Temp)
		if !ok {
			continue
		}

		if da, ok := fs[t].(*mil.DataAlloc); ok {
			pats[i] = &consPattern{Con: da.Con, Tag: da.Tag, Arity: len(da.Args), Inst: da.Inst}
			allocs[i] = da
			any = true
		}
	}

	if !any {
		return nil
	}

	derived := ctx.deriveWithKnownCons(bc.Target, pats)
	if derived == nil {
		return nil
	}

	var nargs []mil.Atom
	for i, a := range bc.Args {
		if allocs[i] == nil {
			nargs = append(nargs, a)
			continue
		}

		nargs = append(nargs, allocs[i].Args...)
	}

	ctx.note("specialized call to %s on known constructors in %s", bc.Target.Name(), src.Name())
	return &mil.BlockCall{Target: derived, Args: nargs}
}

// isSmall reports whether a block reaches its result within a few bindings.
func (ctx *Context) isSmall(b *mil.Block) bool {
	c := b.Code
	for steps := 0; steps <= ctx.Limits.SmallSteps; steps++ {
		switch v := c.(type) {
		case *mil.Bind:
			c = v.Rest
		case *mil.Done:
			return true
		default:
			return false
		}
	}

	return false
}

// scrutinizesParams reports whether a block's body cases on one of its own
// parameters.
func scrutinizesParams(b *mil.Block) bool {
	params := make(map[*mil.Temp]bool, len(b.Params))
	for _, p := range b.Params {
		params[p] = true
	}

	return scrutinizes(b.Code, params)
}

func scrutinizes(c mil.Code, params map[*mil.Temp]bool) bool {
	switch v := c.(type) {
	case *mil.Bind:
		return scrutinizes(v.Rest, params)
	case *mil.If:
		return scrutinizes(v.Then, params) || scrutinizes(v.Else, params)
	case *mil.Case:
		if t, ok := v.Scrut.(*mil.Temp); ok && params[t] {
			return true
		}

		for _, alt := range v.Alts {
			if scrutinizes(alt.Body, params) {
				return true
			}
		}

		return v.Default != nil && scrutinizes(v.Default, params)
	}

	return false
}

// foldPrim evaluates primitive calls over constant arguments.  Division by a
// zero constant is left in place to fault at run time.
func foldPrim(pc *mil.PrimCall) mil.Tail {
	words := make([]int64, len(pc.Args))
	for i, a := range pc.Args {
		wc, ok := a.(*mil.WordConst)
		if !ok {
			if pc.Prim == mil.PrimNot {
				if fc, ok := a.(*mil.FlagConst); ok {
					return &mil.Return{Args: []mil.Atom{&mil.FlagConst{Value: !fc.Value}}}
				}
			}

			return nil
		}

		words[i] = wc.Value
	}

	word := func(v int64) mil.Tail {
		return &mil.Return{Args: []mil.Atom{&mil.WordConst{Value: v}}}
	}
	flag := func(v bool) mil.Tail {
		return &mil.Return{Args: []mil.Atom{&mil.FlagConst{Value: v}}}
	}

	switch pc.Prim {
	case mil.PrimAdd:
		return word(words[0] + words[1])
	case mil.PrimSub:
		return word(words[0] - words[1])
	case mil.PrimMul:
		return word(words[0] * words[1])
	case mil.PrimDiv:
		if words[1] != 0 {
			return word(words[0] / words[1])
		}
	case mil.PrimRem:
		if words[1] != 0 {
			return word(words[0] % words[1])
		}
	case mil.PrimEq:
		return flag(words[0] == words[1])
	case mil.PrimLt:
		return flag(words[0] < words[1])
	case mil.PrimLe:
		return flag(words[0] <= words[1])
	}

	return nil
}

// usesAny reports whether any of the given temps occurs free in c.
func usesAny(c mil.Code, vars []*mil.Temp) bool {
	free := mil.FreeVars(c, make(map[*mil.Temp]bool))
	for _, v := range vars {
		if free[v] {
			return true
		}
	}

	return false
}

func atomsContain(args []mil.Atom, t *mil.Temp) bool {
	for _, a := range args {
		if a == mil.Atom(t) {
			return true
		}
	}

	return false
}
