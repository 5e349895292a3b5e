package opt

import "milc/mil"

// inlining splices callee bodies into callers where the size and recursion
// rules allow it.  Prefix inlining replaces a non-tail call whose callee is a
// straight-line block; suffix inlining replaces a tail call with the callee's
// whole body.
func (ctx *Context) inlining() {
	for _, b := range ctx.Prog.Blocks() {
		if !mil.Reachable(b) {
			continue
		}

		b.Code = ctx.inlineCode(b, b.Code)
	}
}

func (ctx *Context) inlineCode(src *mil.Block, c mil.Code) mil.Code {
	switch v := c.(type) {
	case *mil.Bind:
		rest := ctx.inlineCode(src, v.Rest)

		if bc, ok := v.Tail.(*mil.BlockCall); ok {
			if nc := ctx.prefixInline(src, bc, v.Vars, rest); nc != nil {
				return nc
			}
		}

		v.Rest = rest
		return v
	case *mil.Done:
		if bc, ok := v.Tail.(*mil.BlockCall); ok {
			if nbc := ctx.bypassGoto(src, bc); nbc != nil {
				ctx.note("bypassed goto block %s in %s", bc.Target.Name(), src.Name())
				v.Tail = nbc
				bc = nbc
			}

			if nc := ctx.suffixInline(src, bc); nc != nil {
				return nc
			}
		}

		return v
	case *mil.If:
		v.Then = ctx.inlineCode(src, v.Then)
		v.Else = ctx.inlineCode(src, v.Else)
		return v
	case *mil.Case:
		for _, alt := range v.Alts {
			alt.Body = ctx.inlineCode(src, alt.Body)
		}

		if v.Default != nil {
			v.Default = ctx.inlineCode(src, v.Default)
		}

		return v
	}

	return c
}

// bypassGoto redirects a tail call to a goto block (one whose body is an
// immediate call to another block) so that it targets the final destination
// directly.  Polymorphic goto blocks are left alone: the bypassed call's
// recorded instance would no longer describe its target.
func (ctx *Context) bypassGoto(src *mil.Block, bc *mil.BlockCall) *mil.BlockCall {
	g := bc.Target.IsGoto()
	if g == nil || g.Target == bc.Target || bc.Target == src {
		return nil
	}

	if bc.Target.Declared != nil && bc.Target.Declared.Quantified() {
		return nil
	}

	var s *mil.TempSubst
	s = s.Extend(bc.Target.Params, bc.Args)
	return &mil.BlockCall{Target: g.Target, Args: s.ApplyAtoms(g.Args), Inst: g.Inst}
}

// prefixInline replaces a non-tail call to a straight-line block with the
// block's bindings, attaching the call's result binders to the body's final
// tail.  The callee must come from a different call-graph component, and
// must either be the call's only occurrence or fit the size limit.
func (ctx *Context) prefixInline(src *mil.Block, bc *mil.BlockCall, vars []*mil.Temp, rest mil.Code) mil.Code {
	t := bc.Target
	if t == src || ctx.Graph.SameSCC(t, src) {
		return nil
	}

	n := mil.PrefixInlineLength(t.Code)
	if n == 0 || (ctx.occurs[t] != 1 && n > ctx.Limits.InlineLines) {
		return nil
	}

	ctx.note("prefix inlined %s into %s", t.Name(), src.Name())

	var s *mil.TempSubst
	return splicePrefix(t.Code, s.Extend(t.Params, bc.Args), vars, rest)
}

// splicePrefix copies a straight-line body under s with fresh binders,
// replacing its final tail with a binding of vars followed by rest.
func splicePrefix(c mil.Code, s *mil.TempSubst, vars []*mil.Temp, rest mil.Code) mil.Code {
	switch v := c.(type) {
	case *mil.Bind:
		nvars := copyTemps(v.Vars)
		ns := s.Extend(v.Vars, tempAtoms(nvars))
		return &mil.Bind{
			Vars: nvars,
			Tail: mil.ApplyTail(v.Tail, s),
			Rest: splicePrefix(v.Rest, ns, vars, rest),
		}
	case *mil.Done:
		return &mil.Bind{Vars: vars, Tail: mil.ApplyTail(v.Tail, s), Rest: rest}
	}

	return nil
}

// suffixInline replaces a tail call with a copy of the callee's body.
func (ctx *Context) suffixInline(src *mil.Block, bc *mil.BlockCall) mil.Code {
	if !ctx.canSuffixInline(src, bc.Target) {
		return nil
	}

	ctx.note("suffix inlined %s into %s", bc.Target.Name(), src.Name())

	var s *mil.TempSubst
	return mil.CopyCode(bc.Target.Code, s.Extend(bc.Target.Params, bc.Args))
}

func (ctx *Context) canSuffixInline(src, t *mil.Block) bool {
	if t == src {
		return false
	}

	// Inlining a non-returning recursive block would unroll it forever.
	if t.DoesntReturn && ctx.Graph.Recursive(t) {
		return false
	}

	if ctx.occurs[t] == 1 || mil.IsDone(t.Code) != nil {
		return true
	}

	if !ctx.guarded(t, src, make(map[*mil.Block]bool)) {
		return false
	}

	n := mil.SuffixInlineLength(t.Code)
	return n > 0 && n <= ctx.Limits.InlineLines
}

// guarded reports whether every call chain from t back to src passes through
// a branch, so that inlining t into src cannot unroll a straight recursion.
func (ctx *Context) guarded(t, src *mil.Block, visited map[*mil.Block]bool) bool {
	if t == src || visited[t] {
		return false
	}

	if !ctx.Graph.SameSCC(t, src) {
		return true
	}

	visited[t] = true
	return ctx.guardedCode(t.Code, src, visited)
}

func (ctx *Context) guardedCode(c mil.Code, src *mil.Block, visited map[*mil.Block]bool) bool {
	switch v := c.(type) {
	case *mil.Bind:
		return ctx.guardedCode(v.Rest, src, visited)
	case *mil.Done:
		if bc, ok := v.Tail.(*mil.BlockCall); ok {
			return ctx.guarded(bc.Target, src, visited)
		}
	}

	return true
}
