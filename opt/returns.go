package opt

import "milc/mil"

// returnAnalysis computes which blocks can never return to their caller.
// Every block starts optimistically marked non-returning and the analysis
// iterates to the greatest fixpoint, so mutually recursive blocks that only
// ever call each other are correctly classified as non-returning.
func (ctx *Context) returnAnalysis() {
	blocks := ctx.Prog.Blocks()

	for _, b := range blocks {
		b.DoesntReturn = true
	}

	for changed := true; changed; {
		changed = false

		for _, b := range blocks {
			if b.DoesntReturn && !codeDoesntReturn(b.Code) {
				b.DoesntReturn = false
				changed = true
			}
		}
	}
}

func codeDoesntReturn(c mil.Code) bool {
	switch v := c.(type) {
	case *mil.Bind:
		return tailDoesntReturn(v.Tail) || codeDoesntReturn(v.Rest)
	case *mil.Done:
		return tailDoesntReturn(v.Tail)
	case *mil.If:
		return codeDoesntReturn(v.Then) && codeDoesntReturn(v.Else)
	case *mil.Case:
		for _, alt := range v.Alts {
			if !codeDoesntReturn(alt.Body) {
				return false
			}
		}

		return v.Default == nil || codeDoesntReturn(v.Default)
	}

	return false
}

func tailDoesntReturn(t mil.Tail) bool {
	switch v := t.(type) {
	case *mil.BlockCall:
		return v.Target.DoesntReturn
	case *mil.PrimCall:
		return v.Prim.DoesntReturn
	}

	return false
}

// detectLoops rewrites blocks whose body is an unconditional, effect-free
// call chain that revisits one of its own members.  Such a block can never
// make progress, so its body is replaced with a call to the non-returning
// loop primitive.  The rewrite is idempotent: the replacement body is a
// primitive call, not a block call, so a second traversal finds nothing.
func (ctx *Context) detectLoops() {
	for _, b := range ctx.Prog.Blocks() {
		if mil.Reachable(b) {
			ctx.detectLoop(b, nil)
		}
	}
}

func (ctx *Context) detectLoop(b *mil.Block, visited []*mil.Block) bool {
	for _, v := range visited {
		if v == b {
			b.Code = &mil.Done{Tail: &mil.PrimCall{Prim: mil.PrimLoop}}
			ctx.note("detected loop at %s", b.Name())
			return true
		}
	}

	if bc, ok := mil.IsDone(b.Code).(*mil.BlockCall); ok {
		return ctx.detectLoop(bc.Target, append(visited, b))
	}

	return false
}
