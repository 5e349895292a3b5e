package opt

import (
	"testing"

	"milc/depm"
	"milc/mil"
	"milc/report"
)

func silentReporter() *report.Reporter {
	return report.NewReporter(report.LogLevelSilent)
}

// testContext prepares a context the way a pipeline round does.
func testContext(prog *mil.Program) *Context {
	ctx := NewContext(prog, silentReporter(), DefaultLimits())
	prog.Shake()
	ctx.Graph = depm.Analyze(prog)
	ctx.computeOccurs()
	ctx.returnAnalysis()
	return ctx
}

func newProgram(entry *mil.Block, defns ...mil.Defn) *mil.Program {
	prog := mil.NewProgram()
	for _, d := range defns {
		prog.AddDefn(d)
	}

	prog.AddEntrypoint(entry)
	return prog
}

// hasBlockCall reports whether any call remains anywhere in c.
func hasBlockCall(c mil.Code) bool {
	isCall := func(t mil.Tail) bool {
		_, ok := t.(*mil.BlockCall)
		return ok
	}

	switch v := c.(type) {
	case *mil.Bind:
		return isCall(v.Tail) || hasBlockCall(v.Rest)
	case *mil.Done:
		return isCall(v.Tail)
	case *mil.If:
		return hasBlockCall(v.Then) || hasBlockCall(v.Else)
	case *mil.Case:
		for _, alt := range v.Alts {
			if hasBlockCall(alt.Body) {
				return true
			}
		}

		return v.Default != nil && hasBlockCall(v.Default)
	}

	return false
}

func TestSuffixInlineIdentity(t *testing.T) {
	gx := mil.NewTemp()
	g := mil.NewBlock(nil, []*mil.Temp{gx}, &mil.Done{Tail: &mil.Return{Args: []mil.Atom{gx}}})

	fx := mil.NewTemp()
	f := mil.NewBlock(nil, []*mil.Temp{fx}, &mil.Done{Tail: &mil.BlockCall{Target: g, Args: []mil.Atom{fx}}})

	prog := newProgram(f, g, f)
	Run(prog, silentReporter(), DefaultLimits())

	done, ok := f.Code.(*mil.Done)
	if !ok {
		t.Fatalf("f body is %T; want Done", f.Code)
	}

	ret, ok := done.Tail.(*mil.Return)
	if !ok || len(ret.Args) != 1 || ret.Args[0] != mil.Atom(f.Params[0]) {
		t.Errorf("f tail = %s; want return of its own parameter", done.Tail.Repr())
	}
}

func TestPrefixInlineRemovesCall(t *testing.T) {
	gx := mil.NewTemp()
	gy := mil.NewTemp()
	g := mil.NewBlock(nil, []*mil.Temp{gx}, &mil.Bind{
		Vars: []*mil.Temp{gy},
		Tail: &mil.PrimCall{Prim: mil.PrimAdd, Args: []mil.Atom{gx, &mil.WordConst{Value: 1}}},
		Rest: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{gy}}},
	})

	fa := mil.NewTemp()
	fr := mil.NewTemp()
	fs := mil.NewTemp()
	f := mil.NewBlock(nil, []*mil.Temp{fa}, &mil.Bind{
		Vars: []*mil.Temp{fr},
		Tail: &mil.BlockCall{Target: g, Args: []mil.Atom{fa}},
		Rest: &mil.Bind{
			Vars: []*mil.Temp{fs},
			Tail: &mil.PrimCall{Prim: mil.PrimAdd, Args: []mil.Atom{fr, &mil.WordConst{Value: 2}}},
			Rest: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{fs}}},
		},
	})

	prog := newProgram(f, g, f)
	Run(prog, silentReporter(), DefaultLimits())

	if hasBlockCall(f.Code) {
		t.Error("call to a straight-line block survived optimization")
	}

	if g.Reachable {
		t.Error("fully inlined block still reachable")
	}
}

func TestNoSuffixInlineOfNonReturningRecursive(t *testing.T) {
	// g calls itself after real work; it never returns and must not be
	// unrolled into its callers
	gx := mil.NewTemp()
	gy := mil.NewTemp()
	g := mil.NewBlock(nil, []*mil.Temp{gx}, nil)
	g.Code = &mil.Bind{
		Vars: []*mil.Temp{gy},
		Tail: &mil.PrimCall{Prim: mil.PrimAdd, Args: []mil.Atom{gx, &mil.WordConst{Value: 1}}},
		Rest: &mil.Done{Tail: &mil.BlockCall{Target: g, Args: []mil.Atom{gy}}},
	}

	fx := mil.NewTemp()
	f := mil.NewBlock(nil, []*mil.Temp{fx}, &mil.Done{Tail: &mil.BlockCall{Target: g, Args: []mil.Atom{fx}}})

	prog := newProgram(f, g, f)
	Run(prog, silentReporter(), DefaultLimits())

	done, ok := f.Code.(*mil.Done)
	if !ok {
		t.Fatalf("f body is %T; want Done", f.Code)
	}

	bc, ok := done.Tail.(*mil.BlockCall)
	if !ok || bc.Target != g {
		t.Errorf("f tail = %s; want the original call to g", done.Tail.Repr())
	}
}

func TestNoSuffixInlineWithClosureCaller(t *testing.T) {
	// long exceeds the inline size limit, so a tail call to it may only be
	// spliced when that call is its sole occurrence -- and the call inside
	// the closure body counts as an occurrence
	lx := mil.NewTemp()
	long := mil.NewBlock(nil, []*mil.Temp{lx}, nil)

	vars := make([]*mil.Temp, 7)
	for i := range vars {
		vars[i] = mil.NewTemp()
	}

	var body mil.Code = &mil.Done{Tail: &mil.Return{Args: []mil.Atom{vars[6]}}}
	for i := 6; i >= 0; i-- {
		prev := mil.Atom(lx)
		if i > 0 {
			prev = vars[i-1]
		}

		body = &mil.Bind{
			Vars: []*mil.Temp{vars[i]},
			Tail: &mil.PrimCall{Prim: mil.PrimAdd, Args: []mil.Atom{prev, &mil.WordConst{Value: 1}}},
			Rest: body,
		}
	}
	long.Code = body

	k := mil.NewClosureDefn(nil, nil, nil, &mil.BlockCall{Target: long, Args: []mil.Atom{&mil.WordConst{Value: 3}}})

	fa := mil.NewTemp()
	fk := mil.NewTemp()
	f := mil.NewBlock(nil, []*mil.Temp{fa}, &mil.Bind{
		Vars: []*mil.Temp{fk},
		Tail: &mil.ClosAlloc{Defn: k},
		Rest: &mil.Done{Tail: &mil.BlockCall{Target: long, Args: []mil.Atom{fa}}},
	})

	prog := newProgram(f, long, k, f)
	ctx := testContext(prog)

	if n := ctx.occurs[long]; n != 2 {
		t.Fatalf("occurrence count = %d; want 2 (tail call and closure body)", n)
	}

	ctx.inlining()

	bind, ok := f.Code.(*mil.Bind)
	if !ok {
		t.Fatalf("f body is %T; want Bind", f.Code)
	}

	bc, ok := mil.IsDone(bind.Rest).(*mil.BlockCall)
	if !ok || bc.Target != long {
		t.Error("oversized block inlined despite a second caller in a closure body")
	}
}

func TestDetectLoopsIdempotent(t *testing.T) {
	b := mil.NewBlock(nil, nil, nil)
	b.Code = &mil.Done{Tail: &mil.BlockCall{Target: b}}

	prog := newProgram(b, b)
	ctx := testContext(prog)
	ctx.detectLoops()

	pc, ok := mil.IsDone(b.Code).(*mil.PrimCall)
	if !ok || pc.Prim != mil.PrimLoop {
		t.Fatalf("self-looping block body = %v; want a loop primitive", b.Code)
	}

	ctx.changed = false
	ctx.detectLoops()

	if ctx.changed {
		t.Error("second loop detection pass reported a change")
	}
}

func TestReturnAnalysisMutualRecursion(t *testing.T) {
	a := mil.NewBlock(nil, nil, nil)
	b := mil.NewBlock(nil, nil, &mil.Done{Tail: &mil.BlockCall{Target: a}})
	a.Code = &mil.Done{Tail: &mil.BlockCall{Target: b}}

	leaf := mil.AtomBlock("leaf", &mil.WordConst{Value: 1})

	prog := newProgram(a, a, b, leaf)
	testContext(prog)

	if !a.DoesntReturn || !b.DoesntReturn {
		t.Error("mutually recursive blocks with no return path not marked non-returning")
	}

	if leaf.DoesntReturn {
		t.Error("returning block marked non-returning")
	}
}

func TestDeadArgsTrimsParamsAndCallSites(t *testing.T) {
	hx := mil.NewTemp()
	hy := mil.NewTemp()
	h := mil.NewBlock(nil, []*mil.Temp{hx, hy}, &mil.Done{Tail: &mil.Return{Args: []mil.Atom{hx}}})

	fa := mil.NewTemp()
	fr := mil.NewTemp()
	f := mil.NewBlock(nil, []*mil.Temp{fa}, &mil.Bind{
		Vars: []*mil.Temp{fr},
		Tail: &mil.BlockCall{Target: h, Args: []mil.Atom{fa, &mil.WordConst{Value: 7}}},
		Rest: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{fr}}},
	})

	prog := newProgram(f, h, f)
	ctx := testContext(prog)
	ctx.deadArgs()

	if len(h.Params) != 1 || h.Params[0] != hx {
		t.Fatalf("h.Params = %v; want the single used parameter", h.Params)
	}

	bc := f.Code.(*mil.Bind).Tail.(*mil.BlockCall)
	if len(bc.Args) != 1 || bc.Args[0] != mil.Atom(fa) {
		t.Errorf("call args = %v; want [a]", bc.Args)
	}

	ctx.changed = false
	ctx.deadArgs()

	if ctx.changed {
		t.Error("second dead-argument pass reported a change")
	}
}

func TestDeadArgsRemovesCirculatingParam(t *testing.T) {
	// y only travels around the recursion; nothing observes it
	lc := mil.NewTemp()
	lx := mil.NewTemp()
	ly := mil.NewTemp()
	loop := mil.NewBlock(nil, []*mil.Temp{lc, lx, ly}, nil)
	loop.Code = &mil.If{
		Cond: lc,
		Then: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{lx}}},
		Else: &mil.Done{Tail: &mil.BlockCall{Target: loop, Args: []mil.Atom{lc, lx, ly}}},
	}

	fc := mil.NewTemp()
	fx := mil.NewTemp()
	fy := mil.NewTemp()
	f := mil.NewBlock(nil, []*mil.Temp{fc, fx, fy}, &mil.Done{
		Tail: &mil.BlockCall{Target: loop, Args: []mil.Atom{fc, fx, fy}},
	})

	prog := newProgram(f, loop, f)
	ctx := testContext(prog)
	ctx.deadArgs()

	if len(loop.Params) != 2 {
		t.Fatalf("loop.Params = %v; want the circulating parameter removed", loop.Params)
	}

	bc := mil.IsDone(f.Code).(*mil.BlockCall)
	if len(bc.Args) != 2 {
		t.Errorf("call args = %v; want two", bc.Args)
	}
}

func dupBlock() *mil.Block {
	x := mil.NewTemp()
	y := mil.NewTemp()
	return mil.NewBlock(nil, []*mil.Temp{x}, &mil.Bind{
		Vars: []*mil.Temp{y},
		Tail: &mil.PrimCall{Prim: mil.PrimAdd, Args: []mil.Atom{x, &mil.WordConst{Value: 1}}},
		Rest: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{y}}},
	})
}

func TestDedupRedirectsCalls(t *testing.T) {
	g1 := dupBlock()
	g2 := dupBlock()

	fa := mil.NewTemp()
	r1 := mil.NewTemp()
	r2 := mil.NewTemp()
	f := mil.NewBlock(nil, []*mil.Temp{fa}, &mil.Bind{
		Vars: []*mil.Temp{r1},
		Tail: &mil.BlockCall{Target: g1, Args: []mil.Atom{fa}},
		Rest: &mil.Bind{
			Vars: []*mil.Temp{r2},
			Tail: &mil.BlockCall{Target: g2, Args: []mil.Atom{r1}},
			Rest: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{r2}}},
		},
	})

	prog := newProgram(f, g1, g2, f)
	ctx := testContext(prog)
	ctx.dedup()

	first := f.Code.(*mil.Bind).Tail.(*mil.BlockCall)
	second := f.Code.(*mil.Bind).Rest.(*mil.Bind).Tail.(*mil.BlockCall)

	if first.Target != second.Target {
		t.Errorf("calls target %s and %s; want a single representative", first.Target.Name(), second.Target.Name())
	}
}

func TestDedupKeepsEntryBlocks(t *testing.T) {
	g1 := dupBlock()
	g2 := dupBlock()

	fa := mil.NewTemp()
	r := mil.NewTemp()
	f := mil.NewBlock(nil, []*mil.Temp{fa}, &mil.Bind{
		Vars: []*mil.Temp{r},
		Tail: &mil.BlockCall{Target: g2, Args: []mil.Atom{fa}},
		Rest: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{r}}},
	})

	prog := mil.NewProgram()
	prog.AddDefn(g1)
	prog.AddDefn(g2)
	prog.AddDefn(f)
	prog.AddEntrypoint(f)
	prog.AddEntrypoint(g2)

	ctx := testContext(prog)
	ctx.dedup()

	bc := f.Code.(*mil.Bind).Tail.(*mil.BlockCall)
	if bc.Target != g2 {
		t.Errorf("call to entry block redirected to %s", bc.Target.Name())
	}
}

func TestCollectBindsConstantArg(t *testing.T) {
	gx := mil.NewTemp()
	gy := mil.NewTemp()
	gz := mil.NewTemp()
	g := mil.NewBlock(nil, []*mil.Temp{gx, gy}, &mil.Bind{
		Vars: []*mil.Temp{gz},
		Tail: &mil.PrimCall{Prim: mil.PrimAdd, Args: []mil.Atom{gx, gy}},
		Rest: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{gz}}},
	})

	fa := mil.NewTemp()
	fr := mil.NewTemp()
	fs := mil.NewTemp()
	f := mil.NewBlock(nil, []*mil.Temp{fa}, &mil.Bind{
		Vars: []*mil.Temp{fr},
		Tail: &mil.BlockCall{Target: g, Args: []mil.Atom{fa, &mil.WordConst{Value: 5}}},
		Rest: &mil.Bind{
			Vars: []*mil.Temp{fs},
			Tail: &mil.BlockCall{Target: g, Args: []mil.Atom{fr, &mil.WordConst{Value: 5}}},
			Rest: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{fs}}},
		},
	})

	prog := newProgram(f, g, f)
	ctx := testContext(prog)
	ctx.collect()

	bind, ok := g.Code.(*mil.Bind)
	if !ok || bind.Vars[0] != gy {
		t.Fatalf("g body does not start by binding its constant parameter")
	}

	ret, ok := bind.Tail.(*mil.Return)
	if !ok {
		t.Fatalf("prepended binding is %T; want Return", bind.Tail)
	}

	if wc, ok := ret.Args[0].(*mil.WordConst); !ok || wc.Value != 5 {
		t.Errorf("collected value = %s; want 5", ret.Args[0].Repr())
	}

	// the parameter is no longer free below the binding, so a second pass
	// must not stack another one
	ctx.collect()

	if g.Code != mil.Code(bind) {
		t.Error("collection is not idempotent")
	}
}

func TestFlowFoldsConstantBranch(t *testing.T) {
	fx := mil.NewTemp()
	fc := mil.NewTemp()
	f := mil.NewBlock(nil, []*mil.Temp{fx}, &mil.Bind{
		Vars: []*mil.Temp{fc},
		Tail: &mil.PrimCall{Prim: mil.PrimLt, Args: []mil.Atom{&mil.WordConst{Value: 1}, &mil.WordConst{Value: 2}}},
		Rest: &mil.If{
			Cond: fc,
			Then: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{fx}}},
			Else: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{&mil.WordConst{Value: 0}}}},
		},
	})

	prog := newProgram(f, f)
	Run(prog, silentReporter(), DefaultLimits())

	done, ok := f.Code.(*mil.Done)
	if !ok {
		t.Fatalf("f body is %T; want the folded then-arm", f.Code)
	}

	ret, ok := done.Tail.(*mil.Return)
	if !ok || ret.Args[0] != mil.Atom(f.Params[0]) {
		t.Errorf("f tail = %s; want return of its parameter", done.Tail.Repr())
	}
}

func TestFlowEntersKnownClosure(t *testing.T) {
	p := mil.NewTemp()
	k := mil.NewClosureDefn(nil, nil, []*mil.Temp{p}, &mil.Return{Args: []mil.Atom{p}})

	g := mil.NewBlock(nil, nil, &mil.Done{Tail: &mil.ClosAlloc{Defn: k}})

	fb := mil.NewTemp()
	fr := mil.NewTemp()
	f := mil.NewBlock(nil, []*mil.Temp{fb}, &mil.Bind{
		Vars: []*mil.Temp{fr},
		Tail: &mil.BlockCall{Target: g},
		Rest: &mil.Done{Tail: &mil.Enter{Fun: fr, Args: []mil.Atom{fb}}},
	})

	prog := newProgram(f, k, g, f)
	ctx := testContext(prog)
	ctx.flow()

	done, ok := f.Code.(*mil.Done)
	if !ok {
		t.Fatalf("f body is %T; want Done", f.Code)
	}

	ret, ok := done.Tail.(*mil.Return)
	if !ok || ret.Args[0] != mil.Atom(f.Params[0]) {
		t.Errorf("f tail = %s; want the closure body applied directly", done.Tail.Repr())
	}
}

func TestAbsorbEnterDerivesVariant(t *testing.T) {
	ks := mil.NewTemp()
	p := mil.NewTemp()
	k := mil.NewClosureDefn(nil, []*mil.Temp{ks}, []*mil.Temp{p}, &mil.PrimCall{
		Prim: mil.PrimAdd, Args: []mil.Atom{ks, p},
	})

	// g computes the stored value from its parameter, so its body cannot
	// collapse to a single tail
	gw := mil.NewTemp()
	gt := mil.NewTemp()
	g := mil.NewBlock(nil, []*mil.Temp{gw}, &mil.Bind{
		Vars: []*mil.Temp{gt},
		Tail: &mil.PrimCall{Prim: mil.PrimAdd, Args: []mil.Atom{gw, &mil.WordConst{Value: 1}}},
		Rest: &mil.Done{Tail: &mil.ClosAlloc{Defn: k, Args: []mil.Atom{gt}}},
	})

	fb := mil.NewTemp()
	fr := mil.NewTemp()
	f := mil.NewBlock(nil, []*mil.Temp{fb}, &mil.Bind{
		Vars: []*mil.Temp{fr},
		Tail: &mil.BlockCall{Target: g, Args: []mil.Atom{fb}},
		Rest: &mil.Done{Tail: &mil.Enter{Fun: fr, Args: []mil.Atom{&mil.WordConst{Value: 7}}}},
	})

	prog := newProgram(f, k, g, f)
	ctx := testContext(prog)
	ctx.flow()

	bc, ok := mil.IsDone(f.Code).(*mil.BlockCall)
	if !ok {
		t.Fatalf("f body = %v; want a call to a derived block", f.Code)
	}

	if bc.Target == g {
		t.Fatal("call still targets the original block")
	}

	if len(bc.Target.Params) != 2 || len(bc.Args) != 2 || bc.Args[0] != mil.Atom(f.Params[0]) {
		t.Errorf("derived call = %s; want the original argument plus the enter argument", bc.Repr())
	}

	if wc, ok := bc.Args[1].(*mil.WordConst); !ok || wc.Value != 7 {
		t.Errorf("absorbed argument = %s; want 7", bc.Args[1].Repr())
	}

	if ctx.deriveWithEnter(g, 1) != bc.Target {
		t.Error("a second derivation request did not hit the cache")
	}
}

func TestMergeDuplicateArgs(t *testing.T) {
	gx := mil.NewTemp()
	gy := mil.NewTemp()
	gz := mil.NewTemp()
	g := mil.NewBlock(nil, []*mil.Temp{gx, gy}, &mil.Bind{
		Vars: []*mil.Temp{gz},
		Tail: &mil.PrimCall{Prim: mil.PrimMul, Args: []mil.Atom{gx, gy}},
		Rest: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{gz}}},
	})

	fa := mil.NewTemp()
	f := mil.NewBlock(nil, []*mil.Temp{fa}, &mil.Done{
		Tail: &mil.BlockCall{Target: g, Args: []mil.Atom{fa, fa}},
	})

	prog := newProgram(f, g, f)
	ctx := testContext(prog)
	ctx.flow()

	bc, ok := mil.IsDone(f.Code).(*mil.BlockCall)
	if !ok {
		t.Fatalf("f body = %v; want a call", f.Code)
	}

	if bc.Target == g || len(bc.Target.Params) != 1 || len(bc.Args) != 1 {
		t.Errorf("call = %s; want a one-parameter variant", bc.Repr())
	}

	if ctx.deriveWithDuplicateArgs(g, []int{0, 1}) != bc.Target {
		t.Error("a second derivation request did not hit the cache")
	}
}

func TestKnownConsVariant(t *testing.T) {
	// g scrutinizes its parameter, so a caller that just allocated the
	// value should call a field-passing variant instead
	gv := mil.NewTemp()
	g := mil.NewBlock(nil, []*mil.Temp{gv}, &mil.Case{
		Scrut: gv,
		Alts: []*mil.Alt{
			{Con: "Box", Tag: 0, Body: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{&mil.WordConst{Value: 1}}}}},
		},
		Default: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{&mil.WordConst{Value: 0}}}},
	})

	fa := mil.NewTemp()
	fd := mil.NewTemp()
	f := mil.NewBlock(nil, []*mil.Temp{fa}, &mil.Bind{
		Vars: []*mil.Temp{fd},
		Tail: &mil.DataAlloc{Con: "Box", Tag: 0, Args: []mil.Atom{fa}},
		Rest: &mil.Done{Tail: &mil.BlockCall{Target: g, Args: []mil.Atom{fd}}},
	})

	prog := newProgram(f, g, f)
	ctx := testContext(prog)
	ctx.flow()

	bc, ok := mil.IsDone(f.Code).(*mil.BlockCall)
	if !ok {
		t.Fatalf("f body = %v; want a call to the derived variant", f.Code)
	}

	if bc.Target == g {
		t.Fatal("call still passes the freshly allocated value")
	}

	if len(bc.Args) != 1 || bc.Args[0] != mil.Atom(f.Params[0]) {
		t.Errorf("call args = %v; want the constructor field", bc.Args)
	}
}
