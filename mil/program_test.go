package mil

import "testing"

func callBlock(target *Block, args ...Atom) *Block {
	params := MakeTemps(len(args))
	return NewBlock(nil, params, &Done{Tail: &BlockCall{Target: target, Args: args}})
}

func TestShakeMarksReachable(t *testing.T) {
	g := AtomBlock("g", &WordConst{Value: 1})
	f := callBlock(g)
	dead := AtomBlock("dead", &WordConst{Value: 2})

	prog := NewProgram()
	prog.AddDefn(g)
	prog.AddDefn(f)
	prog.AddDefn(dead)
	prog.AddEntrypoint(f)
	prog.Shake()

	if !f.Reachable || !g.Reachable {
		t.Error("entry point or its callee not marked reachable")
	}

	if dead.Reachable {
		t.Error("uncalled block marked reachable")
	}
}

func TestCountCalls(t *testing.T) {
	g := AtomBlock("g", &WordConst{Value: 1})

	// f binds a call to g, then tail-calls h
	h := AtomBlock("h", &WordConst{Value: 2})
	r := NewTemp()
	f := NewBlock(nil, nil, &Bind{
		Vars: []*Temp{r},
		Tail: &BlockCall{Target: g},
		Rest: &Done{Tail: &BlockCall{Target: h}},
	})

	prog := NewProgram()
	prog.AddDefn(g)
	prog.AddDefn(h)
	prog.AddDefn(f)
	prog.AddEntrypoint(f)
	prog.Shake()
	prog.CountCalls()

	if g.NumberCalls != 1 {
		t.Errorf("g.NumberCalls = %d; want 1 (bind position)", g.NumberCalls)
	}

	if h.NumberCalls != 0 {
		t.Errorf("h.NumberCalls = %d; want 0 (tail position)", h.NumberCalls)
	}

	if f.NumberCalls != 1 {
		t.Errorf("f.NumberCalls = %d; want 1 (entry point)", f.NumberCalls)
	}
}

func TestInlineTail(t *testing.T) {
	x := NewTemp()
	b := NewBlock(nil, []*Temp{x}, &Done{Tail: &Return{Args: []Atom{x}}})

	seven := &WordConst{Value: 7}
	tail := b.InlineTail([]Atom{seven})

	ret, ok := tail.(*Return)
	if !ok || ret.Args[0] != Atom(seven) {
		t.Errorf("InlineTail = %v; want return [7]", tail)
	}

	// a block with a branching body has no single tail
	cond := NewTemp()
	br := NewBlock(nil, []*Temp{cond}, &If{
		Cond: cond,
		Then: &Done{Tail: &Return{Args: []Atom{&WordConst{Value: 1}}}},
		Else: &Done{Tail: &Return{Args: []Atom{&WordConst{Value: 2}}}},
	})

	if br.InlineTail([]Atom{&FlagConst{Value: true}}) != nil {
		t.Error("InlineTail succeeded on a branching block")
	}
}

func TestIsGoto(t *testing.T) {
	c := AtomBlock("c", &WordConst{Value: 3})

	x := NewTemp()
	b := NewBlock(nil, []*Temp{x}, &Done{Tail: &BlockCall{Target: c, Args: []Atom{x}}})
	if b.IsGoto() == nil {
		t.Error("parameterized forwarding block not recognized as a goto")
	}

	// b'[] = c[a] forwards a captured value; it is an entry, not a goto
	free := NewTemp()
	e := NewBlock(nil, nil, &Done{Tail: &BlockCall{Target: c, Args: []Atom{free}}})
	if e.IsGoto() != nil {
		t.Error("zero-parameter block with call arguments recognized as a goto")
	}
}

func TestValidateCatchesUnboundTemp(t *testing.T) {
	stray := NewTemp()
	b := NewBlock(nil, nil, &Done{Tail: &Return{Args: []Atom{stray}}})

	prog := NewProgram()
	prog.AddDefn(b)

	if err := prog.Validate(); err == nil {
		t.Error("Validate accepted a use of an unbound temp")
	}
}

func TestValidateAcceptsBoundCode(t *testing.T) {
	prog := NewProgram()
	prog.AddDefn(addChain())

	if err := prog.Validate(); err != nil {
		t.Errorf("Validate rejected well-formed code: %v", err)
	}
}
