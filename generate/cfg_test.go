package generate

import (
	"testing"

	"milc/mil"
)

func TestBuildCFGSplitsBranches(t *testing.T) {
	c := mil.NewTemp()
	x := mil.NewTemp()
	b := mil.NewBlock(nil, []*mil.Temp{c, x}, &mil.If{
		Cond: c,
		Then: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{x}}},
		Else: &mil.Done{Tail: &mil.Return{Args: []mil.Atom{&mil.WordConst{Value: 0}}}},
	})

	cfg := BuildCFG(b)

	if len(cfg.Nodes) != 3 {
		t.Fatalf("graph has %d nodes; want entry and two arms", len(cfg.Nodes))
	}

	entry := cfg.Entry
	if len(entry.Params) != 2 {
		t.Fatalf("entry has %d parameters; want 2", len(entry.Params))
	}

	// the graph must not alias the block's own binders
	if entry.Params[0] == c || entry.Params[1] == x {
		t.Error("entry parameters alias the block's binders")
	}

	iff, ok := entry.Term.(*mil.If)
	if !ok {
		t.Fatalf("entry terminator is %T; want If", entry.Term)
	}

	if iff.Cond != mil.Atom(entry.Params[0]) {
		t.Errorf("branch condition = %s; want the fresh flag parameter", iff.Cond.Repr())
	}

	if len(entry.Succs) != 2 {
		t.Fatalf("entry has %d successors; want 2", len(entry.Succs))
	}

	thenRet := entry.Succs[0].Term.(*mil.Done).Tail.(*mil.Return)
	if thenRet.Args[0] != mil.Atom(entry.Params[1]) {
		t.Errorf("then arm returns %s; want the fresh word parameter", thenRet.Args[0].Repr())
	}
}

func TestBuildCFGSharesInternalJumpTargets(t *testing.T) {
	// join is private to the function: both branch arms jump to it, and it
	// must become a single node with two incoming edges
	jx := mil.NewTemp()
	join := mil.NewBlock(nil, []*mil.Temp{jx}, &mil.Done{Tail: &mil.Return{Args: []mil.Atom{jx}}})
	join.NumberCalls = 0

	c := mil.NewTemp()
	x := mil.NewTemp()
	b := mil.NewBlock(nil, []*mil.Temp{c, x}, &mil.If{
		Cond: c,
		Then: &mil.Done{Tail: &mil.BlockCall{Target: join, Args: []mil.Atom{x}}},
		Else: &mil.Done{Tail: &mil.BlockCall{Target: join, Args: []mil.Atom{&mil.WordConst{Value: 7}}}},
	})

	cfg := BuildCFG(b)

	then := cfg.Entry.Succs[0]
	els := cfg.Entry.Succs[1]

	if len(then.Succs) != 1 || len(els.Succs) != 1 {
		t.Fatal("branch arms do not jump")
	}

	target := then.Succs[0]
	if target != els.Succs[0] {
		t.Fatal("jumps to the same private block built separate nodes")
	}

	if then.Term != nil || els.Term != nil {
		t.Error("jumping nodes still carry a terminator")
	}

	if len(target.Incoming) != 2 {
		t.Fatalf("join node has %d incoming edges; want 2", len(target.Incoming))
	}

	if target.Incoming[0].From != then || target.Incoming[1].From != els {
		t.Error("incoming edges do not record their predecessors in arm order")
	}

	if target.Incoming[0].Args[0] != mil.Atom(cfg.Entry.Params[1]) {
		t.Errorf("then edge passes %s; want the word parameter", target.Incoming[0].Args[0].Repr())
	}

	if wc, ok := target.Incoming[1].Args[0].(*mil.WordConst); !ok || wc.Value != 7 {
		t.Errorf("else edge passes %s; want 7", target.Incoming[1].Args[0].Repr())
	}

	if len(target.Params) != 1 || target.Params[0] == jx {
		t.Error("join node parameters alias the private block's binders")
	}
}

func TestBuildCFGKeepsCallsToStandaloneBlocks(t *testing.T) {
	gx := mil.NewTemp()
	g := mil.NewBlock(nil, []*mil.Temp{gx}, &mil.Done{Tail: &mil.Return{Args: []mil.Atom{gx}}})
	g.NumberCalls = 2

	x := mil.NewTemp()
	b := mil.NewBlock(nil, []*mil.Temp{x}, &mil.Done{Tail: &mil.BlockCall{Target: g, Args: []mil.Atom{x}}})

	cfg := BuildCFG(b)

	if len(cfg.Nodes) != 1 {
		t.Fatalf("graph has %d nodes; want the entry only", len(cfg.Nodes))
	}

	bc, ok := cfg.Entry.Term.(*mil.Done).Tail.(*mil.BlockCall)
	if !ok || bc.Target != g {
		t.Errorf("entry terminator = %v; want the tail call to the standalone block", cfg.Entry.Term)
	}
}
