package mil

import "testing"

// addChain builds a block of the form `b[x, y] = z <- add((x, y)); return z`.
func addChain() *Block {
	params := MakeTemps(2)
	z := NewTemp()

	return NewBlock(nil, params, &Bind{
		Vars: []*Temp{z},
		Tail: &PrimCall{Prim: PrimAdd, Args: []Atom{params[0], params[1]}},
		Rest: &Done{Tail: &Return{Args: []Atom{z}}},
	})
}

func TestSummaryAlphaInvariance(t *testing.T) {
	a := addChain()
	b := addChain()

	if a.Summary() != b.Summary() {
		t.Error("alpha-equivalent blocks have different summaries")
	}

	if !AlphaBlocks(a, b) {
		t.Error("AlphaBlocks rejected alpha-equivalent blocks")
	}
}

func TestAlphaBlocksDistinguishesConstants(t *testing.T) {
	mk := func(v int64) *Block {
		x := NewTemp()
		return NewBlock(nil, []*Temp{x}, &Done{
			Tail: &Return{Args: []Atom{&WordConst{Value: v}}},
		})
	}

	a, b := mk(1), mk(2)
	if AlphaBlocks(a, b) {
		t.Error("blocks returning different constants compared equal")
	}

	if a.Summary() == b.Summary() {
		t.Error("blocks returning different constants share a summary")
	}
}

func TestAlphaBlocksSwappedParams(t *testing.T) {
	mk := func(swapped bool) *Block {
		params := MakeTemps(2)
		z := NewTemp()

		args := []Atom{params[0], params[1]}
		if swapped {
			args = []Atom{params[1], params[0]}
		}

		return NewBlock(nil, params, &Bind{
			Vars: []*Temp{z},
			Tail: &PrimCall{Prim: PrimSub, Args: args},
			Rest: &Done{Tail: &Return{Args: []Atom{z}}},
		})
	}

	if AlphaBlocks(mk(false), mk(true)) {
		t.Error("blocks using their parameters in different orders compared equal")
	}
}

func TestAlphaBlocksFreeTemps(t *testing.T) {
	free := NewTemp()
	mk := func(f *Temp) *Block {
		return NewBlock(nil, nil, &Done{Tail: &Return{Args: []Atom{f}}})
	}

	if !AlphaBlocks(mk(free), mk(free)) {
		t.Error("blocks returning the same free temp compared unequal")
	}

	if AlphaBlocks(mk(free), mk(NewTemp())) {
		t.Error("blocks returning different free temps compared equal")
	}
}

func TestCopyCodeAllocatesFreshBinders(t *testing.T) {
	x := NewTemp()
	z := NewTemp()
	z.Type = nil

	orig := &Bind{
		Vars: []*Temp{z},
		Tail: &PrimCall{Prim: PrimAdd, Args: []Atom{x, &WordConst{Value: 1}}},
		Rest: &Done{Tail: &Return{Args: []Atom{z}}},
	}

	y := NewTemp()
	var s *TempSubst
	copied := CopyCode(orig, s.Bind(x, y)).(*Bind)

	if copied.Vars[0] == z {
		t.Error("copied code shares a binder with the original")
	}

	if copied.Tail.(*PrimCall).Args[0] != Atom(y) {
		t.Error("substitution was not applied to the copied tail")
	}

	ret := copied.Rest.(*Done).Tail.(*Return)
	if ret.Args[0] != Atom(copied.Vars[0]) {
		t.Error("copied body does not use its own fresh binder")
	}
}
