package opt

import (
	"milc/mil"
	"milc/report"
)

// collect gathers, for every block, the arguments that have the same
// constant or global value at every reachable call site.  Each such value is
// then bound over the block's body with a return, so that the next flow
// round propagates it and the parameter itself becomes dead.
func (ctx *Context) collect() {
	type argVals struct {
		atoms []mil.Atom
	}

	vals := make(map[*mil.Block]*argVals)

	meet := func(bc *mil.BlockCall) {
		av := vals[bc.Target]
		if av != nil && len(av.atoms) != len(bc.Args) {
			report.ICE("call to %s passes %d arguments where another site passed %d", bc.Target.Name(), len(bc.Args), len(av.atoms))
		}

		if av == nil {
			av = &argVals{atoms: make([]mil.Atom, len(bc.Args))}
			for i, a := range bc.Args {
				if collectible(a) {
					av.atoms[i] = a
				}
			}

			vals[bc.Target] = av
			return
		}

		for i, a := range av.atoms {
			if a != nil && !sameAtom(a, bc.Args[i]) {
				av.atoms[i] = nil
			}
		}
	}

	var meetCode func(c mil.Code)
	meetTail := func(t mil.Tail) {
		if bc, ok := t.(*mil.BlockCall); ok {
			meet(bc)
		}
	}

	meetCode = func(c mil.Code) {
		switch v := c.(type) {
		case *mil.Bind:
			meetTail(v.Tail)
			meetCode(v.Rest)
		case *mil.Done:
			meetTail(v.Tail)
		case *mil.If:
			meetCode(v.Then)
			meetCode(v.Else)
		case *mil.Case:
			for _, alt := range v.Alts {
				meetCode(alt.Body)
			}

			if v.Default != nil {
				meetCode(v.Default)
			}
		}
	}

	for _, d := range ctx.Prog.Defns {
		if !mil.Reachable(d) {
			continue
		}

		switch v := d.(type) {
		case *mil.Block:
			meetCode(v.Code)
		case *mil.ClosureDefn:
			meetTail(v.Tail)
		case *mil.TopLevel:
			meetTail(v.Tail)
		}
	}

	for b, av := range vals {
		if ctx.isEntry(b) || !mil.Reachable(b) {
			continue
		}

		free := mil.FreeVars(b.Code, make(map[*mil.Temp]bool))

		for i, a := range av.atoms {
			if a == nil || i >= len(b.Params) || !free[b.Params[i]] {
				continue
			}

			ctx.note("bound constant argument %d of %s over its body", i, b.Name())
			b.Code = &mil.Bind{
				Vars: []*mil.Temp{b.Params[i]},
				Tail: &mil.Return{Args: []mil.Atom{a}},
				Rest: b.Code,
			}
		}
	}
}

// collectible reports whether an atom has the same meaning at every call
// site.
func collectible(a mil.Atom) bool {
	switch a.(type) {
	case *mil.WordConst, *mil.FlagConst, *mil.Global:
		return true
	}

	return false
}
