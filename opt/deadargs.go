package opt

import (
	"milc/mil"
	"milc/typing"
)

// usageInfo is the used-argument bitmap of one block or closure definition.
type usageInfo struct {
	used    []bool
	numUsed int
}

func (u *usageInfo) mark(i int) {
	if !u.used[i] {
		u.used[i] = true
		u.numUsed++
	}
}

// deadArgs removes parameters that no reachable use ever depends on.  The
// analysis runs a global fixpoint: an argument of a call only counts as a
// use of the atoms it passes once the callee's corresponding parameter is
// itself known to be used, so arguments that merely circulate through a
// recursive loop are eliminated together.
func (ctx *Context) deadArgs() {
	ctx.usage = make(map[mil.Defn]*usageInfo)

	for _, d := range ctx.Prog.Defns {
		if !mil.Reachable(d) {
			continue
		}

		switch v := d.(type) {
		case *mil.Block:
			u := &usageInfo{used: make([]bool, len(v.Params))}
			ctx.usage[v] = u

			// entry parameters are part of the external interface
			if ctx.isEntry(v) {
				for i := range u.used {
					u.mark(i)
				}
			}
		case *mil.ClosureDefn:
			ctx.usage[v] = &usageInfo{used: make([]bool, len(v.Stored))}
		}
	}

	for changed := true; changed; {
		changed = false

		for d, u := range ctx.usage {
			if u.numUsed == len(u.used) {
				continue
			}

			var formals []*mil.Temp
			uv := make(map[*mil.Temp]bool)

			switch v := d.(type) {
			case *mil.Block:
				formals = v.Params
				ctx.usedTempsCode(v.Code, uv)
			case *mil.ClosureDefn:
				formals = v.Stored
				ctx.usedTempsTail(v.Tail, uv)
			}

			for i, p := range formals {
				if !u.used[i] && uv[p] {
					u.mark(i)
					changed = true
				}
			}
		}
	}

	// Collect the masks of the definitions that lose parameters, then trim
	// the definitions and every call and allocation site in one sweep.
	masks := make(map[mil.Defn][]bool)

	for d, u := range ctx.usage {
		if u.numUsed == len(u.used) {
			continue
		}

		masks[d] = u.used

		switch v := d.(type) {
		case *mil.Block:
			ctx.note("removed %d unused parameter(s) from %s", len(u.used)-u.numUsed, v.Name())
			v.Params = filterTemps(v.Params, u.used)

			if v.Declared != nil {
				v.Declared = v.Declared.RemoveArgs(u.used)
			}

			if v.Defining != nil {
				v.Defining = &typing.BlockType{
					Dom: filterTypes(v.Defining.Dom, u.used),
					Rng: v.Defining.Rng,
				}
			}
		case *mil.ClosureDefn:
			ctx.note("removed %d unused stored value(s) from %s", len(u.used)-u.numUsed, v.Name())
			v.Stored = filterTemps(v.Stored, u.used)
		}
	}

	if len(masks) == 0 {
		return
	}

	for _, d := range ctx.Prog.Defns {
		if !mil.Reachable(d) {
			continue
		}

		switch v := d.(type) {
		case *mil.Block:
			trimCallSites(v.Code, masks)
		case *mil.ClosureDefn:
			trimTail(v.Tail, masks)
		case *mil.TopLevel:
			trimTail(v.Tail, masks)
		}
	}
}

// usedTempsCode collects the temps a body actually depends on, counting call
// arguments only at positions the callee is known to use.
func (ctx *Context) usedTempsCode(c mil.Code, uv map[*mil.Temp]bool) {
	switch v := c.(type) {
	case *mil.Bind:
		ctx.usedTempsTail(v.Tail, uv)
		ctx.usedTempsCode(v.Rest, uv)
	case *mil.Done:
		ctx.usedTempsTail(v.Tail, uv)
	case *mil.If:
		markAtom(v.Cond, uv)
		ctx.usedTempsCode(v.Then, uv)
		ctx.usedTempsCode(v.Else, uv)
	case *mil.Case:
		markAtom(v.Scrut, uv)
		for _, alt := range v.Alts {
			ctx.usedTempsCode(alt.Body, uv)
		}

		if v.Default != nil {
			ctx.usedTempsCode(v.Default, uv)
		}
	}
}

func (ctx *Context) usedTempsTail(t mil.Tail, uv map[*mil.Temp]bool) {
	switch v := t.(type) {
	case *mil.BlockCall:
		ctx.markFiltered(v.Target, v.Args, uv)
	case *mil.ClosAlloc:
		ctx.markFiltered(v.Defn, v.Args, uv)
	default:
		for _, a := range mil.TailArgs(t) {
			markAtom(a, uv)
		}
	}
}

func (ctx *Context) markFiltered(d mil.Defn, args []mil.Atom, uv map[*mil.Temp]bool) {
	u := ctx.usage[d]
	for i, a := range args {
		if u == nil || (i < len(u.used) && u.used[i]) {
			markAtom(a, uv)
		}
	}
}

func markAtom(a mil.Atom, uv map[*mil.Temp]bool) {
	if t, ok := a.(*mil.Temp); ok {
		uv[t] = true
	}
}

// -----------------------------------------------------------------------------

func trimCallSites(c mil.Code, masks map[mil.Defn][]bool) {
	switch v := c.(type) {
	case *mil.Bind:
		trimTail(v.Tail, masks)
		trimCallSites(v.Rest, masks)
	case *mil.Done:
		trimTail(v.Tail, masks)
	case *mil.If:
		trimCallSites(v.Then, masks)
		trimCallSites(v.Else, masks)
	case *mil.Case:
		for _, alt := range v.Alts {
			trimCallSites(alt.Body, masks)
		}

		if v.Default != nil {
			trimCallSites(v.Default, masks)
		}
	}
}

func trimTail(t mil.Tail, masks map[mil.Defn][]bool) {
	switch v := t.(type) {
	case *mil.BlockCall:
		if mask, ok := masks[v.Target]; ok {
			v.Args = filterAtoms(v.Args, mask)

			if v.Inst != nil {
				v.Inst = &typing.BlockType{Dom: filterTypes(v.Inst.Dom, mask), Rng: v.Inst.Rng}
			}
		}
	case *mil.ClosAlloc:
		if mask, ok := masks[v.Defn]; ok {
			v.Args = filterAtoms(v.Args, mask)
		}
	}
}

func filterTemps(ts []*mil.Temp, mask []bool) []*mil.Temp {
	var nts []*mil.Temp
	for i, t := range ts {
		if mask[i] {
			nts = append(nts, t)
		}
	}

	return nts
}

func filterAtoms(args []mil.Atom, mask []bool) []mil.Atom {
	var nargs []mil.Atom
	for i, a := range args {
		if mask[i] {
			nargs = append(nargs, a)
		}
	}

	return nargs
}

func filterTypes(ts typing.TupleType, mask []bool) typing.TupleType {
	var nts typing.TupleType
	for i, t := range ts {
		if i < len(mask) && mask[i] {
			nts = append(nts, t)
		}
	}

	return nts
}
