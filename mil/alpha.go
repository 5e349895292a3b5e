package mil

import (
	"hash/fnv"
	"strconv"
)

// This file implements the alpha-invariant structural summaries and the true
// alpha-equivalence test used by structural deduplication.  Two blocks whose
// bodies are equal up to a consistent renaming of their own parameters and
// bound temps have the same summary and compare equal.

// alphaEnv numbers the temps bound within a block: parameters first, then
// binders in sequence order.  Temps with the same number correspond under
// the candidate bijection.
type alphaEnv map[*Temp]int

func (env alphaEnv) bind(ts []*Temp) {
	for _, t := range ts {
		env[t] = len(env)
	}
}

// Summary computes an integer summary of the block's body with the key
// property that alpha-equivalent bodies receive the same summary value.
func (b *Block) Summary() uint64 {
	h := fnv.New64a()
	env := make(alphaEnv)
	env.bind(b.Params)
	h.Write([]byte{byte(len(b.Params))})
	summaryCode(b.Code, env, h)
	return h.Sum64()
}

type hasher interface {
	Write([]byte) (int, error)
}

func hstr(h hasher, s string) {
	h.Write([]byte(s))
	h.Write([]byte{0})
}

func summaryCode(c Code, env alphaEnv, h hasher) {
	switch v := c.(type) {
	case *Bind:
		hstr(h, "bind")
		summaryTail(v.Tail, env, h)
		env.bind(v.Vars)
		summaryCode(v.Rest, env, h)
	case *Done:
		hstr(h, "done")
		summaryTail(v.Tail, env, h)
	case *If:
		hstr(h, "if")
		summaryAtom(v.Cond, env, h)
		summaryCode(v.Then, env, h)
		summaryCode(v.Else, env, h)
	case *Case:
		hstr(h, "case")
		summaryAtom(v.Scrut, env, h)
		for _, alt := range v.Alts {
			hstr(h, alt.Con)
			summaryCode(alt.Body, env, h)
		}

		if v.Default != nil {
			hstr(h, "default")
			summaryCode(v.Default, env, h)
		}
	}
}

func summaryTail(t Tail, env alphaEnv, h hasher) {
	switch v := t.(type) {
	case *Return:
		hstr(h, "return")
		summaryAtoms(v.Args, env, h)
	case *BlockCall:
		hstr(h, "call")
		hstr(h, v.Target.Id)
		summaryAtoms(v.Args, env, h)
	case *Enter:
		hstr(h, "enter")
		summaryAtom(v.Fun, env, h)
		summaryAtoms(v.Args, env, h)
	case *PrimCall:
		hstr(h, "prim")
		hstr(h, v.Prim.Name)
		summaryAtoms(v.Args, env, h)
	case *ClosAlloc:
		hstr(h, "closure")
		hstr(h, v.Defn.Id)
		summaryAtoms(v.Args, env, h)
	case *DataAlloc:
		hstr(h, "data")
		hstr(h, v.Con)
		summaryAtoms(v.Args, env, h)
	}
}

func summaryAtoms(args []Atom, env alphaEnv, h hasher) {
	for _, a := range args {
		summaryAtom(a, env, h)
	}
}

func summaryAtom(a Atom, env alphaEnv, h hasher) {
	switch v := a.(type) {
	case *Temp:
		if i, ok := env[v]; ok {
			hstr(h, "t"+strconv.Itoa(i))
		} else {
			// free temps cannot correspond across blocks
			hstr(h, "f"+v.Repr())
		}
	case *WordConst:
		hstr(h, "w"+strconv.FormatInt(v.Value, 10))
	case *FlagConst:
		hstr(h, "b"+v.Repr())
	case *Global:
		hstr(h, "g"+v.Defn.Name())
	}
}

// -----------------------------------------------------------------------------

// AlphaBlocks tests whether two blocks are alpha-equivalent: same parameter
// count and bodies equal under the bijection induced by corresponding
// parameter positions.
func AlphaBlocks(a, b *Block) bool {
	if len(a.Params) != len(b.Params) {
		return false
	}

	enva := make(alphaEnv)
	enva.bind(a.Params)
	envb := make(alphaEnv)
	envb.bind(b.Params)
	return alphaCode(a.Code, enva, b.Code, envb)
}

func alphaCode(a Code, enva alphaEnv, b Code, envb alphaEnv) bool {
	switch va := a.(type) {
	case *Bind:
		vb, ok := b.(*Bind)
		if !ok || len(va.Vars) != len(vb.Vars) || !alphaTail(va.Tail, enva, vb.Tail, envb) {
			return false
		}

		enva.bind(va.Vars)
		envb.bind(vb.Vars)
		return alphaCode(va.Rest, enva, vb.Rest, envb)
	case *Done:
		vb, ok := b.(*Done)
		return ok && alphaTail(va.Tail, enva, vb.Tail, envb)
	case *If:
		vb, ok := b.(*If)
		return ok && alphaAtom(va.Cond, enva, vb.Cond, envb) &&
			alphaCode(va.Then, enva, vb.Then, envb) &&
			alphaCode(va.Else, enva, vb.Else, envb)
	case *Case:
		vb, ok := b.(*Case)
		if !ok || len(va.Alts) != len(vb.Alts) || !alphaAtom(va.Scrut, enva, vb.Scrut, envb) {
			return false
		}

		for i, alt := range va.Alts {
			if alt.Con != vb.Alts[i].Con || !alphaCode(alt.Body, enva, vb.Alts[i].Body, envb) {
				return false
			}
		}

		if (va.Default == nil) != (vb.Default == nil) {
			return false
		}

		return va.Default == nil || alphaCode(va.Default, enva, vb.Default, envb)
	}

	return false
}

func alphaTail(a Tail, enva alphaEnv, b Tail, envb alphaEnv) bool {
	switch va := a.(type) {
	case *Return:
		vb, ok := b.(*Return)
		return ok && alphaAtoms(va.Args, enva, vb.Args, envb)
	case *BlockCall:
		vb, ok := b.(*BlockCall)
		return ok && va.Target == vb.Target && alphaAtoms(va.Args, enva, vb.Args, envb)
	case *Enter:
		vb, ok := b.(*Enter)
		return ok && alphaAtom(va.Fun, enva, vb.Fun, envb) && alphaAtoms(va.Args, enva, vb.Args, envb)
	case *PrimCall:
		vb, ok := b.(*PrimCall)
		return ok && va.Prim == vb.Prim && alphaAtoms(va.Args, enva, vb.Args, envb)
	case *ClosAlloc:
		vb, ok := b.(*ClosAlloc)
		return ok && va.Defn == vb.Defn && alphaAtoms(va.Args, enva, vb.Args, envb)
	case *DataAlloc:
		vb, ok := b.(*DataAlloc)
		return ok && va.Con == vb.Con && alphaAtoms(va.Args, enva, vb.Args, envb)
	}

	return false
}

func alphaAtoms(a []Atom, enva alphaEnv, b []Atom, envb alphaEnv) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if !alphaAtom(a[i], enva, b[i], envb) {
			return false
		}
	}

	return true
}

func alphaAtom(a Atom, enva alphaEnv, b Atom, envb alphaEnv) bool {
	switch va := a.(type) {
	case *Temp:
		vb, ok := b.(*Temp)
		if !ok {
			return false
		}

		ia, boundA := enva[va]
		ib, boundB := envb[vb]
		if boundA != boundB {
			return false
		}

		if boundA {
			return ia == ib
		}

		return va == vb
	case *WordConst:
		vb, ok := b.(*WordConst)
		return ok && va.Value == vb.Value
	case *FlagConst:
		vb, ok := b.(*FlagConst)
		return ok && va.Value == vb.Value
	case *Global:
		vb, ok := b.(*Global)
		return ok && va.Defn == vb.Defn
	}

	return false
}
