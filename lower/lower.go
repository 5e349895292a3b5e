// Package lower rewrites a monomorphic program into machine representation:
// every value becomes zero or more machine words (or flags and addresses),
// wide bit-vector constants are split into word limbs, unit values vanish,
// and the initializers of global definitions are collected into an explicit
// initialization sequence for the generator.
package lower

import (
	"math/big"

	"milc/mil"
	"milc/report"
	"milc/typing"
)

// WordSize is the width of a machine word in bits.
const WordSize = 64

// RepOf returns the machine representation of a checked type as a list of
// machine components.  Unit values have no representation at all; wide bit
// vectors are split into words.
func RepOf(t typing.Type) []typing.Type {
	switch v := typing.Prune(t).(type) {
	case typing.PrimType:
		if v == typing.PrimUnit {
			return nil
		}

		return []typing.Type{v}
	case typing.BitType:
		n := (int(v) + WordSize - 1) / WordSize
		reps := make([]typing.Type, n)
		for i := range reps {
			reps[i] = typing.PrimType(typing.PrimWord)
		}

		return reps
	case typing.TupleType:
		var reps []typing.Type
		for _, e := range v {
			reps = append(reps, RepOf(e)...)
		}

		return reps
	}

	return []typing.Type{typing.Prune(t)}
}

// exactDiv divides n by d, raising a positioned failure when the division
// leaves a remainder.
func exactDiv(n, d int64, pos *report.Position, what string) int64 {
	if d == 0 || n%d != 0 {
		panic(report.Raise(pos, "%s: %d is not divisible by %d", what, n, d))
	}

	return n / d
}

// ByteSize resolves the storage size of an area's type.  Unsupported types
// are a positioned failure, matching the area's declaration site.
func ByteSize(t typing.Type, pos *report.Position) int64 {
	switch v := typing.Prune(t).(type) {
	case typing.PrimType:
		switch v {
		case typing.PrimUnit:
			return 0
		case typing.PrimFlag:
			return 1
		default:
			return WordSize / 8
		}
	case typing.BitType:
		bits := int64(v)
		if bits == 0 {
			return 0
		}

		// stored bit vectors must fill whole bytes
		return exactDiv(bits, 8, pos, "stored bit vector width")
	case typing.TupleType:
		var size int64
		for _, e := range v {
			size += ByteSize(e, pos)
		}

		return size
	}

	panic(report.Raise(pos, "cannot resolve the byte size of %s", typing.Prune(t).Repr()))
}

// -----------------------------------------------------------------------------

// Lowerer rewrites one program to machine representation.
type Lowerer struct {
	prog *mil.Program
	rep  *report.Reporter

	// env maps each split temp to its word components.
	env map[*mil.Temp][]*mil.Temp

	// Inits collects the initializer tails of top-level values in program
	// order for the generator's init function.
	Inits []*mil.TopLevel
}

// Lower rewrites prog in place and returns the lowerer, which carries the
// collected initializers.
func Lower(prog *mil.Program, rep *report.Reporter) *Lowerer {
	lw := &Lowerer{
		prog: prog,
		rep:  rep,
		env:  make(map[*mil.Temp][]*mil.Temp),
	}

	for _, d := range prog.Defns {
		if !mil.Reachable(d) {
			continue
		}

		switch v := d.(type) {
		case *mil.Block:
			v.Params = lw.lowerTemps(v.Params)
			v.Code = lw.lowerCode(v.Code)
		case *mil.ClosureDefn:
			v.Stored = lw.lowerTemps(v.Stored)
			v.Args = lw.lowerTemps(v.Args)
			v.Tail = lw.lowerTail(v.Tail)
		case *mil.TopLevel:
			v.Tail = lw.lowerTail(v.Tail)
			lw.Inits = append(lw.Inits, v)
		case *mil.Area:
			v.Size = ByteSize(v.AreaType, v.Position)

			if v.Alignment > 0 {
				exactDiv(v.Size, v.Alignment, v.Position, "area size against its alignment")
			}
		}
	}

	return lw
}

// lowerTemps splices a temp list according to each temp's representation.
// Temps whose representation is a single unchanged component are kept.
func (lw *Lowerer) lowerTemps(ts []*mil.Temp) []*mil.Temp {
	var nts []*mil.Temp

	for _, t := range ts {
		if t.Type == nil {
			nts = append(nts, t)
			continue
		}

		reps := RepOf(t.Type)
		if len(reps) == 1 && typing.Equals(reps[0], t.Type) {
			nts = append(nts, t)
			continue
		}

		parts := make([]*mil.Temp, len(reps))
		for i, r := range reps {
			nt := mil.NewTemp()
			nt.Type = r
			parts[i] = nt
		}

		lw.env[t] = parts
		nts = append(nts, parts...)
	}

	return nts
}

func (lw *Lowerer) lowerCode(c mil.Code) mil.Code {
	switch v := c.(type) {
	case *mil.Bind:
		return &mil.Bind{
			Vars: lw.lowerTemps(v.Vars),
			Tail: lw.lowerTail(v.Tail),
			Rest: lw.lowerCode(v.Rest),
		}
	case *mil.Done:
		return &mil.Done{Tail: lw.lowerTail(v.Tail)}
	case *mil.If:
		cond := lw.lowerAtoms([]mil.Atom{v.Cond})
		if len(cond) != 1 {
			report.ICE("branch condition lowered to %d components", len(cond))
		}

		return &mil.If{Cond: cond[0], Then: lw.lowerCode(v.Then), Else: lw.lowerCode(v.Else)}
	case *mil.Case:
		scrut := lw.lowerAtoms([]mil.Atom{v.Scrut})
		if len(scrut) != 1 {
			report.ICE("case scrutinee lowered to %d components", len(scrut))
		}

		nc := &mil.Case{Scrut: scrut[0], Alts: make([]*mil.Alt, len(v.Alts))}
		for i, alt := range v.Alts {
			nc.Alts[i] = &mil.Alt{Con: alt.Con, Tag: alt.Tag, Body: lw.lowerCode(alt.Body)}
		}

		if v.Default != nil {
			nc.Default = lw.lowerCode(v.Default)
		}

		return nc
	}

	return c
}

func (lw *Lowerer) lowerTail(t mil.Tail) mil.Tail {
	switch v := t.(type) {
	case *mil.Return:
		return &mil.Return{Args: lw.lowerAtoms(v.Args)}
	case *mil.BlockCall:
		return &mil.BlockCall{Target: v.Target, Args: lw.lowerAtoms(v.Args), Inst: v.Inst}
	case *mil.Enter:
		fun := lw.lowerAtoms([]mil.Atom{v.Fun})
		if len(fun) != 1 {
			report.ICE("entered closure lowered to %d components", len(fun))
		}

		return &mil.Enter{Fun: fun[0], Args: lw.lowerAtoms(v.Args)}
	case *mil.PrimCall:
		return &mil.PrimCall{Prim: v.Prim, Args: lw.lowerAtoms(v.Args), Inst: v.Inst}
	case *mil.ClosAlloc:
		return &mil.ClosAlloc{Defn: v.Defn, Args: lw.lowerAtoms(v.Args)}
	case *mil.DataAlloc:
		return &mil.DataAlloc{Con: v.Con, Tag: v.Tag, Args: lw.lowerAtoms(v.Args), Inst: v.Inst}
	}

	return t
}

// lowerAtoms splices an argument list, expanding split temps into their
// components and wide constants into word limbs.
func (lw *Lowerer) lowerAtoms(args []mil.Atom) []mil.Atom {
	var nargs []mil.Atom

	for _, a := range args {
		switch v := a.(type) {
		case *mil.Temp:
			if parts, ok := lw.env[v]; ok {
				for _, p := range parts {
					nargs = append(nargs, p)
				}

				continue
			}

			if v.Type != nil && len(RepOf(v.Type)) == 0 {
				continue
			}

			nargs = append(nargs, v)
		case *mil.WordConst:
			nargs = append(nargs, splitConst(v)...)
		default:
			nargs = append(nargs, a)
		}
	}

	return nargs
}

// splitConst renders a constant at its machine representation: one word per
// limb, least significant first.
func splitConst(wc *mil.WordConst) []mil.Atom {
	word := typing.PrimType(typing.PrimWord)

	if wc.Type == nil {
		return []mil.Atom{wc}
	}

	reps := RepOf(wc.Type)
	switch len(reps) {
	case 0:
		return nil
	case 1:
		return []mil.Atom{&mil.WordConst{Value: wc.Value, Type: word}}
	}

	v := new(big.Int).SetUint64(uint64(wc.Value))
	mask := new(big.Int).SetUint64(^uint64(0))

	limbs := make([]mil.Atom, len(reps))
	for i := range reps {
		limb := new(big.Int).Rsh(v, uint(i*WordSize))
		limb.And(limb, mask)
		limbs[i] = &mil.WordConst{Value: int64(limb.Uint64()), Type: word}
	}

	return limbs
}
