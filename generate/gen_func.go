package generate

import (
	"milc/mil"
	"milc/report"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// funcGen carries the state of one function's emission.  Temps are in SSA
// form already (each binds exactly once per function), so a single value
// table per function suffices.
type funcGen struct {
	g    *Generator
	fn   *ir.Func
	vals map[*mil.Temp]value.Value
}

func (g *Generator) genFunc(b *mil.Block, cfg *CFG) {
	f := g.funcs[b]
	fg := &funcGen{g: g, fn: f, vals: make(map[*mil.Temp]value.Value)}

	for i, p := range cfg.Entry.Params {
		fg.vals[p] = f.Params[i]
	}

	blocks := make(map[*Node]*ir.Block, len(cfg.Nodes))
	for _, n := range cfg.Nodes {
		blocks[n] = f.NewBlock(n.Label)
	}

	// internal nodes receive their parameters through phis, filled in once
	// every predecessor has been emitted
	phis := make(map[*Node][]*ir.InstPhi)
	for _, n := range cfg.Nodes {
		if n == cfg.Entry || len(n.Params) == 0 {
			continue
		}

		blk := blocks[n]
		for _, p := range n.Params {
			phi := blk.NewPhi()
			phi.Typ = convType(p.Type)
			fg.vals[p] = phi
			phis[n] = append(phis[n], phi)
		}
	}

	for _, n := range cfg.Nodes {
		fg.genNode(blocks[n], n, blocks)
	}

	for _, n := range cfg.Nodes {
		for _, e := range n.Incoming {
			for i, phi := range phis[n] {
				phi.Incs = append(phi.Incs, ir.NewIncoming(fg.atom(blocks[e.From], e.Args[i]), blocks[e.From]))
			}
		}
	}
}

func (fg *funcGen) genNode(blk *ir.Block, n *Node, blocks map[*Node]*ir.Block) {
	for _, bind := range n.Binds {
		fg.genBind(blk, bind)
	}

	if n.Term == nil {
		blk.NewBr(blocks[n.Succs[0]])
		return
	}

	switch t := n.Term.(type) {
	case *mil.Done:
		fg.genTerm(blk, t.Tail)
	case *mil.If:
		blk.NewCondBr(fg.atom(blk, t.Cond), blocks[n.Succs[0]], blocks[n.Succs[1]])
	case *mil.Case:
		tag := blk.NewCall(fg.g.rtTag, fg.atom(blk, t.Scrut))

		cases := make([]*ir.Case, len(t.Alts))
		for i, alt := range t.Alts {
			cases[i] = ir.NewCase(constant.NewInt(types.I64, int64(alt.Tag)), blocks[n.Succs[i]])
		}

		def := blocks[n.Succs[len(n.Succs)-1]]
		if len(n.Succs) == len(t.Alts) {
			// no default arm: an unmatched tag is unreachable
			trap := fg.fn.NewBlock("")
			trap.NewUnreachable()
			def = trap
		}

		blk.NewSwitch(tag, def, cases...)
	}
}

func (fg *funcGen) genBind(blk *ir.Block, bind *mil.Bind) {
	// a returned atom list binds directly, no instruction needed
	if ret, ok := bind.Tail.(*mil.Return); ok && len(ret.Args) == len(bind.Vars) {
		for i, v := range bind.Vars {
			fg.vals[v] = fg.atom(blk, ret.Args[i])
		}

		return
	}

	v := fg.genTail(blk, bind.Tail)

	switch len(bind.Vars) {
	case 0:
	case 1:
		fg.vals[bind.Vars[0]] = v
	default:
		for i, bv := range bind.Vars {
			fg.vals[bv] = blk.NewExtractValue(v, uint64(i))
		}
	}
}

// genTerm ends a block with the value of a tail.
func (fg *funcGen) genTerm(blk *ir.Block, t mil.Tail) {
	switch v := t.(type) {
	case *mil.Return:
		switch len(v.Args) {
		case 0:
			blk.NewRet(nil)
		case 1:
			blk.NewRet(fg.atom(blk, v.Args[0]))
		default:
			st, ok := fg.fn.Sig.RetType.(*types.StructType)
			if !ok {
				report.ICE("multi-result return from %s without a struct return type", fg.fn.Name())
			}

			var agg value.Value = constant.NewUndef(st)
			for i, a := range v.Args {
				agg = blk.NewInsertValue(agg, fg.atom(blk, a), uint64(i))
			}

			blk.NewRet(agg)
		}
	case *mil.PrimCall:
		switch v.Prim {
		case mil.PrimHalt:
			blk.NewCall(fg.g.rtHalt, fg.atoms(blk, v.Args)...)
			blk.NewUnreachable()
		case mil.PrimLoop:
			blk.NewCall(fg.g.rtLoop)
			blk.NewUnreachable()
		default:
			fg.ret(blk, fg.genTail(blk, t))
		}
	default:
		fg.ret(blk, fg.genTail(blk, t))
	}
}

func (fg *funcGen) ret(blk *ir.Block, v value.Value) {
	if types.Equal(fg.fn.Sig.RetType, types.Void) {
		blk.NewRet(nil)
		return
	}

	blk.NewRet(v)
}

// genTail emits the value-producing instruction of a tail.
func (fg *funcGen) genTail(blk *ir.Block, t mil.Tail) value.Value {
	switch v := t.(type) {
	case *mil.Return:
		if len(v.Args) == 1 {
			return fg.atom(blk, v.Args[0])
		}

		return nil
	case *mil.BlockCall:
		callee := fg.g.funcs[v.Target]
		if callee == nil {
			report.ICE("call to %s, which has no function", v.Target.Id)
		}

		return blk.NewCall(callee, fg.atoms(blk, v.Args)...)
	case *mil.Enter:
		args := append([]value.Value{fg.atom(blk, v.Fun)}, fg.atoms(blk, v.Args)...)
		return blk.NewCall(fg.g.rtEnter, args...)
	case *mil.PrimCall:
		return fg.genPrim(blk, v)
	case *mil.ClosAlloc:
		code := fg.g.closureFunc(v.Defn)
		args := append([]value.Value{blk.NewPtrToInt(code, types.I64)}, fg.atoms(blk, v.Args)...)
		return blk.NewCall(fg.g.rtAllocClos, args...)
	case *mil.DataAlloc:
		args := append([]value.Value{constant.NewInt(types.I64, int64(v.Tag))}, fg.atoms(blk, v.Args)...)
		return blk.NewCall(fg.g.rtAllocData, args...)
	}

	report.ICE("tail %s cannot produce a value", t.Repr())
	return nil
}

func (fg *funcGen) genPrim(blk *ir.Block, pc *mil.PrimCall) value.Value {
	args := fg.atoms(blk, pc.Args)

	switch pc.Prim {
	case mil.PrimAdd:
		return blk.NewAdd(args[0], args[1])
	case mil.PrimSub:
		return blk.NewSub(args[0], args[1])
	case mil.PrimMul:
		return blk.NewMul(args[0], args[1])
	case mil.PrimDiv:
		return blk.NewSDiv(args[0], args[1])
	case mil.PrimRem:
		return blk.NewSRem(args[0], args[1])
	case mil.PrimEq:
		return blk.NewICmp(enum.IPredEQ, args[0], args[1])
	case mil.PrimLt:
		return blk.NewICmp(enum.IPredSLT, args[0], args[1])
	case mil.PrimLe:
		return blk.NewICmp(enum.IPredSLE, args[0], args[1])
	case mil.PrimNot:
		return blk.NewXor(args[0], constant.NewInt(types.I1, 1))
	case mil.PrimSel:
		return blk.NewCall(fg.g.rtSel, args...)
	}

	report.ICE("primitive %s has no instruction mapping", pc.Prim.Name)
	return nil
}

func (fg *funcGen) atoms(blk *ir.Block, args []mil.Atom) []value.Value {
	vals := make([]value.Value, len(args))
	for i, a := range args {
		vals[i] = fg.atom(blk, a)
	}

	return vals
}

func (fg *funcGen) atom(blk *ir.Block, a mil.Atom) value.Value {
	switch v := a.(type) {
	case *mil.Temp:
		val, ok := fg.vals[v]
		if !ok {
			report.ICE("temp %s used before emission in %s", v.Repr(), fg.fn.Name())
		}

		return val
	case *mil.WordConst:
		return constant.NewInt(types.I64, v.Value)
	case *mil.FlagConst:
		return constant.NewBool(v.Value)
	case *mil.Global:
		return fg.global(blk, v.Defn)
	}

	report.ICE("atom %s has no value form", a.Repr())
	return nil
}

func (fg *funcGen) global(blk *ir.Block, d mil.Defn) value.Value {
	gv, ok := fg.g.globals[d]
	if !ok {
		report.ICE("global %s was never declared", d.Name())
	}

	switch d.(type) {
	case *mil.TopLevel, *mil.External:
		return blk.NewLoad(types.I64, gv)
	case *mil.Area:
		return blk.NewBitCast(gv, types.NewPointer(types.I8))
	}

	return gv
}
