// Package generate turns a lowered, monomorphic program into LLVM function
// skeletons: one function per block with recorded non-tail callers, built
// from a basic-block graph.  Simple arithmetic primitives map to LLVM
// instructions directly; closures, data allocation, and dispatch hand off to
// declared runtime entry points, whose implementation belongs to the final
// emitter and runtime, not to this package.
package generate

import (
	"milc/mil"
	"milc/report"
	"milc/typing"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// Generator converts one program into an LLVM module.
type Generator struct {
	prog *mil.Program
	rep  *report.Reporter

	// inits are the top-level initializer definitions in program order, as
	// collected by lowering.
	inits []*mil.TopLevel

	mod *ir.Module

	// funcs maps each block needing a standalone function to its LLVM
	// declaration.
	funcs map[*mil.Block]*ir.Func

	// globals maps top-level value definitions to their module globals.
	globals map[mil.Defn]value.Value

	// closFuncs maps closure definitions to their entry functions.
	closFuncs map[*mil.ClosureDefn]*ir.Func

	// runtime entry points
	rtEnter     *ir.Func
	rtAllocClos *ir.Func
	rtAllocData *ir.Func
	rtTag       *ir.Func
	rtSel       *ir.Func
	rtHalt      *ir.Func
	rtLoop      *ir.Func
}

// NewGenerator creates a generator for a lowered program.
func NewGenerator(prog *mil.Program, rep *report.Reporter, inits []*mil.TopLevel) *Generator {
	return &Generator{
		prog:      prog,
		rep:       rep,
		inits:     inits,
		mod:       ir.NewModule(),
		funcs:     make(map[*mil.Block]*ir.Func),
		globals:   make(map[mil.Defn]value.Value),
		closFuncs: make(map[*mil.ClosureDefn]*ir.Func),
	}
}

// Generate builds the module: runtime declarations, globals, one function
// per multiply-called block, and the initialization function.
func (g *Generator) Generate() *ir.Module {
	g.declareRuntime()
	g.declareGlobals()

	g.prog.CountCalls()

	var targets []*mil.Block
	for _, b := range g.prog.Blocks() {
		if mil.Reachable(b) && b.NumberCalls > 0 {
			targets = append(targets, b)
		}
	}

	// declare every function before emitting any body so calls resolve
	for _, b := range targets {
		g.funcs[b] = g.declareFunc(b)
	}

	for _, b := range targets {
		g.genFunc(b, BuildCFG(b))
	}

	g.genInit()
	return g.mod
}

func (g *Generator) declareRuntime() {
	word := types.I64

	variadic := func(name string, params ...*ir.Param) *ir.Func {
		f := g.mod.NewFunc(name, word, params...)
		f.Sig.Variadic = true
		return f
	}

	g.rtEnter = variadic("mil_enter", ir.NewParam("f", word))
	g.rtAllocClos = variadic("mil_alloc_closure", ir.NewParam("code", word))
	g.rtAllocData = variadic("mil_alloc_data", ir.NewParam("tag", word))
	g.rtTag = g.mod.NewFunc("mil_tag", word, ir.NewParam("v", word))
	g.rtSel = g.mod.NewFunc("mil_sel", word, ir.NewParam("index", word), ir.NewParam("v", word))

	g.rtHalt = g.mod.NewFunc("mil_halt", types.Void, ir.NewParam("status", word))
	g.rtLoop = g.mod.NewFunc("mil_loop", types.Void)
}

// closureFunc emits the entry function of a closure definition on first
// reference: its parameters are the stored environment followed by the entry
// arguments, and its body is the closure's single tail.
func (g *Generator) closureFunc(cd *mil.ClosureDefn) *ir.Func {
	if f, ok := g.closFuncs[cd]; ok {
		return f
	}

	formals := append(append([]*mil.Temp{}, cd.Stored...), cd.Args...)

	params := make([]*ir.Param, len(formals))
	for i, t := range formals {
		typ := types.Type(types.I64)
		if t.Type != nil {
			typ = convType(t.Type)
		}

		params[i] = ir.NewParam(t.Repr(), typ)
	}

	f := g.mod.NewFunc(cd.Id, closureRng(cd), params...)
	g.closFuncs[cd] = f

	fg := &funcGen{g: g, fn: f, vals: make(map[*mil.Temp]value.Value)}
	for i, t := range formals {
		fg.vals[t] = f.Params[i]
	}

	fg.genTerm(f.NewBlock("entry"), cd.Tail)
	return f
}

// closureRng resolves the LLVM return type of a closure's entry function
// from its declared value scheme.
func closureRng(cd *mil.ClosureDefn) types.Type {
	if cd.Declared == nil {
		return types.I64
	}

	rng, ok := typing.Prune(cd.Declared.Body.Rng).(typing.TupleType)
	if !ok || len(rng) != 1 {
		return types.I64
	}

	fun, ok := typing.Prune(rng[0]).(*typing.FunType)
	if !ok {
		return types.I64
	}

	return convRng(fun.Rng)
}

func (g *Generator) declareGlobals() {
	for _, d := range g.prog.Defns {
		if !mil.Reachable(d) {
			continue
		}

		switch v := d.(type) {
		case *mil.TopLevel:
			g.globals[v] = g.mod.NewGlobalDef(v.Id, constant.NewInt(types.I64, 0))
		case *mil.Area:
			size := v.Size
			if size <= 0 {
				size = 1
			}

			arr := types.NewArray(uint64(size), types.I8)
			gv := g.mod.NewGlobalDef(v.Id, constant.NewZeroInitializer(arr))
			gv.Align = ir.Align(v.Alignment)
			g.globals[v] = gv
		case *mil.External:
			g.globals[v] = g.mod.NewGlobal(v.Id, types.I64)
		}
	}
}

func (g *Generator) declareFunc(b *mil.Block) *ir.Func {
	params := make([]*ir.Param, len(b.Params))
	for i, p := range b.Params {
		if p.Type == nil {
			report.ICE("parameter of %s reached generation untyped", b.Id)
		}

		params[i] = ir.NewParam(p.Repr(), convType(p.Type))
	}

	return g.mod.NewFunc(b.Id, convRng(g.blockRng(b)), params...)
}

func (g *Generator) blockRng(b *mil.Block) typing.Type {
	if b.Declared != nil {
		return b.Declared.Body.Rng
	}

	if b.Defining != nil {
		return b.Defining.Rng
	}

	report.ICE("block %s reached generation without a type", b.Id)
	return nil
}

// genInit emits the initialization function running every top-level
// initializer in program order.
func (g *Generator) genInit() {
	f := g.mod.NewFunc("mil_init", types.Void)
	fg := &funcGen{g: g, fn: f, vals: make(map[*mil.Temp]value.Value)}
	blk := f.NewBlock("entry")

	for _, tl := range g.inits {
		v := fg.genTail(blk, tl.Tail)
		if v != nil {
			blk.NewStore(v, g.globals[tl])
		}
	}

	blk.NewRet(nil)
}
