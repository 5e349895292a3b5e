// Package opt implements the whole-program optimization pipeline: return
// analysis, loop detection, inlining, flow-based simplification, structural
// deduplication, dead argument elimination, and derived-block variants.  All
// passes are monotone rewrites that decline rather than fail, iterated until
// a full round changes nothing.
package opt

import (
	"milc/depm"
	"milc/mil"
	"milc/report"
)

// Limits collects the tuning constants of the optimizer.
type Limits struct {
	// InlineLines is the maximum body length eligible for size-based
	// inlining.
	InlineLines int

	// SmallSteps is the maximum number of bindings a "small" block may
	// perform before reaching its result.
	SmallSteps int

	// MaxRounds bounds the number of full pipeline rounds.
	MaxRounds int
}

// DefaultLimits returns the standard tuning constants.
func DefaultLimits() Limits {
	return Limits{InlineLines: 6, SmallSteps: 4, MaxRounds: 100}
}

// Context is the pass-scoped state threaded through every transformation in
// one optimizer run.  The derived-block cache and the usage tables are
// append-only during a run, which is what makes re-querying them safe.
type Context struct {
	Prog   *mil.Program
	Graph  *depm.Graph
	Rep    *report.Reporter
	Limits Limits

	// occurs counts program-wide call references per block, recomputed each
	// round.
	occurs map[*mil.Block]int

	// usage holds the used-argument bitmaps of the dead-argument analysis.
	usage map[mil.Defn]*usageInfo

	// derived caches the variants derived from each block so that each
	// requested variant is synthesized at most once.
	derived map[*mil.Block][]*variant

	// entry marks the definitions callable from outside the program, whose
	// parameter lists and identities must be preserved.
	entry map[mil.Defn]bool

	// changed records whether any pass in the current round made progress.
	changed bool
}

// NewContext creates an optimizer context for the given program.
func NewContext(prog *mil.Program, rep *report.Reporter, limits Limits) *Context {
	entry := make(map[mil.Defn]bool, len(prog.Entrypoints))
	for _, d := range prog.Entrypoints {
		entry[d] = true
	}

	return &Context{
		Prog:    prog,
		Rep:     rep,
		Limits:  limits,
		occurs:  make(map[*mil.Block]int),
		usage:   make(map[mil.Defn]*usageInfo),
		derived: make(map[*mil.Block][]*variant),
		entry:   entry,
	}
}

// isEntry reports whether d is externally callable.
func (ctx *Context) isEntry(d mil.Defn) bool {
	return ctx.entry[d]
}

// note records a change in the current round alongside a trace message.
func (ctx *Context) note(msg string, args ...interface{}) {
	ctx.changed = true
	ctx.Rep.Tracef(msg, args...)
}

// computeOccurs recounts the call references to every block.
func (ctx *Context) computeOccurs() {
	ctx.occurs = make(map[*mil.Block]int)

	for _, d := range ctx.Prog.Defns {
		if !mil.Reachable(d) {
			continue
		}

		switch v := d.(type) {
		case *mil.Block:
			ctx.countOccurs(v.Code)
		case *mil.ClosureDefn:
			if bc, ok := v.Tail.(*mil.BlockCall); ok {
				ctx.occurs[bc.Target]++
			}
		case *mil.TopLevel:
			if bc, ok := v.Tail.(*mil.BlockCall); ok {
				ctx.occurs[bc.Target]++
			}
		}
	}
}

func (ctx *Context) countOccurs(c mil.Code) {
	count := func(t mil.Tail) {
		if bc, ok := t.(*mil.BlockCall); ok {
			ctx.occurs[bc.Target]++
		}
	}

	switch v := c.(type) {
	case *mil.Bind:
		count(v.Tail)
		ctx.countOccurs(v.Rest)
	case *mil.Done:
		count(v.Tail)
	case *mil.If:
		ctx.countOccurs(v.Then)
		ctx.countOccurs(v.Else)
	case *mil.Case:
		for _, alt := range v.Alts {
			ctx.countOccurs(alt.Body)
		}

		if v.Default != nil {
			ctx.countOccurs(v.Default)
		}
	}
}

// sameAtom compares atoms for the purposes of duplicate-argument detection
// and known-constant collection: temps by identity, constants by value,
// globals by referenced definition.
func sameAtom(a, b mil.Atom) bool {
	switch va := a.(type) {
	case *mil.Temp:
		return a == b
	case *mil.WordConst:
		vb, ok := b.(*mil.WordConst)
		return ok && va.Value == vb.Value
	case *mil.FlagConst:
		vb, ok := b.(*mil.FlagConst)
		return ok && va.Value == vb.Value
	case *mil.Global:
		vb, ok := b.(*mil.Global)
		return ok && va.Defn == vb.Defn
	}

	return false
}
