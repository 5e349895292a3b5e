package opt

import (
	"milc/depm"
	"milc/mil"
	"milc/report"
)

// Run executes the optimization pipeline over the program until a complete
// round makes no change, or the round limit is hit.  Every round starts from
// a fresh reachability shake and call-graph analysis so that blocks created
// by a previous round are classified before any pass consults them.
func Run(prog *mil.Program, rep *report.Reporter, limits Limits) {
	ctx := NewContext(prog, rep, limits)

	for round := 1; round <= limits.MaxRounds; round++ {
		ctx.changed = false

		prog.Shake()
		ctx.Graph = depm.Analyze(prog)
		ctx.computeOccurs()
		ctx.returnAnalysis()

		ctx.detectLoops()
		ctx.inlining()
		ctx.flow()
		ctx.dedup()
		ctx.deadArgs()
		ctx.collect()

		if !ctx.changed {
			rep.Tracef("optimizer converged after %d round(s)", round)
			break
		}
	}

	prog.Shake()
}
