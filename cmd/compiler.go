package cmd

import (
	"milc/depm"
	"milc/generate"
	"milc/lower"
	"milc/mil"
	"milc/mono"
	"milc/opt"
	"milc/report"
	"milc/walk"

	"github.com/llir/llvm/ir"
)

// Compiler sequences the compilation phases over one input program: the
// frontend hands it a MIL program, and it hands back an LLVM module ready
// for the external emitter.
type Compiler struct {
	// profile is the build profile of the current compilation.
	profile *BuildProfile

	// rep accumulates the diagnostics and trace of the run.
	rep *report.Reporter
}

// NewCompiler creates a new compiler for the given build profile.
func NewCompiler(profile *BuildProfile) *Compiler {
	return &Compiler{
		profile: profile,
		rep:     report.NewReporter(profile.logLevel()),
	}
}

// Reporter returns the reporter of this compilation so that frontends can
// accumulate their diagnostics on it.
func (c *Compiler) Reporter() *report.Reporter {
	return c.rep
}

// Compile runs the pipeline over prog: dependency analysis, type checking,
// optimization, specialization, lowering, and generation.  It returns nil if
// any phase reported errors.
func (c *Compiler) Compile(prog *mil.Program) *ir.Module {
	if !walk.Check(prog, depm.Analyze(prog), c.rep) {
		return nil
	}

	if !c.profile.NoOpt {
		limits := opt.DefaultLimits()
		if c.profile.MaxRounds > 0 {
			limits.MaxRounds = c.profile.MaxRounds
		}

		opt.Run(prog, c.rep, limits)

		// blocks derived during optimization carry no schemes until they
		// are checked again
		if !walk.Check(prog, depm.Analyze(prog), c.rep) {
			return nil
		}
	}

	mprog := c.specialize(prog)
	if mprog == nil || c.rep.AnyErrors() {
		return nil
	}

	inits, ok := c.lowerProgram(mprog)
	if !ok || c.rep.AnyErrors() {
		return nil
	}

	return generate.NewGenerator(mprog, c.rep, inits).Generate()
}

// specialize monomorphizes prog, catching the failure raised for a
// polymorphic entry point.
func (c *Compiler) specialize(prog *mil.Program) *mil.Program {
	defer report.CatchFailure(c.rep)
	return mono.Specialize(prog, c.rep)
}

// lowerProgram rewrites mprog to machine representation, catching the
// positioned failures raised for unsizeable or misaligned areas.
func (c *Compiler) lowerProgram(mprog *mil.Program) (inits []*mil.TopLevel, ok bool) {
	defer report.CatchFailure(c.rep)

	lw := lower.Lower(mprog, c.rep)
	return lw.Inits, true
}
