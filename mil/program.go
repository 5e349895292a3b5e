package mil

import (
	"fmt"
	"strings"

	"milc/report"
)

// MILEnv is the import/export surface of a compilation unit: tables mapping
// external names onto definitions.  It is populated by the front end and
// consulted by the driver to locate entry points.
type MILEnv struct {
	Blocks    map[string]*Block
	Closures  map[string]*ClosureDefn
	TopLevels map[string]*TopLevel
	Areas     map[string]*Area
	Externals map[string]*External
}

// NewMILEnv creates an empty environment.
func NewMILEnv() *MILEnv {
	return &MILEnv{
		Blocks:    make(map[string]*Block),
		Closures:  make(map[string]*ClosureDefn),
		TopLevels: make(map[string]*TopLevel),
		Areas:     make(map[string]*Area),
		Externals: make(map[string]*External),
	}
}

// -----------------------------------------------------------------------------

// Program is the full set of definitions of one compilation unit plus its
// entry points and export table.
type Program struct {
	Defns       []Defn
	Entrypoints []Defn
	Exports     *MILEnv
}

// NewProgram creates an empty program.
func NewProgram() *Program {
	return &Program{Exports: NewMILEnv()}
}

// AddDefn appends a definition to the program.
func (p *Program) AddDefn(d Defn) {
	p.Defns = append(p.Defns, d)

	switch v := d.(type) {
	case *Block:
		p.Exports.Blocks[v.Id] = v
	case *ClosureDefn:
		p.Exports.Closures[v.Id] = v
	case *TopLevel:
		p.Exports.TopLevels[v.Id] = v
	case *Area:
		p.Exports.Areas[v.Id] = v
	case *External:
		p.Exports.Externals[v.Id] = v
	}
}

// AddEntrypoint marks a definition as an entry point of the unit.
func (p *Program) AddEntrypoint(d Defn) {
	p.Entrypoints = append(p.Entrypoints, d)
}

// Blocks returns the blocks of the program in definition order.
func (p *Program) Blocks() []*Block {
	var bs []*Block
	for _, d := range p.Defns {
		if b, ok := d.(*Block); ok {
			bs = append(bs, b)
		}
	}

	return bs
}

// -----------------------------------------------------------------------------

// Shake marks the definitions reachable from the entry points.  Unreachable
// definitions are kept (a definition is never deleted) but excluded from
// later phases and from emission.
func (p *Program) Shake() {
	for _, d := range p.Defns {
		setReachable(d, false)
	}

	var visit func(d Defn)
	visit = func(d Defn) {
		if isReachable(d) {
			return
		}

		setReachable(d, true)
		for _, dep := range Dependencies(d) {
			visit(dep)
		}
	}

	for _, e := range p.Entrypoints {
		visit(e)
	}
}

// Reachable reports whether a definition survived the last shake.
func Reachable(d Defn) bool {
	return isReachable(d)
}

func setReachable(d Defn, v bool) {
	switch t := d.(type) {
	case *Block:
		t.Reachable = v
	case *ClosureDefn:
		t.Reachable = v
	case *TopLevel:
		t.Reachable = v
	case *Area:
		t.Reachable = v
	case *External:
		t.Reachable = v
	}
}

func isReachable(d Defn) bool {
	switch t := d.(type) {
	case *Block:
		return t.Reachable
	case *ClosureDefn:
		return t.Reachable
	case *TopLevel:
		return t.Reachable
	case *Area:
		return t.Reachable
	case *External:
		return t.Reachable
	}

	return false
}

// -----------------------------------------------------------------------------

// CountCalls resets and recomputes the non-tail call counts of every block.
// A block call bound in the middle of a sequence is a genuine call; a block
// call in tail position is a jump.  Entry point blocks are counted as called
// so that they always receive functions.
func (p *Program) CountCalls() {
	for _, b := range p.Blocks() {
		b.NumberCalls = 0
	}

	for _, d := range p.Defns {
		if !isReachable(d) {
			continue
		}

		switch v := d.(type) {
		case *Block:
			countCodeCalls(v.Code)
		case *TopLevel:
			// a block call initializing a top level runs from init code
			if bc, ok := v.Tail.(*BlockCall); ok {
				bc.Target.NumberCalls++
			}
		}
	}

	for _, e := range p.Entrypoints {
		if b, ok := e.(*Block); ok {
			b.NumberCalls++
		}
	}
}

func countCodeCalls(c Code) {
	switch v := c.(type) {
	case *Bind:
		if bc, ok := v.Tail.(*BlockCall); ok {
			bc.Target.NumberCalls++
		}

		countCodeCalls(v.Rest)
	case *If:
		countCodeCalls(v.Then)
		countCodeCalls(v.Else)
	case *Case:
		for _, alt := range v.Alts {
			countCodeCalls(alt.Body)
		}

		if v.Default != nil {
			countCodeCalls(v.Default)
		}
	}
}

// -----------------------------------------------------------------------------

// Dump renders the whole program in MIL surface syntax for the trace stream.
func (p *Program) Dump() string {
	sb := &strings.Builder{}
	for _, d := range p.Defns {
		dumpDefn(d, sb)
	}

	return sb.String()
}

func dumpDefn(d Defn, sb *strings.Builder) {
	switch v := d.(type) {
	case *Block:
		if v.Declared != nil {
			fmt.Fprintf(sb, "%s :: %s\n", v.Id, v.Declared.Repr())
		}

		names := make([]string, len(v.Params))
		for i, t := range v.Params {
			names[i] = t.Repr()
		}

		fmt.Fprintf(sb, "%s[%s] =\n", v.Id, strings.Join(names, ", "))
		DumpCode(v.Code, "  ", sb)
	case *ClosureDefn:
		stored := make([]string, len(v.Stored))
		for i, t := range v.Stored {
			stored[i] = t.Repr()
		}

		args := make([]string, len(v.Args))
		for i, t := range v.Args {
			args[i] = t.Repr()
		}

		fmt.Fprintf(sb, "%s{%s} [%s] = %s\n", v.Id, strings.Join(stored, ", "), strings.Join(args, ", "), v.Tail.Repr())
	case *TopLevel:
		fmt.Fprintf(sb, "%s <- %s\n", v.Id, v.Tail.Repr())
	case *Area:
		fmt.Fprintf(sb, "%s <- area %d %s", v.Id, v.Alignment, v.AreaType.Repr())
		if v.Init != nil {
			fmt.Fprintf(sb, " %s", v.Init.Repr())
		}

		sb.WriteRune('\n')
	case *External:
		fmt.Fprintf(sb, "external %s :: %s\n", v.Id, v.Declared.Repr())
	}
}

// Validate checks the bound-before-use invariant for every reachable block,
// reporting violations as internal errors.  It is used by tests and by the
// driver in debug builds.
func (p *Program) Validate() error {
	for _, b := range p.Blocks() {
		bound := make(map[*Temp]bool)
		for _, t := range b.Params {
			bound[t] = true
		}

		if err := validateCode(b.Code, bound, b); err != nil {
			return err
		}
	}

	return nil
}

func validateCode(c Code, bound map[*Temp]bool, b *Block) error {
	check := func(args []Atom) error {
		for _, a := range args {
			if t, ok := a.(*Temp); ok && !bound[t] {
				return report.Raise(b.Position, "temp %s used before binding in block %s", t.Repr(), b.Id)
			}
		}

		return nil
	}

	switch v := c.(type) {
	case *Bind:
		if err := check(TailArgs(v.Tail)); err != nil {
			return err
		}

		for _, t := range v.Vars {
			bound[t] = true
		}

		return validateCode(v.Rest, bound, b)
	case *Done:
		return check(TailArgs(v.Tail))
	case *If:
		if err := check([]Atom{v.Cond}); err != nil {
			return err
		}

		if err := validateCode(v.Then, bound, b); err != nil {
			return err
		}

		return validateCode(v.Else, bound, b)
	case *Case:
		if err := check([]Atom{v.Scrut}); err != nil {
			return err
		}

		for _, alt := range v.Alts {
			if err := validateCode(alt.Body, bound, b); err != nil {
				return err
			}
		}

		if v.Default != nil {
			return validateCode(v.Default, bound, b)
		}
	}

	return nil
}
