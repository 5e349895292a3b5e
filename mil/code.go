package mil

import (
	"fmt"
	"strings"
)

// Code is the body language of a block: a sequence of bindings terminated by
// a tail or by a branching form whose arms are themselves code.  Every temp
// is bound before use; each rewrite in the pipeline preserves this.
type Code interface {
	code()
}

// -----------------------------------------------------------------------------

// Bind evaluates a tail and binds its results before continuing with the
// rest of the sequence: `vars <- tail; rest`.
type Bind struct {
	Vars []*Temp
	Tail Tail
	Rest Code
}

func (b *Bind) code() {}

// -----------------------------------------------------------------------------

// Done terminates a code sequence with a tail whose results become the
// block's results.
type Done struct {
	Tail Tail
}

func (d *Done) code() {}

// -----------------------------------------------------------------------------

// If dispatches on a flag atom.
type If struct {
	Cond Atom
	Then Code
	Else Code
}

func (i *If) code() {}

// -----------------------------------------------------------------------------

// Alt is a single alternative of a Case, selected when the scrutinee carries
// the named constructor.
type Alt struct {
	Con  string
	Tag  int
	Body Code
}

// Case dispatches on the constructor tag of a data value.  Default may be
// nil when the alternatives are exhaustive.
type Case struct {
	Scrut   Atom
	Alts    []*Alt
	Default Code
}

func (c *Case) code() {}

// -----------------------------------------------------------------------------

// CopyCode returns a structural copy of c with every bound temp replaced by
// a fresh one and the substitution s applied to free atoms.  This is the
// renaming step that keeps temps unique when code is spliced into another
// definition.
func CopyCode(c Code, s *TempSubst) Code {
	switch v := c.(type) {
	case *Bind:
		nvars := MakeTemps(len(v.Vars))
		for i, old := range v.Vars {
			nvars[i].Type = old.Type
		}

		ns := s
		for i, old := range v.Vars {
			ns = ns.Bind(old, nvars[i])
		}

		return &Bind{Vars: nvars, Tail: ApplyTail(v.Tail, s), Rest: CopyCode(v.Rest, ns)}
	case *Done:
		return &Done{Tail: ApplyTail(v.Tail, s)}
	case *If:
		return &If{Cond: s.ApplyAtom(v.Cond), Then: CopyCode(v.Then, s), Else: CopyCode(v.Else, s)}
	case *Case:
		nalts := make([]*Alt, len(v.Alts))
		for i, alt := range v.Alts {
			nalts[i] = &Alt{Con: alt.Con, Tag: alt.Tag, Body: CopyCode(alt.Body, s)}
		}

		var ndef Code
		if v.Default != nil {
			ndef = CopyCode(v.Default, s)
		}

		return &Case{Scrut: s.ApplyAtom(v.Scrut), Alts: nalts, Default: ndef}
	}

	return c
}

// FreeVars appends the temps read by c (and not bound within it) to acc.
func FreeVars(c Code, acc map[*Temp]bool) map[*Temp]bool {
	if acc == nil {
		acc = make(map[*Temp]bool)
	}

	bound := make(map[*Temp]bool)
	freeVars(c, bound, acc)
	return acc
}

func freeVars(c Code, bound, acc map[*Temp]bool) {
	use := func(args []Atom) {
		for _, a := range args {
			if t, ok := a.(*Temp); ok && !bound[t] {
				acc[t] = true
			}
		}
	}

	switch v := c.(type) {
	case *Bind:
		use(TailArgs(v.Tail))
		for _, t := range v.Vars {
			bound[t] = true
		}

		freeVars(v.Rest, bound, acc)
	case *Done:
		use(TailArgs(v.Tail))
	case *If:
		use([]Atom{v.Cond})
		freeVars(v.Then, bound, acc)
		freeVars(v.Else, bound, acc)
	case *Case:
		use([]Atom{v.Scrut})
		for _, alt := range v.Alts {
			freeVars(alt.Body, bound, acc)
		}

		if v.Default != nil {
			freeVars(v.Default, bound, acc)
		}
	}
}

// IsDone returns the tail of a code sequence that consists of a single Done,
// or nil otherwise.
func IsDone(c Code) Tail {
	if d, ok := c.(*Done); ok {
		return d.Tail
	}

	return nil
}

// PrefixInlineLength measures a code sequence for prefix inlining: the
// number of binding steps before a terminating Done.  It returns 0 when the
// sequence ends in a branch, which prefix inlining cannot splice.
func PrefixInlineLength(c Code) int {
	n := 1
	for {
		switch v := c.(type) {
		case *Bind:
			n++
			c = v.Rest
		case *Done:
			return n
		default:
			return 0
		}
	}
}

// SuffixInlineLength measures a code sequence for suffix inlining.  Branches
// make a sequence unsuitable for the size-based rule and yield 0.
func SuffixInlineLength(c Code) int {
	n := 1
	for {
		switch v := c.(type) {
		case *Bind:
			n++
			c = v.Rest
		case *Done:
			return n
		default:
			return 0
		}
	}
}

// -----------------------------------------------------------------------------

// DumpCode renders a code sequence in MIL surface syntax for trace output.
func DumpCode(c Code, indent string, sb *strings.Builder) {
	switch v := c.(type) {
	case *Bind:
		names := make([]string, len(v.Vars))
		for i, t := range v.Vars {
			names[i] = t.Repr()
		}

		fmt.Fprintf(sb, "%s%s <- %s\n", indent, strings.Join(names, ", "), v.Tail.Repr())
		DumpCode(v.Rest, indent, sb)
	case *Done:
		fmt.Fprintf(sb, "%s%s\n", indent, v.Tail.Repr())
	case *If:
		fmt.Fprintf(sb, "%sif %s then\n", indent, v.Cond.Repr())
		DumpCode(v.Then, indent+"  ", sb)
		fmt.Fprintf(sb, "%selse\n", indent)
		DumpCode(v.Else, indent+"  ", sb)
	case *Case:
		fmt.Fprintf(sb, "%scase %s of\n", indent, v.Scrut.Repr())
		for _, alt := range v.Alts {
			fmt.Fprintf(sb, "%s  %s ->\n", indent, alt.Con)
			DumpCode(alt.Body, indent+"    ", sb)
		}

		if v.Default != nil {
			fmt.Fprintf(sb, "%s  _ ->\n", indent)
			DumpCode(v.Default, indent+"    ", sb)
		}
	}
}
