package generate

import (
	"fmt"

	"milc/mil"
)

// Node is one basic block in a lowered block's control-flow graph.  Binds
// holds the straight-line bindings in order; Term is the Done, If, or Case
// that ends the node, with Succs giving the successor nodes in arm order.
// A node created for a private tail-called block carries that block's
// parameters, bound by the arguments recorded on its incoming edges.
type Node struct {
	Label  string
	Params []*mil.Temp
	Binds  []*mil.Bind
	Term   mil.Code
	Succs  []*Node

	// Incoming records, per predecessor, the argument atoms flowing into
	// Params along that edge.
	Incoming []Edge
}

// Edge is one incoming jump: the predecessor node and the atoms it passes.
type Edge struct {
	From *Node
	Args []mil.Atom
}

// CFG is the basic-block graph of one standalone function.
type CFG struct {
	Block *mil.Block
	Entry *Node
	Nodes []*Node
}

// cfgBuilder tracks the state of one graph construction.
type cfgBuilder struct {
	cfg *CFG

	// internal maps a private tail-called block to the node built for it,
	// so that several jumps to the same block share one node.
	internal map[*mil.Block]*Node

	count int
}

// BuildCFG constructs the control-flow graph of a block that needs a
// standalone function.  The entry node receives fresh parameter temps so the
// graph never aliases binders with inlined copies of the same block
// elsewhere.
func BuildCFG(b *mil.Block) *CFG {
	bld := &cfgBuilder{
		cfg:      &CFG{Block: b},
		internal: make(map[*mil.Block]*Node),
	}

	params := make([]*mil.Temp, len(b.Params))
	var s *mil.TempSubst

	for i, p := range b.Params {
		np := mil.NewTemp()
		np.Type = p.Type
		params[i] = np
		s = s.Bind(p, np)
	}

	entry := bld.node("entry")
	entry.Params = params
	bld.fill(entry, mil.CopyCode(b.Code, s))

	bld.cfg.Entry = entry
	return bld.cfg
}

func (bld *cfgBuilder) node(label string) *Node {
	if label == "" {
		bld.count++
		label = fmt.Sprintf("n%d", bld.count)
	}

	n := &Node{Label: label}
	bld.cfg.Nodes = append(bld.cfg.Nodes, n)
	return n
}

// fill walks code into a node, splitting at branches and resolving private
// tail calls into internal nodes.
func (bld *cfgBuilder) fill(n *Node, c mil.Code) {
	for {
		switch v := c.(type) {
		case *mil.Bind:
			n.Binds = append(n.Binds, v)
			c = v.Rest
			continue
		case *mil.Done:
			// jumps to blocks without standalone functions continue inside
			// this graph
			if bc, ok := v.Tail.(*mil.BlockCall); ok && bc.Target.NumberCalls == 0 {
				t := bld.jump(bc.Target)
				n.Term = nil
				n.Succs = []*Node{t}
				t.Incoming = append(t.Incoming, Edge{From: n, Args: bc.Args})
				return
			}

			n.Term = v
			return
		case *mil.If:
			then := bld.node("")
			els := bld.node("")

			n.Term = &mil.If{Cond: v.Cond}
			n.Succs = []*Node{then, els}

			bld.fill(then, v.Then)
			bld.fill(els, v.Else)
			return
		case *mil.Case:
			term := &mil.Case{Scrut: v.Scrut, Alts: make([]*mil.Alt, len(v.Alts))}
			n.Term = term

			for i, alt := range v.Alts {
				arm := bld.node("")
				term.Alts[i] = &mil.Alt{Con: alt.Con, Tag: alt.Tag}
				n.Succs = append(n.Succs, arm)
				bld.fill(arm, alt.Body)
			}

			if v.Default != nil {
				def := bld.node("")
				n.Succs = append(n.Succs, def)
				bld.fill(def, v.Default)
			}

			return
		}

		return
	}
}

// jump returns the internal node for a private tail-called block, building
// it on first reference.
func (bld *cfgBuilder) jump(b *mil.Block) *Node {
	if n, ok := bld.internal[b]; ok {
		return n
	}

	n := bld.node(b.Id)
	bld.internal[b] = n

	params := make([]*mil.Temp, len(b.Params))
	var s *mil.TempSubst

	for i, p := range b.Params {
		np := mil.NewTemp()
		np.Type = p.Type
		params[i] = np
		s = s.Bind(p, np)
	}

	n.Params = params
	bld.fill(n, mil.CopyCode(b.Code, s))
	return n
}
