package opt

import "milc/mil"

// dedup finds blocks that are structurally identical up to renaming of their
// binders and redirects every call so that only one representative remains
// reachable.  Candidates are bucketed by their alpha-invariant summaries;
// only blocks in the same bucket are compared in full.  Equivalence is
// checked block-at-a-time, so families of blocks that become identical only
// once their callees are merged converge over successive rounds.
func (ctx *Context) dedup() {
	buckets := make(map[uint64][]*mil.Block)
	replace := make(map[*mil.Block]*mil.Block)

	for _, b := range ctx.Prog.Blocks() {
		if !mil.Reachable(b) {
			continue
		}

		sum := b.Summary()
		found := false

		for _, o := range buckets[sum] {
			if schemesAlphaEquiv(o, b) && mil.AlphaBlocks(o, b) {
				// an entry block keeps its identity even when a duplicate
				// exists
				if !ctx.isEntry(b) {
					replace[b] = o
					ctx.note("deduplicated %s into %s", b.Name(), o.Name())
				}

				found = true
				break
			}
		}

		if !found {
			buckets[sum] = append(buckets[sum], b)
		}
	}

	if len(replace) == 0 {
		return
	}

	resolve := func(b *mil.Block) *mil.Block {
		for replace[b] != nil {
			b = replace[b]
		}

		return b
	}

	for _, d := range ctx.Prog.Defns {
		if !mil.Reachable(d) {
			continue
		}

		switch v := d.(type) {
		case *mil.Block:
			redirectCalls(v.Code, resolve)
		case *mil.ClosureDefn:
			redirectTail(v.Tail, resolve)
		case *mil.TopLevel:
			redirectTail(v.Tail, resolve)
		}
	}
}

// schemesAlphaEquiv guards deduplication on type agreement: merging two
// blocks whose bodies match but whose schemes differ would invalidate the
// instances recorded at their call sites.
func schemesAlphaEquiv(a, b *mil.Block) bool {
	if a.Declared == nil || b.Declared == nil {
		return a.Declared == b.Declared
	}

	return a.Declared.AlphaEquiv(b.Declared)
}

func redirectCalls(c mil.Code, resolve func(*mil.Block) *mil.Block) {
	switch v := c.(type) {
	case *mil.Bind:
		redirectTail(v.Tail, resolve)
		redirectCalls(v.Rest, resolve)
	case *mil.Done:
		redirectTail(v.Tail, resolve)
	case *mil.If:
		redirectCalls(v.Then, resolve)
		redirectCalls(v.Else, resolve)
	case *mil.Case:
		for _, alt := range v.Alts {
			redirectCalls(alt.Body, resolve)
		}

		if v.Default != nil {
			redirectCalls(v.Default, resolve)
		}
	}
}

func redirectTail(t mil.Tail, resolve func(*mil.Block) *mil.Block) {
	if bc, ok := t.(*mil.BlockCall); ok {
		bc.Target = resolve(bc.Target)
	}
}
