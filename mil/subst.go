package mil

// TempSubst is a finite mapping from temps to atoms used to rename values
// during inlining and specialization.  Substitutions are persistent
// association lists: extending one never mutates it, so a single body can be
// copied under several substitutions without interference.
type TempSubst struct {
	from *Temp
	to   Atom
	rest *TempSubst
}

// Bind returns s extended so that from maps to to.  The nil substitution is
// the valid empty substitution.
func (s *TempSubst) Bind(from *Temp, to Atom) *TempSubst {
	return &TempSubst{from: from, to: to, rest: s}
}

// Extend returns s extended pointwise so that each temp in from maps to the
// corresponding atom in to.
func (s *TempSubst) Extend(from []*Temp, to []Atom) *TempSubst {
	for i, t := range from {
		s = s.Bind(t, to[i])
	}

	return s
}

// Apply returns the atom that t maps to, or t itself if unmapped.
func (s *TempSubst) Apply(t *Temp) Atom {
	for ; s != nil; s = s.rest {
		if s.from == t {
			return s.to
		}
	}

	return t
}

// ApplyAtom applies the substitution to a single atom.
func (s *TempSubst) ApplyAtom(a Atom) Atom {
	if t, ok := a.(*Temp); ok {
		return s.Apply(t)
	}

	return a
}

// ApplyAtoms applies the substitution to an argument list, returning a new
// list.
func (s *TempSubst) ApplyAtoms(args []Atom) []Atom {
	nargs := make([]Atom, len(args))
	for i, a := range args {
		nargs[i] = s.ApplyAtom(a)
	}

	return nargs
}
