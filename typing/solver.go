package typing

import (
	"milc/report"
)

// Solver is the local unification engine.  The middle end calls it per block
// with an expected type, receiving back either success or a positioned
// failure.  A solver owns its fresh type variable supply; one solver is used
// per compilation run.
type Solver struct {
	varCount int
}

// NewSolver creates a new type solver.
func NewSolver() *Solver {
	return &Solver{}
}

// NewTVar creates a fresh, undetermined type variable.
func (s *Solver) NewTVar(pos *report.Position) *TVar {
	s.varCount++
	return &TVar{ID: s.varCount, Pos: pos}
}

// FreshTypes returns a tuple of n fresh type variables.
func (s *Solver) FreshTypes(n int, pos *report.Position) TupleType {
	tt := make(TupleType, n)
	for i := range tt {
		tt[i] = s.NewTVar(pos)
	}

	return tt
}

// Unify asserts that two types are equivalent, returning a positioned
// failure on a mismatch.
func (s *Solver) Unify(lhs, rhs Type, pos *report.Position) error {
	lhs, rhs = Prune(lhs), Prune(rhs)

	if ltv, ok := lhs.(*TVar); ok {
		// double type variable case: identical variables are trivially
		// equal -- this check prevents infinite recursion in unify
		if ltv == rhs {
			return nil
		}

		return s.bind(ltv, rhs, pos)
	}

	if rtv, ok := rhs.(*TVar); ok {
		return s.bind(rtv, lhs, pos)
	}

	switch v := lhs.(type) {
	case PrimType:
		if rpt, ok := rhs.(PrimType); ok && v == rpt {
			return nil
		}
	case BitType:
		if rbt, ok := rhs.(BitType); ok && v == rbt {
			return nil
		}
	case TupleType:
		if rtt, ok := rhs.(TupleType); ok && len(v) == len(rtt) {
			for i, elem := range v {
				if err := s.Unify(elem, rtt[i], pos); err != nil {
					return err
				}
			}

			return nil
		}
	case *ConType:
		if rct, ok := rhs.(*ConType); ok && v.Name == rct.Name && len(v.Args) == len(rct.Args) {
			for i, arg := range v.Args {
				if err := s.Unify(arg, rct.Args[i], pos); err != nil {
					return err
				}
			}

			return nil
		}
	case *FunType:
		if rft, ok := rhs.(*FunType); ok {
			if err := s.Unify(v.Dom, rft.Dom, pos); err != nil {
				return err
			}

			return s.Unify(v.Rng, rft.Rng, pos)
		}
	}

	return report.Raise(pos, "type mismatch: `%s` v `%s`", lhs.Repr(), rhs.Repr())
}

// bind determines a type variable, performing the occurs check first.
func (s *Solver) bind(tv *TVar, t Type, pos *report.Position) error {
	if occursIn(tv, t) {
		return report.Raise(pos, "infinite type: `%s` occurs in `%s`", tv.Repr(), t.Repr())
	}

	tv.Value = t
	return nil
}

// occursIn reports whether tv occurs anywhere within t.
func occursIn(tv *TVar, t Type) bool {
	switch v := Prune(t).(type) {
	case *TVar:
		return v == tv
	case TupleType:
		for _, elem := range v {
			if occursIn(tv, elem) {
				return true
			}
		}
	case *ConType:
		for _, arg := range v.Args {
			if occursIn(tv, arg) {
				return true
			}
		}
	case *FunType:
		return occursIn(tv, v.Dom) || occursIn(tv, v.Rng)
	}

	return false
}
