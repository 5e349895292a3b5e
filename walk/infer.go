package walk

import (
	"milc/mil"
	"milc/report"
	"milc/typing"
)

// inferCode checks a code sequence against the expected range type of the
// enclosing block.
func (w *Walker) inferCode(c mil.Code, rng typing.Type, pos *report.Position) error {
	switch v := c.(type) {
	case *mil.Bind:
		tr, doesntReturn, err := w.inferTail(v.Tail, pos)
		if err != nil {
			return err
		}

		vars := make(typing.TupleType, len(v.Vars))
		for i, t := range v.Vars {
			t.Type = w.sol.NewTVar(pos)
			vars[i] = t.Type
		}

		// a binding of a non-returning tail places no constraint on the
		// bound temps; the rest of the sequence is dead but still checked
		if !doesntReturn {
			if err := w.sol.Unify(tr, vars, pos); err != nil {
				return err
			}
		}

		return w.inferCode(v.Rest, rng, pos)
	case *mil.Done:
		tr, doesntReturn, err := w.inferTail(v.Tail, pos)
		if err != nil {
			return err
		}

		if doesntReturn {
			return nil
		}

		return w.sol.Unify(tr, rng, pos)
	case *mil.If:
		ct, err := w.atomType(v.Cond, pos)
		if err != nil {
			return err
		}

		if err := w.sol.Unify(ct, typing.PrimType(typing.PrimFlag), pos); err != nil {
			return err
		}

		if err := w.inferCode(v.Then, rng, pos); err != nil {
			return err
		}

		return w.inferCode(v.Else, rng, pos)
	case *mil.Case:
		if _, err := w.atomType(v.Scrut, pos); err != nil {
			return err
		}

		for _, alt := range v.Alts {
			if err := w.inferCode(alt.Body, rng, pos); err != nil {
				return err
			}
		}

		if v.Default != nil {
			return w.inferCode(v.Default, rng, pos)
		}

		return nil
	}

	return report.Raise(pos, "malformed code sequence")
}

// inferTail computes the range type of a tail.  The boolean result reports
// that the tail never returns, in which case the range places no constraint
// on the surrounding code.
func (w *Walker) inferTail(t mil.Tail, pos *report.Position) (typing.Type, bool, error) {
	switch v := t.(type) {
	case *mil.Return:
		args, err := w.atomTypes(v.Args, pos)
		if err != nil {
			return nil, false, err
		}

		return args, false, nil
	case *mil.BlockCall:
		inst := v.Target.Instantiate(w.sol, pos)
		if inst == nil {
			// the target failed to check; treat the call as unconstrained
			return w.sol.NewTVar(pos), false, nil
		}

		v.Inst = inst
		args, err := w.atomTypes(v.Args, pos)
		if err != nil {
			return nil, false, err
		}

		if err := w.sol.Unify(typing.Type(inst.Dom), typing.Type(args), pos); err != nil {
			return nil, false, err
		}

		return inst.Rng, false, nil
	case *mil.Enter:
		ft, err := w.atomType(v.Fun, pos)
		if err != nil {
			return nil, false, err
		}

		args, err := w.atomTypes(v.Args, pos)
		if err != nil {
			return nil, false, err
		}

		rng := w.sol.NewTVar(pos)
		if err := w.sol.Unify(ft, &typing.FunType{Dom: args, Rng: rng}, pos); err != nil {
			return nil, false, err
		}

		return rng, false, nil
	case *mil.PrimCall:
		inst := v.Prim.Declared.Instantiate(w.sol, pos)
		if v.Prim.Declared.Quantified() {
			v.Inst = inst
		}

		if v.Prim.DoesntReturn {
			return typing.TupleType{}, true, nil
		}

		args, err := w.atomTypes(v.Args, pos)
		if err != nil {
			return nil, false, err
		}

		if err := w.sol.Unify(typing.Type(inst.Dom), typing.Type(args), pos); err != nil {
			return nil, false, err
		}

		return inst.Rng, false, nil
	case *mil.ClosAlloc:
		stored, err := w.atomTypes(v.Args, pos)
		if err != nil {
			return nil, false, err
		}

		if len(stored) != len(v.Defn.Stored) {
			return nil, false, report.Raise(pos,
				"closure %s allocated with %d stored values; expected %d",
				v.Defn.Id, len(stored), len(v.Defn.Stored))
		}

		for i, t := range v.Defn.Stored {
			if t.Type != nil {
				if err := w.sol.Unify(t.Type, stored[i], pos); err != nil {
					return nil, false, err
				}
			}
		}

		if v.Defn.Declared != nil {
			inst := v.Defn.Declared.Instantiate(w.sol, pos)
			return inst.Rng, false, nil
		}

		dom := make(typing.TupleType, len(v.Defn.Args))
		for i, t := range v.Defn.Args {
			if t.Type == nil {
				t.Type = w.sol.NewTVar(pos)
			}

			dom[i] = t.Type
		}

		return typing.TupleType{&typing.FunType{Dom: dom, Rng: w.sol.NewTVar(pos)}}, false, nil
	case *mil.DataAlloc:
		if v.Inst == nil {
			v.Inst = &typing.ConType{Name: v.Con}
		}

		if _, err := w.atomTypes(v.Args, pos); err != nil {
			return nil, false, err
		}

		return typing.TupleType{v.Inst}, false, nil
	}

	return nil, false, report.Raise(pos, "malformed tail")
}

// atomTypes computes the tuple of types of an argument list.
func (w *Walker) atomTypes(args []mil.Atom, pos *report.Position) (typing.TupleType, error) {
	tt := make(typing.TupleType, len(args))
	for i, a := range args {
		at, err := w.atomType(a, pos)
		if err != nil {
			return nil, err
		}

		tt[i] = at
	}

	return tt, nil
}

// atomType computes the type of a single atom.
func (w *Walker) atomType(a mil.Atom, pos *report.Position) (typing.Type, error) {
	switch v := a.(type) {
	case *mil.Temp:
		if v.Type == nil {
			v.Type = w.sol.NewTVar(pos)
		}

		return v.Type, nil
	case *mil.WordConst:
		if v.Type == nil {
			v.Type = typing.PrimType(typing.PrimWord)
		}

		return v.Type, nil
	case *mil.FlagConst:
		return typing.PrimType(typing.PrimFlag), nil
	case *mil.Global:
		switch d := v.Defn.(type) {
		case *mil.TopLevel:
			return w.valueType(d.Declared, d.Position, pos)
		case *mil.External:
			return w.valueType(d.Declared, d.Position, pos)
		case *mil.Area:
			return typing.PrimType(typing.PrimAddr), nil
		}

		return nil, report.Raise(pos, "%s cannot be used as a value", v.Defn.Name())
	}

	return nil, report.Raise(pos, "malformed atom")
}

// valueType extracts the value type of a global's scheme: the single range
// component of a domain-free block type.
func (w *Walker) valueType(s *typing.Scheme, defPos, usePos *report.Position) (typing.Type, error) {
	if s == nil {
		return w.sol.NewTVar(usePos), nil
	}

	inst := s.Instantiate(w.sol, usePos)
	if rng, ok := typing.Prune(inst.Rng).(typing.TupleType); ok && len(rng) == 1 {
		return rng[0], nil
	}

	return nil, report.Raise(defPos, "global definition does not produce a single value")
}
