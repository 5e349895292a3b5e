package typing

import "testing"

var (
	word = PrimType(PrimWord)
	flag = PrimType(PrimFlag)
)

func TestGeneralizeNumbersByFirstOccurrence(t *testing.T) {
	sol := NewSolver()
	a := sol.NewTVar(nil)
	b := sol.NewTVar(nil)

	// the range is scanned before the domain, so a becomes g0
	s := Generalize(&BlockType{Dom: TupleType{a, b}, Rng: TupleType{a}}, []*TVar{a, b})

	if s.Arity != 2 {
		t.Fatalf("arity = %d; want 2", s.Arity)
	}

	if !Equals(s.Body.Rng, TupleType{TGen(0)}) {
		t.Errorf("rng = %s; want [g0]", s.Body.Rng.Repr())
	}

	if !Equals(s.Body.Dom, TupleType{TGen(0), TGen(1)}) {
		t.Errorf("dom = %s; want [g0, g1]", s.Body.Dom.Repr())
	}
}

func TestGeneralizeLeavesUnlistedVars(t *testing.T) {
	sol := NewSolver()
	a := sol.NewTVar(nil)
	b := sol.NewTVar(nil)

	s := Generalize(&BlockType{Dom: TupleType{a, b}, Rng: TupleType{a}}, []*TVar{a})

	if s.Arity != 1 {
		t.Fatalf("arity = %d; want 1", s.Arity)
	}

	if Prune(s.Body.Dom[1]) != b {
		t.Errorf("unlisted variable was rewritten: %s", s.Body.Dom[1].Repr())
	}
}

func TestSchemeAlphaEquiv(t *testing.T) {
	tests := []struct {
		name string
		a, b *Scheme
		want bool
	}{
		{
			name: "renamed generics",
			a:    &Scheme{Arity: 2, Body: &BlockType{Dom: TupleType{TGen(0), TGen(1)}, Rng: TupleType{TGen(0)}}},
			b:    &Scheme{Arity: 2, Body: &BlockType{Dom: TupleType{TGen(1), TGen(0)}, Rng: TupleType{TGen(1)}}},
			want: true,
		},
		{
			name: "different generic use",
			a:    &Scheme{Arity: 2, Body: &BlockType{Dom: TupleType{TGen(0), TGen(1)}, Rng: TupleType{TGen(0)}}},
			b:    &Scheme{Arity: 2, Body: &BlockType{Dom: TupleType{TGen(0), TGen(1)}, Rng: TupleType{TGen(1)}}},
			want: false,
		},
		{
			name: "different arity",
			a:    MonoScheme(&BlockType{Dom: TupleType{word}, Rng: TupleType{word}}),
			b:    &Scheme{Arity: 1, Body: &BlockType{Dom: TupleType{TGen(0)}, Rng: TupleType{TGen(0)}}},
			want: false,
		},
		{
			name: "monomorphic equal",
			a:    MonoScheme(&BlockType{Dom: TupleType{word, flag}, Rng: TupleType{word}}),
			b:    MonoScheme(&BlockType{Dom: TupleType{word, flag}, Rng: TupleType{word}}),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.AlphaEquiv(tt.b); got != tt.want {
				t.Errorf("AlphaEquiv(%s, %s) = %v; want %v", tt.a.Repr(), tt.b.Repr(), got, tt.want)
			}
		})
	}
}

func TestRemoveArgsRenumbersGenerics(t *testing.T) {
	// forall 2. [g0, g1, word] >>= [g1]; dropping position 0 removes the
	// only mention of g0, so g1 must be renumbered to g0
	s := &Scheme{
		Arity: 2,
		Body:  &BlockType{Dom: TupleType{TGen(0), TGen(1), word}, Rng: TupleType{TGen(1)}},
	}

	ns := s.RemoveArgs([]bool{false, true, true})

	if ns.Arity != 1 {
		t.Fatalf("arity = %d; want 1", ns.Arity)
	}

	if !Equals(ns.Body.Dom, TupleType{TGen(0), word}) {
		t.Errorf("dom = %s; want [g0, word]", ns.Body.Dom.Repr())
	}

	if !Equals(ns.Body.Rng, TupleType{TGen(0)}) {
		t.Errorf("rng = %s; want [g0]", ns.Body.Rng.Repr())
	}
}

func TestRemoveArgsMonomorphic(t *testing.T) {
	s := MonoScheme(&BlockType{Dom: TupleType{word, flag}, Rng: TupleType{word}})
	ns := s.RemoveArgs([]bool{true, false})

	if ns.Quantified() {
		t.Fatalf("monomorphic scheme became quantified: %s", ns.Repr())
	}

	if !Equals(ns.Body.Dom, TupleType{word}) {
		t.Errorf("dom = %s; want [word]", ns.Body.Dom.Repr())
	}
}

func TestInstantiateWith(t *testing.T) {
	s := &Scheme{Arity: 1, Body: &BlockType{Dom: TupleType{TGen(0)}, Rng: TupleType{TGen(0)}}}
	inst := s.InstantiateWith([]Type{word})

	if !Equals(inst.Dom, TupleType{word}) || !Equals(inst.Rng, TupleType{word}) {
		t.Errorf("instance = %s; want [word] >>= [word]", inst.Repr())
	}
}

func TestSpecializingSubst(t *testing.T) {
	s := &Scheme{
		Arity: 2,
		Body:  &BlockType{Dom: TupleType{TGen(0), TGen(1)}, Rng: TupleType{TGen(0)}},
	}

	args := s.SpecializingSubst(&BlockType{Dom: TupleType{word, flag}, Rng: TupleType{word}})

	if len(args) != 2 || !Equals(args[0], word) || !Equals(args[1], flag) {
		t.Errorf("args = %v; want [word, flag]", args)
	}
}

func TestMatchTVars(t *testing.T) {
	sol := NewSolver()
	a := sol.NewTVar(nil)
	b := sol.NewTVar(nil)

	vars := make(map[*TVar]Type)
	MatchTVars(
		TupleType{a, &ConType{Name: "list", Args: []Type{b}}},
		TupleType{word, &ConType{Name: "list", Args: []Type{flag}}},
		vars,
	)

	if !Equals(vars[a], word) {
		t.Errorf("a matched %v; want word", vars[a])
	}

	if !Equals(vars[b], flag) {
		t.Errorf("b matched %v; want flag", vars[b])
	}
}

func TestMatchTVarsFirstWins(t *testing.T) {
	sol := NewSolver()
	a := sol.NewTVar(nil)

	vars := make(map[*TVar]Type)
	MatchTVars(TupleType{a, a}, TupleType{word, flag}, vars)

	if !Equals(vars[a], word) {
		t.Errorf("a matched %v; want the first occurrence (word)", vars[a])
	}
}

func TestUnifyBindsVariables(t *testing.T) {
	sol := NewSolver()
	a := sol.NewTVar(nil)

	if err := sol.Unify(a, word, nil); err != nil {
		t.Fatalf("Unify returned error: %v", err)
	}

	if !Equals(Prune(a), word) {
		t.Errorf("pruned variable = %s; want word", Prune(a).Repr())
	}

	if err := sol.Unify(word, flag, nil); err == nil {
		t.Error("unifying word with flag succeeded")
	}
}

func TestUnifyCompositeTypes(t *testing.T) {
	sol := NewSolver()

	// tuples are slices: unification must recurse structurally, never
	// compare them directly
	dom := TupleType{word, word}
	if err := sol.Unify(dom, dom, nil); err != nil {
		t.Fatalf("unifying a tuple with itself returned error: %v", err)
	}

	a := sol.NewTVar(nil)
	if err := sol.Unify(TupleType{word, a}, TupleType{word, flag}, nil); err != nil {
		t.Fatalf("Unify returned error: %v", err)
	}

	if !Equals(Prune(a), flag) {
		t.Errorf("pruned element = %s; want flag", Prune(a).Repr())
	}

	if err := sol.Unify(TupleType{word}, TupleType{word, word}, nil); err == nil {
		t.Error("unifying tuples of different arity succeeded")
	}

	fun := &FunType{Dom: TupleType{word}, Rng: TupleType{flag}}
	if err := sol.Unify(fun, &FunType{Dom: TupleType{word}, Rng: TupleType{flag}}, nil); err != nil {
		t.Errorf("unifying equal function types returned error: %v", err)
	}
}

func TestUnifySameVariable(t *testing.T) {
	sol := NewSolver()
	a := sol.NewTVar(nil)

	if err := sol.Unify(a, a, nil); err != nil {
		t.Fatalf("unifying a variable with itself returned error: %v", err)
	}

	if _, ok := Prune(a).(*TVar); !ok {
		t.Error("self-unification determined the variable")
	}
}
