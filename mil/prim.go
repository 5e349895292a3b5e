package mil

import "milc/typing"

// Prim describes a primitive operation.  Primitives are opaque to the
// optimizer except for the purity and termination facts recorded here.
type Prim struct {
	Name string

	// Pure indicates that calls to this primitive can be removed if their
	// results are unused.
	Pure bool

	// DoesntReturn indicates that a call to this primitive never returns to
	// the calling code.
	DoesntReturn bool

	// Declared is the primitive's type scheme.
	Declared *typing.Scheme
}

func binaryWordPrim(name string, rng typing.Type) *Prim {
	return &Prim{
		Name: name,
		Pure: true,
		Declared: typing.MonoScheme(&typing.BlockType{
			Dom: typing.TupleType{typing.PrimType(typing.PrimWord), typing.PrimType(typing.PrimWord)},
			Rng: typing.TupleType{rng},
		}),
	}
}

// The builtin primitive set.
var (
	PrimAdd = binaryWordPrim("add", typing.PrimType(typing.PrimWord))
	PrimSub = binaryWordPrim("sub", typing.PrimType(typing.PrimWord))
	PrimMul = binaryWordPrim("mul", typing.PrimType(typing.PrimWord))
	PrimDiv = binaryWordPrim("div", typing.PrimType(typing.PrimWord))
	PrimRem = binaryWordPrim("rem", typing.PrimType(typing.PrimWord))

	PrimEq = binaryWordPrim("eq", typing.PrimType(typing.PrimFlag))
	PrimLt = binaryWordPrim("lt", typing.PrimType(typing.PrimFlag))
	PrimLe = binaryWordPrim("le", typing.PrimType(typing.PrimFlag))

	PrimNot = &Prim{
		Name: "not",
		Pure: true,
		Declared: typing.MonoScheme(&typing.BlockType{
			Dom: typing.TupleType{typing.PrimType(typing.PrimFlag)},
			Rng: typing.TupleType{typing.PrimType(typing.PrimFlag)},
		}),
	}

	// PrimLoop marks a block body that has been proven to loop forever with
	// no observable effect along the way.  Its range never constrains the
	// enclosing block: the checker skips range unification for primitives
	// that do not return.
	PrimLoop = &Prim{
		Name:         "loop",
		DoesntReturn: true,
		Declared: typing.MonoScheme(&typing.BlockType{
			Dom: typing.TupleType{},
			Rng: typing.TupleType{},
		}),
	}

	// PrimHalt terminates the program.
	PrimHalt = &Prim{
		Name:         "halt",
		DoesntReturn: true,
		Declared: typing.MonoScheme(&typing.BlockType{
			Dom: typing.TupleType{typing.PrimType(typing.PrimWord)},
			Rng: typing.TupleType{},
		}),
	}

	// PrimSel extracts a constructor field: sel expects the field index as a
	// constant first argument and the allocated value second.
	PrimSel = &Prim{
		Name: "sel",
		Pure: true,
		Declared: &typing.Scheme{
			Arity: 2,
			Body: &typing.BlockType{
				Dom: typing.TupleType{typing.PrimType(typing.PrimWord), typing.TGen(0)},
				Rng: typing.TupleType{typing.TGen(1)},
			},
		},
	}
)
