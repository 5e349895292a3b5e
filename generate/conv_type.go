package generate

import (
	"milc/report"
	"milc/typing"

	"github.com/llir/llvm/ir/types"
)

// convType converts a lowered machine type to its LLVM equivalent.
func convType(t typing.Type) types.Type {
	switch v := typing.Prune(t).(type) {
	case typing.PrimType:
		switch v {
		case typing.PrimWord:
			return types.I64
		case typing.PrimFlag:
			return types.I1
		case typing.PrimAddr:
			return types.NewPointer(types.I8)
		case typing.PrimUnit:
			return types.Void
		}
	case typing.BitType:
		// lowering leaves only word-sized vectors behind
		return types.I64
	case *typing.ConType, *typing.FunType:
		// data values and closures are opaque word-sized handles to the
		// runtime
		return types.I64
	}

	report.ICE("type %s survived lowering", typing.Prune(t).Repr())
	return nil
}

// convRng converts a block's range to an LLVM return type: no results give
// void, one result its own type, several a struct.
func convRng(rng typing.Type) types.Type {
	tt, ok := typing.Prune(rng).(typing.TupleType)
	if !ok {
		return convType(rng)
	}

	switch len(tt) {
	case 0:
		return types.Void
	case 1:
		return convType(tt[0])
	}

	elems := make([]types.Type, len(tt))
	for i, t := range tt {
		elems[i] = convType(t)
	}

	return types.NewStruct(elems...)
}
