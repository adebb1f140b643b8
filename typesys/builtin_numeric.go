package typesys

import (
	"ember/intern"
	"ember/value"
	"strconv"
)

// numericPerformOp implements the full comparison/bitwise/shift/logical/
// arithmetic operator set shared by the built-in float and uint types.
// Per spec, every operator is evaluated in f64 space; bitwise/shift
// operators additionally truncate to (uint64) first, and division by
// zero yields 0 rather than raising.
func numericPerformOp(_ any, op Op, lhs, rhs value.Value) value.Value {
	a := lhs.Float()
	if op.IsUnary() {
		switch op {
		case OpNeg:
			return value.NewFloat(-a)
		case OpNot:
			return boolResult(a == 0)
		case OpBitNot:
			return value.NewUint(^uint64(a))
		}
	}

	b := rhs.Float()
	switch op {
	case OpCmpEq:
		return boolResult(a == b)
	case OpCmpNe:
		return boolResult(a != b)
	case OpCmpLt:
		return boolResult(a < b)
	case OpCmpLe:
		return boolResult(a <= b)
	case OpCmpGt:
		return boolResult(a > b)
	case OpCmpGe:
		return boolResult(a >= b)
	case OpBitAnd:
		return value.NewUint(uint64(a) & uint64(b))
	case OpBitOr:
		return value.NewUint(uint64(a) | uint64(b))
	case OpBitXor:
		return value.NewUint(uint64(a) ^ uint64(b))
	case OpShl:
		return value.NewUint(uint64(a) << (uint64(b) & 63))
	case OpShr:
		return value.NewUint(uint64(a) >> (uint64(b) & 63))
	case OpAnd:
		return boolResult(a != 0 && b != 0)
	case OpOr:
		return boolResult(a != 0 || b != 0)
	case OpAdd:
		return value.NewFloat(a + b)
	case OpSub:
		return value.NewFloat(a - b)
	case OpMul:
		return value.NewFloat(a * b)
	case OpDiv:
		if b == 0 {
			return value.NewFloat(0)
		}
		return value.NewFloat(a / b)
	case OpMod:
		if int64(b) == 0 {
			return value.NewFloat(0)
		}
		return value.NewFloat(float64(int64(a) % int64(b)))
	default:
		return value.NewFloat(0)
	}
}

func boolResult(b bool) value.Value {
	if b {
		return value.NewUint(1)
	}
	return value.NewUint(0)
}

func floatType(in *intern.Interner) *TypeInfo {
	return &TypeInfo{
		Name:      in.Intern("float", true),
		FieldSize: 8,
		ValueSize: 8,
		CastValue: numericCast(value.TypeFloat),
		PerformOp: numericPerformOp,
	}
}

func uintType(in *intern.Interner) *TypeInfo {
	return &TypeInfo{
		Name:      in.Intern("unsigned", true),
		FieldSize: 8,
		ValueSize: 8,
		CastValue: numericCast(value.TypeUnsigned),
		PerformOp: numericPerformOp,
	}
}

// numericCast builds a CastValueFn that converts whatever in.Register
// holds into the requested numeric type, writing the result (and its
// canonical string form, when the target storage backs bytes) to out.
func numericCast(target value.TypeID) CastValueFn {
	return func(_ any, in *Storage, out *Storage, _ any, _ uint32, _ value.TypeID) bool {
		var f float64
		switch in.Register.Type {
		case value.TypeFloat, value.TypeUnsigned:
			f = in.Register.Float()
		case value.TypeString:
			parsed, err := strconv.ParseFloat(string(in.Bytes), 64)
			if err != nil {
				parsed = 0
			}
			f = parsed
		default:
			f = in.Register.Float()
		}
		if target == value.TypeUnsigned {
			out.SetRegister(value.NewUint(uint64(f)))
		} else {
			out.SetRegister(value.NewFloat(f))
		}
		return true
	}
}
