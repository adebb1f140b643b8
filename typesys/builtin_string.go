package typesys

import (
	"strconv"

	"ember/intern"
	"ember/value"
)

// stringType registers the built-in string type. Its PerformOp supports
// lexical comparison and concatenation; the arithmetic/bitwise family is
// not meaningful for strings and returns 0, matching the built-in
// numeric type's division-by-zero convention of failing soft rather than
// raising.
func stringType(in *intern.Interner, ext *value.ExternalTable) *TypeInfo {
	resolve := func(v value.Value) string {
		if v.Zone == value.ZoneExternal {
			return ext.StringOf(v)
		}
		return ""
	}

	return &TypeInfo{
		Name:      in.Intern("string", true),
		FieldSize: Variable,
		ValueSize: Variable,
		UserPtr:   ext,
		CastValue: stringCast(ext),
		PerformOp: func(_ any, op Op, lhs, rhs value.Value) value.Value {
			a := resolve(lhs)
			switch op {
			case OpNot:
				return boolResult(a == "" || a == "0")
			}

			b := resolve(rhs)
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
			case OpAdd:
				return ext.LeaseString(a + b)
			case OpAnd:
				return boolResult(a != "" && a != "0" && b != "" && b != "0")
			case OpOr:
				return boolResult((a != "" && a != "0") || (b != "" && b != "0"))
			default:
				return value.NewUint(0)
			}
		},
	}
}

// stringCast converts numeric storage into its canonical decimal text
// form, or passes existing string payloads through unchanged.
func stringCast(ext *value.ExternalTable) CastValueFn {
	return func(_ any, in *Storage, out *Storage, _ any, _ uint32, _ value.TypeID) bool {
		switch in.Register.Type {
		case value.TypeFloat:
			out.SetRegister(ext.LeaseString(trimFloat(in.Register.Float())))
		case value.TypeUnsigned:
			out.SetRegister(ext.LeaseString(strconv.FormatUint(in.Register.Uint(), 10)))
		case value.TypeString:
			out.SetRegister(in.Register)
		default:
			return false
		}
		return true
	}
}

// trimFloat formats f the way the string stack's numeric setters do,
// trimming to the shortest round-tripping decimal representation.
func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
