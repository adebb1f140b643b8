package typesys

import (
	"testing"

	"ember/intern"
	"ember/value"
)

func newTestRegistry() (*Registry, *value.ExternalTable) {
	ext := &value.ExternalTable{}
	return NewRegistry(intern.New(), ext), ext
}

func TestBuiltinTypesPreregistered(t *testing.T) {
	r, _ := newTestRegistry()
	if r.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", r.Count())
	}
	for _, name := range []string{"string", "float", "unsigned"} {
		if _, ok := r.Lookup(name); !ok {
			t.Fatalf("missing built-in type %q", name)
		}
	}
	if id, _ := r.Lookup("float"); id != value.TypeFloat {
		t.Fatalf("float id = %d, want %d", id, value.TypeFloat)
	}
}

func TestRegisterUserType(t *testing.T) {
	r, _ := newTestRegistry()
	in := intern.New()
	id := r.Register(&TypeInfo{Name: in.Intern("point", true), FieldSize: 16, ValueSize: 16})
	if id != value.TypeUserBase {
		t.Fatalf("first user type id = %d, want %d", id, value.TypeUserBase)
	}
	got, ok := r.Lookup("point")
	if !ok || got != id {
		t.Fatalf("Lookup(%q) = %d,%v want %d,true", "point", got, ok, id)
	}
	if r.Get(id).FieldSize != 16 {
		t.Fatalf("Get(id).FieldSize = %d, want 16", r.Get(id).FieldSize)
	}
}

func TestNumericPerformOpArithmeticAndCompare(t *testing.T) {
	r, _ := newTestRegistry()
	float := r.Get(value.TypeFloat)

	sum := float.PerformOp(nil, OpAdd, value.NewFloat(2), value.NewFloat(3))
	if sum.Float() != 5 {
		t.Fatalf("2+3 = %v, want 5", sum.Float())
	}

	lt := float.PerformOp(nil, OpCmpLt, value.NewFloat(2), value.NewFloat(3))
	if lt.Uint() != 1 {
		t.Fatalf("2<3 = %v, want 1", lt.Uint())
	}

	ge := float.PerformOp(nil, OpCmpGe, value.NewFloat(2), value.NewFloat(3))
	if ge.Uint() != 0 {
		t.Fatalf("2>=3 = %v, want 0", ge.Uint())
	}
}

func TestNumericPerformOpDivisionByZero(t *testing.T) {
	r, _ := newTestRegistry()
	float := r.Get(value.TypeFloat)

	quot := float.PerformOp(nil, OpDiv, value.NewFloat(9), value.NewFloat(0))
	if quot.Float() != 0 {
		t.Fatalf("9/0 = %v, want 0 (soft failure, not panic)", quot.Float())
	}

	rem := float.PerformOp(nil, OpMod, value.NewFloat(9), value.NewFloat(0))
	if rem.Float() != 0 {
		t.Fatalf("9%%0 = %v, want 0", rem.Float())
	}
}

func TestNumericPerformOpBitwiseAndShift(t *testing.T) {
	r, _ := newTestRegistry()
	uintType := r.Get(value.TypeUnsigned)

	and := uintType.PerformOp(nil, OpBitAnd, value.NewUint(0b1100), value.NewUint(0b1010))
	if and.Uint() != 0b1000 {
		t.Fatalf("0b1100 & 0b1010 = %b, want %b", and.Uint(), 0b1000)
	}

	shl := uintType.PerformOp(nil, OpShl, value.NewUint(1), value.NewUint(4))
	if shl.Uint() != 16 {
		t.Fatalf("1<<4 = %d, want 16", shl.Uint())
	}

	not := uintType.PerformOp(nil, OpBitNot, value.NewUint(0), value.Value{})
	if not.Uint() != ^uint64(0) {
		t.Fatalf("~0 = %d, want all-ones", not.Uint())
	}
}

func TestStringPerformOpConcatAndCompare(t *testing.T) {
	r, ext := newTestRegistry()
	str := r.Get(value.TypeString)

	a := ext.LeaseString("foo")
	b := ext.LeaseString("bar")

	cat := str.PerformOp(nil, OpAdd, a, b)
	if got := ext.StringOf(cat); got != "foobar" {
		t.Fatalf("\"foo\"+\"bar\" = %q, want %q", got, "foobar")
	}

	eq := str.PerformOp(nil, OpCmpEq, a, ext.LeaseString("foo"))
	if eq.Uint() != 1 {
		t.Fatalf("\"foo\"==\"foo\" = %v, want 1", eq.Uint())
	}

	lt := str.PerformOp(nil, OpCmpLt, b, a)
	if lt.Uint() != 1 {
		t.Fatalf("\"bar\"<\"foo\" = %v, want 1", lt.Uint())
	}
}

func TestStringCastFromNumeric(t *testing.T) {
	r, ext := newTestRegistry()
	str := r.Get(value.TypeString)

	in := NewRegisterStorage(value.NewFloat(3.5))
	out := NewRegisterStorage(value.Value{})
	if !str.CastValue(nil, in, out, nil, 0, value.TypeString) {
		t.Fatalf("CastValue from float failed")
	}
	if got := ext.StringOf(out.Register); got != "3.5" {
		t.Fatalf("cast float 3.5 to string = %q, want %q", got, "3.5")
	}
}

func TestNumericCastFromString(t *testing.T) {
	r, ext := newTestRegistry()
	float := r.Get(value.TypeFloat)

	in := &Storage{Kind: StorageRegisterOnly, Register: value.Value{Type: value.TypeString}, Bytes: []byte("2.5")}
	_ = ext
	out := NewRegisterStorage(value.Value{})
	if !float.CastValue(nil, in, out, nil, 0, value.TypeFloat) {
		t.Fatalf("CastValue from string failed")
	}
	if out.Register.Float() != 2.5 {
		t.Fatalf("cast \"2.5\" to float = %v, want 2.5", out.Register.Float())
	}
}
