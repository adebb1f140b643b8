package typesys

import (
	"ember/intern"
	"ember/value"
)

// CastValueFn reads in and writes out, performing whatever conversion or
// validation the type needs. requestedType lets one type's cast routine
// special-case coercion into another registered type when the compiler
// has determined a TYPED_OP needs it. Returns false on a cast failure
// (the caller turns that into the runtime-error-and-continue behavior).
type CastValueFn func(userPtr any, in *Storage, out *Storage, fieldUserPtr any, flag uint32, requestedType value.TypeID) bool

// PerformOpFn evaluates op over lhs (and rhs, for binary ops) using this
// type's semantics and returns the result.
type PerformOpFn func(userPtr any, op Op, lhs, rhs value.Value) value.Value

// Field describes one typed field on a registered class.
type Field struct {
	Name         intern.STE
	Offset       uintptr
	ElementCount uint32
	Type         value.TypeID
	Flag         uint32
	FieldUserPtr any

	// OverrideCast, if set, replaces the owning type's CastValue for this
	// field specifically.
	OverrideCast CastValueFn

	// AllocStorage, if set, lets a class expose non-contiguous or computed
	// fields (e.g. a field backed by a Go map lookup instead of a byte
	// offset) by returning a Storage view for element index idx.
	AllocStorage func(obj any, idx int) *Storage
}

// TypeInfo is everything the VM needs to know about one registered type.
type TypeInfo struct {
	Name      intern.STE
	FieldSize int
	ValueSize int // -1 (Variable) means the encoded size is not fixed
	UserPtr   any
	CastValue CastValueFn
	PerformOp PerformOpFn
}

// Variable marks TypeInfo.ValueSize as "size not fixed".
const Variable = -1

// Registry holds every type known to a VM, with the three built-ins
// (string/float/uint) occupying the reserved low ids.
type Registry struct {
	types  []*TypeInfo
	byName map[string]value.TypeID
}

// NewRegistry creates a registry pre-populated with string/float/uint.
// ext is the VM's external-pointer table; the string type's CastValue and
// PerformOp resolve ZoneExternal string payloads through it, since Value
// itself carries no string bytes inline.
func NewRegistry(in *intern.Interner, ext *value.ExternalTable) *Registry {
	r := &Registry{byName: make(map[string]value.TypeID)}
	r.types = append(r.types, stringType(in, ext))
	r.types = append(r.types, floatType(in))
	r.types = append(r.types, uintType(in))
	r.byName["string"] = value.TypeString
	r.byName["float"] = value.TypeFloat
	r.byName["unsigned"] = value.TypeUnsigned
	return r
}

// Register adds a new user type and returns its assigned id.
func (r *Registry) Register(info *TypeInfo) value.TypeID {
	id := value.TypeID(len(r.types))
	r.types = append(r.types, info)
	r.byName[info.Name.String()] = id
	return id
}

// Lookup resolves a type name to its id.
func (r *Registry) Lookup(name string) (value.TypeID, bool) {
	id, ok := r.byName[name]
	return id, ok
}

// Get returns the TypeInfo for id, or nil if id is out of range.
func (r *Registry) Get(id value.TypeID) *TypeInfo {
	if int(id) < 0 || int(id) >= len(r.types) {
		return nil
	}
	return r.types[id]
}

// Count returns the number of registered types, including built-ins.
func (r *Registry) Count() int { return len(r.types) }
