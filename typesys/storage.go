package typesys

import "ember/value"

// StorageKind says which of the four factory forms backs a Storage: a
// fixed field pointer, the string stack, the return buffer, or a
// register-only read view with no backing write target.
type StorageKind uint8

const (
	StorageFixedField StorageKind = iota
	StorageStringStack
	StorageReturnBuffer
	StorageRegisterOnly
)

// Storage is the small vtable-shaped abstraction CastValue reads from and
// writes to. The same cast routine serves reads, writes, operator-implied
// coercions, and field I/O by varying which Storage it's handed.
type Storage struct {
	Kind     StorageKind
	Register value.Value // the value currently visible through this storage
	Bytes    []byte       // raw backing bytes, when Kind needs one (variable-size types)
}

// NewFixedFieldStorage wraps a field's pre-sized buffer.
func NewFixedFieldStorage(bytes []byte) *Storage {
	return &Storage{Kind: StorageFixedField, Bytes: bytes}
}

// NewRegisterStorage wraps a bare value.Value with no backing bytes; used
// for read-only access to already-resolved values (e.g. an operator's
// rhs).
func NewRegisterStorage(v value.Value) *Storage {
	return &Storage{Kind: StorageRegisterOnly, Register: v}
}

// Resize grows or shrinks Bytes in place for variable-size types. It is a
// no-op for StorageRegisterOnly, which never owns bytes.
func (s *Storage) Resize(n int) {
	if s.Kind == StorageRegisterOnly {
		return
	}
	if n <= cap(s.Bytes) {
		s.Bytes = s.Bytes[:n]
		return
	}
	grown := make([]byte, n)
	copy(grown, s.Bytes)
	s.Bytes = grown
}

// Finalize is called once CastValue has finished writing Bytes, giving
// the Storage a chance to publish Register from the raw bytes (e.g.
// parsing the canonical string form back into a typed register value).
// The default implementation is a no-op; callers that need the
// post-write value call SetRegister explicitly instead.
func (s *Storage) Finalize() {}

// SetRegister stores v as the resolved value for this storage.
func (s *Storage) SetRegister(v value.Value) { s.Register = v }
