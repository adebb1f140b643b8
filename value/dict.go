package value

import "ember/intern"

// Entry is a single variable binding: a name, its current value, an
// optional heap-backed payload for variable-length typed blobs, and the
// constant/usage metadata the compiler and debugger both want.
type Entry struct {
	Name       intern.STE
	Value      Value
	Heap       *HeapAlloc
	IsConstant bool
	Usage      string
}

// Dictionary is a hash table of Entry, owned by a frame (locals) or the
// VM (globals). A Dictionary can instead reference another dictionary's
// table rather than own one — "call-frame-reference mode" — which is how
// eval-in-frame (the debugger's EVAL command, or a script's ability to
// evaluate code against a suspended frame) works: the referencing
// dictionary sees live writes made through the referenced one and vice
// versa.
type Dictionary struct {
	owned   map[string]*Entry // nil when referencing another table
	ref     *Dictionary       // non-nil when in reference mode
	setFrom int               // frame depth this dictionary was bound to, when in reference mode
}

// NewDictionary creates a dictionary that owns its own table.
func NewDictionary() *Dictionary {
	return &Dictionary{owned: make(map[string]*Entry)}
}

// NewReferenceDictionary creates a dictionary that reads and writes
// through ref's table instead of owning one. frameDepth records which
// call frame the reference was established against, used by the eval-
// in-frame opcode paths to decide whether the reference is still valid.
func NewReferenceDictionary(ref *Dictionary, frameDepth int) *Dictionary {
	return &Dictionary{ref: ref, setFrom: frameDepth}
}

// IsReference reports whether this dictionary is in call-frame-reference
// mode rather than owning its table.
func (d *Dictionary) IsReference() bool { return d.ref != nil }

func (d *Dictionary) table() map[string]*Entry {
	if d.ref != nil {
		return d.ref.table()
	}
	return d.owned
}

// Lookup finds an entry by name, or nil.
func (d *Dictionary) Lookup(name string) *Entry {
	return d.table()[name]
}

// Create inserts (or returns the existing) entry for name.
func (d *Dictionary) Create(ste intern.STE) *Entry {
	t := d.table()
	if e, ok := t[ste.String()]; ok {
		return e
	}
	e := &Entry{Name: ste}
	t[ste.String()] = e
	return e
}

// Delete removes an entry, releasing any heap allocation it held. The
// caller is responsible for passing the owning HeapList so the release is
// accounted for.
func (d *Dictionary) Delete(name string, heap *HeapList) {
	t := d.table()
	if e, ok := t[name]; ok {
		if e.Heap != nil && heap != nil {
			heap.ReleaseHeapRef(e.Heap)
		}
		delete(t, name)
	}
}

// Len reports the number of live entries.
func (d *Dictionary) Len() int { return len(d.table()) }

// Each calls fn for every entry; order is unspecified.
func (d *Dictionary) Each(fn func(*Entry)) {
	for _, e := range d.table() {
		fn(e)
	}
}
