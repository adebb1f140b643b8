package value

// HeapAlloc is a VM-owned, explicitly-released allocation used to store a
// value whose lifetime needs to outlive the stack frame that produced it
// (e.g. a non-inline value copied out of a variable or field before being
// stored). There is no GC: every CreateHeapRef must be matched by exactly
// one ReleaseHeapRef.
type HeapAlloc struct {
	Bytes []byte
	prev  *HeapAlloc
	next  *HeapAlloc
}

// HeapList is the VM's doubly-linked list of live heap allocations. It
// also owns the id table that stands in for "the address" a ZoneVMHeap
// payload would hold in the original pointer-based design: Go code can't
// stash a real pointer in a uint64 without unsafe, so each VM's HeapList
// hands out synthetic ids scoped to itself instead of a process-global
// map, matching the rule that no state survives outside the owning VM.
type HeapList struct {
	head    *HeapAlloc
	count   int
	nextID  uint64
	byID    map[uint64]*HeapAlloc
}

// CreateHeapRef allocates size bytes, links the allocation into the list,
// and returns a ZoneVMHeap Value referencing it.
func (l *HeapList) CreateHeapRef(size int, typeID TypeID) (Value, *HeapAlloc) {
	a := &HeapAlloc{Bytes: make([]byte, size)}
	l.link(a)
	id := l.mintID(a)
	return Value{Payload: id, Type: typeID, Zone: ZoneVMHeap}, a
}

func (l *HeapList) link(a *HeapAlloc) {
	a.next = l.head
	if l.head != nil {
		l.head.prev = a
	}
	l.head = a
	l.count++
}

func (l *HeapList) mintID(a *HeapAlloc) uint64 {
	if l.byID == nil {
		l.byID = make(map[uint64]*HeapAlloc)
	}
	l.nextID++
	id := l.nextID
	l.byID[id] = a
	return id
}

// ReleaseHeapRef unlinks and discards a. Calling it twice on the same
// allocation is a programmer error (double free) that this runtime, like
// its reference, does not attempt to detect at the type level — callers
// must balance Create/Release themselves.
func (l *HeapList) ReleaseHeapRef(a *HeapAlloc) {
	if a == nil {
		return
	}
	if a.prev != nil {
		a.prev.next = a.next
	} else if l.head == a {
		l.head = a.next
	}
	if a.next != nil {
		a.next.prev = a.prev
	}
	a.prev, a.next = nil, nil
	l.count--

	for id, entry := range l.byID {
		if entry == a {
			delete(l.byID, id)
			break
		}
	}
}

// Count returns the number of live heap allocations, used by tests
// asserting refcount/heap balance (no allocation is leaked).
func (l *HeapList) Count() int { return l.count }

// ResolveHeap looks up the *HeapAlloc a ZoneVMHeap Value refers to,
// scoped to this list.
func (l *HeapList) ResolveHeap(v Value) *HeapAlloc {
	if v.Zone != ZoneVMHeap || l.byID == nil {
		return nil
	}
	return l.byID[v.Payload]
}
