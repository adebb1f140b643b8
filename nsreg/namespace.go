// Package nsreg implements the namespace and class registry: the table
// that resolves a bare function name, or an object's method name, to the
// script or native code that handles it, with TorqueScript-style package
// overriding (a package can shadow a namespace's entries and later be
// deactivated to restore the original).
package nsreg

import (
	"ember/intern"
	"ember/value"
)

// FunctionKind says what an Entry resolves to. The original engine used
// one enum value per native callback signature (string/int/float/void/
// bool/value); this rewrite collapses all of those into a single
// NativeFunctionType because Go's NativeFunc already returns the one
// value.Value shape every opcode expects, so there is nothing left for
// the per-return-type variants to distinguish.
type FunctionKind int32

const (
	GroupMarker         FunctionKind = -3
	OverloadMarker      FunctionKind = -2
	InvalidFunctionType FunctionKind = -1
	ScriptFunctionType  FunctionKind = 0
	NativeFunctionType  FunctionKind = 1
)

// NativeFunc is a host-registered command or method body.
type NativeFunc func(userPtr any, argv []value.Value) value.Value

// ScriptFunc is a compiled script function body, kept as an opaque
// reference here; the vm package supplies the concrete CodeBlock type
// that satisfies whatever this ends up needing once it's written, which
// is why this is left as `any` rather than importing vm (nsreg must stay
// importable from vm without a cycle).
type ScriptFunc struct {
	Code           any
	FunctionOffset uint32
}

// Entry is one resolvable name inside a Namespace.
type Entry struct {
	Namespace    *Namespace
	Next         *Entry
	FunctionName intern.STE
	Kind         FunctionKind
	MinArgs      int
	MaxArgs      int
	Usage        string
	Package      intern.STE
	UserPtr      any

	Script ScriptFunc
	Native NativeFunc
	// GroupName holds the display label for a GroupMarker entry (the
	// console doc system's way of bucketing command listings).
	GroupName string
}

// Namespace is a named bucket of Entry, linked to a parent for method
// resolution (inheritance) and to a Next sibling for the package-override
// chain sharing the same (name) identity.
type Namespace struct {
	Name    intern.STE
	Package intern.STE

	Parent *Namespace
	Next   *Namespace

	UserPtr          any
	RefCountToParent uint32
	Usage            string

	entryList *Entry
	hashTable []*Entry
	hashSeq   uint32 // bumped on every mutation
	builtSeq  uint32 // hashSeq as of the last rebuildHashTable
}

func newNamespace(name, pkg intern.STE) *Namespace {
	return &Namespace{Name: name, Package: pkg}
}

// AddFunction registers a compiled script function under name.
func (n *Namespace) AddFunction(name intern.STE, code any, functionOffset uint32, usage string) *Entry {
	e := n.createLocalEntry(name)
	e.Kind = ScriptFunctionType
	e.Script = ScriptFunc{Code: code, FunctionOffset: functionOffset}
	e.Usage = usage
	return e
}

// AddCommand registers a native function under name.
func (n *Namespace) AddCommand(name intern.STE, fn NativeFunc, userPtr any, usage string, minArgs, maxArgs int) *Entry {
	e := n.createLocalEntry(name)
	e.Kind = NativeFunctionType
	e.Native = fn
	e.UserPtr = userPtr
	e.Usage = usage
	e.MinArgs = minArgs
	e.MaxArgs = maxArgs
	return e
}

// MarkGroup inserts a doc-only GroupMarker entry used to bucket console
// command listings under a heading; it resolves to nothing at call time.
func (n *Namespace) MarkGroup(name, usage string) {
	e := &Entry{Namespace: n, Kind: GroupMarker, GroupName: name, Usage: usage}
	e.Next = n.entryList
	n.entryList = e
	n.hashSeq++
}

// createLocalEntry finds or creates the entry for name directly on this
// namespace, ignoring the parent chain.
func (n *Namespace) createLocalEntry(name intern.STE) *Entry {
	for e := n.entryList; e != nil; e = e.Next {
		if e.FunctionName == name {
			return e
		}
	}
	e := &Entry{Namespace: n, FunctionName: name, Kind: InvalidFunctionType}
	e.Next = n.entryList
	n.entryList = e
	n.hashSeq++
	return e
}

// Lookup resolves name directly on this namespace (no parent walk).
func (n *Namespace) Lookup(name intern.STE) *Entry {
	n.rebuildHashTable()
	if len(n.hashTable) == 0 {
		return nil
	}
	idx := int(name.Hash() % uint64(len(n.hashTable)))
	for e := n.hashTable[idx]; e != nil; e = e.Next {
		if e.FunctionName == name {
			return e
		}
	}
	return nil
}

// LookupRecursive resolves name on this namespace, falling back through
// Parent, the way method dispatch walks a class's inheritance chain.
// Package namespaces that State has spliced in directly after a namespace
// are searched before that namespace's own entries, so an active
// package's override wins.
func (n *Namespace) LookupRecursive(name intern.STE) *Entry {
	for ns := n; ns != nil; ns = ns.Parent {
		for p := ns.Parent; p != nil && !p.Package.IsEmpty(); p = p.Parent {
			if e := p.Lookup(name); e != nil {
				return e
			}
		}
		if e := ns.Lookup(name); e != nil {
			return e
		}
	}
	return nil
}

// rebuildHashTable rebuilds the lookup table lazily, the way the original
// only rebuilds on a stale hash sequence rather than on every mutation.
func (n *Namespace) rebuildHashTable() {
	if n.builtSeq == n.hashSeq && n.hashTable != nil {
		return
	}
	n.builtSeq = n.hashSeq
	size := entryCount(n.entryList)
	if size == 0 {
		n.hashTable = nil
		return
	}
	buckets := nextPow2(size * 2)
	table := make([]*Entry, buckets)
	for e := n.entryList; e != nil; e = e.Next {
		if e.Kind == GroupMarker {
			continue
		}
		idx := int(e.FunctionName.Hash() % uint64(buckets))
		// chain within the bucket, reusing Next the way the original
		// reuses Entry::mNext both for the master list and the hash
		// chain view of it would be unsafe here (Next already threads
		// entryList); keep a separate chain pointer by prepending a
		// thin wrapper instead.
		table[idx] = chain(table[idx], e)
	}
	n.hashTable = table
}

// chain builds (or extends) a bucket's singly-linked view over entries
// without disturbing the master entryList's own Next links: it copies
// just enough state (FunctionName + a hash-table-local Next) into a
// shallow per-bucket shadow entry.
func chain(head *Entry, e *Entry) *Entry {
	shadow := &Entry{
		Namespace:    e.Namespace,
		FunctionName: e.FunctionName,
		Kind:         e.Kind,
		MinArgs:      e.MinArgs,
		MaxArgs:      e.MaxArgs,
		Usage:        e.Usage,
		Package:      e.Package,
		UserPtr:      e.UserPtr,
		Script:       e.Script,
		Native:       e.Native,
		Next:         head,
	}
	return shadow
}

func entryCount(head *Entry) int {
	n := 0
	for e := head; e != nil; e = e.Next {
		if e.Kind != GroupMarker {
			n++
		}
	}
	return n
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	if p == 0 {
		p = 1
	}
	return p
}

// ClearEntries drops every entry, used when hot-reloading a script file
// that re-declares everything in one namespace.
func (n *Namespace) ClearEntries() {
	n.entryList = nil
	n.hashTable = nil
	n.hashSeq++
}

// ClassLinkTo sets parent as this namespace's class-inheritance parent
// (script "class extends" chains, independent of package overriding).
// It refuses to create a cycle.
func (n *Namespace) ClassLinkTo(parent *Namespace) bool {
	for p := parent; p != nil; p = p.Parent {
		if p == n {
			return false
		}
	}
	n.Parent = parent
	if parent != nil {
		parent.RefCountToParent++
	}
	return true
}

// UnlinkClass removes the inheritance link to parent, if it is in fact
// this namespace's current parent.
func (n *Namespace) UnlinkClass(parent *Namespace) bool {
	if n.Parent != parent {
		return false
	}
	n.Parent = nil
	if parent != nil && parent.RefCountToParent > 0 {
		parent.RefCountToParent--
	}
	return true
}
