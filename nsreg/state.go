package nsreg

import (
	"ember/intern"

	"github.com/dolthub/swiss"
)

// State owns every Namespace in one VM: the flat list used for lookup,
// the distinguished global namespace, and the stack of currently-active
// packages that can shadow entries on namespaces they target.
//
// Package activation in the original engine re-threads each affected
// namespace's parent pointer to insert the package's namespace (same
// name, different mPackage) in front of the base namespace, so lookup
// walks into the override before falling through to the original
// definition; deactivating does the reverse. This rewrite keeps that
// same re-threading approach rather than, say, a per-name override
// stack; LookupRecursive searches the spliced-in package namespaces
// ahead of the base namespace they follow.
type State struct {
	interner *intern.Interner

	byKey  *swiss.Map[nsKey, *Namespace]
	list   []*Namespace
	global *Namespace

	active []intern.STE
}

type nsKey struct {
	name intern.STE
	pkg  intern.STE
}

// NewState creates a State with an initialized, empty global namespace.
func NewState(in *intern.Interner) *State {
	s := &State{interner: in, byKey: swiss.NewMap[nsKey, *Namespace](16)}
	s.global = s.Lookup(in.Empty(), intern.STE{})
	return s
}

// Global returns the root namespace that unqualified script functions
// are declared in.
func (s *State) Global() *Namespace { return s.global }

// Find returns the namespace for (name, pkg) if it already exists.
func (s *State) Find(name, pkg intern.STE) *Namespace {
	ns, _ := s.byKey.Get(nsKey{name, pkg})
	return ns
}

// Lookup finds or creates the namespace for (name, pkg).
func (s *State) Lookup(name, pkg intern.STE) *Namespace {
	key := nsKey{name, pkg}
	if ns, ok := s.byKey.Get(key); ok {
		return ns
	}
	ns := newNamespace(name, pkg)
	s.byKey.Put(key, ns)
	s.list = append(s.list, ns)
	return ns
}

// IsPackage reports whether name is currently on the active-package
// stack.
func (s *State) IsPackage(name intern.STE) bool {
	for _, p := range s.active {
		if p == name {
			return true
		}
	}
	return false
}

// ActivatePackage pushes name onto the active stack and re-threads every
// base namespace that has a same-named (name, pkg=name) override so
// lookups hit the package's entries first.
func (s *State) ActivatePackage(name intern.STE) {
	if s.IsPackage(name) {
		return
	}
	s.active = append(s.active, name)
	s.relink()
}

// DeactivatePackage pops name (and everything activated after it, the
// way the original unwinds down to a target package) off the active
// stack and re-threads namespaces back to their state without it.
func (s *State) DeactivatePackage(name intern.STE) {
	for i, p := range s.active {
		if p == name {
			s.active = s.active[:i]
			break
		}
	}
	s.relink()
}

// relink recomputes every base namespace's Parent chain from scratch
// given the current active-package stack, innermost (most recently
// activated) package first.
func (s *State) relink() {
	for _, ns := range s.list {
		if !ns.Package.IsEmpty() {
			continue // package namespaces are never themselves re-threaded
		}
		realParent := s.unlinkPackagesFrom(ns)
		s.relinkPackagesOnto(ns, realParent)
	}
}

// unlinkPackagesFrom strips any package namespaces off the front of ns's
// parent chain and returns the real (class-inheritance) parent beyond
// them, so relinkPackagesOnto can reattach it once the new package chain
// is rebuilt.
func (s *State) unlinkPackagesFrom(ns *Namespace) *Namespace {
	cur := ns.Parent
	for cur != nil && !cur.Package.IsEmpty() {
		next := cur.Parent
		cur.Parent = nil
		cur = next
	}
	ns.Parent = nil
	return cur
}

func (s *State) relinkPackagesOnto(ns *Namespace, realParent *Namespace) {
	tail := ns
	for i := len(s.active) - 1; i >= 0; i-- {
		pkgNs := s.Find(ns.Name, s.active[i])
		if pkgNs == nil {
			continue
		}
		tail.Parent = pkgNs
		tail = pkgNs
	}
	tail.Parent = realParent
}

// ActivePackages returns the current active-package stack, innermost
// last (most recently activated).
func (s *State) ActivePackages() []intern.STE {
	out := make([]intern.STE, len(s.active))
	copy(out, s.active)
	return out
}
