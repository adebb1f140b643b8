package nsreg

import (
	"testing"

	"ember/intern"
	"ember/value"
)

func TestAddCommandAndLookup(t *testing.T) {
	in := intern.New()
	s := NewState(in)
	ns := s.Lookup(in.Intern("Foo", false), intern.STE{})

	called := false
	ns.AddCommand(in.Intern("bar", false), func(userPtr any, argv []value.Value) value.Value {
		called = true
		return value.NewUint(1)
	}, nil, "bar(...)", 0, 0)

	e := ns.Lookup(in.Intern("bar", false))
	if e == nil {
		t.Fatalf("expected to find entry for bar")
	}
	e.Native(nil, nil)
	if !called {
		t.Fatalf("native function was not invoked")
	}
}

func TestLookupRecursiveThroughClassParent(t *testing.T) {
	in := intern.New()
	s := NewState(in)
	base := s.Lookup(in.Intern("Base", false), intern.STE{})
	derived := s.Lookup(in.Intern("Derived", false), intern.STE{})

	base.AddCommand(in.Intern("speak", false), func(any, []value.Value) value.Value {
		return value.NewUint(42)
	}, nil, "", 0, 0)

	if derived.LookupRecursive(in.Intern("speak", false)) != nil {
		t.Fatalf("expected no resolution before linking")
	}
	if !derived.ClassLinkTo(base) {
		t.Fatalf("ClassLinkTo failed")
	}
	e := derived.LookupRecursive(in.Intern("speak", false))
	if e == nil {
		t.Fatalf("expected recursive lookup to find speak via parent")
	}
}

func TestClassLinkToRejectsCycle(t *testing.T) {
	in := intern.New()
	s := NewState(in)
	a := s.Lookup(in.Intern("A", false), intern.STE{})
	b := s.Lookup(in.Intern("B", false), intern.STE{})
	if !a.ClassLinkTo(b) {
		t.Fatalf("A->B link should succeed")
	}
	if b.ClassLinkTo(a) {
		t.Fatalf("B->A should be rejected: would form a cycle")
	}
}

func TestPackageActivationOverridesAndDeactivateRestores(t *testing.T) {
	in := intern.New()
	s := NewState(in)
	name := in.Intern("echo", false)

	base := s.Lookup(name, intern.STE{})
	base.AddCommand(in.Intern("hello", false), func(any, []value.Value) value.Value {
		return value.NewUint(1)
	}, nil, "", 0, 0)

	pkgName := in.Intern("override", false)
	pkg := s.Lookup(name, pkgName)
	pkg.AddCommand(in.Intern("hello", false), func(any, []value.Value) value.Value {
		return value.NewUint(2)
	}, nil, "", 0, 0)

	if got := base.LookupRecursive(in.Intern("hello", false)); got.Native(nil, nil).Uint() != 1 {
		t.Fatalf("expected base behavior before package activation")
	}

	s.ActivatePackage(pkgName)
	if !s.IsPackage(pkgName) {
		t.Fatalf("expected pkgName to be active")
	}
	got := base.LookupRecursive(in.Intern("hello", false))
	if got == nil || got.Native(nil, nil).Uint() != 2 {
		t.Fatalf("expected package override to shadow base entry")
	}

	s.DeactivatePackage(pkgName)
	if s.IsPackage(pkgName) {
		t.Fatalf("expected pkgName to be inactive after deactivate")
	}
	got = base.LookupRecursive(in.Intern("hello", false))
	if got == nil || got.Native(nil, nil).Uint() != 1 {
		t.Fatalf("expected base behavior restored after deactivation")
	}
}

func TestMarkGroupDoesNotParticipateInLookup(t *testing.T) {
	in := intern.New()
	s := NewState(in)
	ns := s.Lookup(in.Intern("Docs", false), intern.STE{})
	ns.MarkGroup("Group A", "some group")
	if ns.Lookup(in.Intern("Group A", false)) != nil {
		t.Fatalf("group markers must not be resolvable as functions")
	}
}
