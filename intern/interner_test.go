package intern

import "testing"

func TestInternStability(t *testing.T) {
	in := New()
	a := in.Intern("Foo", false)
	b := in.Intern("FOO", false)
	c := in.Intern("foo", false)
	if a.entry != b.entry || b.entry != c.entry {
		t.Fatalf("case-insensitive intern should fold to one handle, got %p %p %p", a.entry, b.entry, c.entry)
	}

	d := in.Intern("Foo", true)
	e := in.Intern("foo", true)
	if d.entry == e.entry {
		t.Fatalf("case-sensitive intern should not fold casings")
	}
	if in.Intern("Foo", true).entry != d.entry {
		t.Fatalf("case-sensitive intern should be stable across calls")
	}
}

func TestInternPointerEquality(t *testing.T) {
	in := New()
	a := in.Intern("hello", true)
	b := in.Intern("hello", true)
	if a.entry != b.entry {
		t.Fatalf("intern(s) == intern(s) must hold")
	}
	if a.String() != "hello" {
		t.Fatalf("String() = %q, want hello", a.String())
	}
}

func TestEmptySentinel(t *testing.T) {
	in := New()
	if !in.Empty().IsEmpty() {
		t.Fatalf("Empty() should be the empty-string sentinel")
	}
	if got := in.Intern("", true); !got.IsEmpty() {
		t.Fatalf("interning the empty string should return the sentinel")
	}
}

func TestLookupWithoutCreating(t *testing.T) {
	in := New()
	if _, ok := in.Lookup("never-interned", true); ok {
		t.Fatalf("Lookup should not find an un-interned string")
	}
	in.Intern("now-interned", true)
	if _, ok := in.Lookup("now-interned", true); !ok {
		t.Fatalf("Lookup should find a previously interned string")
	}
}
