package value

import (
	"testing"

	"ember/intern"
)

func TestInlineNumericRoundTrip(t *testing.T) {
	u := NewUint(42)
	if !u.Inline() || u.Uint() != 42 {
		t.Fatalf("NewUint round trip failed: %+v", u)
	}
	f := NewFloat(3.5)
	if !f.Inline() || f.Float() != 3.5 {
		t.Fatalf("NewFloat round trip failed: %+v", f)
	}
}

func TestFuncZoneFiberSlot(t *testing.T) {
	z := FuncZone(3)
	v := Value{Zone: z}
	slot, ok := v.FiberSlot()
	if !ok || slot != 3 {
		t.Fatalf("FiberSlot() = %d,%v want 3,true", slot, ok)
	}
}

func TestReturnBufferInvalidationOnGrow(t *testing.T) {
	rb := NewReturnBuffer(4)
	v := rb.WriteString("hi")
	got, err := rb.ReadString(v)
	if err != nil || got != "hi" {
		t.Fatalf("ReadString immediately after write: %q, %v", got, err)
	}

	// Force a grow well past the original capacity by requesting a much
	// larger string; the previously minted Return value must now report
	// staleness rather than silently returning garbage bytes.
	big := make([]byte, 0, 4096)
	for i := 0; i < 4096; i++ {
		big = append(big, 'x')
	}
	rb.WriteString(string(big))

	if _, err := rb.ReadString(v); err == nil {
		t.Fatalf("expected stale-epoch error after return buffer grew")
	}
}

func TestHeapBalance(t *testing.T) {
	var list HeapList
	v, a := list.CreateHeapRef(16, TypeString)
	if list.Count() != 1 {
		t.Fatalf("expected 1 live heap alloc, got %d", list.Count())
	}
	if list.ResolveHeap(v) != a {
		t.Fatalf("ResolveHeap did not round-trip")
	}
	list.ReleaseHeapRef(a)
	if list.Count() != 0 {
		t.Fatalf("expected 0 live heap allocs after release, got %d", list.Count())
	}
}

func TestStringStackFramesAndArgv(t *testing.T) {
	s := NewStringStack(64)
	s.PushFrame()
	s.SetString("hello")
	s.Advance()
	s.SetString("world")

	argv := s.GetArgcArgv("myfunc")
	if len(argv) != 3 || argv[0] != "myfunc" || argv[1] != "hello" || argv[2] != "world" {
		t.Fatalf("unexpected argv: %#v", argv)
	}
	s.PopFrame()
	if s.FrameDepth() != 0 {
		t.Fatalf("expected 0 frames after pop, got %d", s.FrameDepth())
	}
}

func TestStringStackConcatRewind(t *testing.T) {
	s := NewStringStack(64)
	s.PushFrame()
	s.SetString("a")
	s.AdvanceChar(' ')
	s.SetString("b")
	s.AdvanceChar(' ')
	s.SetString("c")
	got := s.RewindTerminate()
	if got != "a b c" {
		t.Fatalf("RewindTerminate() = %q, want %q", got, "a b c")
	}
}

func TestDictionaryReferenceMode(t *testing.T) {
	in := intern.New()
	owner := NewDictionary()
	ref := NewReferenceDictionary(owner, 1)

	e := owner.Create(in.Intern("x", true))
	e.Value = NewUint(7)

	got := ref.Lookup("x")
	if got == nil || got.Value.Uint() != 7 {
		t.Fatalf("reference dictionary did not see owner's entry")
	}
	if !ref.IsReference() {
		t.Fatalf("expected reference dictionary to report IsReference()")
	}
}
