package vm

import (
	"testing"

	"ember/intern"
	"ember/trace"
)

func TestCompileTopLevelArithmeticReturn(t *testing.T) {
	in := intern.New()
	block, err := Compile(in, "test", "return 2 * 21;")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	v := New(trace.New(false, nil, nil))
	fr := NewFrame(block, nil, 0)
	result, suspend, err := v.Run(fr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if suspend != nil {
		t.Fatalf("unexpected suspend: %s", suspend.Reason)
	}
	if result.Uint() != 42 {
		t.Fatalf("expected 42, got %d", result.Uint())
	}
}

func TestCompilePassingAssertDoesNotThrow(t *testing.T) {
	in := intern.New()
	block, err := Compile(in, "test", "assert(1 + 2 == 3);")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	v := New(trace.New(false, nil, nil))
	fr := NewFrame(block, nil, 0)
	if _, _, err := v.Run(fr); err != nil {
		t.Fatalf("run: %v", err)
	}
}

func TestCompileFailingAssertThrows(t *testing.T) {
	in := intern.New()
	block, err := Compile(in, "test", "assert(1 == 2);")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	v := New(trace.New(false, nil, nil))
	fr := NewFrame(block, nil, 0)
	if _, _, err := v.Run(fr); err == nil {
		t.Fatalf("expected assertion failure error")
	}
}

func TestCompileFunctionCallResolvesByName(t *testing.T) {
	in := intern.New()
	src := `
		function add($a, $b) {
			return %a + %b;
		}
		return add(19, 23);
	`
	block, err := Compile(in, "test", src)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if _, ok := block.Functions[in.Intern("add", false)]; !ok {
		t.Fatalf("expected function offset recorded for add")
	}

	v := New(trace.New(false, nil, nil))
	ns := v.Namespaces.Global()
	addName := in.Intern("add", false)
	ns.AddFunction(addName, block, block.Functions[addName], "add(%a,%b)")

	fr := NewFrame(block, nil, 0)
	result, suspend, err := v.Run(fr)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if suspend != nil {
		t.Fatalf("unexpected suspend: %s", suspend.Reason)
	}
	if result.Uint() != 42 {
		t.Fatalf("expected 42, got %d", result.Uint())
	}
}

func TestPrecompileAndCompileAgreeOnSize(t *testing.T) {
	in := intern.New()
	// A function mixing for, if/else, continue, while, compound assignment
	// and return exercises the dry-run/real-run size-agreement assertion
	// inside Compile itself;
	// Compile returning no error here is the assertion passing.
	src := `
		function walk($n) {
			%total = 0;
			for (%i = 0; %i < %n; %i += 1) {
				if (%i % 2 == 0) {
					%total += %i;
				} else {
					continue;
				}
			}
			%j = 0;
			while (%j < %n) {
				%j += 1;
			}
			return %total;
		}
	`
	if _, err := Compile(in, "test", src); err != nil {
		t.Fatalf("compile: %v", err)
	}
}
