package fiber

import (
	"testing"

	"ember/trace"
	"ember/value"
	"ember/vm"
)

func TestSchedulerRunToCompletion(t *testing.T) {
	v := vm.New(trace.New(false, nil, nil))
	in := v.Interner

	block, err := vm.Compile(in, "test", "return 2 + 2;")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	sched := NewScheduler(v)
	h := sched.Spawn("main", vm.NewFrame(block, nil, 0))

	result, err := sched.RunToCompletion(h)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Uint() != 4 {
		t.Fatalf("expected 4, got %d", result.Uint())
	}

	if f := sched.Fiber(h); f != nil {
		t.Fatalf("expected fiber slot to be freed after completion")
	}
}

func TestSchedulerSuspendAndResume(t *testing.T) {
	v := vm.New(trace.New(false, nil, nil))
	in := v.Interner

	ns := v.Namespaces.Global()
	waitName := in.Intern("wait", false)
	waited := false
	ns.AddCommand(waitName, func(userPtr any, argv []value.Value) value.Value {
		if !waited {
			waited = true
			v.RequestSuspend("waiting")
		}
		return value.Value{}
	}, nil, "wait()", 0, 0)

	block, err := vm.Compile(in, "test", "wait(); return 7;")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	sched := NewScheduler(v)
	h := sched.Spawn("main", vm.NewFrame(block, nil, 0))

	result, err := sched.Resume(h, value.Value{})
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	if result.Uint() != 0 {
		t.Fatalf("expected zero value from suspended resume, got %d", result.Uint())
	}
	f := sched.Fiber(h)
	if f == nil {
		t.Fatalf("expected fiber to still be live while suspended")
	}
	if f.Status != StatusSuspended {
		t.Fatalf("expected suspended status, got %s", f.Status)
	}
	if f.LastSuspendReason != "waiting" {
		t.Fatalf("unexpected suspend reason %q", f.LastSuspendReason)
	}

	result, err = sched.RunToCompletion(h)
	if err != nil {
		t.Fatalf("resume after suspend: %v", err)
	}
	if result.Uint() != 7 {
		t.Fatalf("expected 7, got %d", result.Uint())
	}
}

func TestSchedulerTickAdvancesMultipleFibers(t *testing.T) {
	v := vm.New(trace.New(false, nil, nil))
	in := v.Interner

	ns := v.Namespaces.Global()
	waitName := in.Intern("wait", false)
	calls := 0
	ns.AddCommand(waitName, func(userPtr any, argv []value.Value) value.Value {
		calls++
		if calls <= 2 {
			v.RequestSuspend("waiting")
		}
		return value.Value{}
	}, nil, "wait()", 0, 0)

	blockA, err := vm.Compile(in, "a", "wait(); return 1;")
	if err != nil {
		t.Fatalf("compile a: %v", err)
	}
	blockB, err := vm.Compile(in, "b", "wait(); return 2;")
	if err != nil {
		t.Fatalf("compile b: %v", err)
	}

	sched := NewScheduler(v)
	ha := sched.Spawn("a", vm.NewFrame(blockA, nil, 0))
	hb := sched.Spawn("b", vm.NewFrame(blockB, nil, 0))

	sched.Tick()
	if fa := sched.Fiber(ha); fa == nil || fa.Status != StatusSuspended {
		t.Fatalf("expected fiber a suspended after first tick")
	}
	if fb := sched.Fiber(hb); fb == nil || fb.Status != StatusSuspended {
		t.Fatalf("expected fiber b suspended after first tick")
	}

	sched.Tick()
	if fa := sched.Fiber(ha); fa != nil {
		t.Fatalf("expected fiber a to have completed and been freed")
	}
	if fb := sched.Fiber(hb); fb != nil {
		t.Fatalf("expected fiber b to have completed and been freed")
	}
}

func TestSnapshotSerializeRestoreRoundTrip(t *testing.T) {
	v := vm.New(trace.New(false, nil, nil))
	in := v.Interner

	ns := v.Namespaces.Global()
	waitName := in.Intern("wait", false)
	waited := false
	ns.AddCommand(waitName, func(userPtr any, argv []value.Value) value.Value {
		if !waited {
			waited = true
			v.RequestSuspend("waiting")
		}
		return value.Value{}
	}, nil, "wait()", 0, 0)

	block, err := vm.Compile(in, "test", "wait(); return 9;")
	if err != nil {
		t.Fatalf("compile: %v", err)
	}

	sched := NewScheduler(v)
	h := sched.Spawn("main", vm.NewFrame(block, nil, 0))
	if _, err := sched.Resume(h, value.Value{}); err != nil {
		t.Fatalf("resume: %v", err)
	}
	if f := sched.Fiber(h); f == nil || f.Status != StatusSuspended {
		t.Fatalf("expected fiber suspended before snapshotting")
	}

	data := sched.Serialize()

	restored := NewScheduler(v)
	lookup := func(name string) *vm.CodeBlock {
		if name == "test" {
			return block
		}
		return nil
	}
	if err := restored.Restore(data, lookup); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if len(restored.order) != 1 {
		t.Fatalf("expected 1 restored fiber, got %d", len(restored.order))
	}

	result, err := restored.RunToCompletion(restored.order[0])
	if err != nil {
		t.Fatalf("run restored fiber: %v", err)
	}
	if result.Uint() != 9 {
		t.Fatalf("expected 9, got %d", result.Uint())
	}
}
