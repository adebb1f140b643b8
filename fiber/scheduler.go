package fiber

import (
	"fmt"

	"ember/value"
	"ember/vm"

	"github.com/google/uuid"
)

// Scheduler runs fibers cooperatively: only one Fiber executes at a time
// (Resume blocks the calling goroutine until that fiber either finishes
// or suspends), matching the runtime's single-threaded execution model —
// concurrency comes from interleaving many suspended fibers, not from
// parallel Go goroutines.
type Scheduler struct {
	VM    *vm.VM
	table Table
	order []Handle

	// lastSnapshotID is the correlation id of the most recent Serialize
	// call or Restore'd blob — an embedder's debugger logs this alongside
	// an EVAL command so a later bug report can be tied back to the exact
	// snapshot it ran against.
	lastSnapshotID uuid.UUID
}

// NewScheduler creates a Scheduler bound to a VM.
func NewScheduler(v *vm.VM) *Scheduler {
	return &Scheduler{VM: v}
}

// Spawn compiles nothing itself — it wraps an already-built Frame (from
// vm.Compile + vm.NewFrame) as a new fiber and returns its Handle.
func (s *Scheduler) Spawn(name string, entry *vm.Frame) Handle {
	id := s.VM.NextFiberID()
	f := New(id, 0, name, s.VM, entry)
	h := s.table.Alloc(f)
	f.Slot = h.Index()
	entry.FiberSlot = h.Index()
	s.order = append(s.order, h)
	return h
}

// Fiber resolves a Handle to its Fiber, or nil if stale.
func (s *Scheduler) Fiber(h Handle) *Fiber { return s.table.Resolve(h) }

// Len reports how many fibers this scheduler currently has live (ready,
// running, or suspended) — dead fibers are freed from the table as soon
// as Resume/Tick observes them, so this is always a live count.
func (s *Scheduler) Len() int {
	n := 0
	for _, h := range s.order {
		if s.table.Resolve(h) != nil {
			n++
		}
	}
	return n
}

// LastSnapshotID returns the correlation id of the most recent Serialize
// call or successfully Restore'd blob, the zero UUID if neither has
// happened yet.
func (s *Scheduler) LastSnapshotID() uuid.UUID { return s.lastSnapshotID }

// Resume runs the fiber h addresses one scheduling quantum (until it
// completes, suspends, or throws).
func (s *Scheduler) Resume(h Handle, inject value.Value) (value.Value, error) {
	f := s.table.Resolve(h)
	if f == nil {
		return value.Value{}, fmt.Errorf("fiber: stale or unknown handle %d", h)
	}
	result, err := f.Resume(inject)
	if f.Status == StatusDead {
		s.table.Free(h)
	}
	return result, err
}

// RunToCompletion repeatedly resumes h with a zero injected value until
// it finishes — a convenience for scripts that never call a blocking
// builtin, so callers don't need to hand-roll the resume loop for the
// common synchronous case.
func (s *Scheduler) RunToCompletion(h Handle) (value.Value, error) {
	for {
		f := s.table.Resolve(h)
		if f == nil {
			return value.Value{}, fmt.Errorf("fiber: stale or unknown handle %d", h)
		}
		result, err := s.Resume(h, value.Value{})
		if err != nil || f.Status != StatusSuspended {
			return result, err
		}
	}
}

// Tick runs one scheduling pass over every currently-known fiber still
// suspended or ready, in spawn order, injecting a zero value into each —
// the shape an embedder's server loop uses to drive many fibers forward
// once per frame/tick rather than blocking synchronously on any one of
// them.
func (s *Scheduler) Tick() {
	for _, h := range s.order {
		f := s.table.Resolve(h)
		if f == nil || f.Status == StatusDead {
			continue
		}
		if f.Status == StatusReady || f.Status == StatusSuspended {
			s.Resume(h, value.Value{})
		}
	}
	s.compact()
}

func (s *Scheduler) compact() {
	live := s.order[:0]
	for _, h := range s.order {
		if f := s.table.Resolve(h); f != nil {
			live = append(live, h)
		}
	}
	s.order = live
}
