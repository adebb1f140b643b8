package fiber

import (
	"fmt"

	"ember/value"
	"ember/vm"
)

// Status is a Fiber's lifecycle state.
type Status int

const (
	StatusReady Status = iota
	StatusRunning
	StatusSuspended
	StatusDead
)

func (s Status) String() string {
	switch s {
	case StatusReady:
		return "ready"
	case StatusRunning:
		return "running"
	case StatusSuspended:
		return "suspended"
	case StatusDead:
		return "dead"
	}
	return "?"
}

// Fiber is one cooperatively-scheduled script execution: a single call
// frame chain plus enough state to suspend mid-instruction and resume
// later with an injected value (the result of whatever blocking
// operation it was waiting on).
type Fiber struct {
	ID     uint64
	Slot   int
	Status Status
	Name   string

	frame  *vm.Frame
	vm     *vm.VM

	// LastSuspendReason is the reason string the most recent
	// SuspendRequest carried, surfaced to an embedder's scheduler/REPL.
	LastSuspendReason string

	result    value.Value
	resultErr error
}

// New creates a fiber ready to run code starting at entry's current IP
// (normally 0, a fresh top-level Frame).
func New(id uint64, slot int, name string, v *vm.VM, entry *vm.Frame) *Fiber {
	return &Fiber{ID: id, Slot: slot, Name: name, vm: v, frame: entry, Status: StatusReady}
}

// Resume runs (or continues) this fiber until it returns, suspends again,
// or throws uncaught. inject is pushed onto the frame's uint stack before
// resuming a previously-suspended fiber (the value a blocking call was
// waiting on); it's ignored the first time a fiber is run.
func (f *Fiber) Resume(inject value.Value) (value.Value, error) {
	if f.Status == StatusDead {
		return value.Value{}, fmt.Errorf("fiber %d: resume after completion", f.ID)
	}
	if f.Status == StatusSuspended {
		f.frame.UintStack = append(f.frame.UintStack, inject.Uint())
		if f.vm.Tracer.Enabled() {
			f.vm.Tracer.Resume(f.ID, f.vm.StringOf(inject))
		}
	}
	f.Status = StatusRunning

	result, suspend, err := f.vm.Run(f.frame)
	switch {
	case err != nil:
		f.Status = StatusDead
		f.resultErr = err
		if f.vm.Tracer.Enabled() {
			f.vm.Tracer.Exception(f.ID, f.Name, err.Error())
		}
		return value.Value{}, err
	case suspend != nil:
		f.Status = StatusSuspended
		f.LastSuspendReason = suspend.Reason
		if f.vm.Tracer.Enabled() {
			f.vm.Tracer.Suspend(f.ID, suspend.Reason)
		}
		return value.Value{}, nil
	default:
		f.Status = StatusDead
		f.result = result
		return result, nil
	}
}

// Result returns the value a completed fiber returned (zero value until
// Status is StatusDead with no error).
func (f *Fiber) Result() value.Value { return f.result }
