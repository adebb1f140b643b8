// Package trace implements execution tracing for the console runtime: a
// glob-filtered, mutex-guarded writer that a VM can turn on to log every
// function call, return, and exception it dispatches. Unlike a process-
// wide logger, a Tracer is owned by the single VM that created it, so
// multiple VMs in one process never share trace state or a filter set.
package trace

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Tracer logs dispatch events for one VM.
type Tracer struct {
	enabled bool
	filters []string
	writer  io.Writer
	mu      sync.Mutex
}

// New creates a Tracer. writer defaults to os.Stderr when nil.
func New(enabled bool, filters []string, writer io.Writer) *Tracer {
	if writer == nil {
		writer = os.Stderr
	}
	return &Tracer{enabled: enabled, filters: filters, writer: writer}
}

// Enabled reports whether this tracer emits anything at all.
func (t *Tracer) Enabled() bool { return t != nil && t.enabled }

func (t *Tracer) matchesFilter(name string) bool {
	if len(t.filters) == 0 {
		return true
	}
	for _, pattern := range t.filters {
		if matched, _ := filepath.Match(pattern, name); matched {
			return true
		}
	}
	return false
}

// Call logs entry into a namespace function, with argv already rendered
// to strings by the caller (the VM knows how to stringify a value.Value;
// this package doesn't need to).
func (t *Tracer) Call(fiberID uint64, funcName string, argv []string) {
	if !t.Enabled() || !t.matchesFilter(funcName) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, "[TRACE] fiber=%d CALL %s(%s)\n", fiberID, funcName, strings.Join(argv, ", "))
}

// Return logs a function's result.
func (t *Tracer) Return(fiberID uint64, funcName string, result string) {
	if !t.Enabled() || !t.matchesFilter(funcName) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, "[TRACE] fiber=%d RETURN %s => %s\n", fiberID, funcName, result)
}

// Exception logs an uncaught (or re-thrown) exception propagating out of
// funcName.
func (t *Tracer) Exception(fiberID uint64, funcName string, message string) {
	if !t.Enabled() || !t.matchesFilter(funcName) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, "[TRACE] fiber=%d EXCEPTION in %s: %s\n", fiberID, funcName, message)
}

// Suspend logs a fiber suspending (voluntary yield via suspend()/a
// blocking native call).
func (t *Tracer) Suspend(fiberID uint64, reason string) {
	if !t.Enabled() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, "[TRACE] fiber=%d SUSPEND %s\n", fiberID, reason)
}

// Resume logs a fiber resuming with an injected value already rendered
// to a display string.
func (t *Tracer) Resume(fiberID uint64, injected string) {
	if !t.Enabled() {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	fmt.Fprintf(t.writer, "[TRACE] fiber=%d RESUME <- %s\n", fiberID, injected)
}
