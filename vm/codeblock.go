package vm

import "ember/intern"

// CodeBlock is one compiled, immutable unit of bytecode: a top-level
// script body, or a single function's body addressed by offset within a
// shared block when several functions are compiled from one source file
// (the original engine's "one CodeBlock per compiled file, functions as
// offsets into it" layout, kept here because it's what lets
// FUNC_DECL/CALLFUNC address a sibling function with a plain uint32
// rather than a separate allocation per function).
type CodeBlock struct {
	Name       string
	Code       []uint32
	Idents     []intern.STE
	Strings    []string
	Floats     []float64
	LineBreaks []uint32 // pairs of (code offset, source line)

	// Functions maps a function name's interned identifier to its entry
	// offset within Code, populated by compile.go as FUNC_DECL nodes are
	// emitted.
	Functions map[intern.STE]uint32

	refCount int
}

// LineForOffset returns the source line active at code offset ip, or 0 if
// no line-break record covers it yet.
func (b *CodeBlock) LineForOffset(ip int) uint32 {
	line := uint32(0)
	for i := 0; i+1 < len(b.LineBreaks); i += 2 {
		if int(b.LineBreaks[i]) > ip {
			break
		}
		line = b.LineBreaks[i+1]
	}
	return line
}

// Retain/Release implement the manual refcount discipline the rest of the
// runtime uses for shared, non-GC'd allocations (matching value.HeapList
// and the object model's own convention).
func (b *CodeBlock) Retain() { b.refCount++ }

// Release drops a reference; the caller drops the last pointer to b once
// this returns true.
func (b *CodeBlock) Release() bool {
	b.refCount--
	return b.refCount <= 0
}
