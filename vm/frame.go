package vm

import (
	"ember/intern"
	"ember/value"
)

// Frame is one call's execution state: its code and instruction pointer,
// its local variable dictionary, the typed operand stacks opcodes push
// and pop, and the current-object/current-var/current-field addressing
// registers that SETCUROBJECT/SETCURVAR/SETCURFIELD point at before a
// LOADVAR_*/LOADFIELD_*/SAVEVAR_*/SAVEFIELD_* instruction acts on them.
//
// Multiple stacks, not one boxed interface{} stack: float and uint
// operands are pushed and popped from separate typed stacks (matching
// the dispatch loop's opcode families, each of which already knows which
// stack it wants), and a parallel string-result stack handles
// STR-producing opcodes, so no runtime type switch is needed on the hot
// path.
type Frame struct {
	Code *CodeBlock
	IP   int

	Locals *value.Dictionary

	UintStack  []uint64
	FloatStack []float64
	StrStack   []string

	CurVar      *value.Entry
	CurObject   *VMObject
	CurField    intern.STE
	CurFieldIdx int

	Iters []*iterState
	Tries []tryHandler
	Build *objectBuild

	Caller *Frame
	// CallDepth is this frame's distance from the outermost frame in the
	// current fiber, used to validate eval-in-frame dictionary references
	// (value.Dictionary.setFrom) against the frame they were bound to.
	CallDepth int

	// FiberSlot is this frame's fiber's string-stack zone index (see
	// value.FuncZone), so STR-producing opcodes know which fiber's string
	// stack backs a ZoneFuncBase value they create.
	FiberSlot int
}

// NewFrame starts a fresh call frame executing code, chained to caller
// (nil for a fiber's outermost frame).
func NewFrame(code *CodeBlock, caller *Frame, fiberSlot int) *Frame {
	depth := 0
	if caller != nil {
		depth = caller.CallDepth + 1
	}
	return &Frame{
		Code:      code,
		Locals:    value.NewDictionary(),
		Caller:    caller,
		CallDepth: depth,
		FiberSlot: fiberSlot,
	}
}

func (f *Frame) pushUint(v uint64)   { f.UintStack = append(f.UintStack, v) }
func (f *Frame) pushFloat(v float64) { f.FloatStack = append(f.FloatStack, v) }
func (f *Frame) pushStr(s string)    { f.StrStack = append(f.StrStack, s) }

func (f *Frame) popUint() uint64 {
	if len(f.UintStack) == 0 {
		return 0
	}
	v := f.UintStack[len(f.UintStack)-1]
	f.UintStack = f.UintStack[:len(f.UintStack)-1]
	return v
}

func (f *Frame) popFloat() float64 {
	if len(f.FloatStack) == 0 {
		return 0
	}
	v := f.FloatStack[len(f.FloatStack)-1]
	f.FloatStack = f.FloatStack[:len(f.FloatStack)-1]
	return v
}

func (f *Frame) popStr() string {
	if len(f.StrStack) == 0 {
		return ""
	}
	v := f.StrStack[len(f.StrStack)-1]
	f.StrStack = f.StrStack[:len(f.StrStack)-1]
	return v
}

func (f *Frame) peekUint() uint64 {
	if len(f.UintStack) == 0 {
		return 0
	}
	return f.UintStack[len(f.UintStack)-1]
}

// pushTry records a handler whose catch body begins at catchIP, capturing
// the current operand-stack depths so THROW can unwind to exactly this
// point.
func (f *Frame) pushTry(catchIP int) {
	f.Tries = append(f.Tries, tryHandler{
		catchIP:    catchIP,
		uintDepth:  len(f.UintStack),
		floatDepth: len(f.FloatStack),
	})
}

// popTry discards the innermost try handler without using it (normal
// fall-through past the protected region).
func (f *Frame) popTry() {
	if len(f.Tries) > 0 {
		f.Tries = f.Tries[:len(f.Tries)-1]
	}
}

// catch pops and returns the innermost try handler for THROW to jump to,
// truncating the operand stacks back to the depths recorded when it was
// pushed. Returns ok=false if no handler is open in this frame (the
// caller must unwind to f.Caller and try again there).
func (f *Frame) catch() (tryHandler, bool) {
	if len(f.Tries) == 0 {
		return tryHandler{}, false
	}
	h := f.Tries[len(f.Tries)-1]
	f.Tries = f.Tries[:len(f.Tries)-1]
	if h.uintDepth <= len(f.UintStack) {
		f.UintStack = f.UintStack[:h.uintDepth]
	}
	if h.floatDepth <= len(f.FloatStack) {
		f.FloatStack = f.FloatStack[:h.floatDepth]
	}
	return h, true
}
