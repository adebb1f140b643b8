package vm

import "ember/intern"

// FixType says what kind of patch-list entry a pending fixup is: a loop's
// break target, its continue target, or a plain forward jump patched once
// its destination is known.
type FixType int

const (
	FixBreak FixType = iota
	FixContinue
	FixLoopBlockStart
)

type fixEntry struct {
	kind FixType
	pos  int // code offset of the jump operand to patch
}

// fixScope is one nested loop's pending break/continue fixups, pushed on
// loop entry and popped (and resolved) on loop exit — mirrors the
// original compiler's mFixList/mFixStack/mFixLoopStack trio collapsed
// into one stack-of-scopes.
type fixScope struct {
	breaks    []int
	continues []int
}

// varSlot tracks one local variable's declared type across nested scopes,
// the way the original compiler's mUsedVars/pushVarStack/popVarStack pair
// lets a loop body shadow an outer variable's type and restore it after.
type varSlot struct {
	name intern.STE
	typ  int32
}

// CodeStream is the two-phase bytecode emitter: a script is walked twice,
// once in dry-run mode (sizes only, no bytes written) to discover forward
// jump targets and validate that the AST alone determines code size, and
// once for real. Byte-identical length between the two passes is the
// compiler's central invariant: any AST shape whose dry-run size differs
// from its real-emission size is a bug in an opcode's emitter, not a
// property of the input program.
type CodeStream struct {
	dryRun bool

	code     []uint32
	idents   []intern.STE
	strings  []string
	floats   []float64
	lineMap  []uint32 // code offset -> source line, sparse (only at statement starts)
	breaks   uint32

	varStack  []varSlot
	fixStack  []*fixScope
}

// NewCodeStream creates an emitter. When dryRun is true, emit/emitSTE only
// advance the position counter; no bytes, idents, strings, or floats are
// recorded. Two CodeStreams — one dry, one real — are used per compile so
// their final tell() can be compared.
func NewCodeStream(dryRun bool) *CodeStream {
	return &CodeStream{dryRun: dryRun}
}

// tell returns the current write position, in words.
func (c *CodeStream) tell() int { return len(c.code) }

// Tell is the exported form used by compile.go to assert precompile/compile
// size agreement.
func (c *CodeStream) Tell() int { return c.tell() }

// emit appends one raw code word (an opcode or an immediate operand).
func (c *CodeStream) emit(word uint32) int {
	pos := c.tell()
	if !c.dryRun {
		c.code = append(c.code, word)
	} else {
		c.code = append(c.code, 0) // keep tell() meaningful without storing real data
	}
	return pos
}

// emitOp appends an opcode.
func (c *CodeStream) emitOp(op Op) int { return c.emit(uint32(op)) }

// patch overwrites the word at pos (already emitted) with word — used to
// back-fill a forward jump target once its destination is known.
func (c *CodeStream) patch(pos int, word uint32) {
	if pos < 0 || pos >= len(c.code) {
		return
	}
	c.code[pos] = word
}

// emitSTE appends an identifier/string-table reference: the operand is an
// index into this stream's ident table (a deliberate simplification of
// the original's inline-pointer-patched identifier slot — Go has no
// portable way to park a *STE inside a uint32 code word, so instead the
// operand is an index into a side table resolved at dispatch time).
func (c *CodeStream) emitSTE(ste intern.STE) int {
	idx := len(c.idents)
	if !c.dryRun {
		c.idents = append(c.idents, ste)
	}
	return c.emit(uint32(idx))
}

// emitString interns a string literal into this stream's literal pool and
// emits its index.
func (c *CodeStream) emitString(s string) int {
	idx := len(c.strings)
	if !c.dryRun {
		c.strings = append(c.strings, s)
	}
	return c.emit(uint32(idx))
}

// emitFloat interns a float literal into this stream's literal pool and
// emits its index.
func (c *CodeStream) emitFloat(f float64) int {
	idx := len(c.floats)
	if !c.dryRun {
		c.floats = append(c.floats, f)
	}
	return c.emit(uint32(idx))
}

// inLoop reports whether a fix scope is currently open, i.e. whether a
// break/continue statement at this point in the walk is legal.
func (c *CodeStream) inLoop() bool { return len(c.fixStack) > 0 }

// pushFixScope opens a new loop's break/continue fixup scope.
func (c *CodeStream) pushFixScope() {
	c.fixStack = append(c.fixStack, &fixScope{})
}

// popFixScope closes the innermost loop's fixup scope, patching every
// pending break to breakTarget and every pending continue to
// continueTarget.
func (c *CodeStream) popFixScope(breakTarget, continueTarget uint32) {
	if len(c.fixStack) == 0 {
		return
	}
	top := c.fixStack[len(c.fixStack)-1]
	c.fixStack = c.fixStack[:len(c.fixStack)-1]
	for _, pos := range top.breaks {
		c.patch(pos, breakTarget)
	}
	for _, pos := range top.continues {
		c.patch(pos, continueTarget)
	}
}

// emitFix records a break or continue jump at the current position for
// later resolution by the enclosing popFixScope, and emits a placeholder
// jump target word.
func (c *CodeStream) emitFix(kind FixType) int {
	pos := c.emit(0)
	if len(c.fixStack) > 0 {
		top := c.fixStack[len(c.fixStack)-1]
		switch kind {
		case FixBreak:
			top.breaks = append(top.breaks, pos)
		case FixContinue:
			top.continues = append(top.continues, pos)
		}
	}
	return pos
}

// fixLoop is a convenience wrapper used at a loop's natural end: it closes
// the innermost fix scope with breakTarget pointed just past the loop and
// continueTarget pointed at the loop's re-test/increment step.
func (c *CodeStream) fixLoop(breakTarget, continueTarget int) {
	c.popFixScope(uint32(breakTarget), uint32(continueTarget))
}

// addBreakLine records that source line ln begins at the current code
// offset, for stack-trace and debugger line lookups.
func (c *CodeStream) addBreakLine(ln uint32) {
	if c.dryRun {
		return
	}
	c.lineMap = append(c.lineMap, uint32(c.tell()), ln)
	c.breaks++
}

// getNumLineBreaks reports how many line-break records have been emitted.
func (c *CodeStream) getNumLineBreaks() uint32 { return c.breaks }

// pushVarStack records that name now has the declared type typ in the
// current scope, shadowing any outer declaration of the same name until
// popVarStack unwinds it.
func (c *CodeStream) pushVarStack(name intern.STE, typ int32) {
	c.varStack = append(c.varStack, varSlot{name: name, typ: typ})
}

// popVarStack discards the n most recently pushed variable declarations,
// restoring whatever shadowed type (if any) they covered.
func (c *CodeStream) popVarStack(n int) {
	if n > len(c.varStack) {
		n = len(c.varStack)
	}
	c.varStack = c.varStack[:len(c.varStack)-n]
}

// addVarReference is an alias of pushVarStack kept distinct in name to
// mirror the original's separate addVarReference/pushVarStack entry
// points, which differ only in whether the declaration is also the first
// use; here both paths converge on the same scope-stack bookkeeping.
func (c *CodeStream) addVarReference(name intern.STE, typ int32) {
	c.pushVarStack(name, typ)
}

// lookupVarType returns the innermost-scope declared type for name, and
// whether any declaration is currently visible.
func (c *CodeStream) lookupVarType(name intern.STE) (int32, bool) {
	for i := len(c.varStack) - 1; i >= 0; i-- {
		if c.varStack[i].name == name {
			return c.varStack[i].typ, true
		}
	}
	return 0, false
}

// reset clears the stream back to empty, reused between a dry-run pass
// and the following real pass so both start from offset zero.
func (c *CodeStream) reset() {
	c.code = c.code[:0]
	c.idents = c.idents[:0]
	c.strings = c.strings[:0]
	c.floats = c.floats[:0]
	c.lineMap = c.lineMap[:0]
	c.breaks = 0
	c.varStack = c.varStack[:0]
	c.fixStack = c.fixStack[:0]
}

// emitCodeStream finalizes this stream into an immutable CodeBlock.
func (c *CodeStream) emitCodeStream(name string) *CodeBlock {
	return &CodeBlock{
		Name:       name,
		Code:       append([]uint32(nil), c.code...),
		Idents:     append([]intern.STE(nil), c.idents...),
		Strings:    append([]string(nil), c.strings...),
		Floats:     append([]float64(nil), c.floats...),
		LineBreaks: append([]uint32(nil), c.lineMap...),
	}
}
