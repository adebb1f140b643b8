package vm

import (
	"fmt"

	"ember/compiler"
	"ember/intern"
)

// emitter walks one Program's AST into bytecode against a CodeStream.
// It is run twice per Compile call — once in dry-run mode, once for
// real — so CodeStream.Tell() can be compared between the two passes:
// any divergence means an opcode emitter's size depends on something
// other than the AST shape, which is exactly the defect the two-phase
// design exists to catch before it corrupts a jump target.
type emitter struct {
	in   *intern.Interner
	cs   *CodeStream
	err  error
	funcOffsets map[string]int
}

// Compile compiles src into a CodeBlock. name is used for diagnostics and
// as the block's debug name.
func Compile(in *intern.Interner, name, src string) (*CodeBlock, error) {
	p := compiler.NewParser(src)
	prog := p.Parse()
	if err := p.Err(); err != nil {
		return nil, err
	}

	dry := NewCodeStream(true)
	de := &emitter{in: in, cs: dry, funcOffsets: map[string]int{}}
	de.emitProgram(prog)
	if de.err != nil {
		return nil, de.err
	}
	dryLen := dry.Tell()

	real := NewCodeStream(false)
	re := &emitter{in: in, cs: real, funcOffsets: map[string]int{}}
	re.emitProgram(prog)
	if re.err != nil {
		return nil, re.err
	}
	if real.Tell() != dryLen {
		return nil, fmt.Errorf("compile: precompile/compile size mismatch for %s (%d vs %d words)", name, dryLen, real.Tell())
	}

	block := real.emitCodeStream(name)
	block.Functions = make(map[intern.STE]uint32, len(re.funcOffsets))
	for fname, off := range re.funcOffsets {
		block.Functions[in.Intern(fname, false)] = uint32(off)
	}
	return block, nil
}

func (e *emitter) fail(line int, format string, args ...any) {
	if e.err == nil {
		e.err = fmt.Errorf("line %d: %s", line, fmt.Sprintf(format, args...))
	}
}

func (e *emitter) emitProgram(p *compiler.Program) {
	for _, d := range p.Decls {
		switch n := d.(type) {
		case *compiler.FunctionDecl:
			e.emitFunction(n)
		case *compiler.PackageDecl:
			for _, fn := range n.Decls {
				e.emitFunction(fn)
			}
		case *compiler.DatablockDecl:
			// Datablock declarations are handled by the console package's
			// loader (they describe static data, not executable code);
			// nothing to emit here at the bytecode level.
		default:
			e.emitStmt(d)
		}
	}
	e.cs.emitOp(OpReturnVoid)
}

func (e *emitter) emitFunction(fn *compiler.FunctionDecl) {
	start := e.cs.emitOp(OpFuncDecl)
	skipPos := e.cs.emit(0)
	bodyStart := e.cs.Tell()

	fullName := fn.Name
	if fn.Namespace != "" {
		fullName = fn.Namespace + "::" + fn.Name
	}
	e.funcOffsets[fullName] = bodyStart

	for _, param := range fn.Params {
		name := e.in.Intern(param, false)
		e.cs.emitOp(OpSetCurVarCreate)
		e.cs.emitSTE(name)
		e.cs.emitOp(OpSaveVarUint)
		e.cs.emitOp(OpUintToNone)
	}

	e.emitBlock(fn.Body)
	e.cs.emitOp(OpReturnVoid)

	e.cs.patch(skipPos, uint32(e.cs.Tell()-bodyStart))
	_ = start
}

func (e *emitter) emitBlock(b *compiler.Block) {
	e.cs.addBreakLine(uint32(b.Line))
	for _, s := range b.Stmts {
		e.emitStmt(s)
	}
}

func (e *emitter) emitStmt(n compiler.Node) {
	switch s := n.(type) {
	case *compiler.Block:
		e.emitBlock(s)
	case *compiler.ExprStmt:
		e.emitExpr(s.Expr)
		e.cs.emitOp(OpUintToNone)
	case *compiler.IfStmt:
		e.emitIf(s)
	case *compiler.WhileStmt:
		e.emitWhile(s)
	case *compiler.ForStmt:
		e.emitFor(s)
	case *compiler.ForeachStmt:
		e.emitForeach(s)
	case *compiler.SwitchStmt:
		e.emitSwitch(s)
	case *compiler.BreakStmt:
		if !e.cs.inLoop() {
			e.fail(s.Line, "break outside loop")
			return
		}
		e.cs.emitOp(OpJmp)
		e.cs.emitFix(FixBreak)
	case *compiler.ContinueStmt:
		if !e.cs.inLoop() {
			e.fail(s.Line, "continue outside loop")
			return
		}
		e.cs.emitOp(OpJmp)
		e.cs.emitFix(FixContinue)
	case *compiler.ReturnStmt:
		if s.Value == nil {
			e.cs.emitOp(OpReturnVoid)
			return
		}
		e.emitExpr(s.Value)
		e.cs.emitOp(OpReturn)
	case *compiler.AssertStmt:
		e.emitExpr(s.Cond)
		e.cs.emitOp(OpAssert)
	case *compiler.ThrowStmt:
		e.emitExpr(s.Value)
		e.cs.emitOp(OpThrow)
	case *compiler.TryStmt:
		e.emitTry(s)
	default:
		e.fail(0, "unsupported statement %T", n)
	}
}

func (e *emitter) emitIf(s *compiler.IfStmt) {
	e.emitExpr(s.Cond)
	e.cs.emitOp(OpJmpIfNot)
	elseJump := e.cs.emit(0)
	e.emitStmt(s.Then)
	if s.Else != nil {
		e.cs.emitOp(OpJmp)
		endJump := e.cs.emit(0)
		e.cs.patch(elseJump, uint32(e.cs.Tell()))
		e.emitStmt(s.Else)
		e.cs.patch(endJump, uint32(e.cs.Tell()))
	} else {
		e.cs.patch(elseJump, uint32(e.cs.Tell()))
	}
}

func (e *emitter) emitWhile(s *compiler.WhileStmt) {
	e.cs.pushFixScope()
	testStart := e.cs.Tell()
	e.emitExpr(s.Cond)
	e.cs.emitOp(OpJmpIfNot)
	exitJump := e.cs.emit(0)
	e.emitStmt(s.Body)
	e.cs.emitOp(OpJmp)
	e.cs.emit(uint32(testStart))
	e.cs.patch(exitJump, uint32(e.cs.Tell()))
	e.cs.fixLoop(e.cs.Tell(), testStart)
}

func (e *emitter) emitFor(s *compiler.ForStmt) {
	if s.Init != nil {
		e.emitExpr(s.Init)
		e.cs.emitOp(OpUintToNone)
	}
	e.cs.pushFixScope()
	testStart := e.cs.Tell()
	exitJump := -1
	if s.Cond != nil {
		e.emitExpr(s.Cond)
		e.cs.emitOp(OpJmpIfNot)
		exitJump = e.cs.emit(0)
	}
	e.emitStmt(s.Body)
	postStart := e.cs.Tell()
	if s.Post != nil {
		e.emitExpr(s.Post)
		e.cs.emitOp(OpUintToNone)
	}
	e.cs.emitOp(OpJmp)
	e.cs.emit(uint32(testStart))
	if exitJump >= 0 {
		e.cs.patch(exitJump, uint32(e.cs.Tell()))
	}
	e.cs.fixLoop(e.cs.Tell(), postStart)
}

func (e *emitter) emitForeach(s *compiler.ForeachStmt) {
	e.emitExpr(s.Coll)
	op := OpIterBegin
	if s.IsString {
		op = OpIterBeginStr
	}
	e.cs.emitOp(op)
	skipField := e.cs.emit(0)
	e.cs.pushFixScope()
	loopStart := e.cs.Tell()
	e.cs.emitOp(OpIter)
	exitJump := e.cs.emit(0)
	varName := e.in.Intern(s.VarName, false)
	e.cs.emitOp(OpSetCurVarCreate)
	e.cs.emitSTE(varName)
	e.cs.emitOp(OpSaveVarUint)
	e.cs.emitOp(OpUintToNone)
	e.emitStmt(s.Body)
	e.cs.emitOp(OpJmp)
	e.cs.emit(uint32(loopStart))
	e.cs.patch(exitJump, uint32(e.cs.Tell()))
	e.cs.emitOp(OpIterEnd)
	e.cs.patch(skipField, 0)
	e.cs.fixLoop(e.cs.Tell(), loopStart)
}

func (e *emitter) emitSwitch(s *compiler.SwitchStmt) {
	e.emitExpr(s.Subject)
	e.cs.pushFixScope()
	var endJumps []int
	for _, c := range s.Cases {
		// Compare the subject (re-loaded via DUP) against each candidate
		// value in turn; a match runs the case body and then jumps to the
		// switch's end (no fallthrough, matching spec.md's C-family
		// `switch`/`switch$` semantics rather than C's fallthrough rule).
		var bodyJumps []int
		for _, v := range c.Values {
			e.cs.emitOp(OpDupUint)
			e.emitExpr(v)
			e.cs.emitOp(OpCmpEq)
			e.cs.emitOp(OpJmpIf)
			bodyJumps = append(bodyJumps, e.cs.emit(0))
		}
		e.cs.emitOp(OpJmp)
		nextCase := e.cs.emit(0)
		for _, j := range bodyJumps {
			e.cs.patch(j, uint32(e.cs.Tell()))
		}
		e.cs.emitOp(OpUintToNone)
		for _, st := range c.Body {
			e.emitStmt(st)
		}
		e.cs.emitOp(OpJmp)
		endJumps = append(endJumps, e.cs.emit(0))
		e.cs.patch(nextCase, uint32(e.cs.Tell()))
	}
	e.cs.emitOp(OpUintToNone)
	for _, st := range s.Default {
		e.emitStmt(st)
	}
	for _, j := range endJumps {
		e.cs.patch(j, uint32(e.cs.Tell()))
	}
	e.cs.fixLoop(e.cs.Tell(), e.cs.Tell())
}

func (e *emitter) emitTry(s *compiler.TryStmt) {
	e.cs.emitOp(OpPushTry)
	catchPos := e.cs.emit(0)
	e.emitStmt(s.Body)
	e.cs.emitOp(OpPopTry)
	e.cs.emitOp(OpJmp)
	endJump := e.cs.emit(0)
	e.cs.patch(catchPos, uint32(e.cs.Tell()))
	if s.CatchVar != "" {
		name := e.in.Intern(s.CatchVar, false)
		e.cs.emitOp(OpSetCurVarCreate)
		e.cs.emitSTE(name)
		e.cs.emitOp(OpSaveVarUint)
		e.cs.emitOp(OpUintToNone)
	} else {
		e.cs.emitOp(OpUintToNone)
	}
	e.emitStmt(s.CatchBody)
	e.cs.patch(endJump, uint32(e.cs.Tell()))
}

func (e *emitter) emitExpr(n compiler.Node) {
	switch x := n.(type) {
	case *compiler.IntLit:
		e.cs.emitOp(OpLoadImmedUint)
		e.cs.emit(uint32(x.Value))
	case *compiler.FloatLit:
		e.cs.emitOp(OpLoadImmedFlt)
		e.cs.emitFloat(x.Value)
		e.cs.emitOp(OpFltToUint)
	case *compiler.BoolLit:
		e.cs.emitOp(OpLoadImmedUint)
		if x.Value {
			e.cs.emit(1)
		} else {
			e.cs.emit(0)
		}
	case *compiler.StringLit:
		e.emitStringLit(x)
		e.cs.emitOp(OpStrToUint)
	case *compiler.VarExpr:
		e.emitVarLoad(x)
	case *compiler.FieldExpr:
		e.emitFieldLoad(x)
	case *compiler.UnaryExpr:
		e.emitExpr(x.X)
		switch x.Op {
		case compiler.TokBang:
			e.cs.emitOp(OpNot)
		case compiler.TokTilde:
			e.cs.emitOp(OpOnesComplement)
		case compiler.TokMinus:
			e.cs.emitOp(OpUintToFlt)
			e.cs.emitOp(OpNeg)
			e.cs.emitOp(OpFltToUint)
		}
	case *compiler.BinaryExpr:
		e.emitBinary(x)
	case *compiler.LogicalExpr:
		e.emitLogical(x)
	case *compiler.TernaryExpr:
		e.emitExpr(x.Cond)
		e.cs.emitOp(OpJmpIfNot)
		elseJ := e.cs.emit(0)
		e.emitExpr(x.Then)
		e.cs.emitOp(OpJmp)
		endJ := e.cs.emit(0)
		e.cs.patch(elseJ, uint32(e.cs.Tell()))
		e.emitExpr(x.Else)
		e.cs.patch(endJ, uint32(e.cs.Tell()))
	case *compiler.AssignExpr:
		e.emitAssign(x)
	case *compiler.CallExpr:
		e.emitCall(x)
	case *compiler.NewObjectExpr:
		e.emitNewObject(x)
	default:
		e.fail(0, "unsupported expression %T", n)
	}
}

func (e *emitter) emitStringLit(x *compiler.StringLit) {
	if len(x.Parts) == 1 {
		e.cs.emitOp(OpLoadImmedStr)
		e.cs.emitString(x.Parts[0])
		return
	}
	e.cs.emitOp(OpAdvanceStr)
	for i, part := range x.Parts {
		if x.IsVar[i] {
			name := e.in.Intern(part, false)
			e.cs.emitOp(OpSetCurVar)
			e.cs.emitSTE(name)
			e.cs.emitOp(OpLoadVarStr)
			e.cs.emitOp(OpAdvanceStrComma)
		} else if part != "" {
			e.cs.emitOp(OpLoadImmedStr)
			e.cs.emitString(part)
			e.cs.emitOp(OpAdvanceStrComma)
		}
	}
}

func (e *emitter) emitVarLoad(x *compiler.VarExpr) {
	name := e.in.Intern(x.Name, false)
	if x.Index != nil {
		e.emitExpr(x.Index)
		e.cs.emitOp(OpUintToStr)
		e.cs.emitOp(OpSetCurVarArrayCreate)
		e.cs.emitSTE(name)
	} else {
		e.cs.emitOp(OpSetCurVarCreate)
		e.cs.emitSTE(name)
	}
	e.cs.emitOp(OpLoadVarUint)
}

func (e *emitter) emitFieldLoad(x *compiler.FieldExpr) {
	e.emitExpr(x.Object)
	e.cs.emitOp(OpSetCurObject)
	name := e.in.Intern(x.Field, false)
	if x.Index != nil {
		e.emitExpr(x.Index)
		e.cs.emitOp(OpUintToStr)
		e.cs.emitOp(OpSetCurFieldArray)
		e.cs.emitSTE(name)
	} else {
		e.cs.emitOp(OpSetCurField)
		e.cs.emitSTE(name)
	}
	e.cs.emitOp(OpLoadFieldUint)
}

func (e *emitter) emitBinary(x *compiler.BinaryExpr) {
	switch x.Op {
	case compiler.TokPlus, compiler.TokMinus, compiler.TokStar, compiler.TokSlash:
		e.emitExpr(x.L)
		e.cs.emitOp(OpUintToFlt)
		e.emitExpr(x.R)
		e.cs.emitOp(OpUintToFlt)
		switch x.Op {
		case compiler.TokPlus:
			e.cs.emitOp(OpAdd)
		case compiler.TokMinus:
			e.cs.emitOp(OpSub)
		case compiler.TokStar:
			e.cs.emitOp(OpMul)
		case compiler.TokSlash:
			e.cs.emitOp(OpDiv)
		}
		e.cs.emitOp(OpFltToUint)
		return
	}
	e.emitExpr(x.L)
	e.emitExpr(x.R)
	switch x.Op {
	case compiler.TokEq:
		e.cs.emitOp(OpCmpEq)
	case compiler.TokNe:
		e.cs.emitOp(OpCmpNe)
	case compiler.TokLt:
		e.cs.emitOp(OpCmpLt)
	case compiler.TokLe:
		e.cs.emitOp(OpCmpLe)
	case compiler.TokGt:
		e.cs.emitOp(OpCmpGr)
	case compiler.TokGe:
		e.cs.emitOp(OpCmpGe)
	case compiler.TokAmp:
		e.cs.emitOp(OpBitAnd)
	case compiler.TokPipe:
		e.cs.emitOp(OpBitOr)
	case compiler.TokCaret:
		e.cs.emitOp(OpXor)
	case compiler.TokPercent:
		e.cs.emitOp(OpMod)
	case compiler.TokShl:
		e.cs.emitOp(OpShl)
	case compiler.TokShr:
		e.cs.emitOp(OpShr)
	default:
		e.fail(x.Line, "unsupported binary operator")
	}
}

// emitLogical short-circuits: `&&` leaves the left operand on the stack
// and skips the right operand entirely when the left is already falsy
// (and vice versa for `||`), rather than always evaluating both sides and
// ANDing/ORing the two booleans together.
func (e *emitter) emitLogical(x *compiler.LogicalExpr) {
	e.emitExpr(x.L)
	if x.Op == compiler.TokAndAnd {
		e.cs.emitOp(OpJmpIfNotNP)
	} else {
		e.cs.emitOp(OpJmpIfNP)
	}
	shortCircuit := e.cs.emit(0)
	e.emitExpr(x.R)
	e.cs.patch(shortCircuit, uint32(e.cs.Tell()))
}

func (e *emitter) emitAssign(x *compiler.AssignExpr) {
	compound := x.Op != compiler.TokAssign
	switch t := x.Target.(type) {
	case *compiler.VarExpr:
		name := e.in.Intern(t.Name, false)
		e.cs.emitOp(OpSetCurVarCreate)
		e.cs.emitSTE(name)
		if compound {
			e.cs.emitOp(OpLoadVarUint)
			e.emitCompoundOperand(x.Op)
			e.emitExpr(x.Value)
			e.emitCompoundOp(x.Op)
		} else {
			e.emitExpr(x.Value)
		}
		e.cs.emitOp(OpSaveVarUint)
	case *compiler.FieldExpr:
		e.emitExpr(t.Object)
		e.cs.emitOp(OpSetCurObject)
		name := e.in.Intern(t.Field, false)
		e.cs.emitOp(OpSetCurField)
		e.cs.emitSTE(name)
		if compound {
			e.cs.emitOp(OpLoadFieldUint)
			e.emitCompoundOperand(x.Op)
			e.emitExpr(x.Value)
			e.emitCompoundOp(x.Op)
		} else {
			e.emitExpr(x.Value)
		}
		e.cs.emitOp(OpSaveFieldUint)
	default:
		e.fail(x.Line, "invalid assignment target")
	}
}

// emitCompoundOperand converts the just-pushed old-value operand to
// FloatStack immediately, before the new-value operand (x.Value) is
// emitted, so that by the time emitCompoundOp's float opcode runs,
// FloatStack already holds [old_float] with new_float about to land on
// top in the correct operand order (old op new), rather than needing a
// stack-reordering swap instruction after the fact.
func (e *emitter) emitCompoundOperand(op compiler.TokenKind) {
	switch op {
	case compiler.TokPlusEq, compiler.TokMinusEq, compiler.TokStarEq, compiler.TokSlashEq:
		e.cs.emitOp(OpUintToFlt)
	}
}

func (e *emitter) emitCompoundOp(op compiler.TokenKind) {
	switch op {
	case compiler.TokPlusEq, compiler.TokMinusEq, compiler.TokStarEq, compiler.TokSlashEq:
		e.cs.emitOp(OpUintToFlt)
		switch op {
		case compiler.TokPlusEq:
			e.cs.emitOp(OpAdd)
		case compiler.TokMinusEq:
			e.cs.emitOp(OpSub)
		case compiler.TokStarEq:
			e.cs.emitOp(OpMul)
		case compiler.TokSlashEq:
			e.cs.emitOp(OpDiv)
		}
		e.cs.emitOp(OpFltToUint)
	case compiler.TokPercentEq:
		e.cs.emitOp(OpMod)
	case compiler.TokAmpEq:
		e.cs.emitOp(OpBitAnd)
	case compiler.TokPipeEq:
		e.cs.emitOp(OpBitOr)
	case compiler.TokCaretEq:
		e.cs.emitOp(OpXor)
	case compiler.TokShlEq:
		e.cs.emitOp(OpShl)
	case compiler.TokShrEq:
		e.cs.emitOp(OpShr)
	}
}

func (e *emitter) emitCall(x *compiler.CallExpr) {
	kind := FunctionCall
	if x.Receiver != nil {
		e.emitExpr(x.Receiver)
		e.cs.emitOp(OpSetCurObject)
		if x.IsParent {
			kind = ParentCall
		} else {
			kind = MethodCall
		}
	}
	e.cs.emitOp(OpPushFrame)
	for _, a := range x.Args {
		e.emitExpr(a)
	}
	e.cs.emitOp(OpCallFunc)
	name := e.in.Intern(x.Name, false)
	e.cs.emitSTE(name)
	e.cs.emit(uint32(kind))
	e.cs.emit(uint32(len(x.Args)))
}

func (e *emitter) emitNewObject(x *compiler.NewObjectExpr) {
	e.cs.emitOp(OpCreateObject)
	className := e.in.Intern(x.ClassName, false)
	e.cs.emitSTE(className)
	for _, f := range x.Fields {
		if f.Index != nil {
			e.emitExpr(f.Index)
			e.cs.emitOp(OpUintToStr)
			e.cs.emitOp(OpSetCurFieldArray)
		} else {
			e.cs.emitOp(OpSetCurField)
		}
		name := e.in.Intern(f.Name, false)
		e.cs.emitSTE(name)
		e.emitExpr(f.Value)
		e.cs.emitOp(OpSaveFieldUint)
		e.cs.emitOp(OpUintToNone)
	}
	for _, child := range x.Children {
		e.emitNewObject(child)
		e.cs.emitOp(OpAddObject)
	}
	e.cs.emitOp(OpEndObject)
	e.cs.emitOp(OpFinishObject)
}
