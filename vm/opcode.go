// Package vm implements the bytecode instruction set, the two-phase
// CodeStream emitter, compiled code blocks, call frames, and the
// dispatch loop that executes them: components E (compile target) and F
// (instruction set + execution) of the console scripting runtime.
package vm

// Op is one bytecode instruction. The ordering and grouping mirrors the
// console engine's own CompiledInstructions enum exactly (object
// construction, control flow, comparison/bitwise/logical/arithmetic,
// current-variable addressing, load/save, current-object/field
// addressing, type coercion, immediates, calls, string-stack assembly,
// stack pushes, assert/break, iteration, exceptions, and typed-value
// ops) so a reader already familiar with that ISA can follow this one
// opcode-for-opcode.
type Op uint32

const (
	OpFuncDecl Op = iota
	OpCreateObject
	OpAddObject
	OpEndObject
	OpFinishObject

	OpJmpIfFNot
	OpJmpIfNot
	OpJmpIfF
	OpJmpIf
	OpJmpIfNotNP
	OpJmpIfNP
	OpJmp
	OpReturn
	OpReturnVoid
	OpReturnFlt
	OpReturnUint

	OpCmpEq
	OpCmpGr
	OpCmpGe
	OpCmpLt
	OpCmpLe
	OpCmpNe
	OpXor
	OpMod
	OpBitAnd
	OpBitOr
	OpNot
	OpNotF
	OpOnesComplement

	OpShr
	OpShl
	OpAnd
	OpOr

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpNeg

	OpSetCurVar
	OpSetCurVarCreate
	OpSetCurVarArray
	OpSetCurVarArrayCreate

	OpLoadVarUint
	OpLoadVarFlt
	OpLoadVarStr
	OpLoadVarVar

	OpSaveVarUint
	OpSaveVarFlt
	OpSaveVarStr
	OpSaveVarVar

	OpSetCurObject
	OpSetCurObjectNew
	OpSetCurObjectInternal

	OpSetCurField
	OpSetCurFieldArray
	OpSetCurFieldType

	OpLoadFieldUint
	OpLoadFieldFlt
	OpLoadFieldStr

	OpSaveFieldUint
	OpSaveFieldFlt
	OpSaveFieldStr

	OpStrToUint
	OpStrToFlt
	OpStrToNone
	OpFltToUint
	OpFltToStr
	OpFltToNone
	OpUintToFlt
	OpUintToStr
	OpUintToNone
	OpCopyVarToNone

	OpLoadImmedUint
	OpLoadImmedFlt
	OpTagToStr
	OpLoadImmedStr
	OpDocblockStr
	OpLoadImmedIdent

	OpCallFuncResolve
	OpCallFunc

	OpAdvanceStr
	OpAdvanceStrAppendChar
	OpAdvanceStrComma
	OpAdvanceStrNul
	OpRewindStr
	OpTerminateRewindStr
	OpCompareStr

	OpPush
	OpPushUint
	OpPushFlt
	OpPushVar
	OpPushFrame

	OpAssert
	OpBreak

	OpIterBegin
	OpIterBeginStr
	OpIter
	OpIterEnd

	OpPushTry
	OpPushTryStack
	OpPopTry
	OpThrow
	OpDupUint

	OpPushTyped
	OpLoadVarTyped
	OpLoadVarTypedRef
	OpLoadFieldTyped
	OpSaveVarTyped
	OpSaveFieldTyped
	OpStrToTyped
	OpFltToTyped
	OpUintToTyped
	OpTypedOp
	OpSetCurFieldNone

	OpSaveVarMultiple
	OpSaveVarMultipleTyped
	OpSaveFieldMultiple

	OpInvalid
)

// CallKind distinguishes the three call-site ABIs a CALLFUNC-family
// instruction carries as an immediate, since a bare function name could
// resolve to a free function, a `.` method call, or a `::parent::` call
// continuing up a namespace's inheritance chain.
type CallKind uint32

const (
	FunctionCall CallKind = iota
	MethodCall
	ParentCall
)

var opNames = [...]string{
	"FUNC_DECL", "CREATE_OBJECT", "ADD_OBJECT", "END_OBJECT", "FINISH_OBJECT",
	"JMPIFFNOT", "JMPIFNOT", "JMPIFF", "JMPIF", "JMPIFNOT_NP", "JMPIF_NP", "JMP",
	"RETURN", "RETURN_VOID", "RETURN_FLT", "RETURN_UINT",
	"CMPEQ", "CMPGR", "CMPGE", "CMPLT", "CMPLE", "CMPNE", "XOR", "MOD", "BITAND", "BITOR",
	"NOT", "NOTF", "ONESCOMPLEMENT",
	"SHR", "SHL", "AND", "OR",
	"ADD", "SUB", "MUL", "DIV", "NEG",
	"SETCURVAR", "SETCURVAR_CREATE", "SETCURVAR_ARRAY", "SETCURVAR_ARRAY_CREATE",
	"LOADVAR_UINT", "LOADVAR_FLT", "LOADVAR_STR", "LOADVAR_VAR",
	"SAVEVAR_UINT", "SAVEVAR_FLT", "SAVEVAR_STR", "SAVEVAR_VAR",
	"SETCUROBJECT", "SETCUROBJECT_NEW", "SETCUROBJECT_INTERNAL",
	"SETCURFIELD", "SETCURFIELD_ARRAY", "SETCURFIELD_TYPE",
	"LOADFIELD_UINT", "LOADFIELD_FLT", "LOADFIELD_STR",
	"SAVEFIELD_UINT", "SAVEFIELD_FLT", "SAVEFIELD_STR",
	"STR_TO_UINT", "STR_TO_FLT", "STR_TO_NONE", "FLT_TO_UINT", "FLT_TO_STR", "FLT_TO_NONE",
	"UINT_TO_FLT", "UINT_TO_STR", "UINT_TO_NONE", "COPYVAR_TO_NONE",
	"LOADIMMED_UINT", "LOADIMMED_FLT", "TAG_TO_STR", "LOADIMMED_STR", "DOCBLOCK_STR", "LOADIMMED_IDENT",
	"CALLFUNC_RESOLVE", "CALLFUNC",
	"ADVANCE_STR", "ADVANCE_STR_APPENDCHAR", "ADVANCE_STR_COMMA", "ADVANCE_STR_NUL",
	"REWIND_STR", "TERMINATE_REWIND_STR", "COMPARE_STR",
	"PUSH", "PUSH_UINT", "PUSH_FLT", "PUSH_VAR", "PUSH_FRAME",
	"ASSERT", "BREAK",
	"ITER_BEGIN", "ITER_BEGIN_STR", "ITER", "ITER_END",
	"PUSH_TRY", "PUSH_TRY_STACK", "POP_TRY", "THROW", "DUP_UINT",
	"PUSH_TYPED", "LOADVAR_TYPED", "LOADVAR_TYPED_REF", "LOADFIELD_TYPED",
	"SAVEVAR_TYPED", "SAVEFIELD_TYPED", "STR_TO_TYPED", "FLT_TO_TYPED", "UINT_TO_TYPED",
	"TYPED_OP", "SETCURFIELD_NONE",
	"SAVEVAR_MULTIPLE", "SAVEVAR_MULTIPLE_TYPED", "SAVEFIELD_MULTIPLE",
	"INVALID",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "OP_?"
}
