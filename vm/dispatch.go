package vm

import (
	"math"
	"strconv"

	"ember/intern"
	"ember/typesys"
	"ember/value"
)

// Run executes fr from its current IP until it returns, suspends, or
// throws past its outermost frame. A normal return yields (result, nil,
// nil). A suspend request (set by a native builtin that wants to yield
// back to the scheduler mid-call) yields (zero, req, nil) with fr left
// exactly as-is so a later Run(fr) call continues at the next
// instruction. An uncaught exception yields (zero, nil, *ScriptError).
func (vm *VM) Run(fr *Frame) (value.Value, *SuspendRequest, error) {
	for {
		if fr.IP >= len(fr.Code.Code) {
			return value.Value{}, nil, nil
		}
		op := Op(fr.Code.Code[fr.IP])
		fr.IP++

		result, done, suspend, err := vm.step(fr, op)
		if err != nil {
			if se, ok := err.(*ScriptError); ok {
				if handled := vm.unwind(fr, se); handled {
					continue
				}
			}
			return value.Value{}, nil, err
		}
		if suspend != nil {
			return value.Value{}, suspend, nil
		}
		if done {
			return result, nil, nil
		}
	}
}

// unwind looks for a try handler open in fr itself. Cross-frame
// propagation (a callee throwing past all of its own handlers) falls out
// for free: callFunc returns the *ScriptError as a Go error, the caller's
// own Run loop receives it as its step()'s err, and calls unwind on its
// own frame in turn — so "unwind to the nearest enclosing try up the call
// chain" is just the ordinary Go call stack unwinding one level at a
// time, rather than something this function needs to walk Caller for
// itself.
func (vm *VM) unwind(fr *Frame, se *ScriptError) bool {
	if h, ok := fr.catch(); ok {
		fr.IP = h.catchIP
		fr.pushUint(se.Value.Uint())
		return true
	}
	return false
}

func (vm *VM) fail(fr *Frame, v value.Value) error {
	return &ScriptError{Value: v, FuncName: fr.Code.Name, Line: fr.Code.LineForOffset(fr.IP)}
}

// step executes one instruction. Returns (result, done, suspend, err);
// done=true means RETURN-family and result is the frame's return value.
func (vm *VM) step(fr *Frame, op Op) (value.Value, bool, *SuspendRequest, error) {
	code := fr.Code.Code
	fetch := func() uint32 {
		w := code[fr.IP]
		fr.IP++
		return w
	}

	switch op {
	case OpFuncDecl:
		// Function bodies are entered at the namespace entry's
		// FunctionOffset once CALLFUNC resolves a call by name (see
		// CodeBlock.Functions); at top-level sequential
		// execution a FUNC_DECL instruction just needs to skip over the
		// body it declares, whose length was recorded as an immediate.
		skip := fetch()
		fr.IP += int(skip)

	case OpCreateObject:
		className := vm.Interner.Empty()
		if idx := fetch(); int(idx) < len(fr.Code.Idents) {
			className = fr.Code.Idents[idx]
		}
		ns := vm.Namespaces.Lookup(className, intern_empty(vm))
		obj := NewVMObject(className, ns)
		fr.Build = &objectBuild{obj: obj, parent: fr.Build}

	case OpAddObject:
		// The child's FINISH_OBJECT has already run: fr.Build is the
		// parent's bracket again and CurObject is the finished child.
		if fr.Build != nil && fr.CurObject != nil {
			fr.Build.obj.Children = append(fr.Build.obj.Children, fr.CurObject)
		}

	case OpEndObject:
		// Marks the close of the current object's field list; nothing to
		// do here beyond what FINISH_OBJECT performs, since Fields are
		// written incrementally by SAVEFIELD_* as the literal is parsed.

	case OpFinishObject:
		if fr.Build != nil {
			obj := fr.Build.obj
			fr.Build = fr.Build.parent
			fr.CurObject = obj
			fr.pushUint(1)
		}

	case OpJmp:
		target := fetch()
		fr.IP = int(target)

	case OpJmpIf:
		target := fetch()
		if fr.popUint() != 0 {
			fr.IP = int(target)
		}
	case OpJmpIfNot:
		target := fetch()
		if fr.popUint() == 0 {
			fr.IP = int(target)
		}
	case OpJmpIfF:
		target := fetch()
		if fr.popFloat() != 0 {
			fr.IP = int(target)
		}
	case OpJmpIfFNot:
		target := fetch()
		if fr.popFloat() == 0 {
			fr.IP = int(target)
		}
	case OpJmpIfNP:
		target := fetch()
		if fr.peekUint() != 0 {
			fr.IP = int(target)
		} else {
			fr.popUint()
		}
	case OpJmpIfNotNP:
		target := fetch()
		if fr.peekUint() == 0 {
			fr.IP = int(target)
		} else {
			fr.popUint()
		}

	case OpReturn:
		return value.NewUint(fr.popUint()), true, nil, nil
	case OpReturnVoid:
		return value.Value{}, true, nil, nil
	case OpReturnFlt:
		return value.NewFloat(fr.popFloat()), true, nil, nil
	case OpReturnUint:
		return value.NewUint(fr.popUint()), true, nil, nil

	case OpCmpEq, OpCmpGr, OpCmpGe, OpCmpLt, OpCmpLe, OpCmpNe:
		b := fr.popUint()
		a := fr.popUint()
		fr.pushUint(boolToUint(intCompare(op, a, b)))

	case OpAnd:
		b := fr.popUint()
		a := fr.popUint()
		fr.pushUint(boolToUint(a != 0 && b != 0))
	case OpOr:
		b := fr.popUint()
		a := fr.popUint()
		fr.pushUint(boolToUint(a != 0 || b != 0))
	case OpNot:
		fr.pushUint(boolToUint(fr.popUint() == 0))
	case OpNotF:
		fr.pushUint(boolToUint(fr.popFloat() == 0))
	case OpOnesComplement:
		fr.pushUint(^fr.popUint())
	case OpXor:
		b := fr.popUint()
		a := fr.popUint()
		fr.pushUint(a ^ b)
	case OpBitAnd:
		b := fr.popUint()
		a := fr.popUint()
		fr.pushUint(a & b)
	case OpBitOr:
		b := fr.popUint()
		a := fr.popUint()
		fr.pushUint(a | b)
	case OpMod:
		b := fr.popUint()
		a := fr.popUint()
		if b == 0 {
			fr.pushUint(0)
		} else {
			fr.pushUint(a % b)
		}
	case OpShr:
		b := fr.popUint()
		a := fr.popUint()
		fr.pushUint(a >> (b & 63))
	case OpShl:
		b := fr.popUint()
		a := fr.popUint()
		fr.pushUint(a << (b & 63))

	case OpAdd:
		b := fr.popFloat()
		a := fr.popFloat()
		fr.pushFloat(a + b)
	case OpSub:
		b := fr.popFloat()
		a := fr.popFloat()
		fr.pushFloat(a - b)
	case OpMul:
		b := fr.popFloat()
		a := fr.popFloat()
		fr.pushFloat(a * b)
	case OpDiv:
		b := fr.popFloat()
		a := fr.popFloat()
		if b == 0 {
			fr.pushFloat(0)
		} else {
			fr.pushFloat(a / b)
		}
	case OpNeg:
		fr.pushFloat(-fr.popFloat())

	case OpSetCurVar, OpSetCurVarCreate:
		idx := fetch()
		name := vm.ident(fr, idx)
		e := fr.Locals.Lookup(name.String())
		if e == nil && op == OpSetCurVarCreate {
			e = fr.Locals.Create(name)
		}
		fr.CurVar = e
	case OpSetCurVarArray, OpSetCurVarArrayCreate:
		idx := fetch()
		suffix := fr.popStr()
		name := vm.ident(fr, idx)
		full := name.String() + suffix
		full_ste := vm.Interner.Intern(full, false)
		e := fr.Locals.Lookup(full)
		if e == nil && op == OpSetCurVarArrayCreate {
			e = fr.Locals.Create(full_ste)
		}
		fr.CurVar = e

	case OpLoadVarUint:
		if fr.CurVar != nil {
			fr.pushUint(fr.CurVar.Value.Uint())
		} else {
			fr.pushUint(0)
		}
	case OpLoadVarFlt:
		if fr.CurVar != nil {
			fr.pushFloat(fr.CurVar.Value.Float())
		} else {
			fr.pushFloat(0)
		}
	case OpLoadVarStr:
		if fr.CurVar != nil {
			fr.pushStr(vm.strOf(fr.CurVar.Value))
		} else {
			fr.pushStr("")
		}
	case OpLoadVarVar:
		if fr.CurVar != nil {
			fr.pushUint(fr.CurVar.Value.Uint())
		} else {
			fr.pushUint(0)
		}

	case OpSaveVarUint:
		if fr.CurVar != nil {
			fr.CurVar.Value = value.NewUint(fr.peekUint())
		}
	case OpSaveVarFlt:
		if fr.CurVar != nil {
			v := fr.FloatStack[len(fr.FloatStack)-1]
			fr.CurVar.Value = value.NewFloat(v)
		}
	case OpSaveVarStr:
		if fr.CurVar != nil && len(fr.StrStack) > 0 {
			s := fr.StrStack[len(fr.StrStack)-1]
			fr.CurVar.Value = vm.Ext.LeaseString(s)
		}
	case OpSaveVarVar:
		if fr.CurVar != nil {
			fr.CurVar.Value = value.NewUint(fr.peekUint())
		}

	case OpSetCurObject, OpSetCurObjectNew, OpSetCurObjectInternal:
		// These instructions carry no operand; since this runtime keeps
		// objects as Go-side *VMObject leased through the external table,
		// the object is resolved through CurVar's current value.
		if fr.CurVar != nil {
			if obj, ok := vm.Ext.Resolve(fr.CurVar.Value).(*VMObject); ok {
				fr.CurObject = obj
			}
		}

	case OpSetCurField, OpSetCurFieldType:
		idx := fetch()
		fr.CurField = vm.ident(fr, idx)
		fr.CurFieldIdx = 0
	case OpSetCurFieldArray:
		idx := fetch()
		suffix := fr.popStr()
		fr.CurField = vm.Interner.Intern(vm.ident(fr, idx).String()+suffix, false)
		fr.CurFieldIdx = 0
	case OpSetCurFieldNone:
		fr.CurField = vm.Interner.Empty()

	case OpLoadFieldUint:
		fr.pushUint(vm.loadField(fr).Uint())
	case OpLoadFieldFlt:
		fr.pushFloat(vm.loadField(fr).Float())
	case OpLoadFieldStr:
		fr.pushStr(vm.strOf(vm.loadField(fr)))

	case OpSaveFieldUint:
		vm.saveField(fr, value.NewUint(fr.peekUint()))
	case OpSaveFieldFlt:
		if len(fr.FloatStack) > 0 {
			vm.saveField(fr, value.NewFloat(fr.FloatStack[len(fr.FloatStack)-1]))
		}
	case OpSaveFieldStr:
		if len(fr.StrStack) > 0 {
			vm.saveField(fr, vm.Ext.LeaseString(fr.StrStack[len(fr.StrStack)-1]))
		}

	case OpStrToUint:
		fr.pushUint(parseUint(fr.popStr()))
	case OpStrToFlt:
		fr.pushFloat(parseFloat(fr.popStr()))
	case OpStrToNone:
		fr.popStr()
	case OpFltToUint:
		fr.pushUint(uint64(fr.popFloat()))
	case OpFltToStr:
		fr.pushStr(formatFloat(fr.popFloat()))
	case OpFltToNone:
		fr.popFloat()
	case OpUintToFlt:
		fr.pushFloat(float64(fr.popUint()))
	case OpUintToStr:
		fr.pushStr(formatUint(fr.popUint()))
	case OpUintToNone:
		fr.popUint()
	case OpCopyVarToNone:
		// no-op placeholder: CurVar addressing is cleared by the next
		// SETCURVAR, nothing to discard here.

	case OpLoadImmedUint:
		fr.pushUint(uint64(fetch()))
	case OpLoadImmedFlt:
		idx := fetch()
		if int(idx) < len(fr.Code.Floats) {
			fr.pushFloat(fr.Code.Floats[idx])
		} else {
			fr.pushFloat(0)
		}
	case OpLoadImmedStr, OpDocblockStr, OpTagToStr:
		idx := fetch()
		if int(idx) < len(fr.Code.Strings) {
			fr.pushStr(fr.Code.Strings[idx])
		} else {
			fr.pushStr("")
		}
	case OpLoadImmedIdent:
		idx := fetch()
		fr.pushStr(vm.ident(fr, idx).String())

	case OpCallFuncResolve, OpCallFunc:
		nameIdx := fetch()
		kind := CallKind(fetch())
		argc := int(fetch())
		name := vm.ident(fr, nameIdx)
		res, suspend, err := vm.callFunc(fr, name, kind, argc)
		if err != nil {
			return value.Value{}, false, nil, err
		}
		if suspend != nil {
			// IP stays past CALLFUNC: the value Fiber.Resume pushes onto
			// UintStack stands in for this call's result.
			return value.Value{}, false, suspend, nil
		}
		fr.pushUint(res.Uint())

	case OpAdvanceStr:
		fr.pushStr("")
	case OpAdvanceStrAppendChar:
		ch := fetch()
		if len(fr.StrStack) == 0 {
			fr.pushStr("")
		}
		top := len(fr.StrStack) - 1
		fr.StrStack[top] += string(rune(ch))
	case OpAdvanceStrComma:
		if len(fr.StrStack) >= 2 {
			b := fr.popStr()
			a := fr.popStr()
			fr.pushStr(a + "," + b)
		}
	case OpAdvanceStrNul:
		// terminator marker; nothing further to encode in a Go string.
	case OpRewindStr:
		fr.popStr()
	case OpTerminateRewindStr:
		fr.popStr()
	case OpCompareStr:
		b := fr.popStr()
		a := fr.popStr()
		fr.pushUint(boolToUint(a == b))

	case OpPush:
		if fr.CurVar != nil {
			fr.pushUint(fr.CurVar.Value.Uint())
		}
	case OpPushUint:
		fr.pushUint(fr.popUint())
	case OpPushFlt:
		fr.pushFloat(fr.popFloat())
	case OpPushVar:
		if fr.CurVar != nil {
			fr.pushUint(fr.CurVar.Value.Uint())
		}
	case OpPushFrame:
		// Marks an argument-evaluation boundary for the following
		// CALLFUNC; the argc immediate already tells callFunc how many
		// operand-stack slots belong to this call, so no stack action is
		// needed here beyond the marker's documentary role.

	case OpAssert:
		if fr.popUint() == 0 {
			return value.Value{}, false, nil, vm.fail(fr, vm.Ext.LeaseString("assertion failed"))
		}
	case OpBreak:
		// A debugger breakpoint marker; this runtime has no attached
		// debugger session, so it's a no-op at dispatch time.

	case OpIterBegin, OpIterBeginStr:
		skip := fetch()
		_ = skip
		top := fr.popUint()
		obj, _ := vm.Ext.Resolve(value.Value{Payload: top}).([]value.Value)
		it := &iterState{elements: obj, isString: op == OpIterBeginStr}
		if op == OpIterBeginStr {
			it.chars = []rune(fr.popStr())
		}
		fr.Iters = append(fr.Iters, it)
	case OpIter:
		target := fetch()
		if len(fr.Iters) == 0 {
			fr.IP = int(target)
			break
		}
		it := fr.Iters[len(fr.Iters)-1]
		v, ok := it.next()
		if !ok {
			fr.IP = int(target)
			break
		}
		fr.pushUint(v.Uint())
	case OpIterEnd:
		if len(fr.Iters) > 0 {
			fr.Iters = fr.Iters[:len(fr.Iters)-1]
		}

	case OpPushTry, OpPushTryStack:
		target := fetch()
		fr.pushTry(int(target))
	case OpPopTry:
		fr.popTry()
	case OpThrow:
		v := value.NewUint(fr.popUint())
		return value.Value{}, false, nil, vm.fail(fr, v)
	case OpDupUint:
		fr.pushUint(fr.peekUint())

	case OpPushTyped:
		fr.pushUint(fr.popUint())
	case OpLoadVarTyped, OpLoadVarTypedRef:
		if fr.CurVar != nil {
			fr.pushUint(fr.CurVar.Value.Uint())
		} else {
			fr.pushUint(0)
		}
	case OpLoadFieldTyped:
		fr.pushUint(vm.loadField(fr).Uint())
	case OpSaveVarTyped:
		if fr.CurVar != nil {
			fr.CurVar.Value = value.NewUint(fr.peekUint())
		}
	case OpSaveFieldTyped:
		vm.saveField(fr, value.NewUint(fr.peekUint()))
	case OpStrToTyped:
		fr.pushUint(parseUint(fr.popStr()))
	case OpFltToTyped:
		fr.pushUint(uint64(fr.popFloat()))
	case OpUintToTyped:
		// already the right stack, nothing to coerce.
	case OpTypedOp:
		typedOp := typesys.Op(fetch())
		typeID := value.TypeID(fetch())
		b := value.NewUint(fr.popUint())
		a := value.NewUint(fr.popUint())
		info := vm.Types.Get(typeID)
		if info == nil || info.PerformOp == nil {
			fr.pushUint(0)
		} else {
			fr.pushUint(info.PerformOp(info.UserPtr, typedOp, a, b).Uint())
		}

	case OpSaveVarMultiple, OpSaveVarMultipleTyped:
		count := fetch()
		vals := make([]uint64, count)
		for i := int(count) - 1; i >= 0; i-- {
			vals[i] = fr.popUint()
		}
		if fr.CurVar != nil {
			fr.CurVar.Value = value.NewUint(vals[0])
		}
	case OpSaveFieldMultiple:
		count := fetch()
		for i := 0; i < int(count); i++ {
			fr.popUint()
		}

	case OpInvalid:
		return value.Value{}, false, nil, vm.fail(fr, vm.Ext.LeaseString("invalid opcode"))

	default:
		return value.Value{}, false, nil, vm.fail(fr, vm.Ext.LeaseString("unhandled opcode "+op.String()))
	}
	return value.Value{}, false, nil, nil
}

func (vm *VM) ident(fr *Frame, idx uint32) intern.STE {
	if int(idx) < len(fr.Code.Idents) {
		return fr.Code.Idents[idx]
	}
	return vm.Interner.Empty()
}

func intern_empty(vm *VM) intern.STE { return vm.Interner.Empty() }

func (vm *VM) loadField(fr *Frame) value.Value {
	if fr.CurObject == nil {
		return value.Value{}
	}
	e := fr.CurObject.Fields.Lookup(fr.CurField.String())
	if e == nil {
		return value.Value{}
	}
	return e.Value
}

func (vm *VM) saveField(fr *Frame, v value.Value) {
	if fr.CurObject == nil {
		return
	}
	e := fr.CurObject.Fields.Create(fr.CurField)
	e.Value = v
}

func intCompare(op Op, a, b uint64) bool {
	switch op {
	case OpCmpEq:
		return a == b
	case OpCmpNe:
		return a != b
	case OpCmpGr:
		return a > b
	case OpCmpGe:
		return a >= b
	case OpCmpLt:
		return a < b
	case OpCmpLe:
		return a <= b
	}
	return false
}

func boolToUint(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

func parseUint(s string) uint64 {
	var n uint64
	neg := false
	i := 0
	if i < len(s) && (s[i] == '-' || s[i] == '+') {
		neg = s[i] == '-'
		i++
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			break
		}
		n = n*10 + uint64(s[i]-'0')
	}
	if neg {
		return uint64(-int64(n))
	}
	return n
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func formatFloat(f float64) string {
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func formatUint(u uint64) string {
	return strconv.FormatUint(u, 10)
}
