package vm

import (
	"ember/intern"
	"ember/nsreg"
	"ember/value"
)

// callFunc resolves name against the appropriate namespace for kind and
// invokes it, returning a suspend request (instead of a value) if the
// call is a script function whose body itself suspended. FunctionCall
// resolves in the global namespace; MethodCall resolves against
// fr.CurObject's namespace; ParentCall resolves starting one step above
// fr.CurObject's namespace, the way `::Parent::method()` continues an
// inheritance chain past the object's own class.
func (vm *VM) callFunc(fr *Frame, name intern.STE, kind CallKind, argc int) (value.Value, *SuspendRequest, error) {
	argv := make([]value.Value, argc)
	for i := argc - 1; i >= 0; i-- {
		argv[i] = value.NewUint(fr.popUint())
	}

	var ns *nsreg.Namespace
	switch kind {
	case MethodCall:
		if fr.CurObject != nil {
			ns = fr.CurObject.Namespace
		}
	case ParentCall:
		if fr.CurObject != nil && fr.CurObject.Namespace != nil {
			ns = fr.CurObject.Namespace.Parent
		}
	default:
		ns = vm.Namespaces.Global()
	}
	if ns == nil {
		ns = vm.Namespaces.Global()
	}

	entry := ns.LookupRecursive(name)
	if entry == nil {
		entry = vm.Namespaces.Global().Lookup(name)
	}
	if entry == nil {
		return value.Value{}, nil, vm.fail(fr, vm.Ext.LeaseString("unknown function "+name.String()))
	}

	switch entry.Kind {
	case nsreg.NativeFunctionType:
		if vm.Tracer.Enabled() {
			vm.Tracer.Call(fr.FiberSlot, name.String(), argStrings(vm, argv))
		}
		result := entry.Native(entry.UserPtr, argv)
		if req := vm.takeSuspend(); req != nil {
			return value.Value{}, req, nil
		}
		if vm.Tracer.Enabled() {
			vm.Tracer.Return(fr.FiberSlot, name.String(), vm.strOf(result))
		}
		return result, nil, nil

	case nsreg.ScriptFunctionType:
		code, ok := entry.Script.Code.(*CodeBlock)
		if !ok || code == nil {
			return value.Value{}, nil, vm.fail(fr, vm.Ext.LeaseString("function has no compiled body: "+name.String()))
		}
		callee := NewFrame(code, fr, fr.FiberSlot)
		callee.IP = int(entry.Script.FunctionOffset)
		for _, a := range argv {
			callee.pushUint(a.Uint())
		}
		result, suspend, err := vm.Run(callee)
		if err != nil {
			if se, ok := err.(*ScriptError); ok {
				return value.Value{}, nil, se
			}
			return value.Value{}, nil, err
		}
		return result, suspend, nil

	default:
		return value.Value{}, nil, vm.fail(fr, vm.Ext.LeaseString("unresolvable function "+name.String()))
	}
}

// suspendSlot is a one-shot signal a blocking native function (e.g. the
// console package's suspend()/sleep() builtins) sets to ask the current
// call to pause rather than return a value. It's consumed immediately by
// callFunc, so it never survives past the NativeFunc call that set it —
// safe to keep on VM rather than threading it through every NativeFunc
// signature.
func (vm *VM) RequestSuspend(reason string) { vm.pendingSuspend = &SuspendRequest{Reason: reason} }

func (vm *VM) takeSuspend() *SuspendRequest {
	req := vm.pendingSuspend
	vm.pendingSuspend = nil
	return req
}

func argStrings(vm *VM, argv []value.Value) []string {
	out := make([]string, len(argv))
	for i, a := range argv {
		out[i] = vm.strOf(a)
	}
	return out
}
