package vm

import (
	"fmt"

	"ember/intern"
	"ember/nsreg"
	"ember/trace"
	"ember/typesys"
	"ember/value"
)

// VM owns every piece of state a compiled script needs to run: the
// interned-string table, the type and namespace registries, the shared
// external-pointer and return-value stores, and the heap allocation list.
// None of this is process-global — an embedder that wants two isolated
// runtimes in one process constructs two *VM values, each with its own
// Interner (see console.Config.Interner for the one exception: sharing an
// Interner across VMs so identifier handles compare equal between them).
type VM struct {
	Interner   *intern.Interner
	Types      *typesys.Registry
	Namespaces *nsreg.State
	Ext        *value.ExternalTable
	Ret        *value.ReturnBuffer
	Heap       *value.HeapList
	Tracer     *trace.Tracer

	Globals *value.Dictionary

	nextFiberID    uint64
	pendingSuspend *SuspendRequest
}

// New builds a VM with fresh, unshared state.
func New(tracer *trace.Tracer) *VM {
	in := intern.New()
	ext := &value.ExternalTable{}
	vm := &VM{
		Interner:   in,
		Ext:        ext,
		Types:      typesys.NewRegistry(in, ext),
		Namespaces: nsreg.NewState(in),
		Ret:        value.NewReturnBuffer(4096),
		Heap:       &value.HeapList{},
		Tracer:     tracer,
		Globals:    value.NewDictionary(),
	}
	return vm
}

// NextFiberID mints a VM-scoped fiber identifier; the fiber package calls
// this instead of keeping its own counter so ids stay unique per-VM
// rather than per-process.
func (vm *VM) NextFiberID() uint64 {
	vm.nextFiberID++
	return vm.nextFiberID
}

// ScriptError is a runtime exception carrying a script-visible value
// (THROW's operand) plus the frame chain active when it was thrown, used
// both for PUSH_TRY/catch unwinding inside one fiber and for reporting an
// uncaught exception up through fiber.Fiber.Resume.
type ScriptError struct {
	Value     value.Value
	FuncName  string
	Line      uint32
}

func (e *ScriptError) Error() string {
	return fmt.Sprintf("%s:%d: exception %v", e.FuncName, e.Line, e.Value)
}

// SuspendRequest is set on a VM by a native "suspend"-style builtin (the
// console package wires the scripting `suspend()`/blocking-IO commands
// through this) to ask the dispatch loop to stop after the current
// instruction and hand control back to the fiber scheduler without
// unwinding the Go call stack — the frame itself (IP, operand stacks,
// locals) is left exactly as-is so a later Run call on the same
// Frame resumes mid-expression.
type SuspendRequest struct {
	Reason string
}

// StringOf is the exported form of strOf, used by packages (fiber,
// console) that need to render a Value for tracing or display without
// reaching into VM-internal zone handling themselves.
func (vm *VM) StringOf(v value.Value) string { return vm.strOf(v) }

// strOf resolves any Value to a display/equality string, used by
// Value.Bool and by the string type's hooks. It understands every zone
// this VM manages; a zone it doesn't recognize resolves to "".
func (vm *VM) strOf(v value.Value) string {
	switch v.Zone {
	case value.ZoneExternal:
		return vm.Ext.StringOf(v)
	case value.ZoneReturn:
		s, err := vm.Ret.ReadString(v)
		if err != nil {
			return ""
		}
		return s
	default:
		return ""
	}
}
