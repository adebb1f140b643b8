package console

import (
	"fmt"

	"ember/fiber"
	"ember/intern"
	"ember/nsreg"
	"ember/trace"
	"ember/typesys"
	"ember/value"
	"ember/vm"

	"github.com/google/uuid"
)

// VM is the embedder's handle to one isolated runtime: a vm.VM plus the
// fiber scheduler driving it and the config it was built from. Two
// console.VMs in the same process are fully isolated unless the embedder
// explicitly shares a Config.Interner between them.
type VM struct {
	vm        *vm.VM
	scheduler *fiber.Scheduler
	cfg       Config
	finder    ObjectFinder
}

// New builds a VM from cfg, filling in workable defaults for any
// zero-valued field.
func New(cfg Config) *VM {
	in := cfg.Interner
	if in == nil {
		in = intern.New()
	}
	tracer := trace.New(false, nil, nil)
	ext := &value.ExternalTable{}

	v := &vm.VM{
		Interner:   in,
		Types:      typesys.NewRegistry(in, ext),
		Namespaces: nsreg.NewState(in),
		Ext:        ext,
		Ret:        value.NewReturnBuffer(4096),
		Heap:       &value.HeapList{},
		Tracer:     tracer,
		Globals:    value.NewDictionary(),
	}

	finder := cfg.Finder
	if finder == nil {
		finder = NewDefaultObjectFinder()
	}

	c := &VM{
		vm:        v,
		scheduler: fiber.NewScheduler(v),
		cfg:       cfg,
		finder:    finder,
	}
	return c
}

// Interner returns the runtime's string interner, needed to build the
// intern.STE handles RegisterNative and Compile take.
func (c *VM) Interner() *intern.Interner { return c.vm.Interner }

// User returns the opaque VMUser pointer the Config was built with.
func (c *VM) User() any { return c.cfg.VMUser }

// Finder returns the ObjectFinder this runtime resolves object
// references through.
func (c *VM) Finder() ObjectFinder { return c.finder }

// Compile parses and emits source under name, returning a *vm.CodeBlock
// ready to run or to register as a named function body.
func (c *VM) Compile(name, src string) (*vm.CodeBlock, error) {
	block, err := vm.Compile(c.vm.Interner, name, src)
	if err != nil {
		c.cfg.logf("compile %s: %v", name, err)
		return nil, err
	}
	return block, nil
}

// RegisterNative installs a native function into the global namespace,
// callable by name from any compiled script. fn's userPtr argument is
// always this *VM, so a native function package can reach both the
// runtime (to lease result strings, resolve argv) and the embedder's own
// VMUser pointer (via VM.User) without a separate registration path.
func (c *VM) RegisterNative(name string, fn nsreg.NativeFunc, usage string, minArgs, maxArgs int) {
	ste := c.vm.Interner.Intern(name, false)
	c.vm.Namespaces.Global().AddCommand(ste, fn, c, usage, minArgs, maxArgs)
}

// RegisterScript installs block's top-level body as a callable function
// under name (used when a host wants to expose a compiled block's
// function to other scripts by a name other than the one it declared
// itself under — block.Functions already covers in-file calls).
func (c *VM) RegisterScript(name string, block *vm.CodeBlock, offset uint32, usage string) {
	ste := c.vm.Interner.Intern(name, false)
	c.vm.Namespaces.Global().AddFunction(ste, block, offset, usage)
}

// Spawn wraps block (starting at its top-level entry, offset 0) as a new
// fiber and returns its handle.
func (c *VM) Spawn(name string, block *vm.CodeBlock) (fiber.Handle, error) {
	if c.cfg.MaxFibers > 0 && c.scheduler.Len() >= c.cfg.MaxFibers {
		return 0, fmt.Errorf("console: fiber limit of %d reached", c.cfg.MaxFibers)
	}
	fr := vm.NewFrame(block, nil, 0)
	return c.scheduler.Spawn(name, fr), nil
}

// Resume drives the fiber h one scheduling quantum forward.
func (c *VM) Resume(h fiber.Handle, inject value.Value) (value.Value, error) {
	return c.scheduler.Resume(h, inject)
}

// RunToCompletion resumes h with a zero value repeatedly until it
// finishes, for scripts that never call a blocking native function.
func (c *VM) RunToCompletion(h fiber.Handle) (value.Value, error) {
	return c.scheduler.RunToCompletion(h)
}

// Tick advances every live fiber by one scheduling quantum, the shape an
// embedder's server loop uses to drive many fibers per frame.
func (c *VM) Tick() { c.scheduler.Tick() }

// Exec is a convenience for the common case: compile src as a fresh
// top-level script and run it synchronously to completion.
func (c *VM) Exec(name, src string) (value.Value, error) {
	block, err := c.Compile(name, src)
	if err != nil {
		return value.Value{}, err
	}
	h, err := c.Spawn(name, block)
	if err != nil {
		return value.Value{}, err
	}
	return c.RunToCompletion(h)
}

// StringOf resolves v to its display string, for an embedder that wants
// to print a returned value without reaching into zone internals.
func (c *VM) StringOf(v value.Value) string { return c.vm.StringOf(v) }

// LeaseString wraps a freshly computed Go string (a hash digest, an
// encoded string, anything a native function builds itself rather than
// receiving from argv) as a ZoneExternal Value the VM can hand back to
// script code.
func (c *VM) LeaseString(s string) value.Value { return c.vm.Ext.LeaseString(s) }

// SnapshotID returns the correlation id of the most recent Snapshot or
// Restore call, for tagging a debugger EVAL command so a later bug report
// can be tied back to the exact snapshot blob it ran against.
func (c *VM) SnapshotID() uuid.UUID { return c.scheduler.LastSnapshotID() }

// Snapshot serializes every live fiber plus the global dictionary into a
// portable blob (the CSOB format), for an embedder that checkpoints a
// long-running script host across restarts.
func (c *VM) Snapshot() []byte { return c.scheduler.Serialize() }

// Restore replaces this runtime's live fiber set with the one serialized
// in data. lookupCode resolves a codeblock by the name it was compiled
// under — the embedder is expected to keep its compiled blocks addressable
// by name (e.g. a source-file cache) since bytecode itself is not
// reserialized.
func (c *VM) Restore(data []byte, lookupCode func(name string) *vm.CodeBlock) error {
	return c.scheduler.Restore(data, lookupCode)
}
