// Package console is the embedder-facing surface: the pieces a host
// program touches to stand up a runtime, register its own classes and
// native functions, compile source, and drive execution. Everything
// below it (intern, value, typesys, nsreg, compiler, vm, fiber) is
// usable on its own, but console is where those seven components are
// wired into one thing an embedder constructs once per isolated runtime.
package console

import (
	"fmt"

	"ember/intern"
)

// ObjectFinder stands in for the host's object database: the thing the
// embedder's own `iFind` vtable pointed at in the abstract config. A
// script that references an object by name, path, or numeric id routes
// through here; this package never guesses at a database schema, it only
// defines the contract and ships DefaultObjectFinder as a map-backed
// stand-in good enough to compile and run the test suite against.
type ObjectFinder interface {
	FindByName(name string) (id int64, ok bool)
	FindByPath(path string) (id int64, ok bool)
	FindByID(id int64) (name string, ok bool)
}

// DefaultObjectFinder is an in-memory ObjectFinder. It is explicitly NOT
// a host object database — just enough bookkeeping for a demo or test to
// register a few named objects and have `find_object()`-style native
// functions resolve them.
type DefaultObjectFinder struct {
	byName map[string]int64
	byID   map[int64]string
	nextID int64
}

// NewDefaultObjectFinder returns an empty finder.
func NewDefaultObjectFinder() *DefaultObjectFinder {
	return &DefaultObjectFinder{byName: map[string]int64{}, byID: map[int64]string{}}
}

// Register assigns name the next free id and returns it.
func (f *DefaultObjectFinder) Register(name string) int64 {
	id := f.nextID
	f.nextID++
	f.byName[name] = id
	f.byID[id] = name
	return id
}

func (f *DefaultObjectFinder) FindByName(name string) (int64, bool) {
	id, ok := f.byName[name]
	return id, ok
}

func (f *DefaultObjectFinder) FindByPath(path string) (int64, bool) {
	return f.FindByName(path)
}

func (f *DefaultObjectFinder) FindByID(id int64) (string, bool) {
	name, ok := f.byID[id]
	return name, ok
}

// LogFunc receives one line of runtime log output (the `logFn` of the
// abstract config).
type LogFunc func(line string)

// Config configures a new VM. Every field is optional; New fills in
// workable defaults for anything left zero.
type Config struct {
	// Log receives the VM's log lines: one line per failed Compile.
	// Runtime errors and uncaught exceptions are returned to the caller
	// as Go errors, not logged. Nil means discard.
	Log LogFunc

	// AddTag maps tag text to an embedder-chosen integer id. The compiler
	// has no `'tag` atom literal, so nothing in the runtime calls it.
	AddTag func(tag string) int

	// Finder resolves object references a script makes by name, path, or
	// id. Nil installs a fresh DefaultObjectFinder.
	Finder ObjectFinder

	// Interner, if set, is shared across every VM constructed with it so
	// identifier handles compare equal between them — the one case where
	// sharing an Interner across runtimes is correct (see intern.Interner
	// doc comment). Nil gives this VM a private Interner.
	Interner *intern.Interner

	// MaxFibers caps how many fibers a Scheduler will let live at once;
	// Spawn past the cap fails. Zero means unlimited.
	MaxFibers int

	// Feature flags. All default false. They are stored but not
	// consulted: try/catch/throw and string interpolation compile
	// whatever their values.
	EnableExceptions          bool
	EnableTuples              bool
	EnableTypes               bool
	EnableStringInterpolation bool

	// WarnUndefinedVars is stored but not consulted: reading an undefined
	// variable always yields zero and logs nothing.
	WarnUndefinedVars bool

	// VMUser is an opaque pointer the embedder can stash and retrieve
	// from native function callbacks via VM.User(); the runtime never
	// looks inside it.
	VMUser any
}

func (c *Config) logf(format string, args ...any) {
	if c.Log == nil {
		return
	}
	c.Log(fmt.Sprintf(format, args...))
}
