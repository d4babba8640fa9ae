package types

import (
	"log/slog"

	"github.com/benbjohnson/immutable"
	"github.com/pkg/errors"
	"github.com/pyglass/pyglass/internal/log"
	"github.com/pyglass/pyglass/pyerr"
)

var logger = slog.New(ValueSlogHandler(log.DefaultLogger.Handler())).
	With("section", "resolve")

// maxResolveDepth bounds re-entrant resolution. Classes are acyclic after a
// successful linearization, so this only trips on degenerate inputs; when it
// does, the result degrades to Any instead of crashing.
const maxResolveDepth = 64

// Ctx is the driver-facing resolution context: it owns the builtin universe,
// the live placeholder table, and the accumulated diagnostics for one
// single-threaded interpretation pass.
type Ctx struct {
	universe *immutable.Map

	unknowns []*Unknown
	// classes tracks every user-defined class so the solver can find stale
	// linearizations anywhere in a hierarchy, not just on direct subclassers
	classes []*ClassDef

	// Errors are structured, user-reportable diagnostics; Failures are
	// internal conditions that should not happen on well-formed input.
	Errors   *pyerr.Errors
	Failures []error

	depth  int
	nextID uint64
	solved bool
}

func NewCtx() *Ctx {
	ctx := &Ctx{}
	ctx.universe = newUniverse(ctx)
	return ctx
}

func (ctx *Ctx) fresh() uint64 {
	ctx.nextID++
	return ctx.nextID
}

// Builtin returns a class from the frozen builtin universe. Unknown names
// are a caller bug, not an analysis error.
func (ctx *Ctx) Builtin(name string) *ClassDef {
	v, ok := ctx.universe.Get(name)
	if !ok {
		panic("no such builtin class: " + name)
	}
	return v.(*ClassDef)
}

// NewClass creates a class with the given bases. A class with no declared
// bases implicitly inherits from the universal root.
func (ctx *Ctx) NewClass(name string, bases ...Value) *ClassDef {
	if len(bases) == 0 {
		bases = []Value{ctx.Builtin("object")}
	}
	c := &ClassDef{
		Name:  name,
		Bases: bases,
		id:    ctx.fresh(),
	}
	for i, base := range bases {
		if u, isUnknown := base.(*Unknown); isUnknown {
			u.observeSubclass(c, i)
		}
	}
	ctx.classes = append(ctx.classes, c)
	return c
}

func (ctx *Ctx) NewClassWithMeta(name string, metaclass *ClassDef, bases ...Value) *ClassDef {
	c := ctx.NewClass(name, bases...)
	c.Metaclass = metaclass
	return c
}

func (ctx *Ctx) NewInstance(c *ClassDef, args ...Value) *Instance {
	return &Instance{
		Class: c,
		Args:  args,
		id:    ctx.fresh(),
	}
}

// ListOf is shorthand for an abstract list whose elements are elem.
func (ctx *Ctx) ListOf(elem Value) *Instance {
	return ctx.NewInstance(ctx.Builtin("list"), elem)
}

func (ctx *Ctx) addError(err pyerr.PyError) {
	ctx.Errors = ctx.Errors.With(err)
}

func (ctx *Ctx) addFailure(msg string, err error) {
	if err == nil {
		err = errors.New(msg)
	} else {
		err = errors.Wrap(err, msg)
	}
	ctx.Failures = append(ctx.Failures, err)
}

// enter pushes one level of re-entrant resolution; callers must pair it with
// leave. It reports false once the defensive depth guard trips.
func (ctx *Ctx) enter(at string) bool {
	ctx.depth++
	if ctx.depth > maxResolveDepth {
		ctx.addError(pyerr.New(pyerr.NewRecursionGuardTripped{At: at}))
		return false
	}
	return true
}

func (ctx *Ctx) leave() {
	ctx.depth--
}
