package types

import (
	"strconv"
)

// Unknown stands in for a value whose origin the interpreter could not pin
// down. Instead of failing, every operation against it is recorded in an
// append-only log; the solver later folds the log into a concrete class, or
// into Any when the placeholder came from a declared-Any stub boundary.
//
// An Unknown has identity but no owner: it is referenced from wherever the
// unresolved value flows, and looked up by identity at solve time.
type Unknown struct {
	id      uint64
	fromAny bool

	log    []unknownOp
	frozen bool

	resolved Value
	solved   bool
}

// NewUnknown registers a fresh placeholder in the context's solving table.
func (ctx *Ctx) NewUnknown() *Unknown {
	u := &Unknown{id: ctx.fresh()}
	ctx.unknowns = append(ctx.unknowns, u)
	return u
}

// NewAnyBoundary registers a placeholder known to originate from an
// unanalyzable external boundary. It will resolve to Any, not to a
// synthesized class, and classes derived from it keep Any in their MRO tail.
func (ctx *Ctx) NewAnyBoundary() *Unknown {
	u := ctx.NewUnknown()
	u.fromAny = true
	return u
}

func (u *Unknown) String() string {
	if u.fromAny {
		return "?any" + strconv.FormatUint(u.id, 10)
	}
	return "~unk" + strconv.FormatUint(u.id, 10)
}

func (u *Unknown) Hash() uint64 {
	const prime1 uint64 = 7919
	return prime1 * 31 * (u.id + 1)
}

func (u *Unknown) ID() uint64 { return u.id }

// Resolved returns the solver's verdict for this placeholder, once solved.
func (u *Unknown) Resolved() (Value, bool) {
	return u.resolved, u.solved
}

type unknownOp interface {
	isUnknownOp()
}

type opGetAttr struct {
	Name attrName
	// Result is the placeholder bound to the read's result, so that chained
	// usage (calls on the attribute, nested reads) stays connected.
	Result *Unknown
}

type opSetAttr struct {
	Name  attrName
	Value Value
}

type opCall struct {
	Args   []Value
	Result *Unknown
}

type opSubclass struct {
	By    *ClassDef
	Index int
}

func (opGetAttr) isUnknownOp()  {}
func (opSetAttr) isUnknownOp()  {}
func (opCall) isUnknownOp()     {}
func (opSubclass) isUnknownOp() {}

func (u *Unknown) record(op unknownOp) {
	if u.frozen {
		return
	}
	u.log = append(u.log, op)
}

func (u *Unknown) observeGet(ctx *Ctx, name attrName) Value {
	if u.fromAny {
		return Any
	}
	result := ctx.NewUnknown()
	u.record(opGetAttr{Name: name, Result: result})
	return result
}

func (u *Unknown) observeSet(name attrName, v Value) {
	if u.fromAny {
		return
	}
	u.record(opSetAttr{Name: name, Value: v})
}

func (u *Unknown) observeCall(ctx *Ctx, args []Value) Value {
	if u.fromAny {
		return Any
	}
	result := ctx.NewUnknown()
	u.record(opCall{Args: args, Result: result})
	return result
}

func (u *Unknown) observeSubclass(by *ClassDef, index int) {
	u.record(opSubclass{By: by, Index: index})
}
