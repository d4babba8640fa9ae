package types

import (
	"fmt"
	"sort"
	"strings"

	"github.com/xtgo/set"
)

var solveLogger = logger.With("section", "solve")

// FinishPass ends the interpretation pass: every placeholder log is frozen
// and folded into a concrete resolution. Returns the placeholder-id to
// resolved-value mapping.
//
// Solving is a single pass per placeholder, no fixed point: logs are
// append-only and closed before solving begins, and placeholders are created
// before any placeholder derived from them, so walking the table in creation
// order solves parents before children. Mutually referencing placeholders
// are solved independently and cross-substituted by identity afterwards.
func (ctx *Ctx) FinishPass() map[uint64]Value {
	if !ctx.solved {
		for _, u := range ctx.unknowns {
			u.frozen = true
		}
		for _, u := range ctx.unknowns {
			ctx.solveUnknown(u)
		}
		for _, u := range ctx.unknowns {
			if synth, isClass := u.resolved.(*ClassDef); isClass {
				ctx.substituteClass(synth)
			} else {
				u.resolved = ctx.substitute(u.resolved)
			}
		}
		ctx.substituteBases()
		ctx.solved = true
	}

	resolved := make(map[uint64]Value, len(ctx.unknowns))
	for _, u := range ctx.unknowns {
		resolved[u.id] = u.resolved
	}
	return resolved
}

// solveUnknown folds one placeholder's log into its resolution.
func (ctx *Ctx) solveUnknown(u *Unknown) {
	if u.solved {
		return
	}
	u.solved = true
	if u.fromAny || len(u.log) == 0 {
		// declared-Any boundaries and never-observed values stay
		// unconstrained rather than growing a synthetic shape
		u.resolved = Any
		return
	}

	type observed struct {
		writes []Value
		gets   []*Unknown
	}
	byName := make(map[attrName]*observed)
	var nameOrder []attrName
	observe := func(name attrName) *observed {
		if obs, ok := byName[name]; ok {
			return obs
		}
		obs := &observed{}
		byName[name] = obs
		nameOrder = append(nameOrder, name)
		return obs
	}

	var rootCalls []opCall
	for _, op := range u.log {
		switch op := op.(type) {
		case opGetAttr:
			observe(op.Name).gets = append(observe(op.Name).gets, op.Result)
		case opSetAttr:
			observe(op.Name).writes = append(observe(op.Name).writes, op.Value)
		case opCall:
			rootCalls = append(rootCalls, op)
		case opSubclass:
		}
	}

	// a value that was only ever called is a function, not a class
	if len(nameOrder) == 0 && len(rootCalls) > 0 {
		u.resolved = synthCallable(u.String(), rootCalls)
		return
	}

	c := &ClassDef{
		Name:  fmt.Sprintf("~unknown%d", u.id),
		Bases: []Value{ctx.Builtin("object")},
		id:    ctx.fresh(),
	}
	for _, name := range nameOrder {
		obs := byName[name]
		parts := append([]Value(nil), obs.writes...)
		var calls []opCall
		var bareReads []*Unknown
		for _, child := range obs.gets {
			if child == nil {
				continue
			}
			if childCalls := callsOf(child); len(childCalls) > 0 {
				calls = append(calls, childCalls...)
			} else if len(child.log) > 0 {
				parts = append(parts, child)
			} else {
				// an unused read constrains nothing; merging its placeholder
				// would absorb every written type into Any
				bareReads = append(bareReads, child)
			}
		}
		if len(calls) > 0 {
			parts = append(parts, synthCallable(name, calls))
		}
		if len(parts) == 0 {
			// observed existence with no further usage
			parts = append(parts, Any)
		}
		slotType := MakeUnion(parts...)
		// a bare read yields whatever the slot holds
		for _, child := range bareReads {
			child.resolved = slotType
			child.solved = true
		}
		c.Declare(NewSlot(name, slotType))
	}
	if len(rootCalls) > 0 {
		c.Declare(NewSlot("__call__", synthCallable("__call__", rootCalls)))
	}
	u.resolved = c
	solveLogger.Debug("synthesized class from usage",
		"placeholder", u, "class", c, "attrs", canonicalNames(nameOrder))
}

// callsOf extracts the call operations recorded against a chained
// placeholder (the result of reading an attribute that was then invoked).
func callsOf(u *Unknown) []opCall {
	var calls []opCall
	for _, op := range u.log {
		if call, isCall := op.(opCall); isCall {
			calls = append(calls, call)
		}
	}
	return calls
}

// synthCallable merges observed call operations into one signature:
// parameter types merge positionally, return types merge across calls.
func synthCallable(name string, calls []opCall) *Callable {
	arity := 0
	for _, call := range calls {
		arity = max(arity, len(call.Args))
	}
	params := make([]Value, arity)
	for _, call := range calls {
		for i, arg := range call.Args {
			params[i] = MakeUnion(params[i], arg)
		}
	}
	for i, p := range params {
		if p == nil {
			params[i] = Any
		}
	}
	var ret Value
	for _, call := range calls {
		if call.Result != nil {
			ret = MakeUnion(ret, call.Result)
		}
	}
	if ret == nil {
		ret = Any
	}
	return &Callable{Name: name, Params: params, Return: ret}
}

// substituteClass rewrites every placeholder reference inside a synthesized
// class's slots with the placeholder's resolution.
func (ctx *Ctx) substituteClass(c *ClassDef) {
	for _, name := range c.SlotNames() {
		slot, _ := c.Slot(name)
		slot.Type = ctx.substitute(slot.Type)
		if slot.GetType != nil {
			slot.GetType = ctx.substitute(slot.GetType)
		}
		if slot.SetType != nil {
			slot.SetType = ctx.substitute(slot.SetType)
		}
	}
}

func (ctx *Ctx) substitute(v Value) Value {
	switch v := v.(type) {
	case *Unknown:
		if v.resolved != nil {
			return v.resolved
		}
		return Any
	case *Union:
		substituted := make([]Value, len(v.members))
		for i, m := range v.members {
			substituted[i] = ctx.substitute(m)
		}
		return MakeUnion(substituted...)
	case *Callable:
		for i, p := range v.Params {
			if p != nil {
				v.Params[i] = ctx.substitute(p)
			}
		}
		if v.Return != nil {
			v.Return = ctx.substitute(v.Return)
		}
		return v
	case *Instance:
		for i, arg := range v.Args {
			v.Args[i] = ctx.substitute(arg)
		}
		return v
	default:
		return v
	}
}

// substituteBases replaces solved placeholders in the base lists of classes
// that subclassed them, then recomputes every linearization the placeholder
// reached through inheritance. An Any-boundary placeholder keeps Any in the
// MRO tail instead of gaining a synthetic root.
func (ctx *Ctx) substituteBases() {
	for _, u := range ctx.unknowns {
		for _, op := range u.log {
			sub, isSub := op.(opSubclass)
			if !isSub {
				continue
			}
			replacement := u.resolved
			if replacement == nil {
				replacement = Any
			}
			sub.By.Bases[sub.Index] = replacement
		}
	}
	// stale caches are not limited to the direct subclassers: any class
	// linearized during the pass may hold the placeholder entry
	var stale []*ClassDef
	for _, c := range ctx.classes {
		if mroHoldsPlaceholder(c) {
			c.resetMro()
			stale = append(stale, c)
		}
	}
	for _, c := range stale {
		ctx.Linearize(c)
	}
}

func mroHoldsPlaceholder(c *ClassDef) bool {
	if !c.mroComputed {
		return false
	}
	for _, entry := range c.mro {
		if _, isUnknown := entry.(*Unknown); isUnknown {
			return true
		}
	}
	return false
}

// canonicalNames renders a sorted, deduplicated view of observed attribute
// names for diagnostics.
func canonicalNames(names []attrName) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	n := set.Uniq(sort.StringSlice(sorted))
	return strings.Join(sorted[:n], ",")
}
