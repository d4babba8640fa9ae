package types

import (
	"fmt"
	"github.com/pyglass/pyglass/pyerr"
)

// Call applies call semantics to a value and returns the result type-set.
// Calling a class constructs an instance; calling a placeholder records the
// call in its log.
func (ctx *Ctx) Call(fn Value, args []Value) (Value, error) {
	if !ctx.enter("()") {
		ctx.leave()
		return Any, nil
	}
	defer ctx.leave()

	switch fn := fn.(type) {
	case anyType:
		return Any, nil
	case *Unknown:
		return fn.observeCall(ctx, args), nil
	case *ClassDef:
		return ctx.Construct(fn, args), nil
	case *Callable:
		// an unbound call passes the receiver explicitly
		if len(fn.SelfEffects) > 0 && len(args) > 0 {
			ctx.applySelfEffects(fn, args[0])
		}
		return ctx.callResult(fn), nil
	case *BoundMethod:
		ctx.applySelfEffects(fn.Func, fn.Recv)
		return ctx.callResult(fn.Func), nil
	case *Union:
		var result Value
		for _, member := range fn.Members() {
			memberResult, err := ctx.Call(member, args)
			if err != nil {
				return nil, err
			}
			if result == nil {
				result = memberResult
			} else {
				result = ctx.Merge(result, memberResult)
			}
		}
		return result, nil
	case *Instance:
		call, err := ctx.ResolveAttr(fn, "__call__", AccessCall)
		if err != nil {
			return nil, err
		}
		return ctx.Call(call, args)
	default:
		ctx.addFailure(fmt.Sprintf("call on unexpected variant %T", fn), nil)
		return Any, nil
	}
}

func (ctx *Ctx) callResult(fn *Callable) Value {
	if fn.Return == nil {
		return Any
	}
	return fn.Return
}

// applySelfEffects replays the attribute writes a callable body performs on
// its receiver, through the normal write path so widening applies.
func (ctx *Ctx) applySelfEffects(fn *Callable, recv Value) {
	for _, effect := range fn.SelfEffects {
		if err := ctx.WriteAttr(recv, effect.Fst, effect.Snd); err != nil {
			ctx.addFailure(fmt.Sprintf("self write %s.%s failed", describe(recv), effect.Fst), err)
		}
	}
}

// Construct models cls(*args): __new__ produces a candidate value, and
// __init__ runs on it only when __new__ actually produced an instance of the
// class being constructed (or a subclass of it). If __new__ returned some
// unrelated type, __init__ is skipped, none of its side effects apply, and
// that type is the final result.
//
// Construction never aborts the analysis: signature mismatches are reported
// and a best-effort type is still produced.
func (ctx *Ctx) Construct(cls *ClassDef, args []Value) Value {
	logger.Debug("constructing", "section", "construct", "class", cls, "args", len(args))

	candidate := ctx.newCandidate(cls, args)

	candidateInst, isInstance := candidate.(*Instance)
	if !isInstance || !ctx.IsSubclassOf(candidateInst.Class, cls) {
		return candidate
	}

	initVal, err := ctx.ResolveAttr(candidateInst, "__init__", AccessCall)
	if err != nil {
		// no __init__ anywhere on the MRO: default initialization
		return candidate
	}
	// __init__'s own return type contributes no value by contract; its
	// mutations of self persist through the write path
	if _, err := ctx.Call(initVal, args); err != nil {
		ctx.addError(pyerr.New(pyerr.NewConstructionFailed{
			Class:  cls.Name,
			Reason: fmt.Sprintf("__init__ rejected arguments: %v", err),
		}))
	}
	if bound, isBound := initVal.(*BoundMethod); isBound {
		ctx.checkArity(cls, bound.Func, len(args))
	}
	return candidate
}

// newCandidate resolves __new__ through the class-level protocol, so a
// metaclass can supply or intercept it, then invokes it. Absent __new__
// defaults to a fresh instance of cls, and so does a candidate of Any
// (a stub-typed __new__): that keeps the best-effort result.
func (ctx *Ctx) newCandidate(cls *ClassDef, args []Value) Value {
	newVal, err := ctx.ResolveAttr(cls, "__new__", AccessCall)
	if err != nil {
		// no __new__ anywhere: default allocation
		return ctx.NewInstance(cls)
	}
	var result Value
	switch newVal := newVal.(type) {
	case *BoundMethod:
		// metaclass-level __new__ already bound the class as its receiver
		result, err = ctx.Call(newVal, args)
	default:
		// __new__ is an implicit staticmethod receiving the class first
		result, err = ctx.Call(newVal, append([]Value{cls}, args...))
	}
	if err != nil {
		ctx.addError(pyerr.New(pyerr.NewConstructionFailed{
			Class:  cls.Name,
			Reason: fmt.Sprintf("__new__ failed: %v", err),
		}))
		return ctx.NewInstance(cls)
	}
	if Equal(result, Any) {
		return ctx.NewInstance(cls)
	}
	return result
}

// checkArity reports a diagnostic for an argument-count mismatch against a
// declared signature; construction still proceeds.
func (ctx *Ctx) checkArity(cls *ClassDef, fn *Callable, got int) {
	if len(fn.Params) == 0 {
		return
	}
	// the receiver slot is already bound
	want := len(fn.Params) - 1
	if got != want {
		ctx.addError(pyerr.New(pyerr.NewConstructionFailed{
			Class:  cls.Name,
			Reason: fmt.Sprintf("%s takes %d arguments, got %d", fn.Name, want, got),
		}))
	}
}
