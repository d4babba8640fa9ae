package types

import (
	"fmt"
	"github.com/pyglass/pyglass/pyerr"
)

// AccessKind distinguishes why an attribute is being resolved. Reads and
// calls share a lookup path; writes go through WriteAttr.
type AccessKind int

const (
	AccessRead AccessKind = iota
	AccessCall
	AccessWrite
)

// mroHit is a slot found during a linearization walk, with the class that
// declared it.
type mroHit struct {
	slot  *AttributeSlot
	owner *ClassDef
}

// ResolveAttr resolves base.name and returns the resulting type-set.
//
// A *pyerr.NewNoSuchAttribute error is an outcome, not a failure: the caller
// decides whether the miss is reportable. All other degradations (recursion
// guard, MRO conflicts encountered on the way) accumulate on ctx.Errors and
// the result degrades to Any.
func (ctx *Ctx) ResolveAttr(base Value, name attrName, access AccessKind) (Value, error) {
	if !ctx.enter(name) {
		ctx.leave()
		return Any, nil
	}
	defer ctx.leave()

	logger.Debug("resolving attribute", "base", base, "attr", name)
	switch base := base.(type) {
	case anyType:
		return Any, nil
	case *Unknown:
		return base.observeGet(ctx, name), nil
	case *Instance:
		return ctx.resolveInstanceAttr(base, name)
	case *ClassDef:
		return ctx.resolveClassAttr(base, name)
	case *Module:
		return ctx.resolveModuleAttr(base, name)
	case *Union:
		return ctx.resolveUnionAttr(base, name, access)
	case *Callable, *BoundMethod:
		cls, _ := ctx.classOf(base)
		return ctx.resolveViaClass(base, cls, name)
	default:
		ctx.addFailure(fmt.Sprintf("attribute access on unexpected variant %T", base), nil)
		return Any, nil
	}
}

// resolveInstanceAttr implements the instance lookup protocol, in this exact
// order: __getattribute__ short-circuit, data descriptors, the instance's
// own dict, the remaining slot kinds, the unresolved-base Any fallback, and
// finally __getattr__.
func (ctx *Ctx) resolveInstanceAttr(inst *Instance, name attrName) (Value, error) {
	cls := inst.Class
	if name == "__class__" {
		return cls, nil
	}
	mro := ctx.Linearize(cls)

	if result, intercepted := ctx.getattributeHook(mro, inst, cls); intercepted {
		return result, nil
	}

	hit, found, placeholder := ctx.findSlot(mro, name)

	if found && (hit.slot.Kind == SlotDataDescriptor || hit.slot.Kind == SlotProperty) {
		return ctx.descriptorGet(hit, inst, cls, true)
	}

	if own, ok := inst.Own(name); ok {
		return own, nil
	}

	if found {
		return ctx.bindSlot(hit, inst, cls, true)
	}

	if placeholder != nil {
		return ctx.placeholderFallback(placeholder, name), nil
	}

	if result, intercepted := ctx.getattrHook(mro); intercepted {
		return result, nil
	}

	return nil, pyerr.New(pyerr.NewNoSuchAttribute{Base: describe(inst), Attribute: name})
}

// resolveClassAttr implements class-level access: the metaclass MRO is
// consulted with the same ordering before falling through to the class's own
// dict, so metaclass hooks intercept class attribute reads.
func (ctx *Ctx) resolveClassAttr(cls *ClassDef, name attrName) (Value, error) {
	meta := ctx.metaclassOf(cls)
	if name == "__class__" {
		return meta, nil
	}
	metaMro := ctx.Linearize(meta)
	clsMro := ctx.Linearize(cls)

	if result, intercepted := ctx.getattributeHook(metaMro, cls, meta); intercepted {
		return result, nil
	}

	metaHit, metaFound, metaPlaceholder := ctx.findSlot(metaMro, name)
	if metaFound && (metaHit.slot.Kind == SlotDataDescriptor || metaHit.slot.Kind == SlotProperty) {
		return ctx.descriptorGet(metaHit, cls, meta, true)
	}

	if hit, found, placeholder := ctx.findSlot(clsMro, name); found {
		return ctx.bindSlot(hit, cls, cls, false)
	} else if placeholder != nil {
		return ctx.placeholderFallback(placeholder, name), nil
	}

	if metaFound {
		// the class is an instance of its metaclass, so metaclass-level
		// callables bind the class as their receiver (this is what makes
		// C.mro() and C.__name__ work)
		return ctx.bindSlot(metaHit, cls, meta, true)
	}

	if metaPlaceholder != nil {
		return ctx.placeholderFallback(metaPlaceholder, name), nil
	}

	if result, intercepted := ctx.getattrHook(metaMro); intercepted {
		return result, nil
	}

	return nil, pyerr.New(pyerr.NewNoSuchAttribute{Base: describe(cls), Attribute: name})
}

func (ctx *Ctx) resolveModuleAttr(mod *Module, name attrName) (Value, error) {
	if v, ok := mod.Member(name); ok {
		return v, nil
	}
	if mod.catchAll != nil {
		return mod.catchAll, nil
	}
	return nil, pyerr.New(pyerr.NewNoSuchAttribute{Base: describe(mod), Attribute: name})
}

// resolveUnionAttr resolves against every member and merges what it finds;
// the miss outcome is returned only when no member has the attribute.
func (ctx *Ctx) resolveUnionAttr(u *Union, name attrName, access AccessKind) (Value, error) {
	var result Value
	var firstMiss error
	for _, member := range u.Members() {
		memberResult, err := ctx.ResolveAttr(member, name, access)
		if err != nil {
			if firstMiss == nil {
				firstMiss = err
			}
			continue
		}
		if result == nil {
			result = memberResult
		} else {
			result = ctx.Merge(result, memberResult)
		}
	}
	if result == nil {
		return nil, firstMiss
	}
	return result, nil
}

// resolveViaClass resolves name through cls's protocol on behalf of a
// receiver that is not an *Instance (callables, bound methods).
func (ctx *Ctx) resolveViaClass(receiver Value, cls *ClassDef, name attrName) (Value, error) {
	mro := ctx.Linearize(cls)
	hit, found, placeholder := ctx.findSlot(mro, name)
	if found {
		return ctx.bindSlot(hit, receiver, cls, true)
	}
	if placeholder != nil {
		return ctx.placeholderFallback(placeholder, name), nil
	}
	return nil, pyerr.New(pyerr.NewNoSuchAttribute{Base: describe(receiver), Attribute: name})
}

// findSlot walks a linearization for the first concrete class declaring
// name. It also reports the first Unknown/Any entry crossed: when the walk
// misses entirely, that placeholder makes the lookup succeed with Any.
func (ctx *Ctx) findSlot(mro []Value, name attrName) (mroHit, bool, Value) {
	var placeholder Value
	for _, entry := range mro {
		switch entry := entry.(type) {
		case *ClassDef:
			if slot, ok := entry.Slot(name); ok {
				return mroHit{slot: slot, owner: entry}, true, placeholder
			}
		case *Unknown, anyType:
			if placeholder == nil {
				placeholder = entry
			}
		}
	}
	return mroHit{}, false, placeholder
}

// placeholderFallback is the unresolved-base rule: the lookup succeeds
// trivially with Any, and the access is recorded against the placeholder's
// log while it is still live.
func (ctx *Ctx) placeholderFallback(placeholder Value, name attrName) Value {
	if u, isUnknown := placeholder.(*Unknown); isUnknown && !u.fromAny {
		u.record(opGetAttr{Name: name})
	}
	return Any
}

// getattributeHook finds an overriding __getattribute__ slot. The universal
// root's default lookup is not an override, and neither is the metaclass
// root's.
func (ctx *Ctx) getattributeHook(mro []Value, receiver Value, cls *ClassDef) (Value, bool) {
	hit, found, _ := ctx.findSlot(mro, "__getattribute__")
	if !found || hit.owner == ctx.Builtin("object") || hit.owner == ctx.Builtin("type") {
		return nil, false
	}
	return ctx.hookResult(hit, receiver), true
}

func (ctx *Ctx) getattrHook(mro []Value) (Value, bool) {
	hit, found, _ := ctx.findSlot(mro, "__getattr__")
	if !found || hit.owner == ctx.Builtin("object") {
		return nil, false
	}
	return ctx.hookResult(hit, nil), true
}

// hookResult is the declared/inferred return type of a dynamic-lookup hook.
func (ctx *Ctx) hookResult(hit mroHit, receiver Value) Value {
	if fn, isFn := hit.slot.Type.(*Callable); isFn {
		if fn.Return != nil {
			return fn.Return
		}
		return Any
	}
	return hit.slot.Type
}

// bindSlot applies get semantics for the remaining slot kinds. cls is the
// class the access went through (for an instance, its class); viaInstance
// distinguishes instance access from bare class access.
func (ctx *Ctx) bindSlot(hit mroHit, receiver Value, cls *ClassDef, viaInstance bool) (Value, error) {
	switch hit.slot.Kind {
	case SlotPlain:
		// same value through either access path, no binding
		return hit.slot.Type, nil
	case SlotNonDataDescriptor:
		if fn, isFn := hit.slot.Type.(*Callable); isFn {
			if viaInstance {
				return &BoundMethod{Recv: receiver, Func: fn}, nil
			}
			return fn, nil
		}
		return ctx.descriptorGet(hit, receiver, cls, viaInstance)
	case SlotDataDescriptor:
		return ctx.descriptorGet(hit, receiver, cls, viaInstance)
	case SlotProperty:
		if viaInstance {
			return hit.slot.GetType, nil
		}
		// reading a property off the class yields the property object
		return hit.slot.Type, nil
	case SlotClassMethod:
		fn, isFn := hit.slot.Type.(*Callable)
		if !isFn {
			ctx.addFailure(fmt.Sprintf("classmethod slot %s does not hold a callable", hit.slot.Name), nil)
			return Any, nil
		}
		// the class, never the instance, is bound regardless of access path
		return &BoundMethod{Recv: cls, Func: fn}, nil
	case SlotStaticMethod:
		return hit.slot.Type, nil
	default:
		ctx.addFailure(fmt.Sprintf("unhandled slot kind %v", hit.slot.Kind), nil)
		return Any, nil
	}
}

// descriptorGet invokes a descriptor's get semantics, parameterized by
// (instance, owning class) as the protocol requires.
func (ctx *Ctx) descriptorGet(hit mroHit, receiver Value, owner *ClassDef, viaInstance bool) (Value, error) {
	if hit.slot.Kind == SlotProperty {
		if viaInstance {
			return hit.slot.GetType, nil
		}
		return hit.slot.Type, nil
	}
	getter, err := ctx.ResolveAttr(hit.slot.Type, "__get__", AccessCall)
	if err != nil {
		// not actually a descriptor: a normal branch, not an error
		return hit.slot.Type, nil
	}
	var instArg Value = receiver
	if !viaInstance {
		instArg = ctx.None()
	}
	return ctx.Call(getter, []Value{instArg, owner})
}

// WriteAttr applies write semantics for base.name = v. Data-descriptor set
// hooks win; otherwise the value lands in the instance's (or class's) own
// attribute mapping, widened to the union of every value ever written there.
func (ctx *Ctx) WriteAttr(base Value, name attrName, v Value) error {
	if !ctx.enter(name) {
		ctx.leave()
		return nil
	}
	defer ctx.leave()

	switch base := base.(type) {
	case anyType:
		return nil
	case *Unknown:
		base.observeSet(name, v)
		return nil
	case *Union:
		for _, member := range base.Members() {
			if err := ctx.WriteAttr(member, name, v); err != nil {
				return err
			}
		}
		return nil
	case *Instance:
		mro := ctx.Linearize(base.Class)
		if hit, found, _ := ctx.findSlot(mro, name); found {
			switch hit.slot.Kind {
			case SlotDataDescriptor:
				// the descriptor owns the store; nothing lands on the instance
				return nil
			case SlotProperty:
				if hit.slot.SetType == nil {
					return pyerr.New(pyerr.NewNoSuchAttribute{Base: describe(base), Attribute: name})
				}
				hit.slot.SetType = ctx.Merge(hit.slot.SetType, v)
				return nil
			}
		}
		if prev, ok := base.Own(name); ok {
			v = ctx.Merge(prev, v)
		}
		base.setOwn(name, v)
		return nil
	case *ClassDef:
		metaMro := ctx.Linearize(ctx.metaclassOf(base))
		if hit, found, _ := ctx.findSlot(metaMro, name); found && hit.slot.Kind == SlotDataDescriptor {
			return nil
		}
		if slot, ok := base.Slot(name); ok {
			slot.Type = ctx.Merge(slot.Type, v)
			return nil
		}
		base.Declare(NewSlot(name, v))
		return nil
	case *Module:
		base.Declare(name, v)
		return nil
	default:
		ctx.addFailure(fmt.Sprintf("attribute write on unexpected variant %T", base), nil)
		return nil
	}
}
