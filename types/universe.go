package types

import (
	"github.com/benbjohnson/immutable"
)

// builtinNames lists every class in the frozen universe, in definition order.
var builtinNames = []string{
	"object", "type", "NoneType", "bool", "int", "float", "complex",
	"str", "tuple", "list", "dict", "function", "property",
	"classmethod", "staticmethod", "super",
}

// newUniverse builds the pre-defined class graph the engine needs to
// simulate the language. The result is immutable: builtins are shared
// read-only by everything resolved against this context.
func newUniverse(ctx *Ctx) *immutable.Map {
	object := &ClassDef{Name: "object", id: ctx.fresh()}

	typ := &ClassDef{Name: "type", Bases: []Value{object}, id: ctx.fresh()}
	typ.Metaclass = typ

	classes := map[string]*ClassDef{
		"object": object,
		"type":   typ,
	}
	newBuiltin := func(name string, bases ...Value) *ClassDef {
		if len(bases) == 0 {
			bases = []Value{object}
		}
		c := &ClassDef{Name: name, Bases: bases, id: ctx.fresh()}
		classes[name] = c
		return c
	}

	newBuiltin("NoneType")
	intClass := newBuiltin("int")
	newBuiltin("bool", intClass)
	newBuiltin("float")
	newBuiltin("complex")
	strClass := newBuiltin("str")
	newBuiltin("tuple")
	listClass := newBuiltin("list")
	newBuiltin("dict")
	newBuiltin("function")
	property := newBuiltin("property")
	newBuiltin("classmethod")
	newBuiltin("staticmethod")
	newBuiltin("super")

	// the metaclass root gives every class-level lookup its final fallbacks
	typ.Declare(NewSlot("__name__", &Instance{Class: strClass, id: ctx.fresh()}))
	typ.Declare(NewSlot("mro", &Callable{
		Name:   "mro",
		Return: &Instance{Class: listClass, id: ctx.fresh()},
	}))

	// instances of property are data descriptors
	anyInstance := func() *Instance { return &Instance{Class: object, id: ctx.fresh()} }
	property.Declare(NewSlot("__get__", &Callable{Name: "__get__", Params: []Value{anyInstance(), typ}, Return: Any}))
	property.Declare(NewSlot("__set__", &Callable{Name: "__set__", Params: []Value{anyInstance(), Any}, Return: ctx.noneOf(classes)}))

	m := immutable.NewMap(nil)
	for _, name := range builtinNames {
		m = m.Set(name, classes[name])
	}
	return m
}

func (ctx *Ctx) noneOf(classes map[string]*ClassDef) *Instance {
	return &Instance{Class: classes["NoneType"], id: ctx.fresh()}
}

// None returns a fresh abstract NoneType instance, the implicit return of
// procedures like __init__.
func (ctx *Ctx) None() *Instance {
	return ctx.NewInstance(ctx.Builtin("NoneType"))
}

// metaclassOf is the metaclass used for class-level attribute access;
// classes without an explicit metaclass are instances of the root metaclass.
func (ctx *Ctx) metaclassOf(c *ClassDef) *ClassDef {
	if c.Metaclass != nil {
		return c.Metaclass
	}
	return ctx.Builtin("type")
}

// classOf maps a value to the class driving its attribute protocol.
func (ctx *Ctx) classOf(v Value) (*ClassDef, bool) {
	switch v := v.(type) {
	case *Instance:
		return v.Class, true
	case *ClassDef:
		return ctx.metaclassOf(v), true
	case *Callable, *BoundMethod:
		return ctx.Builtin("function"), true
	default:
		return nil, false
	}
}
