package types_test

import (
	"testing"

	"github.com/pyglass/pyglass/pyerr"
	"github.com/pyglass/pyglass/types"
	"github.com/stretchr/testify/assert"
)

func intVal(ctx *types.Ctx) *types.Instance   { return ctx.NewInstance(ctx.Builtin("int")) }
func strVal(ctx *types.Ctx) *types.Instance   { return ctx.NewInstance(ctx.Builtin("str")) }
func floatVal(ctx *types.Ctx) *types.Instance { return ctx.NewInstance(ctx.Builtin("float")) }

func resolve(t *testing.T, ctx *types.Ctx, base types.Value, name string) types.Value {
	t.Helper()
	result, err := ctx.ResolveAttr(base, name, types.AccessRead)
	assert.NoError(t, err, "resolving %s.%s", base, name)
	return result
}

func errCodes(ctx *types.Ctx) []pyerr.ErrCode {
	var codes []pyerr.ErrCode
	for _, err := range ctx.Errors.Errors() {
		codes = append(codes, err.Code())
	}
	return codes
}

func TestDiamondAttributePrecedence(t *testing.T) {
	ctx := types.NewCtx()
	complexVal := ctx.NewInstance(ctx.Builtin("complex"))

	a := ctx.NewClass("A")
	a.Declare(types.NewSlot("x", intVal(ctx)))
	b := ctx.NewClass("B", a)
	c := ctx.NewClass("C", a)
	c.Declare(types.NewSlot("y", strVal(ctx)))
	c.Declare(types.NewSlot("z", complexVal))
	d := ctx.NewClass("D", b, c)
	inst := ctx.NewInstance(d)

	// first match in the MRO wins, never a union of shadowed slots
	assert.Equal(t, "str", resolve(t, ctx, inst, "y").String())
	assert.Equal(t, "int", resolve(t, ctx, inst, "x").String())
	assert.Equal(t, "complex", resolve(t, ctx, inst, "z").String())
}

func TestShadowedSlotIsNotMerged(t *testing.T) {
	ctx := types.NewCtx()
	a := ctx.NewClass("A")
	a.Declare(types.NewSlot("y", intVal(ctx)))
	c := ctx.NewClass("C", a)
	c.Declare(types.NewSlot("y", strVal(ctx)))
	inst := ctx.NewInstance(c)

	got := resolve(t, ctx, inst, "y")
	_, isUnion := got.(*types.Union)
	assert.False(t, isUnion)
	assert.Equal(t, "str", got.String())
}

func TestPropertyBeatsInstanceDict(t *testing.T) {
	ctx := types.NewCtx()
	foo := ctx.NewClass("Foo")
	inst := ctx.NewInstance(foo)

	// the instance dict entry exists before the property is declared
	assert.NoError(t, ctx.WriteAttr(inst, "name", intVal(ctx)))
	foo.Declare(types.NewPropertySlot("name",
		ctx.NewInstance(ctx.Builtin("property")), strVal(ctx), nil))

	assert.Equal(t, "str", resolve(t, ctx, inst, "name").String())
}

func TestPropertyReadThroughClassYieldsPropertyObject(t *testing.T) {
	ctx := types.NewCtx()
	foo := ctx.NewClass("Foo")
	foo.Declare(types.NewPropertySlot("name",
		ctx.NewInstance(ctx.Builtin("property")), strVal(ctx), nil))

	assert.Equal(t, "property", resolve(t, ctx, foo, "name").String())
}

func TestNonDataDescriptorGet(t *testing.T) {
	ctx := types.NewCtx()
	desc := ctx.NewClass("Desc")
	desc.Declare(types.NewSlot("__get__", &types.Callable{Name: "__get__", Return: strVal(ctx)}))

	bar := ctx.NewClass("Bar")
	bar.Declare(types.NewSlot("foo", ctx.NewInstance(desc)))
	inst := ctx.NewInstance(bar)

	assert.Equal(t, "str", resolve(t, ctx, inst, "foo").String())
}

func TestDataDescriptorOwnsWrites(t *testing.T) {
	ctx := types.NewCtx()
	desc := ctx.NewClass("Desc")
	desc.Declare(types.NewSlot("__get__", &types.Callable{Name: "__get__", Return: strVal(ctx)}))
	desc.Declare(types.NewSlot("__set__", &types.Callable{Name: "__set__", Return: ctx.None()}))

	bar := ctx.NewClass("Bar")
	bar.Declare(types.NewSlot("foo", ctx.NewInstance(desc)))
	inst := ctx.NewInstance(bar)

	// the write goes to the descriptor, never to the instance dict
	assert.NoError(t, ctx.WriteAttr(inst, "foo", intVal(ctx)))
	_, hasOwn := inst.Own("foo")
	assert.False(t, hasOwn)
	assert.Equal(t, "str", resolve(t, ctx, inst, "foo").String())
}

func TestAttributeWideningIsMonotonic(t *testing.T) {
	ctx := types.NewCtx()
	foo := ctx.NewClass("Foo")
	inst := ctx.NewInstance(foo)

	assert.NoError(t, ctx.WriteAttr(inst, "v", intVal(ctx)))
	assert.NoError(t, ctx.WriteAttr(inst, "v", strVal(ctx)))

	got := resolve(t, ctx, inst, "v")
	assert.Equal(t, "(int | str)", got.String())

	// a third write keeps accumulating, never replaces
	assert.NoError(t, ctx.WriteAttr(inst, "v", floatVal(ctx)))
	assert.Equal(t, "(int | str | float)", resolve(t, ctx, inst, "v").String())
}

func TestClassAttributeWidening(t *testing.T) {
	ctx := types.NewCtx()
	foo := ctx.NewClass("Foo")

	assert.NoError(t, ctx.WriteAttr(foo, "x", intVal(ctx)))
	assert.NoError(t, ctx.WriteAttr(foo, "x", strVal(ctx)))

	assert.Equal(t, "(int | str)", resolve(t, ctx, foo, "x").String())
	// instances see the widened class attribute too
	assert.Equal(t, "(int | str)", resolve(t, ctx, ctx.NewInstance(foo), "x").String())
}

func TestGetattributeShortCircuitsEverything(t *testing.T) {
	ctx := types.NewCtx()
	a := ctx.NewClass("A")
	a.Declare(types.NewSlot("__getattribute__", &types.Callable{Name: "__getattribute__", Return: intVal(ctx)}))
	a.Declare(types.NewSlot("x", strVal(ctx)))
	inst := ctx.NewInstance(a)
	assert.NoError(t, ctx.WriteAttr(inst, "y", strVal(ctx)))

	// even attributes that exist come back through the hook
	assert.Equal(t, "int", resolve(t, ctx, inst, "x").String())
	assert.Equal(t, "int", resolve(t, ctx, inst, "y").String())
	assert.Equal(t, "int", resolve(t, ctx, inst, "nonexistent").String())
}

func TestGetattrOnlyAfterMroMiss(t *testing.T) {
	ctx := types.NewCtx()
	foo := ctx.NewClass("Foo")
	foo.Declare(types.NewSlot("__getattr__", &types.Callable{Name: "__getattr__", Return: strVal(ctx)}))
	foo.Declare(types.NewSlot("x", intVal(ctx)))
	inst := ctx.NewInstance(foo)

	assert.Equal(t, "int", resolve(t, ctx, inst, "x").String())
	assert.Equal(t, "str", resolve(t, ctx, inst, "missing").String())
}

func TestMetaclassGetattributeInterceptsClassReads(t *testing.T) {
	ctx := types.NewCtx()
	enumMeta := ctx.NewClass("EnumMeta", ctx.Builtin("type"))
	enumMeta.Declare(types.NewSlot("__getattribute__", &types.Callable{Name: "__getattribute__", Return: types.Any}))

	a := ctx.NewClassWithMeta("A", enumMeta)
	a.Declare(types.NewSlot("x", intVal(ctx)))

	// class-level reads go through the metaclass hook
	assert.Equal(t, types.Any, resolve(t, ctx, a, "x"))
	// instance-level reads do not
	assert.Equal(t, "int", resolve(t, ctx, ctx.NewInstance(a), "x").String())
}

func TestClassLevelFallbacksFromMetaclassRoot(t *testing.T) {
	ctx := types.NewCtx()
	c := ctx.NewClass("C")

	assert.Equal(t, "str", resolve(t, ctx, c, "__name__").String())

	mroMethod := resolve(t, ctx, c, "mro")
	bound, isBound := mroMethod.(*types.BoundMethod)
	assert.True(t, isBound)
	assert.Same(t, c, bound.Recv)

	result, err := ctx.Call(mroMethod, nil)
	assert.NoError(t, err)
	assert.Equal(t, "list", result.String())
}

func TestBoundMethodBinding(t *testing.T) {
	ctx := types.NewCtx()
	seed := &types.Callable{Name: "seed", Return: ctx.None()}
	random := ctx.NewClass("Random")
	random.Declare(types.NewSlot("seed", seed))
	inst := ctx.NewInstance(random)

	viaInstance := resolve(t, ctx, inst, "seed")
	bound, isBound := viaInstance.(*types.BoundMethod)
	assert.True(t, isBound)
	assert.Same(t, inst, bound.Recv)
	assert.Same(t, seed, bound.Func)

	viaClass := resolve(t, ctx, random, "seed")
	assert.Same(t, seed, viaClass)
}

func TestClassmethodBindsClassThroughBothPaths(t *testing.T) {
	ctx := types.NewCtx()
	bar := &types.Callable{Name: "bar", Return: ctx.None()}
	foo := ctx.NewClass("Foo")
	foo.Declare(types.NewClassMethodSlot("bar", bar))

	for _, base := range []types.Value{foo, ctx.NewInstance(foo)} {
		got := resolve(t, ctx, base, "bar")
		bound, isBound := got.(*types.BoundMethod)
		assert.True(t, isBound, "access via %s", base)
		assert.Same(t, foo, bound.Recv)
	}
}

func TestStaticmethodStaysUnbound(t *testing.T) {
	ctx := types.NewCtx()
	helper := &types.Callable{Name: "helper", Return: intVal(ctx)}
	foo := ctx.NewClass("Foo")
	foo.Declare(types.NewStaticMethodSlot("helper", helper))

	assert.Same(t, helper, resolve(t, ctx, ctx.NewInstance(foo), "helper"))
	assert.Same(t, helper, resolve(t, ctx, foo, "helper"))
}

func TestUnknownTailedClassResolvesToAny(t *testing.T) {
	ctx := types.NewCtx()
	u := ctx.NewUnknown()
	foo := ctx.NewClass("Foo", u)
	inst := ctx.NewInstance(foo)

	assert.Equal(t, types.Any, resolve(t, ctx, inst, "whatever"))
	assert.Equal(t, types.Any, resolve(t, ctx, foo, "anything"))
	// declared attributes still win over the fallback
	foo.Declare(types.NewSlot("x", intVal(ctx)))
	assert.Equal(t, "int", resolve(t, ctx, inst, "x").String())
}

func TestAnyBaseFallback(t *testing.T) {
	ctx := types.NewCtx()
	foo := ctx.NewClass("Foo")
	bar := ctx.NewClass("Bar", foo, types.Any)
	inst := ctx.NewInstance(bar)

	assert.Equal(t, types.Any, resolve(t, ctx, inst, "duration"))
}

func TestAttributeAccessOnAny(t *testing.T) {
	ctx := types.NewCtx()
	assert.Equal(t, types.Any, resolve(t, ctx, types.Any, "anything"))
}

func TestModuleAttributes(t *testing.T) {
	ctx := types.NewCtx()
	mod := types.NewModule("a")
	mod.Declare("x", intVal(ctx))

	assert.Equal(t, "int", resolve(t, ctx, mod, "x").String())

	_, err := ctx.ResolveAttr(mod, "missing", types.AccessRead)
	assert.Error(t, err)

	// a stub declaring only a catch-all __getattr__ makes every member Any
	boundary := types.NewModule("b").DeclareCatchAll(types.Any)
	assert.Equal(t, types.Any, resolve(t, ctx, boundary, "anything"))
}

func TestUnionAttributeMergesMembers(t *testing.T) {
	ctx := types.NewCtx()
	a := ctx.NewClass("A")
	a.Declare(types.NewSlot("x", intVal(ctx)))
	b := ctx.NewClass("B")
	b.Declare(types.NewSlot("x", strVal(ctx)))

	both := ctx.Merge(ctx.NewInstance(a), ctx.NewInstance(b))
	assert.Equal(t, "(int | str)", resolve(t, ctx, both, "x").String())

	// a member without the attribute does not poison the rest
	c := ctx.NewClass("C")
	partial := ctx.Merge(ctx.NewInstance(a), ctx.NewInstance(c))
	assert.Equal(t, "int", resolve(t, ctx, partial, "x").String())
}

func TestNoSuchAttributeOutcome(t *testing.T) {
	ctx := types.NewCtx()
	foo := ctx.NewClass("Foo")

	_, err := ctx.ResolveAttr(ctx.NewInstance(foo), "nope", types.AccessRead)
	assert.Error(t, err)
	asPyErr, isPyErr := err.(pyerr.PyError)
	assert.True(t, isPyErr)
	assert.Equal(t, pyerr.NoSuchAttribute, asPyErr.Code())
	// the miss is an outcome for the caller, not an engine diagnostic
	assert.False(t, ctx.Errors.HasError())
}

func TestDunderClass(t *testing.T) {
	ctx := types.NewCtx()
	foo := ctx.NewClass("Foo")
	inst := ctx.NewInstance(foo)

	assert.Same(t, foo, resolve(t, ctx, inst, "__class__"))
	assert.Same(t, ctx.Builtin("type"), resolve(t, ctx, foo, "__class__"))
}

func TestRecursionGuardDegradesToAny(t *testing.T) {
	ctx := types.NewCtx()
	desc := ctx.NewClass("Desc")
	desc.Declare(types.NewSlot("__get__", &types.Callable{Name: "__get__", Return: types.Any}))
	inst := ctx.NewInstance(desc)
	// a descriptor whose __get__ is itself, so get-resolution never bottoms out
	desc.Declare(types.NewSlot("__get__", inst))

	holder := ctx.NewClass("Holder")
	holder.Declare(types.NewSlot("foo", inst))

	got := resolve(t, ctx, ctx.NewInstance(holder), "foo")
	assert.Equal(t, types.Any, got)
	assert.Contains(t, errCodes(ctx), pyerr.RecursionGuardTripped)
}
