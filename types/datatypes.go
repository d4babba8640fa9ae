package types

import (
	"fmt"
	"github.com/benbjohnson/immutable"
	"github.com/hashicorp/go-set/v3"
	"github.com/pyglass/pyglass/util"
	"hash/fnv"
	"strings"
)

type attrName = string

// Value is a type-set: everything an expression can resolve to.
// We compare Values by Hash rather than by an Equals method because each
// variant has its own interpretation of equality (instances by identity,
// unions by member set, classes by definition identity).
type Value interface {
	fmt.Stringer
	Hash() uint64
}

// Equal can be used to compare Value instances for equality.
func Equal[H, HH set.Hasher[uint64]](this H, other HH) bool {
	return this.Hash() == other.Hash()
}

var (
	_ Value = (*ClassDef)(nil)
	_ Value = (*Instance)(nil)
	_ Value = (*Union)(nil)
	_ Value = (*Unknown)(nil)
	_ Value = (*Callable)(nil)
	_ Value = (*BoundMethod)(nil)
	_ Value = (*Module)(nil)
	_ Value = anyType{}
)

// anyType is the gradual-typing boundary: it absorbs in unions and yields
// itself on every attribute operation. It is a distinguished variant, not a
// subclass of the universal root, so every merge site handles it explicitly.
type anyType struct{}

// Any is the sentinel "unconstrained" type-set.
var Any Value = anyType{}

func (anyType) String() string { return "Any" }
func (anyType) Hash() uint64   { return 1099511628211 }

// SlotKind is the closed set of attribute slot behaviors. Lookup sites
// switch over it exhaustively; adding a kind must revisit every switch.
type SlotKind int

const (
	SlotPlain SlotKind = iota
	SlotDataDescriptor
	SlotNonDataDescriptor
	SlotProperty
	SlotClassMethod
	SlotStaticMethod
)

func (k SlotKind) String() string {
	switch k {
	case SlotPlain:
		return "plain"
	case SlotDataDescriptor:
		return "data-descriptor"
	case SlotNonDataDescriptor:
		return "non-data-descriptor"
	case SlotProperty:
		return "property"
	case SlotClassMethod:
		return "classmethod"
	case SlotStaticMethod:
		return "staticmethod"
	}
	return fmt.Sprintf("slotKind(%d)", int(k))
}

// AttributeSlot is a single named attribute owned by exactly one ClassDef.
// Type holds the declared value (for descriptors, the descriptor itself);
// GetType/SetType are only meaningful for properties.
type AttributeSlot struct {
	Name    attrName
	Kind    SlotKind
	Type    Value
	GetType Value
	SetType Value
}

// NewSlot builds a class-scope slot, classifying descriptor behavior from
// the declared value: callables become non-data descriptors (they bind as
// methods), instances of a class declaring __get__/__set__ become
// descriptors, everything else is a plain value.
func NewSlot(name attrName, v Value) *AttributeSlot {
	kind := SlotPlain
	switch v := v.(type) {
	case *Callable:
		kind = SlotNonDataDescriptor
	case *Instance:
		hasGet := v.Class.declaresInBases("__get__")
		hasSet := v.Class.declaresInBases("__set__")
		switch {
		case hasGet && hasSet:
			kind = SlotDataDescriptor
		case hasGet:
			kind = SlotNonDataDescriptor
		}
	}
	return &AttributeSlot{Name: name, Kind: kind, Type: v}
}

func NewPropertySlot(name attrName, descriptor Value, getType, setType Value) *AttributeSlot {
	return &AttributeSlot{Name: name, Kind: SlotProperty, Type: descriptor, GetType: getType, SetType: setType}
}

func NewClassMethodSlot(name attrName, fn *Callable) *AttributeSlot {
	return &AttributeSlot{Name: name, Kind: SlotClassMethod, Type: fn}
}

func NewStaticMethodSlot(name attrName, fn *Callable) *AttributeSlot {
	return &AttributeSlot{Name: name, Kind: SlotStaticMethod, Type: fn}
}

// ClassDef is a class definition. Bases may contain *ClassDef, Any, or
// *Unknown entries. A class is immutable once fully defined, except that
// the attribute write path may widen (never narrow) its slot types.
type ClassDef struct {
	Name      string
	Bases     []Value
	Metaclass *ClassDef // nil means the builtin metaclass root

	slots     map[attrName]*AttributeSlot
	slotOrder []attrName

	// mro is computed lazily and never invalidated while the class is live;
	// only the solver may rewrite Bases and reset it.
	mro         []Value
	mroComputed bool
	mroOpaque   bool
	ancestors   set.Collection[string]

	id uint64
}

func (c *ClassDef) String() string { return "Type[" + c.Name + "]" }

func (c *ClassDef) Hash() uint64 {
	const prime1 uint64 = 1299709
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(c.Name))
	return (prime1 * (c.id + 1)) ^ hasher.Sum64()
}

// Slot returns the slot declared directly on this class, not its ancestors.
func (c *ClassDef) Slot(name attrName) (*AttributeSlot, bool) {
	s, ok := c.slots[name]
	return s, ok
}

// SlotNames returns declared slot names in declaration order.
func (c *ClassDef) SlotNames() []attrName {
	return c.slotOrder
}

// Declare adds a slot to the class dict. Declaring a name twice replaces
// the earlier slot but keeps its position, so iteration order stays stable.
func (c *ClassDef) Declare(s *AttributeSlot) *ClassDef {
	if c.slots == nil {
		c.slots = make(map[attrName]*AttributeSlot)
	}
	if _, seen := c.slots[s.Name]; !seen {
		c.slotOrder = append(c.slotOrder, s.Name)
	}
	c.slots[s.Name] = s
	return c
}

// declaresInBases reports whether name is declared on this class or any
// concrete base, by declaration-order DFS. It deliberately avoids the MRO so
// slot classification cannot recurse into linearization.
func (c *ClassDef) declaresInBases(name attrName) bool {
	if _, ok := c.slots[name]; ok {
		return true
	}
	for _, base := range c.Bases {
		if baseClass, ok := base.(*ClassDef); ok && baseClass.declaresInBases(name) {
			return true
		}
	}
	return false
}

// Ancestors is the set of concrete ancestor class names, filled in when the
// linearization first resolves. Nil until then.
func (c *ClassDef) Ancestors() set.Collection[string] { return c.ancestors }

// Instance is one abstract instance of a class, with its own attribute
// overrides. Many instances share one ClassDef.
type Instance struct {
	Class *ClassDef
	// Args parameterizes builtin containers, as in list[int]. Empty for
	// ordinary classes.
	Args []Value

	attrs     map[attrName]Value
	attrOrder []attrName
	id        uint64
}

func (i *Instance) String() string {
	if len(i.Args) == 0 {
		return i.Class.Name
	}
	return i.Class.Name + "[" + util.JoinString(i.Args, ", ") + "]"
}

func (i *Instance) Hash() uint64 {
	const prime1 uint64 = 15487469
	return prime1*(i.id+1) ^ i.Class.Hash()
}

// Own returns the instance-level override for name, bypassing the class.
func (i *Instance) Own(name attrName) (Value, bool) {
	v, ok := i.attrs[name]
	return v, ok
}

// OwnNames returns override names in first-write order.
func (i *Instance) OwnNames() []attrName { return i.attrOrder }

func (i *Instance) setOwn(name attrName, v Value) {
	if i.attrs == nil {
		i.attrs = make(map[attrName]Value)
	}
	if _, seen := i.attrs[name]; !seen {
		i.attrOrder = append(i.attrOrder, name)
	}
	i.attrs[name] = v
}

// Members returns a read-only snapshot of the instance attribute map,
// suitable for handing to the emission layer after the pass is over.
func (i *Instance) Members() *immutable.Map {
	m := immutable.NewMap(nil)
	for _, name := range i.attrOrder {
		m = m.Set(name, i.attrs[name])
	}
	return m
}

// Union is a flattened "one of these" type-set: it never nests another
// Union, never contains Any, holds at least two members, and keeps them
// deduplicated in first-seen order. Construct with Merge or MakeUnion.
type Union struct {
	members []Value
}

func (u *Union) String() string {
	return "(" + util.JoinString(u.members, " | ") + ")"
}

// Hash is order-independent so that unions built along different
// control-flow paths compare equal.
func (u *Union) Hash() uint64 {
	var hash uint64
	for _, m := range u.members {
		hash ^= m.Hash() * 2166136261
	}
	return hash
}

// Members returns the canonical (first-seen) ordering for stable output.
func (u *Union) Members() []Value { return u.members }

// Callable is a function or method signature. SelfEffects records the
// attribute writes the body performs on its receiver; they are replayed
// through the normal write path whenever the callable is invoked bound.
type Callable struct {
	Name        string
	Params      []Value
	Return      Value
	SelfEffects []util.Pair[attrName, Value]
}

func (f *Callable) String() string {
	ret := "Any"
	if f.Return != nil {
		ret = f.Return.String()
	}
	return fmt.Sprintf("(fn %s(%s) -> %s)", f.Name, util.JoinString(f.Params, ", "), ret)
}

func (f *Callable) Hash() uint64 {
	var hash uint64 = 2166136261
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(f.Name))
	for _, p := range f.Params {
		hash = hash*16777619 ^ p.Hash()
	}
	if f.Return != nil {
		hash = hash*16777619 ^ f.Return.Hash()
	}
	return hash ^ hasher.Sum64()
}

// BoundMethod is a callable with its first parameter already bound to a
// receiver (an instance, or a class for classmethods).
type BoundMethod struct {
	Recv Value
	Func *Callable
}

func (b *BoundMethod) String() string {
	return "bound " + b.Func.String()
}

func (b *BoundMethod) Hash() uint64 {
	return b.Recv.Hash()*31 + b.Func.Hash()*37
}

// Module is a named attribute namespace, typically loaded from a stub. A
// module whose stub declares only a catch-all __getattr__ carries its return
// type in catchAll and resolves every unknown member to it.
type Module struct {
	Name string

	members  map[attrName]Value
	order    []attrName
	catchAll Value
}

func NewModule(name string) *Module {
	return &Module{Name: name, members: make(map[attrName]Value)}
}

func (m *Module) String() string { return "module " + m.Name }

func (m *Module) Hash() uint64 {
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte("module:" + m.Name))
	return hasher.Sum64()
}

func (m *Module) Declare(name attrName, v Value) *Module {
	if _, seen := m.members[name]; !seen {
		m.order = append(m.order, name)
	}
	m.members[name] = v
	return m
}

// DeclareCatchAll marks the module as declaring `def __getattr__(name) -> ret`.
func (m *Module) DeclareCatchAll(ret Value) *Module {
	m.catchAll = ret
	return m
}

func (m *Module) Member(name attrName) (Value, bool) {
	v, ok := m.members[name]
	return v, ok
}

func (m *Module) MemberNames() []attrName { return m.order }

// describe names a value for diagnostics without rendering whole unions.
func describe(v Value) string {
	switch v := v.(type) {
	case *Union:
		parts := make([]string, 0, len(v.members))
		for _, m := range v.members {
			parts = append(parts, describe(m))
		}
		return strings.Join(parts, " | ")
	default:
		return v.String()
	}
}
