package types

import (
	"fmt"
	"github.com/hashicorp/go-set/v3"
	"github.com/pyglass/pyglass/pyerr"
)

// Linearize returns the method resolution order of c: the class itself
// first, the universal root last. The result is computed once with C3
// linearization and cached for the lifetime of the class.
//
// Unknown and Any bases are monomorphic entries that never block candidate
// selection and contribute no attributes; they exist so that lookup falls
// back to Any once concrete bases are exhausted. A base list with no
// consistent order degrades this class (and only this class) to an opaque
// Any-tailed linearization and reports an MroConflict.
func (ctx *Ctx) Linearize(c *ClassDef) []Value {
	if c.mroComputed {
		return c.mro
	}
	return ctx.linearize(c, make(map[*ClassDef]bool))
}

// IsOpaque reports whether the class's linearization failed and was replaced
// by the Any-tailed fallback.
func (ctx *Ctx) IsOpaque(c *ClassDef) bool {
	ctx.Linearize(c)
	return c.mroOpaque
}

func (ctx *Ctx) linearize(c *ClassDef, visiting map[*ClassDef]bool) []Value {
	if c.mroComputed {
		return c.mro
	}
	if visiting[c] {
		return ctx.degradeMro(c, "inheritance cycle involving "+c.Name)
	}
	visiting[c] = true
	defer delete(visiting, c)

	root := ctx.Builtin("object")
	if c == root {
		c.mro = []Value{root}
		c.mroComputed = true
		c.ancestors = set.New[string](0)
		return c.mro
	}

	// one sequence per base's own linearization, plus the base list itself
	var seqs [][]Value
	for _, base := range c.Bases {
		switch base := base.(type) {
		case *ClassDef:
			baseMro := ctx.linearize(base, visiting)
			seqs = append(seqs, append([]Value(nil), baseMro...))
		case *Unknown, anyType:
			seqs = append(seqs, []Value{base, root})
		default:
			ctx.addFailure(fmt.Sprintf("class %s has a base of unexpected variant %T", c.Name, base), nil)
			seqs = append(seqs, []Value{Any, root})
		}
	}
	seqs = append(seqs, append([]Value(nil), c.Bases...))

	merged := []Value{c}
	for remaining(seqs) {
		candidate, ok := selectHead(seqs)
		if !ok {
			return ctx.degradeMro(c, "no consistent linearization of bases of "+c.Name)
		}
		merged = append(merged, candidate)
		seqs = removeHead(seqs, candidate)
	}

	c.mro = merged
	c.mroComputed = true
	c.ancestors = set.New[string](len(merged))
	for _, entry := range merged[1:] {
		if entryClass, isClass := entry.(*ClassDef); isClass {
			c.ancestors.Insert(entryClass.Name)
		}
	}
	return c.mro
}

// selectHead picks the first head candidate that does not appear in the tail
// of any other sequence. Unknown/Any entries never block a concrete
// candidate (nothing concrete compares equal to them), but a placeholder
// still pending in another sequence's tail is deferred like any other
// candidate, so a base shared by several parents is emitted exactly once.
func selectHead(seqs [][]Value) (Value, bool) {
	for _, seq := range seqs {
		if len(seq) == 0 {
			continue
		}
		if candidate := seq[0]; !inAnyTail(seqs, candidate) {
			return candidate, true
		}
	}
	return nil, false
}

func inAnyTail(seqs [][]Value, candidate Value) bool {
	for _, seq := range seqs {
		for _, entry := range seq[min(1, len(seq)):] {
			if Equal(entry, candidate) {
				return true
			}
		}
	}
	return false
}

func removeHead(seqs [][]Value, selected Value) [][]Value {
	out := seqs[:0]
	for _, seq := range seqs {
		if len(seq) > 0 && Equal(seq[0], selected) {
			seq = seq[1:]
		}
		out = append(out, seq)
	}
	return out
}

func remaining(seqs [][]Value) bool {
	for _, seq := range seqs {
		if len(seq) > 0 {
			return true
		}
	}
	return false
}

func (ctx *Ctx) degradeMro(c *ClassDef, detail string) []Value {
	ctx.addError(pyerr.New(pyerr.NewMroConflict{Class: c.Name, Detail: detail}))
	c.mro = []Value{c, Any, ctx.Builtin("object")}
	c.mroComputed = true
	c.mroOpaque = true
	c.ancestors = set.New[string](0)
	return c.mro
}

// resetMro forgets a cached linearization. Classes are immutable once
// defined; only the solver calls this, after substituting a solved
// placeholder into the base list.
func (c *ClassDef) resetMro() {
	c.mro = nil
	c.mroComputed = false
	c.mroOpaque = false
	c.ancestors = nil
}

// IsSubclassOf reports whether sub is sup or inherits from it.
func (ctx *Ctx) IsSubclassOf(sub, sup *ClassDef) bool {
	if sub == sup {
		return true
	}
	for _, entry := range ctx.Linearize(sub) {
		if entryClass, isClass := entry.(*ClassDef); isClass && entryClass == sup {
			return true
		}
	}
	return false
}
