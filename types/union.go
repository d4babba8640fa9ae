package types

// Merge combines two observed type-sets. It is associative, commutative and
// idempotent: merging never picks one side, so subsequent lookups see every
// previously observed possibility.
func (ctx *Ctx) Merge(a, b Value) Value {
	return MakeUnion(a, b)
}

// MakeUnion builds the canonical union of the given type-sets:
//
//   - nested unions are flattened
//   - Any absorbs everything
//   - members deduplicate by hash identity, keeping first-seen order
//   - a singleton result unwraps to the bare type
func MakeUnion(values ...Value) Value {
	var members []Value
	seen := make(map[uint64]bool, len(values))

	var add func(v Value) bool
	add = func(v Value) bool {
		switch v := v.(type) {
		case nil:
			return true
		case anyType:
			return false
		case *Union:
			for _, m := range v.members {
				if !add(m) {
					return false
				}
			}
			return true
		default:
			if h := v.Hash(); !seen[h] {
				seen[h] = true
				members = append(members, v)
			}
			return true
		}
	}

	for _, v := range values {
		if !add(v) {
			return Any
		}
	}

	switch len(members) {
	case 0:
		return Any
	case 1:
		return members[0]
	default:
		return &Union{members: members}
	}
}
