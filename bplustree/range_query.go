package bplus

// BoundMode says how a range bound is applied.
type BoundMode int

const (
	Exclusive BoundMode = iota
	Inclusive
	// Unbounded disables the bound on that side.
	Unbounded
)

func (m BoundMode) String() string {
	switch m {
	case Exclusive:
		return "EXCLUSIVE"
	case Inclusive:
		return "INCLUSIVE"
	case Unbounded:
		return "UNBOUNDED"
	}
	return "UNKNOWN"
}

// Entry is one (key, row pointer) pair returned by a scan.
type Entry struct {
	Key     Key
	Pointer int32
}

// RangeQuery returns every entry between lower and upper in ascending key
// order. Bound keys may hold only the leading fields of the tree's keys; they
// are compared on those fields alone. A bound in Unbounded mode is ignored.
func (t *BPlusTree) RangeQuery(lower, upper Key, lowerMode, upperMode BoundMode) ([]Entry, error) {
	var it *Iterator
	if lowerMode == Unbounded {
		it = t.SeekFirst()
	} else {
		it = t.seek(lower, lowerMode)
	}

	var out []Entry
	for ; it.Valid(); it.Next() {
		k := it.Key()
		if upperMode != Unbounded && !satisfiesUpper(k, upper, upperMode) {
			break
		}
		out = append(out, Entry{Key: k, Pointer: it.Pointer()})
	}
	return out, it.Err()
}

func satisfiesLower(k, lower Key, mode BoundMode) bool {
	c := ComparePrefix(k, lower)
	if mode == Exclusive {
		return c > 0
	}
	return c >= 0
}

func satisfiesUpper(k, upper Key, mode BoundMode) bool {
	c := ComparePrefix(k, upper)
	if mode == Exclusive {
		return c < 0
	}
	return c <= 0
}
