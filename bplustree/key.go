package bplus

import (
	"strings"

	"TinyRDB/types"

	"github.com/pkg/errors"
)

// Key is an immutable composite value. Keys of one tree share a key structure
// and are ordered field by field.
type Key struct {
	ks     types.KeyStructure
	fields []types.Value
}

// NewKey builds a key from typed values. values and ks must match in length
// and kind; a mismatch is a programming error and panics.
func NewKey(ks types.KeyStructure, values ...types.Value) Key {
	if len(values) != len(ks) {
		panic(errors.Errorf("key has %d values, structure has %d fields", len(values), len(ks)))
	}
	for i, v := range values {
		if !ks[i].Accepts(v) {
			panic(errors.Wrapf(types.ErrTypeMismatch, "key field %d: %v is not %v", i, v, ks[i]))
		}
	}
	return Key{ks: ks, fields: append([]types.Value(nil), values...)}
}

// ParseKey builds a key from the textual values handed over by the row layer.
func ParseKey(ks types.KeyStructure, texts []string) (Key, error) {
	vals, err := ks.Parse(texts)
	if err != nil {
		return Key{}, err
	}
	return Key{ks: ks, fields: vals}, nil
}

// DecodeKey reads a key of structure ks from buf[:ks.Width()].
func DecodeKey(ks types.KeyStructure, buf []byte) Key {
	fields := make([]types.Value, len(ks))
	off := 0
	for i, ft := range ks {
		fields[i] = ft.Decode(buf[off:])
		off += ft.Width()
	}
	return Key{ks: ks, fields: fields}
}

// Encode writes the key into dst[:k.Width()].
func (k Key) Encode(dst []byte) {
	off := 0
	for i, ft := range k.ks {
		ft.Encode(dst[off:], k.fields[i])
		off += ft.Width()
	}
}

func (k Key) Bytes() []byte {
	b := make([]byte, k.Width())
	k.Encode(b)
	return b
}

func (k Key) Width() int                    { return k.ks.Width() }
func (k Key) Len() int                      { return len(k.fields) }
func (k Key) Field(i int) types.Value       { return k.fields[i] }
func (k Key) Structure() types.KeyStructure { return k.ks }
func (k Key) IsZero() bool                  { return k.fields == nil }
func (k Key) Values() []types.Value         { return append([]types.Value(nil), k.fields...) }
func (k Key) Equal(o Key) bool              { return len(k.fields) == len(o.fields) && Compare(k, o) == 0 }
func (k Key) Less(o Key) bool               { return Compare(k, o) < 0 }

// Prefix returns a key holding the first n fields of k.
func (k Key) Prefix(n int) Key {
	return Key{ks: k.ks[:n], fields: k.fields[:n:n]}
}

func (k Key) String() string {
	parts := make([]string, len(k.fields))
	for i, f := range k.fields {
		parts[i] = f.String()
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// Compare orders keys lexicographically: field 0 first, then field 1 and so on.
// A key that is a strict prefix of the other sorts first.
func Compare(a, b Key) int {
	if c := ComparePrefix(a, b); c != 0 {
		return c
	}
	switch {
	case len(a.fields) < len(b.fields):
		return -1
	case len(a.fields) > len(b.fields):
		return 1
	}
	return 0
}

// ComparePrefix compares only the fields both keys have. Range bounds built
// from the leading fields of a longer tree key are matched with it.
func ComparePrefix(a, b Key) int {
	n := min(len(a.fields), len(b.fields))
	for i := 0; i < n; i++ {
		if c := a.fields[i].Compare(b.fields[i]); c != 0 {
			return c
		}
	}
	return 0
}
