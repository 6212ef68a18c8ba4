package types

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Value is a tagged union of the field values an index can hold.
// The zero Value is invalid.
type Value struct {
	kind Kind
	i    int32
	f    float32
	s    string
}

func IntValue(i int32) Value     { return Value{kind: KindInt, i: i} }
func FloatValue(f float32) Value { return Value{kind: KindFloat, f: f} }
func TextValue(s string) Value   { return Value{kind: KindChar, s: s} }

func (v Value) Kind() Kind     { return v.kind }
func (v Value) Int() int32     { return v.i }
func (v Value) Float() float32 { return v.f }
func (v Value) Text() string   { return v.s }
func (v Value) IsValid() bool  { return v.kind != 0 }

// Compare orders two values of the same kind: numerically for numbers and
// byte-wise for text. Comparing values of different kinds is a programming
// error.
func (v Value) Compare(o Value) int {
	if v.kind != o.kind {
		panic(errors.Wrapf(ErrTypeMismatch, "compare %v with %v", v.kind, o.kind))
	}
	switch v.kind {
	case KindInt:
		switch {
		case v.i < o.i:
			return -1
		case v.i > o.i:
			return 1
		}
		return 0
	case KindFloat:
		switch {
		case v.f < o.f:
			return -1
		case v.f > o.f:
			return 1
		}
		return 0
	default:
		return strings.Compare(v.s, o.s)
	}
}

// Any returns the value as a plain Go value (int32, float32 or string).
func (v Value) Any() any {
	switch v.kind {
	case KindInt:
		return v.i
	case KindFloat:
		return v.f
	case KindChar:
		return v.s
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(int64(v.i), 10)
	case KindFloat:
		return strconv.FormatFloat(float64(v.f), 'g', -1, 32)
	case KindChar:
		return strconv.Quote(v.s)
	}
	return "<invalid>"
}
