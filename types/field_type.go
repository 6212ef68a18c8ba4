package types

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

/*
This file is the type converter used by the index engine.
Every field type has a fixed byte width so that keys built from them
have a fixed width too, and every index page can occupy one fixed-size slot.

	INT      -> int32, 4 bytes little endian
	FLOAT    -> float32, 4 bytes little endian (IEEE bits)
	CHAR(n)  -> n bytes of text, zero padded
*/

type Kind uint8

const (
	KindInt Kind = iota + 1
	KindFloat
	KindChar
)

const (
	IntSize   = 4
	FloatSize = 4

	// DefaultCharSize is used for TEXT/STRING columns declared without a length.
	DefaultCharSize = 32
	MaxCharSize     = 1024
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "INT"
	case KindFloat:
		return "FLOAT"
	case KindChar:
		return "CHAR"
	default:
		return "UNKNOWN"
	}
}

// FieldType is a type tag plus its fixed width.
type FieldType struct {
	Kind Kind
	Size int // byte width; only meaningful for CHAR, fixed for the others
}

func IntType() FieldType       { return FieldType{Kind: KindInt, Size: IntSize} }
func FloatType() FieldType     { return FieldType{Kind: KindFloat, Size: FloatSize} }
func CharType(n int) FieldType { return FieldType{Kind: KindChar, Size: n} }

func (ft FieldType) Width() int { return ft.Size }

func (ft FieldType) String() string {
	if ft.Kind == KindChar {
		return "CHAR(" + strconv.Itoa(ft.Size) + ")"
	}
	return ft.Kind.String()
}

// ParseFieldType converts a catalog type tag such as "int", "FLOAT" or
// "varchar(20)" into a FieldType.
func ParseFieldType(tag string) (FieldType, error) {
	t := strings.ToUpper(strings.TrimSpace(tag))

	switch t {
	case "INT", "INTEGER":
		return IntType(), nil
	case "FLOAT", "REAL":
		return FloatType(), nil
	case "TEXT", "STRING", "CHAR", "VARCHAR":
		return CharType(DefaultCharSize), nil
	}

	open := strings.IndexByte(t, '(')
	if open < 0 || !strings.HasSuffix(t, ")") {
		return FieldType{}, errors.Errorf("unknown field type %q", tag)
	}
	switch t[:open] {
	case "CHAR", "VARCHAR", "TEXT", "STRING":
	default:
		return FieldType{}, errors.Errorf("unknown field type %q", tag)
	}
	n, err := strconv.Atoi(strings.TrimSpace(t[open+1 : len(t)-1]))
	if err != nil || n <= 0 || n > MaxCharSize {
		return FieldType{}, errors.Errorf("invalid text width in field type %q", tag)
	}
	return CharType(n), nil
}

// Parse converts the textual form of a value (as handed over by the row layer)
// into a typed value of this field type.
func (ft FieldType) Parse(s string) (Value, error) {
	switch ft.Kind {
	case KindInt:
		i, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
		if err != nil {
			return Value{}, errors.Wrapf(ErrTypeMismatch, "cannot convert %q to INT", s)
		}
		return IntValue(int32(i)), nil
	case KindFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 32)
		if err != nil || math.IsNaN(f) {
			return Value{}, errors.Wrapf(ErrTypeMismatch, "cannot convert %q to FLOAT", s)
		}
		return FloatValue(float32(f)), nil
	case KindChar:
		if len(s) > ft.Size {
			return Value{}, errors.Wrapf(ErrTypeMismatch, "text %q longer than %s", s, ft)
		}
		if strings.IndexByte(s, 0) >= 0 {
			return Value{}, errors.Wrapf(ErrTypeMismatch, "text %q contains a NUL byte", s)
		}
		return TextValue(s), nil
	default:
		return Value{}, errors.Errorf("unsupported field type %v", ft)
	}
}

// Accepts reports whether v can be stored in a field of this type.
func (ft FieldType) Accepts(v Value) bool {
	if v.kind != ft.Kind {
		return false
	}
	return ft.Kind != KindChar || len(v.s) <= ft.Size
}

// Encode writes v into dst[:ft.Width()]. dst must be at least that long.
func (ft FieldType) Encode(dst []byte, v Value) {
	if !ft.Accepts(v) {
		panic(errors.Errorf("value %v does not fit field type %v", v, ft))
	}
	switch ft.Kind {
	case KindInt:
		binary.LittleEndian.PutUint32(dst, uint32(v.i))
	case KindFloat:
		binary.LittleEndian.PutUint32(dst, math.Float32bits(v.f))
	case KindChar:
		n := copy(dst[:ft.Size], v.s)
		clear(dst[n:ft.Size])
	}
}

// Decode reads a value of this type from src[:ft.Width()].
func (ft FieldType) Decode(src []byte) Value {
	switch ft.Kind {
	case KindInt:
		return IntValue(int32(binary.LittleEndian.Uint32(src)))
	case KindFloat:
		return FloatValue(math.Float32frombits(binary.LittleEndian.Uint32(src)))
	default:
		b := src[:ft.Size]
		if i := indexZero(b); i >= 0 {
			b = b[:i]
		}
		return TextValue(string(b))
	}
}

func indexZero(b []byte) int {
	for i, c := range b {
		if c == 0 {
			return i
		}
	}
	return -1
}

// KeyStructure is the ordered list of field types shared by every key of one index.
type KeyStructure []FieldType

// ParseKeyStructure converts catalog type tags into a KeyStructure.
func ParseKeyStructure(tags []string) (KeyStructure, error) {
	ks := make(KeyStructure, 0, len(tags))
	for _, tag := range tags {
		ft, err := ParseFieldType(tag)
		if err != nil {
			return nil, err
		}
		ks = append(ks, ft)
	}
	return ks, nil
}

func (ks KeyStructure) Width() int {
	w := 0
	for _, ft := range ks {
		w += ft.Width()
	}
	return w
}

func (ks KeyStructure) Equal(other KeyStructure) bool {
	if len(ks) != len(other) {
		return false
	}
	for i := range ks {
		if ks[i] != other[i] {
			return false
		}
	}
	return true
}

// With returns a copy of ks with extra appended.
func (ks KeyStructure) With(extra ...FieldType) KeyStructure {
	out := make(KeyStructure, 0, len(ks)+len(extra))
	out = append(out, ks...)
	return append(out, extra...)
}

// Parse converts one textual value per field into typed values.
func (ks KeyStructure) Parse(texts []string) ([]Value, error) {
	if len(texts) != len(ks) {
		return nil, errors.Wrapf(ErrTypeMismatch, "expected %d key values, got %d", len(ks), len(texts))
	}
	vals := make([]Value, len(ks))
	for i, ft := range ks {
		v, err := ft.Parse(texts[i])
		if err != nil {
			return nil, errors.Wrapf(err, "key field %d", i)
		}
		vals[i] = v
	}
	return vals, nil
}
