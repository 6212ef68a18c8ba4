package types

import "math"

// RowPointer addresses a row in the flat-file row store. The index engine
// stores it but never interprets it.
type RowPointer = int32

const (
	// NullPointer marks "no pointer" in index pages.
	NullPointer RowPointer = -1
	// MaxRowPointer is the largest storable row pointer.
	MaxRowPointer RowPointer = math.MaxInt32
)

// Row is one table row as handed over by the row-mutation layer: the textual
// value of every table field, in table field order.
type Row []string

// RowWithPointer pairs a row with its address in the row store.
type RowWithPointer struct {
	Pointer RowPointer
	Row     Row
}

func (r Row) Clone() Row {
	return append(Row(nil), r...)
}
