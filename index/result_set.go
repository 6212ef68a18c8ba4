package index

import (
	bplus "TinyRDB/bplustree"
	"TinyRDB/types"

	"github.com/RoaringBitmap/roaring/v2"
)

// Result is one matching row: the index key and the row pointer.
type Result struct {
	Key     bplus.Key
	Pointer types.RowPointer
}

// ResultSet holds query results in ascending key order.
type ResultSet struct {
	results []Result
}

// newResultSet keeps the first fields of every entry key; non-unique trees
// append the row pointer to the stored key.
func newResultSet(entries []bplus.Entry, fields int) *ResultSet {
	rs := &ResultSet{results: make([]Result, len(entries))}
	for i, e := range entries {
		rs.results[i] = Result{Key: e.Key.Prefix(fields), Pointer: e.Pointer}
	}
	return rs
}

func (rs *ResultSet) Len() int          { return len(rs.results) }
func (rs *ResultSet) Results() []Result { return rs.results }

// Pointers returns the row pointers in key order.
func (rs *ResultSet) Pointers() []types.RowPointer {
	out := make([]types.RowPointer, len(rs.results))
	for i, r := range rs.results {
		out[i] = r.Pointer
	}
	return out
}

// Map returns row pointer -> key.
func (rs *ResultSet) Map() map[types.RowPointer]bplus.Key {
	out := make(map[types.RowPointer]bplus.Key, len(rs.results))
	for _, r := range rs.results {
		out[r.Pointer] = r.Key
	}
	return out
}

// Bitmap returns the row pointers as a set, for intersecting the results of
// several indexes.
func (rs *ResultSet) Bitmap() *roaring.Bitmap {
	bm := roaring.New()
	for _, r := range rs.results {
		bm.Add(uint32(r.Pointer))
	}
	return bm
}
