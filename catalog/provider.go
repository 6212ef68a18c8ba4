package catalog

import (
	"TinyRDB/types"

	"github.com/pkg/errors"
)

// Provider is the metadata the index engine reads: the field list of a
// table, its declared indexes and where each index file lives.
type Provider interface {
	FieldNames(db, table string) ([]string, error)
	Indexes(db, table string) ([]types.IndexDef, error)
	Index(db, table, index string) (types.IndexDef, error)
	IndexFieldTypes(db, table, index string) (types.KeyStructure, error)
	IndexFilePath(db, table, index string) (string, error)
}

var (
	ErrNoDatabase    = errors.New("no database selected")
	ErrTableNotFound = errors.New("table not found")
	ErrTableExists   = errors.New("table already exists")
	ErrIndexNotFound = errors.New("index not found")
)

// UniqueIndexes returns the unique indexes of a table in declaration order.
func UniqueIndexes(p Provider, db, table string) ([]types.IndexDef, error) {
	return filterIndexes(p, db, table, true)
}

// NonUniqueIndexes returns the non-unique indexes of a table in declaration order.
func NonUniqueIndexes(p Provider, db, table string) ([]types.IndexDef, error) {
	return filterIndexes(p, db, table, false)
}

func filterIndexes(p Provider, db, table string, unique bool) ([]types.IndexDef, error) {
	all, err := p.Indexes(db, table)
	if err != nil {
		return nil, err
	}
	var out []types.IndexDef
	for _, def := range all {
		if def.Unique == unique {
			out = append(out, def)
		}
	}
	return out, nil
}
