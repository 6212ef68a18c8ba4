package index

import (
	"strings"

	"TinyRDB/catalog"
	"TinyRDB/config"
	"TinyRDB/types"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// RowSource scans the rows of a table. Scan calls fn once per row with the
// row pointer and the values of the requested fields, in field order.
type RowSource interface {
	Scan(fields []string, fn func(ptr types.RowPointer, values []string) error) error
}

// MemoryRows is a RowSource over rows held in memory.
type MemoryRows struct {
	Fields []string
	Rows   []types.RowWithPointer
}

func (m *MemoryRows) Scan(fields []string, fn func(ptr types.RowPointer, values []string) error) error {
	positions, err := Positions(m.Fields, fields)
	if err != nil {
		return err
	}
	for _, r := range m.Rows {
		values, err := Project(r.Row, positions)
		if err != nil {
			return errors.Wrapf(err, "row %d", r.Pointer)
		}
		if err := fn(r.Pointer, values); err != nil {
			return err
		}
	}
	return nil
}

// Positions maps each wanted field name to its position in fields.
func Positions(fields, wanted []string) ([]int, error) {
	out := make([]int, len(wanted))
	for i, w := range wanted {
		out[i] = -1
		for j, f := range fields {
			if strings.EqualFold(f, w) {
				out[i] = j
				break
			}
		}
		if out[i] < 0 {
			return nil, errors.Errorf("unknown field %s", w)
		}
	}
	return out, nil
}

// Project picks the values at positions from row.
func Project(row types.Row, positions []int) ([]string, error) {
	out := make([]string, len(positions))
	for i, p := range positions {
		if p >= len(row) {
			return nil, errors.Errorf("row has %d fields, need field %d", len(row), p)
		}
		out[i] = row[p]
	}
	return out, nil
}

// CreateEmptyIndex writes a fresh, empty index file for the index named by
// ref. An existing file is truncated.
func CreateEmptyIndex(p catalog.Provider, ref Ref, cfg config.Config, logger *zap.Logger) error {
	def, err := p.Index(ref.DB, ref.Table, ref.Index)
	if err != nil {
		return err
	}
	ks, err := p.IndexFieldTypes(ref.DB, ref.Table, ref.Index)
	if err != nil {
		return err
	}
	path, err := p.IndexFilePath(ref.DB, ref.Table, ref.Index)
	if err != nil {
		return err
	}
	tree, err := createTree(path, treeStructure(ks, def.Unique), cfg.TreeOptions(logger))
	if err != nil {
		return err
	}
	return tree.Close()
}

// CreateIndex builds the index named by ref from the existing rows of its
// table. Duplicate keys met during the scan are skipped. It returns the
// number of entries inserted.
func CreateIndex(p catalog.Provider, rows RowSource, ref Ref, cfg config.Config, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := CreateEmptyIndex(p, ref, cfg, logger); err != nil {
		return 0, err
	}
	m, err := Open(p, ref, cfg, logger)
	if err != nil {
		return 0, err
	}

	inserted, skipped := 0, 0
	err = rows.Scan(m.Def().Fields, func(ptr types.RowPointer, values []string) error {
		err := m.Insert(values, ptr)
		switch {
		case err == nil:
			inserted++
		case errors.Is(err, types.ErrKeyAlreadyExists):
			skipped++
		default:
			return err
		}
		return nil
	})
	if cerr := m.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return inserted, errors.Wrapf(err, "failed to build index %s", ref)
	}

	logger.Info("built index",
		zap.Stringer("index", ref),
		zap.Int("inserted", inserted),
		zap.Int("duplicates_skipped", skipped))
	return inserted, nil
}
