// Package index is the typed front door over one B+ tree per index: unique
// indexes map a key to one row pointer, non-unique indexes map a key to a set
// of row pointers.
package index

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	bplus "TinyRDB/bplustree"
	"TinyRDB/catalog"
	"TinyRDB/config"
	"TinyRDB/types"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Ref identifies an index.
type Ref struct {
	DB    string
	Table string
	Index string
}

func (r Ref) String() string { return fmt.Sprintf("%s.%s.%s", r.DB, r.Table, r.Index) }

// Manager is implemented by Unique and NonUnique. Values are the textual
// field values of the index, in index field order.
type Manager interface {
	Ref() Ref
	Def() types.IndexDef
	KeyStructure() types.KeyStructure
	IsUnique() bool

	// CheckInsert reports the error Insert would return, without mutating.
	CheckInsert(values []string, ptr types.RowPointer) error
	Insert(values []string, ptr types.RowPointer) error
	// Remove deletes the entry of the given row. Absent entries are ignored.
	Remove(values []string, ptr types.RowPointer) error

	// Lookup returns the rows whose index fields equal values.
	Lookup(values []string) (*ResultSet, error)
	EqualityQuery(value string) (*ResultSet, error)
	RangeQuery(lower, upper string, lowerIncl, upperIncl bool) (*ResultSet, error)
	LesserQuery(upper string, incl bool) (*ResultSet, error)
	GreaterQuery(lower string, incl bool) (*ResultSet, error)

	Len() (int, error)
	Check() error
	// Tree exposes the raw tree. It bypasses the manager's lock.
	Tree() *bplus.BPlusTree
	Close() error
}

// Open opens the index named by ref as a Unique or NonUnique manager,
// according to its catalog definition.
func Open(p catalog.Provider, ref Ref, cfg config.Config, logger *zap.Logger) (Manager, error) {
	def, err := p.Index(ref.DB, ref.Table, ref.Index)
	if err != nil {
		return nil, err
	}
	if def.Unique {
		return OpenUnique(p, ref, cfg, logger)
	}
	return OpenNonUnique(p, ref, cfg, logger)
}

// base holds what both managers share: the tree and the single-field queries.
// mu guards the tree: mutations hold it exclusively, reads share it.
type base struct {
	ref    Ref
	def    types.IndexDef
	ks     types.KeyStructure
	tree   *bplus.BPlusTree
	logger *zap.Logger

	mu sync.RWMutex
}

// treeStructure returns the key structure stored in the tree file.
func treeStructure(ks types.KeyStructure, unique bool) types.KeyStructure {
	if unique {
		return ks
	}
	return ks.With(types.IntType())
}

func openBase(p catalog.Provider, ref Ref, unique bool, cfg config.Config, logger *zap.Logger) (*base, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	def, err := p.Index(ref.DB, ref.Table, ref.Index)
	if err != nil {
		return nil, err
	}
	if def.Unique != unique {
		return nil, errors.Errorf("index %s: unique=%v, opened as unique=%v", ref, def.Unique, unique)
	}
	ks, err := p.IndexFieldTypes(ref.DB, ref.Table, ref.Index)
	if err != nil {
		return nil, err
	}
	path, err := p.IndexFilePath(ref.DB, ref.Table, ref.Index)
	if err != nil {
		return nil, err
	}

	logger = logger.Named("index").With(zap.Stringer("index", ref))
	opts := cfg.TreeOptions(logger)
	tks := treeStructure(ks, unique)

	var tree *bplus.BPlusTree
	if _, statErr := os.Stat(path); statErr == nil {
		tree, err = bplus.OpenFile(path, tks, opts)
	} else if os.IsNotExist(statErr) {
		tree, err = createTree(path, tks, opts)
		logger.Debug("created index file", zap.String("path", path), zap.Error(err))
	} else {
		err = types.NewIOError("stat", path, -1, statErr)
	}
	if err != nil {
		return nil, err
	}

	return &base{ref: ref, def: def, ks: ks, tree: tree, logger: logger}, nil
}

func createTree(path string, ks types.KeyStructure, opts bplus.Options) (*bplus.BPlusTree, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, types.NewIOError("mkdir", filepath.Dir(path), -1, err)
	}
	return bplus.CreateFile(path, ks, opts)
}

func (b *base) Ref() Ref                         { return b.ref }
func (b *base) Def() types.IndexDef              { return b.def }
func (b *base) KeyStructure() types.KeyStructure { return b.ks }
func (b *base) Tree() *bplus.BPlusTree           { return b.tree }

func (b *base) Len() (int, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.tree.Len()
}

// Check verifies the tree invariants of the index file.
func (b *base) Check() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if err := b.tree.Check(); err != nil {
		return errors.Wrapf(err, "index %s", b.ref)
	}
	return nil
}

func (b *base) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.tree.Close(); err != nil {
		return errors.Wrapf(err, "failed to close index %s", b.ref)
	}
	return nil
}

func (b *base) parse(values []string) (bplus.Key, error) {
	k, err := bplus.ParseKey(b.ks, values)
	if err != nil {
		return bplus.Key{}, errors.Wrapf(err, "index %s", b.ref)
	}
	return k, nil
}

func checkPointer(ptr types.RowPointer) error {
	if ptr < 0 {
		return errors.Errorf("invalid row pointer %d", ptr)
	}
	return nil
}

func boundMode(incl bool) bplus.BoundMode {
	if incl {
		return bplus.Inclusive
	}
	return bplus.Exclusive
}

// query runs a range scan over a single-field index.
func (b *base) query(lower, upper string, lowerMode, upperMode bplus.BoundMode) (*ResultSet, error) {
	if len(b.ks) != 1 {
		return nil, errors.Wrapf(types.ErrUndefinedQuery, "index %s has %d fields", b.ref, len(b.ks))
	}
	var lo, hi bplus.Key
	var err error
	if lowerMode != bplus.Unbounded {
		if lo, err = b.parse([]string{lower}); err != nil {
			return nil, err
		}
	}
	if upperMode != bplus.Unbounded {
		if hi, err = b.parse([]string{upper}); err != nil {
			return nil, err
		}
	}
	b.mu.RLock()
	entries, err := b.tree.RangeQuery(lo, hi, lowerMode, upperMode)
	b.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return newResultSet(entries, len(b.ks)), nil
}

func (b *base) EqualityQuery(value string) (*ResultSet, error) {
	return b.query(value, value, bplus.Inclusive, bplus.Inclusive)
}

func (b *base) RangeQuery(lower, upper string, lowerIncl, upperIncl bool) (*ResultSet, error) {
	return b.query(lower, upper, boundMode(lowerIncl), boundMode(upperIncl))
}

func (b *base) LesserQuery(upper string, incl bool) (*ResultSet, error) {
	return b.query("", upper, bplus.Unbounded, boundMode(incl))
}

func (b *base) GreaterQuery(lower string, incl bool) (*ResultSet, error) {
	return b.query(lower, "", boundMode(incl), bplus.Unbounded)
}
