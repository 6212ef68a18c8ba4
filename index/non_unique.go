package index

import (
	bplus "TinyRDB/bplustree"
	"TinyRDB/catalog"
	"TinyRDB/config"
	"TinyRDB/types"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// NonUnique maps a key to a set of row pointers. Each (key, pointer) pair is
// stored as one tree key: the index fields followed by the row pointer, so
// all pointers of a key are adjacent and ordered.
type NonUnique struct {
	*base
	treeKS types.KeyStructure
}

var _ Manager = (*NonUnique)(nil)

func OpenNonUnique(p catalog.Provider, ref Ref, cfg config.Config, logger *zap.Logger) (*NonUnique, error) {
	b, err := openBase(p, ref, false, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &NonUnique{base: b, treeKS: treeStructure(b.ks, false)}, nil
}

func (n *NonUnique) IsUnique() bool { return false }

func (n *NonUnique) pairKey(values []string, ptr types.RowPointer) (bplus.Key, error) {
	if err := checkPointer(ptr); err != nil {
		return bplus.Key{}, err
	}
	key, err := n.parse(values)
	if err != nil {
		return bplus.Key{}, err
	}
	return bplus.NewKey(n.treeKS, append(key.Values(), types.IntValue(ptr))...), nil
}

// Insert adds ptr to the pointer set of values. Adding a pointer that is
// already in the set yields ErrKeyAlreadyExists.
func (n *NonUnique) Insert(values []string, ptr types.RowPointer) error {
	key, err := n.pairKey(values, ptr)
	if err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.tree.Insert(key, ptr); err != nil {
		return errors.Wrapf(err, "index %s", n.ref)
	}
	return nil
}

// CheckInsert reports ErrKeyAlreadyExists when ptr is already in the pointer
// set of values. Re-adding a stored pair is an error rather than a no-op so
// that a coordinator undoing a failed row never removes a pair it did not add.
func (n *NonUnique) CheckInsert(values []string, ptr types.RowPointer) error {
	key, err := n.pairKey(values, ptr)
	if err != nil {
		return err
	}
	n.mu.RLock()
	found, err := n.tree.Contains(key)
	n.mu.RUnlock()
	if err != nil {
		return err
	}
	if found {
		return errors.Wrapf(types.ErrKeyAlreadyExists, "index %s: %v", n.ref, key)
	}
	return nil
}

// Delete removes exactly the (values, ptr) pair. A missing pair is not an error.
func (n *NonUnique) Delete(values []string, ptr types.RowPointer) error {
	key, err := n.pairKey(values, ptr)
	if err != nil {
		return err
	}
	n.mu.Lock()
	err = n.tree.Delete(key)
	n.mu.Unlock()
	if errors.Is(err, types.ErrKeyNotFound) {
		n.logger.Debug("delete of absent pair ignored", zap.Stringer("key", key))
		return nil
	}
	return err
}

func (n *NonUnique) Remove(values []string, ptr types.RowPointer) error {
	return n.Delete(values, ptr)
}

// Lookup returns every row stored under values. Composite indexes are
// supported: the scan matches all index fields.
func (n *NonUnique) Lookup(values []string) (*ResultSet, error) {
	key, err := n.parse(values)
	if err != nil {
		return nil, err
	}
	n.mu.RLock()
	entries, err := n.tree.RangeQuery(key, key, bplus.Inclusive, bplus.Inclusive)
	n.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return newResultSet(entries, len(n.ks)), nil
}

// Pointers returns the pointer set of values.
func (n *NonUnique) Pointers(values []string) (*roaring.Bitmap, error) {
	rs, err := n.Lookup(values)
	if err != nil {
		return nil, err
	}
	return rs.Bitmap(), nil
}

// IsPresent reports whether any row is stored under values.
func (n *NonUnique) IsPresent(values []string) bool {
	rs, err := n.Lookup(values)
	return err == nil && rs.Len() > 0
}
