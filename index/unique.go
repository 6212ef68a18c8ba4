package index

import (
	bplus "TinyRDB/bplustree"
	"TinyRDB/catalog"
	"TinyRDB/config"
	"TinyRDB/types"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Unique maps each key to exactly one row pointer.
type Unique struct {
	*base
}

var _ Manager = (*Unique)(nil)

// OpenUnique opens the index file of a unique index, creating an empty one
// when it does not exist yet.
func OpenUnique(p catalog.Provider, ref Ref, cfg config.Config, logger *zap.Logger) (*Unique, error) {
	b, err := openBase(p, ref, true, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Unique{base: b}, nil
}

func (u *Unique) IsUnique() bool { return true }

// Insert maps values to ptr. A key already present yields ErrKeyAlreadyExists.
func (u *Unique) Insert(values []string, ptr types.RowPointer) error {
	if err := checkPointer(ptr); err != nil {
		return err
	}
	key, err := u.parse(values)
	if err != nil {
		return err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	if err := u.tree.Insert(key, ptr); err != nil {
		return errors.Wrapf(err, "index %s", u.ref)
	}
	return nil
}

func (u *Unique) CheckInsert(values []string, ptr types.RowPointer) error {
	if err := checkPointer(ptr); err != nil {
		return err
	}
	key, err := u.parse(values)
	if err != nil {
		return err
	}
	u.mu.RLock()
	found, err := u.tree.Contains(key)
	u.mu.RUnlock()
	if err != nil {
		return err
	}
	if found {
		return errors.Wrapf(types.ErrKeyAlreadyExists, "index %s: %v", u.ref, key)
	}
	return nil
}

// Delete removes the key. A missing key is not an error.
func (u *Unique) Delete(values []string) error {
	key, err := u.parse(values)
	if err != nil {
		return err
	}
	u.mu.Lock()
	err = u.tree.Delete(key)
	u.mu.Unlock()
	if errors.Is(err, types.ErrKeyNotFound) {
		u.logger.Debug("delete of absent key ignored", zap.Stringer("key", key))
		return nil
	}
	return err
}

// Remove deletes by key; the row pointer is not consulted.
func (u *Unique) Remove(values []string, _ types.RowPointer) error {
	return u.Delete(values)
}

// Find returns the row pointer stored for values.
func (u *Unique) Find(values []string) (types.RowPointer, error) {
	key, err := u.parse(values)
	if err != nil {
		return types.NullPointer, err
	}
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.tree.Find(key)
}

// IsPresent reports whether values is a stored key. Conversion and read
// failures count as absent.
func (u *Unique) IsPresent(values []string) bool {
	_, err := u.Find(values)
	return err == nil
}

func (u *Unique) Lookup(values []string) (*ResultSet, error) {
	key, err := u.parse(values)
	if err != nil {
		return nil, err
	}
	u.mu.RLock()
	ptr, err := u.tree.Find(key)
	u.mu.RUnlock()
	if errors.Is(err, types.ErrKeyNotFound) {
		return newResultSet(nil, len(u.ks)), nil
	}
	if err != nil {
		return nil, err
	}
	return newResultSet([]bplus.Entry{{Key: key, Pointer: ptr}}, len(u.ks)), nil
}
