package bplus

import (
	"TinyRDB/types"

	"github.com/pkg/errors"
)

// Iterator provides a forward-only scan over the leaf chain.
type Iterator struct {
	tree  *BPlusTree
	leaf  *Node
	index int
	valid bool
	err   error
}

// SeekFirst positions the iterator at the smallest key.
func (t *BPlusTree) SeekFirst() *Iterator {
	it := &Iterator{tree: t}
	leaf, err := t.leftmostLeaf(t.store.Root())
	if err != nil {
		it.err = err
		return it
	}
	it.leaf = leaf
	it.index = 0
	it.settle()
	return it
}

// SeekGE positions the iterator at the first key >= target. target may hold
// only the leading fields of the tree's keys.
func (t *BPlusTree) SeekGE(target Key) *Iterator {
	return t.seek(target, Inclusive)
}

// SeekGT positions the iterator at the first key > target (prefix compare).
func (t *BPlusTree) SeekGT(target Key) *Iterator {
	return t.seek(target, Exclusive)
}

func (t *BPlusTree) seek(target Key, mode BoundMode) *Iterator {
	it := &Iterator{tree: t}

	n, err := t.store.ReadNode(t.store.Root())
	for depth := 0; err == nil && !n.leaf; depth++ {
		if depth > maxHeight {
			err = errors.Errorf("tree deeper than %d levels, index file corrupt", maxHeight)
			break
		}
		i := 0
		for i < len(n.keys) && !satisfiesLower(n.keys[i], target, mode) {
			i++
		}
		n, err = t.store.ReadNode(n.pointers[i])
	}
	if err != nil {
		it.err = err
		return it
	}

	it.leaf = n
	it.index = 0
	it.settle()
	for it.valid && !satisfiesLower(it.Key(), target, mode) {
		it.Next()
	}
	return it
}

// settle moves past exhausted leaves until the iterator points at a key or
// the chain ends.
func (it *Iterator) settle() {
	for it.index >= len(it.leaf.keys) {
		next := it.leaf.Next()
		if next == types.NullPointer {
			it.valid = false
			return
		}
		leaf, err := it.tree.store.ReadNode(next)
		if err != nil {
			it.err = err
			it.valid = false
			return
		}
		it.leaf = leaf
		it.index = 0
	}
	it.valid = true
}

// Next advances the iterator. Returns false when exhausted.
func (it *Iterator) Next() bool {
	if !it.valid {
		return false
	}
	it.index++
	it.settle()
	return it.valid
}

func (it *Iterator) Valid() bool { return it.valid }

// Err returns the first read error met while scanning.
func (it *Iterator) Err() error { return it.err }

// Key returns the current key.
func (it *Iterator) Key() Key {
	if !it.valid {
		return Key{}
	}
	return it.leaf.keys[it.index]
}

// Pointer returns the row pointer of the current key.
func (it *Iterator) Pointer() int32 {
	if !it.valid {
		return types.NullPointer
	}
	return it.leaf.pointers[it.index]
}
