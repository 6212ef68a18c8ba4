package bplus

import (
	"TinyRDB/types"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// Insert maps key to ptr. A key already in the tree yields
// ErrKeyAlreadyExists and leaves the tree unchanged.
//
// A node holding 2D keys that receives one more is split; the separator and
// the new right sibling go into the parent, which may split in turn. When the
// root splits it is rewritten in place as a new internal root, so the tree
// grows by one level while the root keeps its address.
func (t *BPlusTree) Insert(key Key, ptr int32) error {
	if err := t.checkKey(key); err != nil {
		return err
	}
	path, leaf, err := t.descend(key)
	if err != nil {
		return err
	}
	if leaf.Contains(key) {
		return errors.Wrapf(types.ErrKeyAlreadyExists, "%v", key)
	}

	leaf.InsertIntoLeaf(key, ptr)
	if err := t.splitUpward(path, leaf); err != nil {
		return err
	}
	return t.commit()
}

// splitUpward writes node, splitting it and its ancestors while they overflow.
func (t *BPlusTree) splitUpward(path []pathEntry, node *Node) error {
	for node.IsOverfull() {
		if len(path) == 0 {
			return t.splitRoot(node)
		}

		rightAddr, err := t.store.Allocate()
		if err != nil {
			return err
		}
		right, sep := t.split(node, rightAddr)
		if err := t.store.WriteNode(node); err != nil {
			return err
		}
		if err := t.store.WriteNode(right); err != nil {
			return err
		}
		t.logger.Debug("split node",
			zap.Int32("page", node.addr),
			zap.Int32("right", rightAddr),
			zap.Bool("leaf", node.leaf),
			zap.Stringer("separator", sep))

		parent := path[len(path)-1].node
		path = path[:len(path)-1]
		parent.InsertIntoInternal(sep, rightAddr)
		node = parent
	}
	return t.store.WriteNode(node)
}

func (t *BPlusTree) split(node *Node, rightAddr int32) (*Node, Key) {
	if node.leaf {
		return node.SplitLeaf(rightAddr)
	}
	return node.SplitInternal(rightAddr)
}

// splitRoot moves the overfull root's content into two new pages and
// rewrites the root page as an internal node over them.
func (t *BPlusTree) splitRoot(root *Node) error {
	leftAddr, err := t.store.Allocate()
	if err != nil {
		return err
	}
	rightAddr, err := t.store.Allocate()
	if err != nil {
		return err
	}

	left := root.clone()
	left.addr = leftAddr
	right, sep := t.split(left, rightAddr)
	if err := t.store.WriteNode(left); err != nil {
		return err
	}
	if err := t.store.WriteNode(right); err != nil {
		return err
	}

	newRoot := NewNode(false, t.degree)
	newRoot.addr = root.addr
	newRoot.keys = append(newRoot.keys, sep)
	newRoot.pointers = append(newRoot.pointers[:0], leftAddr, rightAddr)
	t.logger.Debug("split root",
		zap.Int32("root", root.addr),
		zap.Int32("left", leftAddr),
		zap.Int32("right", rightAddr),
		zap.Stringer("separator", sep))
	return t.store.WriteNode(newRoot)
}
