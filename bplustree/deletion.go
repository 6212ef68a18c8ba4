package bplus

import (
	"go.uber.org/zap"
)

// Delete removes key. An absent key yields ErrKeyNotFound without side
// effects.
//
// A non-root node left with fewer than D keys borrows one entry from an
// adjacent sibling with a surplus (the fuller one; ties go right). When no
// sibling can lend, it is merged with its right sibling if there is one,
// else with its left one, and the separator between them leaves the parent,
// which is then checked the same way. A root left with no keys and a single
// child is replaced by that child, so the tree shrinks by one level.
func (t *BPlusTree) Delete(key Key) error {
	if err := t.checkKey(key); err != nil {
		return err
	}
	path, leaf, err := t.descend(key)
	if err != nil {
		return err
	}
	if _, err := leaf.RemoveFromLeaf(key); err != nil {
		return err
	}

	if err := t.rebalance(path, leaf); err != nil {
		return err
	}
	if err := t.fixSeparators(key); err != nil {
		return err
	}
	return t.commit()
}

// rebalance writes node and repairs underflow from node up to the root.
func (t *BPlusTree) rebalance(path []pathEntry, node *Node) error {
	for {
		if len(path) == 0 {
			if !node.leaf && len(node.keys) == 0 {
				return t.collapseRoot(node)
			}
			return t.store.WriteNode(node)
		}
		if !node.IsTooSmall() {
			return t.store.WriteNode(node)
		}

		pe := path[len(path)-1]
		path = path[:len(path)-1]
		parent, idx := pe.node, pe.idx

		var left, right *Node
		var err error
		if idx > 0 {
			if left, err = t.store.ReadNode(parent.pointers[idx-1]); err != nil {
				return err
			}
		}
		if idx < len(parent.keys) {
			if right, err = t.store.ReadNode(parent.pointers[idx+1]); err != nil {
				return err
			}
		}

		if donor := pickDonor(left, right); donor != nil {
			if donor == right {
				borrowFromRight(parent, idx, node, right)
			} else {
				borrowFromLeft(parent, idx, node, left)
			}
			return t.writeAll(node, donor, parent)
		}

		if right != nil {
			if err := t.merge(parent, idx, node, right); err != nil {
				return err
			}
		} else {
			if err := t.merge(parent, idx-1, left, node); err != nil {
				return err
			}
		}
		node = parent
	}
}

// pickDonor returns the sibling that can lend a key, or nil. When both can,
// the one holding more keys is used; ties go right.
func pickDonor(left, right *Node) *Node {
	lok := left != nil && left.HasSurplus()
	rok := right != nil && right.HasSurplus()
	switch {
	case lok && rok:
		if len(left.keys) > len(right.keys) {
			return left
		}
		return right
	case rok:
		return right
	case lok:
		return left
	}
	return nil
}

// borrowFromLeft moves the left sibling's last entry to the front of node.
func borrowFromLeft(parent *Node, idx int, node, left *Node) {
	if node.leaf {
		k, p := left.PopBackEntry()
		node.PushFrontKey(k)
		node.PushFrontPointer(p)
		parent.ReplaceKey(idx-1, k)
		return
	}
	node.PushFrontKey(parent.keys[idx-1])
	node.PushFrontPointer(left.PopBackPointer())
	parent.ReplaceKey(idx-1, left.PopBackKey())
}

// borrowFromRight moves the right sibling's first entry to the back of node.
func borrowFromRight(parent *Node, idx int, node, right *Node) {
	if node.leaf {
		k, p := right.PopFrontEntry()
		node.PushBackEntry(k, p)
		parent.ReplaceKey(idx, right.keys[0])
		return
	}
	node.PushBackKey(parent.keys[idx])
	node.PushBackPointer(right.PopFrontPointer())
	parent.ReplaceKey(idx, right.PopFrontKey())
}

// merge folds right into left, drops separator sepIdx from parent and frees
// right's page. The parent is written by the caller's next round.
func (t *BPlusTree) merge(parent *Node, sepIdx int, left, right *Node) error {
	var err error
	if left.leaf {
		err = left.JoinLeaves(right)
	} else {
		err = left.JoinInternal(parent.keys[sepIdx], right)
	}
	if err != nil {
		return err
	}
	parent.RemoveSeparator(sepIdx)

	if err := t.store.WriteNode(left); err != nil {
		return err
	}
	t.logger.Debug("merged nodes",
		zap.Int32("page", left.addr),
		zap.Int32("freed", right.addr),
		zap.Bool("leaf", left.leaf))
	return t.store.Free(right.addr)
}

// collapseRoot copies the root's only child into the root page and frees the
// child's page.
func (t *BPlusTree) collapseRoot(root *Node) error {
	child, err := t.store.ReadNode(root.pointers[0])
	if err != nil {
		return err
	}
	childAddr := child.addr
	child.addr = root.addr
	if err := t.store.WriteNode(child); err != nil {
		return err
	}
	t.logger.Debug("collapsed root", zap.Int32("root", root.addr), zap.Int32("freed", childAddr))
	return t.store.Free(childAddr)
}

// fixSeparators replaces any separator still equal to the deleted key with
// the minimum of the subtree on its right. Such a separator can only sit on
// the search path of key.
func (t *BPlusTree) fixSeparators(key Key) error {
	addr := t.store.Root()
	for depth := 0; depth <= maxHeight; depth++ {
		n, err := t.store.ReadNode(addr)
		if err != nil {
			return err
		}
		if n.leaf {
			return nil
		}
		i, found := n.search(key)
		if found {
			m, err := t.minKey(n.pointers[i+1])
			if err != nil {
				return err
			}
			n.ReplaceKey(i, m)
			if err := t.store.WriteNode(n); err != nil {
				return err
			}
		}
		addr = n.FindNextChild(key)
	}
	return nil
}

func (t *BPlusTree) writeAll(nodes ...*Node) error {
	for _, n := range nodes {
		if err := t.store.WriteNode(n); err != nil {
			return err
		}
	}
	return nil
}
