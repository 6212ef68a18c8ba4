package bplus

import "github.com/pkg/errors"

// pathEntry is one internal node on the way from the root to a leaf and the
// index of the child that was taken.
type pathEntry struct {
	node *Node
	idx  int
}

// descend walks from the root to the leaf that holds (or would hold) key.
// The returned path lists the internal nodes visited, root first.
func (t *BPlusTree) descend(key Key) ([]pathEntry, *Node, error) {
	var path []pathEntry

	n, err := t.store.ReadNode(t.store.Root())
	if err != nil {
		return nil, nil, err
	}
	for !n.leaf {
		if len(path) > maxHeight {
			return nil, nil, errors.Errorf("tree deeper than %d levels, index file corrupt", maxHeight)
		}
		i := n.ChildIndex(key)
		path = append(path, pathEntry{node: n, idx: i})
		if n, err = t.store.ReadNode(n.pointers[i]); err != nil {
			return nil, nil, err
		}
	}
	return path, n, nil
}

// FindLeaf returns the leaf that holds (or would hold) key.
func (t *BPlusTree) FindLeaf(key Key) (*Node, error) {
	_, leaf, err := t.descend(key)
	return leaf, err
}

// leftmostLeaf follows the first pointer down from addr.
func (t *BPlusTree) leftmostLeaf(addr int32) (*Node, error) {
	for depth := 0; ; depth++ {
		n, err := t.store.ReadNode(addr)
		if err != nil {
			return nil, err
		}
		if n.leaf {
			return n, nil
		}
		if depth > maxHeight {
			return nil, errors.Errorf("tree deeper than %d levels, index file corrupt", maxHeight)
		}
		addr = n.pointers[0]
	}
}

// minKey returns the smallest key in the subtree rooted at addr.
func (t *BPlusTree) minKey(addr int32) (Key, error) {
	leaf, err := t.leftmostLeaf(addr)
	if err != nil {
		return Key{}, err
	}
	if len(leaf.keys) == 0 {
		return Key{}, errors.Errorf("empty leaf %d below internal node", leaf.addr)
	}
	return leaf.keys[0], nil
}

// maxHeight bounds traversal so a corrupt file with a pointer cycle fails
// instead of looping.
const maxHeight = 64
