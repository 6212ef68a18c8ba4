package bplus

import "github.com/pkg/errors"

// Walk visits every node breadth first, root at depth 0.
func (t *BPlusTree) Walk(fn func(n *Node, depth int) error) error {
	level := []int32{t.store.Root()}
	for depth := 0; len(level) > 0; depth++ {
		if depth > maxHeight {
			return errors.Errorf("tree deeper than %d levels, index file corrupt", maxHeight)
		}
		var next []int32
		for _, addr := range level {
			n, err := t.store.ReadNode(addr)
			if err != nil {
				return err
			}
			if err := fn(n, depth); err != nil {
				return err
			}
			if !n.leaf {
				next = append(next, n.pointers...)
			}
		}
		level = next
	}
	return nil
}

// Check verifies the structural invariants of the tree:
//   - keys ascend inside every node
//   - every non-root node holds between D and 2D keys, the root at most 2D
//   - all leaves sit at the same depth
//   - separator i equals the minimum key of the subtree under pointer i+1
//     and exceeds every key under pointer i
//   - the leaf chain visits every key in ascending order
func (t *BPlusTree) Check() error {
	leafDepth := -1
	total := 0

	err := t.Walk(func(n *Node, depth int) error {
		for i := 1; i < len(n.keys); i++ {
			if Compare(n.keys[i-1], n.keys[i]) >= 0 {
				return errors.Errorf("page %d: keys out of order at %d", n.addr, i)
			}
		}
		if len(n.keys) > 2*t.degree {
			return errors.Errorf("page %d: %d keys exceed 2D=%d", n.addr, len(n.keys), 2*t.degree)
		}
		if depth > 0 && len(n.keys) < t.degree {
			return errors.Errorf("page %d: %d keys below D=%d", n.addr, len(n.keys), t.degree)
		}
		if n.leaf {
			if leafDepth < 0 {
				leafDepth = depth
			} else if leafDepth != depth {
				return errors.Errorf("page %d: leaf at depth %d, expected %d", n.addr, depth, leafDepth)
			}
			total += len(n.keys)
			return nil
		}
		if depth == 0 && len(n.keys) == 0 {
			return errors.Errorf("root page %d is internal without keys", n.addr)
		}
		for i, sep := range n.keys {
			m, err := t.minKey(n.pointers[i+1])
			if err != nil {
				return err
			}
			if Compare(m, sep) != 0 {
				return errors.Errorf("page %d: separator %d is %v, right subtree minimum is %v", n.addr, i, sep, m)
			}
			leftMax, err := t.maxKey(n.pointers[i])
			if err != nil {
				return err
			}
			if Compare(leftMax, sep) >= 0 {
				return errors.Errorf("page %d: separator %d is %v, left subtree holds %v", n.addr, i, sep, leftMax)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	var prev Key
	seen := 0
	it := t.SeekFirst()
	for ; it.Valid(); it.Next() {
		if seen > 0 && Compare(prev, it.Key()) >= 0 {
			return errors.Errorf("leaf chain out of order at %v", it.Key())
		}
		prev = it.Key()
		seen++
	}
	if it.Err() != nil {
		return it.Err()
	}
	if seen != total {
		return errors.Errorf("leaf chain holds %d keys, leaves hold %d", seen, total)
	}
	return nil
}

// maxKey returns the largest key in the subtree rooted at addr.
func (t *BPlusTree) maxKey(addr int32) (Key, error) {
	for depth := 0; depth <= maxHeight; depth++ {
		n, err := t.store.ReadNode(addr)
		if err != nil {
			return Key{}, err
		}
		if n.leaf {
			if len(n.keys) == 0 {
				return Key{}, errors.Errorf("empty leaf %d below internal node", n.addr)
			}
			return n.keys[len(n.keys)-1], nil
		}
		addr = n.pointers[len(n.pointers)-1]
	}
	return Key{}, errors.Errorf("tree deeper than %d levels, index file corrupt", maxHeight)
}

// FreePages lists the pages on the free list.
func (t *BPlusTree) FreePages() ([]int32, error) {
	return t.store.FreeList()
}
