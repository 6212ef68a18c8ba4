// Structure of one B+ tree page
/*
Tree
 ├── Internal Node (keys + child page addresses)
 │      └── Child Internal Nodes ...
 │             └── Leaf Nodes (keys + row pointers + next leaf)

- keys: sorted ascending order
- every node: len(pointers) == len(keys)+1
- internal nodes: pointers[i] is the child holding keys < keys[i],
  pointers[i+1] the child holding keys >= keys[i]
- leaf nodes: pointers[i] is the row pointer of keys[i], the trailing
  pointer links to the next leaf (NullPointer on the last leaf)
- free pages: internal flag, no keys, one pointer to the next free page
- every node except the root holds between D and 2D keys
*/
package bplus

import (
	"sort"

	"TinyRDB/types"

	"github.com/pkg/errors"
)

// ErrKindMismatch is returned when a leaf is joined with an internal node.
var ErrKindMismatch = errors.New("cannot join leaf and internal node")

type Node struct {
	addr     int32
	leaf     bool
	keys     []Key
	pointers []int32
	degree   int
}

// NewNode returns an empty node: no keys and a single NullPointer.
func NewNode(leaf bool, degree int) *Node {
	n := &Node{
		addr:     types.NullPointer,
		leaf:     leaf,
		keys:     make([]Key, 0, 2*degree+1),
		pointers: make([]int32, 0, 2*degree+2),
		degree:   degree,
	}
	n.pointers = append(n.pointers, types.NullPointer)
	return n
}

// NewFreeNode returns the free-list entry linking to next.
func NewFreeNode(next int32, degree int) *Node {
	n := NewNode(false, degree)
	n.pointers[0] = next
	return n
}

func (n *Node) Addr() int32       { return n.addr }
func (n *Node) IsLeaf() bool      { return n.leaf }
func (n *Node) KeyCount() int     { return len(n.keys) }
func (n *Node) Keys() []Key       { return n.keys }
func (n *Node) Pointers() []int32 { return n.pointers }
func (n *Node) Key(i int) Key     { return n.keys[i] }
func (n *Node) Pointer(i int) int32 {
	return n.pointers[i]
}

// IsAlmostFull reports 2D-1 keys: one more insert fills the node.
func (n *Node) IsAlmostFull() bool { return len(n.keys) == 2*n.degree-1 }

// IsFull reports 2D keys: one more insert makes the node split.
func (n *Node) IsFull() bool { return len(n.keys) == 2*n.degree }

func (n *Node) IsOverfull() bool { return len(n.keys) > 2*n.degree }

// IsTooSmall reports fewer than D keys. Only meaningful for non-root nodes.
func (n *Node) IsTooSmall() bool { return len(n.keys) < n.degree }

// HasSurplus reports whether one key can be lent to a sibling.
func (n *Node) HasSurplus() bool { return len(n.keys) > n.degree }

// Next returns the next-leaf link of a leaf.
func (n *Node) Next() int32 { return n.pointers[len(n.pointers)-1] }

func (n *Node) SetNext(addr int32) { n.pointers[len(n.pointers)-1] = addr }

// clone returns a deep copy; keys are immutable and shared.
func (n *Node) clone() *Node {
	c := &Node{
		addr:     n.addr,
		leaf:     n.leaf,
		keys:     make([]Key, len(n.keys), 2*n.degree+1),
		pointers: make([]int32, len(n.pointers), 2*n.degree+2),
		degree:   n.degree,
	}
	copy(c.keys, n.keys)
	copy(c.pointers, n.pointers)
	return c
}

// search returns the first position whose key is >= key and whether it is equal.
func (n *Node) search(key Key) (int, bool) {
	i := sort.Search(len(n.keys), func(i int) bool { return Compare(n.keys[i], key) >= 0 })
	return i, i < len(n.keys) && Compare(n.keys[i], key) == 0
}

// upperBound returns the first position whose key is > key.
func (n *Node) upperBound(key Key) int {
	return sort.Search(len(n.keys), func(i int) bool { return Compare(n.keys[i], key) > 0 })
}

// ChildIndex returns the index of the pointer to descend into for key.
func (n *Node) ChildIndex(key Key) int {
	return n.upperBound(key)
}

// FindNextChild returns the pointer to descend into: the first pointer whose
// separator exceeds key, or the last pointer.
func (n *Node) FindNextChild(key Key) int32 {
	return n.pointers[n.ChildIndex(key)]
}

// IndexOfPointer returns the position of ptr among the node's pointers, or -1.
func (n *Node) IndexOfPointer(ptr int32) int {
	for i, p := range n.pointers {
		if p == ptr {
			return i
		}
	}
	return -1
}

// ValueOf returns the row pointer stored for key in a leaf.
func (n *Node) ValueOf(key Key) (int32, error) {
	i, ok := n.search(key)
	if !ok {
		return types.NullPointer, errors.Wrapf(types.ErrKeyNotFound, "%v", key)
	}
	return n.pointers[i], nil
}

// Contains reports whether a leaf holds key.
func (n *Node) Contains(key Key) bool {
	_, ok := n.search(key)
	return ok
}

// InsertIntoLeaf inserts (key, ptr) keeping key order. Duplicates are not
// checked here.
func (n *Node) InsertIntoLeaf(key Key, ptr int32) {
	i := n.upperBound(key)
	n.keys = insertAt(n.keys, i, key)
	n.pointers = insertAt(n.pointers, i, ptr)
}

// InsertIntoInternal inserts a separator and the child to its right.
func (n *Node) InsertIntoInternal(key Key, rightChild int32) {
	i := n.upperBound(key)
	n.keys = insertAt(n.keys, i, key)
	n.pointers = insertAt(n.pointers, i+1, rightChild)
}

// RemoveFromLeaf removes key and its row pointer and returns the position it
// had.
func (n *Node) RemoveFromLeaf(key Key) (int, error) {
	i, ok := n.search(key)
	if !ok {
		return -1, errors.Wrapf(types.ErrKeyNotFound, "%v", key)
	}
	n.keys = removeAt(n.keys, i)
	n.pointers = removeAt(n.pointers, i)
	return i, nil
}

// RemoveSeparator drops keys[i] and the child to its right, pointers[i+1].
func (n *Node) RemoveSeparator(i int) {
	n.keys = removeAt(n.keys, i)
	n.pointers = removeAt(n.pointers, i+1)
}

func (n *Node) ReplaceKey(i int, key Key) { n.keys[i] = key }

// SplitLeaf moves the upper half of an overfull leaf into a new right sibling
// stored at rightAddr. The right half's first key is returned as the new
// separator; it stays in the right leaf as data.
func (n *Node) SplitLeaf(rightAddr int32) (*Node, Key) {
	mid := len(n.keys) / 2
	right := NewNode(true, n.degree)
	right.addr = rightAddr
	right.keys = append(right.keys, n.keys[mid:]...)
	right.pointers = append(right.pointers[:0], n.pointers[mid:]...)

	n.keys = n.keys[:mid]
	n.pointers = append(n.pointers[:mid], rightAddr)
	return right, right.keys[0]
}

// SplitInternal moves the upper half of an overfull internal node into a new
// right sibling. The median key is promoted and kept in neither half.
func (n *Node) SplitInternal(rightAddr int32) (*Node, Key) {
	mid := len(n.keys) / 2
	promote := n.keys[mid]

	right := NewNode(false, n.degree)
	right.addr = rightAddr
	right.keys = append(right.keys, n.keys[mid+1:]...)
	right.pointers = append(right.pointers[:0], n.pointers[mid+1:]...)

	n.keys = n.keys[:mid]
	n.pointers = n.pointers[:mid+1]
	return right, promote
}

// LeftSiblingOf returns the child left of child, if any.
func (n *Node) LeftSiblingOf(child int32) (int32, bool) {
	if n.leaf {
		return types.NullPointer, false
	}
	i := n.IndexOfPointer(child)
	if i <= 0 {
		return types.NullPointer, false
	}
	return n.pointers[i-1], true
}

// RightSiblingOf returns the child right of child, if any.
func (n *Node) RightSiblingOf(child int32) (int32, bool) {
	if n.leaf {
		return types.NullPointer, false
	}
	i := n.IndexOfPointer(child)
	if i < 0 || i >= len(n.keys) {
		return types.NullPointer, false
	}
	return n.pointers[i+1], true
}

// JoinLeaves appends the right sibling's entries; the right sibling's next
// link becomes this leaf's next link.
func (n *Node) JoinLeaves(right *Node) error {
	if !n.leaf || !right.leaf {
		return ErrKindMismatch
	}
	n.keys = append(n.keys, right.keys...)
	n.pointers = append(n.pointers[:len(n.pointers)-1], right.pointers...)
	return nil
}

// JoinInternal appends sep and the right sibling's keys and children.
func (n *Node) JoinInternal(sep Key, right *Node) error {
	if n.leaf || right.leaf {
		return ErrKindMismatch
	}
	n.keys = append(n.keys, sep)
	n.keys = append(n.keys, right.keys...)
	n.pointers = append(n.pointers, right.pointers...)
	return nil
}

func (n *Node) PopFrontKey() Key {
	k := n.keys[0]
	n.keys = removeAt(n.keys, 0)
	return k
}

func (n *Node) PopBackKey() Key {
	k := n.keys[len(n.keys)-1]
	n.keys = n.keys[:len(n.keys)-1]
	return k
}

func (n *Node) PopFrontPointer() int32 {
	p := n.pointers[0]
	n.pointers = removeAt(n.pointers, 0)
	return p
}

func (n *Node) PopBackPointer() int32 {
	p := n.pointers[len(n.pointers)-1]
	n.pointers = n.pointers[:len(n.pointers)-1]
	return p
}

// PopBackEntry removes a leaf's last (key, row pointer), keeping the next link.
func (n *Node) PopBackEntry() (Key, int32) {
	last := len(n.keys) - 1
	k, p := n.keys[last], n.pointers[last]
	n.keys = n.keys[:last]
	n.pointers = removeAt(n.pointers, last)
	return k, p
}

// PopFrontEntry removes a leaf's first (key, row pointer).
func (n *Node) PopFrontEntry() (Key, int32) {
	return n.PopFrontKey(), n.PopFrontPointer()
}

func (n *Node) PushFrontKey(k Key)       { n.keys = insertAt(n.keys, 0, k) }
func (n *Node) PushBackKey(k Key)        { n.keys = append(n.keys, k) }
func (n *Node) PushFrontPointer(p int32) { n.pointers = insertAt(n.pointers, 0, p) }
func (n *Node) PushBackPointer(p int32)  { n.pointers = append(n.pointers, p) }

// PushBackEntry appends (key, row pointer) to a leaf before its next link.
func (n *Node) PushBackEntry(k Key, p int32) {
	n.keys = append(n.keys, k)
	n.pointers = insertAt(n.pointers, len(n.pointers)-1, p)
}

func insertAt[T any](s []T, i int, v T) []T {
	var zero T
	s = append(s, zero)
	copy(s[i+1:], s[i:])
	s[i] = v
	return s
}

func removeAt[T any](s []T, i int) []T {
	copy(s[i:], s[i+1:])
	return s[:len(s)-1]
}
