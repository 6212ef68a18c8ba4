package bplus

import (
	"encoding/binary"

	"TinyRDB/types"

	"github.com/pkg/errors"
)

// NodeSize returns the fixed encoded size of a node:
//
//	leaf flag (1) | key count (4) | 2D keys | 2D+1 pointers (4 each)
func NodeSize(degree, keyWidth int) int {
	return 1 + 4 + 2*degree*keyWidth + (2*degree+1)*4
}

// EncodeNode serializes a Node into a page of NodeSize bytes.
// Format:
//   - leaf flag (1 byte), key count (4 bytes)
//   - pointer 0, then (key i, pointer i+1) for every key
//   - zero padding up to the fixed page size
func EncodeNode(node *Node, ks types.KeyStructure) ([]byte, error) {
	kw := ks.Width()
	page := make([]byte, NodeSize(node.degree, kw))

	if len(node.keys) > 2*node.degree {
		return nil, errors.Errorf("node %d holds %d keys (max: %d)", node.addr, len(node.keys), 2*node.degree)
	}
	if len(node.pointers) != len(node.keys)+1 {
		return nil, errors.Errorf("node %d has %d keys but %d pointers", node.addr, len(node.keys), len(node.pointers))
	}

	offset := 0
	if node.leaf {
		page[offset] = 1
	}
	offset++
	binary.LittleEndian.PutUint32(page[offset:], uint32(len(node.keys)))
	offset += 4

	binary.LittleEndian.PutUint32(page[offset:], uint32(node.pointers[0]))
	offset += 4
	for i, key := range node.keys {
		if !key.Structure().Equal(ks) {
			return nil, errors.Wrapf(types.ErrTypeMismatch, "node %d key %d has structure %v", node.addr, i, key.Structure())
		}
		key.Encode(page[offset:])
		offset += kw
		binary.LittleEndian.PutUint32(page[offset:], uint32(node.pointers[i+1]))
		offset += 4
	}

	return page, nil
}

// DecodeNode deserializes a Node from a page written by EncodeNode.
func DecodeNode(page []byte, addr int32, degree int, ks types.KeyStructure) (*Node, error) {
	kw := ks.Width()
	if size := NodeSize(degree, kw); len(page) != size {
		return nil, errors.Errorf("page size mismatch: expected %d, got %d", size, len(page))
	}

	node := NewNode(page[0] == 1, degree)
	node.addr = addr
	if page[0] > 1 {
		return nil, errors.Errorf("page %d: bad leaf flag %d", addr, page[0])
	}

	offset := 1
	count := int(binary.LittleEndian.Uint32(page[offset:]))
	offset += 4
	if count > 2*degree {
		return nil, errors.Errorf("page %d: key count %d exceeds %d", addr, count, 2*degree)
	}

	node.pointers[0] = int32(binary.LittleEndian.Uint32(page[offset:]))
	offset += 4
	for i := 0; i < count; i++ {
		node.keys = append(node.keys, DecodeKey(ks, page[offset:offset+kw]))
		offset += kw
		node.pointers = append(node.pointers, int32(binary.LittleEndian.Uint32(page[offset:])))
		offset += 4
	}

	return node, nil
}
