package bplus

import (
	"testing"

	"TinyRDB/types"

	"github.com/stvp/assert"
)

func TestFileHeaderRoundTrip(t *testing.T) {
	ks := types.KeyStructure{types.CharType(8), types.IntType(), types.FloatType()}
	h, err := newFileHeader(3, ks)
	assert.Nil(t, err)
	h.root, h.freeHead, h.freeCount = 0, 7, 2

	buf, err := h.encode()
	assert.Nil(t, err)
	assert.Equal(t, len(buf), HeaderSize)
	assert.Equal(t, string(buf[:4]), headerMagic)

	got, err := decodeFileHeader(buf)
	assert.Nil(t, err)
	assert.Equal(t, got, h)
}

func TestFileHeaderFieldLimit(t *testing.T) {
	ks := make(types.KeyStructure, maxKeyFields)
	for i := range ks {
		ks[i] = types.CharType(types.MaxCharSize)
	}
	h, err := newFileHeader(1, ks)
	assert.Nil(t, err)
	buf, err := h.encode()
	assert.Nil(t, err)
	_, err = decodeFileHeader(buf)
	assert.Nil(t, err)

	_, err = newFileHeader(1, append(ks, types.IntType()))
	assert.True(t, err != nil)
}

func TestFileHeaderRejectsDamage(t *testing.T) {
	h, err := newFileHeader(2, intKS)
	assert.Nil(t, err)
	good, err := h.encode()
	assert.Nil(t, err)

	for _, off := range []int{0, 4, docOffset, docOffset + 5, checksumOffset} {
		buf := append([]byte(nil), good...)
		buf[off] ^= 0x01
		_, err := decodeFileHeader(buf)
		assert.True(t, err != nil, off)
	}
	_, err = decodeFileHeader(good[:HeaderSize-1])
	assert.True(t, err != nil)
}
