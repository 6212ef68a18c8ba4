package bplus

import (
	"os"
	"path/filepath"
	"testing"

	"TinyRDB/types"

	"github.com/pkg/errors"
	"github.com/stvp/assert"
)

func TestPageStoreAllocateAndFree(t *testing.T) {
	store, err := CreatePageStore(NewInMemoryPager(), 2, intKS, StoreOptions{CacheSize: 8})
	assert.Nil(t, err)
	defer store.Close()

	var addrs []int32
	for i := 0; i < 4; i++ {
		a, err := store.Allocate()
		assert.Nil(t, err)
		addrs = append(addrs, a)
	}
	assert.Equal(t, addrs, []int32{0, 1, 2, 3})
	assert.Nil(t, store.SetRoot(0))

	assert.Nil(t, store.Free(1))
	assert.Nil(t, store.Free(3))
	free, err := store.FreeList()
	assert.Nil(t, err)
	assert.Equal(t, free, []int32{3, 1})
	assert.Equal(t, store.Stats().FreePages, uint32(2))

	a, err := store.Allocate()
	assert.Nil(t, err)
	assert.Equal(t, a, int32(3))
	a, err = store.Allocate()
	assert.Nil(t, err)
	assert.Equal(t, a, int32(1))
	a, err = store.Allocate()
	assert.Nil(t, err)
	assert.Equal(t, a, int32(4))
	assert.Equal(t, store.Stats().FreePages, uint32(0))

	assert.True(t, store.Free(0) != nil)
}

func TestPageStoreReadReturnsCopy(t *testing.T) {
	store, err := CreatePageStore(NewInMemoryPager(), 2, intKS, StoreOptions{CacheSize: 8})
	assert.Nil(t, err)
	defer store.Close()

	addr, err := store.Allocate()
	assert.Nil(t, err)
	n := leafOf(2, 1, 2)
	n.addr = addr
	assert.Nil(t, store.WriteNode(n))

	got, err := store.ReadNode(addr)
	assert.Nil(t, err)
	got.InsertIntoLeaf(ik(3), 30)

	again, err := store.ReadNode(addr)
	assert.Nil(t, err)
	assert.Equal(t, intsOf(again.Keys()), []int32{1, 2})
	assert.True(t, store.Stats().CacheHits > 0)
}

func TestPageStoreWithoutCache(t *testing.T) {
	store, err := CreatePageStore(NewInMemoryPager(), 1, intKS, StoreOptions{})
	assert.Nil(t, err)
	defer store.Close()

	addr, err := store.Allocate()
	assert.Nil(t, err)
	n := leafOf(1, 5)
	n.addr = addr
	assert.Nil(t, store.WriteNode(n))
	got, err := store.ReadNode(addr)
	assert.Nil(t, err)
	assert.Equal(t, intsOf(got.Keys()), []int32{5})
	assert.Equal(t, store.Stats().CacheHits, uint64(0))

	unaddressed := NewNode(true, 1)
	assert.True(t, store.WriteNode(unaddressed) != nil)
}

func TestPageStoreHeaderRoundTrip(t *testing.T) {
	pager := NewInMemoryPager()
	store, err := CreatePageStore(pager, 3, mixedKS, StoreOptions{})
	assert.Nil(t, err)
	for i := 0; i < 3; i++ {
		_, err := store.Allocate()
		assert.Nil(t, err)
	}
	assert.Nil(t, store.SetRoot(2))
	assert.Nil(t, store.Free(1))

	reopened, err := OpenPageStore(pager, nil, StoreOptions{})
	assert.Nil(t, err)
	assert.Equal(t, reopened.Degree(), 3)
	assert.Equal(t, reopened.Root(), int32(2))
	assert.Equal(t, reopened.PageSize(), NodeSize(3, mixedKS.Width()))
	assert.True(t, reopened.KeyStructure().Equal(mixedKS))
	free, err := reopened.FreeList()
	assert.Nil(t, err)
	assert.Equal(t, free, []int32{1})

	_, err = OpenPageStore(pager, intKS, StoreOptions{})
	assert.True(t, errors.Is(err, types.ErrTypeMismatch))
}

func TestPageStoreRejectsCorruptHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.idx")
	tree, err := CreateFile(path, intKS, Options{Degree: 2})
	assert.Nil(t, err)
	assert.Nil(t, tree.Insert(ik(1), 1))
	assert.Nil(t, tree.Close())

	raw, err := os.ReadFile(path)
	assert.Nil(t, err)
	raw[20] ^= 0xFF // metadata document
	assert.Nil(t, os.WriteFile(path, raw, 0644))

	_, err = OpenFile(path, intKS, Options{})
	assert.True(t, err != nil)

	empty := filepath.Join(t.TempDir(), "empty.idx")
	assert.Nil(t, os.WriteFile(empty, nil, 0644))
	_, err = OpenFile(empty, nil, Options{})
	assert.True(t, err != nil)
}

func TestCreatePageStoreValidation(t *testing.T) {
	_, err := CreatePageStore(NewInMemoryPager(), 0, intKS, StoreOptions{})
	assert.True(t, err != nil)
	_, err = CreatePageStore(NewInMemoryPager(), 2, types.KeyStructure{}, StoreOptions{})
	assert.True(t, err != nil)
}
