package bplus

import (
	"math/rand"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"TinyRDB/types"

	"github.com/pkg/errors"
	"github.com/stvp/assert"
)

func newMemTree(t *testing.T, degree int) *BPlusTree {
	t.Helper()
	tree, err := Create(NewInMemoryPager(), intKS, Options{Degree: degree, CacheSize: 64})
	if err != nil {
		t.Fatalf("failed to create tree: %v", err)
	}
	t.Cleanup(func() { tree.Close() })
	return tree
}

func insertAll(t *testing.T, tree *BPlusTree, keys ...int32) {
	t.Helper()
	for _, k := range keys {
		if err := tree.Insert(ik(k), k*10); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}
}

func scanKeys(t *testing.T, tree *BPlusTree) []int32 {
	t.Helper()
	var out []int32
	it := tree.SeekFirst()
	for ; it.Valid(); it.Next() {
		out = append(out, it.Key().Field(0).Int())
	}
	assert.Nil(t, it.Err())
	return out
}

func TestRootSplitScenario(t *testing.T) {
	tree := newMemTree(t, 2)
	insertAll(t, tree, 10, 20, 30, 40, 50)

	root, err := tree.Store().ReadNode(tree.Root())
	assert.Nil(t, err)
	assert.Equal(t, tree.Root(), int32(0))
	assert.True(t, !root.IsLeaf())
	assert.Equal(t, intsOf(root.Keys()), []int32{30})

	left, err := tree.Store().ReadNode(root.Pointer(0))
	assert.Nil(t, err)
	right, err := tree.Store().ReadNode(root.Pointer(1))
	assert.Nil(t, err)
	assert.Equal(t, intsOf(left.Keys()), []int32{10, 20})
	assert.Equal(t, intsOf(right.Keys()), []int32{30, 40, 50})
	assert.Equal(t, left.Next(), right.Addr())
	assert.Equal(t, right.Next(), nullAddr)

	p, err := tree.Find(ik(30))
	assert.Nil(t, err)
	assert.Equal(t, p, int32(300))

	_, err = tree.Find(ik(25))
	assert.True(t, errors.Is(err, types.ErrKeyNotFound))

	h, err := tree.Height()
	assert.Nil(t, err)
	assert.Equal(t, h, 2)
	assert.Nil(t, tree.Check())
}

func TestEmptyTree(t *testing.T) {
	tree := newMemTree(t, 2)

	_, err := tree.Find(ik(1))
	assert.True(t, errors.Is(err, types.ErrKeyNotFound))
	assert.True(t, errors.Is(tree.Delete(ik(1)), types.ErrKeyNotFound))

	n, err := tree.Len()
	assert.Nil(t, err)
	assert.Equal(t, n, 0)

	entries, err := tree.RangeQuery(Key{}, Key{}, Unbounded, Unbounded)
	assert.Nil(t, err)
	assert.Equal(t, len(entries), 0)
	assert.Nil(t, tree.Check())
}

func TestInsertDuplicate(t *testing.T) {
	tree := newMemTree(t, 2)
	insertAll(t, tree, 1, 2, 3)

	err := tree.Insert(ik(2), 999)
	assert.True(t, errors.Is(err, types.ErrKeyAlreadyExists))

	p, err := tree.Find(ik(2))
	assert.Nil(t, err)
	assert.Equal(t, p, int32(20))
}

func TestInsertWrongStructure(t *testing.T) {
	tree := newMemTree(t, 2)
	err := tree.Insert(NewKey(cityKS, types.TextValue("NYC")), 1)
	assert.True(t, errors.Is(err, types.ErrTypeMismatch))
}

func TestFindAfterInsert(t *testing.T) {
	tree := newMemTree(t, 3)
	rng := rand.New(rand.NewSource(7))
	keys := rng.Perm(2000)

	for _, k := range keys {
		if err := tree.Insert(ik(int32(k)), int32(k)+1); err != nil {
			t.Fatalf("insert %d: %v", k, err)
		}
	}
	assert.Nil(t, tree.Check())

	for _, k := range keys {
		p, err := tree.Find(ik(int32(k)))
		if err != nil {
			t.Fatalf("find %d: %v", k, err)
		}
		if p != int32(k)+1 {
			t.Fatalf("find %d: got pointer %d", k, p)
		}
	}

	got := scanKeys(t, tree)
	assert.Equal(t, len(got), 2000)
	assert.True(t, sort.SliceIsSorted(got, func(i, j int) bool { return got[i] < got[j] }))
}

func TestDeleteKeepsInvariants(t *testing.T) {
	for _, degree := range []int{1, 2, 3, 5} {
		tree := newMemTree(t, degree)
		rng := rand.New(rand.NewSource(int64(degree)))
		keys := rng.Perm(400)
		for _, k := range keys {
			if err := tree.Insert(ik(int32(k)), int32(k)); err != nil {
				t.Fatalf("D=%d insert %d: %v", degree, k, err)
			}
		}

		present := make(map[int32]bool, len(keys))
		for _, k := range keys {
			present[int32(k)] = true
		}

		for i, k := range rng.Perm(400) {
			key := int32(k)
			if err := tree.Delete(ik(key)); err != nil {
				t.Fatalf("D=%d delete %d: %v", degree, key, err)
			}
			delete(present, key)

			if i%13 == 0 || len(present) < 20 {
				if err := tree.Check(); err != nil {
					t.Fatalf("D=%d after deleting %d (%d left): %v", degree, key, len(present), err)
				}
			}
			if _, err := tree.Find(ik(key)); !errors.Is(err, types.ErrKeyNotFound) {
				t.Fatalf("D=%d deleted key %d still found: %v", degree, key, err)
			}
		}

		n, err := tree.Len()
		assert.Nil(t, err)
		assert.Equal(t, n, 0)
		h, err := tree.Height()
		assert.Nil(t, err)
		assert.Equal(t, h, 1)
	}
}

func TestMixedOperations(t *testing.T) {
	tree := newMemTree(t, 2)
	rng := rand.New(rand.NewSource(42))
	present := map[int32]bool{}

	for i := 0; i < 3000; i++ {
		key := int32(rng.Intn(300))
		if rng.Intn(3) == 0 {
			err := tree.Delete(ik(key))
			if present[key] {
				assert.Nil(t, err)
				delete(present, key)
			} else {
				assert.True(t, errors.Is(err, types.ErrKeyNotFound))
			}
		} else {
			err := tree.Insert(ik(key), key)
			if present[key] {
				assert.True(t, errors.Is(err, types.ErrKeyAlreadyExists))
			} else {
				assert.Nil(t, err)
				present[key] = true
			}
		}
		if i%100 == 0 {
			if err := tree.Check(); err != nil {
				t.Fatalf("step %d: %v", i, err)
			}
		}
	}
	assert.Nil(t, tree.Check())

	want := make([]int32, 0, len(present))
	for k := range present {
		want = append(want, k)
	}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	got := scanKeys(t, tree)
	assert.Equal(t, len(got), len(want))
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("scan position %d: got %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDoubleDeleteLeavesTreeUnchanged(t *testing.T) {
	tree := newMemTree(t, 2)
	insertAll(t, tree, 10, 20, 30, 40, 50, 60, 70)

	assert.Nil(t, tree.Delete(ik(40)))
	before := scanKeys(t, tree)
	stats := tree.Store().Stats()

	err := tree.Delete(ik(40))
	assert.True(t, errors.Is(err, types.ErrKeyNotFound))
	assert.Equal(t, scanKeys(t, tree), before)
	assert.Equal(t, tree.Store().Stats().Writes, stats.Writes)
	assert.Nil(t, tree.Check())
}

func TestDeleteSeparatorKey(t *testing.T) {
	tree := newMemTree(t, 2)
	insertAll(t, tree, 10, 20, 30, 40, 50, 60)

	// 30 is the root separator and the right leaf's minimum
	assert.Nil(t, tree.Delete(ik(30)))
	assert.Nil(t, tree.Check())
	_, err := tree.Find(ik(30))
	assert.True(t, errors.Is(err, types.ErrKeyNotFound))
	assert.Equal(t, scanKeys(t, tree), []int32{10, 20, 40, 50, 60})
}

func TestMergeCollapsesRoot(t *testing.T) {
	tree := newMemTree(t, 2)
	insertAll(t, tree, 10, 20, 30, 40, 50)

	assert.Nil(t, tree.Delete(ik(50)))
	assert.Nil(t, tree.Delete(ik(40)))
	assert.Nil(t, tree.Check())

	root, err := tree.Store().ReadNode(tree.Root())
	assert.Nil(t, err)
	assert.True(t, root.IsLeaf())
	assert.Equal(t, tree.Root(), int32(0))
	assert.Equal(t, intsOf(root.Keys()), []int32{10, 20, 30})

	free, err := tree.FreePages()
	assert.Nil(t, err)
	assert.Equal(t, len(free), 2)
}

func TestFreedPagesAreReused(t *testing.T) {
	tree := newMemTree(t, 2)
	for round := 0; round < 5; round++ {
		for k := int32(0); k < 200; k++ {
			if err := tree.Insert(ik(k), k); err != nil {
				t.Fatalf("round %d insert %d: %v", round, k, err)
			}
		}
		for k := int32(0); k < 200; k++ {
			if err := tree.Delete(ik(k)); err != nil {
				t.Fatalf("round %d delete %d: %v", round, k, err)
			}
		}
	}
	high := tree.Store().Stats().PageCount

	insertAll(t, tree, 1, 2, 3)
	for k := int32(4); k < 200; k++ {
		assert.Nil(t, tree.Insert(ik(k), k))
	}
	assert.Equal(t, tree.Store().Stats().PageCount, high)
	assert.Nil(t, tree.Check())
}

func TestRangeQuery(t *testing.T) {
	tree := newMemTree(t, 2)
	for k := int32(1); k <= 50; k++ {
		assert.Nil(t, tree.Insert(ik(k*2), k))
	}

	keysOf := func(entries []Entry) []int32 {
		out := make([]int32, len(entries))
		for i, e := range entries {
			out[i] = e.Key.Field(0).Int()
		}
		return out
	}

	got, err := tree.RangeQuery(ik(10), ik(20), Inclusive, Inclusive)
	assert.Nil(t, err)
	assert.Equal(t, keysOf(got), []int32{10, 12, 14, 16, 18, 20})
	assert.Equal(t, got[0].Pointer, int32(5))

	got, err = tree.RangeQuery(ik(10), ik(20), Exclusive, Exclusive)
	assert.Nil(t, err)
	assert.Equal(t, keysOf(got), []int32{12, 14, 16, 18})

	got, err = tree.RangeQuery(ik(11), ik(15), Inclusive, Inclusive)
	assert.Nil(t, err)
	assert.Equal(t, keysOf(got), []int32{12, 14})

	got, err = tree.RangeQuery(Key{}, ik(7), Unbounded, Exclusive)
	assert.Nil(t, err)
	assert.Equal(t, keysOf(got), []int32{2, 4, 6})

	got, err = tree.RangeQuery(ik(96), Key{}, Exclusive, Unbounded)
	assert.Nil(t, err)
	assert.Equal(t, keysOf(got), []int32{98, 100})

	got, err = tree.RangeQuery(ik(30), ik(20), Inclusive, Inclusive)
	assert.Nil(t, err)
	assert.Equal(t, len(got), 0)

	got, err = tree.RangeQuery(Key{}, Key{}, Unbounded, Unbounded)
	assert.Nil(t, err)
	assert.Equal(t, len(got), 50)
}

func TestPrefixRangeOnCompositeKeys(t *testing.T) {
	tree, err := Create(NewInMemoryPager(), pairKS, Options{Degree: 2})
	assert.Nil(t, err)
	defer tree.Close()

	for a := int32(1); a <= 5; a++ {
		for b := int32(1); b <= 4; b++ {
			k := NewKey(pairKS, types.IntValue(a), types.IntValue(b))
			assert.Nil(t, tree.Insert(k, a*100+b))
		}
	}

	three := NewKey(intKS, types.IntValue(3))
	got, err := tree.RangeQuery(three, three, Inclusive, Inclusive)
	assert.Nil(t, err)
	assert.Equal(t, len(got), 4)
	for i, e := range got {
		assert.Equal(t, e.Pointer, int32(300+i+1))
	}

	got, err = tree.RangeQuery(three, Key{}, Exclusive, Unbounded)
	assert.Nil(t, err)
	assert.Equal(t, len(got), 8)
	assert.Equal(t, got[0].Pointer, int32(401))

	it := tree.SeekGE(three)
	assert.True(t, it.Valid())
	assert.Equal(t, it.Pointer(), int32(301))
	it = tree.SeekGT(three)
	assert.True(t, it.Valid())
	assert.Equal(t, it.Pointer(), int32(401))
}

func TestReopenFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "users_pk.idx")

	tree, err := CreateFile(path, intKS, Options{Degree: 2, CacheSize: 16, SyncWrites: true})
	assert.Nil(t, err)
	for k := int32(0); k < 100; k++ {
		assert.Nil(t, tree.Insert(ik(k), k+1000))
	}
	for k := int32(0); k < 100; k += 3 {
		assert.Nil(t, tree.Delete(ik(k)))
	}
	root := tree.Root()
	assert.Nil(t, tree.Close())

	reopened, err := OpenFile(path, nil, Options{})
	assert.Nil(t, err)
	defer reopened.Close()

	assert.Equal(t, reopened.Degree(), 2)
	assert.Equal(t, reopened.Root(), root)
	assert.True(t, reopened.KeyStructure().Equal(intKS))
	assert.Nil(t, reopened.Check())

	for k := int32(0); k < 100; k++ {
		p, err := reopened.Find(ik(k))
		if k%3 == 0 {
			assert.True(t, errors.Is(err, types.ErrKeyNotFound))
			continue
		}
		assert.Nil(t, err)
		assert.Equal(t, p, k+1000)
	}
}

func TestOpenFileWrongStructure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "city.idx")
	tree, err := CreateFile(path, cityKS, Options{Degree: 2})
	assert.Nil(t, err)
	assert.Nil(t, tree.Close())

	_, err = OpenFile(path, intKS, Options{})
	assert.True(t, errors.Is(err, types.ErrTypeMismatch))
}

func TestConcurrentReaders(t *testing.T) {
	tree := newMemTree(t, 3)
	keys := make([]int32, 500)
	for i := range keys {
		keys[i] = int32(i)
	}
	insertAll(t, tree, keys...)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(keys); i += 8 {
				ptr, err := tree.Find(ik(keys[i]))
				if err != nil || ptr != keys[i]*10 {
					errs <- errors.Errorf("find %d: %d, %v", keys[i], ptr, err)
					return
				}
			}
			entries, err := tree.RangeQuery(ik(100), ik(199), Inclusive, Inclusive)
			if err != nil || len(entries) != 100 {
				errs <- errors.Errorf("range: %d entries, %v", len(entries), err)
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	stats := tree.Store().Stats()
	assert.True(t, stats.Reads+stats.CacheHits > 0)
	assert.Nil(t, tree.Check())
}
