package index

import (
	"strconv"
	"sync"
	"testing"

	"TinyRDB/types"

	"github.com/stvp/assert"
)

func TestRegistrySharesManagers(t *testing.T) {
	cfg := testConfig(t)
	cm := newCatalog(t, cfg)
	reg := NewRegistry(cm, cfg, nil)

	a, err := reg.GetOrOpen(ref("by_city"))
	assert.Nil(t, err)
	b, err := reg.GetOrOpen(ref("by_city"))
	assert.Nil(t, err)
	assert.True(t, a == b)
	assert.Equal(t, reg.Len(), 1)

	managers, err := reg.OpenTable(db, "people")
	assert.Nil(t, err)
	assert.Equal(t, len(managers), 5)
	assert.True(t, managers[0].IsUnique())
	assert.True(t, managers[1].IsUnique())
	assert.True(t, !managers[4].IsUnique())
	assert.Equal(t, reg.Len(), 5)

	assert.Nil(t, reg.CloseIndex(ref("by_city")))
	assert.Nil(t, reg.CloseIndex(ref("by_city")))
	assert.Equal(t, reg.Len(), 4)

	assert.Nil(t, reg.CloseTable(db, "people"))
	assert.Equal(t, reg.Len(), 0)

	_, err = reg.GetOrOpen(ref("by_age"))
	assert.Nil(t, err)
	assert.Nil(t, reg.CloseAll())
	assert.Equal(t, reg.Len(), 0)
}

func TestRegistryOpenFailure(t *testing.T) {
	cfg := testConfig(t)
	cm := newCatalog(t, cfg)
	reg := NewRegistry(cm, cfg, nil)

	_, err := reg.GetOrOpen(ref("nope"))
	assert.True(t, err != nil)
	assert.Equal(t, reg.Len(), 0)
}

func TestRegistryTableLock(t *testing.T) {
	cfg := testConfig(t)
	reg := NewRegistry(newCatalog(t, cfg), cfg, nil)

	a := reg.TableLock(db, "people")
	assert.True(t, a == reg.TableLock(db, "PEOPLE"))
	assert.True(t, a != reg.TableLock(db, "orders"))
	assert.True(t, a != reg.TableLock("other", "people"))
}

func TestSharedManagerConcurrentUse(t *testing.T) {
	cfg := testConfig(t)
	reg := NewRegistry(newCatalog(t, cfg), cfg, nil)
	defer reg.CloseAll()

	m, err := reg.GetOrOpen(ref("by_age"))
	assert.Nil(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for w := 0; w < 4; w++ {
		wg.Add(2)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				ptr := types.RowPointer(w*100 + i)
				if err := m.Insert([]string{strconv.Itoa(i % 10)}, ptr); err != nil {
					errs <- err
					return
				}
			}
		}(w)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				if _, err := m.EqualityQuery(strconv.Itoa(i % 10)); err != nil {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	n, err := m.Len()
	assert.Nil(t, err)
	assert.Equal(t, n, 400)
	assert.Nil(t, m.Check())
	rs, err := m.EqualityQuery("3")
	assert.Nil(t, err)
	assert.Equal(t, rs.Len(), 40)
}
