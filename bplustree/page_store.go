package bplus

import (
	"sync/atomic"

	"TinyRDB/types"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
This file is the PageStore of the index.
It sits on a Pager and deals in decoded nodes instead of raw pages:
reading and writing a node at a page address, tracking the root address,
and recycling freed pages through a free list kept inside the file.

Freed pages are not truncated. Each one is rewritten as a free node
(internal flag, no keys, one pointer to the next free page) and pushed on
the free list whose head is kept in the file header; Allocate pops it
before growing the file.

Decoded nodes are cached in a ristretto cache keyed by page address.
Writes go straight through to the pager, so the cache never holds the
only copy of a node.
*/

type StoreOptions struct {
	// CacheSize is the number of decoded nodes kept in memory. 0 disables the cache.
	CacheSize int
	Logger    *zap.Logger
}

// StoreStats counts page traffic since the store was opened.
type StoreStats struct {
	Reads       uint64
	Writes      uint64
	CacheHits   uint64
	Allocations uint64
	Frees       uint64
	PageCount   int32
	FreePages   uint32
}

// storeCounters are bumped by concurrent readers, so they are atomic.
type storeCounters struct {
	reads       atomic.Uint64
	writes      atomic.Uint64
	cacheHits   atomic.Uint64
	allocations atomic.Uint64
	frees       atomic.Uint64
}

type PageStore struct {
	pager  Pager
	header *fileHeader
	cache  *ristretto.Cache[int32, *Node]
	logger *zap.Logger
	stats  storeCounters
}

// CreatePageStore initializes a new index file on pager. Existing content is
// discarded.
func CreatePageStore(pager Pager, degree int, ks types.KeyStructure, opts StoreOptions) (*PageStore, error) {
	h, err := newFileHeader(degree, ks)
	if err != nil {
		return nil, err
	}
	s, err := newPageStore(pager, h, opts)
	if err != nil {
		return nil, err
	}
	if err := s.writeHeader(); err != nil {
		s.closeCache()
		return nil, err
	}
	return s, nil
}

// OpenPageStore opens an existing index file. ks must match the key structure
// the file was created with.
func OpenPageStore(pager Pager, ks types.KeyStructure, opts StoreOptions) (*PageStore, error) {
	raw, err := pager.ReadHeader()
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, errors.New("index file is empty")
	}
	h, err := decodeFileHeader(raw)
	if err != nil {
		return nil, err
	}
	if ks != nil && !h.ks.Equal(ks) {
		return nil, errors.Wrapf(types.ErrTypeMismatch, "index key structure is %v, expected %v", h.ks, ks)
	}
	return newPageStore(pager, h, opts)
}

func newPageStore(pager Pager, h *fileHeader, opts StoreOptions) (*PageStore, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	pager.SetPageSize(h.pageSize)

	s := &PageStore{
		pager:  pager,
		header: h,
		logger: logger,
	}
	if opts.CacheSize > 0 {
		// every node costs 1, so MaxCost counts nodes
		cache, err := ristretto.NewCache(&ristretto.Config[int32, *Node]{
			NumCounters:        int64(opts.CacheSize) * 10,
			MaxCost:            int64(opts.CacheSize),
			BufferItems:        64,
			IgnoreInternalCost: true,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create node cache")
		}
		s.cache = cache
	}
	return s, nil
}

func (s *PageStore) Degree() int                      { return s.header.degree }
func (s *PageStore) KeyStructure() types.KeyStructure { return s.header.ks }
func (s *PageStore) PageSize() int                    { return s.header.pageSize }
func (s *PageStore) Root() int32                      { return s.header.root }
func (s *PageStore) Pager() Pager                     { return s.pager }

func (s *PageStore) SetRoot(addr int32) error {
	s.header.root = addr
	return s.writeHeader()
}

func (s *PageStore) Stats() StoreStats {
	return StoreStats{
		Reads:       s.stats.reads.Load(),
		Writes:      s.stats.writes.Load(),
		CacheHits:   s.stats.cacheHits.Load(),
		Allocations: s.stats.allocations.Load(),
		Frees:       s.stats.frees.Load(),
		PageCount:   s.pager.PageCount(),
		FreePages:   s.header.freeCount,
	}
}

// ReadNode returns a private copy of the node at addr; callers may mutate it
// and hand it back to WriteNode.
func (s *PageStore) ReadNode(addr int32) (*Node, error) {
	if s.cache != nil {
		if n, ok := s.cache.Get(addr); ok {
			s.stats.cacheHits.Add(1)
			return n.clone(), nil
		}
	}

	page, err := s.pager.ReadPage(addr)
	if err != nil {
		return nil, err
	}
	s.stats.reads.Add(1)
	n, err := DecodeNode(page, addr, s.header.degree, s.header.ks)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode node from page %d", addr)
	}
	s.cachePut(n)
	return n, nil
}

// WriteNode persists n at n.Addr().
func (s *PageStore) WriteNode(n *Node) error {
	if n.addr < 0 {
		return errors.Errorf("node has no page address")
	}
	page, err := EncodeNode(n, s.header.ks)
	if err != nil {
		return err
	}
	if err := s.pager.WritePage(n.addr, page); err != nil {
		if s.cache != nil {
			s.cache.Del(n.addr)
		}
		return err
	}
	s.stats.writes.Add(1)
	s.cachePut(n)
	return nil
}

// cachePut stores a copy of n. Wait drains ristretto's set buffer so that
// a later Get never observes an older version of the page.
func (s *PageStore) cachePut(n *Node) {
	if s.cache == nil {
		return
	}
	s.cache.Set(n.addr, n.clone(), 1)
	s.cache.Wait()
}

// Allocate returns the address of an unused page slot, reusing the free
// list before growing the file.
func (s *PageStore) Allocate() (int32, error) {
	s.stats.allocations.Add(1)

	if head := s.header.freeHead; head != types.NullPointer {
		free, err := s.ReadNode(head)
		if err != nil {
			return types.NullPointer, err
		}
		if free.leaf || len(free.keys) != 0 {
			return types.NullPointer, errors.Errorf("free list corrupt: page %d is in use", head)
		}
		s.header.freeHead = free.pointers[0]
		s.header.freeCount--
		if err := s.writeHeader(); err != nil {
			return types.NullPointer, err
		}
		s.logger.Debug("reused free page", zap.Int32("page", head), zap.Int32("next_free", s.header.freeHead))
		return head, nil
	}

	addr := s.pager.PageCount()
	// reserve the slot so the next allocation gets a different address
	placeholder := NewNode(true, s.header.degree)
	placeholder.addr = addr
	if err := s.WriteNode(placeholder); err != nil {
		return types.NullPointer, err
	}
	return addr, nil
}

// Free pushes addr on the free list.
func (s *PageStore) Free(addr int32) error {
	if addr == s.header.root {
		return errors.Errorf("cannot free root page %d", addr)
	}
	free := NewFreeNode(s.header.freeHead, s.header.degree)
	free.addr = addr
	if err := s.WriteNode(free); err != nil {
		return err
	}
	s.header.freeHead = addr
	s.header.freeCount++
	s.stats.frees.Add(1)
	s.logger.Debug("freed page", zap.Int32("page", addr))
	return s.writeHeader()
}

// FreeList returns the free page addresses from head to tail.
func (s *PageStore) FreeList() ([]int32, error) {
	var list []int32
	for addr := s.header.freeHead; addr != types.NullPointer; {
		if len(list) > int(s.header.freeCount) {
			return nil, errors.New("free list longer than recorded free count")
		}
		n, err := s.ReadNode(addr)
		if err != nil {
			return nil, err
		}
		list = append(list, addr)
		addr = n.pointers[0]
	}
	return list, nil
}

func (s *PageStore) writeHeader() error {
	buf, err := s.header.encode()
	if err != nil {
		return err
	}
	return s.pager.WriteHeader(buf)
}

func (s *PageStore) Sync() error {
	return s.pager.Sync()
}

func (s *PageStore) closeCache() {
	if s.cache != nil {
		s.cache.Close()
		s.cache = nil
	}
}

// Close releases the cache and the underlying file.
func (s *PageStore) Close() error {
	s.closeCache()
	return s.pager.Close()
}
