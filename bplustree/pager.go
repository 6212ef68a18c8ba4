package bplus

import (
	"sync"

	"TinyRDB/types"

	"github.com/pkg/errors"
)

// Pager is the page-address abstraction under the PageStore: a file header
// plus an array of fixed-size page slots addressed by index.
type Pager interface {
	// SetPageSize fixes the slot size. It must be called before any page access.
	SetPageSize(size int)
	ReadPage(addr int32) ([]byte, error)
	WritePage(addr int32, data []byte) error
	// PageCount returns the number of slots, free or in use.
	PageCount() int32
	ReadHeader() ([]byte, error)
	WriteHeader(data []byte) error
	Sync() error
	Close() error
}

// InMemoryPager keeps pages in a map. Used by tests and scratch trees.
type InMemoryPager struct {
	header   []byte
	pages    map[int32][]byte
	pageSize int
	numPages int32
	mu       sync.RWMutex
}

func NewInMemoryPager() *InMemoryPager {
	return &InMemoryPager{
		pages: make(map[int32][]byte),
	}
}

func (p *InMemoryPager) SetPageSize(size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pageSize = size
}

func (p *InMemoryPager) ReadPage(addr int32) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	data, ok := p.pages[addr]
	if !ok {
		return nil, types.NewIOError("read", "memory", addr, errors.New("page not found"))
	}
	return append([]byte(nil), data...), nil
}

func (p *InMemoryPager) WritePage(addr int32, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(data) != p.pageSize {
		return errors.Errorf("data size %d does not match page size %d", len(data), p.pageSize)
	}
	if addr < 0 || addr > p.numPages {
		return types.NewIOError("write", "memory", addr, errors.New("address out of range"))
	}
	p.pages[addr] = append([]byte(nil), data...)
	if addr == p.numPages {
		p.numPages++
	}
	return nil
}

func (p *InMemoryPager) PageCount() int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.numPages
}

func (p *InMemoryPager) ReadHeader() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.header == nil {
		return nil, nil
	}
	return append([]byte(nil), p.header...), nil
}

func (p *InMemoryPager) WriteHeader(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.header = append([]byte(nil), data...)
	return nil
}

func (p *InMemoryPager) Sync() error {
	return nil
}

func (p *InMemoryPager) Close() error {
	return nil
}
