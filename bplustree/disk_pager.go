package bplus

import (
	"io"
	"os"
	"sync"

	"TinyRDB/types"

	"github.com/pkg/errors"
)

// OnDiskPager implements the Pager interface over one index file:
//
//	[header: HeaderSize bytes][slot 0][slot 1]...
//
// Slot addr starts at HeaderSize + addr*pageSize.
type OnDiskPager struct {
	file     *os.File
	filePath string
	pageSize int
	numPages int32
	mu       sync.RWMutex
}

// NewOnDiskPager opens or creates the index file at indexPath.
func NewOnDiskPager(indexPath string) (*OnDiskPager, error) {
	file, err := os.OpenFile(indexPath, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, types.NewIOError("open", indexPath, -1, err)
	}

	return &OnDiskPager{
		file:     file,
		filePath: indexPath,
	}, nil
}

func (p *OnDiskPager) Path() string { return p.filePath }

// SetPageSize fixes the slot size and derives the slot count from the file size.
func (p *OnDiskPager) SetPageSize(size int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pageSize = size
	if p.file == nil || size <= 0 {
		return
	}
	if stat, err := p.file.Stat(); err == nil && stat.Size() > HeaderSize {
		p.numPages = int32((stat.Size() - HeaderSize) / int64(size))
	}
}

func (p *OnDiskPager) offset(addr int32) int64 {
	return HeaderSize + int64(addr)*int64(p.pageSize)
}

// ReadPage reads the slot at addr.
func (p *OnDiskPager) ReadPage(addr int32) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.file == nil {
		return nil, types.NewIOError("read", p.filePath, addr, os.ErrClosed)
	}
	if addr < 0 || addr >= p.numPages {
		return nil, types.NewIOError("read", p.filePath, addr, errors.Errorf("address out of range (pages: %d)", p.numPages))
	}

	page := make([]byte, p.pageSize)
	if _, err := p.file.ReadAt(page, p.offset(addr)); err != nil {
		return nil, types.NewIOError("read", p.filePath, addr, err)
	}
	return page, nil
}

// WritePage writes the slot at addr. Writing at PageCount() appends a slot.
func (p *OnDiskPager) WritePage(addr int32, data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return types.NewIOError("write", p.filePath, addr, os.ErrClosed)
	}
	if len(data) != p.pageSize {
		return errors.Errorf("data size %d does not match page size %d", len(data), p.pageSize)
	}
	if addr < 0 || addr > p.numPages {
		return types.NewIOError("write", p.filePath, addr, errors.Errorf("address out of range (pages: %d)", p.numPages))
	}

	if _, err := p.file.WriteAt(data, p.offset(addr)); err != nil {
		return types.NewIOError("write", p.filePath, addr, err)
	}
	if addr == p.numPages {
		p.numPages++
	}
	return nil
}

func (p *OnDiskPager) PageCount() int32 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.numPages
}

// ReadHeader returns the header region, or nil for a new, empty file.
func (p *OnDiskPager) ReadHeader() ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.file == nil {
		return nil, types.NewIOError("read header", p.filePath, -1, os.ErrClosed)
	}
	header := make([]byte, HeaderSize)
	n, err := p.file.ReadAt(header, 0)
	if n == 0 && err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, types.NewIOError("read header", p.filePath, -1, err)
	}
	return header, nil
}

func (p *OnDiskPager) WriteHeader(data []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return types.NewIOError("write header", p.filePath, -1, os.ErrClosed)
	}
	if len(data) != HeaderSize {
		return errors.Errorf("header size %d does not match %d", len(data), HeaderSize)
	}
	if _, err := p.file.WriteAt(data, 0); err != nil {
		return types.NewIOError("write header", p.filePath, -1, err)
	}
	return nil
}

// Sync flushes all pending writes to disk.
func (p *OnDiskPager) Sync() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return types.NewIOError("sync", p.filePath, -1, os.ErrClosed)
	}
	if err := fdatasync(p.file); err != nil {
		return types.NewIOError("sync", p.filePath, -1, err)
	}
	return nil
}

// Close syncs and closes the index file. Closing twice is a no-op.
func (p *OnDiskPager) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return nil
	}

	err := fdatasync(p.file)
	if cerr := p.file.Close(); err == nil {
		err = cerr
	}
	p.file = nil
	if err != nil {
		return types.NewIOError("close", p.filePath, -1, err)
	}
	return nil
}

// FileSize returns the current size of the index file in bytes.
func (p *OnDiskPager) FileSize() int64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.file == nil {
		return 0
	}
	stat, err := p.file.Stat()
	if err != nil {
		return 0
	}
	return stat.Size()
}

// CreateOnDiskPager creates the index file at indexPath, truncating any
// previous content.
func CreateOnDiskPager(indexPath string) (*OnDiskPager, error) {
	file, err := os.OpenFile(indexPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, types.NewIOError("create", indexPath, -1, err)
	}

	return &OnDiskPager{
		file:     file,
		filePath: indexPath,
	}, nil
}
