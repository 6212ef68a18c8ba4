package bplus

import (
	"TinyRDB/types"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultDegree gives 2D = 64 keys per node.
const DefaultDegree = 32

type Options struct {
	// Degree D: every non-root node holds between D and 2D keys.
	// Only used when a tree is created; an opened tree uses the file's degree.
	Degree int
	// CacheSize is the number of decoded nodes kept in memory.
	CacheSize int
	// SyncWrites fsyncs the index file after every insert and delete.
	SyncWrites bool
	Logger     *zap.Logger
}

func (o Options) degree() int {
	if o.Degree <= 0 {
		return DefaultDegree
	}
	return o.Degree
}

func (o Options) storeOptions() StoreOptions {
	return StoreOptions{CacheSize: o.CacheSize, Logger: o.Logger}
}

// BPlusTree orchestrates traversal, insertion, deletion and range scans over
// nodes fetched from a PageStore. Keys are unique within one tree.
//
// Read-only calls may run concurrently. A mutation must not overlap any
// other call; callers hold a read/write lock per index.
type BPlusTree struct {
	store  *PageStore
	ks     types.KeyStructure
	degree int
	sync   bool
	logger *zap.Logger
}

// Create initializes a new tree on pager: a single empty leaf as the root.
func Create(pager Pager, ks types.KeyStructure, opts Options) (*BPlusTree, error) {
	store, err := CreatePageStore(pager, opts.degree(), ks, opts.storeOptions())
	if err != nil {
		return nil, err
	}
	t := newTree(store, opts)
	if err := t.CreateEmpty(); err != nil {
		store.Close()
		return nil, err
	}
	return t, nil
}

// Open loads an existing tree from pager.
func Open(pager Pager, ks types.KeyStructure, opts Options) (*BPlusTree, error) {
	store, err := OpenPageStore(pager, ks, opts.storeOptions())
	if err != nil {
		return nil, err
	}
	if store.Root() == types.NullPointer {
		store.Close()
		return nil, errors.New("index file has no root page")
	}
	return newTree(store, opts), nil
}

// CreateFile creates (or truncates) the index file at path and initializes an
// empty tree in it.
func CreateFile(path string, ks types.KeyStructure, opts Options) (*BPlusTree, error) {
	pager, err := CreateOnDiskPager(path)
	if err != nil {
		return nil, err
	}
	t, err := Create(pager, ks, opts)
	if err != nil {
		pager.Close()
		return nil, errors.Wrapf(err, "failed to create index %s", path)
	}
	return t, nil
}

// OpenFile opens the index file at path. ks may be nil to accept the key
// structure recorded in the file.
func OpenFile(path string, ks types.KeyStructure, opts Options) (*BPlusTree, error) {
	pager, err := NewOnDiskPager(path)
	if err != nil {
		return nil, err
	}
	t, err := Open(pager, ks, opts)
	if err != nil {
		pager.Close()
		return nil, errors.Wrapf(err, "failed to open index %s", path)
	}
	return t, nil
}

func newTree(store *PageStore, opts Options) *BPlusTree {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BPlusTree{
		store:  store,
		ks:     store.KeyStructure(),
		degree: store.Degree(),
		sync:   opts.SyncWrites,
		logger: logger,
	}
}

// CreateEmpty writes a single empty leaf as the root page.
func (t *BPlusTree) CreateEmpty() error {
	root := t.store.Root()
	if root == types.NullPointer {
		addr, err := t.store.Allocate()
		if err != nil {
			return err
		}
		root = addr
	}
	leaf := NewNode(true, t.degree)
	leaf.addr = root
	if err := t.store.WriteNode(leaf); err != nil {
		return err
	}
	if err := t.store.SetRoot(root); err != nil {
		return err
	}
	return t.commit()
}

func (t *BPlusTree) KeyStructure() types.KeyStructure { return t.ks }
func (t *BPlusTree) Degree() int                      { return t.degree }
func (t *BPlusTree) Store() *PageStore                { return t.store }
func (t *BPlusTree) Root() int32                      { return t.store.Root() }

// Find returns the row pointer stored for key.
func (t *BPlusTree) Find(key Key) (int32, error) {
	if err := t.checkKey(key); err != nil {
		return types.NullPointer, err
	}
	_, leaf, err := t.descend(key)
	if err != nil {
		return types.NullPointer, err
	}
	return leaf.ValueOf(key)
}

// Contains reports whether key is in the tree.
func (t *BPlusTree) Contains(key Key) (bool, error) {
	_, err := t.Find(key)
	if errors.Is(err, types.ErrKeyNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Len counts the keys by walking the leaf chain.
func (t *BPlusTree) Len() (int, error) {
	n := 0
	it := t.SeekFirst()
	for ; it.Valid(); it.Next() {
		n++
	}
	return n, it.Err()
}

// Height returns the number of levels; a lone root leaf has height 1.
func (t *BPlusTree) Height() (int, error) {
	h := 1
	n, err := t.store.ReadNode(t.store.Root())
	if err != nil {
		return 0, err
	}
	for !n.leaf {
		if n, err = t.store.ReadNode(n.pointers[0]); err != nil {
			return 0, err
		}
		h++
	}
	return h, nil
}

func (t *BPlusTree) checkKey(key Key) error {
	if key.IsZero() || !key.Structure().Equal(t.ks) {
		return errors.Wrapf(types.ErrTypeMismatch, "key %v does not match index structure %v", key, t.ks)
	}
	return nil
}

func (t *BPlusTree) commit() error {
	if !t.sync {
		return nil
	}
	return t.store.Sync()
}

func (t *BPlusTree) Sync() error {
	return t.store.Sync()
}

// Close flushes and releases the index file.
func (t *BPlusTree) Close() error {
	return t.store.Close()
}
