package index

import (
	"strings"
	"sync"

	"TinyRDB/catalog"
	"TinyRDB/config"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Registry keeps one open Manager per index so that every caller of an
// index shares the same file handle. Managers stay open until closed through
// the registry.
//
// Each manager serializes its own tree. Multi-index row changes on one table
// are serialized with the lock returned by TableLock.
type Registry struct {
	provider catalog.Provider
	cfg      config.Config
	logger   *zap.Logger

	mu       sync.RWMutex
	managers map[Ref]Manager
	tables   map[tableRef]*sync.Mutex
}

type tableRef struct{ db, table string }

func NewRegistry(p catalog.Provider, cfg config.Config, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		provider: p,
		cfg:      cfg,
		logger:   logger,
		managers: make(map[Ref]Manager),
		tables:   make(map[tableRef]*sync.Mutex),
	}
}

func (r *Registry) Provider() catalog.Provider { return r.provider }

// GetOrOpen returns the open manager of ref, opening it on first use.
func (r *Registry) GetOrOpen(ref Ref) (Manager, error) {
	r.mu.RLock()
	m, ok := r.managers[ref]
	r.mu.RUnlock()
	if ok {
		return m, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// another caller may have opened it while we waited for the lock
	if m, ok := r.managers[ref]; ok {
		return m, nil
	}
	m, err := Open(r.provider, ref, r.cfg, r.logger)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open index %s", ref)
	}
	r.managers[ref] = m
	return m, nil
}

// TableLock returns the row-change lock of db.table. Every caller gets the
// same mutex for the same table for the lifetime of the registry.
func (r *Registry) TableLock(db, table string) *sync.Mutex {
	key := tableRef{db: db, table: strings.ToLower(table)}
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.tables[key]
	if !ok {
		l = new(sync.Mutex)
		r.tables[key] = l
	}
	return l
}

// OpenTable opens every index declared on a table, unique indexes first.
func (r *Registry) OpenTable(db, table string) ([]Manager, error) {
	unique, err := catalog.UniqueIndexes(r.provider, db, table)
	if err != nil {
		return nil, err
	}
	nonUnique, err := catalog.NonUniqueIndexes(r.provider, db, table)
	if err != nil {
		return nil, err
	}

	var out []Manager
	for _, def := range append(unique, nonUnique...) {
		m, err := r.GetOrOpen(Ref{DB: db, Table: table, Index: def.Name})
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// CloseIndex closes one index and forgets it. Closing an index that is not
// open is a no-op.
func (r *Registry) CloseIndex(ref Ref) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.managers[ref]
	if !ok {
		return nil
	}
	delete(r.managers, ref)
	return m.Close()
}

// CloseTable closes every open index of a table.
func (r *Registry) CloseTable(db, table string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for ref, m := range r.managers {
		if ref.DB == db && ref.Table == table {
			err = multierr.Append(err, m.Close())
			delete(r.managers, ref)
		}
	}
	return err
}

// CloseAll closes every open index. All files are released even when some
// close fails; the failures are combined.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for ref, m := range r.managers {
		if cerr := m.Close(); cerr != nil {
			r.logger.Error("failed to close index", zap.Stringer("index", ref), zap.Error(cerr))
			err = multierr.Append(err, cerr)
		}
		delete(r.managers, ref)
	}
	return err
}

// Len returns the number of open indexes.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.managers)
}
