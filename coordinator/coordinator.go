// Package coordinator keeps every index of a table consistent with the rows
// of the table: each row insert or delete is fanned out to all of the
// table's index managers.
package coordinator

import (
	"sync"

	"TinyRDB/catalog"
	"TinyRDB/config"
	"TinyRDB/index"
	"TinyRDB/types"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// slot is one index of the table and where its fields sit in a row.
type slot struct {
	manager   index.Manager
	positions []int
}

// Coordinator drives the unique and non-unique indexes of one table.
// Insert and Delete hold the table lock, which every coordinator built on the
// same registry shares, so row changes to one table never interleave.
type Coordinator struct {
	db     string
	table  string
	fields []string
	slots  []slot // unique indexes first

	registry     *index.Registry
	ownsRegistry bool
	logger       *zap.Logger

	tableMu *sync.Mutex
	mu      sync.Mutex // guards closed
	closed  bool
}

// Open opens every index declared on db.table with a private registry that
// is closed together with the coordinator.
func Open(p catalog.Provider, db, table string, cfg config.Config, logger *zap.Logger) (*Coordinator, error) {
	reg := index.NewRegistry(p, cfg, logger)
	c, err := New(reg, db, table, logger)
	if err != nil {
		return nil, multierr.Append(err, reg.CloseAll())
	}
	c.ownsRegistry = true
	return c, nil
}

// New builds a coordinator over the managers of reg. The registry stays
// owned by the caller.
func New(reg *index.Registry, db, table string, logger *zap.Logger) (*Coordinator, error) {
	fields, err := reg.Provider().FieldNames(db, table)
	if err != nil {
		return nil, err
	}
	managers, err := reg.OpenTable(db, table)
	if err != nil {
		return nil, err
	}
	c, err := newCoordinator(db, table, fields, managers, logger)
	if err != nil {
		return nil, err
	}
	c.registry = reg
	c.tableMu = reg.TableLock(db, table)
	return c, nil
}

func newCoordinator(db, table string, fields []string, managers []index.Manager, logger *zap.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Coordinator{
		db:     db,
		table:  table,
		fields:  fields,
		logger:  logger.Named("coordinator").With(zap.String("table", db+"."+table)),
		tableMu: new(sync.Mutex),
	}
	for _, m := range managers {
		pos, err := index.Positions(fields, m.Def().Fields)
		if err != nil {
			return nil, errors.Wrapf(err, "index %s", m.Ref())
		}
		c.slots = append(c.slots, slot{manager: m, positions: pos})
	}
	return c, nil
}

// Managers returns the index managers, unique indexes first.
func (c *Coordinator) Managers() []index.Manager {
	out := make([]index.Manager, len(c.slots))
	for i, s := range c.slots {
		out[i] = s.manager
	}
	return out
}

func (c *Coordinator) project(row types.Row) ([][]string, error) {
	if len(row) != len(c.fields) {
		return nil, errors.Errorf("row has %d fields, table %s.%s has %d", len(row), c.db, c.table, len(c.fields))
	}
	keys := make([][]string, len(c.slots))
	for i, s := range c.slots {
		values, err := index.Project(row, s.positions)
		if err != nil {
			return nil, err
		}
		keys[i] = values
	}
	return keys, nil
}

// lock takes the table lock unless the coordinator is closed.
func (c *Coordinator) lock() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("coordinator is closed")
	}
	c.tableMu.Lock()
	return nil
}

// Insert adds the row at ptr to every index.
//
// All indexes are checked before any is modified, so a unique violation or
// a value that does not convert leaves every index untouched. If an index
// still fails while the entries are applied, the entries already added are
// removed again before the error is returned.
func (c *Coordinator) Insert(row types.Row, ptr types.RowPointer) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.tableMu.Unlock()

	keys, err := c.project(row)
	if err != nil {
		return err
	}
	for i, s := range c.slots {
		if err := s.manager.CheckInsert(keys[i], ptr); err != nil {
			c.logger.Debug("insert rejected",
				zap.Stringer("index", s.manager.Ref()),
				zap.Int32("row", ptr),
				zap.Error(err))
			return err
		}
	}

	for i, s := range c.slots {
		if err := s.manager.Insert(keys[i], ptr); err != nil {
			c.logger.Error("index insert failed, undoing row",
				zap.Stringer("index", s.manager.Ref()),
				zap.Int32("row", ptr),
				zap.Error(err))
			return multierr.Append(err, c.undo(keys[:i], ptr))
		}
	}
	return nil
}

// undo removes the entries of ptr from the first len(keys) indexes, last first.
func (c *Coordinator) undo(keys [][]string, ptr types.RowPointer) error {
	var err error
	for i := len(keys) - 1; i >= 0; i-- {
		m := c.slots[i].manager
		if rerr := m.Remove(keys[i], ptr); rerr != nil {
			c.logger.Error("failed to undo index insert",
				zap.Stringer("index", m.Ref()),
				zap.Int32("row", ptr),
				zap.Error(rerr))
			err = multierr.Append(err, errors.Wrapf(rerr, "undo %s", m.Ref()))
		}
	}
	return err
}

// Delete removes the row at ptr from every index. A failing index does not
// stop the others; all failures are returned combined.
func (c *Coordinator) Delete(row types.Row, ptr types.RowPointer) error {
	if err := c.lock(); err != nil {
		return err
	}
	defer c.tableMu.Unlock()

	keys, err := c.project(row)
	if err != nil {
		return err
	}
	for i, s := range c.slots {
		if rerr := s.manager.Remove(keys[i], ptr); rerr != nil {
			c.logger.Warn("index delete failed",
				zap.Stringer("index", s.manager.Ref()),
				zap.Int32("row", ptr),
				zap.Error(rerr))
			err = multierr.Append(err, rerr)
		}
	}
	return err
}

// Close releases the index files when the coordinator owns its registry.
// Closing twice is a no-op.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	if c.ownsRegistry {
		// wait for a row change in flight
		c.tableMu.Lock()
		defer c.tableMu.Unlock()
		return c.registry.CloseAll()
	}
	return nil
}
