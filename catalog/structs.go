package catalog

import (
	"sync"

	"TinyRDB/types"

	"go.uber.org/zap"
)

// CatalogManager is a JSON-backed Provider. Each table schema is kept in
// <dbRoot>/<db>/tables/<table>_schema.json and its index files under
// <dbRoot>/<db>/indexes/.
type CatalogManager struct {
	dbRoot       string
	mu           sync.RWMutex
	tableSchemas map[string]types.TableSchema // "<db>/<table>" -> schema
	logger       *zap.Logger
}

const (
	tablesDir    = "tables"
	indexesDir   = "indexes"
	schemaSuffix = "_schema.json"
	indexFileExt = ".idx"
	// PrimaryIndex names the index derived from the primary key columns.
	PrimaryIndex = "primary"
	uniqueSuffix = "_unique"
)
