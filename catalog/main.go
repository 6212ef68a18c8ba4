package catalog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"TinyRDB/types"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

/*
This file is the main access of the Catalog Manager.
The catalog keeps the metadata the index engine needs (table fields and
their types, declared indexes and index file paths) and persists every
table schema on disk as JSON. Schemas are loaded lazily and cached.
*/

var _ Provider = (*CatalogManager)(nil)

func NewCatalogManager(dbRoot string, logger *zap.Logger) (*CatalogManager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dbRoot, 0755); err != nil {
		return nil, errors.Wrapf(err, "failed to create catalog root %s", dbRoot)
	}
	return &CatalogManager{
		dbRoot:       dbRoot,
		tableSchemas: make(map[string]types.TableSchema),
		logger:       logger,
	}, nil
}

func (cm *CatalogManager) Root() string { return cm.dbRoot }

func schemaKey(db, table string) string { return db + "/" + strings.ToLower(table) }

// CreateDatabase creates the directory layout of a database. Existing
// databases are left untouched.
func (cm *CatalogManager) CreateDatabase(db string) error {
	if db == "" {
		return ErrNoDatabase
	}
	for _, dir := range []string{tablesDir, indexesDir} {
		if err := os.MkdirAll(filepath.Join(cm.dbRoot, db, dir), 0755); err != nil {
			return errors.Wrapf(err, "failed to create database %s", db)
		}
	}
	return nil
}

// RegisterTable validates schema, derives the primary and column-unique
// indexes and persists it.
func (cm *CatalogManager) RegisterTable(db string, schema types.TableSchema) (types.TableSchema, error) {
	if db == "" {
		return types.TableSchema{}, ErrNoDatabase
	}
	if cm.TableExists(db, schema.TableName) {
		return types.TableSchema{}, errors.Wrapf(ErrTableExists, "%s.%s", db, schema.TableName)
	}

	schema = deriveIndexes(schema)
	if err := validateSchema(schema); err != nil {
		return types.TableSchema{}, err
	}
	if err := cm.CreateDatabase(db); err != nil {
		return types.TableSchema{}, err
	}
	if err := cm.persistSchema(db, schema); err != nil {
		return types.TableSchema{}, err
	}

	cm.mu.Lock()
	cm.tableSchemas[schemaKey(db, schema.TableName)] = schema
	cm.mu.Unlock()

	cm.logger.Info("registered table",
		zap.String("db", db),
		zap.String("table", schema.TableName),
		zap.Int("columns", len(schema.Columns)),
		zap.Int("indexes", len(schema.Indexes)))
	return schema, nil
}

// UnregisterTable drops the schema file and every index file of the table.
func (cm *CatalogManager) UnregisterTable(db, table string) error {
	schema, err := cm.GetTableSchema(db, table)
	if err != nil {
		return err
	}

	for _, def := range schema.Indexes {
		path := cm.indexFilePath(db, schema.TableName, def)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "failed to delete index file %s", path)
		}
	}
	if err := os.Remove(cm.schemaPath(db, schema.TableName)); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "failed to delete schema file")
	}

	cm.mu.Lock()
	delete(cm.tableSchemas, schemaKey(db, table))
	cm.mu.Unlock()
	return nil
}

func (cm *CatalogManager) TableExists(db, table string) bool {
	_, err := cm.GetTableSchema(db, table)
	return err == nil
}

// GetTableSchema returns the schema from memory, loading it from disk on
// first use.
func (cm *CatalogManager) GetTableSchema(db, table string) (types.TableSchema, error) {
	if db == "" {
		return types.TableSchema{}, ErrNoDatabase
	}

	cm.mu.RLock()
	schema, ok := cm.tableSchemas[schemaKey(db, table)]
	cm.mu.RUnlock()
	if ok {
		return schema, nil
	}

	data, err := os.ReadFile(cm.schemaPath(db, table))
	if err != nil {
		if os.IsNotExist(err) {
			return types.TableSchema{}, errors.Wrapf(ErrTableNotFound, "%s.%s", db, table)
		}
		return types.TableSchema{}, errors.Wrapf(err, "failed to read schema of %s.%s", db, table)
	}
	if err := json.Unmarshal(data, &schema); err != nil {
		return types.TableSchema{}, errors.Wrapf(err, "failed to parse schema for table '%s'", table)
	}

	cm.mu.Lock()
	cm.tableSchemas[schemaKey(db, table)] = schema
	cm.mu.Unlock()
	return schema, nil
}

// LoadAllTableSchemas reads every schema file of db into memory and returns
// the table names in sorted order.
func (cm *CatalogManager) LoadAllTableSchemas(db string) ([]string, error) {
	if db == "" {
		return nil, ErrNoDatabase
	}
	dir := filepath.Join(cm.dbRoot, db, tablesDir)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tables directory of %s", db)
	}

	var names []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, schemaSuffix) {
			continue
		}
		schema, err := cm.GetTableSchema(db, strings.TrimSuffix(name, schemaSuffix))
		if err != nil {
			return nil, err
		}
		names = append(names, schema.TableName)
	}
	sort.Strings(names)
	return names, nil
}

func (cm *CatalogManager) FieldNames(db, table string) ([]string, error) {
	schema, err := cm.GetTableSchema(db, table)
	if err != nil {
		return nil, err
	}
	return schema.FieldNames(), nil
}

func (cm *CatalogManager) Indexes(db, table string) ([]types.IndexDef, error) {
	schema, err := cm.GetTableSchema(db, table)
	if err != nil {
		return nil, err
	}
	return append([]types.IndexDef(nil), schema.Indexes...), nil
}

func (cm *CatalogManager) Index(db, table, index string) (types.IndexDef, error) {
	schema, err := cm.GetTableSchema(db, table)
	if err != nil {
		return types.IndexDef{}, err
	}
	for _, def := range schema.Indexes {
		if strings.EqualFold(def.Name, index) {
			return def, nil
		}
	}
	return types.IndexDef{}, errors.Wrapf(ErrIndexNotFound, "%s.%s.%s", db, table, index)
}

// IndexFieldTypes returns the key structure of an index: the types of its
// fields in index order.
func (cm *CatalogManager) IndexFieldTypes(db, table, index string) (types.KeyStructure, error) {
	schema, err := cm.GetTableSchema(db, table)
	if err != nil {
		return nil, err
	}
	def, err := cm.Index(db, table, index)
	if err != nil {
		return nil, err
	}
	return keyStructureOf(schema, def)
}

func (cm *CatalogManager) IndexFilePath(db, table, index string) (string, error) {
	def, err := cm.Index(db, table, index)
	if err != nil {
		return "", err
	}
	return cm.indexFilePath(db, table, def), nil
}

func (cm *CatalogManager) indexFilePath(db, table string, def types.IndexDef) string {
	file := def.File
	if file == "" {
		file = strings.ToLower(table) + "_" + def.Name + indexFileExt
	}
	return filepath.Join(cm.dbRoot, db, indexesDir, file)
}

func (cm *CatalogManager) schemaPath(db, table string) string {
	return filepath.Join(cm.dbRoot, db, tablesDir, strings.ToLower(table)+schemaSuffix)
}

func (cm *CatalogManager) persistSchema(db string, schema types.TableSchema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(cm.schemaPath(db, schema.TableName), data, 0644); err != nil {
		return errors.Wrapf(err, "failed to write schema of %s.%s", db, schema.TableName)
	}
	return nil
}
