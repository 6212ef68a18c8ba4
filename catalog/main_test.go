package catalog

import (
	"os"
	"path/filepath"
	"testing"

	"TinyRDB/types"

	"github.com/pkg/errors"
	"github.com/stvp/assert"
)

func usersSchema() types.TableSchema {
	return types.TableSchema{
		TableName: "users",
		Columns: []types.ColumnDef{
			{Name: "id", Type: "INT", IsPrimaryKey: true},
			{Name: "email", Type: "CHAR(32)", IsUnique: true},
			{Name: "city", Type: "CHAR(16)"},
			{Name: "score", Type: "FLOAT"},
		},
		Indexes: []types.IndexDef{
			{Name: "by_city", Fields: []string{"city"}},
		},
	}
}

func TestRegisterTableDerivesIndexes(t *testing.T) {
	cm, err := NewCatalogManager(t.TempDir(), nil)
	assert.Nil(t, err)

	schema, err := cm.RegisterTable("shop", usersSchema())
	assert.Nil(t, err)
	assert.Equal(t, len(schema.Indexes), 3)
	assert.Equal(t, schema.Indexes[0], types.IndexDef{Name: PrimaryIndex, Fields: []string{"id"}, Unique: true})
	assert.Equal(t, schema.Indexes[1].Name, "email_unique")
	assert.Equal(t, schema.Indexes[2].Name, "by_city")

	unique, err := UniqueIndexes(cm, "shop", "users")
	assert.Nil(t, err)
	assert.Equal(t, len(unique), 2)
	nonUnique, err := NonUniqueIndexes(cm, "shop", "users")
	assert.Nil(t, err)
	assert.Equal(t, len(nonUnique), 1)
	assert.Equal(t, nonUnique[0].Name, "by_city")

	_, err = cm.RegisterTable("shop", usersSchema())
	assert.True(t, errors.Is(err, ErrTableExists))
}

func TestProviderLookups(t *testing.T) {
	root := t.TempDir()
	cm, err := NewCatalogManager(root, nil)
	assert.Nil(t, err)
	_, err = cm.RegisterTable("shop", usersSchema())
	assert.Nil(t, err)

	names, err := cm.FieldNames("shop", "users")
	assert.Nil(t, err)
	assert.Equal(t, names, []string{"id", "email", "city", "score"})

	ks, err := cm.IndexFieldTypes("shop", "users", "by_city")
	assert.Nil(t, err)
	assert.True(t, ks.Equal(types.KeyStructure{types.CharType(16)}))

	path, err := cm.IndexFilePath("shop", "users", "primary")
	assert.Nil(t, err)
	assert.Equal(t, path, filepath.Join(root, "shop", "indexes", "users_primary.idx"))

	_, err = cm.Index("shop", "users", "nope")
	assert.True(t, errors.Is(err, ErrIndexNotFound))
	_, err = cm.FieldNames("shop", "orders")
	assert.True(t, errors.Is(err, ErrTableNotFound))
	_, err = cm.FieldNames("", "users")
	assert.True(t, errors.Is(err, ErrNoDatabase))
}

func TestSchemasSurviveRestart(t *testing.T) {
	root := t.TempDir()
	cm, err := NewCatalogManager(root, nil)
	assert.Nil(t, err)
	_, err = cm.RegisterTable("shop", usersSchema())
	assert.Nil(t, err)
	_, err = cm.RegisterTable("shop", types.TableSchema{
		TableName: "orders",
		Columns:   []types.ColumnDef{{Name: "id", Type: "INT", IsPrimaryKey: true}},
	})
	assert.Nil(t, err)

	fresh, err := NewCatalogManager(root, nil)
	assert.Nil(t, err)
	tables, err := fresh.LoadAllTableSchemas("shop")
	assert.Nil(t, err)
	assert.Equal(t, tables, []string{"orders", "users"})

	def, err := fresh.Index("shop", "users", "email_unique")
	assert.Nil(t, err)
	assert.True(t, def.Unique)
	assert.Equal(t, def.Fields, []string{"email"})
}

func TestUnregisterTableRemovesFiles(t *testing.T) {
	cm, err := NewCatalogManager(t.TempDir(), nil)
	assert.Nil(t, err)
	_, err = cm.RegisterTable("shop", usersSchema())
	assert.Nil(t, err)

	path, err := cm.IndexFilePath("shop", "users", "by_city")
	assert.Nil(t, err)
	assert.Nil(t, os.WriteFile(path, []byte("x"), 0644))

	assert.Nil(t, cm.UnregisterTable("shop", "users"))
	assert.True(t, !cm.TableExists("shop", "users"))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestRegisterTableValidation(t *testing.T) {
	cm, err := NewCatalogManager(t.TempDir(), nil)
	assert.Nil(t, err)

	bad := []types.TableSchema{
		{TableName: "", Columns: []types.ColumnDef{{Name: "a", Type: "INT"}}},
		{TableName: "t"},
		{TableName: "t", Columns: []types.ColumnDef{{Name: "a", Type: "BLOB"}}},
		{TableName: "t", Columns: []types.ColumnDef{{Name: "a", Type: "INT"}, {Name: "A", Type: "INT"}}},
		{TableName: "t", Columns: []types.ColumnDef{{Name: "a", Type: "INT"}},
			Indexes: []types.IndexDef{{Name: "i", Fields: []string{"b"}}}},
		{TableName: "t", Columns: []types.ColumnDef{{Name: "a", Type: "INT"}},
			Indexes: []types.IndexDef{{Name: "i", Fields: []string{"a"}}, {Name: "i", Fields: []string{"a"}}}},
	}
	for i, schema := range bad {
		_, err := cm.RegisterTable("db", schema)
		assert.True(t, err != nil, "schema", i)
	}
}
