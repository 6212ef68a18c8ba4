package catalog

import (
	"strings"

	"TinyRDB/types"

	"github.com/pkg/errors"
)

// deriveIndexes adds the primary-key index and one unique index per
// IsUnique column unless an index of that name is already declared.
func deriveIndexes(schema types.TableSchema) types.TableSchema {
	declared := make(map[string]bool, len(schema.Indexes))
	for _, def := range schema.Indexes {
		declared[strings.ToLower(def.Name)] = true
	}

	var derived []types.IndexDef
	var pk []string
	for _, c := range schema.Columns {
		if c.IsPrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	if len(pk) > 0 && !declared[PrimaryIndex] {
		derived = append(derived, types.IndexDef{Name: PrimaryIndex, Fields: pk, Unique: true})
	}
	for _, c := range schema.Columns {
		name := strings.ToLower(c.Name) + uniqueSuffix
		if c.IsUnique && !c.IsPrimaryKey && !declared[name] {
			derived = append(derived, types.IndexDef{Name: name, Fields: []string{c.Name}, Unique: true})
		}
	}

	schema.Indexes = append(derived, schema.Indexes...)
	return schema
}

func validateSchema(schema types.TableSchema) error {
	if schema.TableName == "" {
		return errors.New("table name is empty")
	}
	if len(schema.Columns) == 0 {
		return errors.Errorf("table %s has no columns", schema.TableName)
	}

	seen := make(map[string]bool, len(schema.Columns))
	for _, c := range schema.Columns {
		lower := strings.ToLower(c.Name)
		if c.Name == "" || seen[lower] {
			return errors.Errorf("table %s: empty or duplicate column name %q", schema.TableName, c.Name)
		}
		seen[lower] = true
		if _, err := types.ParseFieldType(c.Type); err != nil {
			return errors.Wrapf(err, "table %s column %s", schema.TableName, c.Name)
		}
	}

	names := make(map[string]bool, len(schema.Indexes))
	for _, def := range schema.Indexes {
		lower := strings.ToLower(def.Name)
		if def.Name == "" || names[lower] {
			return errors.Errorf("table %s: empty or duplicate index name %q", schema.TableName, def.Name)
		}
		names[lower] = true
		if _, err := keyStructureOf(schema, def); err != nil {
			return err
		}
	}
	return nil
}

// keyStructureOf resolves the field types of an index against the table columns.
func keyStructureOf(schema types.TableSchema, def types.IndexDef) (types.KeyStructure, error) {
	if len(def.Fields) == 0 {
		return nil, errors.Errorf("index %s has no fields", def.Name)
	}
	ks := make(types.KeyStructure, len(def.Fields))
	for i, f := range def.Fields {
		col := schema.ColumnIndex(f)
		if col < 0 {
			return nil, errors.Errorf("index %s: table %s has no column %s", def.Name, schema.TableName, f)
		}
		ft, err := types.ParseFieldType(schema.Columns[col].Type)
		if err != nil {
			return nil, err
		}
		ks[i] = ft
	}
	return ks, nil
}
