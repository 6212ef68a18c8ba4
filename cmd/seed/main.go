// Seed program: creates database "demp" with three tables, indexes their rows
// through the index coordinator and runs a few index queries.
// Run: go run ./cmd/seed [-config engine.json] [-csv students.csv]
// Then inspect: databases/demp/tables/*_schema.json and databases/demp/indexes/*.idx.
package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"TinyRDB/catalog"
	"TinyRDB/config"
	"TinyRDB/coordinator"
	"TinyRDB/index"
	"TinyRDB/logging"
	"TinyRDB/types"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const dbName = "demp"

var tables = []types.TableSchema{
	{
		TableName: "students",
		Columns: []types.ColumnDef{
			{Name: "id", Type: "CHAR(8)", IsPrimaryKey: true},
			{Name: "name", Type: "CHAR(32)"},
			{Name: "age", Type: "INT"},
			{Name: "email", Type: "CHAR(48)", IsUnique: true},
		},
		Indexes: []types.IndexDef{
			{Name: "by_age", Fields: []string{"age"}},
		},
	},
	{
		TableName: "courses",
		Columns: []types.ColumnDef{
			{Name: "code", Type: "CHAR(8)", IsPrimaryKey: true},
			{Name: "title", Type: "CHAR(48)"},
		},
	},
	{
		TableName: "grades",
		Columns: []types.ColumnDef{
			{Name: "id", Type: "INT", IsPrimaryKey: true},
			{Name: "course_code", Type: "CHAR(8)"},
			{Name: "grade", Type: "CHAR(2)"},
			{Name: "score", Type: "FLOAT"},
		},
		Indexes: []types.IndexDef{
			{Name: "by_course", Fields: []string{"course_code"}},
			{Name: "by_score", Fields: []string{"score"}},
		},
	},
}

var rows = map[string][]types.Row{
	"students": {
		{"S001", "Alice", "20", "alice@uni.edu"},
		{"S002", "Bob", "21", "bob@uni.edu"},
		{"S003", "Carol", "19", "carol@uni.edu"},
		{"S004", "Dan", "21", "dan@uni.edu"},
	},
	"courses": {
		{"CS101", "Intro to CS"},
		{"CS102", "Data Structures"},
	},
	"grades": {
		{"1", "CS101", "A", "93.5"},
		{"2", "CS102", "B", "84"},
		{"3", "CS101", "A", "97"},
		{"4", "CS101", "C", "71.25"},
	},
}

func main() {
	configPath := flag.String("config", "", "engine config file (JSON)")
	csvPath := flag.String("csv", "", "extra students rows as CSV: id,name,age,email")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	logger := logging.Must(cfg)
	defer logger.Sync()

	if err := os.RemoveAll(filepath.Join(cfg.DataDir, dbName)); err != nil {
		log.Fatalf("clean: %v", err)
	}
	cm, err := catalog.NewCatalogManager(cfg.DataDir, logger.Named("catalog"))
	if err != nil {
		log.Fatalf("catalog: %v", err)
	}

	if *csvPath != "" {
		extra, err := readCSV(*csvPath, len(tables[0].Columns))
		if err != nil {
			log.Fatalf("csv: %v", err)
		}
		rows["students"] = append(rows["students"], extra...)
	}

	fmt.Printf("Creating database %s in %s...\n", dbName, cfg.DataDir)
	for _, schema := range tables {
		if _, err := cm.RegisterTable(dbName, schema); err != nil {
			log.Fatalf("register %s: %v", schema.TableName, err)
		}
		if err := seedTable(cm, cfg, logger, schema.TableName, rows[schema.TableName]); err != nil {
			log.Fatalf("seed %s: %v", schema.TableName, err)
		}
	}

	if err := backfillIndex(cm, cfg, logger); err != nil {
		log.Fatalf("backfill: %v", err)
	}
	if err := runQueries(cm, cfg, logger); err != nil {
		log.Fatalf("query: %v", err)
	}

	fmt.Println("\nDone. Inspect:")
	fmt.Println("  - Schemas:", cfg.DataDir+"/"+dbName+"/tables/*_schema.json")
	fmt.Println("  - Indexes:", cfg.DataDir+"/"+dbName+"/indexes/*.idx")
}

// seedTable inserts rows through the coordinator; the row pointer is the
// row's position in the table.
func seedTable(cm *catalog.CatalogManager, cfg config.Config, logger *zap.Logger, table string, tableRows []types.Row) error {
	c, err := coordinator.Open(cm, dbName, table, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	for i, row := range tableRows {
		if err := c.Insert(row, types.RowPointer(i)); err != nil {
			fmt.Printf("  %s: row %v rejected: %v\n", table, row, err)
			continue
		}
	}
	fmt.Printf("  %s: %d rows indexed in %d indexes\n", table, len(tableRows), len(c.Managers()))

	// a duplicate primary key must be rejected without touching any index
	if len(tableRows) > 0 {
		if err := c.Insert(tableRows[0], types.RowPointer(len(tableRows))); err != nil {
			fmt.Printf("  %s: duplicate of row 0 rejected: %v\n", table, err)
		}
	}
	return nil
}

// backfillIndex declares a new index on an existing table and builds it from
// the table rows.
func backfillIndex(cm *catalog.CatalogManager, cfg config.Config, logger *zap.Logger) error {
	schema, err := cm.GetTableSchema(dbName, "courses")
	if err != nil {
		return err
	}
	if err := cm.UnregisterTable(dbName, "courses"); err != nil {
		return err
	}
	schema.Indexes = append(schema.Indexes, types.IndexDef{Name: "by_title", Fields: []string{"title"}, Unique: true})
	if _, err := cm.RegisterTable(dbName, schema); err != nil {
		return err
	}

	src := &index.MemoryRows{Fields: schema.FieldNames()}
	for i, row := range rows["courses"] {
		src.Rows = append(src.Rows, types.RowWithPointer{Pointer: types.RowPointer(i), Row: row})
	}
	for _, def := range schema.Indexes {
		ref := index.Ref{DB: dbName, Table: "courses", Index: def.Name}
		n, err := index.CreateIndex(cm, src, ref, cfg, logger)
		if err != nil {
			return err
		}
		fmt.Printf("  courses: built %s with %d entries\n", def.Name, n)
	}
	return nil
}

func runQueries(cm *catalog.CatalogManager, cfg config.Config, logger *zap.Logger) error {
	reg := index.NewRegistry(cm, cfg, logger)
	defer reg.CloseAll()

	byAge, err := reg.GetOrOpen(index.Ref{DB: dbName, Table: "students", Index: "by_age"})
	if err != nil {
		return err
	}
	rs, err := byAge.EqualityQuery("21")
	if err != nil {
		return err
	}
	fmt.Printf("\n--- students WHERE age = 21 -> rows %v\n", rs.Pointers())

	byScore, err := reg.GetOrOpen(index.Ref{DB: dbName, Table: "grades", Index: "by_score"})
	if err != nil {
		return err
	}
	if rs, err = byScore.GreaterQuery("90", true); err != nil {
		return err
	}
	fmt.Printf("--- grades WHERE score >= 90 -> rows %v\n", rs.Pointers())

	byCourse, err := reg.GetOrOpen(index.Ref{DB: dbName, Table: "grades", Index: "by_course"})
	if err != nil {
		return err
	}
	if rs, err = byCourse.EqualityQuery("CS101"); err != nil {
		return err
	}
	cs101 := rs.Bitmap()
	if rs, err = byScore.GreaterQuery("90", true); err != nil {
		return err
	}
	both := roaring.And(cs101, rs.Bitmap())
	fmt.Printf("--- grades WHERE course_code = CS101 AND score >= 90 -> rows %v\n", both.ToArray())
	return nil
}

// readCSV reads rows of exactly width fields. A first line starting with
// "id" is treated as a header.
func readCSV(path string, width int) ([]types.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = width
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	if len(records) > 0 && len(records[0]) > 0 && records[0][0] == "id" {
		records = records[1:]
	}
	out := make([]types.Row, len(records))
	for i, rec := range records {
		out[i] = types.Row(rec)
	}
	return out, nil
}
