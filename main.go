package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"TinyRDB/catalog"
	"TinyRDB/config"
	"TinyRDB/coordinator"
	"TinyRDB/index"
	"TinyRDB/logging"
	"TinyRDB/types"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const help = `commands:
  use <db> <table>                  open the indexes of a table
  tables <db>                       list tables
  insert <ptr> <v1,v2,...>          index a row under pointer ptr
  delete <ptr> <v1,v2,...>          remove a row from every index
  find <index> <v1,v2,...>          rows whose index fields equal the values
  range <index> <lo> <hi>           rows with lo <= key <= hi ("-" for open)
  check <index>                     verify tree invariants
  exit`

type shell struct {
	cm     *catalog.CatalogManager
	reg    *index.Registry
	logger *zap.Logger

	db, table string
	coord     *coordinator.Coordinator
}

func main() {
	configPath := flag.String("config", "", "engine config file (JSON)")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	logger := logging.Must(cfg)
	defer logger.Sync()

	cm, err := catalog.NewCatalogManager(cfg.DataDir, logger.Named("catalog"))
	if err != nil {
		log.Fatal(err)
	}
	sh := &shell{cm: cm, reg: index.NewRegistry(cm, cfg, logger), logger: logger}
	defer sh.close()

	fmt.Println(help)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("idx> ")

		if !scanner.Scan() { // Ctrl+D pressed
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(line, "exit") {
			break
		}
		if line == "" {
			continue
		}
		if err := sh.exec(strings.Fields(line)); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}

func (sh *shell) close() {
	if sh.coord != nil {
		sh.coord.Close()
	}
	if err := sh.reg.CloseAll(); err != nil {
		sh.logger.Warn("failed to close indexes", zap.Error(err))
	}
}

func (sh *shell) exec(args []string) error {
	switch cmd := strings.ToLower(args[0]); {
	case cmd == "help":
		fmt.Println(help)
		return nil
	case cmd == "use" && len(args) == 3:
		return sh.use(args[1], args[2])
	case cmd == "tables" && len(args) == 2:
		names, err := sh.cm.LoadAllTableSchemas(args[1])
		if err != nil {
			return err
		}
		fmt.Println(strings.Join(names, "\n"))
		return nil
	case (cmd == "insert" || cmd == "delete") && len(args) == 3:
		if sh.coord == nil {
			return errors.New("no table selected, run: use <db> <table>")
		}
		ptr, err := strconv.ParseInt(args[1], 10, 32)
		if err != nil {
			return errors.Errorf("invalid row pointer %q", args[1])
		}
		row := types.Row(strings.Split(args[2], ","))
		if cmd == "insert" {
			err = sh.coord.Insert(row, types.RowPointer(ptr))
		} else {
			err = sh.coord.Delete(row, types.RowPointer(ptr))
		}
		if err == nil {
			fmt.Println("ok")
		}
		return err
	case cmd == "find" && len(args) == 3:
		m, err := sh.index(args[1])
		if err != nil {
			return err
		}
		rs, err := m.Lookup(strings.Split(args[2], ","))
		if err != nil {
			return err
		}
		printResults(rs)
		return nil
	case cmd == "range" && len(args) == 4:
		m, err := sh.index(args[1])
		if err != nil {
			return err
		}
		var rs *index.ResultSet
		switch lo, hi := args[2], args[3]; {
		case lo == "-" && hi == "-":
			return errors.New("range needs at least one bound")
		case lo == "-":
			rs, err = m.LesserQuery(hi, true)
		case hi == "-":
			rs, err = m.GreaterQuery(lo, true)
		default:
			rs, err = m.RangeQuery(lo, hi, true, true)
		}
		if err != nil {
			return err
		}
		printResults(rs)
		return nil
	case cmd == "check" && len(args) == 2:
		m, err := sh.index(args[1])
		if err != nil {
			return err
		}
		return checkIndex(os.Stdout, m)
	}
	return errors.Errorf("unknown command %q, type help", strings.Join(args, " "))
}

func (sh *shell) use(db, table string) error {
	c, err := coordinator.New(sh.reg, db, table, sh.logger)
	if err != nil {
		return err
	}
	if sh.coord != nil {
		sh.coord.Close()
	}
	sh.db, sh.table, sh.coord = db, table, c
	for _, m := range c.Managers() {
		fmt.Printf("  %s %v unique=%v\n", m.Ref().Index, m.Def().Fields, m.IsUnique())
	}
	return nil
}

func (sh *shell) index(name string) (index.Manager, error) {
	if sh.table == "" {
		return nil, errors.New("no table selected, run: use <db> <table>")
	}
	return sh.reg.GetOrOpen(index.Ref{DB: sh.db, Table: sh.table, Index: name})
}

// checkIndex verifies the tree of m and prints its entry count.
func checkIndex(w io.Writer, m index.Manager) error {
	if err := m.Check(); err != nil {
		return err
	}
	n, err := m.Len()
	if err != nil {
		return errors.Wrapf(err, "count entries of %s", m.Ref())
	}
	fmt.Fprintf(w, "ok (%d entries)\n", n)
	return nil
}

func printResults(rs *index.ResultSet) {
	for _, r := range rs.Results() {
		fmt.Printf("  %s -> %d\n", r.Key, r.Pointer)
	}
	fmt.Printf("(%d rows)\n", rs.Len())
}
