package repository

import (
	"strconv"
	"strings"

	"github.com/pressly/goose/v3"
)

// Database driver names as registered with database/sql.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"  // modernc.org/sqlite
	DriverSQLite3  = "sqlite3" // github.com/mattn/go-sqlite3
	DriverPostgres = "postgres"
)

type dialect struct {
	driver string
	goose  goose.Dialect
	// numbered placeholders ($1, $2) instead of ?
	numbered bool
}

func dialectFor(driver string) (dialect, bool) {
	switch driver {
	case DriverSQLite, DriverSQLite3:
		return dialect{driver: driver, goose: goose.DialectSQLite3}, true
	case DriverPostgres:
		return dialect{driver: driver, goose: goose.DialectPostgres, numbered: true}, true
	default:
		return dialect{}, false
	}
}

func (d dialect) sqlite() bool { return !d.numbered }

// rebind rewrites ? placeholders for the dialect. Queries in this package
// never contain a literal question mark.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
