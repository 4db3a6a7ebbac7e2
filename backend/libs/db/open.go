package db

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// Supported database/sql driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "pgx"
)

// Open dispatches to the driver specific opener.
func Open(driver, dsn string) (*sql.DB, error) {
	switch driver {
	case DriverSQLite:
		return OpenSQLite(dsn)
	case DriverPostgres:
		return OpenPostgres(dsn)
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", driver)
	}
}

// Known reports whether driver can be passed to Open.
func Known(driver string) bool {
	return driver == DriverSQLite || driver == DriverPostgres
}

// Rebind rewrites `?` placeholders into the positional `$n` form Postgres expects.
// Queries for SQLite are returned untouched. Placeholders inside quoted literals
// are left alone.
func Rebind(driver, query string) string {
	if driver != DriverPostgres {
		return query
	}

	var (
		b      strings.Builder
		n      int
		quoted bool
	)
	b.Grow(len(query) + 8)
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted:
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
