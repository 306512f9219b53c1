package storage

import (
	"fmt"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

// Dialect names a supported SQL backend. Its value is also the
// database/sql driver name.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

func ParseDialect(s string) (Dialect, error) {
	switch Dialect(strings.ToLower(strings.TrimSpace(s))) {
	case DialectSQLite:
		return DialectSQLite, nil
	case DialectPostgres:
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unsupported database dialect %q", s)
}

// rebind rewrites ? placeholders to $1..$n for PostgreSQL. Queries in this
// package never contain a literal question mark.
func (d Dialect) rebind(query string) string {
	if d != DialectPostgres {
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

// monthExpr renders the date column as "YYYY-MM".
func (d Dialect) monthExpr() string {
	if d == DialectPostgres {
		return "to_char(date, 'YYYY-MM')"
	}
	return "substr(date, 1, 7)"
}

// readOnlyTx reports whether the driver honours sql.TxOptions.ReadOnly.
func (d Dialect) readOnlyTx() bool {
	return d == DialectPostgres
}

var sortColumns = map[string]string{
	"date":     "date",
	"type":     "kind",
	"category": "category",
	"amount":   "amount_cents",
}

// orderBy maps a whitelisted sort key to a fixed ORDER BY clause. Ties are
// broken by id in the same direction.
func orderBy(k core.SortKey) string {
	col, ok := sortColumns[k.Field()]
	if !ok {
		k = core.DefaultSort
		col = sortColumns[k.Field()]
	}
	dir := "ASC"
	if k.Descending() {
		dir = "DESC"
	}
	return "ORDER BY " + col + " " + dir + ", id " + dir
}
