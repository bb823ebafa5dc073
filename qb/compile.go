package qb

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/ardent/dialect"
	"github.com/syssam/ardent/dialect/sql"
)

// CompiledSelect returns the SELECT built from the pending state with its
// arguments interpolated, without running it. The pending state is kept
// unless reset is true.
func (b *Builder) CompiledSelect(table string, reset bool) (string, error) {
	if reset {
		defer b.Reset()
	}
	return b.compile(b.selector(table, true))
}

// CompiledInsert returns the INSERT built from the pending Set assignments.
func (b *Builder) CompiledInsert(table string, reset bool) (string, error) {
	if reset {
		defer b.Reset()
	}
	return b.InsertString(table, b.sets)
}

// CompiledUpdate returns the UPDATE built from the pending Set assignments
// and conditions.
func (b *Builder) CompiledUpdate(table string, reset bool) (string, error) {
	if reset {
		defer b.Reset()
	}
	if len(b.sets) == 0 {
		return "", errors.New("qb: compile update: no data to set")
	}
	u := sql.Dialect(b.dialect).Update(b.table(table))
	for _, c := range b.sets.Columns() {
		u.Set(c, b.sets[c])
	}
	for _, w := range b.wheres {
		if w.or {
			u.OrWhere(w.p)
		} else {
			u.Where(w.p)
		}
	}
	if b.limit > 0 {
		u.Limit(b.limit)
	}
	return b.compile(u)
}

// CompiledDelete returns the DELETE built from the pending conditions.
func (b *Builder) CompiledDelete(table string, reset bool) (string, error) {
	if reset {
		defer b.Reset()
	}
	return b.compile(b.deleter(table))
}

// InsertString returns an INSERT statement for row with its values escaped.
// The pending state is not used.
func (b *Builder) InsertString(table string, row Row) (string, error) {
	if len(row) == 0 {
		return "", errors.New("qb: insert string: no data to insert")
	}
	columns := row.Columns()
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = row[c]
	}
	return b.compile(sql.Dialect(b.dialect).Insert(b.table(table)).Columns(columns...).Values(values...))
}

// UpdateString returns an UPDATE statement for row and where with its
// values escaped. The pending state is not used.
func (b *Builder) UpdateString(table string, row Row, where Filter) (string, error) {
	if len(row) == 0 {
		return "", errors.New("qb: update string: no data to set")
	}
	u := sql.Dialect(b.dialect).Update(b.table(table))
	for _, c := range row.Columns() {
		u.Set(c, row[c])
	}
	if where != nil {
		for _, p := range where.predicates() {
			u.Where(p)
		}
	}
	return b.compile(u)
}

func (b *Builder) compile(stmt statement) (string, error) {
	query, args := stmt.Query()
	if err := stmt.Err(); err != nil {
		return "", fmt.Errorf("qb: compile: %w", err)
	}
	return b.interpolate(query, args), nil
}

// interpolate replaces the placeholders of query with the escaped args.
// Placeholders inside quoted strings and identifiers are left untouched.
func (b *Builder) interpolate(query string, args []any) string {
	if len(args) == 0 {
		return query
	}
	var (
		sb    strings.Builder
		n     int
		quote byte
	)
	for i := 0; i < len(query); i++ {
		c := query[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			sb.WriteByte(c)
		case c == '\'' || c == '"' || c == '`':
			quote = c
			sb.WriteByte(c)
		case c == '?' && b.dialect != dialect.Postgres && n < len(args):
			sb.WriteString(b.Escape(args[n]))
			n++
		case c == '$' && b.dialect == dialect.Postgres && i+1 < len(query) && isDigit(query[i+1]):
			j := i + 1
			for j < len(query) && isDigit(query[j]) {
				j++
			}
			if idx, _ := strconv.Atoi(query[i+1 : j]); idx >= 1 && idx <= len(args) {
				sb.WriteString(b.Escape(args[idx-1]))
			} else {
				sb.WriteString(query[i:j])
			}
			i = j - 1
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

// Escape returns v as a SQL literal: strings are quoted and escaped, nil is
// NULL and booleans follow the dialect.
func (b *Builder) Escape(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case bool:
		switch {
		case b.dialect == dialect.Postgres && v:
			return "TRUE"
		case b.dialect == dialect.Postgres:
			return "FALSE"
		case v:
			return "1"
		default:
			return "0"
		}
	case string:
		return "'" + b.EscapeStr(v) + "'"
	case []byte:
		return "'" + b.EscapeStr(string(v)) + "'"
	case time.Time:
		return "'" + v.Format(time.DateTime) + "'"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(v)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case driver.Valuer:
		val, err := v.Value()
		if err != nil {
			return "NULL"
		}
		return b.Escape(val)
	default:
		return "'" + b.EscapeStr(fmt.Sprint(v)) + "'"
	}
}

var mysqlEscaper = strings.NewReplacer(
	`\`, `\\`,
	`'`, `\'`,
	`"`, `\"`,
	"\x00", `\0`,
	"\n", `\n`,
	"\r", `\r`,
	"\x1a", `\Z`,
)

// EscapeStr escapes s for use inside a quoted SQL string, without adding
// the quotes.
func (b *Builder) EscapeStr(s string) string {
	if b.dialect == dialect.MySQL {
		return mysqlEscaper.Replace(s)
	}
	return strings.ReplaceAll(s, "'", "''")
}

// EscapeLikeStr is like EscapeStr, and also escapes the LIKE wildcards.
func (b *Builder) EscapeLikeStr(s string) string {
	return b.EscapeStr(sql.EscapeLike(s))
}
