package sql

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/syssam/ardent/dialect"
)

// Querier wraps the basic Query method that is implemented
// by the different builders in this file.
type Querier interface {
	// Query returns the query representation of the element
	// and its arguments (if any).
	Query() (string, []any)
}

// identRe matches plain and schema-qualified identifiers.
var identRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)*$`)

// IsIdent reports whether s is a plain (optionally dotted) SQL identifier.
func IsIdent(s string) bool {
	return s != "" && len(s) <= 128 && identRe.MatchString(s)
}

// Builder is the base query builder for the sql dsl. Statement builders
// render into a fresh Builder on every call to Query, so placeholders are
// numbered consistently for dialects that use positional arguments.
type Builder struct {
	sb      strings.Builder
	dialect string
	args    []any
	errs    []error
}

// NewBuilder returns an empty Builder for the given dialect.
func NewBuilder(dialect string) *Builder {
	return &Builder{dialect: dialect}
}

// Dialect returns the dialect of the builder.
func (b *Builder) Dialect() string { return b.dialect }

// WriteString writes s to the builder.
func (b *Builder) WriteString(s string) *Builder {
	b.sb.WriteString(s)
	return b
}

// WriteByte writes c to the builder.
func (b *Builder) WriteByte(c byte) *Builder {
	b.sb.WriteByte(c)
	return b
}

// Quote wraps an identifier with the dialect quote character.
func (b *Builder) Quote(ident string) string {
	return Quote(b.dialect, ident)
}

// Quote wraps an identifier with the quote character of the given dialect.
func Quote(d, ident string) string {
	q := `"`
	if d == dialect.MySQL {
		q = "`"
	}
	return q + strings.ReplaceAll(ident, q, q+q) + q
}

// Ident writes a table or column name. Dotted identifiers are quoted part by
// part. "*" and anything that is not a plain identifier (aggregates, aliases,
// raw expressions) are written as-is.
func (b *Builder) Ident(s string) *Builder {
	switch {
	case s == "":
	case s == "*":
		b.WriteString(s)
	case IsIdent(s):
		for i, part := range strings.Split(s, ".") {
			if i > 0 {
				b.WriteByte('.')
			}
			b.WriteString(b.Quote(part))
		}
	default:
		b.WriteString(s)
	}
	return b
}

// IdentComma writes a comma separated list of identifiers.
func (b *Builder) IdentComma(names ...string) *Builder {
	for i, name := range names {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(name)
	}
	return b
}

// Arg appends an argument and writes its placeholder.
func (b *Builder) Arg(a any) *Builder {
	b.args = append(b.args, a)
	if b.dialect == dialect.Postgres {
		b.WriteString("$" + strconv.Itoa(len(b.args)))
	} else {
		b.WriteByte('?')
	}
	return b
}

// Args appends a list of arguments and writes their placeholders separated by commas.
func (b *Builder) Args(a ...any) *Builder {
	for i := range a {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Arg(a[i])
	}
	return b
}

// Raw writes a raw SQL fragment. Each "?" outside of a quoted string is
// replaced by the dialect placeholder of the next argument.
func (b *Builder) Raw(expr string, args ...any) *Builder {
	var (
		n      int
		quoted bool
	)
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		switch {
		case c == '\'':
			quoted = !quoted
			b.WriteByte(c)
		case c == '?' && !quoted && n < len(args):
			b.Arg(args[n])
			n++
		default:
			b.WriteByte(c)
		}
	}
	if n != len(args) {
		b.AddError(fmt.Errorf("dialect/sql: expression %q has %d placeholders, got %d args", expr, n, len(args)))
	}
	return b
}

// Nested wraps the output of f with parentheses.
func (b *Builder) Nested(f func(*Builder)) *Builder {
	b.WriteByte('(')
	f(b)
	b.WriteByte(')')
	return b
}

// AddError records an error that is reported by Err.
func (b *Builder) AddError(err error) *Builder {
	if err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// Err returns the errors recorded while building the statement.
func (b *Builder) Err() error {
	return errors.Join(b.errs...)
}

// String returns the accumulated SQL.
func (b *Builder) String() string {
	return b.sb.String()
}

// Query implements the Querier interface.
func (b *Builder) Query() (string, []any) {
	return b.String(), b.args
}

// DialectBuilder prefixes all root builders with the given dialect.
type DialectBuilder struct {
	dialect string
}

// Dialect creates a new DialectBuilder with the given dialect name.
func Dialect(name string) *DialectBuilder {
	return &DialectBuilder{dialect: name}
}

// Select creates a Selector for the configured dialect.
func (d *DialectBuilder) Select(columns ...string) *Selector {
	return &Selector{dialect: d.dialect, columns: columns}
}

// Insert creates an InsertBuilder for the configured dialect.
func (d *DialectBuilder) Insert(table string) *InsertBuilder {
	return &InsertBuilder{dialect: d.dialect, table: table, verb: "INSERT"}
}

// Replace creates a REPLACE INTO builder. PostgreSQL has no REPLACE
// statement and the returned builder reports an error on Query.
func (d *DialectBuilder) Replace(table string) *InsertBuilder {
	return &InsertBuilder{dialect: d.dialect, table: table, verb: "REPLACE"}
}

// Update creates an UpdateBuilder for the configured dialect.
func (d *DialectBuilder) Update(table string) *UpdateBuilder {
	return &UpdateBuilder{dialect: d.dialect, table: table}
}

// Delete creates a DeleteBuilder for the configured dialect.
func (d *DialectBuilder) Delete(table string) *DeleteBuilder {
	return &DeleteBuilder{dialect: d.dialect, table: table}
}

// Truncate returns a statement that removes all rows of table. SQLite has no
// TRUNCATE statement, so a DELETE without predicates is used instead.
func (d *DialectBuilder) Truncate(table string) *Builder {
	b := NewBuilder(d.dialect)
	if d.dialect == dialect.SQLite {
		return b.WriteString("DELETE FROM ").Ident(table)
	}
	return b.WriteString("TRUNCATE ").Ident(table)
}

// conds is a list of predicates joined by AND/OR in insertion order.
type conds []cond

type cond struct {
	or bool
	p  Predicate
}

func (c conds) render(b *Builder) {
	for i, w := range c {
		if i > 0 {
			if w.or {
				b.WriteString(" OR ")
			} else {
				b.WriteString(" AND ")
			}
		}
		w.p(b)
	}
}

// Selector is a builder for the `SELECT` statement.
type Selector struct {
	dialect  string
	distinct bool
	columns  []string
	from     string
	where    conds
	group    []string
	order    []string
	limit    *int
	offset   *int
	errs     []error
}

// Select appends columns to the selection.
func (s *Selector) Select(columns ...string) *Selector {
	s.columns = append(s.columns, columns...)
	return s
}

// Distinct adds the DISTINCT keyword to the `SELECT` statement.
func (s *Selector) Distinct() *Selector {
	s.distinct = true
	return s
}

// From sets the source table of the `FROM` clause.
func (s *Selector) From(table string) *Selector {
	s.from = table
	return s
}

// Where appends a predicate joined with AND.
func (s *Selector) Where(p Predicate) *Selector {
	s.where = append(s.where, cond{p: p})
	return s
}

// OrWhere appends a predicate joined with OR.
func (s *Selector) OrWhere(p Predicate) *Selector {
	s.where = append(s.where, cond{or: true, p: p})
	return s
}

// GroupBy appends the `GROUP BY` columns.
func (s *Selector) GroupBy(columns ...string) *Selector {
	s.group = append(s.group, columns...)
	return s
}

// OrderBy appends the `ORDER BY` terms. A term is a column name optionally
// followed by ASC or DESC, as returned by Asc and Desc.
func (s *Selector) OrderBy(terms ...string) *Selector {
	s.order = append(s.order, terms...)
	return s
}

// Limit adds the `LIMIT` clause.
func (s *Selector) Limit(n int) *Selector {
	s.limit = &n
	return s
}

// Offset adds the `OFFSET` clause.
func (s *Selector) Offset(n int) *Selector {
	s.offset = &n
	return s
}

// HasWhere reports whether the selector has predicates.
func (s *Selector) HasWhere() bool {
	return len(s.where) > 0
}

// Err returns the errors recorded by the last call to Query.
func (s *Selector) Err() error {
	return errors.Join(s.errs...)
}

// Query returns the query representation of the `SELECT` statement.
func (s *Selector) Query() (string, []any) {
	b := NewBuilder(s.dialect)
	s.render(b)
	s.errs = b.errs
	return b.Query()
}

func (s *Selector) render(b *Builder) {
	b.WriteString("SELECT ")
	if s.distinct {
		b.WriteString("DISTINCT ")
	}
	if len(s.columns) == 0 {
		b.WriteByte('*')
	} else {
		b.IdentComma(s.columns...)
	}
	if s.from == "" {
		b.AddError(errors.New("dialect/sql: missing table in SELECT"))
	}
	b.WriteString(" FROM ").Ident(s.from)
	if len(s.where) > 0 {
		b.WriteString(" WHERE ")
		s.where.render(b)
	}
	if len(s.group) > 0 {
		b.WriteString(" GROUP BY ").IdentComma(s.group...)
	}
	if len(s.order) > 0 {
		b.WriteString(" ORDER BY ")
		for i, term := range s.order {
			if i > 0 {
				b.WriteString(", ")
			}
			writeOrder(b, term)
		}
	}
	switch {
	case s.limit != nil:
		b.WriteString(" LIMIT " + strconv.Itoa(*s.limit))
	case s.offset != nil && s.dialect == dialect.MySQL:
		// MySQL requires LIMIT when using OFFSET.
		b.WriteString(" LIMIT 18446744073709551615")
	case s.offset != nil && s.dialect == dialect.SQLite:
		b.WriteString(" LIMIT -1")
	}
	if s.offset != nil {
		b.WriteString(" OFFSET " + strconv.Itoa(*s.offset))
	}
}

// Asc returns an ascending ORDER BY term for the column.
func Asc(column string) string { return column + " ASC" }

// Desc returns a descending ORDER BY term for the column.
func Desc(column string) string { return column + " DESC" }

func writeOrder(b *Builder, term string) {
	if i := strings.LastIndexByte(term, ' '); i > 0 {
		switch dir := strings.ToUpper(term[i+1:]); dir {
		case "ASC", "DESC":
			b.Ident(term[:i]).WriteString(" " + dir)
			return
		}
	}
	b.Ident(term)
}

// InsertBuilder is a builder for `INSERT INTO` (and `REPLACE INTO`) statements.
type InsertBuilder struct {
	dialect string
	table   string
	verb    string
	columns []string
	values  [][]any
	errs    []error
}

// Columns sets the columns of the insert statement.
func (i *InsertBuilder) Columns(columns ...string) *InsertBuilder {
	i.columns = append(i.columns, columns...)
	return i
}

// Values appends a row of values. The number of values must match the
// number of columns.
func (i *InsertBuilder) Values(values ...any) *InsertBuilder {
	i.values = append(i.values, values)
	return i
}

// Err returns the errors recorded by the last call to Query.
func (i *InsertBuilder) Err() error {
	return errors.Join(i.errs...)
}

// Query returns the query representation of the insert statement.
func (i *InsertBuilder) Query() (string, []any) {
	b := NewBuilder(i.dialect)
	if i.verb == "REPLACE" && i.dialect == dialect.Postgres {
		b.AddError(errors.New("dialect/sql: REPLACE is not supported by postgres"))
	}
	b.WriteString(i.verb + " INTO ").Ident(i.table)
	switch {
	case len(i.columns) == 0 && i.dialect == dialect.MySQL:
		b.WriteString(" () VALUES ()")
	case len(i.columns) == 0:
		b.WriteString(" DEFAULT VALUES")
	default:
		b.WriteString(" (").IdentComma(i.columns...).WriteString(") VALUES ")
		for j, row := range i.values {
			if len(row) != len(i.columns) {
				b.AddError(fmt.Errorf("dialect/sql: row %d has %d values, expect %d", j, len(row), len(i.columns)))
			}
			if j > 0 {
				b.WriteString(", ")
			}
			b.Nested(func(b *Builder) { b.Args(row...) })
		}
	}
	i.errs = b.errs
	return b.Query()
}

// ExprFunc renders a SQL expression used as an assignment value.
type ExprFunc func(*Builder)

// UpdateBuilder is a builder for `UPDATE` statements.
type UpdateBuilder struct {
	dialect string
	table   string
	columns []string
	values  []any
	where   conds
	limit   *int
	errs    []error
}

// Set sets a column to a given value.
func (u *UpdateBuilder) Set(column string, v any) *UpdateBuilder {
	u.columns = append(u.columns, column)
	u.values = append(u.values, v)
	return u
}

// SetExpr sets a column to an expression rendered by fn.
func (u *UpdateBuilder) SetExpr(column string, fn ExprFunc) *UpdateBuilder {
	return u.Set(column, fn)
}

// Where appends a predicate joined with AND.
func (u *UpdateBuilder) Where(p Predicate) *UpdateBuilder {
	u.where = append(u.where, cond{p: p})
	return u
}

// OrWhere appends a predicate joined with OR.
func (u *UpdateBuilder) OrWhere(p Predicate) *UpdateBuilder {
	u.where = append(u.where, cond{or: true, p: p})
	return u
}

// Limit sets the `LIMIT` clause. It is only rendered for MySQL, the only
// supported dialect that accepts it in UPDATE statements.
func (u *UpdateBuilder) Limit(n int) *UpdateBuilder {
	u.limit = &n
	return u
}

// Empty reports whether the update has no assignments.
func (u *UpdateBuilder) Empty() bool {
	return len(u.columns) == 0
}

// Err returns the errors recorded by the last call to Query.
func (u *UpdateBuilder) Err() error {
	return errors.Join(u.errs...)
}

// Query returns the query representation of the `UPDATE` statement.
func (u *UpdateBuilder) Query() (string, []any) {
	b := NewBuilder(u.dialect)
	if u.Empty() {
		b.AddError(errors.New("dialect/sql: UPDATE without assignments"))
	}
	b.WriteString("UPDATE ").Ident(u.table).WriteString(" SET ")
	for i, c := range u.columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.Ident(c).WriteString(" = ")
		if fn, ok := u.values[i].(ExprFunc); ok {
			fn(b)
		} else {
			b.Arg(u.values[i])
		}
	}
	if len(u.where) > 0 {
		b.WriteString(" WHERE ")
		u.where.render(b)
	}
	if u.limit != nil && u.dialect == dialect.MySQL {
		b.WriteString(" LIMIT " + strconv.Itoa(*u.limit))
	}
	u.errs = b.errs
	return b.Query()
}

// DeleteBuilder is a builder for `DELETE` statements.
type DeleteBuilder struct {
	dialect string
	table   string
	where   conds
	limit   *int
	errs    []error
}

// Where appends a predicate joined with AND.
func (d *DeleteBuilder) Where(p Predicate) *DeleteBuilder {
	d.where = append(d.where, cond{p: p})
	return d
}

// OrWhere appends a predicate joined with OR.
func (d *DeleteBuilder) OrWhere(p Predicate) *DeleteBuilder {
	d.where = append(d.where, cond{or: true, p: p})
	return d
}

// Limit sets the `LIMIT` clause. It is only rendered for MySQL.
func (d *DeleteBuilder) Limit(n int) *DeleteBuilder {
	d.limit = &n
	return d
}

// HasWhere reports whether the statement has predicates.
func (d *DeleteBuilder) HasWhere() bool {
	return len(d.where) > 0
}

// Err returns the errors recorded by the last call to Query.
func (d *DeleteBuilder) Err() error {
	return errors.Join(d.errs...)
}

// Query returns the query representation of the `DELETE` statement.
func (d *DeleteBuilder) Query() (string, []any) {
	b := NewBuilder(d.dialect)
	b.WriteString("DELETE FROM ").Ident(d.table)
	if len(d.where) > 0 {
		b.WriteString(" WHERE ")
		d.where.render(b)
	}
	if d.limit != nil && d.dialect == dialect.MySQL {
		b.WriteString(" LIMIT " + strconv.Itoa(*d.limit))
	}
	d.errs = b.errs
	return b.Query()
}
