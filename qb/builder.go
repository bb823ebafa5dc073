package qb

import (
	"log/slog"
	"strings"
	"time"

	"github.com/syssam/ardent/dialect"
	"github.com/syssam/ardent/dialect/sql"
)

// Builder is a stateful query builder bound to a driver. Select, Where,
// OrderBy and the other chainable methods accumulate pending state that the
// next executed or compiled statement consumes; the state is reset after
// every statement.
//
// A Builder is not safe for concurrent use. Each goroutine should own its
// Builder (see Clone).
type Builder struct {
	drv     dialect.Driver
	dialect string
	prefix  string
	logger  *slog.Logger

	// pending statement state.
	selects  []string
	distinct bool
	from     string
	wheres   []where
	orders   []string
	groups   []string
	limit    int
	offset   int
	sets     Row

	// installed once, applied to SELECTs without explicit ordering.
	defaultOrder []string

	// statement metadata.
	lastQuery string
	lastErr   error
	affected  int64
	insertID  int64
	queries   int
	elapsed   time.Duration
}

type where struct {
	or bool
	p  sql.Predicate
}

// Option configures a Builder.
type Option func(*Builder)

// WithPrefix sets the table prefix prepended to every table name.
func WithPrefix(prefix string) Option {
	return func(b *Builder) {
		b.prefix = prefix
	}
}

// WithLogger sets the logger used for failed statements. Default is slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// New returns a Builder that executes statements on drv.
//
//	drv, _ := sql.Open(dialect.SQLite, "file:app.db")
//	b := qb.New(drv, qb.WithPrefix("app_"))
//	res, err := b.Where("status", 1).OrderBy("id", "DESC").Get(ctx, "users", 10, 0)
func New(drv dialect.Driver, opts ...Option) *Builder {
	b := &Builder{
		drv:     drv,
		dialect: drv.Dialect(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Clone returns a Builder sharing the driver and configuration of b, with
// empty pending state and fresh statement metadata.
func (b *Builder) Clone() *Builder {
	return &Builder{
		drv:          b.drv,
		dialect:      b.dialect,
		prefix:       b.prefix,
		logger:       b.logger,
		defaultOrder: b.defaultOrder,
	}
}

// Driver returns the underlying driver.
func (b *Builder) Driver() dialect.Driver { return b.drv }

// Dialect returns the dialect of the underlying driver.
func (b *Builder) Dialect() string { return b.dialect }

// Select appends columns to the selection. An empty selection selects all
// columns.
func (b *Builder) Select(columns ...string) *Builder {
	for _, c := range columns {
		if c = strings.TrimSpace(c); c != "" {
			b.selects = append(b.selects, c)
		}
	}
	return b
}

// SelectMax appends a MAX(column) aggregate. The alias defaults to the column name.
func (b *Builder) SelectMax(column, alias string) *Builder {
	return b.aggregate("MAX", column, alias)
}

// SelectMin appends a MIN(column) aggregate. The alias defaults to the column name.
func (b *Builder) SelectMin(column, alias string) *Builder {
	return b.aggregate("MIN", column, alias)
}

// SelectAvg appends an AVG(column) aggregate. The alias defaults to the column name.
func (b *Builder) SelectAvg(column, alias string) *Builder {
	return b.aggregate("AVG", column, alias)
}

// SelectSum appends a SUM(column) aggregate. The alias defaults to the column name.
func (b *Builder) SelectSum(column, alias string) *Builder {
	return b.aggregate("SUM", column, alias)
}

func (b *Builder) aggregate(fn, column, alias string) *Builder {
	if alias == "" {
		alias = column
	}
	b.selects = append(b.selects, fn+"("+b.ident(column)+") AS "+sql.Quote(b.dialect, alias))
	return b
}

// ident quotes a plain identifier and leaves expressions untouched.
func (b *Builder) ident(s string) string {
	if !sql.IsIdent(s) {
		return s
	}
	parts := strings.Split(s, ".")
	for i := range parts {
		parts[i] = sql.Quote(b.dialect, parts[i])
	}
	return strings.Join(parts, ".")
}

// Distinct adds the DISTINCT keyword to the next SELECT.
func (b *Builder) Distinct() *Builder {
	b.distinct = true
	return b
}

// From sets the table of the next SELECT, used when Get is called without one.
func (b *Builder) From(table string) *Builder {
	b.from = table
	return b
}

// Where adds a condition joined with AND. The column may carry a trailing
// operator ("age >"); a slice value matches by membership.
func (b *Builder) Where(column string, v any) *Builder {
	b.wheres = append(b.wheres, where{p: Cond(column, v)})
	return b
}

// OrWhere adds a condition joined with OR.
func (b *Builder) OrWhere(column string, v any) *Builder {
	b.wheres = append(b.wheres, where{or: true, p: Cond(column, v)})
	return b
}

// WhereIn adds a "column IN (values)" condition. values must be a slice;
// an empty slice matches no rows.
func (b *Builder) WhereIn(column string, values any) *Builder {
	list, _ := List(values)
	b.wheres = append(b.wheres, where{p: sql.In(column, list...)})
	return b
}

// WhereNotIn adds a "column NOT IN (values)" condition.
func (b *Builder) WhereNotIn(column string, values any) *Builder {
	list, _ := List(values)
	b.wheres = append(b.wheres, where{p: sql.NotIn(column, list...)})
	return b
}

// WhereExpr adds a raw condition. Each "?" in expr is bound to the next arg.
func (b *Builder) WhereExpr(expr string, args ...any) *Builder {
	b.wheres = append(b.wheres, where{p: sql.Expr(expr, args...)})
	return b
}

// WhereFilter adds every condition of f joined with AND.
func (b *Builder) WhereFilter(f Filter) *Builder {
	if f == nil {
		return b
	}
	for _, p := range f.predicates() {
		b.wheres = append(b.wheres, where{p: p})
	}
	return b
}

// Like adds a "column LIKE '%match%'" condition. Wildcards in match are escaped.
func (b *Builder) Like(column, match string) *Builder {
	b.wheres = append(b.wheres, where{p: sql.Contains(column, match)})
	return b
}

// HasWhere reports whether conditions are pending.
func (b *Builder) HasWhere() bool {
	return len(b.wheres) > 0
}

// OrderBy adds an ORDER BY term. The direction is ASC or DESC, ASC when empty.
func (b *Builder) OrderBy(column, direction string) *Builder {
	b.orders = append(b.orders, orderTerm(column, direction))
	return b
}

func orderTerm(column, direction string) string {
	if strings.EqualFold(strings.TrimSpace(direction), "DESC") {
		return sql.Desc(column)
	}
	return sql.Asc(column)
}

// SetDefaultOrder installs ORDER BY terms applied to every SELECT that has
// no explicit ordering. Terms are built with OrderTerm.
func (b *Builder) SetDefaultOrder(terms ...string) *Builder {
	b.defaultOrder = terms
	return b
}

// OrderTerm returns the ORDER BY term for a column and a direction.
func OrderTerm(column, direction string) string {
	return orderTerm(column, direction)
}

// GroupBy adds GROUP BY columns.
func (b *Builder) GroupBy(columns ...string) *Builder {
	b.groups = append(b.groups, columns...)
	return b
}

// Limit sets the LIMIT of the next statement. Zero means no limit.
func (b *Builder) Limit(n int) *Builder {
	b.limit = n
	return b
}

// Offset sets the OFFSET of the next SELECT.
func (b *Builder) Offset(n int) *Builder {
	b.offset = n
	return b
}

// Set adds a column assignment used by the next Insert, Replace or Update.
func (b *Builder) Set(column string, v any) *Builder {
	if b.sets == nil {
		b.sets = make(Row)
	}
	b.sets[column] = v
	return b
}

// Reset discards all pending statement state.
func (b *Builder) Reset() *Builder {
	b.selects = nil
	b.distinct = false
	b.from = ""
	b.wheres = nil
	b.orders = nil
	b.groups = nil
	b.limit = 0
	b.offset = 0
	b.sets = nil
	return b
}

// DBPrefix returns table with the configured prefix prepended.
func (b *Builder) DBPrefix(table string) string {
	return b.table(table)
}

// Prefix returns the configured table prefix.
func (b *Builder) Prefix() string { return b.prefix }

func (b *Builder) table(name string) string {
	if b.prefix == "" || name == "" || strings.HasPrefix(name, b.prefix) {
		return name
	}
	return b.prefix + name
}

// AffectedRows returns the number of rows affected by the last write.
func (b *Builder) AffectedRows() int64 { return b.affected }

// InsertID returns the id generated by the last insert, if the driver reports one.
func (b *Builder) InsertID() int64 { return b.insertID }

// LastQuery returns the last statement with its arguments interpolated.
func (b *Builder) LastQuery() string { return b.lastQuery }

// Err returns the error of the last statement, or nil if it succeeded.
func (b *Builder) Err() error { return b.lastErr }

// TotalQueries returns the number of statements executed by the builder.
func (b *Builder) TotalQueries() int { return b.queries }

// ElapsedTime returns the total time spent executing statements.
func (b *Builder) ElapsedTime() time.Duration { return b.elapsed }
