package qb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/syssam/ardent/dialect/sql"
)

// DefaultBatchSize is the number of rows per statement used by InsertBatch
// and UpdateBatch when no batch size is given.
const DefaultBatchSize = 100

// Result holds the rows returned by a SELECT.
type Result struct {
	rows []Row
}

// Rows returns all rows of the result.
func (r *Result) Rows() []Row {
	if r == nil {
		return nil
	}
	return r.rows
}

// Row returns the first row of the result, or nil if the result is empty.
func (r *Result) Row() Row {
	if r == nil || len(r.rows) == 0 {
		return nil
	}
	return r.rows[0]
}

// NumRows returns the number of rows in the result.
func (r *Result) NumRows() int {
	if r == nil {
		return 0
	}
	return len(r.rows)
}

// statement is implemented by the dialect/sql statement builders.
type statement interface {
	Query() (string, []any)
	Err() error
}

// compiled is a statement rendered ahead of execution.
type compiled struct {
	query string
	args  []any
	err   error
}

func (c compiled) Query() (string, []any) { return c.query, c.args }
func (c compiled) Err() error             { return c.err }

// Get runs a SELECT on table using the pending state. A zero limit or offset
// leaves the pending value untouched. An empty table uses the one set by From.
func (b *Builder) Get(ctx context.Context, table string, limit, offset int) (*Result, error) {
	defer b.Reset()
	if limit > 0 {
		b.limit = limit
	}
	if offset > 0 {
		b.offset = offset
	}
	rows, err := b.query(ctx, "get", b.selector(table, true))
	if err != nil {
		return nil, err
	}
	return &Result{rows: rows}, nil
}

// GetWhere is like Get, with the conditions of where added to the pending ones.
func (b *Builder) GetWhere(ctx context.Context, table string, where Filter, limit, offset int) (*Result, error) {
	b.WhereFilter(where)
	return b.Get(ctx, table, limit, offset)
}

// CountAll returns the number of rows in table, ignoring pending conditions.
func (b *Builder) CountAll(ctx context.Context, table string) (int64, error) {
	s := sql.Dialect(b.dialect).Select("COUNT(*) AS numrows").From(b.table(table))
	return b.count(ctx, "count_all", s)
}

// CountAllResults returns the number of rows matching the pending conditions
// and resets the pending state.
func (b *Builder) CountAllResults(ctx context.Context, table string) (int64, error) {
	defer b.Reset()
	if len(b.groups) > 0 || b.distinct {
		s := b.selector(table, false)
		inner, args := s.Query()
		stmt := compiled{
			query: "SELECT COUNT(*) AS numrows FROM (" + inner + ") " + sql.Quote(b.dialect, "count_all_results"),
			args:  args,
			err:   s.Err(),
		}
		return b.count(ctx, "count_all_results", stmt)
	}
	b.selects = []string{"COUNT(*) AS numrows"}
	b.limit, b.offset = 0, 0
	return b.count(ctx, "count_all_results", b.selector(table, false))
}

func (b *Builder) count(ctx context.Context, op string, stmt statement) (int64, error) {
	rows, err := b.query(ctx, op, stmt)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := toInt64(rows[0]["numrows"])
	if err != nil {
		return 0, b.fail(ctx, op, err)
	}
	return n, nil
}

// Insert inserts row, merged over the pending Set assignments, into table.
func (b *Builder) Insert(ctx context.Context, table string, row Row) error {
	return b.insert(ctx, "insert", sql.Dialect(b.dialect).Insert(b.table(table)), row)
}

// Replace runs a REPLACE INTO statement. PostgreSQL does not support it.
func (b *Builder) Replace(ctx context.Context, table string, row Row) error {
	return b.insert(ctx, "replace", sql.Dialect(b.dialect).Replace(b.table(table)), row)
}

func (b *Builder) insert(ctx context.Context, op string, i *sql.InsertBuilder, row Row) error {
	defer b.Reset()
	data := b.payload(row)
	if len(data) == 0 {
		return b.fail(ctx, op, errors.New("no data to insert, use Set or pass a row"))
	}
	columns := data.Columns()
	values := make([]any, len(columns))
	for j, c := range columns {
		values[j] = data[c]
	}
	res, err := b.exec(ctx, op, i.Columns(columns...).Values(values...))
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil {
		b.insertID = id
	}
	return nil
}

// InsertBatch inserts rows into table using multi-row INSERT statements of
// at most batchSize rows. All rows must carry the same columns. It returns
// the total number of affected rows.
func (b *Builder) InsertBatch(ctx context.Context, table string, rows []Row, batchSize int) (int64, error) {
	defer b.Reset()
	if len(rows) == 0 {
		return 0, b.fail(ctx, "insert_batch", errors.New("no rows to insert"))
	}
	columns := rows[0].Columns()
	for j, r := range rows {
		if !sameColumns(r, columns) {
			return 0, b.fail(ctx, "insert_batch", fmt.Errorf("row %d columns %v differ from %v", j, r.Columns(), columns))
		}
	}
	var total int64
	for _, chunk := range chunks(rows, batchSize) {
		i := sql.Dialect(b.dialect).Insert(b.table(table)).Columns(columns...)
		for _, r := range chunk {
			values := make([]any, len(columns))
			for j, c := range columns {
				values[j] = r[c]
			}
			i.Values(values...)
		}
		res, err := b.exec(ctx, "insert_batch", i)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	b.affected = total
	return total, nil
}

// Update sets the columns of set, merged over the pending Set assignments,
// on the rows of table matching the pending conditions and where. A positive
// limit is applied on MySQL only.
func (b *Builder) Update(ctx context.Context, table string, set Row, where Filter, limit int) error {
	defer b.Reset()
	data := b.payload(set)
	if len(data) == 0 {
		return b.fail(ctx, "update", errors.New("no data to set"))
	}
	u := sql.Dialect(b.dialect).Update(b.table(table))
	for _, c := range data.Columns() {
		u.Set(c, data[c])
	}
	b.WhereFilter(where)
	for _, w := range b.wheres {
		if w.or {
			u.OrWhere(w.p)
		} else {
			u.Where(w.p)
		}
	}
	if limit > 0 {
		b.limit = limit
	}
	if b.limit > 0 {
		u.Limit(b.limit)
	}
	_, err := b.exec(ctx, "update", u)
	return err
}

// UpdateBatch updates rows of table in statements of at most batchSize rows.
// Each row is matched by its value of the index column; the other columns
// are assigned with a CASE expression per column. It returns the total
// number of affected rows.
func (b *Builder) UpdateBatch(ctx context.Context, table string, rows []Row, index string, batchSize int) (int64, error) {
	defer b.Reset()
	if len(rows) == 0 {
		return 0, b.fail(ctx, "update_batch", errors.New("no rows to update"))
	}
	if index == "" {
		return 0, b.fail(ctx, "update_batch", errors.New("missing index column"))
	}
	columns := rows[0].Columns()
	for j, r := range rows {
		if _, ok := r[index]; !ok {
			return 0, b.fail(ctx, "update_batch", fmt.Errorf("row %d has no value for index column %q", j, index))
		}
		if !sameColumns(r, columns) {
			return 0, b.fail(ctx, "update_batch", fmt.Errorf("row %d columns %v differ from %v", j, r.Columns(), columns))
		}
	}
	set := make([]string, 0, len(columns))
	for _, c := range columns {
		if c != index {
			set = append(set, c)
		}
	}
	if len(set) == 0 {
		return 0, b.fail(ctx, "update_batch", fmt.Errorf("rows have no columns besides index %q", index))
	}
	var total int64
	for _, chunk := range chunks(rows, batchSize) {
		u := sql.Dialect(b.dialect).Update(b.table(table))
		for _, c := range set {
			u.SetExpr(c, caseExpr(index, c, chunk))
		}
		ids := make([]any, len(chunk))
		for j, r := range chunk {
			ids[j] = r[index]
		}
		for _, w := range b.wheres {
			u.Where(w.p)
		}
		u.Where(sql.In(index, ids...))
		res, err := b.exec(ctx, "update_batch", u)
		if err != nil {
			return total, err
		}
		n, _ := res.RowsAffected()
		total += n
	}
	b.affected = total
	return total, nil
}

func caseExpr(index, column string, rows []Row) sql.ExprFunc {
	return func(sb *sql.Builder) {
		sb.WriteString("CASE")
		for _, r := range rows {
			sb.WriteString(" WHEN ").Ident(index).WriteString(" = ").Arg(r[index])
			sb.WriteString(" THEN ").Arg(r[column])
		}
		sb.WriteString(" ELSE ").Ident(column).WriteString(" END")
	}
}

// Delete removes the rows of table matching the pending conditions and
// where. Deleting without any condition is refused; use EmptyTable or
// Truncate to remove all rows.
func (b *Builder) Delete(ctx context.Context, table string, where Filter, limit int) error {
	defer b.Reset()
	b.WhereFilter(where)
	if !b.HasWhere() {
		return b.fail(ctx, "delete", errors.New("refusing to delete without conditions, use EmptyTable"))
	}
	d := b.deleter(table)
	if limit > 0 {
		d.Limit(limit)
	}
	_, err := b.exec(ctx, "delete", d)
	return err
}

func (b *Builder) deleter(table string) *sql.DeleteBuilder {
	d := sql.Dialect(b.dialect).Delete(b.table(table))
	for _, w := range b.wheres {
		if w.or {
			d.OrWhere(w.p)
		} else {
			d.Where(w.p)
		}
	}
	if b.limit > 0 {
		d.Limit(b.limit)
	}
	return d
}

// EmptyTable removes all rows of table with a DELETE statement.
func (b *Builder) EmptyTable(ctx context.Context, table string) error {
	defer b.Reset()
	_, err := b.exec(ctx, "empty_table", sql.Dialect(b.dialect).Delete(b.table(table)))
	return err
}

// Truncate removes all rows of table with TRUNCATE, or DELETE on SQLite.
func (b *Builder) Truncate(ctx context.Context, table string) error {
	defer b.Reset()
	stmt := sql.Dialect(b.dialect).Truncate(b.table(table))
	_, err := b.exec(ctx, "truncate", stmt)
	return err
}

func (b *Builder) selector(table string, ordered bool) *sql.Selector {
	if table == "" {
		table = b.from
	}
	s := sql.Dialect(b.dialect).Select(b.selects...).From(b.table(table))
	if b.distinct {
		s.Distinct()
	}
	for _, w := range b.wheres {
		if w.or {
			s.OrWhere(w.p)
		} else {
			s.Where(w.p)
		}
	}
	s.GroupBy(b.groups...)
	if ordered {
		if len(b.orders) > 0 {
			s.OrderBy(b.orders...)
		} else {
			s.OrderBy(b.defaultOrder...)
		}
	}
	if b.limit > 0 {
		s.Limit(b.limit)
	}
	if b.offset > 0 {
		s.Offset(b.offset)
	}
	return s
}

// payload merges row over the pending Set assignments.
func (b *Builder) payload(row Row) Row {
	data := make(Row, len(b.sets)+len(row))
	for k, v := range b.sets {
		data[k] = v
	}
	for k, v := range row {
		data[k] = v
	}
	return data
}

func (b *Builder) query(ctx context.Context, op string, stmt statement) ([]Row, error) {
	query, args := stmt.Query()
	b.begin(query, args)
	if err := stmt.Err(); err != nil {
		return nil, b.fail(ctx, op, err)
	}
	start := time.Now()
	rows := &sql.Rows{}
	err := b.drv.Query(ctx, query, args, rows)
	var maps []map[string]any
	if err == nil {
		maps, err = sql.ScanMaps(rows)
	}
	b.elapsed += time.Since(start)
	b.queries++
	if err != nil {
		return nil, b.fail(ctx, op, err)
	}
	result := make([]Row, len(maps))
	for i, m := range maps {
		result[i] = Row(m)
	}
	return result, nil
}

func (b *Builder) exec(ctx context.Context, op string, stmt statement) (sql.Result, error) {
	query, args := stmt.Query()
	b.begin(query, args)
	if err := stmt.Err(); err != nil {
		return nil, b.fail(ctx, op, err)
	}
	start := time.Now()
	var res sql.Result
	err := b.drv.Exec(ctx, query, args, &res)
	b.elapsed += time.Since(start)
	b.queries++
	if err != nil {
		return nil, b.fail(ctx, op, err)
	}
	if res == nil {
		return nil, b.fail(ctx, op, errors.New("driver returned no result"))
	}
	b.affected, _ = res.RowsAffected()
	return res, nil
}

func (b *Builder) begin(query string, args []any) {
	b.lastQuery = b.interpolate(query, args)
	b.lastErr = nil
	b.affected = 0
}

func (b *Builder) fail(ctx context.Context, op string, err error) error {
	b.lastErr = fmt.Errorf("qb: %s: %w", op, err)
	b.logger.DebugContext(ctx, "statement failed", "op", op, "sql", b.lastQuery, "err", err)
	return b.lastErr
}

func sameColumns(r Row, columns []string) bool {
	if len(r) != len(columns) {
		return false
	}
	for _, c := range columns {
		if _, ok := r[c]; !ok {
			return false
		}
	}
	return true
}

func chunks(rows []Row, size int) [][]Row {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]Row
	for len(rows) > size {
		out = append(out, rows[:size])
		rows = rows[size:]
	}
	return append(out, rows)
}

func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("count: %w", err)
		}
		return n, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("count: unexpected type %T", v)
	}
}
