package model

import (
	"context"
	"time"

	"github.com/syssam/ardent/qb"
)

// Select adds columns to the next SELECT. The columns are filtered through
// AvailableColumns when the statement runs; no columns, "*", or only
// unknown columns select every table column.
func (m *Model) Select(columns ...string) *Model {
	m.selects = append(m.selects, func(all []string) {
		cols := intersect(all, columns)
		if len(cols) == 0 {
			cols = all
		}
		m.b.Select(cols...)
	})
	return m
}

// SelectMax adds a MAX(column) AS alias to the next SELECT.
func (m *Model) SelectMax(column, alias string) *Model {
	return m.aggregate(column, func() { m.b.SelectMax(column, alias) })
}

// SelectMin adds a MIN(column) AS alias to the next SELECT.
func (m *Model) SelectMin(column, alias string) *Model {
	return m.aggregate(column, func() { m.b.SelectMin(column, alias) })
}

// SelectAvg adds an AVG(column) AS alias to the next SELECT.
func (m *Model) SelectAvg(column, alias string) *Model {
	return m.aggregate(column, func() { m.b.SelectAvg(column, alias) })
}

// SelectSum adds a SUM(column) AS alias to the next SELECT.
func (m *Model) SelectSum(column, alias string) *Model {
	return m.aggregate(column, func() { m.b.SelectSum(column, alias) })
}

// aggregate defers an aggregate select; it is dropped when column is not a
// table column.
func (m *Model) aggregate(column string, apply func()) *Model {
	m.selects = append(m.selects, func(all []string) {
		for _, c := range all {
			if c == column {
				apply()
				return
			}
		}
	})
	return m
}

// Distinct makes the next SELECT a SELECT DISTINCT.
func (m *Model) Distinct() *Model {
	m.b.Distinct()
	return m
}

// Where adds an equality condition. See qb.Builder.Where.
func (m *Model) Where(column string, v any) *Model {
	m.b.Where(column, v)
	return m
}

// OrWhere adds a condition joined with OR.
func (m *Model) OrWhere(column string, v any) *Model {
	m.b.OrWhere(column, v)
	return m
}

// WhereIn adds a "column IN (values)" condition.
func (m *Model) WhereIn(column string, values any) *Model {
	m.b.WhereIn(column, values)
	return m
}

// WhereNotIn adds a "column NOT IN (values)" condition.
func (m *Model) WhereNotIn(column string, values any) *Model {
	m.b.WhereNotIn(column, values)
	return m
}

// WhereExpr adds a raw condition.
func (m *Model) WhereExpr(expr string, args ...any) *Model {
	m.b.WhereExpr(expr, args...)
	return m
}

// Like adds a "column LIKE '%match%'" condition.
func (m *Model) Like(column, match string) *Model {
	m.b.Like(column, match)
	return m
}

// OrderBy adds an ORDER BY term, overriding the default ordering.
func (m *Model) OrderBy(column, direction string) *Model {
	m.b.OrderBy(column, direction)
	return m
}

// GroupBy adds GROUP BY columns.
func (m *Model) GroupBy(columns ...string) *Model {
	m.b.GroupBy(columns...)
	return m
}

// Limit sets the LIMIT of the next statement.
func (m *Model) Limit(n int) *Model {
	m.b.Limit(n)
	return m
}

// Offset sets the OFFSET of the next SELECT.
func (m *Model) Offset(n int) *Model {
	m.b.Offset(n)
	return m
}

// Set adds a column assignment used by the next Insert, Replace or Update.
func (m *Model) Set(column string, v any) *Model {
	m.b.Set(column, v)
	return m
}

// Get runs a SELECT on the table using the pending state.
func (m *Model) Get(ctx context.Context, limit, offset int) (*qb.Result, error) {
	table, err := m.prepare(ctx, "get")
	if err != nil {
		return nil, err
	}
	res, err := m.b.Get(ctx, table, limit, offset)
	if err != nil {
		return nil, wrap("get", table, err)
	}
	return res, nil
}

// GetWhere is like Get, with the conditions of where added to the pending ones.
func (m *Model) GetWhere(ctx context.Context, where qb.Filter, limit, offset int) (*qb.Result, error) {
	m.b.WhereFilter(where)
	return m.Get(ctx, limit, offset)
}

// CountAllResults returns the number of rows matching the pending conditions.
func (m *Model) CountAllResults(ctx context.Context) (int64, error) {
	table, err := m.target("count_all_results")
	if err != nil {
		return 0, err
	}
	n, err := m.b.CountAllResults(ctx, table)
	return n, wrap("count_all_results", table, err)
}

// CountAll returns the number of rows of the table.
func (m *Model) CountAll(ctx context.Context) (int64, error) {
	table, err := m.target("count_all")
	if err != nil {
		return 0, err
	}
	n, err := m.b.CountAll(ctx, table)
	return n, wrap("count_all", table, err)
}

// CompiledSelect returns the SELECT built from the pending state without
// running it. The pending state is discarded if reset is true.
func (m *Model) CompiledSelect(ctx context.Context, reset bool) (string, error) {
	table, err := m.prepare(ctx, "compiled_select")
	if err != nil {
		return "", err
	}
	query, err := m.b.CompiledSelect(table, reset)
	return query, wrap("compiled_select", table, err)
}

// CompiledInsert returns the INSERT built from the pending Set assignments.
func (m *Model) CompiledInsert(reset bool) (string, error) {
	table, err := m.target("compiled_insert")
	if err != nil {
		return "", err
	}
	query, err := m.b.CompiledInsert(table, reset)
	return query, wrap("compiled_insert", table, err)
}

// CompiledUpdate returns the UPDATE built from the pending state.
func (m *Model) CompiledUpdate(reset bool) (string, error) {
	table, err := m.target("compiled_update")
	if err != nil {
		return "", err
	}
	query, err := m.b.CompiledUpdate(table, reset)
	return query, wrap("compiled_update", table, err)
}

// CompiledDelete returns the DELETE built from the pending conditions.
func (m *Model) CompiledDelete(reset bool) (string, error) {
	table, err := m.target("compiled_delete")
	if err != nil {
		return "", err
	}
	query, err := m.b.CompiledDelete(table, reset)
	return query, wrap("compiled_delete", table, err)
}

// Insert inserts row as is, without sanitizing it. See Create.
func (m *Model) Insert(ctx context.Context, row qb.Row) error {
	table, err := m.target("insert")
	if err != nil {
		return err
	}
	return wrap("insert", table, m.b.Insert(ctx, table, row))
}

// InsertBatch inserts rows as is, in statements of at most batchSize rows.
func (m *Model) InsertBatch(ctx context.Context, rows []qb.Row, batchSize int) (int64, error) {
	table, err := m.target("insert_batch")
	if err != nil {
		return 0, err
	}
	n, err := m.b.InsertBatch(ctx, table, rows, batchSize)
	return n, wrap("insert_batch", table, err)
}

// Replace runs a REPLACE INTO statement with row.
func (m *Model) Replace(ctx context.Context, row qb.Row) error {
	table, err := m.target("replace")
	if err != nil {
		return err
	}
	return wrap("replace", table, m.b.Replace(ctx, table, row))
}

// Update sets the columns of set on the rows matching the pending
// conditions and where, without sanitizing set. See Save.
func (m *Model) Update(ctx context.Context, set qb.Row, where qb.Filter, limit int) error {
	table, err := m.target("update")
	if err != nil {
		return err
	}
	return wrap("update", table, m.b.Update(ctx, table, set, where, limit))
}

// UpdateBatch updates rows as is, matched by their index column.
func (m *Model) UpdateBatch(ctx context.Context, rows []qb.Row, index string, batchSize int) (int64, error) {
	table, err := m.target("update_batch")
	if err != nil {
		return 0, err
	}
	n, err := m.b.UpdateBatch(ctx, table, rows, index, batchSize)
	return n, wrap("update_batch", table, err)
}

// EmptyTable removes all rows of the table with a DELETE statement.
func (m *Model) EmptyTable(ctx context.Context) error {
	table, err := m.target("empty_table")
	if err != nil {
		return err
	}
	return wrap("empty_table", table, m.b.EmptyTable(ctx, table))
}

// Truncate removes all rows of the table.
func (m *Model) Truncate(ctx context.Context) error {
	table, err := m.target("truncate")
	if err != nil {
		return err
	}
	return wrap("truncate", table, m.b.Truncate(ctx, table))
}

// DBPrefix returns the table name with the connection prefix.
func (m *Model) DBPrefix() string { return m.PrefixedTable() }

// Primary asks the database for the primary key of the table, bypassing
// the cached PrimaryKey.
func (m *Model) Primary(ctx context.Context) (string, error) {
	table, err := m.target("primary")
	if err != nil {
		return "", err
	}
	pk, err := m.b.Primary(ctx, table)
	return pk, wrap("primary", table, err)
}

// ListFields asks the database for the columns of the table, bypassing
// the cached Columns.
func (m *Model) ListFields(ctx context.Context) ([]string, error) {
	table, err := m.target("list_fields")
	if err != nil {
		return nil, err
	}
	fields, err := m.b.ListFields(ctx, table)
	return fields, wrap("list_fields", table, err)
}

// FieldExists reports whether the table has the column field.
func (m *Model) FieldExists(ctx context.Context, field string) (bool, error) {
	table, err := m.target("field_exists")
	if err != nil {
		return false, err
	}
	ok, err := m.b.FieldExists(ctx, field, table)
	return ok, wrap("field_exists", table, err)
}

// FieldData returns the column metadata of the table.
func (m *Model) FieldData(ctx context.Context) ([]qb.Field, error) {
	table, err := m.target("field_data")
	if err != nil {
		return nil, err
	}
	fields, err := m.b.FieldData(ctx, table)
	return fields, wrap("field_data", table, err)
}

// InsertString returns the INSERT statement for row as a string.
func (m *Model) InsertString(row qb.Row) (string, error) {
	table, err := m.target("insert_string")
	if err != nil {
		return "", err
	}
	query, err := m.b.InsertString(table, row)
	return query, wrap("insert_string", table, err)
}

// UpdateString returns the UPDATE statement for row and where as a string.
func (m *Model) UpdateString(row qb.Row, where qb.Filter) (string, error) {
	table, err := m.target("update_string")
	if err != nil {
		return "", err
	}
	query, err := m.b.UpdateString(table, row, where)
	return query, wrap("update_string", table, err)
}

// AffectedRows returns the number of rows affected by the last write.
func (m *Model) AffectedRows() int64 { return m.b.AffectedRows() }

// InsertID returns the id generated by the last insert.
func (m *Model) InsertID() int64 { return m.b.InsertID() }

// LastQuery returns the last statement, with its arguments interpolated.
func (m *Model) LastQuery() string { return m.b.LastQuery() }

// Err returns the error of the last statement, if any.
func (m *Model) Err() error { return m.b.Err() }

// TotalQueries returns the number of statements run by the model.
func (m *Model) TotalQueries() int { return m.b.TotalQueries() }

// ElapsedTime returns the total time spent running statements.
func (m *Model) ElapsedTime() time.Duration { return m.b.ElapsedTime() }
