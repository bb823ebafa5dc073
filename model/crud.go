package model

import (
	"context"
	"errors"

	"github.com/syssam/ardent"
	"github.com/syssam/ardent/qb"
)

// Create sanitizes row and inserts it. It fails with an EmptyPayload error,
// without issuing a statement, when no column of row is a table column.
func (m *Model) Create(ctx context.Context, row qb.Row) error {
	data, err := m.Sanitize(ctx, row)
	if err != nil {
		return m.abort(err)
	}
	table := m.Table()
	if len(data) == 0 {
		return m.empty(ctx, "create", table)
	}
	if m.cfg.UUIDKey {
		if err := m.assignID(ctx, data); err != nil {
			return m.abort(err)
		}
	}
	if err := m.b.Insert(ctx, table, data); err != nil {
		return ardent.NewAdapterError("create", table, err)
	}
	return nil
}

// BatchCreate sanitizes every row and inserts them in batches of
// qb.DefaultBatchSize. Rows without any table column are skipped, and an
// empty batch fails with an EmptyPayload error.
func (m *Model) BatchCreate(ctx context.Context, rows []qb.Row) error {
	batch, err := m.sanitizeBatch(ctx, rows)
	if err != nil {
		return m.abort(err)
	}
	table := m.Table()
	if len(batch) == 0 {
		return m.empty(ctx, "batch_create", table)
	}
	if m.cfg.UUIDKey {
		for _, data := range batch {
			if err := m.assignID(ctx, data); err != nil {
				return m.abort(err)
			}
		}
	}
	if _, err := m.b.InsertBatch(ctx, table, batch, qb.DefaultBatchSize); err != nil {
		return ardent.NewAdapterError("batch_create", table, err)
	}
	return nil
}

// Save updates the rows matching where with row. When where is empty and
// row holds a non-nil primary key, the row with that key is updated. The primary
// key itself is never updated. Save fails with an EmptyPayload error when
// the sanitized row or the sanitized where is empty.
func (m *Model) Save(ctx context.Context, row qb.Row, where qb.Where) error {
	pk, err := m.PrimaryKey(ctx)
	if err != nil {
		return m.abort(err)
	}
	if len(where) == 0 {
		if id, ok := row[pk]; ok && id != nil {
			where = qb.Where{pk: id}
		}
	}
	data, err := m.Sanitize(ctx, row)
	if err != nil {
		return m.abort(err)
	}
	cond, err := m.Sanitize(ctx, where)
	if err != nil {
		return m.abort(err)
	}
	delete(data, pk)
	table := m.Table()
	if len(data) == 0 || len(cond) == 0 {
		return m.empty(ctx, "save", table)
	}
	for _, c := range cond.Columns() {
		m.b.Where(c, cond[c])
	}
	if err := m.b.Update(ctx, table, data, nil, 0); err != nil {
		return ardent.NewAdapterError("save", table, err)
	}
	return nil
}

// BatchSave sanitizes every row and updates the rows matching the value of
// index in each of them. Rows without any table column are skipped, and an
// empty batch fails with an EmptyPayload error.
func (m *Model) BatchSave(ctx context.Context, rows []qb.Row, index string) error {
	batch, err := m.sanitizeBatch(ctx, rows)
	if err != nil {
		return m.abort(err)
	}
	table := m.Table()
	if len(batch) == 0 {
		return m.empty(ctx, "batch_save", table)
	}
	if _, err := m.b.UpdateBatch(ctx, table, batch, index, qb.DefaultBatchSize); err != nil {
		return ardent.NewAdapterError("batch_save", table, err)
	}
	return nil
}

// Show returns the row whose primary key is id, or nil if there is none.
// If id is a qb.Where (or a qb.Row), each of its entries is used as an
// equality condition instead. The selected columns are filtered through
// AvailableColumns.
func (m *Model) Show(ctx context.Context, id any, columns ...string) (qb.Row, error) {
	switch v := id.(type) {
	case qb.Where:
		m.whereEach(v)
	case qb.Row:
		m.whereEach(v)
	case map[string]any:
		m.whereEach(v)
	default:
		pk, err := m.PrimaryKey(ctx)
		if err != nil {
			return nil, m.abort(err)
		}
		m.b.Where(pk, id)
	}
	res, err := m.Select(columns...).Get(ctx, 1, 0)
	if err != nil {
		return nil, err
	}
	return res.Row(), nil
}

// Find returns the rows matching the sanitized where. A slice value is
// matched with IN, any other value with equality. An empty where matches
// every row.
func (m *Model) Find(ctx context.Context, where qb.Where, columns ...string) ([]qb.Row, error) {
	cond, err := m.Sanitize(ctx, where)
	if err != nil {
		return nil, m.abort(err)
	}
	for _, c := range cond.Columns() {
		if list, ok := qb.List(cond[c]); ok {
			m.b.WhereIn(c, list)
		} else {
			m.b.Where(c, cond[c])
		}
	}
	res, err := m.Select(columns...).Get(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	return res.Rows(), nil
}

// FindByIDs returns the rows whose primary key is one of ids. ids is a
// slice or an array; a single value is accepted as well.
func (m *Model) FindByIDs(ctx context.Context, ids any, columns ...string) ([]qb.Row, error) {
	pk, err := m.PrimaryKey(ctx)
	if err != nil {
		return nil, m.abort(err)
	}
	list, ok := qb.List(ids)
	if !ok {
		list = []any{ids}
	}
	res, err := m.WhereIn(pk, list).Select(columns...).Get(ctx, 0, 0)
	if err != nil {
		return nil, err
	}
	return res.Rows(), nil
}

func (m *Model) whereEach(where map[string]any) {
	for _, c := range qb.Row(where).Columns() {
		m.b.Where(c, where[c])
	}
}

func (m *Model) sanitizeBatch(ctx context.Context, rows []qb.Row) ([]qb.Row, error) {
	batch := make([]qb.Row, 0, len(rows))
	for _, row := range rows {
		data, err := m.Sanitize(ctx, row)
		if err != nil {
			return nil, err
		}
		if len(data) > 0 {
			batch = append(batch, data)
		}
	}
	return batch, nil
}

func (m *Model) assignID(ctx context.Context, data qb.Row) error {
	pk, err := m.PrimaryKey(ctx)
	if err != nil {
		return err
	}
	if v, ok := data[pk]; !ok || v == nil || v == "" {
		data[pk] = m.newID()
	}
	return nil
}

// empty discards the pending state and reports an empty payload.
func (m *Model) empty(ctx context.Context, op, table string) error {
	m.discard()
	m.logger.DebugContext(ctx, "empty payload, statement skipped", "op", op, "table", table)
	return ardent.NewEmptyPayloadError(op, table)
}

// abort discards the pending state and returns err.
func (m *Model) abort(err error) error {
	m.discard()
	return err
}

func (m *Model) discard() {
	m.selects = nil
	m.b.Reset()
}

// prepare applies the deferred selects and returns the table of the next
// statement.
func (m *Model) prepare(ctx context.Context, op string) (string, error) {
	table := m.Table()
	if table == "" {
		return "", m.abort(ardent.NewConfigurationError(op, "", errNoTable))
	}
	if len(m.selects) == 0 {
		return table, nil
	}
	columns, err := m.Columns(ctx)
	if err != nil {
		return "", m.abort(err)
	}
	for _, apply := range m.selects {
		apply(columns)
	}
	m.selects = nil
	return table, nil
}

// target returns the table of the next write statement. Deferred selects
// do not apply to writes and are dropped.
func (m *Model) target(op string) (string, error) {
	m.selects = nil
	table := m.Table()
	if table == "" {
		return "", m.abort(ardent.NewConfigurationError(op, "", errNoTable))
	}
	return table, nil
}

var errNoTable = errors.New("no table name")

// wrap converts a builder error into an AdapterFailure error.
func wrap(op, table string, err error) error {
	if err == nil {
		return nil
	}
	var e *ardent.Error
	if errors.As(err, &e) {
		return err
	}
	return ardent.NewAdapterError(op, table, err)
}
