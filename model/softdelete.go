package model

import (
	"context"
	"errors"

	"github.com/syssam/ardent"
	"github.com/syssam/ardent/qb"
)

// SoftDelete reports whether Delete marks rows instead of removing them.
func (m *Model) SoftDelete() bool { return m.cfg.SoftDelete }

// ScopeUndeleted restricts the next query to rows that are not soft
// deleted. It is a no-op when soft delete is disabled.
func (m *Model) ScopeUndeleted() *Model {
	if m.cfg.SoftDelete {
		m.b.Where(m.cfg.SoftDeleteColumn, Active)
	}
	return m
}

// ScopeDeleted restricts the next query to soft-deleted rows. It is a
// no-op when soft delete is disabled.
func (m *Model) ScopeDeleted() *Model {
	if m.cfg.SoftDelete {
		m.b.Where(m.cfg.SoftDeleteColumn, Deleted)
	}
	return m
}

// Delete removes the rows matching where, at most limit of them when limit
// is positive and the dialect supports it. With soft delete enabled, the
// rows are marked as deleted with the current Unix time instead.
//
// Deleting without conditions is refused with a configuration error in both
// modes, so a soft delete never marks the whole table. Use EmptyTable or
// Truncate to clear a table.
func (m *Model) Delete(ctx context.Context, where qb.Filter, limit int) error {
	table, err := m.conditioned("delete", where)
	if err != nil {
		return err
	}
	if !m.cfg.SoftDelete {
		return wrap("delete", table, m.b.Delete(ctx, table, nil, limit))
	}
	set := qb.Row{
		m.cfg.SoftDeleteColumn:    Deleted,
		m.cfg.SoftDeletedAtColumn: m.now().Unix(),
	}
	return wrap("delete", table, m.b.Update(ctx, table, set, nil, limit))
}

// Restore clears the soft-delete mark of the rows matching where. It fails
// with a configuration error when soft delete is disabled or no condition is
// given.
func (m *Model) Restore(ctx context.Context, where qb.Filter, limit int) error {
	if !m.cfg.SoftDelete {
		return m.abort(ardent.NewConfigurationError("restore", m.Table(), errors.New("soft delete is disabled")))
	}
	table, err := m.conditioned("restore", where)
	if err != nil {
		return err
	}
	set := qb.Row{
		m.cfg.SoftDeleteColumn:    Active,
		m.cfg.SoftDeletedAtColumn: 0,
	}
	return wrap("restore", table, m.b.Update(ctx, table, set, nil, limit))
}

// conditioned adds where to the pending conditions and returns the table
// of the next statement. It fails when no condition is pending.
func (m *Model) conditioned(op string, where qb.Filter) (string, error) {
	table, err := m.target(op)
	if err != nil {
		return "", err
	}
	if !m.b.WhereFilter(where).HasWhere() {
		return "", m.abort(ardent.Errorf(ardent.KindConfiguration, op, table, "refusing to %s without conditions", op))
	}
	return table, nil
}
