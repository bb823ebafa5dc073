// Package model provides table-bound models over a qb.Builder.
//
// A Model is configured once with the table it is bound to. The table name,
// its columns and its primary key may be given explicitly or resolved from
// the database on first use. Write payloads are sanitized against the
// resolved columns, deletes are rewritten into updates when soft delete is
// enabled, and any builder operation can be reached by name through Call.
//
//	drv, err := sql.Open(dialect.MySQL, dsn)
//	if err != nil {
//		return err
//	}
//	users, err := model.New(qb.New(drv), model.Config{
//		Table:      "users",
//		OrderBy:    []model.Order{model.Desc("created_at")},
//		SoftDelete: true,
//	})
//	if err != nil {
//		return err
//	}
//	if err := users.Create(ctx, qb.Row{"name": "a8m", "status": 1}); err != nil {
//		return err
//	}
//	active, err := users.ScopeUndeleted().Find(ctx, qb.Where{"status": []int{1, 2}}, "id, name")
//
// Write operations return nil on success. Failures are *ardent.Error values
// whose Kind tells an empty payload from an adapter failure.
package model
