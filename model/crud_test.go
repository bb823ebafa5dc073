package model

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/syssam/ardent"
	"github.com/syssam/ardent/dialect"
	"github.com/syssam/ardent/qb"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("sanitized", func(t *testing.T) {
		m, mock := mockModel(t, dialect.SQLite, usersConfig)
		mock.ExpectExec(`INSERT INTO "users" ("id", "name") VALUES (?, ?)`).
			WithArgs(5, "a").
			WillReturnResult(sqlmock.NewResult(5, 1))

		require.NoError(t, m.Create(ctx, qb.Row{"id": 5, "name": "a", "email": "a@b.c"}))
		require.NoError(t, mock.ExpectationsWereMet())
		assert.Equal(t, int64(5), m.InsertID())
	})

	t.Run("empty_payload", func(t *testing.T) {
		m, mock := mockModel(t, dialect.SQLite, usersConfig)
		for _, row := range []qb.Row{{}, nil, {"unknown_col": 1}} {
			err := m.Create(ctx, row)
			require.Error(t, err)
			assert.True(t, ardent.IsEmptyPayload(err))
			assert.ErrorIs(t, err, ardent.ErrEmptyPayload)
		}
		require.NoError(t, mock.ExpectationsWereMet())
		assert.Zero(t, m.TotalQueries())
	})

	t.Run("adapter_failure", func(t *testing.T) {
		m, mock := mockModel(t, dialect.MySQL, usersConfig)
		boom := errors.New("duplicate entry")
		mock.ExpectExec("INSERT INTO `users` (`id`) VALUES (?)").WithArgs(1).WillReturnError(boom)

		err := m.Create(ctx, qb.Row{"id": 1})
		require.Error(t, err)
		assert.True(t, ardent.IsAdapterFailure(err))
		assert.ErrorIs(t, err, boom)
		assert.ErrorIs(t, m.Err(), boom)
	})

	t.Run("uuid_key", func(t *testing.T) {
		cfg := Config{Table: "tokens", PrimaryKey: "token", Columns: ColumnList{"token", "owner"}, UUIDKey: true}
		m, mock := mockModel(t, dialect.Postgres, cfg, WithIDGenerator(func() string { return "0a6f" }))
		mock.ExpectExec(`INSERT INTO "tokens" ("owner", "token") VALUES ($1, $2)`).
			WithArgs("a8m", "0a6f").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(`INSERT INTO "tokens" ("owner", "token") VALUES ($1, $2)`).
			WithArgs("a8m", "given").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, m.Create(ctx, qb.Row{"owner": "a8m"}))
		require.NoError(t, m.Create(ctx, qb.Row{"owner": "a8m", "token": "given"}))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBatchCreate(t *testing.T) {
	ctx := context.Background()
	m, mock := mockModel(t, dialect.SQLite, usersConfig)
	mock.ExpectExec(`INSERT INTO "users" ("id", "name") VALUES (?, ?), (?, ?)`).
		WithArgs(1, "a", 2, "b").
		WillReturnResult(sqlmock.NewResult(2, 2))

	err := m.BatchCreate(ctx, []qb.Row{
		{"id": 1, "name": "a", "email": "x"},
		{"email": "dropped"},
		{"id": 2, "name": "b"},
	})
	require.NoError(t, err)

	for _, rows := range [][]qb.Row{nil, {}, {{"email": "x"}}} {
		err := m.BatchCreate(ctx, rows)
		assert.True(t, ardent.IsEmptyPayload(err))
	}
	require.NoError(t, mock.ExpectationsWereMet())
	assert.Equal(t, 1, m.TotalQueries())
}

func TestSave(t *testing.T) {
	ctx := context.Background()

	t.Run("primary_key_where", func(t *testing.T) {
		m, mock := mockModel(t, dialect.SQLite, usersConfig)
		mock.ExpectExec(`UPDATE "users" SET "name" = ? WHERE "id" = ?`).
			WithArgs("x", 5).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, m.Save(ctx, qb.Row{"id": 5, "name": "x"}, nil))
		require.NoError(t, mock.ExpectationsWereMet())
		assert.Equal(t, int64(1), m.AffectedRows())
	})

	t.Run("explicit_where", func(t *testing.T) {
		m, mock := mockModel(t, dialect.Postgres, usersConfig)
		mock.ExpectExec(`UPDATE "users" SET "name" = $1, "status" = $2 WHERE "name" = $3 AND "status" = $4`).
			WithArgs("", 2, "old", 1).
			WillReturnResult(sqlmock.NewResult(0, 3))

		err := m.Save(ctx, qb.Row{"id": 9, "name": nil, "status": 2}, qb.Where{"status": 1, "name": "old", "bogus": 1})
		require.NoError(t, err)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty", func(t *testing.T) {
		m, mock := mockModel(t, dialect.SQLite, usersConfig)
		tests := []struct {
			row   qb.Row
			where qb.Where
		}{
			{qb.Row{"name": "x"}, nil},
			{qb.Row{"name": "x"}, qb.Where{"bogus": 1}},
			{qb.Row{"id": 5}, nil},
			{qb.Row{"id": nil, "name": "x"}, nil},
			{qb.Row{"email": "x"}, qb.Where{"id": 5}},
		}
		for _, tt := range tests {
			err := m.Save(ctx, tt.row, tt.where)
			assert.True(t, ardent.IsEmptyPayload(err), "%v %v", tt.row, tt.where)
		}
		require.NoError(t, mock.ExpectationsWereMet())
		assert.Zero(t, m.TotalQueries())
	})

	t.Run("pending_state_discarded", func(t *testing.T) {
		m, mock := mockModel(t, dialect.SQLite, usersConfig)
		mock.ExpectExec(`UPDATE "users" SET "name" = ? WHERE "id" = ?`).
			WithArgs("y", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		m.Where("status", 3)
		require.Error(t, m.Save(ctx, qb.Row{"name": "x"}, nil))
		require.NoError(t, m.Save(ctx, qb.Row{"id": 1, "name": "y"}, nil))
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBatchSave(t *testing.T) {
	ctx := context.Background()
	m, mock := mockModel(t, dialect.MySQL, usersConfig)
	mock.ExpectExec("UPDATE `users` SET `name` = CASE WHEN `id` = ? THEN ? WHEN `id` = ? THEN ? ELSE `name` END WHERE `id` IN (?, ?)").
		WithArgs(1, "a", 2, "b", 1, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, m.BatchSave(ctx, []qb.Row{
		{"id": 1, "name": "a", "email": "x"},
		{"id": 2, "name": "b"},
	}, "id"))
	assert.True(t, ardent.IsEmptyPayload(m.BatchSave(ctx, nil, "id")))
	assert.True(t, ardent.IsEmptyPayload(m.BatchSave(ctx, []qb.Row{{"bogus": 1}}, "id")))

	err := m.BatchSave(ctx, []qb.Row{{"name": "a"}}, "id")
	assert.True(t, ardent.IsAdapterFailure(err), "rows without the index column")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestShow(t *testing.T) {
	ctx := context.Background()

	t.Run("primary_key", func(t *testing.T) {
		m, mock := mockModel(t, dialect.SQLite, usersConfig)
		mock.ExpectQuery(`SELECT ` + usersColumns + ` FROM "users" WHERE "id" = ? LIMIT 1`).
			WithArgs(5).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name", "status", "is_deleted", "delete_time"}).
				AddRow(5, "a", 1, 0, 0))

		row, err := m.Show(ctx, 5)
		require.NoError(t, err)
		assert.Equal(t, "a", row["name"])
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("filter_and_columns", func(t *testing.T) {
		m, mock := mockModel(t, dialect.Postgres, usersConfig)
		mock.ExpectQuery(`SELECT "name", "id" FROM "users" WHERE "name" = $1 AND "status" = $2 LIMIT 1`).
			WithArgs("a", 1).
			WillReturnRows(sqlmock.NewRows([]string{"name", "id"}))

		row, err := m.Show(ctx, qb.Where{"status": 1, "name": "a"}, "name, id", "bogus")
		require.NoError(t, err)
		assert.Nil(t, row)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("adapter_failure", func(t *testing.T) {
		m, mock := mockModel(t, dialect.SQLite, usersConfig)
		mock.ExpectQuery(`SELECT "id" FROM "users" WHERE "id" = ? LIMIT 1`).
			WithArgs(1).
			WillReturnError(errors.New("disk I/O error"))

		_, err := m.Show(ctx, 1, "id")
		assert.True(t, ardent.IsAdapterFailure(err))
	})
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2)
	}

	m, mock := mockModel(t, dialect.SQLite, usersConfig)
	mock.ExpectQuery(`SELECT "id" FROM "users" WHERE "status" IN (?, ?, ?)`).
		WithArgs(1, 2, 3).
		WillReturnRows(rows())
	mock.ExpectQuery(`SELECT "id" FROM "users" WHERE "status" = ?`).
		WithArgs(1).
		WillReturnRows(rows())
	mock.ExpectQuery(`SELECT ` + usersColumns + ` FROM "users"`).
		WillReturnRows(rows())
	mock.ExpectQuery(`SELECT "id", "name" FROM "users" WHERE "id" IN (?, ?)`).
		WithArgs(1, 2).
		WillReturnRows(rows())
	mock.ExpectQuery(`SELECT "id" FROM "users" WHERE "id" IN (?)`).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	found, err := m.Find(ctx, qb.Where{"status": []int{1, 2, 3}}, "id")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = m.Find(ctx, qb.Where{"status": 1, "bogus": 2}, "id")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = m.Find(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = m.FindByIDs(ctx, []int64{1, 2}, "id", "name")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = m.FindByIDs(ctx, 7, "id")
	require.NoError(t, err)
	assert.Empty(t, found)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultOrder(t *testing.T) {
	ctx := context.Background()
	cfg := usersConfig
	cfg.OrderBy = []Order{Desc("status"), Asc("id")}
	m, mock := mockModel(t, dialect.MySQL, cfg)
	mock.ExpectQuery("SELECT `id` FROM `users` ORDER BY `status` DESC, `id` ASC").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT `id` FROM `users` ORDER BY `name` ASC").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectQuery("SELECT COUNT(*) AS numrows FROM `users`").
		WillReturnRows(sqlmock.NewRows([]string{"numrows"}).AddRow(int64(0)))

	_, err := m.Find(ctx, nil, "id")
	require.NoError(t, err)
	_, err = m.OrderBy("name", "").Find(ctx, nil, "id")
	require.NoError(t, err)
	_, err = m.CountAllResults(ctx)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSoftDelete(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cfg := usersConfig
	cfg.SoftDelete = true

	t.Run("enabled", func(t *testing.T) {
		m, mock := mockModel(t, dialect.SQLite, cfg, WithClock(func() time.Time { return now }))
		mock.ExpectExec(`UPDATE "users" SET "delete_time" = ?, "is_deleted" = ? WHERE "id" = ?`).
			WithArgs(now.Unix(), 1, 5).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT "id" FROM "users" WHERE "is_deleted" = ?`).
			WithArgs(0).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectQuery(`SELECT "id" FROM "users" WHERE "is_deleted" = ? AND "status" = ?`).
			WithArgs(1, 2).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))
		mock.ExpectExec(`UPDATE "users" SET "delete_time" = ?, "is_deleted" = ? WHERE "id" = ?`).
			WithArgs(0, 0, 5).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, m.Delete(ctx, qb.Where{"id": 5}, 0))
		_, err := m.ScopeUndeleted().Find(ctx, qb.Where{}, "id")
		require.NoError(t, err)
		_, err = m.ScopeDeleted().Find(ctx, qb.Where{"status": 2}, "id")
		require.NoError(t, err)
		require.NoError(t, m.Restore(ctx, qb.Where{"id": 5}, 0))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("disabled", func(t *testing.T) {
		m, mock := mockModel(t, dialect.SQLite, usersConfig)
		mock.ExpectExec(`DELETE FROM "users" WHERE "id" = ?`).
			WithArgs(5).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`SELECT "id" FROM "users"`).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		require.NoError(t, m.Delete(ctx, qb.Where{"id": 5}, 0))
		_, err := m.ScopeUndeleted().ScopeDeleted().Find(ctx, nil, "id")
		require.NoError(t, err)

		err = m.Restore(ctx, qb.Where{"id": 5}, 0)
		assert.True(t, ardent.IsConfiguration(err))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("limit", func(t *testing.T) {
		m, mock := mockModel(t, dialect.MySQL, cfg, WithClock(func() time.Time { return now }))
		mock.ExpectExec("UPDATE `users` SET `delete_time` = ?, `is_deleted` = ? WHERE `status` = ? LIMIT 10").
			WithArgs(now.Unix(), 1, 3).
			WillReturnResult(sqlmock.NewResult(0, 10))

		require.NoError(t, m.Delete(ctx, qb.Where{"status": 3}, 10))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("without_conditions", func(t *testing.T) {
		for _, c := range []Config{cfg, usersConfig} {
			m, mock := mockModel(t, dialect.SQLite, c)
			err := m.Delete(ctx, nil, 0)
			assert.True(t, ardent.IsConfiguration(err))
			assert.ErrorContains(t, err, "refusing to delete without conditions")
			err = m.Delete(ctx, qb.Where{}, 0)
			assert.True(t, ardent.IsConfiguration(err))
			require.NoError(t, mock.ExpectationsWereMet())
		}
		m, mock := mockModel(t, dialect.SQLite, cfg)
		err := m.Restore(ctx, qb.Where{}, 0)
		assert.ErrorContains(t, err, "refusing to restore without conditions")
		require.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestPassThrough(t *testing.T) {
	ctx := context.Background()
	m, mock := mockModel(t, dialect.Postgres, usersConfig)
	mock.ExpectQuery(`SELECT MAX("status") AS "top", AVG("status") AS "status" FROM "users" WHERE "name" LIKE $1`).
		WithArgs("%a%").
		WillReturnRows(sqlmock.NewRows([]string{"top", "status"}).AddRow(3, 1.5))
	mock.ExpectQuery(`SELECT COUNT(*) AS numrows FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"numrows"}).AddRow(int64(8)))
	mock.ExpectExec(`UPDATE "users" SET "status" = $1 WHERE "id" IN ($2, $3)`).
		WithArgs(0, 1, 2).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`TRUNCATE "users"`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	res, err := m.SelectMax("status", "top").SelectAvg("status", "").SelectSum("bogus", "").Like("name", "a").Get(ctx, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res.Row()["top"])

	n, err := m.CountAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), n)

	require.NoError(t, m.Set("status", 0).Update(ctx, nil, qb.Where{"id": []int{1, 2}}, 0))
	require.NoError(t, m.Truncate(ctx))

	query, err := m.Select("id").Where("status", 1).Limit(2).CompiledSelect(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, `SELECT "id" FROM "users" WHERE "status" = 1 LIMIT 2`, query)

	query, err = m.InsertString(qb.Row{"name": "it's"})
	require.NoError(t, err)
	assert.Equal(t, `INSERT INTO "users" ("name") VALUES ('it''s')`, query)

	query, err = m.Where("id", 1).CompiledDelete(true)
	require.NoError(t, err)
	assert.Equal(t, `DELETE FROM "users" WHERE "id" = 1`, query)

	_, err = m.CompiledInsert(true)
	assert.True(t, ardent.IsAdapterFailure(err))
	require.NoError(t, mock.ExpectationsWereMet())
}
