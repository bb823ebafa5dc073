package model

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/syssam/ardent"
	"github.com/syssam/ardent/dialect"
	"github.com/syssam/ardent/dialect/sql"
	"github.com/syssam/ardent/qb"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
	_ "modernc.org/sqlite"
)

var usersConfig = Config{
	Table:      "users",
	PrimaryKey: "id",
	Columns:    ColumnList{"id", "name", "status", "is_deleted", "delete_time"},
}

const usersColumns = `"id", "name", "status", "is_deleted", "delete_time"`

func mockModel(t *testing.T, d string, cfg Config, opts ...Option) (*Model, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	m, err := New(qb.New(sql.OpenDB(d, db)), cfg, opts...)
	require.NoError(t, err)
	return m, mock
}

const usersDDL = `CREATE TABLE users (
	id INTEGER PRIMARY KEY,
	name VARCHAR(64) NOT NULL DEFAULT '',
	status INTEGER NOT NULL DEFAULT 0,
	is_deleted INTEGER NOT NULL DEFAULT 0,
	delete_time INTEGER NOT NULL DEFAULT 0
)`

func sqliteBuilder(t *testing.T) *qb.Builder {
	t.Helper()
	drv, err := sql.Open(dialect.SQLite, ":memory:")
	require.NoError(t, err)
	drv.DB().SetMaxOpenConns(1)
	t.Cleanup(func() { drv.Close() })
	require.NoError(t, drv.Exec(context.Background(), usersDDL, []any{}, nil))
	return qb.New(drv)
}

func TestTableName(t *testing.T) {
	tests := map[string]string{
		"UserModel":      "user",
		"user_model":     "user",
		"OrderItemModel": "order_item",
		"Model":          "model",
		"Account":        "account",
		"":               "",
	}
	for name, want := range tests {
		assert.Equal(t, want, TableName(name), name)
	}
}

type UserModel struct{ *Model }

func TestTableResolution(t *testing.T) {
	b := sqliteBuilder(t)

	m, err := New(b.Clone(), Config{}, WithName("ArticleModel"))
	require.NoError(t, err)
	assert.Equal(t, "article", m.Table())

	u := &UserModel{}
	u.Model, err = New(b.Clone(), Config{}, WithSelf(u))
	require.NoError(t, err)
	assert.Equal(t, "user", u.Table())

	require.NoError(t, u.SetTable("users"))
	assert.Equal(t, "users", u.Table())
	require.NoError(t, u.Resolve(context.Background()))
	err = u.SetTable("people")
	require.Error(t, err)
	assert.True(t, ardent.IsConfiguration(err))
	assert.Equal(t, "users", u.Table())

	m, err = New(qb.New(b.Driver(), qb.WithPrefix("app_")), Config{Table: "users"})
	require.NoError(t, err)
	assert.Equal(t, "app_users", m.PrefixedTable())
	assert.Equal(t, "app_users", m.DBPrefix())

	m, err = New(b.Clone(), Config{})
	require.NoError(t, err)
	_, err = m.Columns(context.Background())
	require.Error(t, err)
	assert.True(t, ardent.IsConfiguration(err))
}

func TestNewValidation(t *testing.T) {
	b := sqliteBuilder(t)
	_, err := New(nil, Config{})
	assert.True(t, ardent.IsConfiguration(err))
	_, err = New(b, Config{NullPolicy: "drop"})
	assert.True(t, ardent.IsConfiguration(err))
	_, err = New(b, Config{OrderBy: []Order{{Column: "id", Direction: "sideways"}}})
	assert.True(t, ardent.IsConfiguration(err))

	m, err := New(b, Config{Table: "users"})
	require.NoError(t, err)
	cfg := m.Config()
	assert.Equal(t, DefaultSoftDeleteColumn, cfg.SoftDeleteColumn)
	assert.Equal(t, DefaultSoftDeletedAtColumn, cfg.SoftDeletedAtColumn)
	assert.Equal(t, NullEmpty, cfg.NullPolicy)
	assert.Equal(t, DefaultConnection, cfg.Connection)
}

func TestColumns(t *testing.T) {
	ctx := context.Background()

	t.Run("configured", func(t *testing.T) {
		m, _ := mockModel(t, dialect.SQLite, Config{Table: "users", Columns: ColumnList{" id, name ", "status"}})
		columns, err := m.Columns(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name", "status"}, columns)
	})

	t.Run("introspected_once", func(t *testing.T) {
		b := sqliteBuilder(t)
		m, err := New(b, Config{Table: "users"})
		require.NoError(t, err)
		columns, err := m.Columns(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "name", "status", "is_deleted", "delete_time"}, columns)
		pk, err := m.PrimaryKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, "id", pk)

		queries := b.TotalQueries()
		_, err = m.Columns(ctx)
		require.NoError(t, err)
		_, err = m.PrimaryKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, queries, b.TotalQueries())
	})

	t.Run("missing_table", func(t *testing.T) {
		m, err := New(sqliteBuilder(t), Config{Table: "ghosts"})
		require.NoError(t, err)
		_, err = m.Columns(ctx)
		require.Error(t, err)
		assert.True(t, ardent.IsConfiguration(err))
		_, err = m.PrimaryKey(ctx)
		assert.True(t, ardent.IsConfiguration(err))
	})

	t.Run("metadata_cache", func(t *testing.T) {
		b := sqliteBuilder(t)
		cache := ardent.NewMetadataCache(ardent.NewMemoryCache(), time.Minute)
		m1, err := New(b.Clone(), Config{Table: "users"}, WithCache(cache))
		require.NoError(t, err)
		require.NoError(t, m1.Resolve(ctx))
		assert.Equal(t, 1, m1.Builder().TotalQueries(), "columns and key come from one introspection")

		m2, err := New(b.Clone(), Config{Table: "users"}, WithCache(cache))
		require.NoError(t, err)
		columns, err := m2.Columns(ctx)
		require.NoError(t, err)
		assert.Len(t, columns, 5)
		pk, err := m2.PrimaryKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, "id", pk)
		assert.Zero(t, m2.Builder().TotalQueries())
	})

	t.Run("metadata_cache_per_connection", func(t *testing.T) {
		cache := ardent.NewMetadataCache(ardent.NewMemoryCache(), 0)
		m1, err := New(sqliteBuilder(t), Config{Table: "users", Connection: "primary"}, WithCache(cache))
		require.NoError(t, err)
		columns, err := m1.Columns(ctx)
		require.NoError(t, err)
		assert.Len(t, columns, 5)

		drv, err := sql.Open(dialect.SQLite, ":memory:")
		require.NoError(t, err)
		drv.DB().SetMaxOpenConns(1)
		t.Cleanup(func() { drv.Close() })
		require.NoError(t, drv.Exec(ctx, "CREATE TABLE users (uid TEXT PRIMARY KEY, email TEXT)", []any{}, nil))
		m2, err := New(qb.New(drv), Config{Table: "users", Connection: "archive"}, WithCache(cache))
		require.NoError(t, err)
		columns, err = m2.Columns(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"uid", "email"}, columns)
		pk, err := m2.PrimaryKey(ctx)
		require.NoError(t, err)
		assert.Equal(t, "uid", pk)
	})
}

func TestAvailableColumns(t *testing.T) {
	ctx := context.Background()
	m, _ := mockModel(t, dialect.SQLite, usersConfig)
	all := []string(usersConfig.Columns)

	tests := []struct {
		name      string
		requested []string
		want      []string
	}{
		{"none", nil, all},
		{"star", []string{"*"}, all},
		{"blank", []string{""}, all},
		{"comma_separated", []string{"name, id"}, []string{"name", "id"}},
		{"list", []string{"status", "bogus", "id"}, []string{"status", "id"}},
		{"unknown_only", []string{"bogus"}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.AvailableColumns(ctx, tt.requested...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSanitize(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))

	m, _ := mockModel(t, dialect.SQLite, usersConfig, WithLogger(logger))
	data, err := m.Sanitize(ctx, qb.Row{"id": 1, "name": nil, "email": "a@b.c", "status": 0})
	require.NoError(t, err)
	assert.Equal(t, qb.Row{"id": 1, "name": "", "status": 0}, data)
	assert.Contains(t, logs.String(), "dropped unknown columns")
	assert.Contains(t, logs.String(), "email")

	data, err = m.Sanitize(ctx, qb.Row{"email": "a@b.c"})
	require.NoError(t, err)
	assert.Empty(t, data)

	cfg := usersConfig
	cfg.NullPolicy = NullKeep
	m, _ = mockModel(t, dialect.SQLite, cfg)
	data, err = m.Sanitize(ctx, qb.Row{"name": nil})
	require.NoError(t, err)
	assert.Equal(t, qb.Row{"name": nil}, data)
}

func TestConfigYAML(t *testing.T) {
	var cfg Config
	err := yaml.Unmarshal([]byte(`
table: posts
primary_key: post_id
columns: "post_id, title ,body"
order_by:
  - created_at desc
  - column: post_id
    direction: asc
soft_delete: true
null_policy: keep
uuid_key: true
`), &cfg)
	require.NoError(t, err)
	assert.Equal(t, "posts", cfg.Table)
	assert.Equal(t, "post_id", cfg.PrimaryKey)
	assert.Equal(t, ColumnList{"post_id", "title", "body"}, cfg.Columns)
	assert.Equal(t, []Order{{Column: "created_at", Direction: "desc"}, {Column: "post_id", Direction: "asc"}}, cfg.OrderBy)
	assert.True(t, cfg.SoftDelete)
	assert.Equal(t, NullKeep, cfg.NullPolicy)
	assert.True(t, cfg.UUIDKey)

	require.NoError(t, yaml.Unmarshal([]byte("columns: [\"a, b\", c]"), &cfg))
	assert.Equal(t, ColumnList{"a", "b", "c"}, cfg.Columns)

	require.Error(t, yaml.Unmarshal([]byte("columns: {a: b}"), &cfg))
	require.Error(t, yaml.Unmarshal([]byte("order_by: [\"a b c\"]"), &cfg))
}

func TestDeleteState(t *testing.T) {
	v, err := Deleted.Value()
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)
	v, err = Active.Value()
	require.NoError(t, err)
	assert.Equal(t, int64(0), v)
	assert.Equal(t, "deleted", Deleted.String())
	assert.Equal(t, "active", Active.String())
}
