package config

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/syssam/ardent"
	"github.com/syssam/ardent/dialect"
	"github.com/syssam/ardent/model"
	"github.com/syssam/ardent/qb"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const document = `
connections:
  default:
    dialect: sqlite
    dsn: ${ARDENT_TEST_DSN}
    max_open_conns: 1
    slow_threshold: 1h
  reports:
    dialect: postgres
    dsn: postgres://localhost/reports
    prefix: rpt_
    debug: true
models:
  users:
    table: users
    primary_key: id
    soft_delete: true
    order_by: [id desc]
  daily:
    connection: reports
    columns: day, total
cache:
  ttl: 10m
`

func TestParse(t *testing.T) {
	t.Setenv("ARDENT_TEST_DSN", "file::memory:")
	cfg, err := Parse([]byte(document))
	require.NoError(t, err)

	require.Len(t, cfg.Connections, 2)
	def := cfg.Connections["default"]
	assert.Equal(t, dialect.SQLite, def.Dialect)
	assert.Equal(t, "file::memory:", def.DSN)
	assert.Equal(t, 1, def.MaxOpenConns)
	assert.Equal(t, time.Hour, def.SlowThreshold)
	assert.Equal(t, "rpt_", cfg.Connections["reports"].Prefix)
	assert.True(t, cfg.Connections["reports"].Debug)

	assert.Equal(t, []string{"daily", "users"}, cfg.ModelNames())
	users := cfg.Models["users"]
	assert.Equal(t, "users", users.Table)
	assert.True(t, users.SoftDelete)
	assert.Equal(t, []model.Order{{Column: "id", Direction: "desc"}}, users.OrderBy)
	assert.Equal(t, model.DefaultConnection, ConnectionOf(users))
	assert.Equal(t, "reports", ConnectionOf(cfg.Models["daily"]))
	assert.Equal(t, model.ColumnList{"day", "total"}, cfg.Models["daily"].Columns)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)

	cfg, err = Parse(nil)
	require.NoError(t, err)
	assert.Empty(t, cfg.Models)
}

func TestParseExpand(t *testing.T) {
	t.Setenv("ARDENT_TEST_USER", "app")
	cfg, err := Parse([]byte(`
connections:
  default:
    dialect: mysql
    dsn: $ARDENT_TEST_USER:pa$$word@tcp(db:3306)/app
    prefix: $ARDENT_TEST_USER
`))
	require.NoError(t, err)
	conn := cfg.Connections["default"]
	assert.Equal(t, "app:pa$word@tcp(db:3306)/app", conn.DSN)
	assert.Equal(t, "$ARDENT_TEST_USER", conn.Prefix, "only dsn is expanded")

	assert.Equal(t, "a$b", ExpandEnv("a$$b"))
	assert.Equal(t, "x-app", ExpandEnv("x-${ARDENT_TEST_USER}"))
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"unknown_field", "connections:\n  default:\n    dialect: sqlite\n    dsn: x\n    pool: 3\n", "pool"},
		{"dialect", "connections:\n  default:\n    dialect: oracle\n    dsn: x\n", `unsupported dialect "oracle"`},
		{"dsn", "connections:\n  default:\n    dialect: mysql\n", `connection "default": missing dsn`},
		{"threshold", "connections:\n  default:\n    dialect: mysql\n    dsn: x\n    slow_threshold: -1s\n", "negative slow_threshold"},
		{"connection", "models:\n  users:\n    table: users\n", `model "users": undefined connection "default"`},
		{"order", "connections:\n  default:\n    dialect: mysql\n    dsn: x\nmodels:\n  users:\n    order_by: [\"a b c\"]\n", "order"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ardent.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connections:\n  default:\n    dialect: mysql\n"), 0o600))
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRegistry(t *testing.T) {
	ctx := context.Background()
	t.Setenv("ARDENT_TEST_DSN", ":memory:")
	path := filepath.Join(t.TempDir(), "ardent.yaml")
	require.NoError(t, os.WriteFile(path, []byte(document), 0o600))
	cfg, err := Load(path)
	require.NoError(t, err)

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	r, err := NewRegistry(cfg, WithLogger(logger))
	require.NoError(t, err)
	t.Cleanup(func() { r.Close() })

	b, err := r.Builder(model.DefaultConnection)
	require.NoError(t, err)
	require.NoError(t, b.Driver().Exec(ctx, `CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		is_deleted INTEGER NOT NULL DEFAULT 0,
		delete_time INTEGER NOT NULL DEFAULT 0
	)`, []any{}, nil))

	users, err := r.Model("users")
	require.NoError(t, err)
	assert.Equal(t, "users", users.Table())
	require.NoError(t, users.BatchCreate(ctx, []qb.Row{{"id": 1, "name": "a"}, {"id": 2, "name": "b"}}))
	require.NoError(t, users.Delete(ctx, qb.Where{"id": 1}, 0))

	again, err := r.Model("users")
	require.NoError(t, err)
	assert.NotSame(t, users.Builder(), again.Builder())
	rows, err := again.ScopeUndeleted().Find(ctx, nil, "name")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0]["name"])
	assert.Equal(t, 1, again.Builder().TotalQueries(), "columns come from the shared cache")

	stats := r.Stats()
	require.Contains(t, stats, model.DefaultConnection)
	assert.Positive(t, stats[model.DefaultConnection].TotalExecs)
	assert.Zero(t, stats[model.DefaultConnection].SlowQueries)
	assert.Contains(t, logs.String(), "connection opened")

	_, err = r.Model("ghosts")
	assert.True(t, ardent.IsConfiguration(err))
	_, err = r.Builder("nowhere")
	assert.True(t, ardent.IsConfiguration(err))

	require.NoError(t, r.Close())
	assert.Empty(t, r.Stats())
}

func TestNewRegistry(t *testing.T) {
	_, err := NewRegistry(nil)
	assert.True(t, ardent.IsConfiguration(err))

	_, err = NewRegistry(&Config{Connections: map[string]Connection{"default": {Dialect: "oracle"}}})
	assert.True(t, ardent.IsConfiguration(err))

	cache := ardent.NewMetadataCache(ardent.NewMemoryCache(), 0)
	r, err := NewRegistry(&Config{Cache: Cache{Disabled: true}}, WithCache(cache))
	require.NoError(t, err)
	assert.Same(t, cache, r.cache)
	assert.NotNil(t, r.Config())
	require.NoError(t, r.Close())
}
