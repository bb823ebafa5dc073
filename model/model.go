package model

import (
	"context"
	"errors"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/syssam/ardent"
	"github.com/syssam/ardent/qb"

	"github.com/go-openapi/inflect"
	"github.com/google/uuid"
)

// Model is a table-bound facade over a qb.Builder. It resolves the table,
// its columns and its primary key once, sanitizes write payloads against the
// resolved columns and rewrites deletes into updates when soft delete is
// enabled.
//
// The pending query state lives in the underlying Builder, so a Model is
// owned by one goroutine at a time. The resolution caches are safe for
// concurrent use.
type Model struct {
	b      *qb.Builder
	cfg    Config
	name   string
	self   any
	cache  *ardent.MetadataCache
	now    func() time.Time
	newID  func() string
	logger *slog.Logger

	mu       sync.Mutex
	table    string
	columns  []string
	resolved bool // columns
	pk       string
	pkLoaded bool

	// deferred select calls, applied with the resolved columns when the
	// next SELECT runs.
	selects []func([]string)
}

// Option configures a Model.
type Option func(*Model)

// WithName sets the type name the table name is derived from when the
// configuration does not name a table. For example, "UserModel" and
// "user_model" both map to the "user" table.
func WithName(name string) Option {
	return func(m *Model) {
		m.name = name
	}
}

// WithSelf registers the value embedding the Model. Call looks up methods
// on it before the Model and the Builder, and its type name is used for
// the table name convention unless WithName is given.
//
//	type UserModel struct{ *model.Model }
//
//	u := &UserModel{}
//	u.Model, err = model.New(b, model.Config{}, model.WithSelf(u))
func WithSelf(v any) Option {
	return func(m *Model) {
		m.self = v
	}
}

// WithCache shares resolved metadata through c instead of introspecting
// the table for every Model instance. Entries are keyed by Config.Connection
// and the prefixed table name.
func WithCache(c *ardent.MetadataCache) Option {
	return func(m *Model) {
		m.cache = c
	}
}

// WithClock sets the clock used for soft-delete timestamps. Default is time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Model) {
		if now != nil {
			m.now = now
		}
	}
}

// WithIDGenerator sets the generator of primary keys for models with
// uuid_key enabled. Default is uuid.NewString.
func WithIDGenerator(gen func() string) Option {
	return func(m *Model) {
		if gen != nil {
			m.newID = gen
		}
	}
}

// WithLogger sets the logger used for dropped payload keys and
// short-circuited writes. Default is slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// New returns a Model bound to b. The Model takes ownership of b: its
// default ordering is installed on b and its pending state is consumed by
// the Model operations. Use b.Clone() to share a connection between models.
func New(b *qb.Builder, cfg Config, opts ...Option) (*Model, error) {
	if b == nil {
		return nil, ardent.NewConfigurationError("new", cfg.Table, errors.New("nil builder"))
	}
	cfg.defaults()
	if err := cfg.validate(); err != nil {
		return nil, ardent.NewConfigurationError("new", cfg.Table, err)
	}
	m := &Model{
		b:      b,
		cfg:    cfg,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.name == "" && m.self != nil {
		m.name = typeName(m.self)
	}
	m.table = cfg.Table
	if m.table == "" {
		m.table = TableName(m.name)
	}
	if len(cfg.Columns) > 0 {
		m.columns = ParseColumns(cfg.Columns...)
		m.resolved = true
	}
	if cfg.PrimaryKey != "" {
		m.pk = cfg.PrimaryKey
		m.pkLoaded = true
	}
	if len(cfg.OrderBy) > 0 {
		terms := make([]string, len(cfg.OrderBy))
		for i, o := range cfg.OrderBy {
			terms[i] = qb.OrderTerm(o.Column, o.Direction)
		}
		b.SetDefaultOrder(terms...)
	}
	return m, nil
}

// TableName derives a table name from a model type name: the name is
// snake-cased and lower-cased, and a trailing "_model" is removed.
func TableName(name string) string {
	if name == "" {
		return ""
	}
	table := strings.ToLower(inflect.Underscore(name))
	if t := strings.TrimSuffix(table, "_model"); t != "" {
		table = t
	}
	return table
}

func typeName(v any) string {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

// Builder returns the underlying query builder.
func (m *Model) Builder() *qb.Builder { return m.b }

// Config returns the configuration of the model, with defaults applied.
func (m *Model) Config() Config { return m.cfg }

// Table returns the unprefixed table name.
func (m *Model) Table() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table
}

// PrefixedTable returns the table name with the connection prefix.
func (m *Model) PrefixedTable() string {
	return m.b.DBPrefix(m.Table())
}

// SetTable overrides the table name. It fails once the columns or the
// primary key of the previous table were resolved.
func (m *Model) SetTable(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name == "" {
		return ardent.NewConfigurationError("set_table", m.table, errors.New("empty table name"))
	}
	if (m.resolved && len(m.cfg.Columns) == 0) || (m.pkLoaded && m.cfg.PrimaryKey == "") {
		return ardent.Errorf(ardent.KindConfiguration, "set_table", m.table, "metadata already resolved, cannot switch to %q", name)
	}
	m.table = name
	return nil
}

// Resolve resolves the columns and the primary key of the table.
func (m *Model) Resolve(ctx context.Context) error {
	if _, err := m.Columns(ctx); err != nil {
		return err
	}
	_, err := m.PrimaryKey(ctx)
	return err
}

// Columns returns the columns of the table: the configured list, or the
// table fields reported by the database. The result is cached.
func (m *Model) Columns(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.resolved {
		return m.columns, nil
	}
	if m.table == "" {
		return nil, ardent.NewConfigurationError("columns", "", errNoTable)
	}
	var columns []string
	if m.cache != nil {
		meta, err := m.loadMeta(ctx)
		if err != nil {
			return nil, ardent.NewConfigurationError("columns", m.table, err)
		}
		columns = meta.Columns
		if !m.pkLoaded {
			m.pk, m.pkLoaded = meta.PrimaryKey, true
		}
	} else {
		var err error
		if columns, err = m.b.ListFields(ctx, m.table); err != nil {
			return nil, ardent.NewConfigurationError("columns", m.table, err)
		}
	}
	m.columns, m.resolved = columns, true
	return m.columns, nil
}

// PrimaryKey returns the primary key column: the configured one, or the
// one reported by the database. The result is cached.
func (m *Model) PrimaryKey(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pkLoaded {
		return m.pk, nil
	}
	if m.table == "" {
		return "", ardent.NewConfigurationError("primary_key", "", errNoTable)
	}
	var pk string
	if m.cache != nil {
		meta, err := m.loadMeta(ctx)
		if err != nil {
			return "", ardent.NewConfigurationError("primary_key", m.table, err)
		}
		pk = meta.PrimaryKey
	} else {
		var err error
		if pk, err = m.b.Primary(ctx, m.table); err != nil {
			return "", ardent.NewConfigurationError("primary_key", m.table, err)
		}
	}
	m.pk, m.pkLoaded = pk, true
	return m.pk, nil
}

// loadMeta loads the table metadata through the shared cache.
// It must be called with mu held.
func (m *Model) loadMeta(ctx context.Context) (*ardent.TableMeta, error) {
	key := ardent.CacheKey{Connection: m.cfg.Connection, Table: m.b.DBPrefix(m.table)}
	table := m.table
	return m.cache.Load(ctx, key, func(ctx context.Context) (*ardent.TableMeta, error) {
		fields, err := m.b.FieldData(ctx, table)
		if err != nil {
			return nil, err
		}
		meta := &ardent.TableMeta{Table: key.Table, Columns: make([]string, len(fields)), ResolvedAt: m.now()}
		for i, f := range fields {
			meta.Columns[i] = f.Name
			if f.PrimaryKey && meta.PrimaryKey == "" {
				meta.PrimaryKey = f.Name
			}
		}
		if meta.PrimaryKey == "" {
			meta.PrimaryKey = fields[0].Name
		}
		return meta, nil
	})
}

// AvailableColumns intersects the requested columns with the table columns.
// Each request may hold several comma-separated names. Unknown names are
// dropped and the requested order is kept. No request, or "*", returns all
// columns.
func (m *Model) AvailableColumns(ctx context.Context, requested ...string) ([]string, error) {
	columns, err := m.Columns(ctx)
	if err != nil {
		return nil, err
	}
	return intersect(columns, requested), nil
}

func intersect(columns, requested []string) []string {
	names := ParseColumns(requested...)
	if len(names) == 0 || (len(names) == 1 && names[0] == "*") {
		return append([]string(nil), columns...)
	}
	known := columnSet(columns)
	available := make([]string, 0, len(names))
	for _, n := range names {
		if known[n] {
			available = append(available, n)
		}
	}
	return available
}

// Sanitize returns the entries of payload whose key is a table column.
// Under the NullEmpty policy, nil values are replaced with "".
func (m *Model) Sanitize(ctx context.Context, payload map[string]any) (qb.Row, error) {
	columns, err := m.Columns(ctx)
	if err != nil {
		return nil, err
	}
	known := columnSet(columns)
	data := make(qb.Row, len(payload))
	var dropped []string
	for k, v := range payload {
		if !known[k] {
			dropped = append(dropped, k)
			continue
		}
		if v == nil && m.cfg.NullPolicy == NullEmpty {
			v = ""
		}
		data[k] = v
	}
	if len(dropped) > 0 {
		m.logger.DebugContext(ctx, "dropped unknown columns", "table", m.Table(), "columns", dropped)
	}
	return data, nil
}

func columnSet(columns []string) map[string]bool {
	set := make(map[string]bool, len(columns))
	for _, c := range columns {
		set[c] = true
	}
	return set
}
