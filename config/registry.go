package config

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/syssam/ardent"
	"github.com/syssam/ardent/dialect"
	"github.com/syssam/ardent/dialect/sql"
	"github.com/syssam/ardent/model"
	"github.com/syssam/ardent/qb"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Registry opens connections on demand and builds the models of a Config.
// It is safe for concurrent use; the models it returns are not.
type Registry struct {
	cfg    *Config
	logger *slog.Logger
	cache  *ardent.MetadataCache

	mu    sync.Mutex
	conns map[string]*conn
}

type conn struct {
	drv   *sql.Driver
	stats *sql.StatsDriver
	b     *qb.Builder
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger passed to drivers, builders and models.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithCache replaces the metadata cache built from the configuration.
func WithCache(c *ardent.MetadataCache) Option {
	return func(r *Registry) {
		r.cache = c
	}
}

// NewRegistry returns a Registry over cfg. No connection is opened until a
// model or builder using it is requested.
func NewRegistry(cfg *Config, opts ...Option) (*Registry, error) {
	if cfg == nil {
		return nil, ardent.NewConfigurationError("registry", "", errors.New("nil config"))
	}
	if err := cfg.Validate(); err != nil {
		return nil, ardent.NewConfigurationError("registry", "", err)
	}
	r := &Registry{
		cfg:    cfg,
		logger: slog.Default(),
		conns:  make(map[string]*conn),
	}
	if !cfg.Cache.Disabled {
		r.cache = ardent.NewMetadataCache(ardent.NewMemoryCache(), cfg.Cache.TTL)
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Config returns the configuration the registry was built from.
func (r *Registry) Config() *Config { return r.cfg }

// Builder returns a fresh builder on the named connection.
func (r *Registry) Builder(name string) (*qb.Builder, error) {
	c, err := r.open(name)
	if err != nil {
		return nil, err
	}
	return c.b.Clone(), nil
}

// Model builds the named model on its own builder.
func (r *Registry) Model(name string, opts ...model.Option) (*model.Model, error) {
	cfg, ok := r.cfg.Models[name]
	if !ok {
		return nil, ardent.Errorf(ardent.KindConfiguration, "model", "", "undefined model %q", name)
	}
	b, err := r.Builder(ConnectionOf(cfg))
	if err != nil {
		return nil, err
	}
	base := []model.Option{model.WithName(name), model.WithLogger(r.logger)}
	if r.cache != nil {
		base = append(base, model.WithCache(r.cache))
	}
	return model.New(b, cfg, append(base, opts...)...)
}

// Stats returns the statement statistics of every opened connection that
// collects them.
func (r *Registry) Stats() map[string]sql.StatsSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := make(map[string]sql.StatsSnapshot, len(r.conns))
	for name, c := range r.conns {
		if c.stats != nil {
			stats[name] = c.stats.QueryStats().Stats()
		}
	}
	return stats
}

// Close closes every opened connection.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, name := range sortedKeys(r.conns) {
		if err := r.conns[name].drv.Close(); err != nil {
			errs = append(errs, fmt.Errorf("config: closing %q: %w", name, err))
		}
	}
	clear(r.conns)
	return errors.Join(errs...)
}

func (r *Registry) open(name string) (*conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.conns[name]; ok {
		return c, nil
	}
	cc, ok := r.cfg.Connections[name]
	if !ok {
		return nil, ardent.Errorf(ardent.KindConfiguration, "connect", "", "undefined connection %q", name)
	}
	drv, err := sql.Open(cc.Dialect, cc.DSN)
	if err != nil {
		return nil, ardent.NewConfigurationError("connect", "", fmt.Errorf("connection %q: %w", name, err))
	}
	if cc.MaxOpenConns > 0 {
		drv.DB().SetMaxOpenConns(cc.MaxOpenConns)
	}
	if cc.MaxIdleConns > 0 {
		drv.DB().SetMaxIdleConns(cc.MaxIdleConns)
	}
	c := &conn{drv: drv}
	var d dialect.Driver = drv
	if cc.Debug {
		d = sql.NewDebugDriver(d, r.logger)
	}
	if cc.SlowThreshold > 0 {
		c.stats = sql.NewStatsDriver(d,
			sql.WithSlowThreshold(cc.SlowThreshold),
			sql.WithSlowQueryLog(r.logger),
		)
		d = c.stats
	}
	c.b = qb.New(d, qb.WithPrefix(cc.Prefix), qb.WithLogger(r.logger))
	r.conns[name] = c
	r.logger.Debug("connection opened", "connection", name, "dialect", cc.Dialect)
	return c, nil
}
