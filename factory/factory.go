package factory

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/sweet"
	"github.com/lychee-technology/sweet/internal"
	"github.com/lychee-technology/sweet/internal/filestorage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

// PostgresPool is the subset of *pgxpool.Pool the factory needs.
type PostgresPool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// Runtime bundles everything a binary needs to serve schema operations.
type Runtime struct {
	Config   *sweet.Config
	Manager  sweet.SchemaManager
	Store    internal.SchemaStore
	Archive  filestorage.Storage
	Registry *prometheus.Registry
}

// Close releases the database handle and unregisters the metrics emitter.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	if r.Registry != nil {
		internal.RegisterTelemetryEmitter(nil)
	}
	if r.Store != nil {
		return r.Store.Close()
	}
	return nil
}

// Health probes the database and the archive.
func (r *Runtime) Health(ctx context.Context) internal.HealthReport {
	return internal.CheckHealth(ctx, r.Store, r.Archive, 3*time.Second)
}

// Open connects to the configured database, makes sure the registry table
// exists and assembles a SchemaManager around it.
//
// Usage:
//
//	cfg, err := sweet.LoadConfig("config.yaml")
//	if err != nil {
//	    // handle error
//	}
//	rt, err := factory.Open(ctx, cfg)
//	if err != nil {
//	    // handle error
//	}
//	defer rt.Close()
//	rec, err := rt.Manager.CreateSchema(ctx, raw)
func Open(ctx context.Context, config *sweet.Config) (*Runtime, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	validator, err := NewSchemaValidator(config.MetaSchema)
	if err != nil {
		return nil, fmt.Errorf("build meta-schema: %w", err)
	}

	store, err := OpenStore(ctx, config)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureSchemaTable(ctx); err != nil {
		store.Close()
		return nil, err
	}

	archive, err := filestorage.New(ctx, config.Storage)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open schema archive: %w", err)
	}

	rt := &Runtime{
		Config:  config,
		Manager: internal.NewSchemaManager(validator, store, archive, config),
		Store:   store,
		Archive: archive,
	}

	if config.Metrics.Enabled {
		rt.Registry = NewMetricsRegistry(config.Metrics)
	}

	zap.S().Infow("schema runtime ready",
		"dialect", store.Dialect(),
		"archive", config.Storage.Backend,
		"metrics", config.Metrics.Enabled)
	return rt, nil
}

// NewMetricsRegistry creates a registry with the Go and process collectors
// and routes manager telemetry into it.
func NewMetricsRegistry(cfg sweet.MetricsConfig) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	namespace := cfg.Namespace
	if namespace == "" {
		namespace = "sweet"
	}
	internal.RegisterTelemetryEmitter(internal.NewPrometheusEmitter(reg, namespace))
	return reg
}

// NewSchemaValidator composes the configured meta-schemas.
func NewSchemaValidator(cfg sweet.MetaSchemaConfig) (*internal.SchemaValidator, error) {
	var base *sweet.SchemaSource
	if cfg.BasePath != "" {
		src := sweet.FromPath(cfg.BasePath)
		base = &src
	}

	var extensions []sweet.SchemaSource
	switch {
	case len(cfg.ExtensionPaths) > 0:
		for _, p := range cfg.ExtensionPaths {
			extensions = append(extensions, sweet.FromPath(p))
		}
	case cfg.DisableDefaultExtension:
		extensions = []sweet.SchemaSource{}
	}

	meta, err := internal.NewMetaSchema(base, extensions)
	if err != nil {
		return nil, err
	}
	return internal.NewSchemaValidator(meta), nil
}

// OpenStore opens the schema store for the configured dialect and driver.
func OpenStore(ctx context.Context, config *sweet.Config) (internal.SchemaStore, error) {
	dialect, err := sweet.ParseDialect(config.Database.Dialect)
	if err != nil {
		return nil, err
	}
	table := config.Database.SchemaTable

	switch dialect {
	case sweet.DialectSQLite:
		db, err := internal.OpenSQLite(ctx, config.SQLite)
		if err != nil {
			return nil, err
		}
		return internal.NewSQLSchemaStore(db, dialect, table)
	case sweet.DialectDuckDB:
		db, err := internal.OpenDuckDB(ctx, config.DuckDB)
		if err != nil {
			return nil, err
		}
		return internal.NewSQLSchemaStore(db, dialect, table)
	default:
		if config.Database.Driver == "pq" {
			db, err := internal.OpenPostgresSQL(ctx, config.Database)
			if err != nil {
				return nil, err
			}
			return internal.NewSQLSchemaStore(db, dialect, table)
		}
		pool, err := internal.NewPostgresPool(ctx, config.Database)
		if err != nil {
			return nil, err
		}
		return internal.NewPostgresSchemaStore(pool, table), nil
	}
}

// NewSchemaManagerWithConfig creates a SchemaManager over an existing pool.
// The registry table must already exist; run the init-db tool first.
func NewSchemaManagerWithConfig(ctx context.Context, config *sweet.Config, pool PostgresPool) (sweet.SchemaManager, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}

	if err := verifyRegistryTable(ctx, pool, config.Database.SchemaTable); err != nil {
		return nil, err
	}

	validator, err := NewSchemaValidator(config.MetaSchema)
	if err != nil {
		return nil, fmt.Errorf("build meta-schema: %w", err)
	}
	archive, err := filestorage.New(ctx, config.Storage)
	if err != nil {
		return nil, fmt.Errorf("open schema archive: %w", err)
	}

	store := internal.NewPostgresSchemaStore(pool, config.Database.SchemaTable)
	return internal.NewSchemaManager(validator, store, archive, config), nil
}

var errRegistryMissing = errors.New("schema registry table is missing")

func verifyRegistryTable(ctx context.Context, pool PostgresPool, table string) error {
	rows, err := pool.Query(ctx, `SELECT table_name FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_type = 'BASE TABLE'`)
	if err != nil {
		return fmt.Errorf("failed to verify database connection: %w", err)
	}
	tables, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return fmt.Errorf("failed to scan table names: %w", err)
	}
	if !slices.Contains(tables, table) {
		return fmt.Errorf("%w: %s", errRegistryMissing, table)
	}
	return nil
}
