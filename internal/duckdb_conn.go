package internal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/lychee-technology/sweet"
	"go.uber.org/zap"
)

// duckDBSettings returns the SET statements applying the resource limits
// of cfg. Zero values keep DuckDB's defaults.
func duckDBSettings(cfg sweet.DuckDBConfig) []string {
	var stmts []string
	if cfg.MemoryLimitMB > 0 {
		stmts = append(stmts, fmt.Sprintf("SET memory_limit = '%dMB'", cfg.MemoryLimitMB))
	}
	if cfg.MaxParallelism > 0 {
		stmts = append(stmts, fmt.Sprintf("SET threads = %d", cfg.MaxParallelism))
	}
	return stmts
}

// OpenDuckDB opens the DuckDB database at cfg.Path, or an in-memory one
// when the path is empty.
func OpenDuckDB(ctx context.Context, cfg sweet.DuckDBConfig) (*sql.DB, error) {
	if cfg.MaxConnections < 1 {
		return nil, fmt.Errorf("duckdb: maxConnections must be at least 1")
	}
	if cfg.MemoryLimitMB < 0 || cfg.MaxParallelism < 0 {
		return nil, fmt.Errorf("duckdb: memoryLimitMB and maxParallelism must be >= 0")
	}

	dsn := cfg.Path
	if dsn == "" {
		dsn = ":memory:"
	}
	db, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	// an in-memory database lives on a single connection
	if cfg.Path == "" {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxConnections)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping duckdb: %w", err)
	}

	for _, stmt := range duckDBSettings(cfg) {
		if _, err := db.ExecContext(pingCtx, stmt); err != nil {
			zap.S().Warnw("duckdb: setting rejected", "statement", stmt, "error", err)
		}
	}

	zap.S().Infow("duckdb opened", "path", dsn)
	return db, nil
}
