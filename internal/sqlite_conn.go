package internal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lychee-technology/sweet"
	"go.uber.org/zap"
)

// SQLiteDriverType reports which sqlite implementation was compiled in:
// "purego" for modernc.org/sqlite, "cgo" for mattn/go-sqlite3.
func SQLiteDriverType() string {
	return sqliteDriverType
}

// OpenSQLite opens the sqlite database at cfg.Path with foreign keys
// enforced.
func OpenSQLite(ctx context.Context, cfg sweet.SQLiteConfig) (*sql.DB, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path cannot be empty")
	}
	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	db, err := sql.Open(sqliteDriverName, sqliteDSN(cfg.Path, busy))
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows a single writer
	db.SetMaxOpenConns(1)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	var fk int
	if err := db.QueryRowContext(pingCtx, "PRAGMA foreign_keys").Scan(&fk); err != nil {
		db.Close()
		return nil, fmt.Errorf("read sqlite foreign_keys pragma: %w", err)
	}
	if fk != 1 {
		zap.S().Warnw("sqlite: foreign keys are not enforced", "driver", sqliteDriverType)
	}

	zap.S().Infow("sqlite opened", "path", cfg.Path, "driver", sqliteDriverType)
	return db, nil
}
