//go:build cgo_sqlite

// CGO SQLite driver using mattn/go-sqlite3.
//
// Build with: go build -tags cgo_sqlite
// Requires: CGO_ENABLED=1
package internal

import (
	"net/url"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const (
	sqliteDriverName = "sqlite3"
	sqliteDriverType = "cgo"
)

func sqliteDSN(path string, busyTimeout time.Duration) string {
	q := url.Values{}
	q.Set("_foreign_keys", "on")
	q.Set("_busy_timeout", strconv.FormatInt(busyTimeout.Milliseconds(), 10))
	return path + "?" + q.Encode()
}
