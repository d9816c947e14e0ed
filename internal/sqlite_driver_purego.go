//go:build !cgo_sqlite

package internal

import (
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const (
	sqliteDriverName = "sqlite"
	sqliteDriverType = "purego"
)

func sqliteDSN(path string, busyTimeout time.Duration) string {
	return fmt.Sprintf("%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", path, busyTimeout.Milliseconds())
}
