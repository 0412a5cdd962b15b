//go:build cgo && sqlite3_cgo

package db

import (
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

const driverID = "mattn/go-sqlite3"
const driverName = "sqlite3"

func buildDSN(cfg *config) string {
	q := url.Values{}
	q.Set("_busy_timeout", fmt.Sprintf("%d", cfg.busyTimeout.Milliseconds()))
	q.Set("_foreign_keys", "on")

	if cfg.path == MemoryPath {
		return "file::memory:?" + q.Encode()
	}

	q.Set("_journal_mode", cfg.journalMode)
	q.Set("_txlock", "immediate")
	q.Set("mode", "rwc")
	return "file:" + cfg.path + "?" + q.Encode()
}
