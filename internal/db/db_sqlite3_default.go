//go:build !sqlite3_cgo

package db

import (
	"fmt"
	"net/url"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

const driverID = "ncruces/go-sqlite3"
const driverName = "sqlite3"

// ncruces applies each _pragma on every new connection
func buildDSN(cfg *config) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", cfg.busyTimeout.Milliseconds()))
	q.Add("_pragma", "foreign_keys(1)")
	q.Add("_pragma", "temp_store(memory)")

	if cfg.path == MemoryPath {
		return "file::memory:?" + q.Encode()
	}

	q.Add("_pragma", fmt.Sprintf("journal_mode(%s)", cfg.journalMode))
	q.Set("_txlock", "immediate")
	q.Set("mode", "rwc")
	return "file:" + cfg.path + "?" + q.Encode()
}
