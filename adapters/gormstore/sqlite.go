package gormstore

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

// OpenSQLite opens a pure-Go (cgo-free) sqlite database at dsn and returns a
// RecordManager backed by it. dsn follows glebarez/sqlite's conventions,
// e.g. "file:events.db?cache=shared&mode=rwc" or ":memory:" for an
// ephemeral, process-local store.
func OpenSQLite(dsn string) (*RecordManager, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("gormstore: opening sqlite %q: %w", dsn, err)
	}
	return New(db)
}
