// Package migrations embeds the goose SQL migrations for every supported
// database driver.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

var dialects = map[string]goose.Dialect{
	"postgres": goose.DialectPostgres,
	"sqlite":   goose.DialectSQLite3,
}

// FS returns the migrations of driver ("postgres" or "sqlite") rooted at the
// migration files.
func FS(driver string) (fs.FS, error) {
	if _, ok := dialects[driver]; !ok {
		return nil, fmt.Errorf("no migrations for driver %q", driver)
	}
	return fs.Sub(files, driver)
}

// NewProvider returns a goose provider applying driver's migrations to db.
func NewProvider(driver string, db *sql.DB) (*goose.Provider, error) {
	fsys, err := FS(driver)
	if err != nil {
		return nil, err
	}
	provider, err := goose.NewProvider(dialects[driver], db, fsys)
	if err != nil {
		return nil, fmt.Errorf("goose provider: %w", err)
	}
	return provider, nil
}
