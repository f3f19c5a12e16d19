// Package migrate applies the schema in migrations/ on process start.
// Grounded on dmitrymomot-saaskit's pkg/pg/migrate.go (same
// pressly/goose/v3 usage), adapted from that repo's pgx bridge to the
// plain database/sql handle wb-go/wbf/dbpg already hands us.
package migrate

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var files embed.FS

// Up applies every pending migration embedded in this package against db.
func Up(db *sql.DB) error {
	goose.SetBaseFS(files)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}
