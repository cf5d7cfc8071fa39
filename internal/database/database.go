package database

import (
	"fmt"

	"github.com/cargoflow/tradeops-api/internal/config"
	"github.com/cargoflow/tradeops-api/internal/database/migrations"
	"github.com/cargoflow/tradeops-api/internal/types"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewDatabase initializes and returns a new GORM DB connection. SQLite is
// the default for development and tests; PostgreSQL is selected with
// DB_DRIVER=postgres and a DSN.
func NewDatabase(cfg config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case "postgres":
		dialector = postgres.Open(cfg.DBDSN)
	case "sqlite", "":
		dialector = sqlite.Open(cfg.DBDSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if err := Migrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// Migrate creates the schema and supporting indexes. Split out from
// NewDatabase so tests can run it against their own connections.
func Migrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&types.Need{},
		&types.Request{},
		&types.Contract{},
		&types.Vessel{},
		&types.LetterOfCredit{},
		&types.VesselLetterOfCredit{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	if err := migrations.AddProgressIndexes(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}
