package database

import (
	"fmt"
	"strings"

	"crosplit/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type Database struct {
	DB *gorm.DB
}

func New(databaseURL string, autoMigrate bool) (*Database, error) {
	var db *gorm.DB
	var err error

	gormConfig := &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Warn),
		DisableForeignKeyConstraintWhenMigrating: true,
	}

	if strings.HasPrefix(databaseURL, "sqlite://") {
		// SQLite for development
		dbPath := strings.TrimPrefix(databaseURL, "sqlite://")
		db, err = gorm.Open(sqlite.Open(dbPath), gormConfig)
	} else {
		// PostgreSQL for production
		db, err = gorm.Open(postgres.Open(databaseURL), gormConfig)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	d := &Database{DB: db}

	// Production schema is owned by the migration tool; this is for local runs.
	if autoMigrate {
		if err := d.Migrate(); err != nil {
			return nil, err
		}
	}

	return d, nil
}

// Wrap adopts an already opened gorm handle.
func Wrap(db *gorm.DB) *Database {
	return &Database{DB: db}
}

func (d *Database) Migrate() error {
	err := d.DB.AutoMigrate(
		&models.OriginalPage{},
		&models.DuplicatePage{},
		&models.Experiment{},
		&models.Variant{},
		&models.Setting{},
	)
	if err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
