package repository

import (
	"errors"
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/Debayan00100101/chatt/internal/models"
)

var ErrCreateDatabase = errors.New("cannot create a database")

// Open connects to the sqlite database at dsn and runs migrations.
// WAL plus a busy timeout lets concurrent sessions queue on the write lock
// instead of failing with SQLITE_BUSY, and the pool is pinned to a single
// connection so every transaction serializes through the engine.
func Open(dsn string) (*gorm.DB, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?_busy_timeout=5000&_journal_mode=WAL"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, ErrCreateDatabase
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, ErrCreateDatabase
	}
	sqlDB.SetMaxOpenConns(1)
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("failed to migrate: %w", err)
	}
	return nil
}
