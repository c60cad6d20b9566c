package database

import (
	"fmt"
	"sync"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	db      *gorm.DB
	once    sync.Once
	openErr error
)

// Connect opens the postgres connection once per process.
func Connect(dsn string) (*gorm.DB, error) {
	once.Do(func() {
		if dsn == "" {
			openErr = fmt.Errorf("DATABASE_URL is required for the postgres storage driver")
			return
		}
		db, openErr = gorm.Open(postgres.Open(dsn), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Warn),
		})
		if openErr != nil {
			openErr = fmt.Errorf("failed to connect database: %w", openErr)
		}
	})
	return db, openErr
}
