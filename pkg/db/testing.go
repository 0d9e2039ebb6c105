package db

import (
	glebarez "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTest opens an isolated in-memory database for tests.
func NewTest() (*gorm.DB, error) {
	return gorm.Open(glebarez.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
}
