package db

import (
	"github.com/glebarez/sqlite" // pure Go, no cgo toolchain needed
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func OpenSQLite(path string) (*DB, error) {
	g, err := gorm.Open(sqlite.Open((&DB{}).DSN(path)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	db := New(g)
	return db, db.AutoMigrate()
}
