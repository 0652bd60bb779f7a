package db

import (
	"fmt"

	"gorm.io/gorm"
)

type DB struct {
	*gorm.DB
}

func New(gormDB *gorm.DB) *DB { return &DB{gormDB} }

func (db *DB) AutoMigrate() error {
	if err := db.DB.AutoMigrate(&Document{}); err != nil {
		return err
	}
	return db.ensureIndexes()
}

func (db *DB) ensureIndexes() error {
	stmts := []string{
		// lookups are always (authority, id)
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_documents_authority_id ON documents (authority, id)`,
		`CREATE INDEX IF NOT EXISTS ix_documents_path ON documents (path)`,
	}

	for i, s := range stmts {
		if err := db.DB.Exec(s).Error; err != nil {
			return fmt.Errorf("ensureIndexes step %d failed: %w", i, err)
		}
	}
	return nil
}

func (db *DB) DSN(path string) string {
	// WAL + FK + busy timeout
	return fmt.Sprintf("%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", path)
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
