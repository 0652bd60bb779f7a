package db

import (
	"errors"

	"github.com/oklog/ulid/v2"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("not found")

func (db *DB) GenDocumentID() string { return ulid.Make().String() }

func (db *DB) WithTx(fn func(tx *gorm.DB) error) error {
	return db.DB.Transaction(func(tx *gorm.DB) error { return fn(tx) })
}
