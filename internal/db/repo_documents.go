package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
)

type DocumentMeta struct {
	ID          string
	Authority   string
	Path        string
	DisplayName string
	MimeType    string
	Size        int64
	CreatedAt   time.Time
}

func toMeta(d *Document) *DocumentMeta {
	return &DocumentMeta{
		ID: d.ID, Authority: d.Authority, Path: d.Path, DisplayName: d.DisplayName,
		MimeType: d.MimeType, Size: d.Size, CreatedAt: d.CreatedAt,
	}
}

// CreateDocument registers path under authority. Registering the same path
// twice returns the existing reference with a refreshed size.
func (db *DB) CreateDocument(ctx context.Context, authority, path, displayName, mimeType string, size int64) (*DocumentMeta, error) {
	var out *DocumentMeta
	err := db.WithTx(func(tx *gorm.DB) error {
		tx = tx.WithContext(ctx)
		var existing Document
		err := tx.Where("authority = ? AND path = ?", authority, path).Take(&existing).Error
		switch {
		case err == nil:
			if err := tx.Model(&existing).Update("size", size).Error; err != nil {
				return err
			}
			existing.Size = size
			out = toMeta(&existing)
			return nil
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return err
		}

		doc := Document{
			ID: db.GenDocumentID(), Authority: authority, Path: path,
			DisplayName: displayName, MimeType: mimeType, Size: size,
		}
		if err := tx.Create(&doc).Error; err != nil {
			return err
		}
		out = toMeta(&doc)
		return nil
	})
	return out, err
}

func (db *DB) GetDocument(ctx context.Context, authority, id string) (*DocumentMeta, error) {
	var d Document
	if err := db.WithContext(ctx).Take(&d, "authority = ? AND id = ?", authority, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return toMeta(&d), nil
}

// QueryDocuments walks the rows matching (authority, id) through a cursor
// and calls fn for each one. The cursor is closed on every return path.
// It returns the number of rows visited.
func (db *DB) QueryDocuments(ctx context.Context, authority, id string, fn func(DocumentMeta) error) (int, error) {
	rows, err := db.WithContext(ctx).Model(&Document{}).
		Where("authority = ? AND id = ?", authority, id).Rows()
	if err != nil {
		return 0, err
	}
	defer rows.Close()

	n := 0
	for rows.Next() {
		var d Document
		if err := db.ScanRows(rows, &d); err != nil {
			return n, err
		}
		n++
		if fn != nil {
			if err := fn(*toMeta(&d)); err != nil {
				return n, err
			}
		}
	}
	return n, rows.Err()
}

func (db *DB) DeleteDocument(ctx context.Context, authority, id string) error {
	res := db.WithContext(ctx).Where("authority = ? AND id = ?", authority, id).Delete(&Document{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (db *DB) ListDocuments(ctx context.Context, authority string) ([]DocumentMeta, error) {
	var docs []Document
	if err := db.WithContext(ctx).Where("authority = ?", authority).
		Order("created_at ASC, id ASC").Find(&docs).Error; err != nil {
		return nil, err
	}
	out := make([]DocumentMeta, 0, len(docs))
	for i := range docs {
		out = append(out, *toMeta(&docs[i]))
	}
	return out, nil
}
