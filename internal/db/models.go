package db

import "time"

// Document is one content reference handed out by the provider.
// Locator form: content://<Authority>/<ID>
type Document struct {
	ID          string    `gorm:"primaryKey;size:26"` // ulid
	Authority   string    `gorm:"size:255;not null"`
	Path        string    `gorm:"not null"` // absolute path of the backing file
	DisplayName string    `gorm:"size:1024"`
	MimeType    string    `gorm:"size:255;default:application/octet-stream"`
	Size        int64     `gorm:"not null;default:0"` // size at registration time
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}
