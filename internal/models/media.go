package models

import (
	"time"

	"gorm.io/gorm"
)

// MediaKind represents what an uploaded file is used for
type MediaKind string

const (
	MediaKindScreenshot MediaKind = "screenshot"
	MediaKindAttachment MediaKind = "attachment"
)

// Media is an uploaded file kept in the object store
type Media struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"index;not null" json:"user_id"`
	TradeID        *uint          `gorm:"index" json:"trade_id,omitempty"`
	JournalEntryID *uint          `gorm:"index" json:"journal_entry_id,omitempty"`
	Kind           MediaKind      `gorm:"size:20;not null" json:"kind"`
	ObjectKey      string         `gorm:"size:255;not null;uniqueIndex" json:"-"`
	ContentType    string         `gorm:"size:100;not null" json:"content_type"`
	Size           int64          `gorm:"not null" json:"size"`
	OriginalName   string         `gorm:"size:255" json:"original_name"`
	CreatedAt      time.Time      `json:"created_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for Media model
func (Media) TableName() string {
	return "media"
}
