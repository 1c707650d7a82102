package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// JournalEntry is a free-form note, optionally tied to a trade
type JournalEntry struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"index;not null" json:"user_id"`
	TradeID   *uint          `gorm:"index" json:"trade_id,omitempty"`
	Title     string         `gorm:"size:200;not null" json:"title"`
	Body      string         `gorm:"type:text" json:"body"`
	Mood      string         `gorm:"size:30" json:"mood,omitempty"`
	Tags      datatypes.JSON `gorm:"type:jsonb" json:"tags,omitempty"`
	EntryDate time.Time      `gorm:"index" json:"entry_date"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relations
	User  User    `gorm:"foreignKey:UserID" json:"-"`
	Media []Media `gorm:"foreignKey:JournalEntryID" json:"media,omitempty"`
}

// TableName specifies the table name for JournalEntry model
func (JournalEntry) TableName() string {
	return "journal_entries"
}
