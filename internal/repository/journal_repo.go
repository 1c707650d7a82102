package repository

import (
	"context"
	"errors"

	"github.com/tradejournal/internal/models"
	"gorm.io/gorm"
)

var (
	ErrJournalEntryNotFound = errors.New("journal entry not found")
)

// JournalRepository handles journal entry data access
type JournalRepository struct {
	db *gorm.DB
}

// NewJournalRepository creates a new JournalRepository
func NewJournalRepository(db *gorm.DB) *JournalRepository {
	return &JournalRepository{db: db}
}

// Create creates a new journal entry
func (r *JournalRepository) Create(ctx context.Context, entry *models.JournalEntry) error {
	return translateWriteError(r.db.WithContext(ctx).Create(entry).Error)
}

// GetByIDAndUserID retrieves a journal entry owned by a user
func (r *JournalRepository) GetByIDAndUserID(ctx context.Context, id, userID uint) (*models.JournalEntry, error) {
	var entry models.JournalEntry
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrJournalEntryNotFound
		}
		return nil, result.Error
	}
	return &entry, nil
}

// GetByUserIDPaginated retrieves journal entries with pagination, optionally for one trade
func (r *JournalRepository) GetByUserIDPaginated(ctx context.Context, userID uint, tradeID *uint, page, pageSize int) ([]models.JournalEntry, int64, error) {
	var entries []models.JournalEntry
	var total int64

	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", userID)
		if tradeID != nil {
			db = db.Where("trade_id = ?", *tradeID)
		}
		return db
	}

	if err := r.db.WithContext(ctx).Model(&models.JournalEntry{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	result := r.db.WithContext(ctx).Scopes(scope).
		Order("entry_date DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&entries)

	return entries, total, result.Error
}

// Update saves all fields of a journal entry
func (r *JournalRepository) Update(ctx context.Context, entry *models.JournalEntry) error {
	return translateWriteError(r.db.WithContext(ctx).Save(entry).Error)
}

// Delete soft deletes a journal entry owned by a user
func (r *JournalRepository) Delete(ctx context.Context, id, userID uint) error {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.JournalEntry{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJournalEntryNotFound
	}
	return nil
}
