package repository

import (
	"context"
	"errors"

	"github.com/tradejournal/internal/models"
	"gorm.io/gorm"
)

var (
	ErrMediaNotFound = errors.New("media not found")
)

// MediaRepository handles uploaded media data access
type MediaRepository struct {
	db *gorm.DB
}

// NewMediaRepository creates a new MediaRepository
func NewMediaRepository(db *gorm.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Create creates a new media record
func (r *MediaRepository) Create(ctx context.Context, media *models.Media) error {
	return r.db.WithContext(ctx).Create(media).Error
}

// GetByIDAndUserID retrieves a media record owned by a user
func (r *MediaRepository) GetByIDAndUserID(ctx context.Context, id, userID uint) (*models.Media, error) {
	var media models.Media
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&media)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMediaNotFound
		}
		return nil, result.Error
	}
	return &media, nil
}

// GetByTradeID retrieves media attached to a trade
func (r *MediaRepository) GetByTradeID(ctx context.Context, tradeID, userID uint) ([]models.Media, error) {
	var media []models.Media
	result := r.db.WithContext(ctx).Where("trade_id = ? AND user_id = ?", tradeID, userID).Order("created_at ASC").Find(&media)
	return media, result.Error
}

// GetByJournalEntryID retrieves media attached to a journal entry
func (r *MediaRepository) GetByJournalEntryID(ctx context.Context, entryID, userID uint) ([]models.Media, error) {
	var media []models.Media
	result := r.db.WithContext(ctx).Where("journal_entry_id = ? AND user_id = ?", entryID, userID).Order("created_at ASC").Find(&media)
	return media, result.Error
}

// Delete soft deletes a media record owned by a user; the object is removed later by the sweeper
func (r *MediaRepository) Delete(ctx context.Context, id, userID uint) error {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Media{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMediaNotFound
	}
	return nil
}

// GetDeleted retrieves soft-deleted media whose objects still need removal
func (r *MediaRepository) GetDeleted(ctx context.Context, limit int) ([]models.Media, error) {
	var media []models.Media
	result := r.db.WithContext(ctx).Unscoped().
		Where("deleted_at IS NOT NULL").
		Order("deleted_at ASC").
		Limit(limit).
		Find(&media)
	return media, result.Error
}

// Purge permanently deletes a media record
func (r *MediaRepository) Purge(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Unscoped().Delete(&models.Media{}, id).Error
}
