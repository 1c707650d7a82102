package repository

import (
	"context"
	"errors"
	"time"

	"github.com/tradejournal/internal/models"
	"gorm.io/gorm"
)

var (
	ErrTradeNotFound = errors.New("trade not found")
)

// insertBatchSize caps rows per INSERT statement during bulk import
const insertBatchSize = 500

// TradeFilter narrows trade listings. Zero values mean "any".
type TradeFilter struct {
	Symbol string
	Status models.TradeStatus
	From   *time.Time
	To     *time.Time
}

// TradeRepository handles trade data access
type TradeRepository struct {
	db *gorm.DB
}

// NewTradeRepository creates a new TradeRepository
func NewTradeRepository(db *gorm.DB) *TradeRepository {
	return &TradeRepository{db: db}
}

// Create creates a new trade
func (r *TradeRepository) Create(ctx context.Context, trade *models.Trade) error {
	return translateWriteError(r.db.WithContext(ctx).Create(trade).Error)
}

// CreateBatch inserts all trades in one transaction; either every row lands or none does
func (r *TradeRepository) CreateBatch(ctx context.Context, trades []models.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	return translateWriteError(r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.CreateInBatches(&trades, insertBatchSize).Error
	}))
}

// GetByIDAndUserID retrieves a trade owned by a user
func (r *TradeRepository) GetByIDAndUserID(ctx context.Context, id, userID uint) (*models.Trade, error) {
	var trade models.Trade
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&trade)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrTradeNotFound
		}
		return nil, result.Error
	}
	return &trade, nil
}

// GetByUserIDPaginated retrieves a user's trades with filters and pagination
func (r *TradeRepository) GetByUserIDPaginated(ctx context.Context, userID uint, filter TradeFilter, page, pageSize int) ([]models.Trade, int64, error) {
	var trades []models.Trade
	var total int64

	query := r.filtered(ctx, userID, filter)
	if err := query.Model(&models.Trade{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	result := r.filtered(ctx, userID, filter).
		Order("entry_date DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&trades)

	return trades, total, result.Error
}

// GetByUserID retrieves all of a user's trades matching filter, oldest first
func (r *TradeRepository) GetByUserID(ctx context.Context, userID uint, filter TradeFilter) ([]models.Trade, error) {
	var trades []models.Trade
	result := r.filtered(ctx, userID, filter).Order("entry_date ASC").Find(&trades)
	return trades, result.Error
}

func (r *TradeRepository) filtered(ctx context.Context, userID uint, filter TradeFilter) *gorm.DB {
	query := r.db.WithContext(ctx).Where("user_id = ?", userID)
	if filter.Symbol != "" {
		query = query.Where("symbol = ?", filter.Symbol)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.From != nil {
		query = query.Where("entry_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("entry_date <= ?", *filter.To)
	}
	return query
}

// Update saves all fields of a trade
func (r *TradeRepository) Update(ctx context.Context, trade *models.Trade) error {
	return translateWriteError(r.db.WithContext(ctx).Save(trade).Error)
}

// Delete soft deletes a trade owned by a user
func (r *TradeRepository) Delete(ctx context.Context, id, userID uint) error {
	result := r.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&models.Trade{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrTradeNotFound
	}
	return nil
}
