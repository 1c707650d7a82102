package service

import (
	"context"

	"github.com/tradejournal/internal/models"
	"github.com/tradejournal/internal/repository"
)

// UserStore is the user part of the record store
type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uint) (*models.User, error)
	GetByUsernameOrEmail(ctx context.Context, login string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
}

// TradeStore is the trade part of the record store
type TradeStore interface {
	Create(ctx context.Context, trade *models.Trade) error
	CreateBatch(ctx context.Context, trades []models.Trade) error
	GetByIDAndUserID(ctx context.Context, id, userID uint) (*models.Trade, error)
	GetByUserIDPaginated(ctx context.Context, userID uint, filter repository.TradeFilter, page, pageSize int) ([]models.Trade, int64, error)
	GetByUserID(ctx context.Context, userID uint, filter repository.TradeFilter) ([]models.Trade, error)
	Update(ctx context.Context, trade *models.Trade) error
	Delete(ctx context.Context, id, userID uint) error
}

// JournalStore is the journal part of the record store
type JournalStore interface {
	Create(ctx context.Context, entry *models.JournalEntry) error
	GetByIDAndUserID(ctx context.Context, id, userID uint) (*models.JournalEntry, error)
	GetByUserIDPaginated(ctx context.Context, userID uint, tradeID *uint, page, pageSize int) ([]models.JournalEntry, int64, error)
	Update(ctx context.Context, entry *models.JournalEntry) error
	Delete(ctx context.Context, id, userID uint) error
}

// MediaStore is the media part of the record store
type MediaStore interface {
	Create(ctx context.Context, media *models.Media) error
	GetByIDAndUserID(ctx context.Context, id, userID uint) (*models.Media, error)
	GetByTradeID(ctx context.Context, tradeID, userID uint) ([]models.Media, error)
	GetByJournalEntryID(ctx context.Context, entryID, userID uint) ([]models.Media, error)
	Delete(ctx context.Context, id, userID uint) error
}

var (
	_ UserStore    = (*repository.UserRepository)(nil)
	_ TradeStore   = (*repository.TradeRepository)(nil)
	_ JournalStore = (*repository.JournalRepository)(nil)
	_ MediaStore   = (*repository.MediaRepository)(nil)
)
