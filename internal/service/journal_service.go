package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/tradejournal/internal/models"
	"gorm.io/datatypes"
)

// JournalService handles journal entries
type JournalService struct {
	journalRepo JournalStore
	tradeRepo   TradeStore
	now         func() time.Time
}

// NewJournalService creates a new JournalService
func NewJournalService(journalRepo JournalStore, tradeRepo TradeStore) *JournalService {
	return &JournalService{
		journalRepo: journalRepo,
		tradeRepo:   tradeRepo,
		now:         time.Now,
	}
}

// CreateJournalRequest represents the create journal entry request
type CreateJournalRequest struct {
	TradeID   *uint      `json:"trade_id"`
	Title     string     `json:"title" binding:"required,max=200"`
	Body      string     `json:"body" binding:"max=100000"`
	Mood      string     `json:"mood" binding:"max=30"`
	Tags      []string   `json:"tags" binding:"max=20,dive,max=40"`
	EntryDate *time.Time `json:"entry_date"`
}

// UpdateJournalRequest represents the update journal entry request
type UpdateJournalRequest struct {
	TradeID   *uint      `json:"trade_id"`
	Unlink    bool       `json:"unlink_trade"`
	Title     *string    `json:"title" binding:"omitempty,max=200"`
	Body      *string    `json:"body" binding:"omitempty,max=100000"`
	Mood      *string    `json:"mood" binding:"omitempty,max=30"`
	Tags      []string   `json:"tags" binding:"omitempty,max=20,dive,max=40"`
	EntryDate *time.Time `json:"entry_date"`
}

// CreateEntry creates a journal entry, optionally linked to one of the user's trades
func (s *JournalService) CreateEntry(ctx context.Context, userID uint, req *CreateJournalRequest) (*models.JournalEntry, error) {
	if req.TradeID != nil {
		if _, err := s.tradeRepo.GetByIDAndUserID(ctx, *req.TradeID, userID); err != nil {
			return nil, err
		}
	}

	tags, err := encodeTags(req.Tags)
	if err != nil {
		return nil, err
	}

	entry := &models.JournalEntry{
		UserID:    userID,
		TradeID:   req.TradeID,
		Title:     strings.TrimSpace(req.Title),
		Body:      req.Body,
		Mood:      req.Mood,
		Tags:      tags,
		EntryDate: s.now().UTC(),
	}
	if req.EntryDate != nil {
		entry.EntryDate = *req.EntryDate
	}

	if err := s.journalRepo.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to create journal entry: %w", err)
	}
	return entry, nil
}

// GetEntry retrieves one of the user's journal entries
func (s *JournalService) GetEntry(ctx context.Context, userID, entryID uint) (*models.JournalEntry, error) {
	return s.journalRepo.GetByIDAndUserID(ctx, entryID, userID)
}

// ListEntries retrieves journal entries with pagination
func (s *JournalService) ListEntries(ctx context.Context, userID uint, tradeID *uint, page, pageSize int) ([]models.JournalEntry, int64, error) {
	return s.journalRepo.GetByUserIDPaginated(ctx, userID, tradeID, page, pageSize)
}

// UpdateEntry applies a partial update
func (s *JournalService) UpdateEntry(ctx context.Context, userID, entryID uint, req *UpdateJournalRequest) (*models.JournalEntry, error) {
	entry, err := s.journalRepo.GetByIDAndUserID(ctx, entryID, userID)
	if err != nil {
		return nil, err
	}

	switch {
	case req.Unlink:
		entry.TradeID = nil
	case req.TradeID != nil:
		if _, err := s.tradeRepo.GetByIDAndUserID(ctx, *req.TradeID, userID); err != nil {
			return nil, err
		}
		entry.TradeID = req.TradeID
	}
	if req.Title != nil {
		entry.Title = strings.TrimSpace(*req.Title)
	}
	if req.Body != nil {
		entry.Body = *req.Body
	}
	if req.Mood != nil {
		entry.Mood = *req.Mood
	}
	if req.Tags != nil {
		if entry.Tags, err = encodeTags(req.Tags); err != nil {
			return nil, err
		}
	}
	if req.EntryDate != nil {
		entry.EntryDate = *req.EntryDate
	}

	if err := s.journalRepo.Update(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to update journal entry: %w", err)
	}
	return entry, nil
}

// DeleteEntry deletes one of the user's journal entries
func (s *JournalService) DeleteEntry(ctx context.Context, userID, entryID uint) error {
	return s.journalRepo.Delete(ctx, entryID, userID)
}

func encodeTags(tags []string) (datatypes.JSON, error) {
	if len(tags) == 0 {
		return nil, nil
	}
	cleaned := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		cleaned = append(cleaned, t)
	}
	data, err := json.Marshal(cleaned)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(data), nil
}
