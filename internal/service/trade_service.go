package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/tradejournal/internal/importer"
	"github.com/tradejournal/internal/models"
	"github.com/tradejournal/internal/repository"
	"github.com/tradejournal/pkg/keygen"
)

var (
	ErrInvalidTrade    = errors.New("invalid trade")
	ErrImportRejected  = errors.New("import rejected: file contains invalid rows")
	ErrImportNoRows    = errors.New("import file has no data rows")
	ErrImportNoneValid = errors.New("import file has no valid rows")
)

// ImportOptions controls how uploaded files are persisted
type ImportOptions struct {
	Delimiter       rune
	Source          models.ImportSource
	SkipInvalidRows bool
}

// TradeService handles trade logging and CSV import
type TradeService struct {
	tradeRepo TradeStore
	importOpt ImportOptions
	logger    logrus.FieldLogger
}

// NewTradeService creates a new TradeService
func NewTradeService(tradeRepo TradeStore, importOpt ImportOptions, logger logrus.FieldLogger) *TradeService {
	if importOpt.Delimiter == 0 {
		importOpt.Delimiter = ','
	}
	if importOpt.Source == "" {
		importOpt.Source = models.SourceCSVImport
	}
	return &TradeService{
		tradeRepo: tradeRepo,
		importOpt: importOpt,
		logger:    logger,
	}
}

// CreateTradeRequest represents a manually entered trade
type CreateTradeRequest struct {
	Symbol     string           `json:"symbol" binding:"required,max=20"`
	Direction  models.Direction `json:"direction" binding:"required,oneof=long short"`
	EntryPrice decimal.Decimal  `json:"entry_price"`
	ExitPrice  *decimal.Decimal `json:"exit_price"`
	Quantity   decimal.Decimal  `json:"quantity"`
	EntryDate  time.Time        `json:"entry_date" binding:"required"`
	ExitDate   *time.Time       `json:"exit_date"`
	Fees       decimal.Decimal  `json:"fees"`
	Notes      string           `json:"notes" binding:"max=10000"`
}

// UpdateTradeRequest represents a partial trade update
type UpdateTradeRequest struct {
	Symbol     *string           `json:"symbol" binding:"omitempty,max=20"`
	Direction  *models.Direction `json:"direction" binding:"omitempty,oneof=long short"`
	EntryPrice *decimal.Decimal  `json:"entry_price"`
	ExitPrice  *decimal.Decimal  `json:"exit_price"`
	ClearExit  bool              `json:"clear_exit"`
	Quantity   *decimal.Decimal  `json:"quantity"`
	EntryDate  *time.Time        `json:"entry_date"`
	ExitDate   *time.Time        `json:"exit_date"`
	Fees       *decimal.Decimal  `json:"fees"`
	Notes      *string           `json:"notes" binding:"omitempty,max=10000"`
}

// CreateTrade logs a manually entered trade
func (s *TradeService) CreateTrade(ctx context.Context, userID uint, req *CreateTradeRequest) (*models.Trade, error) {
	trade := &models.Trade{
		UserID:       userID,
		Symbol:       strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Direction:    req.Direction,
		EntryPrice:   req.EntryPrice,
		ExitPrice:    req.ExitPrice,
		Quantity:     req.Quantity,
		EntryDate:    req.EntryDate,
		ExitDate:     req.ExitDate,
		Fees:         req.Fees,
		Notes:        req.Notes,
		ImportSource: models.SourceManual,
	}
	if err := validateTrade(trade); err != nil {
		return nil, err
	}
	trade.DeriveStatus()

	if err := s.tradeRepo.Create(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to create trade: %w", err)
	}
	return trade, nil
}

// GetTrade retrieves one of the user's trades
func (s *TradeService) GetTrade(ctx context.Context, userID, tradeID uint) (*models.Trade, error) {
	return s.tradeRepo.GetByIDAndUserID(ctx, tradeID, userID)
}

// ListTrades retrieves the user's trades with pagination
func (s *TradeService) ListTrades(ctx context.Context, userID uint, filter repository.TradeFilter, page, pageSize int) ([]models.Trade, int64, error) {
	return s.tradeRepo.GetByUserIDPaginated(ctx, userID, filter, page, pageSize)
}

// UpdateTrade applies a partial update and re-derives the status
func (s *TradeService) UpdateTrade(ctx context.Context, userID, tradeID uint, req *UpdateTradeRequest) (*models.Trade, error) {
	trade, err := s.tradeRepo.GetByIDAndUserID(ctx, tradeID, userID)
	if err != nil {
		return nil, err
	}

	if req.Symbol != nil {
		trade.Symbol = strings.ToUpper(strings.TrimSpace(*req.Symbol))
	}
	if req.Direction != nil {
		trade.Direction = *req.Direction
	}
	if req.EntryPrice != nil {
		trade.EntryPrice = *req.EntryPrice
	}
	if req.Quantity != nil {
		trade.Quantity = *req.Quantity
	}
	if req.EntryDate != nil {
		trade.EntryDate = *req.EntryDate
	}
	if req.Fees != nil {
		trade.Fees = *req.Fees
	}
	if req.Notes != nil {
		trade.Notes = *req.Notes
	}
	if req.ClearExit {
		trade.ExitPrice = nil
		trade.ExitDate = nil
	} else {
		if req.ExitPrice != nil {
			trade.ExitPrice = req.ExitPrice
		}
		if req.ExitDate != nil {
			trade.ExitDate = req.ExitDate
		}
	}

	if err := validateTrade(trade); err != nil {
		return nil, err
	}
	trade.DeriveStatus()

	if err := s.tradeRepo.Update(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to update trade: %w", err)
	}
	return trade, nil
}

// DeleteTrade deletes one of the user's trades
func (s *TradeService) DeleteTrade(ctx context.Context, userID, tradeID uint) error {
	return s.tradeRepo.Delete(ctx, tradeID, userID)
}

// ImportResult summarizes one file import
type ImportResult struct {
	BatchID   string               `json:"batch_id"`
	Rows      int                  `json:"rows"`
	Imported  int                  `json:"imported"`
	RowErrors []*importer.RowError `json:"row_errors"`
}

// ImportTrades normalizes a delimited file and bulk-inserts the trades for userID.
// delimiter overrides the configured one when non-zero.
//
// Errors: *importer.MissingColumnsError and importer.ErrEmptyFile before any row is read,
// ErrImportNoRows for a header-only file, ErrImportRejected (with the returned result
// carrying the row report) when rows are invalid and SkipInvalidRows is off,
// ErrImportNoneValid when skipping leaves nothing to insert.
func (s *TradeService) ImportTrades(ctx context.Context, userID uint, r io.Reader, delimiter rune) (*ImportResult, error) {
	if delimiter == 0 {
		delimiter = s.importOpt.Delimiter
	}

	batchID, err := keygen.ImportBatchID()
	if err != nil {
		return nil, err
	}
	log := s.logger.WithFields(logrus.Fields{
		"batch_id": batchID,
		"user_id":  userID,
	})

	normalizer := importer.NewNormalizer(
		importer.WithDelimiter(delimiter),
		importer.WithSource(s.importOpt.Source),
	)
	parsed, err := normalizer.Normalize(r, userID)
	if err != nil {
		log.WithError(err).Warn("import file rejected")
		return nil, err
	}

	result := &ImportResult{
		BatchID:   batchID,
		Rows:      parsed.Rows,
		RowErrors: parsed.RowErrors,
	}
	if result.RowErrors == nil {
		result.RowErrors = []*importer.RowError{}
	}

	if parsed.Rows == 0 {
		return result, ErrImportNoRows
	}
	if len(parsed.RowErrors) > 0 && !s.importOpt.SkipInvalidRows {
		log.WithField("row_errors", len(parsed.RowErrors)).Warn("import batch rejected")
		return result, ErrImportRejected
	}
	if len(parsed.Records) == 0 {
		return result, ErrImportNoneValid
	}

	trades := make([]models.Trade, len(parsed.Records))
	for i := range parsed.Records {
		trades[i] = parsed.Records[i].Trade()
	}

	if err := s.tradeRepo.CreateBatch(ctx, trades); err != nil {
		log.WithError(err).Error("import insert failed")
		return result, fmt.Errorf("failed to insert imported trades: %w", err)
	}

	result.Imported = len(trades)
	log.WithFields(logrus.Fields{
		"rows":       result.Rows,
		"imported":   result.Imported,
		"row_errors": len(result.RowErrors),
	}).Info("import completed")

	return result, nil
}

func validateTrade(t *models.Trade) error {
	switch {
	case t.Symbol == "":
		return fmt.Errorf("%w: symbol is required", ErrInvalidTrade)
	case utf8.RuneCountInString(t.Symbol) > models.SymbolMaxLen:
		return fmt.Errorf("%w: symbol must be at most %d characters", ErrInvalidTrade, models.SymbolMaxLen)
	case t.Direction != models.DirectionLong && t.Direction != models.DirectionShort:
		return fmt.Errorf("%w: direction must be long or short", ErrInvalidTrade)
	case !t.EntryPrice.IsPositive():
		return fmt.Errorf("%w: entry_price must be greater than zero", ErrInvalidTrade)
	case !t.Quantity.IsPositive():
		return fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidTrade)
	case t.EntryDate.IsZero():
		return fmt.Errorf("%w: entry_date is required", ErrInvalidTrade)
	case t.Fees.IsNegative():
		return fmt.Errorf("%w: fees must not be negative", ErrInvalidTrade)
	case t.ExitPrice != nil && !t.ExitPrice.IsPositive():
		return fmt.Errorf("%w: exit_price must be greater than zero", ErrInvalidTrade)
	case t.ExitDate != nil && t.ExitPrice == nil:
		return fmt.Errorf("%w: exit_date requires exit_price", ErrInvalidTrade)
	case t.ExitDate != nil && t.ExitDate.Before(t.EntryDate):
		return fmt.Errorf("%w: exit_date is before entry_date", ErrInvalidTrade)
	}

	for _, a := range []struct {
		name  string
		value *decimal.Decimal
	}{
		{"entry_price", &t.EntryPrice},
		{"exit_price", t.ExitPrice},
		{"quantity", &t.Quantity},
		{"fees", &t.Fees},
	} {
		if a.value != nil && !models.FitsAmountColumn(*a.value) {
			return fmt.Errorf("%w: %s must have at most %d integer digits", ErrInvalidTrade, a.name, models.AmountMaxIntegerDigits)
		}
	}
	return nil
}
