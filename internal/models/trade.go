package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Direction represents the side of a trade
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// TradeStatus is derived from whether the trade has an exit price
type TradeStatus string

const (
	TradeStatusOpen   TradeStatus = "open"
	TradeStatusClosed TradeStatus = "closed"
)

// ImportSource identifies the channel a trade was ingested through
type ImportSource string

const (
	SourceManual    ImportSource = "manual"
	SourceCSVImport ImportSource = "csv_import"
)

// Column limits enforced by the trades table
const (
	SymbolMaxLen           = 20
	AmountMaxIntegerDigits = 12
	amountScale            = 8
)

var amountLimit = decimal.New(1, AmountMaxIntegerDigits)

// FitsAmountColumn reports whether d fits a numeric(20,8) column once rounded to its scale
func FitsAmountColumn(d decimal.Decimal) bool {
	return d.Abs().Round(amountScale).LessThan(amountLimit)
}

// Trade represents a single logged trade
type Trade struct {
	ID           uint              `gorm:"primaryKey" json:"id"`
	UserID       uint              `gorm:"index;not null" json:"user_id"`
	Symbol       string            `gorm:"size:20;not null;index" json:"symbol"`
	Direction    Direction         `gorm:"size:10;not null" json:"direction"`
	EntryPrice   decimal.Decimal   `gorm:"type:numeric(20,8);not null" json:"entry_price"`
	ExitPrice    *decimal.Decimal  `gorm:"type:numeric(20,8)" json:"exit_price,omitempty"`
	Quantity     decimal.Decimal   `gorm:"type:numeric(20,8);not null" json:"quantity"`
	EntryDate    time.Time         `gorm:"not null;index" json:"entry_date"`
	ExitDate     *time.Time        `json:"exit_date,omitempty"`
	Fees         decimal.Decimal   `gorm:"type:numeric(20,8);not null;default:0" json:"fees"`
	Status       TradeStatus       `gorm:"size:10;not null;index" json:"status"`
	ImportSource ImportSource      `gorm:"size:30;not null;default:'manual'" json:"import_source"`
	Notes        string            `gorm:"type:text" json:"notes,omitempty"`
	Extra        datatypes.JSONMap `gorm:"type:jsonb" json:"extra,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	DeletedAt    gorm.DeletedAt    `gorm:"index" json:"-"`

	// Relations
	User  User    `gorm:"foreignKey:UserID" json:"-"`
	Media []Media `gorm:"foreignKey:TradeID" json:"media,omitempty"`
}

// TableName specifies the table name for Trade model
func (Trade) TableName() string {
	return "trades"
}

// DeriveStatus sets Status from the presence of an exit price
func (t *Trade) DeriveStatus() {
	if t.IsClosed() {
		t.Status = TradeStatusClosed
		return
	}
	t.Status = TradeStatusOpen
}

// IsClosed returns true if the trade has been exited
func (t *Trade) IsClosed() bool {
	return t.ExitPrice != nil
}

// PnL returns the realized profit net of fees, or nil for an open trade
func (t *Trade) PnL() *decimal.Decimal {
	if t.ExitPrice == nil {
		return nil
	}
	var gross decimal.Decimal
	if t.Direction == DirectionShort {
		gross = t.EntryPrice.Sub(*t.ExitPrice).Mul(t.Quantity)
	} else {
		gross = t.ExitPrice.Sub(t.EntryPrice).Mul(t.Quantity)
	}
	net := gross.Sub(t.Fees)
	return &net
}
