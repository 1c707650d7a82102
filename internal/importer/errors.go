package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tradejournal/internal/models"
)

var (
	ErrEmptyFile        = errors.New("import file is empty")
	ErrRequired         = errors.New("value is required")
	ErrInvalidNumber    = errors.New("invalid number")
	ErrNotPositive      = errors.New("must be greater than zero")
	ErrNegative         = errors.New("must not be negative")
	ErrInvalidDate      = errors.New("invalid date")
	ErrInvalidDirection = errors.New("direction must be long or short")
	ErrFieldCount       = errors.New("wrong number of fields")
	ErrTooLong          = fmt.Errorf("must be at most %d characters", models.SymbolMaxLen)
	ErrOutOfRange       = fmt.Errorf("must have at most %d integer digits", models.AmountMaxIntegerDigits)
	ErrDuplicateColumn  = errors.New("duplicate column")
	ErrExitWithoutPrice = errors.New("exit_date requires exit_price")
)

// MissingColumnsError rejects a whole file whose header lacks required columns
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Columns, ", ")
}

// DuplicateColumnsError rejects a whole file whose header names a column more than once
type DuplicateColumnsError struct {
	Columns []string
}

func (e *DuplicateColumnsError) Error() string {
	return "duplicate columns: " + strings.Join(e.Columns, ", ")
}

func (e *DuplicateColumnsError) Unwrap() error {
	return ErrDuplicateColumn
}

// RowError describes why a single data row was rejected
type RowError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *RowError) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("line %d: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("line %d: column %s: %v (%q)", e.Line, e.Column, e.Err, e.Value)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// MarshalJSON renders the row error for API responses
func (e *RowError) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Line   int    `json:"line"`
		Column string `json:"column,omitempty"`
		Value  string `json:"value,omitempty"`
		Error  string `json:"error"`
	}{
		Line:   e.Line,
		Column: e.Column,
		Value:  e.Value,
		Error:  e.Err.Error(),
	})
}
