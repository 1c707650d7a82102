// Package importer turns uploaded delimited trade files into typed trade records.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/tradejournal/internal/models"
	"gorm.io/datatypes"
)

// Column names recognized in the header
const (
	ColSymbol       = "symbol"
	ColDirection    = "direction"
	ColEntryPrice   = "entry_price"
	ColExitPrice    = "exit_price"
	ColQuantity     = "quantity"
	ColEntryDate    = "entry_date"
	ColExitDate     = "exit_date"
	ColFees         = "fees"
	ColNotes        = "notes"
	ColUserID       = "user_id"
	ColStatus       = "status"
	ColImportSource = "import_source"
)

// RequiredColumns must all appear in the header, in this reporting order
var RequiredColumns = []string{ColSymbol, ColDirection, ColEntryPrice, ColQuantity, ColEntryDate}

// Derived or owner columns are never copied from the file
var ignoredColumns = map[string]bool{
	ColUserID:       true,
	ColStatus:       true,
	ColImportSource: true,
}

var knownColumns = map[string]bool{
	ColSymbol: true, ColDirection: true, ColEntryPrice: true, ColExitPrice: true,
	ColQuantity: true, ColEntryDate: true, ColExitDate: true, ColFees: true, ColNotes: true,
}

var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"01/02/2006",
}

// Record is one normalized trade row
type Record struct {
	Line         int
	Symbol       string
	Direction    models.Direction
	EntryPrice   decimal.Decimal
	ExitPrice    *decimal.Decimal
	Quantity     decimal.Decimal
	EntryDate    time.Time
	ExitDate     *time.Time
	Fees         decimal.Decimal
	Notes        string
	Status       models.TradeStatus
	ImportSource models.ImportSource
	UserID       uint
	Extra        map[string]string
}

// Trade converts the record into a model ready for insertion
func (r *Record) Trade() models.Trade {
	t := models.Trade{
		UserID:       r.UserID,
		Symbol:       r.Symbol,
		Direction:    r.Direction,
		EntryPrice:   r.EntryPrice,
		ExitPrice:    r.ExitPrice,
		Quantity:     r.Quantity,
		EntryDate:    r.EntryDate,
		ExitDate:     r.ExitDate,
		Fees:         r.Fees,
		Notes:        r.Notes,
		Status:       r.Status,
		ImportSource: r.ImportSource,
	}
	if len(r.Extra) > 0 {
		t.Extra = make(datatypes.JSONMap, len(r.Extra))
		for k, v := range r.Extra {
			t.Extra[k] = v
		}
	}
	return t
}

// Result holds the outcome of one Normalize call.
// Rows counts non-blank data lines, so len(Records)+len(RowErrors) == Rows.
type Result struct {
	Records   []Record
	RowErrors []*RowError
	Rows      int
}

// Normalizer parses delimited trade files. It keeps no state between calls.
type Normalizer struct {
	delimiter rune
	source    models.ImportSource
}

// Option configures a Normalizer
type Option func(*Normalizer)

// WithDelimiter sets the field delimiter (default ',')
func WithDelimiter(d rune) Option {
	return func(n *Normalizer) {
		if d != 0 {
			n.delimiter = d
		}
	}
}

// WithSource sets the import_source tag stamped on every record
func WithSource(source models.ImportSource) Option {
	return func(n *Normalizer) {
		if source != "" {
			n.source = source
		}
	}
}

// NewNormalizer creates a Normalizer
func NewNormalizer(opts ...Option) *Normalizer {
	n := &Normalizer{
		delimiter: ',',
		source:    models.SourceCSVImport,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Normalize reads the whole payload and returns typed records in file order.
// userID is the authenticated owner and always overrides file contents.
// A header missing required columns fails with *MissingColumnsError before any row is read.
func (n *Normalizer) Normalize(r io.Reader, userID uint) (*Result, error) {
	reader := csv.NewReader(r)
	reader.Comma = n.delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.ReuseRecord = false

	header, err := readHeader(reader)
	if err != nil {
		return nil, err
	}

	result := &Result{}
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read import file: %w", err)
		}
		if isBlank(fields) {
			continue
		}

		line, _ := reader.FieldPos(0)
		result.Rows++

		if len(fields) != len(header) {
			result.RowErrors = append(result.RowErrors, &RowError{
				Line: line,
				Err:  fmt.Errorf("%w: expected %d, got %d", ErrFieldCount, len(header), len(fields)),
			})
			continue
		}

		raw := make(map[string]string, len(header))
		for i, name := range header {
			raw[name] = strings.TrimSpace(fields[i])
		}

		record, rowErr := n.normalizeRow(raw, line, userID)
		if rowErr != nil {
			result.RowErrors = append(result.RowErrors, rowErr)
			continue
		}
		result.Records = append(result.Records, *record)
	}

	return result, nil
}

func readHeader(reader *csv.Reader) ([]string, error) {
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil, ErrEmptyFile
		}
		if err != nil {
			return nil, fmt.Errorf("read import header: %w", err)
		}
		if isBlank(fields) {
			continue
		}

		header := make([]string, len(fields))
		present := make(map[string]bool, len(fields))
		var duplicate []string
		for i, f := range fields {
			name := strings.ToLower(strings.TrimSpace(f))
			if i == 0 {
				name = strings.TrimPrefix(name, "\ufeff")
			}
			header[i] = name
			// unnamed columns carry nothing and may repeat
			if present[name] && name != "" && !slices.Contains(duplicate, name) {
				duplicate = append(duplicate, name)
			}
			present[name] = true
		}
		if len(duplicate) > 0 {
			return nil, &DuplicateColumnsError{Columns: duplicate}
		}

		var missing []string
		for _, col := range RequiredColumns {
			if !present[col] {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			return nil, &MissingColumnsError{Columns: missing}
		}
		return header, nil
	}
}

func isBlank(fields []string) bool {
	return len(fields) == 1 && strings.TrimSpace(fields[0]) == ""
}

func (n *Normalizer) normalizeRow(raw map[string]string, line int, userID uint) (*Record, *RowError) {
	fail := func(col string, err error) *RowError {
		return &RowError{Line: line, Column: col, Value: raw[col], Err: err}
	}

	rec := &Record{
		Line:         line,
		ImportSource: n.source,
		UserID:       userID,
	}

	rec.Symbol = strings.ToUpper(raw[ColSymbol])
	if rec.Symbol == "" {
		return nil, fail(ColSymbol, ErrRequired)
	}
	if utf8.RuneCountInString(rec.Symbol) > models.SymbolMaxLen {
		return nil, fail(ColSymbol, ErrTooLong)
	}

	dir, err := parseDirection(raw[ColDirection])
	if err != nil {
		return nil, fail(ColDirection, err)
	}
	rec.Direction = dir

	if rec.EntryPrice, err = parsePositive(raw[ColEntryPrice]); err != nil {
		return nil, fail(ColEntryPrice, err)
	}
	if rec.Quantity, err = parsePositive(raw[ColQuantity]); err != nil {
		return nil, fail(ColQuantity, err)
	}
	if rec.EntryDate, err = parseDate(raw[ColEntryDate]); err != nil {
		return nil, fail(ColEntryDate, err)
	}

	if v := raw[ColExitPrice]; v != "" {
		exit, err := parsePositive(v)
		if err != nil {
			return nil, fail(ColExitPrice, err)
		}
		rec.ExitPrice = &exit
	}

	if v := raw[ColExitDate]; v != "" {
		exitDate, err := parseDate(v)
		if err != nil {
			return nil, fail(ColExitDate, err)
		}
		if rec.ExitPrice == nil {
			return nil, fail(ColExitDate, ErrExitWithoutPrice)
		}
		rec.ExitDate = &exitDate
	}

	rec.Fees = decimal.Zero
	if v := raw[ColFees]; v != "" {
		fees, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fail(ColFees, ErrInvalidNumber)
		}
		if fees.IsNegative() {
			return nil, fail(ColFees, ErrNegative)
		}
		if !models.FitsAmountColumn(fees) {
			return nil, fail(ColFees, ErrOutOfRange)
		}
		rec.Fees = fees
	}

	rec.Notes = raw[ColNotes]

	if rec.ExitPrice != nil {
		rec.Status = models.TradeStatusClosed
	} else {
		rec.Status = models.TradeStatusOpen
	}

	for name, value := range raw {
		if knownColumns[name] || ignoredColumns[name] || name == "" {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]string)
		}
		rec.Extra[name] = value
	}

	return rec, nil
}

func parseDirection(v string) (models.Direction, error) {
	switch strings.ToLower(v) {
	case "long", "buy":
		return models.DirectionLong, nil
	case "short", "sell":
		return models.DirectionShort, nil
	case "":
		return "", ErrRequired
	default:
		return "", ErrInvalidDirection
	}
}

func parsePositive(v string) (decimal.Decimal, error) {
	if v == "" {
		return decimal.Zero, ErrRequired
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, ErrInvalidNumber
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrNotPositive
	}
	if !models.FitsAmountColumn(d) {
		return decimal.Zero, ErrOutOfRange
	}
	return d, nil
}

func parseDate(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, ErrRequired
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, ErrInvalidDate
}
