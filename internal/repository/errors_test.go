package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslateWriteError(t *testing.T) {
	connErr := errors.New("connection reset by peer")

	tests := []struct {
		name    string
		in      error
		invalid bool
		message string
	}{
		{"nil", nil, false, ""},
		{"numeric overflow", &pgconn.PgError{Code: "22003", Message: "numeric field overflow"}, true, "invalid data: numeric field overflow"},
		{"varchar too long", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "22001", Message: "value too long for type character varying(20)"}), true, "invalid data: value too long for type character varying(20)"},
		{"not null names column", &pgconn.PgError{Code: "23502", Message: "null value violates not-null constraint", ColumnName: "symbol"}, true, "invalid data: symbol: null value violates not-null constraint"},
		{"check constraint", gorm.ErrCheckConstraintViolated, true, "invalid data: violates check constraint"},
		{"unique violation passes through", &pgconn.PgError{Code: "23505", Message: "duplicate key"}, false, ""},
		{"connection error passes through", connErr, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := translateWriteError(tt.in)
			if tt.in == nil {
				assert.NoError(t, got)
				return
			}
			assert.Equal(t, tt.invalid, errors.Is(got, ErrInvalidData))
			if tt.invalid {
				assert.EqualError(t, got, tt.message)
			} else {
				assert.Same(t, tt.in, got)
			}
		})
	}
}
