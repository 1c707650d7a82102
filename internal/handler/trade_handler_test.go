package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradejournal/internal/middleware"
	"github.com/tradejournal/internal/models"
	"github.com/tradejournal/internal/repository"
	"github.com/tradejournal/internal/service"
	"github.com/tradejournal/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memTrades struct {
	mu         sync.Mutex
	trades     []models.Trade
	batchCalls int
	batchErr   error
}

func (m *memTrades) Create(_ context.Context, trade *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	trade.ID = uint(len(m.trades) + 1)
	m.trades = append(m.trades, *trade)
	return nil
}

func (m *memTrades) CreateBatch(ctx context.Context, trades []models.Trade) error {
	m.mu.Lock()
	m.batchCalls++
	err := m.batchErr
	m.mu.Unlock()
	if err != nil {
		return err
	}
	for i := range trades {
		if err := m.Create(ctx, &trades[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *memTrades) GetByIDAndUserID(_ context.Context, id, userID uint) (*models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.trades {
		if m.trades[i].ID == id && m.trades[i].UserID == userID {
			t := m.trades[i]
			return &t, nil
		}
	}
	return nil, repository.ErrTradeNotFound
}

func (m *memTrades) GetByUserIDPaginated(ctx context.Context, userID uint, filter repository.TradeFilter, _, _ int) ([]models.Trade, int64, error) {
	out, err := m.GetByUserID(ctx, userID, filter)
	return out, int64(len(out)), err
}

func (m *memTrades) GetByUserID(_ context.Context, userID uint, filter repository.TradeFilter) ([]models.Trade, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Trade{}
	for _, t := range m.trades {
		if t.UserID == userID && (filter.Symbol == "" || filter.Symbol == t.Symbol) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memTrades) Update(_ context.Context, trade *models.Trade) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.trades {
		if m.trades[i].ID == trade.ID {
			m.trades[i] = *trade
			return nil
		}
	}
	return repository.ErrTradeNotFound
}

func (m *memTrades) Delete(_ context.Context, id, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.trades {
		if m.trades[i].ID == id && m.trades[i].UserID == userID {
			m.trades = append(m.trades[:i], m.trades[i+1:]...)
			return nil
		}
	}
	return repository.ErrTradeNotFound
}

func fakeAuth(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyUserID, userID)
		c.Next()
	}
}

func newTradeRouter(t *testing.T, store *memTrades, opt service.ImportOptions, limits RateLimits) *gin.Engine {
	t.Helper()
	logger, _ := test.NewNullLogger()
	svc := service.NewTradeService(store, opt, logger)
	h := NewTradeHandler(svc, 1<<20, logger)

	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"), fakeAuth(7), limits)
	return r
}

func importRequest(t *testing.T, url, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", "trades.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

type importEnvelope struct {
	Code    int                  `json:"code"`
	Message string               `json:"message"`
	Data    service.ImportResult `json:"data"`
}

func decodeImport(t *testing.T, w *httptest.ResponseRecorder) importEnvelope {
	t.Helper()
	var env importEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func TestImportTradesCreated(t *testing.T) {
	store := &memTrades{}
	r := newTradeRouter(t, store, service.ImportOptions{}, RateLimits{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, importRequest(t, "/api/v1/trades/import",
		"symbol,direction,entry_price,quantity,entry_date,exit_price\n"+
			"AAPL,long,175.23,100,2023-12-15,182.67\n"+
			"MSFT,short,300,5,2023-12-16,\n"))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	env := decodeImport(t, w)
	assert.Equal(t, 2, env.Data.Imported)
	assert.Equal(t, 2, env.Data.Rows)
	assert.Len(t, store.trades, 2)
	assert.Equal(t, uint(7), store.trades[0].UserID)
}

func TestImportTradesTabDelimiter(t *testing.T) {
	store := &memTrades{}
	r := newTradeRouter(t, store, service.ImportOptions{}, RateLimits{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, importRequest(t, "/api/v1/trades/import?delimiter=tab",
		"symbol\tdirection\tentry_price\tquantity\tentry_date\nAAPL\tbuy\t1\t1\t2024-01-01\n"))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Len(t, store.trades, 1)
}

func TestImportTradesMissingColumns(t *testing.T) {
	store := &memTrades{}
	r := newTradeRouter(t, store, service.ImportOptions{}, RateLimits{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, importRequest(t, "/api/v1/trades/import", "symbol,direction\nAAPL,long\n"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var env response.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "missing required columns: entry_price, quantity, entry_date", env.Message)
	assert.Zero(t, store.batchCalls)
}

func TestImportTradesRowErrorsRejectBatch(t *testing.T) {
	store := &memTrades{}
	r := newTradeRouter(t, store, service.ImportOptions{}, RateLimits{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, importRequest(t, "/api/v1/trades/import",
		"symbol,direction,entry_price,quantity,entry_date\n"+
			"AAPL,long,175.23,100,2023-12-15\n"+
			"MSFT,sideways,300,5,2023-12-16\n"))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), `"line":3`)
	assert.Contains(t, w.Body.String(), `"column":"direction"`)
	assert.Zero(t, store.batchCalls)
	assert.Empty(t, store.trades)
}

func TestImportTradesOutOfRangeValuesAreRowErrors(t *testing.T) {
	store := &memTrades{}
	r := newTradeRouter(t, store, service.ImportOptions{}, RateLimits{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, importRequest(t, "/api/v1/trades/import",
		"symbol,direction,entry_price,quantity,entry_date\n"+
			"ABCDEFGHIJKLMNOPQRSTUVWXY,long,1,1,2024-01-01\n"+
			"AAPL,long,10000000000000,1,2024-01-01\n"))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	env := decodeImport(t, w)
	require.Len(t, env.Data.RowErrors, 2)
	assert.Contains(t, w.Body.String(), `"column":"symbol"`)
	assert.Contains(t, w.Body.String(), `"column":"entry_price"`)
	assert.Zero(t, store.batchCalls)
}

func TestImportTradesStoreRejectionIsReported(t *testing.T) {
	store := &memTrades{batchErr: fmt.Errorf("%w: value too long for type character varying(20)", repository.ErrInvalidData)}
	r := newTradeRouter(t, store, service.ImportOptions{}, RateLimits{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, importRequest(t, "/api/v1/trades/import",
		"symbol,direction,entry_price,quantity,entry_date\nAAPL,long,1,1,2024-01-01\n"))

	require.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
	env := decodeImport(t, w)
	assert.Contains(t, env.Message, "value too long for type character varying(20)")
	assert.Equal(t, 1, store.batchCalls)
	assert.Zero(t, env.Data.Imported)
	assert.Empty(t, store.trades)

	store.batchErr = errors.New("connection refused")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, importRequest(t, "/api/v1/trades/import",
		"symbol,direction,entry_price,quantity,entry_date\nAAPL,long,1,1,2024-01-01\n"))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "connection refused")
}

func TestImportTradesDuplicateColumns(t *testing.T) {
	store := &memTrades{}
	r := newTradeRouter(t, store, service.ImportOptions{}, RateLimits{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, importRequest(t, "/api/v1/trades/import",
		"symbol,direction,entry_price,quantity,entry_date,symbol\nAAPL,long,1,1,2024-01-01,MSFT\n"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "duplicate columns: symbol")
	assert.Zero(t, store.batchCalls)
}

func TestImportTradesBadRequests(t *testing.T) {
	r := newTradeRouter(t, &memTrades{}, service.ImportOptions{}, RateLimits{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/trades/import", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, importRequest(t, "/api/v1/trades/import?delimiter=;;", "x"))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, importRequest(t, "/api/v1/trades/import", ""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestImportTradesRateLimited(t *testing.T) {
	store := &memTrades{}
	deny := func(c *gin.Context) {
		response.TooManyRequests(c, middleware.TooManyRequestsMessage)
		c.Abort()
	}
	r := newTradeRouter(t, store, service.ImportOptions{}, RateLimits{Import: deny})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, importRequest(t, "/api/v1/trades/import",
		"symbol,direction,entry_price,quantity,entry_date\nAAPL,long,1,1,2024-01-01\n"))

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Zero(t, store.batchCalls)
}

func TestTradeCRUD(t *testing.T) {
	store := &memTrades{}
	r := newTradeRouter(t, store, service.ImportOptions{}, RateLimits{})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/trades", bytes.NewBufferString(
		`{"symbol":"aapl","direction":"long","entry_price":"100","quantity":"2","entry_date":"2024-01-02T00:00:00Z"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "AAPL", store.trades[0].Symbol)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/trades/1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPut, "/api/v1/trades/1", bytes.NewBufferString(`{"exit_price":"110"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.TradeStatusClosed, store.trades[0].Status)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/trades?status=pending", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/trades?from=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/trades?symbol=aapl", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"total":1`)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/trades/1", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/trades/1", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/trades/abc", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestParseDelimiter(t *testing.T) {
	tests := []struct {
		in      string
		want    rune
		wantErr bool
	}{
		{"", 0, false},
		{"tab", '\t', false},
		{"TAB", '\t', false},
		{";", ';', false},
		{"|", '|', false},
		{"ab", 0, true},
		{`"`, 0, true},
	}
	for _, tt := range tests {
		got, err := parseDelimiter(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}
