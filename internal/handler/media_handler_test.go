package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradejournal/internal/models"
	"github.com/tradejournal/internal/repository"
	"github.com/tradejournal/internal/service"
	"github.com/tradejournal/internal/storage"
)

type memMedia struct {
	mu    sync.Mutex
	items map[uint]models.Media
}

func (m *memMedia) Create(_ context.Context, media *models.Media) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	media.ID = uint(len(m.items) + 1)
	m.items[media.ID] = *media
	return nil
}

func (m *memMedia) GetByIDAndUserID(_ context.Context, id, userID uint) (*models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.UserID != userID || item.DeletedAt.Valid {
		return nil, repository.ErrMediaNotFound
	}
	return &item, nil
}

func (m *memMedia) GetByTradeID(_ context.Context, tradeID, userID uint) ([]models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Media{}
	for _, item := range m.items {
		if item.UserID == userID && item.TradeID != nil && *item.TradeID == tradeID && !item.DeletedAt.Valid {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memMedia) GetByJournalEntryID(_ context.Context, entryID, userID uint) ([]models.Media, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Media{}
	for _, item := range m.items {
		if item.UserID == userID && item.JournalEntryID != nil && *item.JournalEntryID == entryID && !item.DeletedAt.Valid {
			out = append(out, item)
		}
	}
	return out, nil
}

func (m *memMedia) Delete(_ context.Context, id, userID uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[id]
	if !ok || item.UserID != userID || item.DeletedAt.Valid {
		return repository.ErrMediaNotFound
	}
	item.DeletedAt.Time = time.Now()
	item.DeletedAt.Valid = true
	m.items[id] = item
	return nil
}

type noJournal struct{}

func (noJournal) Create(context.Context, *models.JournalEntry) error { return nil }
func (noJournal) GetByIDAndUserID(context.Context, uint, uint) (*models.JournalEntry, error) {
	return nil, repository.ErrJournalEntryNotFound
}
func (noJournal) GetByUserIDPaginated(context.Context, uint, *uint, int, int) ([]models.JournalEntry, int64, error) {
	return nil, 0, nil
}
func (noJournal) Update(context.Context, *models.JournalEntry) error { return nil }
func (noJournal) Delete(context.Context, uint, uint) error {
	return repository.ErrJournalEntryNotFound
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00"), make([]byte, 64)...)

func newMediaRouter(t *testing.T) (*gin.Engine, *memTrades) {
	t.Helper()
	logger, _ := test.NewNullLogger()

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	trades := &memTrades{}
	require.NoError(t, trades.Create(context.Background(), &models.Trade{
		UserID:     7,
		Symbol:     "AAPL",
		Direction:  models.DirectionLong,
		EntryPrice: decimal.NewFromInt(1),
		Quantity:   decimal.NewFromInt(1),
		EntryDate:  time.Now(),
	}))

	svc := service.NewMediaService(&memMedia{items: map[uint]models.Media{}}, trades, noJournal{}, store, 1<<20, logger)
	h := NewMediaHandler(svc, 1<<20, logger)

	r := gin.New()
	h.RegisterRoutes(r.Group("/api/v1"), fakeAuth(7), RateLimits{})
	return r, trades
}

func uploadRequest(t *testing.T, url, name string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, url, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestScreenshotUploadAndDownload(t *testing.T) {
	r, _ := newMediaRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/api/v1/trades/1/screenshots", "entry.png", pngBytes))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var env struct {
		Data models.Media `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "image/png", env.Data.ContentType)
	assert.Equal(t, models.MediaKindScreenshot, env.Data.Kind)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/trades/1/media", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"content_type":"image/png"`)

	contentURL := fmt.Sprintf("/api/v1/media/%d/content", env.Data.ID)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, contentURL, nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, pngBytes, w.Body.Bytes())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/v1/media/%d", env.Data.ID), nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, contentURL, nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadRejections(t *testing.T) {
	r, _ := newMediaRouter(t)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/api/v1/trades/1/screenshots", "notes.png", []byte("just some text, not an image")))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/api/v1/trades/2/screenshots", "entry.png", pngBytes))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/api/v1/journal/1/media", "entry.png", pngBytes))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, uploadRequest(t, "/api/v1/journal/1/media?kind=video", "entry.png", pngBytes))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/trades/1/screenshots", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
