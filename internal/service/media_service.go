package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"
	"github.com/tradejournal/internal/models"
	"github.com/tradejournal/internal/storage"
	"github.com/tradejournal/pkg/keygen"
)

var (
	ErrUnsupportedMedia = errors.New("unsupported file type")
	ErrFileTooLarge     = errors.New("file too large")
	ErrEmptyUpload      = errors.New("file is empty")
)

// sniffLen is how much of an upload is inspected for its real content type
const sniffLen = 3072

var allowedUploadTypes = []string{
	"image/png",
	"image/jpeg",
	"image/webp",
	"image/gif",
	"application/pdf",
}

// MediaTarget is what an upload gets attached to; at most one ID is set
type MediaTarget struct {
	TradeID        *uint
	JournalEntryID *uint
}

// MediaService handles screenshots and attachments
type MediaService struct {
	mediaRepo   MediaStore
	tradeRepo   TradeStore
	journalRepo JournalStore
	store       storage.ObjectStore
	maxBytes    int64
	logger      logrus.FieldLogger
	now         func() time.Time
}

// NewMediaService creates a new MediaService
func NewMediaService(
	mediaRepo MediaStore,
	tradeRepo TradeStore,
	journalRepo JournalStore,
	store storage.ObjectStore,
	maxBytes int64,
	logger logrus.FieldLogger,
) *MediaService {
	return &MediaService{
		mediaRepo:   mediaRepo,
		tradeRepo:   tradeRepo,
		journalRepo: journalRepo,
		store:       store,
		maxBytes:    maxBytes,
		logger:      logger,
		now:         time.Now,
	}
}

// Upload stores a file and records it against target after checking ownership.
// The content type is sniffed from the bytes; the client-declared type is ignored.
func (s *MediaService) Upload(ctx context.Context, userID uint, target MediaTarget, kind models.MediaKind, r io.Reader, size int64, name string) (*models.Media, error) {
	if size > s.maxBytes {
		return nil, ErrFileTooLarge
	}

	if target.TradeID != nil {
		if _, err := s.tradeRepo.GetByIDAndUserID(ctx, *target.TradeID, userID); err != nil {
			return nil, err
		}
	}
	if target.JournalEntryID != nil {
		if _, err := s.journalRepo.GetByIDAndUserID(ctx, *target.JournalEntryID, userID); err != nil {
			return nil, err
		}
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	if n == 0 {
		return nil, ErrEmptyUpload
	}
	head = head[:n]

	contentType := detectUploadType(head)
	if contentType == "" {
		return nil, ErrUnsupportedMedia
	}

	counter := &countingReader{r: io.LimitReader(io.MultiReader(bytes.NewReader(head), r), s.maxBytes+1)}
	key := keygen.ObjectKey(userID, contentType, s.now())

	if err := s.store.Put(ctx, key, counter, size, contentType); err != nil {
		return nil, fmt.Errorf("failed to store upload: %w", err)
	}
	if counter.n > s.maxBytes {
		s.removeObject(ctx, key)
		return nil, ErrFileTooLarge
	}

	media := &models.Media{
		UserID:         userID,
		TradeID:        target.TradeID,
		JournalEntryID: target.JournalEntryID,
		Kind:           kind,
		ObjectKey:      key,
		ContentType:    contentType,
		Size:           counter.n,
		OriginalName:   keygen.SanitizeFileName(name),
	}
	if err := s.mediaRepo.Create(ctx, media); err != nil {
		s.removeObject(ctx, key)
		return nil, fmt.Errorf("failed to record upload: %w", err)
	}

	return media, nil
}

// Open returns the stored object of one of the user's media records
func (s *MediaService) Open(ctx context.Context, userID, mediaID uint) (*models.Media, io.ReadCloser, error) {
	media, err := s.mediaRepo.GetByIDAndUserID(ctx, mediaID, userID)
	if err != nil {
		return nil, nil, err
	}
	rc, err := s.store.Open(ctx, media.ObjectKey)
	if err != nil {
		return nil, nil, err
	}
	return media, rc, nil
}

// ListForTrade lists media attached to one of the user's trades
func (s *MediaService) ListForTrade(ctx context.Context, userID, tradeID uint) ([]models.Media, error) {
	if _, err := s.tradeRepo.GetByIDAndUserID(ctx, tradeID, userID); err != nil {
		return nil, err
	}
	return s.mediaRepo.GetByTradeID(ctx, tradeID, userID)
}

// ListForJournalEntry lists media attached to one of the user's journal entries
func (s *MediaService) ListForJournalEntry(ctx context.Context, userID, entryID uint) ([]models.Media, error) {
	if _, err := s.journalRepo.GetByIDAndUserID(ctx, entryID, userID); err != nil {
		return nil, err
	}
	return s.mediaRepo.GetByJournalEntryID(ctx, entryID, userID)
}

// Delete soft deletes a media record; the media sweeper removes the object
func (s *MediaService) Delete(ctx context.Context, userID, mediaID uint) error {
	return s.mediaRepo.Delete(ctx, mediaID, userID)
}

func (s *MediaService) removeObject(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		s.logger.WithError(err).WithField("object_key", key).Warn("failed to remove orphaned upload")
	}
}

func detectUploadType(head []byte) string {
	mt := mimetype.Detect(head)
	for _, allowed := range allowedUploadTypes {
		if mt.Is(allowed) {
			return allowed
		}
	}
	return ""
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
