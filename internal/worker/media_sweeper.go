package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tradejournal/internal/models"
	"github.com/tradejournal/internal/storage"
)

// sweepBatchSize caps rows handled per tick
const sweepBatchSize = 100

// DeletedMediaStore lists and purges soft-deleted media rows
type DeletedMediaStore interface {
	GetDeleted(ctx context.Context, limit int) ([]models.Media, error)
	Purge(ctx context.Context, id uint) error
}

// MediaSweeper removes the stored objects of deleted media and then
// hard-deletes their rows
type MediaSweeper struct {
	mediaRepo DeletedMediaStore
	store     storage.ObjectStore
	interval  time.Duration
	logger    logrus.FieldLogger
	stopChan  chan struct{}
	stopOnce  sync.Once
}

// NewMediaSweeper creates a new media sweeper
func NewMediaSweeper(
	mediaRepo DeletedMediaStore,
	store storage.ObjectStore,
	interval time.Duration,
	logger logrus.FieldLogger,
) *MediaSweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &MediaSweeper{
		mediaRepo: mediaRepo,
		store:     store,
		interval:  interval,
		logger:    logger.WithField("worker", "media_sweeper"),
		stopChan:  make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop is called
func (w *MediaSweeper) Start() {
	w.logger.WithField("interval", w.interval.String()).Info("media sweeper started")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Sweep(context.Background())
		case <-w.stopChan:
			w.logger.Info("media sweeper stopped")
			return
		}
	}
}

// Stop stops the sweep loop
func (w *MediaSweeper) Stop() {
	w.stopOnce.Do(func() { close(w.stopChan) })
}

// Sweep processes one batch and returns how many rows were purged
func (w *MediaSweeper) Sweep(ctx context.Context) int {
	media, err := w.mediaRepo.GetDeleted(ctx, sweepBatchSize)
	if err != nil {
		w.logger.WithError(err).Error("failed to list deleted media")
		return 0
	}

	purged := 0
	for _, m := range media {
		log := w.logger.WithFields(logrus.Fields{
			"media_id":   m.ID,
			"object_key": m.ObjectKey,
		})

		// a missing object was already removed by an earlier sweep
		if err := w.store.Delete(ctx, m.ObjectKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			log.WithError(err).Warn("failed to delete object")
			continue
		}
		if err := w.mediaRepo.Purge(ctx, m.ID); err != nil {
			log.WithError(err).Warn("failed to purge media row")
			continue
		}
		purged++
	}

	if purged > 0 {
		w.logger.WithField("purged", purged).Info("deleted media swept")
	}
	return purged
}
