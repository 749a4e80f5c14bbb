package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Badger rewrites a value log file only when at least this share of it
// is stale.
const gcDiscardRatio = 0.5

// BadgerGCWorker periodically runs value-log garbage collection so the
// message store does not grow unbounded on disk.
type BadgerGCWorker struct {
	db       *badger.DB
	log      *slog.Logger
	interval time.Duration
}

func NewBadgerGCWorker(db *badger.DB, log *slog.Logger, interval time.Duration) *BadgerGCWorker {
	return &BadgerGCWorker{db: db, log: log, interval: interval}
}

func (w *BadgerGCWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			// ErrNoRewrite just means there was nothing to collect.
			if err := w.db.RunValueLogGC(gcDiscardRatio); err != nil && err != badger.ErrNoRewrite {
				w.log.Warn("Value log GC failed", "error", err)
			}
		}
	}
}
