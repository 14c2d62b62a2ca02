// Package consume holds delivery-queue consumers. They drain a sync
// session's delivery queue at their own pace and never apply
// backpressure to the pipeline.
package consume

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/KaspaPulse/KaspaGateway-sub000/delivery"
	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
)

// DocumentIndexer receives batches of canonical transactions keyed by
// txid, so repeated deliveries of the same row are idempotent.
type DocumentIndexer interface {
	BulkIndex(ctx context.Context, txs []entities.Transaction) error
}

// Mirror replicates delivered batches into a remote document index.
// Sink failures are logged and counted; a failed batch is skipped, the
// local store remains the source of truth.
type Mirror struct {
	indexer      DocumentIndexer
	indexTimeout time.Duration
	logger       *zap.SugaredLogger

	indexed  atomic.Int64
	failures atomic.Int64
}

func NewMirror(indexer DocumentIndexer, indexTimeout time.Duration, logger *zap.SugaredLogger) *Mirror {
	return &Mirror{
		indexer:      indexer,
		indexTimeout: indexTimeout,
		logger:       logger,
	}
}

// Attach starts draining the queue at the given cadence. Stop the
// returned drainer (or close the queue) to finish.
func (m *Mirror) Attach(queue *delivery.Queue, interval time.Duration) *delivery.Drainer {
	return delivery.StartDrainer(queue, interval, m.HandleBatch)
}

// HandleBatch indexes one delivered batch.
func (m *Mirror) HandleBatch(batch []entities.Transaction) {
	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.indexTimeout)
	defer cancel()

	if err := m.indexer.BulkIndex(ctx, batch); err != nil {
		m.failures.Add(1)
		m.logger.Errorw("skipping batch after index error", "batchSize", len(batch), "error", err)
		return
	}
	m.indexed.Add(int64(len(batch)))
}

// Indexed returns the number of successfully mirrored transactions.
func (m *Mirror) Indexed() int64 {
	return m.indexed.Load()
}

// Failures returns the number of skipped batches.
func (m *Mirror) Failures() int64 {
	return m.failures.Load()
}
