package domain

import (
	"context"

	"go.uber.org/zap"

	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
)

// TxStore is the slice of the local store the persistence worker needs.
type TxStore interface {
	UpsertTransactions(ctx context.Context, txs []entities.Transaction) error
}

// Writer drains the bounded write queue and upserts each batch. The
// queue's capacity is the pipeline's backpressure point: a slow store
// eventually blocks the retrieval worker instead of growing memory.
type Writer struct {
	store   TxStore
	logger  *zap.SugaredLogger
	metrics *Metrics
}

func NewWriter(store TxStore, logger *zap.SugaredLogger, metrics *Metrics) *Writer {
	return &Writer{
		store:   store,
		logger:  logger,
		metrics: metrics,
	}
}

// Run consumes batches until the queue is closed or ctx is cancelled.
// A failed upsert drops that batch, bumps the failure count and keeps
// the worker alive; it is never escalated into a session abort.
func (w *Writer) Run(ctx context.Context, queue <-chan []entities.Transaction) (written, failures int) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Infow("persistence writer stopping on cancellation", "written", written)
			return written, failures
		case batch, ok := <-queue:
			if !ok {
				w.logger.Infow("persistence writer finished", "written", written, "failures", failures)
				return written, failures
			}
			if len(batch) == 0 {
				continue
			}
			if err := w.store.UpsertTransactions(ctx, batch); err != nil {
				failures++
				w.metrics.IncWriteFailures()
				w.logger.Errorw("dropping batch after store write error",
					"batchSize", len(batch), "error", err)
				continue
			}
			written += len(batch)
			w.metrics.AddTransactionsWritten(len(batch))
		}
	}
}
