package domain

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
)

// Fetcher pulls one page of raw ledger entries from the remote indexer.
// Pages are ordered by descending time across the whole result set.
type Fetcher interface {
	GetFullTransactions(ctx context.Context, address string, limit, offset int) ([]entities.LedgerTransaction, error)
}

// RetrieverConfig bounds the pagination loop. PageSize is dictated by
// the server-side page limit; MaxPages is a hard safety stop.
type RetrieverConfig struct {
	PageSize     int
	MaxPages     int
	PageDelay    time.Duration
	FetchTimeout time.Duration
	Currencies   []string
}

// Retriever walks the indexer's paginated full-transactions feed for
// one address, normalizes every page and emits the surviving rows in
// page order.
type Retriever struct {
	fetcher Fetcher
	cfg     RetrieverConfig
	logger  *zap.SugaredLogger
	metrics *Metrics
}

func NewRetriever(fetcher Fetcher, cfg RetrieverConfig, logger *zap.SugaredLogger, metrics *Metrics) *Retriever {
	return &Retriever{
		fetcher: fetcher,
		cfg:     cfg,
		logger:  logger,
		metrics: metrics,
	}
}

// Retrieve pages through the session's history until a short page, an
// out-of-window page, the page cap or cancellation ends the loop.
// Emitted batches are never rolled back: on error or cancellation the
// rows handed to onBatch so far stand.
func (r *Retriever) Retrieve(ctx context.Context, sess *session, onBatch func([]entities.Transaction)) error {
	offset := 0

	for page := 1; page <= r.cfg.MaxPages; page++ {
		select {
		case <-ctx.Done():
			r.logger.Infow("retrieval cancelled", "address", sess.address, "page", page)
			return entities.ErrSessionCancelled
		default:
		}

		raw, err := r.fetchPage(ctx, sess.address, offset)
		if err != nil {
			if ctx.Err() != nil {
				return entities.ErrSessionCancelled
			}
			return errors.Wrapf(err, "fetching page %d", page)
		}
		r.metrics.IncPagesFetched()

		if len(raw) == 0 {
			r.logger.Infow("stopping pagination, indexer returned no more transactions",
				"address", sess.address, "page", page)
			return nil
		}

		rows := NormalizeTransactions(raw, sess.address, sess.prices, r.cfg.Currencies, r.logger)
		batch := sess.filterRows(rows)
		if len(batch) > 0 {
			r.metrics.AddTransactionsEmitted(len(batch))
			onBatch(batch)
		}

		newest, hasAccepted := newestAcceptedTimestamp(raw)
		if hasAccepted && sess.filters.StartTime > 0 && newest < sess.filters.StartTime {
			r.logger.Infow("stopping pagination, remaining history precedes the time window",
				"address", sess.address, "page", page, "newestTimestamp", newest)
			return nil
		}

		if len(raw) < r.cfg.PageSize {
			r.logger.Infow("stopping pagination on partial page",
				"address", sess.address, "page", page, "pageRows", len(raw))
			return nil
		}

		offset += len(raw)
		if r.cfg.PageDelay > 0 {
			time.Sleep(r.cfg.PageDelay)
		}
	}

	r.logger.Warnw("stopping pagination at page cap", "address", sess.address, "maxPages", r.cfg.MaxPages)
	return nil
}

func (r *Retriever) fetchPage(ctx context.Context, address string, offset int) ([]entities.LedgerTransaction, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()
	return r.fetcher.GetFullTransactions(fetchCtx, address, r.cfg.PageSize, offset)
}

// newestAcceptedTimestamp returns the maximum block time (in unix
// seconds) among accepted entries of a raw page. A page without any
// accepted entry cannot drive the time-window stop rule.
func newestAcceptedTimestamp(raw []entities.LedgerTransaction) (int64, bool) {
	var newest int64
	found := false
	for _, entry := range raw {
		if !entry.IsAccepted {
			continue
		}
		ts := entry.BlockTime / 1000
		if !found || ts > newest {
			newest = ts
		}
		found = true
	}
	return newest, found
}
