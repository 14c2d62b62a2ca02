package domain

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/KaspaPulse/KaspaGateway-sub000/delivery"
	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
)

// Store is the full local-store contract the coordinator consumes.
type Store interface {
	TxStore
	ExistingTxIDs(ctx context.Context, address string) (map[string]struct{}, error)
	DeleteForAddress(ctx context.Context, address string) (int64, error)
	Compact(ctx context.Context) error
}

// PriceSource supplies the fiat price snapshot taken at session start.
type PriceSource interface {
	Snapshot(ctx context.Context, currencies []string) (map[string]float64, error)
}

// SessionRecorder persists per-address sync bookkeeping. Optional.
type SessionRecorder interface {
	SetSyncRecord(address string, rec entities.SyncRecord) error
}

type CoordinatorConfig struct {
	// QueueCapacity bounds the write queue between the retrieval and
	// persistence workers.
	QueueCapacity   int
	CompactionDelay time.Duration
	SetupTimeout    time.Duration
	Currencies      []string
}

// Coordinator owns the lifecycle of fetch sessions: at most one at a
// time, each running a retrieval worker and a persistence worker joined
// through the bounded write queue, with every batch fanned out to the
// session's unbounded delivery queue as well.
type Coordinator struct {
	retriever *Retriever
	writer    *Writer
	store     Store
	prices    PriceSource
	recorder  SessionRecorder
	cfg       CoordinatorConfig
	logger    *zap.SugaredLogger
	metrics   *Metrics

	inProgress atomic.Bool
	results    chan entities.FetchResult

	mu         sync.Mutex
	cancel     context.CancelFunc
	deliveries *delivery.Queue
}

func NewCoordinator(
	retriever *Retriever,
	writer *Writer,
	store Store,
	prices PriceSource,
	recorder SessionRecorder,
	cfg CoordinatorConfig,
	logger *zap.SugaredLogger,
	metrics *Metrics,
) *Coordinator {
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = 10
	}
	if cfg.SetupTimeout <= 0 {
		cfg.SetupTimeout = 30 * time.Second
	}
	return &Coordinator{
		retriever: retriever,
		writer:    writer,
		store:     store,
		prices:    prices,
		recorder:  recorder,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		results:   make(chan entities.FetchResult, 4),
	}
}

// StartFetch begins a sync session for the address. It fails fast with
// ErrFetchInProgress while another session is active and returns setup
// errors before any worker has started; once it returns nil the outcome
// arrives on Results.
func (c *Coordinator) StartFetch(address string, mode entities.FetchMode, filters entities.Filters) error {
	if !c.inProgress.CompareAndSwap(false, true) {
		return entities.ErrFetchInProgress
	}

	target := strings.ToLower(strings.TrimSpace(address))

	setupCtx, cancelSetup := context.WithTimeout(context.Background(), c.cfg.SetupTimeout)
	defer cancelSetup()

	sess := &session{
		address:   target,
		mode:      mode,
		filters:   filters,
		startedAt: time.Now(),
	}

	prices, err := c.prices.Snapshot(setupCtx, c.cfg.Currencies)
	if err != nil {
		// absent prices render fiat values as zero, the sync itself proceeds
		c.logger.Warnw("continuing without price snapshot", "error", err)
		prices = map[string]float64{}
	}
	sess.prices = prices

	if mode == entities.ModeFullResync {
		deleted, err := c.store.DeleteForAddress(setupCtx, target)
		if err != nil {
			c.inProgress.Store(false)
			return errors.Wrap(err, "clearing local history for full resync")
		}
		c.logger.Infow("cleared local history for full resync", "address", target, "deleted", deleted)
	} else {
		existing, err := c.store.ExistingTxIDs(setupCtx, target)
		if err != nil {
			c.inProgress.Store(false)
			return errors.Wrap(err, "loading known transaction ids")
		}
		sess.existing = existing
	}

	ctx, cancel := context.WithCancel(context.Background())
	queue := delivery.NewQueue()

	c.mu.Lock()
	c.cancel = cancel
	c.deliveries = queue
	c.mu.Unlock()

	c.metrics.SetFetchInProgress(true)
	c.logger.Infow("starting fetch session", "address", target, "mode", mode)

	writeQueue := make(chan []entities.Transaction, c.cfg.QueueCapacity)
	writerDone := make(chan writerOutcome, 1)
	go func() {
		written, failures := c.writer.Run(ctx, writeQueue)
		writerDone <- writerOutcome{written: written, failures: failures}
	}()

	go c.runSession(ctx, cancel, sess, queue, writeQueue, writerDone)

	return nil
}

// StopFetch requests cooperative cancellation of the active session.
// It never blocks; the workers observe the signal at loop boundaries.
func (c *Coordinator) StopFetch() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}

// Deliveries returns the delivery queue of the active (or most recent)
// session, nil before the first StartFetch. The queue is closed as the
// end-of-stream sentinel when the session reaches a terminal state.
func (c *Coordinator) Deliveries() *delivery.Queue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.deliveries
}

// Results carries one terminal report per finished session.
func (c *Coordinator) Results() <-chan entities.FetchResult {
	return c.results
}

// InProgress reports whether a session is currently active.
func (c *Coordinator) InProgress() bool {
	return c.inProgress.Load()
}

type writerOutcome struct {
	written  int
	failures int
}

func (c *Coordinator) runSession(
	ctx context.Context,
	cancel context.CancelFunc,
	sess *session,
	queue *delivery.Queue,
	writeQueue chan []entities.Transaction,
	writerDone <-chan writerOutcome,
) {
	defer cancel()

	produced := 0
	retrieveErr := c.retriever.Retrieve(ctx, sess, func(batch []entities.Transaction) {
		select {
		case writeQueue <- batch:
		case <-ctx.Done():
			return
		}
		produced += len(batch)
		queue.Push(batch)
	})

	close(writeQueue)
	outcome := <-writerDone
	queue.Close()

	status := entities.StatusSuccess
	switch {
	case retrieveErr == nil:
	case errors.Is(retrieveErr, entities.ErrSessionCancelled), errors.Is(retrieveErr, context.Canceled):
		status = entities.StatusCancelled
		retrieveErr = nil
	default:
		status = entities.StatusError
	}

	elapsed := time.Since(sess.startedAt)
	c.metrics.ObserveSession(status, elapsed.Seconds())
	c.metrics.SetFetchInProgress(false)

	c.logger.Infow("fetch session finished",
		"address", sess.address,
		"mode", sess.mode,
		"status", status,
		"elapsed", elapsed,
		"newTransactions", produced,
		"written", outcome.written,
		"writeFailures", outcome.failures,
		"error", retrieveErr,
	)

	if c.recorder != nil {
		record := entities.SyncRecord{
			Status:        status,
			FinishedAt:    time.Now().Unix(),
			Transactions:  outcome.written,
			WriteFailures: outcome.failures,
		}
		if err := c.recorder.SetSyncRecord(sess.address, record); err != nil {
			c.logger.Warnw("failed to record sync status", "address", sess.address, "error", err)
		}
	}

	if sess.mode == entities.ModeFullResync && status == entities.StatusSuccess {
		c.scheduleCompaction()
	}

	result := entities.FetchResult{
		Address:         sess.address,
		Mode:            sess.mode,
		Status:          status,
		Err:             retrieveErr,
		Elapsed:         elapsed,
		NewTransactions: produced,
		WriteFailures:   outcome.failures,
	}
	select {
	case c.results <- result:
	default:
		c.logger.Warnw("dropping unread fetch result", "address", sess.address, "status", status)
	}

	c.inProgress.Store(false)
}

// scheduleCompaction runs the store's space-reclaim pass on a delay, so
// that it happens strictly after the writer has drained and the session
// released its handles. Compaction failures are logged, never fatal.
func (c *Coordinator) scheduleCompaction() {
	delay := c.cfg.CompactionDelay
	if delay <= 0 {
		delay = time.Second
	}
	time.AfterFunc(delay, func() {
		ctx, cancelCompaction := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancelCompaction()

		c.logger.Infow("compacting local store after full resync")
		if err := c.store.Compact(ctx); err != nil {
			c.logger.Errorw("store compaction failed", "error", err)
			return
		}
		c.logger.Infow("store compaction finished")
	})
}
