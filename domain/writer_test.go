package domain

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
)

// recordingStore implements the coordinator's Store contract in memory.
type recordingStore struct {
	mu          sync.Mutex
	rows        map[string]entities.Transaction
	upsertErrAt int // 1-based upsert call to fail, 0 = never
	upserts     int
	deletes     []string
	compactions int
	upsertGate  chan struct{} // when set, every upsert blocks on a receive
}

func newRecordingStore() *recordingStore {
	return &recordingStore{rows: make(map[string]entities.Transaction)}
}

func (s *recordingStore) UpsertTransactions(_ context.Context, txs []entities.Transaction) error {
	if s.upsertGate != nil {
		<-s.upsertGate
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.upserts++
	if s.upsertErrAt > 0 && s.upserts == s.upsertErrAt {
		return assert.AnError
	}
	for _, tx := range txs {
		s.rows[tx.TxID] = tx
	}
	return nil
}

func (s *recordingStore) ExistingTxIDs(_ context.Context, address string) (map[string]struct{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make(map[string]struct{})
	for txid, tx := range s.rows {
		if tx.Address == address {
			ids[txid] = struct{}{}
		}
	}
	return ids, nil
}

func (s *recordingStore) DeleteForAddress(_ context.Context, address string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes = append(s.deletes, address)
	var deleted int64
	for txid, tx := range s.rows {
		if tx.Address == address {
			delete(s.rows, txid)
			deleted++
		}
	}
	return deleted, nil
}

func (s *recordingStore) Compact(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.compactions++
	return nil
}

func (s *recordingStore) storedTxIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.rows))
	for txid := range s.rows {
		ids = append(ids, txid)
	}
	return ids
}

func (s *recordingStore) compactionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.compactions
}

func canonical(txid string) entities.Transaction {
	return entities.Transaction{TxID: txid, Address: testAddress, Timestamp: 1700000000}
}

func TestWriter_drainsUntilClose(t *testing.T) {
	store := newRecordingStore()
	w := NewWriter(store, testLogger(), metrics)

	queue := make(chan []entities.Transaction, 4)
	queue <- []entities.Transaction{canonical("t1"), canonical("t2")}
	queue <- nil // empty batch is a no-op
	queue <- []entities.Transaction{canonical("t3")}
	close(queue)

	written, failures := w.Run(context.Background(), queue)

	assert.Equal(t, 3, written)
	assert.Zero(t, failures)
	assert.ElementsMatch(t, []string{"t1", "t2", "t3"}, store.storedTxIDs())
}

func TestWriter_absorbsWriteFailures(t *testing.T) {
	store := newRecordingStore()
	store.upsertErrAt = 2
	w := NewWriter(store, testLogger(), metrics)

	queue := make(chan []entities.Transaction, 4)
	queue <- []entities.Transaction{canonical("t1")}
	queue <- []entities.Transaction{canonical("t2")} // dropped
	queue <- []entities.Transaction{canonical("t3")}
	close(queue)

	written, failures := w.Run(context.Background(), queue)

	assert.Equal(t, 2, written)
	assert.Equal(t, 1, failures)
	assert.ElementsMatch(t, []string{"t1", "t3"}, store.storedTxIDs())
}

func TestWriter_stopsOnCancellation(t *testing.T) {
	store := newRecordingStore()
	w := NewWriter(store, testLogger(), metrics)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	queue := make(chan []entities.Transaction) // unbuffered, nothing will arrive
	done := make(chan struct{})
	go func() {
		defer close(done)
		written, _ := w.Run(ctx, queue)
		assert.Zero(t, written)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("writer did not observe cancellation")
	}
}

func TestWriter_idempotentUpsert(t *testing.T) {
	store := newRecordingStore()
	w := NewWriter(store, testLogger(), metrics)

	batch := []entities.Transaction{canonical("t1"), canonical("t2")}

	queue := make(chan []entities.Transaction, 2)
	queue <- batch
	queue <- batch // same batch twice must not duplicate rows
	close(queue)

	_, failures := w.Run(context.Background(), queue)

	require.Zero(t, failures)
	assert.ElementsMatch(t, []string{"t1", "t2"}, store.storedTxIDs())
}
