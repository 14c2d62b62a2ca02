package kaspa

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(baseURL string) *Client {
	return NewClient(Config{
		BaseURL:        baseURL,
		RequestTimeout: 5 * time.Second,
		RetryAttempts:  3,
		RetryBackoff:   time.Millisecond,
	}, zap.NewNop().Sugar())
}

func TestClient_GetFullTransactions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/addresses/kaspa:qqtest/full-transactions", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		assert.Equal(t, "100", r.URL.Query().Get("offset"))
		assert.Contains(t, r.Header.Get("User-Agent"), "kaspa-tx-sync")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{
				"transaction_id": "abc123",
				"is_accepted": true,
				"block_time": 1700000000123,
				"accepting_block_blue_score": 42,
				"inputs": [{"previous_outpoint_address": "kaspa:qqa", "previous_outpoint_amount": 150000000}],
				"outputs": [{"script_public_key_address": "kaspa:qqtest", "amount": 140000000}]
			}
		]`))
	}))
	defer server.Close()

	page, err := newTestClient(server.URL).GetFullTransactions(context.Background(), "kaspa:qqtest", 50, 100)
	require.NoError(t, err)
	require.Len(t, page, 1)

	entry := page[0]
	assert.Equal(t, "abc123", entry.TransactionID)
	assert.True(t, entry.IsAccepted)
	assert.Equal(t, int64(1700000000123), entry.BlockTime)
	assert.Equal(t, uint64(42), entry.AcceptingBlockBlueScore)
	require.Len(t, entry.Inputs, 1)
	assert.Equal(t, int64(150000000), entry.Inputs[0].PreviousOutpointAmount)
	require.Len(t, entry.Outputs, 1)
	assert.Equal(t, "kaspa:qqtest", entry.Outputs[0].ScriptPublicKeyAddress)
}

func TestClient_GetFullTransactions_emptyPage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	page, err := newTestClient(server.URL).GetFullTransactions(context.Background(), "kaspa:qqtest", 50, 0)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestClient_retriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetFullTransactions(context.Background(), "kaspa:qqtest", 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_exhaustedRetriesFail(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetFullTransactions(context.Background(), "kaspa:qqtest", 50, 0)
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_doesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetFullTransactions(context.Background(), "kaspa:qqmissing", 50, 0)
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_cancelledContextStopsRetrying(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestClient(server.URL).GetFullTransactions(ctx, "kaspa:qqtest", 50, 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_GetBalance(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/addresses/kaspa:qqtest/balance", r.URL.Path)
		_, _ = w.Write([]byte(`{"address": "kaspa:qqtest", "balance": 250000000}`))
	}))
	defer server.Close()

	balance, err := newTestClient(server.URL).GetBalance(context.Background(), "kaspa:qqtest")
	require.NoError(t, err)
	assert.InDelta(t, 2.5, balance, 1e-9)
}

func TestClient_malformedJSONFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{not json`))
	}))
	defer server.Close()

	_, err := newTestClient(server.URL).GetFullTransactions(context.Background(), "kaspa:qqtest", 50, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")
}
