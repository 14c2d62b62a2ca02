package prices

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Snapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "kaspa", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd,eur", r.URL.Query().Get("vs_currencies"))
		_, _ = w.Write([]byte(`{"kaspa": {"usd": 0.0721, "eur": 0.0655}}`))
	}))
	defer server.Close()

	snapshot, err := NewClient(server.URL, time.Second).Snapshot(context.Background(), []string{"usd", "eur"})
	require.NoError(t, err)
	assert.InDelta(t, 0.0721, snapshot["usd"], 1e-9)
	assert.InDelta(t, 0.0655, snapshot["eur"], 1e-9)
}

func TestClient_Snapshot_missingCoin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Snapshot(context.Background(), []string{"usd"})
	require.Error(t, err)
}

func TestClient_Snapshot_serverError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	_, err := NewClient(server.URL, time.Second).Snapshot(context.Background(), []string{"usd"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}
