package pebbledb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewSyncStatusStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestStore_setAndGetSyncRecord(t *testing.T) {
	store := openTestStore(t)

	record := entities.SyncRecord{
		Status:        entities.StatusSuccess,
		FinishedAt:    1700000000,
		Transactions:  42,
		WriteFailures: 1,
	}
	require.NoError(t, store.SetSyncRecord("kaspa:qqsome", record))

	got, err := store.GetSyncRecord("kaspa:qqsome")
	require.NoError(t, err)
	assert.Equal(t, record, got)
}

func TestStore_overwriteKeepsLatestRecord(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SetSyncRecord("kaspa:qqsome", entities.SyncRecord{Status: entities.StatusError}))
	require.NoError(t, store.SetSyncRecord("kaspa:qqsome", entities.SyncRecord{Status: entities.StatusSuccess, Transactions: 7}))

	got, err := store.GetSyncRecord("kaspa:qqsome")
	require.NoError(t, err)
	assert.Equal(t, entities.StatusSuccess, got.Status)
	assert.Equal(t, 7, got.Transactions)
}

func TestStore_getMissingRecord(t *testing.T) {
	store := openTestStore(t)

	_, err := store.GetSyncRecord("kaspa:qqunknown")
	assert.ErrorIs(t, err, entities.ErrStoreEntityNotFound)
}

func TestStore_allSyncRecords(t *testing.T) {
	store := openTestStore(t)

	require.NoError(t, store.SetSyncRecord("kaspa:qqa", entities.SyncRecord{Status: entities.StatusSuccess}))
	require.NoError(t, store.SetSyncRecord("kaspa:qqb", entities.SyncRecord{Status: entities.StatusCancelled}))

	records, err := store.AllSyncRecords()
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, entities.StatusSuccess, records["kaspa:qqa"].Status)
	assert.Equal(t, entities.StatusCancelled, records["kaspa:qqb"].Status)
}

func TestStore_allSyncRecordsEmpty(t *testing.T) {
	store := openTestStore(t)

	records, err := store.AllSyncRecords()
	require.NoError(t, err)
	assert.Empty(t, records)
}
