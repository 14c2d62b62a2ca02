package entities

import "time"

// FetchMode selects how a sync session treats already-persisted history.
type FetchMode string

const (
	// ModeIncremental keeps local rows and dedups against them in memory.
	ModeIncremental FetchMode = "incremental"
	// ModeFullResync wipes the address's local history before fetching
	// and triggers store compaction afterwards.
	ModeFullResync FetchMode = "full-resync"
)

// Filters bound a sync session and store reads. Zero values mean
// unbounded / no restriction. StartTime and EndTime are inclusive unix
// seconds; only the time range influences pagination, the remaining
// fields apply to store queries.
type Filters struct {
	StartTime int64
	EndTime   int64
	Kind      Kind
	Direction Direction
	Search    string
}

// InRange reports whether a unix-seconds timestamp falls inside the
// filter's time window.
func (f Filters) InRange(ts int64) bool {
	if f.StartTime > 0 && ts < f.StartTime {
		return false
	}
	if f.EndTime > 0 && ts > f.EndTime {
		return false
	}
	return true
}

// FetchStatus is the terminal state of a sync session. Cancellation is
// a first-class outcome, not a failure.
type FetchStatus string

const (
	StatusSuccess   FetchStatus = "success"
	StatusCancelled FetchStatus = "cancelled"
	StatusError     FetchStatus = "error"
)

// FetchResult is the terminal report of one sync session, published
// once both session workers have finished.
type FetchResult struct {
	Address         string
	Mode            FetchMode
	Status          FetchStatus
	Err             error
	Elapsed         time.Duration
	NewTransactions int
	WriteFailures   int
}

// SyncRecord is the per-address bookkeeping entry kept in the sync
// status store.
type SyncRecord struct {
	Status        FetchStatus
	FinishedAt    int64
	Transactions  int
	WriteFailures int
}
