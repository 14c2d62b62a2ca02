package domain

import (
	"time"

	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
)

// session is the ephemeral state of one fetch. It is created by the
// coordinator, read by the retriever and discarded once both workers
// of the fetch have terminated.
type session struct {
	address   string
	mode      entities.FetchMode
	filters   entities.Filters
	prices    map[string]float64
	existing  map[string]struct{}
	startedAt time.Time
}

// filterRows drops rows outside the session's time window and, outside
// full-resync mode, rows whose txid is already persisted. The known-id
// set dedups in memory only; it never stops pagination.
func (s *session) filterRows(rows []entities.Transaction) []entities.Transaction {
	if len(rows) == 0 {
		return nil
	}

	kept := rows[:0:0]
	for _, row := range rows {
		if !s.filters.InRange(row.Timestamp) {
			continue
		}
		if s.mode != entities.ModeFullResync {
			if _, known := s.existing[row.TxID]; known {
				continue
			}
		}
		kept = append(kept, row)
	}
	return kept
}
