package domain

import (
	"math"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/KaspaPulse/KaspaGateway-sub000/entities"
)

const sompiPerKas = 1e8

// NormalizeTransactions converts raw ledger entries into canonical rows
// for one queried address. Unaccepted entries are dropped, malformed
// entries are skipped with a warning; the function never fails on bad
// input, it just returns fewer rows.
func NormalizeTransactions(
	raw []entities.LedgerTransaction,
	address string,
	prices map[string]float64,
	currencies []string,
	logger *zap.SugaredLogger,
) []entities.Transaction {
	if len(raw) == 0 {
		return nil
	}

	target := strings.ToLower(strings.TrimSpace(address))
	rows := make([]entities.Transaction, 0, len(raw))

	for _, entry := range raw {
		if !entry.IsAccepted {
			continue
		}
		if entry.TransactionID == "" {
			logger.Warnw("skipping malformed ledger entry without transaction id", "address", target)
			continue
		}

		coinbase := len(entry.Inputs) == 0

		var totalIn, totalOut int64
		for _, out := range entry.Outputs {
			if strings.ToLower(out.ScriptPublicKeyAddress) == target {
				totalIn += out.Amount
			}
		}
		for _, in := range entry.Inputs {
			if strings.ToLower(in.PreviousOutpointAddress) == target {
				totalOut += in.PreviousOutpointAmount
			}
		}

		amount := math.Abs(float64(totalIn-totalOut)) / sompiPerKas

		from := uniqueAddresses(len(entry.Inputs), func(i int) string { return entry.Inputs[i].PreviousOutpointAddress })
		to := uniqueAddresses(len(entry.Outputs), func(i int) string { return entry.Outputs[i].ScriptPublicKeyAddress })

		direction := entities.DirectionIncoming
		if !coinbase && containsFold(from, target) && !containsFold(to, target) {
			direction = entities.DirectionOutgoing
		}

		values := make(map[string]float64, len(currencies))
		for _, currency := range currencies {
			values[currency] = amount * prices[currency]
		}

		kind := entities.KindTransfer
		if coinbase {
			kind = entities.KindCoinbase
		}

		rows = append(rows, entities.Transaction{
			TxID:        entry.TransactionID,
			Address:     target,
			Direction:   direction,
			From:        from,
			To:          to,
			Amount:      amount,
			Values:      values,
			BlockHeight: entry.AcceptingBlockBlueScore,
			Timestamp:   entry.BlockTime / 1000,
			Kind:        kind,
		})
	}

	return rows
}

// uniqueAddresses collects the distinct non-empty addresses produced by
// get, sorted for deterministic output. An empty result stands for "no
// counterparties" (e.g. coinbase inputs); serialization of that case is
// the storage layer's concern.
func uniqueAddresses(n int, get func(int) string) []string {
	if n == 0 {
		return nil
	}
	seen := make(map[string]struct{}, n)
	addrs := make([]string, 0, n)
	for i := 0; i < n; i++ {
		addr := get(i)
		if addr == "" {
			continue
		}
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		addrs = append(addrs, addr)
	}
	if len(addrs) == 0 {
		return nil
	}
	sort.Strings(addrs)
	return addrs
}

func containsFold(addrs []string, target string) bool {
	for _, addr := range addrs {
		if strings.ToLower(addr) == target {
			return true
		}
	}
	return false
}
