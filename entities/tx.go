package entities

// Direction tells whether the queried address gained or spent funds.
type Direction string

const (
	DirectionIncoming Direction = "incoming"
	DirectionOutgoing Direction = "outgoing"
)

// Kind distinguishes block rewards from regular transfers.
type Kind string

const (
	KindCoinbase Kind = "coinbase"
	KindTransfer Kind = "transfer"
)

// Transaction is the canonical, storage-ready representation of one
// ledger entry for one queried address. TxID is globally unique and is
// the conflict key on persistence: re-ingesting the same TxID replaces
// the stored row wholly.
//
// From and To are sets of counterparty addresses. They are kept as
// slices in memory; the storage layer serializes them.
type Transaction struct {
	TxID        string             `json:"txId"`
	Address     string             `json:"address"`
	Direction   Direction          `json:"direction"`
	From        []string           `json:"from"`
	To          []string           `json:"to"`
	Amount      float64            `json:"amount"`
	Values      map[string]float64 `json:"values"`
	BlockHeight uint64             `json:"blockHeight"`
	Timestamp   int64              `json:"timestamp"`
	Kind        Kind               `json:"kind"`
}
