package entities

// LedgerTransaction mirrors one element of the indexer's
// full-transactions response. Field names match the API wire format.
type LedgerTransaction struct {
	TransactionID           string         `json:"transaction_id"`
	IsAccepted              bool           `json:"is_accepted"`
	BlockTime               int64          `json:"block_time"` // milliseconds
	AcceptingBlockBlueScore uint64         `json:"accepting_block_blue_score"`
	Inputs                  []LedgerInput  `json:"inputs"`
	Outputs                 []LedgerOutput `json:"outputs"`
}

// LedgerInput is a spent outpoint. A coinbase transaction has none.
type LedgerInput struct {
	PreviousOutpointAddress string `json:"previous_outpoint_address"`
	PreviousOutpointAmount  int64  `json:"previous_outpoint_amount"` // sompi
}

// LedgerOutput is a created outpoint.
type LedgerOutput struct {
	ScriptPublicKeyAddress string `json:"script_public_key_address"`
	Amount                 int64  `json:"amount"` // sompi
}
