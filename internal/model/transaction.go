package model

import "math/big"

// TransactionType classifies ledger entries.
type TransactionType string

const (
	TransactionCreatePool   TransactionType = "CREATE_POOL"
	TransactionAddLiquidity TransactionType = "ADD_LIQUIDITY"
	TransactionSwap         TransactionType = "SWAP"
)

// PabloTransaction is the ledger entry written for a state-changing pool event.
// ID equals the originating event id.
type PabloTransaction struct {
	ID                string          `json:"id"`
	EventID           string          `json:"event_id"`
	PoolID            string          `json:"pool_id"`
	Who               string          `json:"who"`
	Type              TransactionType `json:"transaction_type"`
	SpotPrice         string          `json:"spot_price"`
	BaseAssetID       uint64          `json:"base_asset_id"`
	BaseAssetAmount   *big.Int        `json:"base_asset_amount"`
	QuoteAssetID      uint64          `json:"quote_asset_id"`
	QuoteAssetAmount  *big.Int        `json:"quote_asset_amount"`
	BlockNumber       uint64          `json:"block_number"`
	ReceivedTimestamp int64           `json:"received_timestamp"`
}

// Clone returns a deep copy of t.
func (t *PabloTransaction) Clone() *PabloTransaction {
	if t == nil {
		return nil
	}
	out := *t
	out.BaseAssetAmount = cloneInt(t.BaseAssetAmount)
	out.QuoteAssetAmount = cloneInt(t.QuoteAssetAmount)
	return &out
}
