package model

import (
	"encoding/json"
	"math/big"
	"strconv"

	"github.com/shopspring/decimal"

	"pabloScope/internal/numeric"
)

// Pool is the aggregate record for one Pablo pool.
type Pool struct {
	ID                  string          `json:"id"`
	Owner               string          `json:"owner"`
	QuoteAssetID        uint64          `json:"quote_asset_id"`
	TotalLiquidity      decimal.Decimal `json:"total_liquidity"`
	TotalVolume         decimal.Decimal `json:"total_volume"`
	TransactionCount    int             `json:"transaction_count"`
	CalculatedTimestamp int64           `json:"calculated_timestamp"`
	BlockNumber         uint64          `json:"block_number"`
}

// NewPool returns an uncreated pool placeholder for id.
func NewPool(id string) *Pool {
	return &Pool{
		ID:             id,
		TotalLiquidity: decimal.Zero,
		TotalVolume:    decimal.Zero,
	}
}

// Created reports whether a PoolCreated event has populated the pool.
func (p *Pool) Created() bool {
	return p != nil && p.Owner != ""
}

// MarshalJSON renders totals as decimal strings with a fractional digit.
func (p Pool) MarshalJSON() ([]byte, error) {
	type plain Pool
	return json.Marshal(struct {
		plain
		TotalLiquidity string `json:"total_liquidity"`
		TotalVolume    string `json:"total_volume"`
	}{
		plain:          plain(p),
		TotalLiquidity: numeric.FormatTotal(p.TotalLiquidity),
		TotalVolume:    numeric.FormatTotal(p.TotalVolume),
	})
}

// Clone returns a copy of p.
func (p *Pool) Clone() *Pool {
	if p == nil {
		return nil
	}
	out := *p
	return &out
}

// PoolAsset tracks liquidity and volume of one asset inside a pool.
type PoolAsset struct {
	ID                  string   `json:"id"`
	PoolID              string   `json:"pool_id"`
	AssetID             uint64   `json:"asset_id"`
	TotalLiquidity      *big.Int `json:"total_liquidity"`
	TotalVolume         *big.Int `json:"total_volume"`
	CalculatedTimestamp int64    `json:"calculated_timestamp"`
	BlockNumber         uint64   `json:"block_number"`
}

// NewPoolAsset returns a zeroed asset record.
func NewPoolAsset(poolID string, assetID uint64, blockNumber uint64, ts int64) *PoolAsset {
	return &PoolAsset{
		ID:                  PoolAssetID(poolID, assetID),
		PoolID:              poolID,
		AssetID:             assetID,
		TotalLiquidity:      big.NewInt(0),
		TotalVolume:         big.NewInt(0),
		CalculatedTimestamp: ts,
		BlockNumber:         blockNumber,
	}
}

// Clone returns a deep copy of a.
func (a *PoolAsset) Clone() *PoolAsset {
	if a == nil {
		return nil
	}
	out := *a
	out.TotalLiquidity = cloneInt(a.TotalLiquidity)
	out.TotalVolume = cloneInt(a.TotalVolume)
	return &out
}

// PoolAssetID builds the "poolId-assetId" key.
func PoolAssetID(poolID string, assetID uint64) string {
	return poolID + "-" + strconv.FormatUint(assetID, 10)
}

// PoolIDString formats a numeric pool id as the entity key.
func PoolIDString(poolID uint64) string {
	return strconv.FormatUint(poolID, 10)
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
