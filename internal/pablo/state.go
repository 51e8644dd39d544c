package pablo

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"pabloScope/internal/model"
	"pabloScope/internal/numeric"
)

var two = decimal.NewFromInt(2)

// Stamp is written onto every entity an event touches.
type Stamp struct {
	BlockNumber uint64
	Timestamp   int64
}

// PoolState is a pool together with its base and quote assets.
type PoolState struct {
	Pool  *model.Pool
	Base  *model.PoolAsset
	Quote *model.PoolAsset
}

// NewPoolState picks the quote asset (assetId == pool.QuoteAssetID) and the
// base asset (the other one) out of a pool's assets.
func NewPoolState(pool *model.Pool, assets []*model.PoolAsset) (PoolState, error) {
	if len(assets) > 2 {
		return PoolState{}, fmt.Errorf("%w: pool %s has %d", ErrAssetCount, pool.ID, len(assets))
	}
	st := PoolState{Pool: pool}
	for _, asset := range assets {
		if asset.AssetID == pool.QuoteAssetID {
			if st.Quote == nil {
				st.Quote = asset
			}
		} else if st.Base == nil {
			st.Base = asset
		}
	}
	if st.Base == nil {
		return PoolState{}, fmt.Errorf("%w: base asset of pool %s", ErrAssetNotFound, pool.ID)
	}
	if st.Quote == nil {
		return PoolState{}, fmt.Errorf("%w: quote asset of pool %s", ErrAssetNotFound, pool.ID)
	}
	return st, nil
}

func (s PoolState) clone() PoolState {
	return PoolState{
		Pool:  s.Pool.Clone(),
		Base:  s.Base.Clone(),
		Quote: s.Quote.Clone(),
	}
}

func (s PoolState) stamp(at Stamp) {
	s.Pool.CalculatedTimestamp = at.Timestamp
	s.Pool.BlockNumber = at.BlockNumber
	for _, asset := range []*model.PoolAsset{s.Base, s.Quote} {
		asset.CalculatedTimestamp = at.Timestamp
		asset.BlockNumber = at.BlockNumber
	}
}

// CreatePool returns the initial state of a freshly created pool.
func CreatePool(poolID, owner string, assets model.CurrencyPair, at Stamp) PoolState {
	pool := model.NewPool(poolID)
	pool.Owner = owner
	pool.QuoteAssetID = assets.Quote
	pool.TransactionCount = 1
	pool.CalculatedTimestamp = at.Timestamp
	pool.BlockNumber = at.BlockNumber

	return PoolState{
		Pool:  pool,
		Base:  model.NewPoolAsset(poolID, assets.Base, at.BlockNumber, at.Timestamp),
		Quote: model.NewPoolAsset(poolID, assets.Quote, at.BlockNumber, at.Timestamp),
	}
}

// ApplyLiquidityAdded returns the state after a deposit and the resulting
// spot price (base per quote). Total liquidity is measured in quote units,
// so the quote amount counts twice.
func ApplyLiquidityAdded(st PoolState, ev model.LiquidityAdded, at Stamp) (PoolState, decimal.Decimal, error) {
	spot, err := numeric.Ratio(ev.BaseAmount, ev.QuoteAmount)
	if err != nil {
		return PoolState{}, decimal.Zero, fmt.Errorf("spot price: %w", err)
	}

	next := st.clone()
	next.Pool.TransactionCount++
	next.Pool.TotalLiquidity = next.Pool.TotalLiquidity.Add(numeric.FromInt(ev.QuoteAmount).Mul(two))
	next.Base.TotalLiquidity.Add(next.Base.TotalLiquidity, ev.BaseAmount)
	next.Quote.TotalLiquidity.Add(next.Quote.TotalLiquidity, ev.QuoteAmount)
	next.stamp(at)
	return next, spot, nil
}

// IsReverseSwap reports whether the trader's quote side differs from the pool's.
func IsReverseSwap(pool *model.Pool, ev model.Swapped) bool {
	return pool.QuoteAssetID != ev.QuoteAsset
}

// ApplySwap returns the state after a swap and the resulting spot price.
//
// In a normal swap the event's quote amount enters the pool and the fee is
// charged in the base asset, converted to quote units at the swap rate. In
// a reverse swap the sides are mirrored and the fee is charged in quote.
func ApplySwap(st PoolState, ev model.Swapped, at Stamp) (PoolState, decimal.Decimal, error) {
	reverse := IsReverseSwap(st.Pool, ev)
	baseAmount := numeric.FromInt(ev.BaseAmount)
	quoteAmount := numeric.FromInt(ev.QuoteAmount)
	outflow := new(big.Int).Add(ev.BaseAmount, ev.Fee)

	next := st.clone()
	next.Pool.TransactionCount++

	var spot decimal.Decimal
	if reverse {
		price, err := numeric.Ratio(ev.BaseAmount, ev.QuoteAmount)
		if err != nil {
			return PoolState{}, decimal.Zero, fmt.Errorf("spot price: %w", err)
		}
		spot = price

		next.Pool.TotalVolume = next.Pool.TotalVolume.Add(baseAmount)
		next.Base.TotalVolume.Add(next.Base.TotalVolume, ev.QuoteAmount)
		next.Quote.TotalVolume.Add(next.Quote.TotalVolume, ev.BaseAmount)

		next.Pool.TotalLiquidity = next.Pool.TotalLiquidity.Sub(numeric.FromInt(ev.Fee))
		next.Base.TotalLiquidity.Add(next.Base.TotalLiquidity, ev.QuoteAmount)
		next.Quote.TotalLiquidity.Sub(next.Quote.TotalLiquidity, outflow)
	} else {
		rate, err := numeric.Ratio(ev.QuoteAmount, ev.BaseAmount)
		if err != nil {
			return PoolState{}, decimal.Zero, fmt.Errorf("spot price: %w", err)
		}
		spot = rate

		next.Pool.TotalVolume = next.Pool.TotalVolume.Add(quoteAmount)
		next.Base.TotalVolume.Add(next.Base.TotalVolume, ev.BaseAmount)
		next.Quote.TotalVolume.Add(next.Quote.TotalVolume, ev.QuoteAmount)

		next.Pool.TotalLiquidity = next.Pool.TotalLiquidity.Sub(rate.Mul(numeric.FromInt(ev.Fee)))
		next.Base.TotalLiquidity.Sub(next.Base.TotalLiquidity, outflow)
		next.Quote.TotalLiquidity.Add(next.Quote.TotalLiquidity, ev.QuoteAmount)
	}

	next.stamp(at)
	return next, spot, nil
}
