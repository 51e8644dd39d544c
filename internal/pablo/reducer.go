// Package pablo applies Pablo AMM events to pool aggregates.
package pablo

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"go.uber.org/zap"

	"pabloScope/internal/ledger"
	"pabloScope/internal/model"
	"pabloScope/internal/numeric"
	"pabloScope/internal/ss58"
	"pabloScope/internal/storage"
)

// AddressEncoder renders a raw public key as a display address.
type AddressEncoder interface {
	Encode(publicKey []byte) (string, error)
}

// Config controls reducer dependencies. Zero values select the Picasso
// codec and the wall clock.
type Config struct {
	Encoder AddressEncoder
	Clock   func() time.Time
}

// Reducer handles PoolCreated, LiquidityAdded and Swapped events. Each
// handler reads what it needs from tx, computes the next state and writes
// it back through the same tx.
type Reducer struct {
	encoder AddressEncoder
	ledger  *ledger.Writer
	clock   func() time.Time
	logger  *zap.Logger
}

func NewReducer(cfg Config, logger *zap.Logger) *Reducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Encoder == nil {
		cfg.Encoder = ss58.Picasso()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}

	return &Reducer{
		encoder: cfg.Encoder,
		ledger:  ledger.NewWriter(),
		clock:   cfg.Clock,
		logger:  logger,
	}
}

// PoolCreated initializes a pool and its two assets. Replaying it for a
// pool that already has an owner changes nothing.
func (r *Reducer) PoolCreated(ctx context.Context, tx storage.Tx, meta model.EventMeta, ev model.PoolCreated) error {
	poolID := model.PoolIDString(ev.PoolID)
	return wrap(meta, ev.Kind(), poolID, r.poolCreated(ctx, tx, meta, poolID, ev))
}

func (r *Reducer) poolCreated(ctx context.Context, tx storage.Tx, meta model.EventMeta, poolID string, ev model.PoolCreated) error {
	owner, err := r.encoder.Encode(ev.Owner.Bytes())
	if err != nil {
		return fmt.Errorf("encode owner: %w", err)
	}

	pool, err := storage.GetOrCreate(ctx, tx.Pool, poolID, model.NewPool)
	if err != nil {
		return fmt.Errorf("load pool: %w", err)
	}
	if pool.Created() {
		r.logger.Debug("pool already created",
			zap.String("event_id", meta.ID),
			zap.String("pool_id", poolID),
		)
		return nil
	}
	if ev.Assets.Base == ev.Assets.Quote {
		return fmt.Errorf("%w: %d", ErrInvalidPair, ev.Assets.Base)
	}

	if err := r.ledger.EnsureUnrecorded(ctx, tx, meta.ID); err != nil {
		return err
	}
	for _, assetID := range []uint64{ev.Assets.Quote, ev.Assets.Base} {
		id := model.PoolAssetID(poolID, assetID)
		_, found, err := storage.Get(ctx, tx.PoolAsset, id)
		if err != nil {
			return fmt.Errorf("load pool asset: %w", err)
		}
		if found {
			return fmt.Errorf("%w: %s", ErrAssetExists, id)
		}
	}

	at := r.stamp(meta)
	st := CreatePool(poolID, owner, ev.Assets, at)
	rec := r.ledger.Build(meta, ledger.Entry{
		PoolID:       poolID,
		Who:          owner,
		Type:         model.TransactionCreatePool,
		SpotPrice:    "0",
		BaseAssetID:  ev.Assets.Base,
		BaseAmount:   big.NewInt(0),
		QuoteAssetID: ev.Assets.Quote,
		QuoteAmount:  big.NewInt(0),
	}, at.Timestamp)

	if err := r.persist(ctx, tx, st, rec); err != nil {
		return err
	}

	r.logger.Info("pool created",
		zap.String("event_id", meta.ID),
		zap.String("pool_id", poolID),
		zap.String("owner", owner),
		zap.Uint64("base_asset", ev.Assets.Base),
		zap.Uint64("quote_asset", ev.Assets.Quote),
	)
	return nil
}

// LiquidityAdded credits a deposit to the pool and both assets.
func (r *Reducer) LiquidityAdded(ctx context.Context, tx storage.Tx, meta model.EventMeta, ev model.LiquidityAdded) error {
	poolID := model.PoolIDString(ev.PoolID)
	return wrap(meta, ev.Kind(), poolID, r.liquidityAdded(ctx, tx, meta, poolID, ev))
}

func (r *Reducer) liquidityAdded(ctx context.Context, tx storage.Tx, meta model.EventMeta, poolID string, ev model.LiquidityAdded) error {
	who, err := r.encoder.Encode(ev.Who.Bytes())
	if err != nil {
		return fmt.Errorf("encode who: %w", err)
	}

	st, err := r.loadPoolState(ctx, tx, poolID)
	if err != nil {
		return err
	}

	at := r.stamp(meta)
	next, spot, err := ApplyLiquidityAdded(st, ev, at)
	if err != nil {
		return err
	}

	if err := r.ledger.EnsureUnrecorded(ctx, tx, meta.ID); err != nil {
		return err
	}
	rec := r.ledger.Build(meta, ledger.Entry{
		PoolID:       poolID,
		Who:          who,
		Type:         model.TransactionAddLiquidity,
		SpotPrice:    numeric.FormatPrice(spot),
		BaseAssetID:  next.Base.AssetID,
		BaseAmount:   ev.BaseAmount,
		QuoteAssetID: next.Pool.QuoteAssetID,
		QuoteAmount:  ev.QuoteAmount,
	}, at.Timestamp)

	if err := r.persist(ctx, tx, next, rec); err != nil {
		return err
	}

	r.logger.Debug("liquidity added",
		zap.String("event_id", meta.ID),
		zap.String("pool_id", poolID),
		zap.String("total_liquidity", numeric.FormatTotal(next.Pool.TotalLiquidity)),
		zap.String("spot_price", rec.SpotPrice),
	)
	return nil
}

// Swapped moves volume and liquidity between the pool's assets.
func (r *Reducer) Swapped(ctx context.Context, tx storage.Tx, meta model.EventMeta, ev model.Swapped) error {
	poolID := model.PoolIDString(ev.PoolID)
	return wrap(meta, ev.Kind(), poolID, r.swapped(ctx, tx, meta, poolID, ev))
}

func (r *Reducer) swapped(ctx context.Context, tx storage.Tx, meta model.EventMeta, poolID string, ev model.Swapped) error {
	who, err := r.encoder.Encode(ev.Who.Bytes())
	if err != nil {
		return fmt.Errorf("encode who: %w", err)
	}

	st, err := r.loadPoolState(ctx, tx, poolID)
	if err != nil {
		return err
	}

	at := r.stamp(meta)
	next, spot, err := ApplySwap(st, ev, at)
	if err != nil {
		return err
	}

	if err := r.ledger.EnsureUnrecorded(ctx, tx, meta.ID); err != nil {
		return err
	}
	rec := r.ledger.Build(meta, ledger.Entry{
		PoolID:       poolID,
		Who:          who,
		Type:         model.TransactionSwap,
		SpotPrice:    numeric.FormatPrice(spot),
		BaseAssetID:  next.Base.AssetID,
		BaseAmount:   ev.BaseAmount,
		QuoteAssetID: next.Pool.QuoteAssetID,
		QuoteAmount:  ev.QuoteAmount,
	}, at.Timestamp)

	if err := r.persist(ctx, tx, next, rec); err != nil {
		return err
	}

	r.logger.Debug("swap applied",
		zap.String("event_id", meta.ID),
		zap.String("pool_id", poolID),
		zap.Bool("reverse", IsReverseSwap(st.Pool, ev)),
		zap.String("total_volume", numeric.FormatTotal(next.Pool.TotalVolume)),
		zap.String("spot_price", rec.SpotPrice),
	)
	return nil
}

func (r *Reducer) loadPoolState(ctx context.Context, tx storage.Tx, poolID string) (PoolState, error) {
	pool, found, err := storage.Get(ctx, tx.Pool, poolID)
	if err != nil {
		return PoolState{}, fmt.Errorf("load pool: %w", err)
	}
	if !found || !pool.Created() {
		return PoolState{}, fmt.Errorf("%w: %s", ErrPoolNotFound, poolID)
	}
	assets, err := tx.PoolAssets(ctx, poolID)
	if err != nil {
		return PoolState{}, fmt.Errorf("load pool assets: %w", err)
	}
	return NewPoolState(pool, assets)
}

func (r *Reducer) persist(ctx context.Context, tx storage.Tx, st PoolState, rec *model.PabloTransaction) error {
	if err := tx.SavePool(ctx, st.Pool); err != nil {
		return fmt.Errorf("save pool: %w", err)
	}
	if err := tx.SavePoolAsset(ctx, st.Base); err != nil {
		return fmt.Errorf("save base asset: %w", err)
	}
	if err := tx.SavePoolAsset(ctx, st.Quote); err != nil {
		return fmt.Errorf("save quote asset: %w", err)
	}
	return r.ledger.Append(ctx, tx, rec)
}

func (r *Reducer) stamp(meta model.EventMeta) Stamp {
	return Stamp{BlockNumber: meta.BlockNumber, Timestamp: r.clock().UnixMilli()}
}
