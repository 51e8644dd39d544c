package pablo

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"pabloScope/internal/ledger"
	"pabloScope/internal/model"
	"pabloScope/internal/numeric"
	"pabloScope/internal/storage"
	"pabloScope/internal/storage/memory"
)

var fixedNow = time.UnixMilli(1_660_000_000_000)

type fakeEncoder struct{}

func (fakeEncoder) Encode(publicKey []byte) (string, error) {
	return "addr-" + string(rune('a'+publicKey[0]%26)), nil
}

func newTestReducer(t *testing.T) *Reducer {
	return NewReducer(Config{
		Encoder: fakeEncoder{},
		Clock:   func() time.Time { return fixedNow },
	}, zaptest.NewLogger(t))
}

func meta(id string, block uint64, index uint32) model.EventMeta {
	return model.EventMeta{ID: id, BlockNumber: block, IndexInBlock: index}
}

func account(b byte) model.AccountID {
	var id model.AccountID
	id[0] = b
	return id
}

func createPool(t *testing.T, r *Reducer, store *memory.Store) {
	t.Helper()
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return r.PoolCreated(ctx, tx, meta("e1", 1, 0), model.PoolCreated{
			Owner:  account(1),
			PoolID: 1,
			Assets: model.CurrencyPair{Base: 10, Quote: 20},
		})
	})
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
}

type snapshot struct {
	pool  *model.Pool
	base  *model.PoolAsset
	quote *model.PoolAsset
}

func load(t *testing.T, store *memory.Store, poolID string, baseID, quoteID uint64) snapshot {
	t.Helper()
	var snap snapshot
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		if snap.pool, err = tx.Pool(ctx, poolID); err != nil {
			return err
		}
		if snap.base, err = tx.PoolAsset(ctx, model.PoolAssetID(poolID, baseID)); err != nil {
			return err
		}
		snap.quote, err = tx.PoolAsset(ctx, model.PoolAssetID(poolID, quoteID))
		return err
	})
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	return snap
}

func loadTransaction(t *testing.T, store *memory.Store, id string) *model.PabloTransaction {
	t.Helper()
	var rec *model.PabloTransaction
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		rec, err = tx.Transaction(ctx, id)
		return err
	})
	if err != nil {
		t.Fatalf("load transaction %s: %v", id, err)
	}
	return rec
}

func TestPoolCreated(t *testing.T) {
	store := memory.NewStore()
	r := newTestReducer(t)
	createPool(t, r, store)

	snap := load(t, store, "1", 10, 20)
	if snap.pool.Owner != "addr-b" || snap.pool.QuoteAssetID != 20 {
		t.Fatalf("unexpected pool: %+v", snap.pool)
	}
	if got := numeric.FormatTotal(snap.pool.TotalLiquidity); got != "0.0" {
		t.Fatalf("total liquidity: %s", got)
	}
	if got := numeric.FormatTotal(snap.pool.TotalVolume); got != "0.0" {
		t.Fatalf("total volume: %s", got)
	}
	if snap.pool.TransactionCount != 1 || snap.pool.BlockNumber != 1 || snap.pool.CalculatedTimestamp != fixedNow.UnixMilli() {
		t.Fatalf("unexpected counters: %+v", snap.pool)
	}
	for _, asset := range []*model.PoolAsset{snap.base, snap.quote} {
		if asset.TotalLiquidity.Sign() != 0 || asset.TotalVolume.Sign() != 0 {
			t.Fatalf("asset %s not zeroed", asset.ID)
		}
	}

	rec := loadTransaction(t, store, "e1")
	if rec.Type != model.TransactionCreatePool || rec.SpotPrice != "0" {
		t.Fatalf("unexpected transaction: %+v", rec)
	}
	if rec.BaseAssetID != 10 || rec.QuoteAssetID != 20 || rec.BaseAssetAmount.Sign() != 0 || rec.QuoteAssetAmount.Sign() != 0 {
		t.Fatalf("unexpected transaction amounts: %+v", rec)
	}
	if rec.Who != "addr-b" || rec.ReceivedTimestamp != fixedNow.UnixMilli() {
		t.Fatalf("unexpected transaction stamps: %+v", rec)
	}
}

func TestPoolCreatedReplayIsNoop(t *testing.T) {
	store := memory.NewStore()
	r := newTestReducer(t)
	createPool(t, r, store)

	for _, id := range []string{"e1", "e9"} {
		err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
			return r.PoolCreated(ctx, tx, meta(id, 9, 0), model.PoolCreated{
				Owner:  account(5),
				PoolID: 1,
				Assets: model.CurrencyPair{Base: 30, Quote: 40},
			})
		})
		if err != nil {
			t.Fatalf("replay %s: %v", id, err)
		}
	}

	snap := load(t, store, "1", 10, 20)
	if snap.pool.Owner != "addr-b" || snap.pool.QuoteAssetID != 20 || snap.pool.BlockNumber != 1 {
		t.Fatalf("replay modified pool: %+v", snap.pool)
	}
	pools, assets, txs, _ := store.Counts()
	if pools != 1 || assets != 2 || txs != 1 {
		t.Fatalf("replay wrote entities: pools=%d assets=%d txs=%d", pools, assets, txs)
	}
}

func TestPoolCreatedRejectsExistingTransaction(t *testing.T) {
	store := memory.NewStore()
	r := newTestReducer(t)

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.InsertTransaction(ctx, &model.PabloTransaction{ID: "e1", PoolID: "0"})
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return r.PoolCreated(ctx, tx, meta("e1", 1, 0), model.PoolCreated{
			Owner: account(1), PoolID: 1, Assets: model.CurrencyPair{Base: 10, Quote: 20},
		})
	})
	if !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}
	if pools, _, _, _ := store.Counts(); pools != 0 {
		t.Fatalf("pool written despite failure")
	}
}

func TestPoolCreatedRejectsExistingAsset(t *testing.T) {
	store := memory.NewStore()
	r := newTestReducer(t)

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.SavePoolAsset(ctx, model.NewPoolAsset("1", 10, 0, 0))
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return r.PoolCreated(ctx, tx, meta("e1", 1, 0), model.PoolCreated{
			Owner: account(1), PoolID: 1, Assets: model.CurrencyPair{Base: 10, Quote: 20},
		})
	})
	if !errors.Is(err, ErrAssetExists) {
		t.Fatalf("expected ErrAssetExists, got %v", err)
	}
	if pools, _, txs, _ := store.Counts(); pools != 0 || txs != 0 {
		t.Fatalf("entities written despite failure")
	}
}

func TestLiquidityAdded(t *testing.T) {
	store := memory.NewStore()
	r := newTestReducer(t)
	createPool(t, r, store)

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return r.LiquidityAdded(ctx, tx, meta("e2", 2, 0), model.LiquidityAdded{
			Who:         account(2),
			PoolID:      1,
			BaseAmount:  big.NewInt(50),
			QuoteAmount: big.NewInt(25),
			MintedLP:    big.NewInt(10),
		})
	})
	if err != nil {
		t.Fatalf("liquidity added: %v", err)
	}

	snap := load(t, store, "1", 10, 20)
	if got := numeric.FormatTotal(snap.pool.TotalLiquidity); got != "50.0" {
		t.Fatalf("total liquidity: %s", got)
	}
	if snap.base.TotalLiquidity.Int64() != 50 || snap.quote.TotalLiquidity.Int64() != 25 {
		t.Fatalf("asset liquidity: base=%s quote=%s", snap.base.TotalLiquidity, snap.quote.TotalLiquidity)
	}
	if snap.pool.TransactionCount != 2 || snap.pool.BlockNumber != 2 {
		t.Fatalf("unexpected counters: %+v", snap.pool)
	}

	rec := loadTransaction(t, store, "e2")
	if rec.Type != model.TransactionAddLiquidity || rec.SpotPrice != "2" {
		t.Fatalf("unexpected transaction: %+v", rec)
	}
	if rec.BaseAssetID != 10 || rec.BaseAssetAmount.Int64() != 50 || rec.QuoteAssetID != 20 || rec.QuoteAssetAmount.Int64() != 25 {
		t.Fatalf("unexpected recorded amounts: %+v", rec)
	}
}

func TestLiquidityAddedTwiceFailsOnDuplicateEvent(t *testing.T) {
	store := memory.NewStore()
	r := newTestReducer(t)
	createPool(t, r, store)

	apply := func() error {
		return store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
			return r.LiquidityAdded(ctx, tx, meta("e2", 2, 0), model.LiquidityAdded{
				Who: account(2), PoolID: 1, BaseAmount: big.NewInt(50), QuoteAmount: big.NewInt(25), MintedLP: big.NewInt(1),
			})
		})
	}
	if err := apply(); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := apply(); !errors.Is(err, ledger.ErrDuplicateTransaction) {
		t.Fatalf("expected ErrDuplicateTransaction, got %v", err)
	}

	snap := load(t, store, "1", 10, 20)
	if numeric.FormatTotal(snap.pool.TotalLiquidity) != "50.0" || snap.pool.TransactionCount != 2 {
		t.Fatalf("duplicate event changed pool: %+v", snap.pool)
	}
}

func TestMissingPool(t *testing.T) {
	store := memory.NewStore()
	r := newTestReducer(t)

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return r.Swapped(ctx, tx, meta("e3", 3, 1), model.Swapped{
			PoolID: 99, Who: account(3), BaseAsset: 10, QuoteAsset: 20,
			BaseAmount: big.NewInt(1), QuoteAmount: big.NewInt(1), Fee: big.NewInt(0),
		})
	})
	if !errors.Is(err, ErrPoolNotFound) {
		t.Fatalf("expected ErrPoolNotFound, got %v", err)
	}
	var herr *HandlerError
	if !errors.As(err, &herr) {
		t.Fatalf("expected HandlerError, got %T", err)
	}
	if herr.EventID != "e3" || herr.PoolID != "99" || herr.Kind != model.KindSwapped {
		t.Fatalf("unexpected error context: %+v", herr)
	}

	pools, assets, txs, _ := store.Counts()
	if pools+assets+txs != 0 {
		t.Fatalf("writes happened for missing pool")
	}
}

func TestMissingAssetIsFatal(t *testing.T) {
	store := memory.NewStore()
	r := newTestReducer(t)

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		pool := model.NewPool("1")
		pool.Owner = "owner"
		pool.QuoteAssetID = 20
		if err := tx.SavePool(ctx, pool); err != nil {
			return err
		}
		return tx.SavePoolAsset(ctx, model.NewPoolAsset("1", 20, 0, 0))
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return r.LiquidityAdded(ctx, tx, meta("e2", 2, 0), model.LiquidityAdded{
			Who: account(2), PoolID: 1, BaseAmount: big.NewInt(1), QuoteAmount: big.NewInt(1), MintedLP: big.NewInt(1),
		})
	})
	if !errors.Is(err, ErrAssetNotFound) {
		t.Fatalf("expected ErrAssetNotFound, got %v", err)
	}
}

func TestZeroDivisorIsFatal(t *testing.T) {
	store := memory.NewStore()
	r := newTestReducer(t)
	createPool(t, r, store)

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return r.LiquidityAdded(ctx, tx, meta("e2", 2, 0), model.LiquidityAdded{
			Who: account(2), PoolID: 1, BaseAmount: big.NewInt(5), QuoteAmount: big.NewInt(0), MintedLP: big.NewInt(0),
		})
	})
	if !errors.Is(err, numeric.ErrDivisionByZero) {
		t.Fatalf("expected ErrDivisionByZero, got %v", err)
	}
	snap := load(t, store, "1", 10, 20)
	if snap.pool.TransactionCount != 1 || snap.base.TotalLiquidity.Sign() != 0 {
		t.Fatalf("partial write after zero divisor: %+v", snap.pool)
	}
}

func TestTransactionCountLaw(t *testing.T) {
	store := memory.NewStore()
	r := newTestReducer(t)
	createPool(t, r, store)

	events := []model.Event{
		model.LiquidityAdded{Who: account(2), PoolID: 1, BaseAmount: big.NewInt(1000), QuoteAmount: big.NewInt(2000), MintedLP: big.NewInt(1)},
		model.Swapped{PoolID: 1, Who: account(3), BaseAsset: 10, QuoteAsset: 20, BaseAmount: big.NewInt(10), QuoteAmount: big.NewInt(20), Fee: big.NewInt(1)},
		model.Swapped{PoolID: 1, Who: account(3), BaseAsset: 20, QuoteAsset: 10, BaseAmount: big.NewInt(20), QuoteAmount: big.NewInt(10), Fee: big.NewInt(1)},
		model.LiquidityAdded{Who: account(2), PoolID: 1, BaseAmount: big.NewInt(3), QuoteAmount: big.NewInt(6), MintedLP: big.NewInt(1)},
	}
	for i, ev := range events {
		m := meta(string(rune('a'+i)), uint64(i+2), 0)
		err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
			switch e := ev.(type) {
			case model.LiquidityAdded:
				return r.LiquidityAdded(ctx, tx, m, e)
			case model.Swapped:
				return r.Swapped(ctx, tx, m, e)
			}
			return nil
		})
		if err != nil {
			t.Fatalf("event %d: %v", i, err)
		}
	}

	snap := load(t, store, "1", 10, 20)
	if snap.pool.TransactionCount != 1+len(events) {
		t.Fatalf("transaction count: got %d want %d", snap.pool.TransactionCount, 1+len(events))
	}
	if _, _, txs, _ := store.Counts(); txs != 1+len(events) {
		t.Fatalf("ledger size: got %d want %d", txs, 1+len(events))
	}

	var assets []*model.PoolAsset
	err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		var err error
		assets, err = tx.PoolAssets(ctx, "1")
		return err
	})
	if err != nil {
		t.Fatalf("load assets: %v", err)
	}
	if len(assets) != 2 {
		t.Fatalf("asset count: got %d want 2", len(assets))
	}
	quotes := 0
	for _, asset := range assets {
		if asset.AssetID == snap.pool.QuoteAssetID {
			quotes++
		}
	}
	if quotes != 1 {
		t.Fatalf("quote assets: got %d want 1", quotes)
	}
}

func TestExtraAssetIsFatal(t *testing.T) {
	store := memory.NewStore()
	r := newTestReducer(t)
	createPool(t, r, store)

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return tx.SavePoolAsset(ctx, model.NewPoolAsset("1", 30, 0, 0))
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	err = store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return r.Swapped(ctx, tx, meta("e2", 2, 0), model.Swapped{
			PoolID: 1, Who: account(3), BaseAsset: 10, QuoteAsset: 20,
			BaseAmount: big.NewInt(10), QuoteAmount: big.NewInt(20), Fee: big.NewInt(1),
		})
	})
	if !errors.Is(err, ErrAssetCount) {
		t.Fatalf("expected ErrAssetCount, got %v", err)
	}
}
