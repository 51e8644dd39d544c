package storage

import (
	"context"
	"fmt"

	"pabloScope/internal/model"
)

// PoolView is a pool with its assets and most recent transactions.
type PoolView struct {
	Pool         *model.Pool               `json:"pool"`
	Assets       []*model.PoolAsset        `json:"assets"`
	Transactions []*model.PabloTransaction `json:"transactions"`
}

// LoadPoolView reads a created pool, its assets, and up to limit of its
// newest transactions. Limit 0 returns all of them.
func LoadPoolView(ctx context.Context, store Store, poolID string, limit int) (PoolView, error) {
	var view PoolView
	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		pool, err := tx.Pool(ctx, poolID)
		if err != nil {
			return fmt.Errorf("load pool: %w", err)
		}
		assets, err := tx.PoolAssets(ctx, poolID)
		if err != nil {
			return fmt.Errorf("load pool assets: %w", err)
		}
		txs, err := tx.PoolTransactions(ctx, poolID, limit)
		if err != nil {
			return fmt.Errorf("load pool transactions: %w", err)
		}
		view = PoolView{Pool: pool, Assets: assets, Transactions: txs}
		return nil
	})
	return view, err
}

// LoadVestingSchedules lists the schedules grouped under scheduleID.
func LoadVestingSchedules(ctx context.Context, store Store, scheduleID string) ([]*model.VestingSchedule, error) {
	var out []*model.VestingSchedule
	err := store.RunInTx(ctx, func(ctx context.Context, tx Tx) error {
		var err error
		out, err = tx.VestingSchedules(ctx, scheduleID)
		if err != nil {
			return fmt.Errorf("load vesting schedules: %w", err)
		}
		return nil
	})
	return out, err
}
