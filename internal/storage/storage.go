package storage

import (
	"context"
	"errors"

	"pabloScope/internal/model"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrDuplicateKey = errors.New("duplicate key")
	ErrInvalidInput = errors.New("invalid input")
)

// Tx is the store handle scoped to one event's unit of work. Writes become
// visible to other units only when the unit commits.
type Tx interface {
	Pool(ctx context.Context, id string) (*model.Pool, error)
	SavePool(ctx context.Context, pool *model.Pool) error

	PoolAsset(ctx context.Context, id string) (*model.PoolAsset, error)
	PoolAssets(ctx context.Context, poolID string) ([]*model.PoolAsset, error)
	SavePoolAsset(ctx context.Context, asset *model.PoolAsset) error

	Transaction(ctx context.Context, id string) (*model.PabloTransaction, error)
	InsertTransaction(ctx context.Context, tx *model.PabloTransaction) error
	PoolTransactions(ctx context.Context, poolID string, limit int) ([]*model.PabloTransaction, error)

	InsertVestingSchedule(ctx context.Context, schedule *model.VestingSchedule) error
	VestingSchedules(ctx context.Context, scheduleID string) ([]*model.VestingSchedule, error)

	Cursor(ctx context.Context, name string) (model.Cursor, bool, error)
	SaveCursor(ctx context.Context, name string, cursor model.Cursor) error
}

// Store runs units of work atomically: fn's writes are committed together
// when it returns nil and discarded otherwise.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
	Close()
}

// ErrorSink receives records of events that failed.
type ErrorSink interface {
	PutEventErrors(records []model.EventError) error
}
