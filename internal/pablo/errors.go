package pablo

import (
	"errors"
	"fmt"

	"pabloScope/internal/model"
)

var (
	ErrPoolNotFound  = errors.New("pool not found")
	ErrAssetNotFound = errors.New("pool asset not found")
	ErrAssetExists   = errors.New("unexpected pool asset in store")
	ErrAssetCount    = errors.New("pool must have exactly two assets")
	ErrInvalidPair   = errors.New("base and quote asset must differ")
)

// HandlerError reports a failed event with the context needed to find it.
type HandlerError struct {
	EventID string
	Kind    model.EventKind
	PoolID  string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s %s (pool %s): %v", e.Kind, e.EventID, e.PoolID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

func wrap(meta model.EventMeta, kind model.EventKind, poolID string, err error) error {
	if err == nil {
		return nil
	}
	return &HandlerError{EventID: meta.ID, Kind: kind, PoolID: poolID, Err: err}
}
