package storage

import (
	"context"
	"errors"
)

// Get returns the entity for id and whether it exists. lookup is a keyed
// read against a Tx, e.g. tx.Pool.
func Get[T any](ctx context.Context, lookup func(ctx context.Context, id string) (T, error), id string) (T, bool, error) {
	v, err := lookup(ctx, id)
	if err != nil {
		var zero T
		if errors.Is(err, ErrNotFound) {
			return zero, false, nil
		}
		return zero, false, err
	}
	return v, true, nil
}

// GetOrCreate returns the stored entity or a fresh, unsaved one built by create.
func GetOrCreate[T any](ctx context.Context, lookup func(ctx context.Context, id string) (T, error), id string, create func(id string) T) (T, error) {
	v, ok, err := Get(ctx, lookup, id)
	if err != nil {
		return v, err
	}
	if !ok {
		return create(id), nil
	}
	return v, nil
}
