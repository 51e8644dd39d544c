// Package ledger records one PabloTransaction per state-changing pool event.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"pabloScope/internal/model"
	"pabloScope/internal/storage"
)

// ErrDuplicateTransaction means a ledger entry already exists for the event id.
var ErrDuplicateTransaction = errors.New("unexpected transaction in store")

// Entry holds the event-specific fields of a ledger record.
type Entry struct {
	PoolID       string
	Who          string
	Type         model.TransactionType
	SpotPrice    string
	BaseAssetID  uint64
	BaseAmount   *big.Int
	QuoteAssetID uint64
	QuoteAmount  *big.Int
}

// Writer appends ledger entries keyed by event id.
type Writer struct{}

func NewWriter() *Writer {
	return &Writer{}
}

// EnsureUnrecorded fails when eventID already has a ledger entry.
func (w *Writer) EnsureUnrecorded(ctx context.Context, tx storage.Tx, eventID string) error {
	_, found, err := storage.Get(ctx, tx.Transaction, eventID)
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}
	if found {
		return fmt.Errorf("%w: %s", ErrDuplicateTransaction, eventID)
	}
	return nil
}

// Build creates the ledger record for an event without persisting it.
func (w *Writer) Build(meta model.EventMeta, entry Entry, receivedAt int64) *model.PabloTransaction {
	return &model.PabloTransaction{
		ID:                meta.ID,
		EventID:           meta.ID,
		PoolID:            entry.PoolID,
		Who:               entry.Who,
		Type:              entry.Type,
		SpotPrice:         entry.SpotPrice,
		BaseAssetID:       entry.BaseAssetID,
		BaseAssetAmount:   orZero(entry.BaseAmount),
		QuoteAssetID:      entry.QuoteAssetID,
		QuoteAssetAmount:  orZero(entry.QuoteAmount),
		BlockNumber:       meta.BlockNumber,
		ReceivedTimestamp: receivedAt,
	}
}

// Append persists rec. A concurrent duplicate surfaces as ErrDuplicateTransaction.
func (w *Writer) Append(ctx context.Context, tx storage.Tx, rec *model.PabloTransaction) error {
	if err := tx.InsertTransaction(ctx, rec); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("%w: %s", ErrDuplicateTransaction, rec.ID)
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
