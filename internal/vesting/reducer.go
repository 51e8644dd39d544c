// Package vesting records vesting schedules attached to accounts.
package vesting

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pabloScope/internal/model"
	"pabloScope/internal/ss58"
	"pabloScope/internal/storage"
)

// AddressEncoder renders a raw public key as a display address.
type AddressEncoder interface {
	Encode(publicKey []byte) (string, error)
}

type Config struct {
	Encoder AddressEncoder
	// NewID generates schedule ids. Defaults to random UUIDs.
	NewID func() string
}

type Reducer struct {
	encoder AddressEncoder
	newID   func() string
	logger  *zap.Logger
}

func NewReducer(cfg Config, logger *zap.Logger) *Reducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Encoder == nil {
		cfg.Encoder = ss58.Picasso()
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	return &Reducer{encoder: cfg.Encoder, newID: cfg.NewID, logger: logger}
}

// ScheduleAdded stores one new schedule per event. Replaying an event
// stores another copy under a fresh id.
func (r *Reducer) ScheduleAdded(ctx context.Context, tx storage.Tx, meta model.EventMeta, ev model.VestingScheduleAdded) error {
	from, err := r.encoder.Encode(ev.From.Bytes())
	if err != nil {
		return fmt.Errorf("%s %s: encode from: %w", ev.Kind(), meta.ID, err)
	}
	to, err := r.encoder.Encode(ev.To.Bytes())
	if err != nil {
		return fmt.Errorf("%s %s: encode to: %w", ev.Kind(), meta.ID, err)
	}

	schedule := &model.VestingSchedule{
		ID:         r.newID(),
		From:       from,
		To:         to,
		EventID:    meta.ID,
		ScheduleID: model.VestingScheduleID(to, ev.Asset),
		Schedule: model.Schedule{
			PeriodCount: ev.Schedule.PeriodCount,
			PerPeriod:   ev.Schedule.PerPeriod,
			Window:      ev.Schedule.Window,
		},
	}
	if err := tx.InsertVestingSchedule(ctx, schedule); err != nil {
		return fmt.Errorf("%s %s: insert schedule: %w", ev.Kind(), meta.ID, err)
	}

	r.logger.Debug("vesting schedule added",
		zap.String("event_id", meta.ID),
		zap.String("schedule_id", schedule.ScheduleID),
		zap.String("id", schedule.ID),
	)
	return nil
}
