package vesting

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"go.uber.org/zap/zaptest"

	"pabloScope/internal/model"
	"pabloScope/internal/ss58"
	"pabloScope/internal/storage"
	"pabloScope/internal/storage/memory"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("schedule-%d", n)
	}
}

func sampleEvent() model.VestingScheduleAdded {
	var from, to model.AccountID
	from[0], to[0] = 1, 2
	return model.VestingScheduleAdded{
		From:  from,
		To:    to,
		Asset: 4,
		Schedule: model.Schedule{
			PeriodCount: 12,
			PerPeriod:   big.NewInt(1_000_000_000_000),
			Window: model.ScheduleWindow{
				Start:  100,
				Period: 10,
				Kind:   model.WindowBlockNumberBased,
			},
		},
	}
}

func TestScheduleAdded(t *testing.T) {
	store := memory.NewStore()
	r := NewReducer(Config{NewID: sequentialIDs()}, zaptest.NewLogger(t))
	ev := sampleEvent()
	meta := model.EventMeta{ID: "0000000100-000003-aaaaa", BlockNumber: 100, IndexInBlock: 3}

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return r.ScheduleAdded(ctx, tx, meta, ev)
	})
	if err != nil {
		t.Fatalf("schedule added: %v", err)
	}

	to, err := ss58.Picasso().Encode(ev.To.Bytes())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	scheduleID := to + "-4"

	var got []*model.VestingSchedule
	err = store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		got, err = tx.VestingSchedules(ctx, scheduleID)
		return err
	})
	if err != nil {
		t.Fatalf("list schedules: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 schedule, got %d", len(got))
	}
	s := got[0]
	if s.ID != "schedule-1" || s.EventID != meta.ID || s.To != to {
		t.Fatalf("unexpected schedule: %+v", s)
	}
	if s.Schedule.PeriodCount != 12 || s.Schedule.PerPeriod.String() != "1000000000000" {
		t.Fatalf("unexpected schedule body: %+v", s.Schedule)
	}
	if s.Schedule.Window.Kind != model.WindowBlockNumberBased || s.Schedule.Window.Start != 100 || s.Schedule.Window.Period != 10 {
		t.Fatalf("unexpected window: %+v", s.Schedule.Window)
	}
}

func TestScheduleAddedReplayDuplicates(t *testing.T) {
	store := memory.NewStore()
	r := NewReducer(Config{NewID: sequentialIDs()}, nil)
	meta := model.EventMeta{ID: "e1", BlockNumber: 1}

	for i := 0; i < 2; i++ {
		err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
			return r.ScheduleAdded(ctx, tx, meta, sampleEvent())
		})
		if err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	if _, _, _, schedules := store.Counts(); schedules != 2 {
		t.Fatalf("expected 2 schedules after replay, got %d", schedules)
	}
}

func TestScheduleAddedDefaultIDs(t *testing.T) {
	store := memory.NewStore()
	r := NewReducer(Config{}, nil)

	err := store.RunInTx(context.Background(), func(ctx context.Context, tx storage.Tx) error {
		return r.ScheduleAdded(ctx, tx, model.EventMeta{ID: "e1"}, sampleEvent())
	})
	if err != nil {
		t.Fatalf("schedule added: %v", err)
	}
	if _, _, _, schedules := store.Counts(); schedules != 1 {
		t.Fatalf("expected 1 schedule, got %d", schedules)
	}
}
