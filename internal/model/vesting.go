package model

import (
	"fmt"
	"math/big"
	"strconv"
)

// WindowKind tells how a vesting window's start and period are measured.
type WindowKind string

const (
	WindowBlockNumberBased WindowKind = "BlockNumberBased"
	WindowMomentBased      WindowKind = "MomentBased"
)

// ParseWindowKind validates a window kind tag.
func ParseWindowKind(s string) (WindowKind, error) {
	switch WindowKind(s) {
	case WindowBlockNumberBased, WindowMomentBased:
		return WindowKind(s), nil
	default:
		return "", fmt.Errorf("unknown vesting window kind %q", s)
	}
}

// ScheduleWindow is the time window of a vesting schedule.
type ScheduleWindow struct {
	Start  uint64     `json:"start"`
	Period uint64     `json:"period"`
	Kind   WindowKind `json:"kind"`
}

// Schedule is the release plan of a vesting schedule.
type Schedule struct {
	PeriodCount uint64         `json:"period_count"`
	PerPeriod   *big.Int       `json:"per_period"`
	Window      ScheduleWindow `json:"window"`
}

// VestingSchedule is an immutable record of one VestingScheduleAdded event.
type VestingSchedule struct {
	ID         string   `json:"id"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	EventID    string   `json:"event_id"`
	ScheduleID string   `json:"schedule_id"`
	Schedule   Schedule `json:"schedule"`
}

// VestingScheduleID groups schedules by beneficiary and asset.
func VestingScheduleID(to string, assetID uint64) string {
	return to + "-" + strconv.FormatUint(assetID, 10)
}

// Clone returns a deep copy of v.
func (v *VestingSchedule) Clone() *VestingSchedule {
	if v == nil {
		return nil
	}
	out := *v
	out.Schedule.PerPeriod = cloneInt(v.Schedule.PerPeriod)
	return &out
}
