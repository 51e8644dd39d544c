package model

import (
	"encoding/json"
	"fmt"
	"math/big"
)

// EventKind is the qualified on-chain event name.
type EventKind string

const (
	KindPoolCreated          EventKind = "Pablo.PoolCreated"
	KindLiquidityAdded       EventKind = "Pablo.LiquidityAdded"
	KindSwapped              EventKind = "Pablo.Swapped"
	KindVestingScheduleAdded EventKind = "Vesting.VestingScheduleAdded"
)

// Event is a canonical, version-independent event payload.
type Event interface {
	Kind() EventKind
	// Validate rejects payloads the reducers cannot apply.
	Validate() error
	isEvent()
}

// CurrencyPair names the two assets of a pool.
type CurrencyPair struct {
	Base  uint64 `json:"base"`
	Quote uint64 `json:"quote"`
}

// PoolCreated is emitted once when a pool is created.
type PoolCreated struct {
	Owner  AccountID    `json:"owner"`
	PoolID uint64       `json:"pool_id"`
	Assets CurrencyPair `json:"assets"`
}

// LiquidityAdded is emitted when liquidity is deposited into a pool.
type LiquidityAdded struct {
	Who         AccountID `json:"who"`
	PoolID      uint64    `json:"pool_id"`
	BaseAmount  *big.Int  `json:"base_amount"`
	QuoteAmount *big.Int  `json:"quote_amount"`
	MintedLP    *big.Int  `json:"minted_lp"`
}

// Swapped is emitted for every exchange against a pool. BaseAsset and
// QuoteAsset are the sides as seen by the trader, not the pool's pair.
type Swapped struct {
	PoolID      uint64    `json:"pool_id"`
	Who         AccountID `json:"who"`
	BaseAsset   uint64    `json:"base_asset"`
	QuoteAsset  uint64    `json:"quote_asset"`
	BaseAmount  *big.Int  `json:"base_amount"`
	QuoteAmount *big.Int  `json:"quote_amount"`
	Fee         *big.Int  `json:"fee"`
}

// VestingScheduleAdded is emitted when a vesting schedule is attached to an account.
type VestingScheduleAdded struct {
	From     AccountID `json:"from"`
	To       AccountID `json:"to"`
	Asset    uint64    `json:"asset"`
	Schedule Schedule  `json:"schedule"`
}

func (PoolCreated) Kind() EventKind          { return KindPoolCreated }
func (LiquidityAdded) Kind() EventKind       { return KindLiquidityAdded }
func (Swapped) Kind() EventKind              { return KindSwapped }
func (VestingScheduleAdded) Kind() EventKind { return KindVestingScheduleAdded }

func (PoolCreated) Validate() error { return nil }

func (ev LiquidityAdded) Validate() error {
	if err := requireAmount("base_amount", ev.BaseAmount); err != nil {
		return err
	}
	return requireAmount("quote_amount", ev.QuoteAmount)
}

func (ev Swapped) Validate() error {
	if err := requireAmount("base_amount", ev.BaseAmount); err != nil {
		return err
	}
	if err := requireAmount("quote_amount", ev.QuoteAmount); err != nil {
		return err
	}
	return requireAmount("fee", ev.Fee)
}

func (ev VestingScheduleAdded) Validate() error {
	if _, err := ParseWindowKind(string(ev.Schedule.Window.Kind)); err != nil {
		return err
	}
	return requireAmount("schedule.per_period", ev.Schedule.PerPeriod)
}

func requireAmount(field string, v *big.Int) error {
	if v == nil {
		return fmt.Errorf("%s is required", field)
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%s is negative", field)
	}
	return nil
}

func (PoolCreated) isEvent()          {}
func (LiquidityAdded) isEvent()       {}
func (Swapped) isEvent()              {}
func (VestingScheduleAdded) isEvent() {}

// NormalizedEvent is the JSONL form of a canonical event.
type NormalizedEvent struct {
	EventMeta
	Kind        EventKind `json:"kind"`
	SpecVersion uint32    `json:"spec_version"`
	Payload     Event     `json:"payload"`
}

// UnmarshalJSON decodes the payload into the concrete type named by Kind.
func (e *NormalizedEvent) UnmarshalJSON(data []byte) error {
	var aux struct {
		EventMeta
		Kind        EventKind       `json:"kind"`
		SpecVersion uint32          `json:"spec_version"`
		Payload     json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.ID == "" {
		return fmt.Errorf("event id is required")
	}

	var (
		payload Event
		err     error
	)
	switch aux.Kind {
	case KindPoolCreated:
		payload, err = decodePayload[PoolCreated](aux.Payload)
	case KindLiquidityAdded:
		payload, err = decodePayload[LiquidityAdded](aux.Payload)
	case KindSwapped:
		payload, err = decodePayload[Swapped](aux.Payload)
	case KindVestingScheduleAdded:
		payload, err = decodePayload[VestingScheduleAdded](aux.Payload)
	default:
		return fmt.Errorf("unknown event kind %q", aux.Kind)
	}
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", aux.Kind, err)
	}

	*e = NormalizedEvent{
		EventMeta:   aux.EventMeta,
		Kind:        aux.Kind,
		SpecVersion: aux.SpecVersion,
		Payload:     payload,
	}
	return nil
}

func decodePayload[T Event](raw json.RawMessage) (Event, error) {
	var ev T
	if len(raw) == 0 {
		return nil, fmt.Errorf("payload is required")
	}
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}
