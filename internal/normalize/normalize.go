// Package normalize turns versioned raw chain events into canonical payloads.
package normalize

import (
	"errors"
	"fmt"
	"math/big"
	"slices"

	"pabloScope/internal/model"
)

var (
	// ErrUnknownEvent marks events this indexer does not handle.
	ErrUnknownEvent = errors.New("unsupported event")
	// ErrUnknownVersion marks a handled event from a runtime older than its
	// earliest known shape.
	ErrUnknownVersion = errors.New("unknown event version")
)

// versions lists the shape-changing spec versions of each event, ascending.
var versions = func() map[model.EventKind][]uint32 {
	out := make(map[model.EventKind][]uint32)
	for key := range registry {
		out[key.name] = append(out[key.name], key.version)
	}
	for _, list := range out {
		slices.Sort(list)
	}
	return out
}()

// Supports reports whether name is an event the reducers consume.
func Supports(name string) bool {
	_, ok := versions[model.EventKind(name)]
	return ok
}

// shapeVersion returns the newest shape introduced at or before specVersion.
// Runtime upgrades that left an event untouched keep the previous shape.
func shapeVersion(kind model.EventKind, specVersion uint32) (uint32, bool) {
	list := versions[kind]
	i, found := slices.BinarySearch(list, specVersion)
	if found {
		return list[i], true
	}
	if i == 0 {
		return 0, false
	}
	return list[i-1], true
}

// Decode selects the variant for the record's event name and spec version.
func Decode(record model.RawEventRecord) (Variant, error) {
	kind := model.EventKind(record.Name)
	if _, ok := versions[kind]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEvent, record.Name)
	}
	shape, ok := shapeVersion(kind, record.SpecVersion)
	if !ok {
		return nil, fmt.Errorf("%w: %s at spec version %d", ErrUnknownVersion, record.Name, record.SpecVersion)
	}
	decode := registry[variantKey{name: kind, version: shape}]
	v, err := decode(record.Args)
	if err != nil {
		return nil, fmt.Errorf("%s v%d: %w", record.Name, record.SpecVersion, err)
	}
	return v, nil
}

// ToCanonical converts any variant into its version-independent payload.
func ToCanonical(v Variant) (model.Event, error) {
	switch ev := v.(type) {
	case PoolCreatedV2100:
		return poolCreated(ev.Owner, ev.PoolID, ev.Assets)
	case PoolCreatedLatest:
		return poolCreated(ev.Owner, ev.PoolID, ev.Assets)
	case LiquidityAddedV2100:
		return liquidityAdded(ev.Who, ev.PoolID, ev.BaseAmount, ev.QuoteAmount, ev.MintedLP)
	case LiquidityAddedLatest:
		return liquidityAdded(ev.Who, ev.PoolID, ev.BaseAmount, ev.QuoteAmount, ev.MintedLP)
	case SwappedV2100:
		return swapped(ev.PoolID, ev.Who, ev.BaseAsset, ev.QuoteAsset, ev.BaseAmount, ev.QuoteAmount, ev.Fee)
	case SwappedLatest:
		return swapped(ev.PoolID, ev.Who, ev.BaseAsset, ev.QuoteAsset, ev.BaseAmount, ev.QuoteAmount, ev.Fee)
	case VestingScheduleAddedV2400:
		return vestingScheduleAdded(ev.From, ev.To, ev.Asset, ev.Schedule)
	case VestingScheduleAddedLatest:
		return vestingScheduleAdded(ev.From, ev.To, ev.Asset, ev.Schedule)
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownVersion, v)
	}
}

// Event decodes and converts a raw record in one step.
func Event(record model.RawEventRecord) (model.Event, error) {
	v, err := Decode(record)
	if err != nil {
		return nil, err
	}
	return ToCanonical(v)
}

func poolCreated(owner *model.AccountID, poolID Uint, assets currencyPair) (model.Event, error) {
	ev := model.PoolCreated{}
	var err error
	if ev.Owner, err = account("owner", owner); err != nil {
		return nil, err
	}
	if ev.PoolID, err = poolID.asUint64("pool_id"); err != nil {
		return nil, err
	}
	if ev.Assets.Base, err = assets.Base.asUint64("assets.base"); err != nil {
		return nil, err
	}
	if ev.Assets.Quote, err = assets.Quote.asUint64("assets.quote"); err != nil {
		return nil, err
	}
	return ev, nil
}

func liquidityAdded(who *model.AccountID, poolID, base, quote, minted Uint) (model.Event, error) {
	ev := model.LiquidityAdded{}
	var err error
	if ev.Who, err = account("who", who); err != nil {
		return nil, err
	}
	if ev.PoolID, err = poolID.asUint64("pool_id"); err != nil {
		return nil, err
	}
	if ev.BaseAmount, err = amount("base_amount", base); err != nil {
		return nil, err
	}
	if ev.QuoteAmount, err = amount("quote_amount", quote); err != nil {
		return nil, err
	}
	ev.MintedLP = minted.asBig()
	return ev, nil
}

func swapped(poolID Uint, who *model.AccountID, baseAsset, quoteAsset, baseAmount, quoteAmount, fee Uint) (model.Event, error) {
	ev := model.Swapped{}
	var err error
	if ev.PoolID, err = poolID.asUint64("pool_id"); err != nil {
		return nil, err
	}
	if ev.Who, err = account("who", who); err != nil {
		return nil, err
	}
	if ev.BaseAsset, err = baseAsset.asUint64("base_asset"); err != nil {
		return nil, err
	}
	if ev.QuoteAsset, err = quoteAsset.asUint64("quote_asset"); err != nil {
		return nil, err
	}
	if ev.BaseAmount, err = amount("base_amount", baseAmount); err != nil {
		return nil, err
	}
	if ev.QuoteAmount, err = amount("quote_amount", quoteAmount); err != nil {
		return nil, err
	}
	if ev.Fee, err = amount("fee", fee); err != nil {
		return nil, err
	}
	return ev, nil
}

func vestingScheduleAdded(from, to *model.AccountID, asset Uint, schedule vestingSchedule) (model.Event, error) {
	ev := model.VestingScheduleAdded{}
	var err error
	if ev.From, err = account("from", from); err != nil {
		return nil, err
	}
	if ev.To, err = account("to", to); err != nil {
		return nil, err
	}
	if ev.Asset, err = asset.asUint64("asset"); err != nil {
		return nil, err
	}

	kind, err := model.ParseWindowKind(schedule.Window.Kind)
	if err != nil {
		return nil, err
	}
	ev.Schedule.Window.Kind = kind
	if ev.Schedule.Window.Start, err = schedule.Window.Start.asUint64("schedule.window.start"); err != nil {
		return nil, err
	}
	if ev.Schedule.Window.Period, err = schedule.Window.Period.asUint64("schedule.window.period"); err != nil {
		return nil, err
	}
	if ev.Schedule.PeriodCount, err = schedule.PeriodCount.asUint64("schedule.period_count"); err != nil {
		return nil, err
	}
	if ev.Schedule.PerPeriod, err = amount("schedule.per_period", schedule.PerPeriod); err != nil {
		return nil, err
	}
	return ev, nil
}

func account(field string, id *model.AccountID) (model.AccountID, error) {
	if id == nil {
		return model.AccountID{}, fmt.Errorf("%s is required", field)
	}
	return *id, nil
}

func amount(field string, v Uint) (*big.Int, error) {
	if !v.present() {
		return nil, fmt.Errorf("%s is required", field)
	}
	return v.asBig(), nil
}
