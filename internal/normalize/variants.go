package normalize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"pabloScope/internal/model"
	"pabloScope/internal/numeric"
)

// Runtime spec versions that changed the shape of a supported event.
const (
	SpecV2100  uint32 = 2100
	SpecV2400  uint32 = 2400
	SpecV2401  uint32 = 2401
	SpecLatest uint32 = SpecV2401
)

// Variant is one versioned payload shape. The set is closed: only the
// types in this file implement it.
type Variant interface {
	variant()
}

// Uint carries an unsigned u128 either as a JSON number or a decimal string.
type Uint struct {
	v *big.Int
}

func (u *Uint) UnmarshalJSON(data []byte) error {
	text := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if text == "null" {
		return nil
	}
	v, err := numeric.ParseUint128(text)
	if err != nil {
		return err
	}
	u.v = v
	return nil
}

func (u Uint) present() bool {
	return u.v != nil
}

func (u Uint) asBig() *big.Int {
	if u.v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(u.v)
}

func (u Uint) asUint64(field string) (uint64, error) {
	if u.v == nil {
		return 0, fmt.Errorf("%s is required", field)
	}
	if !u.v.IsUint64() {
		return 0, fmt.Errorf("%s out of range: %s", field, u.v.String())
	}
	return u.v.Uint64(), nil
}

type currencyPair struct {
	Base  Uint `json:"base"`
	Quote Uint `json:"quote"`
}

type PoolCreatedV2100 struct {
	Owner  *model.AccountID `json:"owner"`
	PoolID Uint             `json:"pool_id"`
	Assets currencyPair     `json:"assets"`
}

type PoolCreatedLatest struct {
	Owner  *model.AccountID `json:"owner"`
	PoolID Uint             `json:"pool_id"`
	Assets currencyPair     `json:"assets"`
}

type LiquidityAddedV2100 struct {
	Who         *model.AccountID `json:"who"`
	PoolID      Uint             `json:"pool_id"`
	BaseAmount  Uint             `json:"base_amount"`
	QuoteAmount Uint             `json:"quote_amount"`
	MintedLP    Uint             `json:"minted_lp"`
}

type LiquidityAddedLatest struct {
	Who         *model.AccountID `json:"who"`
	PoolID      Uint             `json:"pool_id"`
	BaseAmount  Uint             `json:"base_amount"`
	QuoteAmount Uint             `json:"quote_amount"`
	MintedLP    Uint             `json:"minted_lp"`
}

type SwappedV2100 struct {
	PoolID      Uint             `json:"pool_id"`
	Who         *model.AccountID `json:"who"`
	BaseAsset   Uint             `json:"base_asset"`
	QuoteAsset  Uint             `json:"quote_asset"`
	BaseAmount  Uint             `json:"base_amount"`
	QuoteAmount Uint             `json:"quote_amount"`
	Fee         Uint             `json:"fee"`
}

type SwappedLatest struct {
	PoolID      Uint             `json:"pool_id"`
	Who         *model.AccountID `json:"who"`
	BaseAsset   Uint             `json:"base_asset"`
	QuoteAsset  Uint             `json:"quote_asset"`
	BaseAmount  Uint             `json:"base_amount"`
	QuoteAmount Uint             `json:"quote_amount"`
	Fee         Uint             `json:"fee"`
}

type vestingWindow struct {
	Kind   string `json:"__kind"`
	Start  Uint   `json:"start"`
	Period Uint   `json:"period"`
}

type vestingSchedule struct {
	Window      vestingWindow `json:"window"`
	PeriodCount Uint          `json:"period_count"`
	PerPeriod   Uint          `json:"per_period"`
}

type VestingScheduleAddedV2400 struct {
	From     *model.AccountID `json:"from"`
	To       *model.AccountID `json:"to"`
	Asset    Uint             `json:"asset"`
	Schedule vestingSchedule  `json:"schedule"`
}

type VestingScheduleAddedLatest struct {
	From     *model.AccountID `json:"from"`
	To       *model.AccountID `json:"to"`
	Asset    Uint             `json:"asset"`
	Schedule vestingSchedule  `json:"schedule"`
}

func (PoolCreatedV2100) variant()           {}
func (PoolCreatedLatest) variant()          {}
func (LiquidityAddedV2100) variant()        {}
func (LiquidityAddedLatest) variant()       {}
func (SwappedV2100) variant()               {}
func (SwappedLatest) variant()              {}
func (VestingScheduleAddedV2400) variant()  {}
func (VestingScheduleAddedLatest) variant() {}

type variantKey struct {
	name    model.EventKind
	version uint32
}

var registry = map[variantKey]func(json.RawMessage) (Variant, error){
	{model.KindPoolCreated, SpecV2100}:           decodeAs[PoolCreatedV2100],
	{model.KindPoolCreated, SpecLatest}:          decodeAs[PoolCreatedLatest],
	{model.KindLiquidityAdded, SpecV2100}:        decodeAs[LiquidityAddedV2100],
	{model.KindLiquidityAdded, SpecLatest}:       decodeAs[LiquidityAddedLatest],
	{model.KindSwapped, SpecV2100}:               decodeAs[SwappedV2100],
	{model.KindSwapped, SpecLatest}:              decodeAs[SwappedLatest],
	{model.KindVestingScheduleAdded, SpecV2400}:  decodeAs[VestingScheduleAddedV2400],
	{model.KindVestingScheduleAdded, SpecLatest}: decodeAs[VestingScheduleAddedLatest],
}

func decodeAs[T Variant](args json.RawMessage) (Variant, error) {
	var v T
	if len(bytes.TrimSpace(args)) == 0 {
		return nil, fmt.Errorf("empty args")
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode args: %w", err)
	}
	return v, nil
}
