package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"pabloScope/internal/model"
)

const owner = "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"

func record(name string, version uint32, args string) model.RawEventRecord {
	return model.RawEventRecord{
		ID:           "0000000100-000001-abcde",
		BlockNumber:  100,
		IndexInBlock: 1,
		Name:         name,
		SpecVersion:  version,
		Args:         json.RawMessage(args),
	}
}

func TestPoolCreatedBothVersions(t *testing.T) {
	args := `{"owner":"` + owner + `","pool_id":"1","assets":{"base":10,"quote":"20"}}`
	for _, version := range []uint32{SpecV2100, SpecLatest} {
		ev, err := Event(record(string(model.KindPoolCreated), version, args))
		if err != nil {
			t.Fatalf("v%d: %v", version, err)
		}
		created, ok := ev.(model.PoolCreated)
		if !ok {
			t.Fatalf("v%d: unexpected type %T", version, ev)
		}
		if created.PoolID != 1 || created.Assets.Base != 10 || created.Assets.Quote != 20 {
			t.Fatalf("v%d: unexpected payload %+v", version, created)
		}
		if created.Owner.String() != owner {
			t.Fatalf("v%d: owner mismatch %s", version, created.Owner)
		}
	}
}

func TestSwappedKeepsLargeAmounts(t *testing.T) {
	args := `{"pool_id":1,"who":"` + owner + `","base_asset":10,"quote_asset":20,` +
		`"base_amount":"340282366920938463463374607431768211455","quote_amount":"200","fee":"1"}`
	ev, err := Event(record(string(model.KindSwapped), SpecV2100, args))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	swap := ev.(model.Swapped)
	if swap.BaseAmount.String() != "340282366920938463463374607431768211455" {
		t.Fatalf("base amount mismatch: %s", swap.BaseAmount)
	}
	if swap.Fee.Int64() != 1 || swap.QuoteAmount.Int64() != 200 {
		t.Fatalf("unexpected amounts %+v", swap)
	}
}

func TestVestingScheduleAdded(t *testing.T) {
	args := `{"from":"` + owner + `","to":"` + owner + `","asset":"1",` +
		`"schedule":{"window":{"__kind":"MomentBased","start":"1660000000000","period":"86400000"},` +
		`"period_count":12,"per_period":"1000000000000"}}`
	ev, err := Event(record(string(model.KindVestingScheduleAdded), SpecV2400, args))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	added := ev.(model.VestingScheduleAdded)
	if added.Schedule.Window.Kind != model.WindowMomentBased {
		t.Fatalf("kind mismatch: %s", added.Schedule.Window.Kind)
	}
	if added.Schedule.PeriodCount != 12 || added.Schedule.PerPeriod.String() != "1000000000000" {
		t.Fatalf("schedule mismatch: %+v", added.Schedule)
	}
}

func TestUnknownVersionIsFatal(t *testing.T) {
	args := `{"owner":"` + owner + `","pool_id":"1","assets":{"base":10,"quote":20}}`
	_, err := Event(record(string(model.KindPoolCreated), 2000, args))
	if !errors.Is(err, ErrUnknownVersion) {
		t.Fatalf("expected ErrUnknownVersion, got %v", err)
	}

	_, err = Event(record(string(model.KindVestingScheduleAdded), SpecV2100, `{}`))
	if !errors.Is(err, ErrUnknownVersion) {
		t.Fatalf("expected ErrUnknownVersion for vesting at 2100, got %v", err)
	}
}

func TestIntermediateVersionsUseEarlierShape(t *testing.T) {
	args := `{"owner":"` + owner + `","pool_id":"1","assets":{"base":10,"quote":20}}`
	cases := map[uint32]Variant{
		2200: PoolCreatedV2100{},
		2300: PoolCreatedV2100{},
		2400: PoolCreatedV2100{},
		2401: PoolCreatedLatest{},
		2402: PoolCreatedLatest{},
		9000: PoolCreatedLatest{},
	}
	for version, want := range cases {
		v, err := Decode(record(string(model.KindPoolCreated), version, args))
		if err != nil {
			t.Fatalf("v%d: %v", version, err)
		}
		if fmt.Sprintf("%T", v) != fmt.Sprintf("%T", want) {
			t.Fatalf("v%d: got %T, want %T", version, v, want)
		}
	}

	vestingArgs := `{"from":"` + owner + `","to":"` + owner + `","asset":"1",` +
		`"schedule":{"window":{"__kind":"BlockNumberBased","start":1,"period":1},"period_count":1,"per_period":1}}`
	v, err := Decode(record(string(model.KindVestingScheduleAdded), 2400, vestingArgs))
	if err != nil {
		t.Fatalf("vesting v2400: %v", err)
	}
	if _, ok := v.(VestingScheduleAddedV2400); !ok {
		t.Fatalf("vesting v2400: got %T", v)
	}
}

func TestUnsupportedEvent(t *testing.T) {
	if Supports("Balances.Transfer") {
		t.Fatalf("Balances.Transfer should not be supported")
	}
	if !Supports(string(model.KindSwapped)) {
		t.Fatalf("Pablo.Swapped should be supported")
	}
	_, err := Event(record("Balances.Transfer", SpecV2100, `{}`))
	if !errors.Is(err, ErrUnknownEvent) {
		t.Fatalf("expected ErrUnknownEvent, got %v", err)
	}
}

func TestMalformedPayloads(t *testing.T) {
	cases := map[string]string{
		"missing owner":   `{"pool_id":"1","assets":{"base":10,"quote":20}}`,
		"unknown field":   `{"owner":"` + owner + `","pool_id":"1","assets":{"base":10,"quote":20},"extra":1}`,
		"negative id":     `{"owner":"` + owner + `","pool_id":"-1","assets":{"base":10,"quote":20}}`,
		"asset too large": `{"owner":"` + owner + `","pool_id":"1","assets":{"base":"18446744073709551616","quote":20}}`,
		"short owner":     `{"owner":"0x1234","pool_id":"1","assets":{"base":10,"quote":20}}`,
		"empty":           ``,
	}
	for name, args := range cases {
		if _, err := Event(record(string(model.KindPoolCreated), SpecV2100, args)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestUnknownWindowKind(t *testing.T) {
	args := `{"from":"` + owner + `","to":"` + owner + `","asset":"1",` +
		`"schedule":{"window":{"__kind":"EpochBased","start":1,"period":1},"period_count":1,"per_period":1}}`
	if _, err := Event(record(string(model.KindVestingScheduleAdded), SpecLatest, args)); err == nil {
		t.Fatalf("expected error for unknown window kind")
	}
}
