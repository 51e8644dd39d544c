package model

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestPoolJSONTotals(t *testing.T) {
	pool := NewPool("1")
	pool.Owner = "5owner"
	pool.TotalLiquidity = decimal.NewFromInt(50)

	data, err := json.Marshal(pool)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	text := string(data)
	if !strings.Contains(text, `"total_liquidity":"50.0"`) || !strings.Contains(text, `"total_volume":"0.0"`) {
		t.Fatalf("unexpected totals in %s", text)
	}

	var decoded Pool
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !decoded.TotalLiquidity.Equal(pool.TotalLiquidity) || decoded.Owner != "5owner" {
		t.Fatalf("unexpected decoded pool: %+v", decoded)
	}
}
