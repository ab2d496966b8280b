package blueprint

import (
	"errors"
	"testing"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
)

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"100", 100, true},
		{"1,250.50", 1250.50, true},
		{"$2,000", 2000, true},
		{"(300)", -300, true},
		{"($1,500)", -1500, true},
		{" 42 ", 42, true},
		{"", 0, false},
		{"-", 0, false},
		{"—", 0, false},
		{"n/a", 0, false},
		{"TBD", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseAmount(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Fatalf("ParseAmount(%q) want=(%v,%v) got=(%v,%v)", tt.in, tt.want, tt.ok, got, ok)
		}
	}
}

func TestDecodeResponse_FlexibleEra(t *testing.T) {
	t.Parallel()

	text := `{
		"segments": ["Solo", "Small Business"],
		"pricePoints": ["Low", "High"],
		"services": [{
			"sourceRow": 7,
			"name": "Bookkeeping",
			"billingCadence": "monthly retainer",
			"chargeType": "recurring",
			"defaultQuantity": "2",
			"rateBands": [{
				"segment": "Solo",
				"points": [{"name": "Low", "price": 100}, {"name": "Premium", "price": "350"}]
			}]
		}]
	}`

	bp, err := decodeResponse(text, "upload.xlsx")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	svc := bp.Services[0]
	if svc.ID != "row-7" {
		t.Fatalf("id should derive from source row, got %s", svc.ID)
	}
	// 缩写分级展开
	band, ok := svc.RateBands["Solo/Startup"]
	if !ok {
		t.Fatalf("segment not normalized: %v", svc.RateBands)
	}
	// 任意命名价格点保留，键名小写
	if band["low"] != 100 || band["premium"] != 350 {
		t.Fatalf("unexpected band: %v", band)
	}
	// 数字字符串纠偏
	if svc.DefaultQuantity != 2 {
		t.Fatalf("string quantity not coerced: %v", svc.DefaultQuantity)
	}
	if svc.BillingCadence != "Monthly" {
		t.Fatalf("cadence not normalized: %s", svc.BillingCadence)
	}
	// AI 蓝图是静态价目表，不带公式列绑定
	if bp.Meta.ColumnMapping != nil {
		t.Fatalf("ai blueprint must not carry a column mapping")
	}
	if bp.Meta.Generator != "ai" {
		t.Fatalf("generator identity not recorded: %s", bp.Meta.Generator)
	}
}

func TestDecodeResponse_FixedEraAdapter(t *testing.T) {
	t.Parallel()

	text := `{
		"services": [{
			"name": "Payroll",
			"billingCadence": "Monthly",
			"rates": [{"segment": "small biz", "low": 50, "high": 90, "maintenance": 10}]
		}]
	}`

	bp, err := decodeResponse(text, "upload.xlsx")
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	band := bp.Services[0].RateBands["Small Business"]
	if band["low"] != 50 || band["high"] != 90 || band["maintenance"] != 10 {
		t.Fatalf("fixed-era rates not adapted: %v", band)
	}
	// chargeType 缺省走标签关键词 → recurring
	if bp.Services[0].ChargeType != model.ChargeRecurring {
		t.Fatalf("unexpected chargeType: %s", bp.Services[0].ChargeType)
	}
}

func TestDecodeResponse_AdversarialShapes(t *testing.T) {
	t.Parallel()

	// 形状不认识的字段静默丢弃，名字缺失的条目整条丢弃
	text := `{
		"services": [
			{"name": "", "billingCadence": "Monthly"},
			{"name": "Advisory", "billingCadence": {"weird": true}, "defaultSelected": "yes",
			 "defaultQuantity": {"nested": 1},
			 "rateBands": [{"segment": "Solo", "points": [{"name": "low", "price": "not a number"}]}]}
		]
	}`

	bp, err := decodeResponse(text, "upload.xlsx")
	if err != nil {
		t.Fatalf("adversarial shapes must not throw: %v", err)
	}
	if len(bp.Services) != 1 {
		t.Fatalf("expected 1 usable service, got %d", len(bp.Services))
	}
	svc := bp.Services[0]
	if !svc.DefaultSelected {
		t.Fatalf("string bool not coerced")
	}
	if svc.DefaultQuantity != 1 {
		t.Fatalf("unparseable quantity should default to 1, got %v", svc.DefaultQuantity)
	}
	// 空标签缺省 recurring
	if svc.ChargeType != model.ChargeRecurring {
		t.Fatalf("unexpected chargeType: %s", svc.ChargeType)
	}
}

func TestDecodeResponse_EmptyIsHardFailure(t *testing.T) {
	t.Parallel()

	for _, text := range []string{`{}`, `{"services": []}`, `not json`} {
		_, err := decodeResponse(text, "upload.xlsx")
		if err == nil {
			t.Fatalf("decodeResponse(%q) expected error", text)
		}
		var genErr *model.BlueprintGenerationError
		if !errors.As(err, &genErr) {
			t.Fatalf("expected BlueprintGenerationError, got %T", err)
		}
	}
}

func TestResponseSchema_Eras(t *testing.T) {
	t.Parallel()

	fixed := ResponseSchema(SchemaEraFixed)
	svc := fixed.Properties["services"].Items
	if _, ok := svc.Properties["rates"]; !ok {
		t.Fatalf("fixed era must emit rates shape")
	}
	if _, ok := svc.Properties["rateBands"]; ok {
		t.Fatalf("fixed era must not emit rateBands shape")
	}

	flexible := ResponseSchema(SchemaEraFlexible)
	svc = flexible.Properties["services"].Items
	if _, ok := svc.Properties["rateBands"]; !ok {
		t.Fatalf("flexible era must emit rateBands shape")
	}
}
