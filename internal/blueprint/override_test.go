package blueprint

import (
	"reflect"
	"testing"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
)

func baseBlueprint() *model.Blueprint {
	return &model.Blueprint{
		ID:       "bp-1",
		Segments: []string{"Small Business"},
		Services: []model.ServiceBlueprint{
			{
				ID:              "row-7",
				SourceRow:       7,
				Name:            "Bookkeeping",
				BillingCadence:  "Monthly",
				ChargeType:      model.ChargeRecurring,
				DefaultSelected: true,
				DefaultQuantity: 1,
				RateBands: map[string]model.RateBand{
					"Small Business": {"low": 100, "high": 200, "maintenance": 20},
				},
			},
			{
				ID:              "row-8",
				SourceRow:       8,
				Name:            "Setup",
				BillingCadence:  "Project",
				ChargeType:      model.ChargeOneTime,
				DefaultQuantity: 1,
				RateBands: map[string]model.RateBand{
					"Small Business": {"low": 500, "high": 900},
				},
			},
		},
	}
}

func TestMerge_PatchPreservesSiblings(t *testing.T) {
	t.Parallel()

	bp := baseBlueprint()
	overrides := []model.BlueprintOverride{
		{ServiceID: "row-7", RateBands: map[string]model.RateBand{"Small Business": {"low": 150}}},
	}

	merged := Merge(bp, overrides)

	band := merged.Services[0].RateBands["Small Business"]
	if band["low"] != 150 || band["high"] != 200 || band["maintenance"] != 20 {
		t.Fatalf("sibling points destroyed: %v", band)
	}
	// 原蓝图不能被改动
	if bp.Services[0].RateBands["Small Business"]["low"] != 100 {
		t.Fatalf("input blueprint mutated")
	}
	// 无匹配覆盖的服务原样通过
	if !reflect.DeepEqual(merged.Services[1].RateBands, bp.Services[1].RateBands) {
		t.Fatalf("untouched service changed")
	}
}

func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()

	overrides := Sanitize([]model.BlueprintOverride{
		{
			ServiceID:       "row-7",
			Name:            ptr("  Full-Service Bookkeeping  "),
			DefaultQuantity: func() *float64 { v := 2.0; return &v }(),
			RateBands:       map[string]model.RateBand{"Small Business": {"LOW ": 175}},
		},
	})

	once := Merge(baseBlueprint(), overrides)
	twice := Merge(once, overrides)

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("merge is not idempotent:\nonce:  %+v\ntwice: %+v", once, twice)
	}
	if once.Services[0].Name != "Full-Service Bookkeeping" {
		t.Fatalf("sanitize should trim strings: %q", once.Services[0].Name)
	}
	if once.Services[0].RateBands["Small Business"]["low"] != 175 {
		t.Fatalf("sanitize should normalize point keys: %v", once.Services[0].RateBands)
	}
}

func TestSanitize_DropsUnusable(t *testing.T) {
	t.Parallel()

	empty := ""
	out := Sanitize([]model.BlueprintOverride{
		{ServiceID: "   "}, // 无 serviceId 整条丢弃
		{ServiceID: "row-7", Name: &empty, RateBands: map[string]model.RateBand{"": {"low": 1}, "Seg": {}}},
	})

	if len(out) != 1 {
		t.Fatalf("expected 1 override, got %d", len(out))
	}
	if out[0].Name != nil {
		t.Fatalf("empty optional field should drop")
	}
	if out[0].RateBands != nil {
		t.Fatalf("empty bands should drop, got %v", out[0].RateBands)
	}

	if Sanitize(nil) != nil {
		t.Fatalf("empty input should return nil")
	}
}

func TestDiff_NoChangeIsNil(t *testing.T) {
	t.Parallel()

	svc := baseBlueprint().Services[0]
	if d := Diff(svc.ID, svc, cloneService(svc)); d != nil {
		t.Fatalf("identical draft must diff to nil, got %+v", d)
	}
}

func TestDiff_MinimalPatch(t *testing.T) {
	t.Parallel()

	base := baseBlueprint().Services[0]
	draft := cloneService(base)
	draft.Name = "Monthly Books"
	draft.RateBands["Small Business"]["low"] = 120

	d := Diff(base.ID, base, draft)
	if d == nil {
		t.Fatalf("expected a patch")
	}
	if d.Name == nil || *d.Name != "Monthly Books" {
		t.Fatalf("name change missing: %+v", d)
	}
	if d.Tier != nil || d.BillingCadence != nil || d.Description != nil {
		t.Fatalf("unchanged fields must stay nil: %+v", d)
	}
	band := d.RateBands["Small Business"]
	if band["low"] != 120 {
		t.Fatalf("band change missing: %v", d.RateBands)
	}

	// diff → merge 回放应得到草稿
	merged := Merge(baseBlueprint(), []model.BlueprintOverride{*d})
	if merged.Services[0].Name != draft.Name {
		t.Fatalf("replayed patch lost the name")
	}
	if !reflect.DeepEqual(merged.Services[0].RateBands, draft.RateBands) {
		t.Fatalf("replayed patch lost band values: %v", merged.Services[0].RateBands)
	}
}

func TestMerge_ChargeTypeRederived(t *testing.T) {
	t.Parallel()

	cadence := "Project"
	merged := Merge(baseBlueprint(), []model.BlueprintOverride{
		{ServiceID: "row-7", BillingCadence: &cadence},
	})
	if merged.Services[0].ChargeType != model.ChargeOneTime {
		t.Fatalf("cadence override should rederive chargeType, got %s", merged.Services[0].ChargeType)
	}

	explicit := model.ChargeRecurring
	merged = Merge(baseBlueprint(), []model.BlueprintOverride{
		{ServiceID: "row-7", BillingCadence: &cadence, ChargeType: &explicit},
	})
	if merged.Services[0].ChargeType != model.ChargeRecurring {
		t.Fatalf("explicit chargeType must win over the cadence keyword")
	}
}
