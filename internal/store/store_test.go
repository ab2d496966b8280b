package store

import (
	"testing"
	"time"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestWorkbook_LatestWins(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	if rec, err := s.LatestWorkbook(); err != nil || rec != nil {
		t.Fatalf("empty store: rec=%v err=%v", rec, err)
	}
	if info, err := s.LatestWorkbookInfo(); err != nil || info != nil {
		t.Fatalf("empty store info: info=%v err=%v", info, err)
	}

	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	first := &WorkbookRecord{
		Filename:   "pricing-v1.xlsx",
		MimeType:   "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:       []byte("first"),
		UploadedAt: base,
	}
	if _, err := s.SaveWorkbook(first); err != nil {
		t.Fatalf("save first: %v", err)
	}

	second := &WorkbookRecord{
		Filename: "pricing-v2.xlsx",
		MimeType: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		Data:     []byte("second"),
		Blueprint: &model.Blueprint{
			ID:       "bp-2",
			Services: []model.ServiceBlueprint{{ID: "row-7", Name: "Bookkeeping", ChargeType: model.ChargeRecurring}},
		},
		BlueprintError: "ai timeout, deterministic fallback used",
		UploadedAt:     base.Add(time.Hour),
	}
	id, err := s.SaveWorkbook(second)
	if err != nil {
		t.Fatalf("save second: %v", err)
	}
	if id == "" {
		t.Fatalf("save must assign an id")
	}

	rec, err := s.LatestWorkbook()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if rec.Filename != "pricing-v2.xlsx" || string(rec.Data) != "second" {
		t.Fatalf("latest upload must win: %+v", rec)
	}
	if rec.Blueprint == nil || rec.Blueprint.Services[0].Name != "Bookkeeping" {
		t.Fatalf("blueprint must round-trip: %+v", rec.Blueprint)
	}
	if rec.BlueprintError != "ai timeout, deterministic fallback used" {
		t.Fatalf("blueprint error must persist: %q", rec.BlueprintError)
	}

	info, err := s.LatestWorkbookInfo()
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	if info.ID != id || info.Filename != "pricing-v2.xlsx" || !info.UploadedAt.Equal(base.Add(time.Hour)) {
		t.Fatalf("info: %+v", info)
	}
}

func TestWorkbook_UpdateBlueprint(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	id, err := s.SaveWorkbook(&WorkbookRecord{
		Filename: "pricing.xlsx",
		MimeType: "application/octet-stream",
		Data:     []byte("bytes"),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	regenerated := &model.Blueprint{
		ID:       "bp-regen",
		Meta:     model.BlueprintMeta{Generator: "deterministic"},
		Services: []model.ServiceBlueprint{{ID: "row-9", Name: "Payroll", ChargeType: model.ChargeRecurring}},
	}
	if err := s.UpdateBlueprint(id, regenerated, ""); err != nil {
		t.Fatalf("update: %v", err)
	}

	rec, err := s.LatestWorkbook()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if rec.Blueprint == nil || rec.Blueprint.ID != "bp-regen" || rec.BlueprintError != "" {
		t.Fatalf("regenerated blueprint must replace the stored one: %+v", rec)
	}

	if err := s.UpdateBlueprint("no-such-id", regenerated, ""); err == nil {
		t.Fatalf("updating a missing workbook must fail")
	}
}

func TestSettings_RoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)

	settings, err := s.LoadSettings()
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if settings.DefaultSegment != "" || len(settings.LineOverrides) != 0 {
		t.Fatalf("unsaved settings must be the zero value: %+v", settings)
	}

	mapping := model.DefaultWorkbookMapping()
	want := &model.Settings{
		DefaultSegment:   "Small Business",
		DefaultPriceTier: "Midpoint",
		LineOverrides: []model.BlueprintOverride{
			{ServiceID: "row-7", RateBands: map[string]model.RateBand{"Small Business": {"low": 150}}},
		},
		ExportRecipients: []string{"ops@example.com"},
		WorkbookMapping:  &mapping,
	}
	if err := s.SaveSettings(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadSettings()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.DefaultSegment != "Small Business" || got.DefaultPriceTier != "Midpoint" {
		t.Fatalf("defaults: %+v", got)
	}
	if len(got.LineOverrides) != 1 || got.LineOverrides[0].RateBands["Small Business"]["low"] != 150 {
		t.Fatalf("overrides: %+v", got.LineOverrides)
	}
	if got.WorkbookMapping == nil || got.WorkbookMapping.CalculatorSheet != mapping.CalculatorSheet {
		t.Fatalf("mapping: %+v", got.WorkbookMapping)
	}

	// 再写一次是覆盖而不是追加
	want.DefaultPriceTier = "High"
	if err := s.SaveSettings(want); err != nil {
		t.Fatalf("resave: %v", err)
	}
	got, err = s.LoadSettings()
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if got.DefaultPriceTier != "High" {
		t.Fatalf("resave must overwrite: %+v", got)
	}
}
