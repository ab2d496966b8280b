package blueprint

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
)

// 构造测试快照：表头在第 1 行，明细从第 2 行起
func testSnapshot(rows [][]string) *model.WorkbookSnapshot {
	sheet := model.WorksheetSnapshot{
		Name:     "Calculator",
		RowCount: len(rows),
	}
	for i, cells := range rows {
		sheet.Rows = append(sheet.Rows, model.SnapshotRow{Row: i + 1, Cells: cells})
	}
	return &model.WorkbookSnapshot{
		Filename:    "test.xlsx",
		ExtractedAt: time.Now(),
		Sheets:      []model.WorksheetSnapshot{sheet},
	}
}

// A=select B=qty C=tier D=name E=billing F=type G=unit H=total ... K/L=Solo low/high
func testMapping() model.WorkbookMapping {
	m := model.DefaultWorkbookMapping()
	m.Rows = model.MappingRows{Start: 2, End: 10, MaxEmptyRows: 2}
	m.RateColumns = map[string]model.RateColumnSet{
		"Solo/Startup": {Low: "K", High: "L"},
	}
	return m
}

func row(name, billing, typeLabel, low, high string) []string {
	return []string{"Yes", "1", "", name, billing, typeLabel, "", "", "", "", low, high}
}

func TestDeterministic_FallbackScenario(t *testing.T) {
	t.Parallel()

	snap := testSnapshot([][]string{
		{"Select", "Qty", "Tier", "Service", "Billing", "Type"},
		row("Bookkeeping", "Monthly", "", "100", "200"),
	})

	bp, err := NewDeterministic().Generate(context.Background(), snap, testMapping())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(bp.Services) != 1 {
		t.Fatalf("expected 1 service, got %d", len(bp.Services))
	}

	svc := bp.Services[0]
	if svc.Name != "Bookkeeping" {
		t.Fatalf("unexpected name: %s", svc.Name)
	}
	if svc.ChargeType != model.ChargeRecurring {
		t.Fatalf("Monthly should classify recurring, got %s", svc.ChargeType)
	}
	band := svc.RateBands["Solo/Startup"]
	if band["low"] != 100 || band["high"] != 200 {
		t.Fatalf("unexpected band: %v", band)
	}
	if bp.Meta.Generator != "deterministic" {
		t.Fatalf("generator identity not recorded: %s", bp.Meta.Generator)
	}
	if bp.Meta.ColumnMapping == nil {
		t.Fatalf("deterministic blueprint must carry the formula column mapping")
	}
}

func TestDeterministic_EmptyRowTolerance(t *testing.T) {
	t.Parallel()

	snap := testSnapshot([][]string{
		{"Select", "Qty", "Tier", "Service", "Billing", "Type"},
		row("Bookkeeping", "Monthly", "", "100", "200"),
		{},
		{},
		{},
		// maxEmptyRows=2：三连空行后提前停扫，这行是尾部汇总，不该被读到
		row("TOTAL", "", "", "999", "999"),
	})

	bp, err := NewDeterministic().Generate(context.Background(), snap, testMapping())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(bp.Services) != 1 {
		t.Fatalf("trailing summary row leaked into services: %d", len(bp.Services))
	}
}

func TestDeterministic_OneTimeClassification(t *testing.T) {
	t.Parallel()

	snap := testSnapshot([][]string{
		{"Select", "Qty", "Tier", "Service", "Billing", "Type"},
		row("Setup", "Project", "", "500", "800"),
		row("Payroll", "Monthly retainer", "", "50", "90"),
		row("Cleanup", "One-off", "one-time", "250", "400"),
	})

	bp, err := NewDeterministic().Generate(context.Background(), snap, testMapping())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	want := []model.ChargeType{model.ChargeOneTime, model.ChargeRecurring, model.ChargeOneTime}
	for i, ct := range want {
		if bp.Services[i].ChargeType != ct {
			t.Fatalf("service %d (%s) want=%s got=%s", i, bp.Services[i].Name, ct, bp.Services[i].ChargeType)
		}
	}
}

func TestDeterministic_AccountingNotation(t *testing.T) {
	t.Parallel()

	snap := testSnapshot([][]string{
		{"Select", "Qty", "Tier", "Service", "Billing", "Type"},
		row("Bookkeeping", "Monthly", "", "$1,250.50", "(300)"),
		row("Advisory", "Monthly", "", "-", ""),
	})

	bp, err := NewDeterministic().Generate(context.Background(), snap, testMapping())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	band := bp.Services[0].RateBands["Solo/Startup"]
	if band["low"] != 1250.50 {
		t.Fatalf("thousands/currency parse failed: %v", band["low"])
	}
	if band["high"] != -300 {
		t.Fatalf("parenthesized negative parse failed: %v", band["high"])
	}
	// 短横线/空白是“缺价”，不是 0
	if _, ok := bp.Services[1].RateBands["Solo/Startup"]; ok {
		t.Fatalf("dash/blank cells must not produce a band")
	}
}

func TestDeterministic_StableServiceIDs(t *testing.T) {
	t.Parallel()

	snap := testSnapshot([][]string{
		{"Select", "Qty", "Tier", "Service", "Billing", "Type"},
		row("Bookkeeping", "Monthly", "", "100", "200"),
	})

	mapping := testMapping()
	bp1, err := NewDeterministic().Generate(context.Background(), snap, mapping)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	bp2, err := NewDeterministic().Generate(context.Background(), snap, mapping)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	// 服务 ID 跨重新生成稳定，覆盖层才可能在重新上传后存活
	if bp1.Services[0].ID != bp2.Services[0].ID {
		t.Fatalf("ids differ across regenerations: %s vs %s", bp1.Services[0].ID, bp2.Services[0].ID)
	}
}

func TestDeterministic_MissingRequiredColumn(t *testing.T) {
	t.Parallel()

	mapping := testMapping()
	mapping.Columns.UnitPrice = ""

	snap := testSnapshot([][]string{{"Select"}})
	_, err := NewDeterministic().Generate(context.Background(), snap, mapping)
	if err == nil {
		t.Fatalf("expected error")
	}
	var incomplete *model.MappingIncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected MappingIncompleteError, got %T", err)
	}
	if incomplete.Field != "columns.unitPrice" {
		t.Fatalf("error should name the field, got %q", incomplete.Field)
	}
}

func TestDeterministic_InvertedRowRange(t *testing.T) {
	t.Parallel()

	mapping := testMapping()
	mapping.Rows = model.MappingRows{Start: 10, End: 5}

	snap := testSnapshot([][]string{{"Select"}})
	_, err := NewDeterministic().Generate(context.Background(), snap, mapping)
	var incomplete *model.MappingIncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("expected MappingIncompleteError, got %v", err)
	}
	if incomplete.Field != "rows.end" || incomplete.Row != 5 {
		t.Fatalf("error must name the offending row and field: %+v", incomplete)
	}
}

func TestGenerate_NoCredentialUsesDeterministic(t *testing.T) {
	t.Parallel()

	snap := testSnapshot([][]string{
		{"Select", "Qty", "Tier", "Service", "Billing", "Type"},
		row("Bookkeeping", "Monthly", "", "100", "200"),
	})

	res, err := Generate(context.Background(), nil, snap, testMapping())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if res.Blueprint.Meta.Generator != "deterministic" {
		t.Fatalf("no credential must select deterministic, got %s", res.Blueprint.Meta.Generator)
	}
	if res.AIError != "" {
		t.Fatalf("unconfigured AI is not a failure, got %q", res.AIError)
	}
}

// 恒定失败的 AI 策略替身
type failingGenerator struct{}

func (failingGenerator) Name() string { return "ai" }

func (failingGenerator) Generate(context.Context, *model.WorkbookSnapshot, model.WorkbookMapping) (*model.Blueprint, error) {
	return nil, &model.BlueprintGenerationError{Stage: "response", Err: errors.New("empty response text")}
}

func TestGenerate_AIFailureFallsBack(t *testing.T) {
	t.Parallel()

	snap := testSnapshot([][]string{
		{"Select", "Qty", "Tier", "Service", "Billing", "Type"},
		row("Bookkeeping", "Monthly", "", "100", "200"),
	})

	res, err := Generate(context.Background(), failingGenerator{}, snap, testMapping())
	if err != nil {
		t.Fatalf("AI failure must not surface as an error: %v", err)
	}
	if res.AIError == "" {
		t.Fatalf("AI error text must be retained for display")
	}
	if res.Blueprint == nil || len(res.Blueprint.Services) != 1 {
		t.Fatalf("fallback blueprint must still be populated")
	}
	if res.Blueprint.Meta.Generator != "deterministic" {
		t.Fatalf("fallback must record deterministic identity, got %s", res.Blueprint.Meta.Generator)
	}
}
