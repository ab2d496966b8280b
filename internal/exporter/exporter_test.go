package exporter

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
)

func exportWorkbook(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	const sheet = "Calculator"
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	if _, err := f.NewSheet("Quote"); err != nil {
		t.Fatalf("new quote sheet: %v", err)
	}

	_ = f.SetCellValue(sheet, "D7", "Bookkeeping")
	_ = f.SetCellFormula(sheet, "H7", `IF($C$3="High",200,100)`)
	_ = f.SetCellFormula(sheet, "I7", `B7*H7`)
	_ = f.SetCellFormula(sheet, "H40", "SUM(I7:I38)")
	// 本次报价不触碰的公式，导出后必须原样保留
	_ = f.SetCellFormula(sheet, "Z1", "SUM(I7:I38)")

	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return buf.Bytes()
}

func exportMapping() model.WorkbookMapping {
	m := model.DefaultWorkbookMapping()
	m.CalculatorSheet = "Calculator"
	m.QuoteSheet = "Quote"
	m.Cells = model.MappingCells{ClientSegment: "C2", PriceTier: "C3"}
	m.Totals = model.MappingTotals{MonthlySubtotal: "H40", OneTimeSubtotal: "H41", GrandTotal: "H43"}
	m.Quote = model.MappingQuote{ClientName: "B2", CompanyName: "B3"}
	return m
}

func exportResult() *model.CalculateResult {
	return &model.CalculateResult{
		Lines: []model.LineResult{
			{
				ID: "row-7", Name: "Bookkeeping", BillingLabel: "Monthly",
				Selected: true, Quantity: 2, EffectivePrice: 175, LineTotal: 350,
				ChargeType: model.ChargeRecurring, TypeLabel: "Recurring",
			},
		},
		Totals: model.Totals{MonthlySubtotal: 350, OneTimeSubtotal: 0, GrandTotalMonthOne: 350, OngoingMonthly: 350},
	}
}

func TestBuild_WorkbookFreezesTouchedCells(t *testing.T) {
	t.Parallel()

	bp := &model.Blueprint{
		Meta: model.BlueprintMeta{
			Generator:     "deterministic",
			ColumnMapping: &model.ColumnMapping{Select: "A", Quantity: "B", UnitPrice: "H", LineTotal: "I"},
		},
		Services: []model.ServiceBlueprint{{ID: "row-7", SourceRow: 7, Name: "Bookkeeping"}},
	}

	out, err := Build(Request{
		Workbook:  exportWorkbook(t),
		Mapping:   exportMapping(),
		Blueprint: bp,
		Segment:   "Solo/Startup",
		PriceTier: "High",
		Details:   &model.QuoteDetails{ClientName: "Jamie Rivera", CompanyName: "Acme Dental"},
		Result:    exportResult(),
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if out.MimeType != xlsxMimeType || !strings.HasSuffix(out.Filename, ".xlsx") {
		t.Fatalf("workbook export metadata: %+v", out)
	}
	if !strings.HasPrefix(out.Filename, "acme-dental-") {
		t.Fatalf("filename must derive from the company name: %q", out.Filename)
	}

	f, err := excelize.OpenReader(bytes.NewReader(out.Data))
	if err != nil {
		t.Fatalf("reopen export: %v", err)
	}
	defer f.Close()

	const sheet = "Calculator"
	for _, tc := range []struct {
		cell string
		want string
	}{
		{"C2", "Solo/Startup"},
		{"C3", "High"},
		{"A7", "Yes"},
		{"B7", "2"},
		{"H7", "175"},
		{"I7", "350"},
		{"H40", "350"},
		{"H43", "350"},
	} {
		got, err := f.GetCellValue(sheet, tc.cell)
		if err != nil {
			t.Fatalf("get %s: %v", tc.cell, err)
		}
		if got != tc.want {
			t.Fatalf("%s = %q, want %q", tc.cell, got, tc.want)
		}
	}

	// 被触碰的单元格公式必须物化为数值
	for _, cell := range []string{"H7", "I7", "H40"} {
		formula, err := f.GetCellFormula(sheet, cell)
		if err != nil {
			t.Fatalf("get formula %s: %v", cell, err)
		}
		if formula != "" {
			t.Fatalf("expected %s materialized, still has formula %q", cell, formula)
		}
	}
	// 未触碰的公式原样保留
	if formula, _ := f.GetCellFormula(sheet, "Z1"); formula == "" {
		t.Fatalf("untouched formula at Z1 must survive the export")
	}

	// 报价单抬头
	if got, _ := f.GetCellValue("Quote", "B2"); got != "Jamie Rivera" {
		t.Fatalf("quote client name: %q", got)
	}
	if got, _ := f.GetCellValue("Quote", "B3"); got != "Acme Dental" {
		t.Fatalf("quote company name: %q", got)
	}
}

func TestBuild_CSVForTableMode(t *testing.T) {
	t.Parallel()

	maintenance := 25.0
	result := exportResult()
	result.Totals.MaintenanceSubtotal = &maintenance
	result.Totals.GrandTotalMonthOne = 375
	result.Totals.OngoingMonthly = 375

	out, err := Build(Request{
		Blueprint: &model.Blueprint{Meta: model.BlueprintMeta{Generator: "ai"}},
		Segment:   "Small Business",
		PriceTier: "Midpoint",
		Details:   &model.QuoteDetails{ClientName: "Jamie Rivera"},
		Result:    result,
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if out.MimeType != "text/csv" || !strings.HasSuffix(out.Filename, ".csv") {
		t.Fatalf("csv export metadata: %+v", out)
	}

	r := csv.NewReader(bytes.NewReader(out.Data))
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		t.Fatalf("parse csv: %v", err)
	}

	joined := make([]string, 0, len(records))
	for _, rec := range records {
		joined = append(joined, strings.Join(rec, "|"))
	}
	body := strings.Join(joined, "\n")

	for _, want := range []string{
		"Client|Jamie Rivera",
		"Segment|Small Business",
		"Price tier|Midpoint",
		"Bookkeeping|Monthly|Recurring|Yes|2.00|175.00|350.00",
		"Monthly subtotal|350.00",
		"Maintenance subtotal|25.00",
		"Grand total (month one)|375.00",
		"Ongoing monthly|375.00",
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("csv missing %q:\n%s", want, body)
		}
	}
}

func TestBuild_RequiresResult(t *testing.T) {
	t.Parallel()

	if _, err := Build(Request{}); err == nil {
		t.Fatalf("export without a calculation result must fail")
	}
}
