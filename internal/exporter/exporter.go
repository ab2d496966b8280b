package exporter

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/snapshot"
)

const xlsxMimeType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Request 一次报价导出的全部输入
//
// Result 必须是解析器刚刚算出的结果：导出不重算价格，只把已解析的
// 数字落盘，保证导出件和屏幕上的报价逐分一致。
type Request struct {
	Workbook  []byte // 计算表模式的工作簿原件；价目表模式为 nil
	Mapping   model.WorkbookMapping
	Blueprint *model.Blueprint
	Segment   string
	PriceTier string
	Details   *model.QuoteDetails
	Result    *model.CalculateResult
}

// Export 导出产物
type Export struct {
	Filename string
	MimeType string
	Data     []byte
}

// Build 按蓝图模式选择导出格式
//
// 计算表模式产出定稿工作簿（公式物化为数值），价目表模式产出 CSV。
func Build(req Request) (*Export, error) {
	if req.Result == nil {
		return nil, fmt.Errorf("export requires a calculation result")
	}
	if req.Blueprint != nil && req.Blueprint.Meta.ColumnMapping != nil {
		return buildWorkbook(req)
	}
	return buildCSV(req)
}

// buildWorkbook 定稿工作簿导出
//
// 强约束：输出以上传原件为模板，保留 sheet、样式与未触碰的公式；
// 只把本次报价触及的单元格物化为数值，收件人打开时无需重算环境。
func buildWorkbook(req Request) (*Export, error) {
	if len(req.Workbook) == 0 {
		return nil, fmt.Errorf("workbook export requires the stored workbook binary")
	}
	cm := req.Blueprint.Meta.ColumnMapping

	f, err := excelize.OpenReader(bytes.NewReader(req.Workbook))
	if err != nil {
		return nil, fmt.Errorf("open workbook copy: %w", err)
	}
	defer f.Close()

	sheet := req.Mapping.CalculatorSheet
	freeze := func(cell string, value interface{}) error {
		if strings.TrimSpace(cell) == "" {
			return nil
		}
		if err := f.SetCellValue(sheet, cell, value); err != nil {
			return fmt.Errorf("set %s: %w", cell, err)
		}
		_ = f.SetCellFormula(sheet, cell, "")
		return nil
	}

	if err := freeze(req.Mapping.Cells.ClientSegment, req.Segment); err != nil {
		return nil, err
	}
	if err := freeze(req.Mapping.Cells.PriceTier, req.PriceTier); err != nil {
		return nil, err
	}

	rowForID := make(map[string]int, len(req.Blueprint.Services))
	for i := range req.Blueprint.Services {
		if req.Blueprint.Services[i].SourceRow > 0 {
			rowForID[req.Blueprint.Services[i].ID] = req.Blueprint.Services[i].SourceRow
		}
	}

	for _, line := range req.Result.Lines {
		row, ok := rowForID[line.ID]
		if !ok {
			continue
		}
		if cm.Select != "" {
			flag := "No"
			if line.Selected {
				flag = "Yes"
			}
			if err := freeze(snapshot.CellAddress(cm.Select, row), flag); err != nil {
				return nil, err
			}
		}
		if err := freeze(snapshot.CellAddress(cm.Quantity, row), line.Quantity); err != nil {
			return nil, err
		}
		if err := freeze(snapshot.CellAddress(cm.UnitPrice, row), line.EffectivePrice); err != nil {
			return nil, err
		}
		if err := freeze(snapshot.CellAddress(cm.LineTotal, row), line.LineTotal); err != nil {
			return nil, err
		}
	}

	totals := req.Result.Totals
	if err := freeze(req.Mapping.Totals.MonthlySubtotal, totals.MonthlySubtotal); err != nil {
		return nil, err
	}
	if err := freeze(req.Mapping.Totals.OneTimeSubtotal, totals.OneTimeSubtotal); err != nil {
		return nil, err
	}
	if totals.MaintenanceSubtotal != nil {
		if err := freeze(req.Mapping.Totals.MaintenanceSubtotal, *totals.MaintenanceSubtotal); err != nil {
			return nil, err
		}
	}
	if err := freeze(req.Mapping.Totals.GrandTotal, totals.GrandTotalMonthOne); err != nil {
		return nil, err
	}
	if err := freeze(req.Mapping.Totals.OngoingMonthly, totals.OngoingMonthly); err != nil {
		return nil, err
	}
	if err := freeze(req.Mapping.Cells.OngoingMonthly, totals.OngoingMonthly); err != nil {
		return nil, err
	}

	if err := fillQuoteSheet(f, req); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}

	return &Export{
		Filename: exportFilename(req.Details, "xlsx"),
		MimeType: xlsxMimeType,
		Data:     buf.Bytes(),
	}, nil
}

// fillQuoteSheet 报价单抬头字段写入映射声明的单元格
func fillQuoteSheet(f *excelize.File, req Request) error {
	if req.Details == nil || strings.TrimSpace(req.Mapping.QuoteSheet) == "" {
		return nil
	}
	sheet := req.Mapping.QuoteSheet
	found := false
	for _, name := range f.GetSheetList() {
		if name == sheet {
			found = true
			break
		}
	}
	if !found {
		return nil
	}

	q := req.Mapping.Quote
	fields := []struct {
		cell  string
		value string
	}{
		{q.ClientName, req.Details.ClientName},
		{q.CompanyName, req.Details.CompanyName},
		{q.Email, req.Details.Email},
		{q.QuoteDate, req.Details.QuoteDate},
		{q.Notes, req.Details.Notes},
	}
	for _, field := range fields {
		if field.cell == "" || field.value == "" {
			continue
		}
		if err := f.SetCellValue(sheet, field.cell, field.value); err != nil {
			return fmt.Errorf("set quote field %s: %w", field.cell, err)
		}
	}
	return nil
}

func exportFilename(details *model.QuoteDetails, ext string) string {
	name := "quote"
	if details != nil {
		if c := strings.TrimSpace(details.CompanyName); c != "" {
			name = slugify(c)
		} else if c := strings.TrimSpace(details.ClientName); c != "" {
			name = slugify(c)
		}
	}
	return fmt.Sprintf("%s-%s.%s", name, time.Now().UTC().Format("2006-01-02"), ext)
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	out := strings.Trim(b.String(), "-")
	if out == "" {
		return "quote"
	}
	return out
}
