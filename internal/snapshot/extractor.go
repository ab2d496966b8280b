package snapshot

import (
	"bytes"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
)

// 有界预览的默认上限：快照同时喂给 AI 和确定性策略，
// 截断保证 AI 负载小且确定性扫描快，不做全文件摄入。
const (
	DefaultMaxRows = 80
	DefaultMaxCols = 40
)

// Options 快照提取选项
type Options struct {
	MaxRows int // 每表最大行数；0 取默认
	MaxCols int // 每表最大列数；0 取默认
}

// Extract 将原始工作簿字节解析为只读快照
//
// 所有单元格转为显示字符串；空单元格是 ""，不是 null（null 仅保留给“无校验”）。
func Extract(data []byte, filename string, opts Options) (*model.WorkbookSnapshot, error) {
	maxRows := opts.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	maxCols := opts.MaxCols
	if maxCols <= 0 {
		maxCols = DefaultMaxCols
	}

	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &model.SnapshotExtractionError{Filename: filename, Err: err}
	}
	defer f.Close()

	snap := &model.WorkbookSnapshot{
		Filename:    filename,
		ExtractedAt: time.Now(),
	}

	for _, name := range f.GetSheetList() {
		sheet, err := extractSheet(f, name, maxRows, maxCols)
		if err != nil {
			// 单表读取失败跳过，不拖垮整本
			continue
		}
		snap.Sheets = append(snap.Sheets, *sheet)
	}

	if len(snap.Sheets) == 0 {
		return nil, &model.SnapshotExtractionError{Filename: filename, Err: errNoSheets}
	}

	return snap, nil
}

var errNoSheets = &sheetError{"workbook contains no readable sheets"}

type sheetError struct{ msg string }

func (e *sheetError) Error() string { return e.msg }

func extractSheet(f *excelize.File, name string, maxRows, maxCols int) (*model.WorksheetSnapshot, error) {
	rows, err := f.GetRows(name)
	if err != nil {
		return nil, err
	}

	rowCount, colCount := usedRange(f, name, rows)

	sheet := &model.WorksheetSnapshot{
		Name:     name,
		RowCount: rowCount,
		ColCount: colCount,
	}

	limitRows := rowCount
	if limitRows > maxRows {
		limitRows = maxRows
	}
	limitCols := colCount
	if limitCols > maxCols {
		limitCols = maxCols
	}

	for i := 0; i < limitRows && i < len(rows); i++ {
		cells := make([]string, limitCols)
		for j := 0; j < limitCols; j++ {
			if j < len(rows[i]) {
				cells[j] = rows[i][j]
			}
		}
		if sheet.Headers == nil && !allEmpty(cells) {
			sheet.Headers = cells
		}
		sheet.Rows = append(sheet.Rows, model.SnapshotRow{
			Row:   i + 1,
			Cells: cells,
		})
	}

	sheet.Validations = extractValidations(f, name, maxRows)

	return sheet, nil
}

// usedRange 从底层 dimension 引用取使用区域；缺失时退回非空单元格包围盒
func usedRange(f *excelize.File, name string, rows [][]string) (rowCount, colCount int) {
	if dim, err := f.GetSheetDimension(name); err == nil && dim != "" {
		parts := strings.Split(dim, ":")
		end := parts[len(parts)-1]
		if col, row, err := SplitCellAddress(end); err == nil {
			if idx, err := LetterToIndex(col); err == nil {
				return row, idx + 1
			}
		}
	}

	for i, row := range rows {
		last := -1
		for j, cell := range row {
			if strings.TrimSpace(cell) != "" {
				last = j
			}
		}
		if last >= 0 {
			rowCount = i + 1
			if last+1 > colCount {
				colCount = last + 1
			}
		}
	}
	return rowCount, colCount
}

// extractValidations 提取下拉/列表校验
//
// 引号包裹的逗号字面量给出显式选项；引用范围只记 source，不即时求值。
func extractValidations(f *excelize.File, name string, maxRows int) map[string]model.CellValidation {
	dvs, err := f.GetDataValidations(name)
	if err != nil || len(dvs) == 0 {
		return nil
	}

	out := make(map[string]model.CellValidation)
	for _, dv := range dvs {
		if dv == nil || dv.Type != "list" {
			continue
		}

		v := model.CellValidation{Type: "list"}
		formula := strings.TrimSpace(strings.TrimPrefix(dv.Formula1, "="))
		if strings.HasPrefix(formula, `"`) && strings.HasSuffix(formula, `"`) && len(formula) >= 2 {
			raw := strings.Split(formula[1:len(formula)-1], ",")
			for _, opt := range raw {
				if opt = strings.TrimSpace(opt); opt != "" {
					v.Options = append(v.Options, opt)
				}
			}
		} else if formula != "" {
			v.Source = formula
		}

		for _, addr := range expandSqref(dv.Sqref, maxRows) {
			out[addr] = v
		}
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

// expandSqref 展开校验作用范围为单元格地址列表（按行上限截断）
func expandSqref(sqref string, maxRows int) []string {
	var addrs []string
	for _, ref := range strings.Fields(sqref) {
		parts := strings.Split(ref, ":")
		startCol, startRow, err := SplitCellAddress(parts[0])
		if err != nil {
			continue
		}
		endCol, endRow := startCol, startRow
		if len(parts) == 2 {
			if c, r, err := SplitCellAddress(parts[1]); err == nil {
				endCol, endRow = c, r
			}
		}

		startIdx, err1 := LetterToIndex(startCol)
		endIdx, err2 := LetterToIndex(endCol)
		if err1 != nil || err2 != nil {
			continue
		}
		if endRow > maxRows {
			endRow = maxRows
		}
		for r := startRow; r <= endRow; r++ {
			for c := startIdx; c <= endIdx; c++ {
				addrs = append(addrs, CellAddress(IndexToLetter(c), r))
			}
		}
	}
	return addrs
}

func allEmpty(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
