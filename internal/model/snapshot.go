package model

import "time"

// WorkbookSnapshot 工作簿快照
//
// 上传字节解析出的有界、字符串化网格。每次上传重建；生成后只读。
type WorkbookSnapshot struct {
	Filename    string              `json:"filename"`
	ExtractedAt time.Time           `json:"extractedAt"`
	Sheets      []WorksheetSnapshot `json:"sheets"`
}

// WorksheetSnapshot 单个工作表快照
type WorksheetSnapshot struct {
	Name     string `json:"name"`
	RowCount int    `json:"rowCount"` // 使用区域行数（截断前）
	ColCount int    `json:"colCount"` // 使用区域列数（截断前）

	Headers []string      `json:"headers"` // 首个非空行的单元格
	Rows    []SnapshotRow `json:"rows"`    // 截断后的数据行

	// Validations 稀疏的“单元格地址 → 下拉校验”映射；无校验的单元格不出现
	Validations map[string]CellValidation `json:"validations,omitempty"`
}

// SnapshotRow 快照数据行
type SnapshotRow struct {
	Row   int      `json:"row"`   // 1 基行号
	Cells []string `json:"cells"` // 显示值；空单元格为 ""，不为 null
}

// CellValidation 单元格下拉校验信息
type CellValidation struct {
	Type    string   `json:"type"`              // 目前只提取 list
	Options []string `json:"options,omitempty"` // 字面量下拉项
	Source  string   `json:"source,omitempty"`  // 引用范围的下拉（不即时求值）
}

// Sheet 按名称查找工作表快照
func (s *WorkbookSnapshot) Sheet(name string) *WorksheetSnapshot {
	for i := range s.Sheets {
		if s.Sheets[i].Name == name {
			return &s.Sheets[i]
		}
	}
	return nil
}
