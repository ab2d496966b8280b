package model

import "fmt"

// MappingIncompleteError 取数时必需映射字段缺失/不可寻址
//
// 对本次提取是致命的；报错必须点名行和字段，绝不静默回退为 0。
type MappingIncompleteError struct {
	Field string
	Row   int
}

func (e *MappingIncompleteError) Error() string {
	if e.Row > 0 {
		return fmt.Sprintf("workbook mapping incomplete: field %q unaddressable at row %d", e.Field, e.Row)
	}
	return fmt.Sprintf("workbook mapping incomplete: field %q missing", e.Field)
}

// SnapshotExtractionError 原始字节无法按电子表格读取
//
// 对本次提取致命，但记录在工作簿记录上，不导致 bootstrap 调用失败
// （表现为 setupRequired=true + message）。
type SnapshotExtractionError struct {
	Filename string
	Err      error
}

func (e *SnapshotExtractionError) Error() string {
	return fmt.Sprintf("cannot read %q as a spreadsheet: %v", e.Filename, e.Err)
}

func (e *SnapshotExtractionError) Unwrap() error { return e.Err }

// BlueprintGenerationError AI 生成路径失败
//
// 非致命：自动回退确定性策略；错误文本保留展示，不抛给调用方。
type BlueprintGenerationError struct {
	Stage string // credential / request / response
	Err   error
}

func (e *BlueprintGenerationError) Error() string {
	return fmt.Sprintf("blueprint generation failed (%s): %v", e.Stage, e.Err)
}

func (e *BlueprintGenerationError) Unwrap() error { return e.Err }

// CriticalColumnMissingError 计算表模式缺少关键列绑定
//
// 致命并上抛：缺公式绑定时价目表模式无法替代，猜价格比拒绝报价更糟。
type CriticalColumnMissingError struct {
	Field string
}

func (e *CriticalColumnMissingError) Error() string {
	return fmt.Sprintf("calculator-sheet blueprint missing critical column mapping: %s", e.Field)
}
