package pricing

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/snapshot"
)

// sheetResolver 计算表模式
//
// 上传的工作簿把专有定价逻辑编码成公式，系统必须尊重而不是重写它：
// 把请求的分级/档位和每行的选择写进缓存二进制克隆出的内存副本，重算公式，
// 再把单价/行合计读回来。每次 Calculate 都开自己的副本，并发请求绝不共享
// 同一个工作簿对象。
type sheetResolver struct {
	bp       *model.Blueprint
	mapping  model.WorkbookMapping
	workbook []byte
	columns  model.ColumnMapping
}

func newSheetResolver(merged *model.Blueprint, mapping model.WorkbookMapping, workbook []byte) (*sheetResolver, error) {
	cm := merged.Meta.ColumnMapping

	// 缺公式绑定时价目表模式无法替代：硬配置错误，必须上抛
	if strings.TrimSpace(cm.UnitPrice) == "" {
		return nil, &model.CriticalColumnMissingError{Field: "unitPrice"}
	}
	if strings.TrimSpace(cm.LineTotal) == "" {
		return nil, &model.CriticalColumnMissingError{Field: "lineTotal"}
	}
	if strings.TrimSpace(cm.Quantity) == "" {
		return nil, &model.CriticalColumnMissingError{Field: "quantity"}
	}
	if len(workbook) == 0 {
		return nil, fmt.Errorf("calculator-sheet mode requires the stored workbook binary")
	}

	return &sheetResolver{
		bp:       merged,
		mapping:  mapping,
		workbook: workbook,
		columns:  *cm,
	}, nil
}

// Calculate 写入 → 重算 → 读回
func (r *sheetResolver) Calculate(segment, priceTier string, selections []model.LineSelection) (*model.CalculateResult, error) {
	f, err := excelize.OpenReader(bytes.NewReader(r.workbook))
	if err != nil {
		return nil, fmt.Errorf("open workbook copy: %w", err)
	}
	defer f.Close()

	sheet := r.mapping.CalculatorSheet
	index := selectionIndex(selections)

	// 控制单元格
	if addr := r.mapping.Cells.ClientSegment; addr != "" {
		_ = f.SetCellValue(sheet, addr, segment)
	}
	if addr := r.mapping.Cells.PriceTier; addr != "" {
		_ = f.SetCellValue(sheet, addr, priceTier)
	}

	// 第一遍：写入每行的选择/数量/费率覆盖
	type lineState struct {
		svc      *model.ServiceBlueprint
		sel      *model.LineSelection
		selected bool
		quantity float64
	}
	states := make([]lineState, 0, len(r.bp.Services))

	for i := range r.bp.Services {
		svc := &r.bp.Services[i]
		sel := index[svc.ID]
		selected, quantity := resolveSelection(svc, sel)
		states = append(states, lineState{svc: svc, sel: sel, selected: selected, quantity: quantity})

		row := svc.SourceRow
		if row <= 0 {
			continue
		}
		if col := r.columns.Select; col != "" {
			flag := "No"
			if selected {
				flag = "Yes"
			}
			_ = f.SetCellValue(sheet, snapshot.CellAddress(col, row), flag)
		}
		_ = f.SetCellValue(sheet, snapshot.CellAddress(r.columns.Quantity, row), quantity)

		// 行内费率覆盖写进该分级的费率列，移动公式读到的档
		if sel != nil && len(sel.RateOverrides) > 0 {
			if set, ok := rateColumnsFor(r.mapping, segment); ok {
				for point, price := range sel.RateOverrides {
					switch strings.ToLower(strings.TrimSpace(point)) {
					case "low":
						_ = f.SetCellValue(sheet, snapshot.CellAddress(set.Low, row), price)
					case "high":
						_ = f.SetCellValue(sheet, snapshot.CellAddress(set.High, row), price)
					case "maintenance":
						if set.Maintenance != "" {
							_ = f.SetCellValue(sheet, snapshot.CellAddress(set.Maintenance, row), price)
						}
					}
				}
			}
		}
	}

	// 第二遍：先读被覆盖行的基础单价，再落硬性覆盖（清公式后写值，
	// 后续重算和导出都所见即所得）
	basePrices := make(map[string]float64, len(states))
	for _, st := range states {
		if st.svc.SourceRow <= 0 {
			continue
		}
		if st.sel != nil && st.sel.OverridePrice != nil {
			cell := snapshot.CellAddress(r.columns.UnitPrice, st.svc.SourceRow)
			basePrices[st.svc.ID] = r.calcFloat(f, sheet, cell)
			_ = f.SetCellFormula(sheet, cell, "")
			_ = f.SetCellValue(sheet, cell, *st.sel.OverridePrice)
		}
	}

	// 第三遍：重算读回
	result := &model.CalculateResult{Lines: make([]model.LineResult, 0, len(states))}
	var monthly, oneTime, maintenance float64

	for _, st := range states {
		svc := st.svc

		var base, lineTotal float64
		var override *float64
		if st.sel != nil && st.sel.OverridePrice != nil {
			v := *st.sel.OverridePrice
			override = &v
		}

		if svc.SourceRow > 0 {
			base = r.calcFloat(f, sheet, snapshot.CellAddress(r.columns.UnitPrice, svc.SourceRow))
			lineTotal = r.calcFloat(f, sheet, snapshot.CellAddress(r.columns.LineTotal, svc.SourceRow))
		}

		effective := base
		if override != nil {
			// 单元格已被覆盖值顶掉，基础价取覆盖前读到的快照
			if pre, ok := basePrices[svc.ID]; ok {
				base = pre
			}
			effective = *override
		}
		if !st.selected {
			lineTotal = 0
		}

		line := model.LineResult{
			ID:             svc.ID,
			Name:           svc.Name,
			Tier:           svc.Tier,
			BillingLabel:   svc.BillingCadence,
			Selected:       st.selected,
			Quantity:       st.quantity,
			BasePrice:      base,
			OverridePrice:  override,
			EffectivePrice: effective,
			LineTotal:      lineTotal,
			ChargeType:     svc.ChargeType,
			TypeLabel:      typeLabel(svc.ChargeType),
		}
		result.Lines = append(result.Lines, line)

		if svc.ChargeType == model.ChargeRecurring {
			monthly += lineTotal
		} else {
			oneTime += lineTotal
		}
		if st.selected && hasMaintenanceConcept(r.mapping) && svc.SourceRow > 0 {
			if col := r.mapping.Columns.MaintenanceTotal; col != "" {
				maintenance += r.calcFloat(f, sheet, snapshot.CellAddress(col, svc.SourceRow))
			}
		}
	}

	// 小计优先读工作簿自己的合计单元格（尊重表内公式口径），读不出时用行求和；
	// 总计/持续月费永远按构造推导，保证合计不变式
	if v, ok := r.tryCalcFloat(f, sheet, r.mapping.Totals.MonthlySubtotal); ok {
		monthly = v
	}
	if v, ok := r.tryCalcFloat(f, sheet, r.mapping.Totals.OneTimeSubtotal); ok {
		oneTime = v
	}
	var maintenancePtr *float64
	if hasMaintenanceConcept(r.mapping) {
		if v, ok := r.tryCalcFloat(f, sheet, r.mapping.Totals.MaintenanceSubtotal); ok {
			maintenance = v
		}
		maintenancePtr = &maintenance
	}

	result.Totals = buildTotals(monthly, oneTime, maintenancePtr)
	return result, nil
}

func (r *sheetResolver) calcFloat(f *excelize.File, sheet, cell string) float64 {
	v, _ := r.tryCalcFloat(f, sheet, cell)
	return v
}

func (r *sheetResolver) tryCalcFloat(f *excelize.File, sheet, cell string) (float64, bool) {
	if strings.TrimSpace(cell) == "" {
		return 0, false
	}
	raw, err := f.CalcCellValue(sheet, cell)
	if err != nil || strings.TrimSpace(raw) == "" {
		// 公式重算不了时退回原始单元格值
		raw, err = f.GetCellValue(sheet, cell)
		if err != nil || strings.TrimSpace(raw) == "" {
			return 0, false
		}
	}
	raw = strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	raw = strings.TrimPrefix(raw, "$")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// rateColumnsFor 先精确、后大小写不敏感地找分级费率列组
func rateColumnsFor(mapping model.WorkbookMapping, segment string) (model.RateColumnSet, bool) {
	if set, ok := mapping.RateColumns[segment]; ok {
		return set, true
	}
	for name, set := range mapping.RateColumns {
		if strings.EqualFold(name, segment) {
			return set, true
		}
	}
	return model.RateColumnSet{}, false
}
