package pricing

import (
	"strings"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
)

// Resolver 报价计算引擎
//
// 两个后端实现同一契约：
//   - 计算表模式（工作簿带活公式）：写入选择项，重算表内公式，读回结果
//   - 价目表模式（AI 产出的静态目录）：直接对费率档跑解析算法
//
// 模式由蓝图元数据上的公式列绑定结构化决定，调用方拿到的 lines/totals
// 契约与后端无关。
type Resolver interface {
	Calculate(segment, priceTier string, selections []model.LineSelection) (*model.CalculateResult, error)
}

// NewResolver 按蓝图元数据选择后端
//
// Meta.ColumnMapping 非 nil → 计算表模式（需要工作簿字节）；nil → 价目表
// 模式。这是唯一的分支点，两个模式绝不混跑。
func NewResolver(merged *model.Blueprint, mapping model.WorkbookMapping, workbook []byte) (Resolver, error) {
	if merged.Meta.ColumnMapping != nil {
		return newSheetResolver(merged, mapping, workbook)
	}
	return newTableResolver(merged, mapping), nil
}

// ---- 共享解析原语（两个后端都用） ----

// findBand 先精确、后大小写不敏感地找分级费率档
func findBand(bands map[string]model.RateBand, segment string) (model.RateBand, bool) {
	if band, ok := bands[segment]; ok {
		return band, true
	}
	for name, band := range bands {
		if strings.EqualFold(name, segment) {
			return band, true
		}
	}
	return nil, false
}

// resolveTier 在费率档内解析价格档位
//
// 精确键 > 大小写不敏感键 > Midpoint 合成（用在场的 low/high 求 (low+high)/2，
// 只有一个在场时取该值）。找不到返回 (0,false)：缺价是业务事实，不是错误。
func resolveTier(band model.RateBand, tier string) (float64, bool) {
	if band == nil {
		return 0, false
	}
	if v, ok := band[tier]; ok {
		return v, true
	}
	for name, v := range band {
		if strings.EqualFold(name, tier) {
			return v, true
		}
	}

	if strings.EqualFold(tier, "midpoint") {
		low, hasLow := caseGet(band, "low")
		high, hasHigh := caseGet(band, "high")
		switch {
		case hasLow && hasHigh:
			return (low + high) / 2, true
		case hasLow:
			return low, true
		case hasHigh:
			return high, true
		}
	}
	return 0, false
}

func caseGet(band model.RateBand, key string) (float64, bool) {
	if v, ok := band[key]; ok {
		return v, true
	}
	for name, v := range band {
		if strings.EqualFold(name, key) {
			return v, true
		}
	}
	return 0, false
}

// resolveUnitPrice 单行单价解析，优先级从高到低：
//  1. 硬性单价覆盖，完全绕过费率档
//  2. 行内费率覆盖先合并到蓝图费率档上，再走档位查找（覆盖移动档，不换算法）
//  3. 档位查找（含 Midpoint 合成）
//  4. 都无 → 0（该分级未定价是业务事实）
func resolveUnitPrice(svc *model.ServiceBlueprint, segment, tier string, sel *model.LineSelection) (base float64, override *float64) {
	if sel != nil && sel.OverridePrice != nil {
		v := *sel.OverridePrice
		override = &v
	}

	band, _ := findBand(svc.RateBands, segment)
	if sel != nil && len(sel.RateOverrides) > 0 {
		shifted := make(model.RateBand, len(band)+len(sel.RateOverrides))
		for k, v := range band {
			shifted[k] = v
		}
		for k, v := range sel.RateOverrides {
			shifted[strings.ToLower(strings.TrimSpace(k))] = v
		}
		band = shifted
	}

	base, _ = resolveTier(band, tier)
	return base, override
}

// resolveSelection 选中标记与数量，优先级：本次调用 > 合并蓝图默认
// （管理员默认覆盖在蓝图合并阶段已叠加，天然高于生成时默认）
func resolveSelection(svc *model.ServiceBlueprint, sel *model.LineSelection) (selected bool, quantity float64) {
	selected = svc.DefaultSelected
	quantity = svc.DefaultQuantity
	if sel != nil {
		if sel.Selected != nil {
			selected = *sel.Selected
		}
		if sel.Quantity != nil {
			quantity = *sel.Quantity
		}
	}
	if quantity < 0 {
		quantity = 0
	}
	return selected, quantity
}

// selectionIndex 行选择按 lineId 建索引
func selectionIndex(selections []model.LineSelection) map[string]*model.LineSelection {
	index := make(map[string]*model.LineSelection, len(selections))
	for i := range selections {
		index[selections[i].LineID] = &selections[i]
	}
	return index
}

// typeLabel 展示用类型标签
func typeLabel(ct model.ChargeType) string {
	if ct == model.ChargeRecurring {
		return "Recurring"
	}
	return "One-time"
}

// buildTotals 按构造保证合计不变式
//
// grandTotalMonthOne == monthly + oneTime + (maintenance ?? 0)；
// ongoingMonthly == monthly + (maintenance ?? 0)。maintenance 仅在映射声明
// 了维护合计时出现，nil 区分“无维护概念”与“本次报价维护为 0”。
func buildTotals(monthly, oneTime float64, maintenance *float64) model.Totals {
	t := model.Totals{
		MonthlySubtotal: monthly,
		OneTimeSubtotal: oneTime,
	}
	m := 0.0
	if maintenance != nil {
		m = *maintenance
		t.MaintenanceSubtotal = maintenance
	}
	t.GrandTotalMonthOne = monthly + oneTime + m
	t.OngoingMonthly = monthly + m
	return t
}

// hasMaintenanceConcept 映射是否声明了维护合计
func hasMaintenanceConcept(mapping model.WorkbookMapping) bool {
	if strings.TrimSpace(mapping.Totals.MaintenanceSubtotal) != "" {
		return true
	}
	return strings.TrimSpace(mapping.Columns.MaintenanceTotal) != ""
}
