package pricing

import (
	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
)

// tableResolver 价目表模式
//
// 蓝图服务直接携带费率档，计算全程不碰电子表格。
type tableResolver struct {
	bp             *model.Blueprint
	hasMaintenance bool
}

func newTableResolver(merged *model.Blueprint, mapping model.WorkbookMapping) *tableResolver {
	return &tableResolver{
		bp:             merged,
		hasMaintenance: hasMaintenanceConcept(mapping),
	}
}

// Calculate 对费率档跑解析算法
func (r *tableResolver) Calculate(segment, priceTier string, selections []model.LineSelection) (*model.CalculateResult, error) {
	index := selectionIndex(selections)

	result := &model.CalculateResult{
		Lines: make([]model.LineResult, 0, len(r.bp.Services)),
	}

	var monthly, oneTime, maintenance float64
	for i := range r.bp.Services {
		svc := &r.bp.Services[i]
		sel := index[svc.ID]

		selected, quantity := resolveSelection(svc, sel)
		base, override := resolveUnitPrice(svc, segment, priceTier, sel)

		effective := base
		if override != nil {
			effective = *override
		}

		lineTotal := 0.0
		if selected {
			lineTotal = effective * quantity
		}

		line := model.LineResult{
			ID:             svc.ID,
			Name:           svc.Name,
			Tier:           svc.Tier,
			BillingLabel:   svc.BillingCadence,
			Selected:       selected,
			Quantity:       quantity,
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

		// 维护费是费率档里独立的命名价格点，仅在映射声明了维护概念时聚合
		if r.hasMaintenance && selected {
			if band, ok := findBand(svc.RateBands, segment); ok {
				if m, ok := caseGet(band, "maintenance"); ok {
					maintenance += m * quantity
				}
			}
		}
	}

	var maintenancePtr *float64
	if r.hasMaintenance {
		maintenancePtr = &maintenance
	}
	result.Totals = buildTotals(monthly, oneTime, maintenancePtr)
	return result, nil
}
