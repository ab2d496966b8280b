package blueprint

import (
	"strings"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
)

// 覆盖层：管理员补丁叠加在生成结果之上，绝不破坏原始提取。
// MergedBlueprint 是派生物，永远从 (Blueprint, Overrides) 重算，不单独持久化。

// Sanitize 入库前清洗覆盖集
//
// 去字符串首尾空白、丢掉空的可选字段、丢掉空费率档；没有 serviceId 的
// 覆盖整条丢弃。清洗后为空时返回 nil。
func Sanitize(overrides []model.BlueprintOverride) []model.BlueprintOverride {
	var out []model.BlueprintOverride
	for _, o := range overrides {
		o.ServiceID = strings.TrimSpace(o.ServiceID)
		if o.ServiceID == "" {
			continue
		}

		o.Name = trimmedOrNil(o.Name)
		o.Tier = trimmedOrNil(o.Tier)
		o.BillingCadence = trimmedOrNil(o.BillingCadence)
		o.Description = trimmedOrNil(o.Description)
		o.Notes = strings.TrimSpace(o.Notes)

		if o.ChargeType != nil {
			switch *o.ChargeType {
			case model.ChargeRecurring, model.ChargeOneTime:
			default:
				o.ChargeType = nil
			}
		}
		if o.DefaultQuantity != nil && *o.DefaultQuantity < 0 {
			o.DefaultQuantity = nil
		}

		if len(o.RateBands) > 0 {
			bands := make(map[string]model.RateBand)
			for segment, band := range o.RateBands {
				segment = strings.TrimSpace(segment)
				if segment == "" || len(band) == 0 {
					continue
				}
				clean := make(model.RateBand)
				for point, price := range band {
					if point = strings.ToLower(strings.TrimSpace(point)); point != "" {
						clean[point] = price
					}
				}
				if len(clean) > 0 {
					bands[segment] = clean
				}
			}
			if len(bands) == 0 {
				bands = nil
			}
			o.RateBands = bands
		}

		var tags []string
		for _, tag := range o.Tags {
			if tag = strings.TrimSpace(tag); tag != "" {
				tags = append(tags, tag)
			}
		}
		o.Tags = tags

		out = append(out, o)
	}
	return out
}

// Merge 覆盖集叠加到蓝图上，产出合并蓝图
//
// 输入蓝图不被修改（引用安全的克隆）。只应用覆盖上出现的字段；费率档按
// 分级逐档位合并——只补 low 不会抹掉该分级的 high。覆盖集中没有匹配项的
// 服务原样通过。
func Merge(bp *model.Blueprint, overrides []model.BlueprintOverride) *model.Blueprint {
	merged := cloneBlueprint(bp)
	if len(overrides) == 0 {
		return merged
	}

	index := make(map[string]*model.BlueprintOverride, len(overrides))
	for i := range overrides {
		index[overrides[i].ServiceID] = &overrides[i]
	}

	for i := range merged.Services {
		svc := &merged.Services[i]
		o, ok := index[svc.ID]
		if !ok {
			continue
		}

		if o.Name != nil {
			svc.Name = *o.Name
		}
		if o.Tier != nil {
			svc.Tier = *o.Tier
		}
		if o.BillingCadence != nil {
			svc.BillingCadence = model.NormalizeBillingCadence(*o.BillingCadence)
			svc.ChargeType = model.DeriveChargeType("", *o.BillingCadence)
		}
		if o.ChargeType != nil {
			svc.ChargeType = model.DeriveChargeType(*o.ChargeType, svc.BillingCadence)
		}
		if o.Description != nil {
			svc.Description = *o.Description
		}
		if o.DefaultSelected != nil {
			svc.DefaultSelected = *o.DefaultSelected
		}
		if o.DefaultQuantity != nil {
			svc.DefaultQuantity = *o.DefaultQuantity
		}
		if len(o.Tags) > 0 {
			svc.Tags = append([]string(nil), o.Tags...)
		}

		for segment, patch := range o.RateBands {
			if svc.RateBands == nil {
				svc.RateBands = make(map[string]model.RateBand)
			}
			band, ok := svc.RateBands[segment]
			if !ok {
				band = make(model.RateBand)
			} else {
				band = cloneBand(band)
			}
			for point, price := range patch {
				band[point] = price
			}
			svc.RateBands[segment] = band
		}
	}

	return merged
}

// Diff 对比基线与草稿，产出最小覆盖补丁
//
// 编辑界面存盘前调用，避免持久化无操作覆盖：所有字段加分级费率档都相等时
// 返回 nil。
func Diff(serviceID string, base, draft model.ServiceBlueprint) *model.BlueprintOverride {
	o := model.BlueprintOverride{ServiceID: serviceID}
	changed := false

	if draft.Name != base.Name {
		o.Name = ptr(draft.Name)
		changed = true
	}
	if draft.Tier != base.Tier {
		o.Tier = ptr(draft.Tier)
		changed = true
	}
	if draft.BillingCadence != base.BillingCadence {
		o.BillingCadence = ptr(draft.BillingCadence)
		changed = true
	}
	if draft.ChargeType != base.ChargeType {
		ct := draft.ChargeType
		o.ChargeType = &ct
		changed = true
	}
	if draft.Description != base.Description {
		o.Description = ptr(draft.Description)
		changed = true
	}
	if draft.DefaultSelected != base.DefaultSelected {
		v := draft.DefaultSelected
		o.DefaultSelected = &v
		changed = true
	}
	if draft.DefaultQuantity != base.DefaultQuantity {
		v := draft.DefaultQuantity
		o.DefaultQuantity = &v
		changed = true
	}

	for segment, draftBand := range draft.RateBands {
		if !bandsEqual(base.RateBands[segment], draftBand) {
			if o.RateBands == nil {
				o.RateBands = make(map[string]model.RateBand)
			}
			o.RateBands[segment] = cloneBand(draftBand)
			changed = true
		}
	}
	for segment := range base.RateBands {
		if _, ok := draft.RateBands[segment]; !ok {
			// 草稿整段删除分级：显式置空档位无法用补丁表达，按清空档记录
			if o.RateBands == nil {
				o.RateBands = make(map[string]model.RateBand)
			}
			o.RateBands[segment] = model.RateBand{}
			changed = true
		}
	}

	if !changed {
		return nil
	}
	return &o
}

func bandsEqual(a, b model.RateBand) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func cloneBlueprint(bp *model.Blueprint) *model.Blueprint {
	out := *bp
	out.Segments = append([]string(nil), bp.Segments...)
	out.PricePoints = append([]string(nil), bp.PricePoints...)
	out.Modifiers = append([]model.BlueprintModifier(nil), bp.Modifiers...)
	out.Services = make([]model.ServiceBlueprint, len(bp.Services))
	for i := range bp.Services {
		out.Services[i] = cloneService(bp.Services[i])
	}
	return &out
}

func cloneService(svc model.ServiceBlueprint) model.ServiceBlueprint {
	out := svc
	out.Components = append([]string(nil), svc.Components...)
	out.Tags = append([]string(nil), svc.Tags...)
	if svc.RateBands != nil {
		out.RateBands = make(map[string]model.RateBand, len(svc.RateBands))
		for segment, band := range svc.RateBands {
			out.RateBands[segment] = cloneBand(band)
		}
	}
	return out
}

func cloneBand(band model.RateBand) model.RateBand {
	out := make(model.RateBand, len(band))
	for k, v := range band {
		out[k] = v
	}
	return out
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func ptr(s string) *string { return &s }
