package blueprint

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/snapshot"
)

// 行范围未配置时容忍的默认连续空行数
const defaultMaxEmptyRows = 3

// Deterministic 确定性结构回退策略
//
// 沿映射指定（或启发式猜测）的明细行范围逐行扫描计算表：服务名单元格非空的
// 行才产出服务；连续空行超过 maxEmptyRows 提前停扫，避免读进尾部的汇总行。
type Deterministic struct{}

// NewDeterministic 创建确定性策略
func NewDeterministic() *Deterministic {
	return &Deterministic{}
}

// Name 策略身份
func (d *Deterministic) Name() string { return "deterministic" }

// Generate 从快照生成蓝图
func (d *Deterministic) Generate(_ context.Context, snap *model.WorkbookSnapshot, mapping model.WorkbookMapping) (*model.Blueprint, error) {
	sheet := snap.Sheet(mapping.CalculatorSheet)
	if sheet == nil && len(snap.Sheets) > 0 {
		sheet = &snap.Sheets[0]
	}
	if sheet == nil {
		return nil, &model.SnapshotExtractionError{Filename: snap.Filename, Err: fmt.Errorf("snapshot has no sheets")}
	}

	cols, err := resolveColumns(mapping)
	if err != nil {
		return nil, err
	}

	start, end := mapping.Rows.Start, mapping.Rows.End
	if start > 0 && end > 0 && end < start {
		// 倒置的行范围是配置错误，不是“未配置”
		return nil, &model.MappingIncompleteError{Field: "rows.end", Row: end}
	}
	if start <= 0 || end <= 0 {
		start, end = guessRowRange(sheet, cols.serviceName)
	}
	maxEmpty := mapping.Rows.MaxEmptyRows
	if maxEmpty <= 0 {
		maxEmpty = defaultMaxEmptyRows
	}

	var services []model.ServiceBlueprint
	emptyRun := 0
	for row := start; row <= end; row++ {
		name := strings.TrimSpace(cellAt(sheet, cols.serviceName, row))
		if name == "" {
			emptyRun++
			if emptyRun > maxEmpty {
				break
			}
			continue
		}
		emptyRun = 0

		svc := model.ServiceBlueprint{
			ID:              model.ServiceID(row, name),
			SourceRow:       row,
			Name:            name,
			Tier:            strings.TrimSpace(cellAt(sheet, cols.tier, row)),
			Description:     strings.TrimSpace(cellAt(sheet, cols.description, row)),
			DefaultSelected: ParseFlag(cellAt(sheet, cols.selectFlag, row)),
			DefaultQuantity: 1,
			RateBands:       make(map[string]model.RateBand),
		}

		rawLabel := strings.TrimSpace(cellAt(sheet, cols.billingLabel, row))
		svc.BillingCadence = model.NormalizeBillingCadence(rawLabel)
		svc.ChargeType = model.DeriveChargeType(explicitChargeType(cellAt(sheet, cols.typeLabel, row)), rawLabel)

		if qty, ok := ParseAmount(cellAt(sheet, cols.quantity, row)); ok && qty > 0 {
			svc.DefaultQuantity = qty
		}

		for segment, set := range mapping.RateColumns {
			band := make(model.RateBand)
			if v, ok := ParseAmount(cellAt(sheet, set.Low, row)); ok {
				band["low"] = v
			}
			if v, ok := ParseAmount(cellAt(sheet, set.High, row)); ok {
				band["high"] = v
			}
			if set.Maintenance != "" {
				if v, ok := ParseAmount(cellAt(sheet, set.Maintenance, row)); ok {
					band["maintenance"] = v
				}
			}
			if len(band) > 0 {
				svc.RateBands[model.NormalizeSegmentName(segment)] = band
			}
		}

		services = append(services, svc)
	}

	segments := make([]string, 0, len(mapping.RateColumns))
	for segment := range mapping.RateColumns {
		segments = append(segments, model.NormalizeSegmentName(segment))
	}
	sort.Strings(segments)

	return &model.Blueprint{
		ID: uuid.New().String(),
		Meta: model.BlueprintMeta{
			WorkbookFilename: snap.Filename,
			GeneratedAt:      time.Now(),
			Generator:        d.Name(),
			// 确定性路径来自带公式的计算表：记录公式列绑定，
			// 后续计算据此选择表内重算模式
			ColumnMapping: &model.ColumnMapping{
				Select:    mapping.Columns.Select,
				Quantity:  mapping.Columns.Quantity,
				UnitPrice: mapping.Columns.UnitPrice,
				LineTotal: mapping.Columns.LineTotal,
			},
		},
		Segments:    segments,
		PricePoints: []string{"Low", "Midpoint", "High"},
		Services:    services,
	}, nil
}

// resolvedColumns 校验后的列字母
type resolvedColumns struct {
	selectFlag   string
	quantity     string
	tier         string
	serviceName  string
	billingLabel string
	typeLabel    string
	unitPrice    string
	lineTotal    string
	description  string
}

// resolveColumns 校验必需列可寻址；缺失即报 MappingIncompleteError 点名字段
func resolveColumns(mapping model.WorkbookMapping) (*resolvedColumns, error) {
	required := []struct {
		field  string
		letter string
	}{
		{"columns.select", mapping.Columns.Select},
		{"columns.quantity", mapping.Columns.Quantity},
		{"columns.serviceName", mapping.Columns.ServiceName},
		{"columns.billingLabel", mapping.Columns.BillingLabel},
		{"columns.unitPrice", mapping.Columns.UnitPrice},
		{"columns.lineTotal", mapping.Columns.LineTotal},
	}
	for _, r := range required {
		if strings.TrimSpace(r.letter) == "" {
			return nil, &model.MappingIncompleteError{Field: r.field}
		}
		if _, err := snapshot.LetterToIndex(r.letter); err != nil {
			return nil, &model.MappingIncompleteError{Field: r.field}
		}
	}
	for segment, set := range mapping.RateColumns {
		if strings.TrimSpace(set.Low) == "" {
			return nil, &model.MappingIncompleteError{Field: fmt.Sprintf("rateColumns[%s].low", segment)}
		}
		if strings.TrimSpace(set.High) == "" {
			return nil, &model.MappingIncompleteError{Field: fmt.Sprintf("rateColumns[%s].high", segment)}
		}
	}

	return &resolvedColumns{
		selectFlag:   mapping.Columns.Select,
		quantity:     mapping.Columns.Quantity,
		tier:         mapping.Columns.Tier,
		serviceName:  mapping.Columns.ServiceName,
		billingLabel: mapping.Columns.BillingLabel,
		typeLabel:    mapping.Columns.Type,
		unitPrice:    mapping.Columns.UnitPrice,
		lineTotal:    mapping.Columns.LineTotal,
		description:  mapping.Columns.Description,
	}, nil
}

// guessRowRange 行范围未配置时的启发式猜测：
// 服务名列首个非空行的下一行开扫（首个非空行按表头算），到使用区域末行为止
func guessRowRange(sheet *model.WorksheetSnapshot, serviceCol string) (start, end int) {
	first := 0
	for _, row := range sheet.Rows {
		if strings.TrimSpace(cellAt(sheet, serviceCol, row.Row)) != "" {
			first = row.Row
			break
		}
	}
	if first == 0 {
		return 1, len(sheet.Rows)
	}
	return first + 1, len(sheet.Rows)
}

// cellAt 取快照指定列字母、1 基行号的单元格显示值
func cellAt(sheet *model.WorksheetSnapshot, column string, row int) string {
	if column == "" || row < 1 || row > len(sheet.Rows) {
		return ""
	}
	idx, err := snapshot.LetterToIndex(column)
	if err != nil {
		return ""
	}
	cells := sheet.Rows[row-1].Cells
	if idx >= len(cells) {
		return ""
	}
	return cells[idx]
}

// explicitChargeType 类型列的显式时点值；不认识的写法返回空让标签关键词接手
func explicitChargeType(raw string) model.ChargeType {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "recurring":
		return model.ChargeRecurring
	case "one-time", "one time", "onetime":
		return model.ChargeOneTime
	}
	return ""
}
