package model

// WorkbookMapping 工作簿结构映射
//
// 描述客户工作簿中哪些单元格/列承载哪些业务字段。每个客户、每次上传的列布局
// 都可能不同，因此映射可以被管理员按需覆盖；未覆盖的字段使用内置默认值。
type WorkbookMapping struct {
	CalculatorSheet string `json:"calculatorSheet"`      // 计算表 sheet 名
	QuoteSheet      string `json:"quoteSheet,omitempty"` // 报价单 sheet 名（可选）

	Cells   MappingCells   `json:"cells"`   // 控制单元格
	Totals  MappingTotals  `json:"totals"`  // 合计单元格
	Rows    MappingRows    `json:"rows"`    // 明细行范围
	Columns MappingColumns `json:"columns"` // 明细列
	Quote   MappingQuote   `json:"quote"`   // 报价单字段单元格

	// RateColumns 每个客户分级对应的费率列组
	RateColumns map[string]RateColumnSet `json:"rateColumns"`
}

// MappingCells 控制单元格地址
type MappingCells struct {
	ClientSegment  string `json:"clientSegment"`            // 客户分级下拉
	PriceTier      string `json:"priceTier"`                // 价格档位下拉
	OngoingMonthly string `json:"ongoingMonthly,omitempty"` // 持续月费（可选）
}

// MappingTotals 合计单元格地址
type MappingTotals struct {
	MonthlySubtotal     string `json:"monthlySubtotal"`
	OneTimeSubtotal     string `json:"oneTimeSubtotal"`
	MaintenanceSubtotal string `json:"maintenanceSubtotal,omitempty"`
	GrandTotal          string `json:"grandTotal"`
	OngoingMonthly      string `json:"ongoingMonthly,omitempty"`
}

// MappingRows 明细行范围
type MappingRows struct {
	Start        int `json:"start"`        // 起始行（1 基）
	End          int `json:"end"`          // 结束行（含）
	MaxEmptyRows int `json:"maxEmptyRows"` // 范围内容忍的最大连续空行数
}

// MappingColumns 明细字段列字母
type MappingColumns struct {
	Select       string `json:"select"`
	Quantity     string `json:"quantity"`
	Tier         string `json:"tier"`
	ServiceName  string `json:"serviceName"`
	BillingLabel string `json:"billingLabel"`
	Type         string `json:"type"`
	UnitPrice    string `json:"unitPrice"`
	LineTotal    string `json:"lineTotal"`

	Description      string `json:"description,omitempty"`
	MaintenanceTotal string `json:"maintenanceTotal,omitempty"`
}

// MappingQuote 报价单字段单元格（可选 sheet）
type MappingQuote struct {
	ClientName  string `json:"clientName,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
	Email       string `json:"email,omitempty"`
	QuoteDate   string `json:"quoteDate,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// RateColumnSet 一个客户分级的费率列组
type RateColumnSet struct {
	Low         string `json:"low"`
	High        string `json:"high"`
	Maintenance string `json:"maintenance,omitempty"`
}

// DefaultWorkbookMapping 内置默认映射
//
// 对应模板工作簿的标准布局；真实客户工作簿通过部分覆盖调整。
func DefaultWorkbookMapping() WorkbookMapping {
	return WorkbookMapping{
		CalculatorSheet: "Calculator",
		QuoteSheet:      "Quote",
		Cells: MappingCells{
			ClientSegment:  "C2",
			PriceTier:      "C3",
			OngoingMonthly: "H4",
		},
		Totals: MappingTotals{
			MonthlySubtotal:     "H40",
			OneTimeSubtotal:     "H41",
			MaintenanceSubtotal: "H42",
			GrandTotal:          "H43",
			OngoingMonthly:      "H44",
		},
		Rows: MappingRows{
			Start:        7,
			End:          38,
			MaxEmptyRows: 3,
		},
		Columns: MappingColumns{
			Select:       "A",
			Quantity:     "B",
			Tier:         "C",
			ServiceName:  "D",
			BillingLabel: "E",
			Type:         "F",
			UnitPrice:    "G",
			LineTotal:    "H",
			Description:  "I",
		},
		Quote: MappingQuote{
			ClientName:  "B2",
			CompanyName: "B3",
			Email:       "B4",
			QuoteDate:   "F2",
			Notes:       "B6",
		},
		RateColumns: map[string]RateColumnSet{
			"Solo/Startup":   {Low: "K", High: "L", Maintenance: "M"},
			"Small Business": {Low: "N", High: "O", Maintenance: "P"},
			"Mid-Market":     {Low: "Q", High: "R", Maintenance: "S"},
		},
	}
}

// MergeWorkbookMapping 将部分覆盖深合并到默认映射上
func MergeWorkbookMapping(partial *WorkbookMapping) WorkbookMapping {
	return MergeWorkbookMappingInto(DefaultWorkbookMapping(), partial)
}

// MergeWorkbookMappingInto 将部分覆盖深合并到给定基线上
//
// 逐字段合并：空字符串/零值视为“未覆盖”，保留基线值。分级费率列组按分级名
// 逐字段合并，只覆盖 low 不会丢掉同级的 high/maintenance。校验延迟到取数阶段，
// 合并本身不报错。
func MergeWorkbookMappingInto(base WorkbookMapping, partial *WorkbookMapping) WorkbookMapping {
	merged := base
	if merged.RateColumns == nil {
		merged.RateColumns = map[string]RateColumnSet{}
	} else {
		copied := make(map[string]RateColumnSet, len(merged.RateColumns))
		for segment, set := range merged.RateColumns {
			copied[segment] = set
		}
		merged.RateColumns = copied
	}
	if partial == nil {
		return merged
	}

	mergeString(&merged.CalculatorSheet, partial.CalculatorSheet)
	mergeString(&merged.QuoteSheet, partial.QuoteSheet)

	mergeString(&merged.Cells.ClientSegment, partial.Cells.ClientSegment)
	mergeString(&merged.Cells.PriceTier, partial.Cells.PriceTier)
	mergeString(&merged.Cells.OngoingMonthly, partial.Cells.OngoingMonthly)

	mergeString(&merged.Totals.MonthlySubtotal, partial.Totals.MonthlySubtotal)
	mergeString(&merged.Totals.OneTimeSubtotal, partial.Totals.OneTimeSubtotal)
	mergeString(&merged.Totals.MaintenanceSubtotal, partial.Totals.MaintenanceSubtotal)
	mergeString(&merged.Totals.GrandTotal, partial.Totals.GrandTotal)
	mergeString(&merged.Totals.OngoingMonthly, partial.Totals.OngoingMonthly)

	mergeInt(&merged.Rows.Start, partial.Rows.Start)
	mergeInt(&merged.Rows.End, partial.Rows.End)
	mergeInt(&merged.Rows.MaxEmptyRows, partial.Rows.MaxEmptyRows)

	mergeString(&merged.Columns.Select, partial.Columns.Select)
	mergeString(&merged.Columns.Quantity, partial.Columns.Quantity)
	mergeString(&merged.Columns.Tier, partial.Columns.Tier)
	mergeString(&merged.Columns.ServiceName, partial.Columns.ServiceName)
	mergeString(&merged.Columns.BillingLabel, partial.Columns.BillingLabel)
	mergeString(&merged.Columns.Type, partial.Columns.Type)
	mergeString(&merged.Columns.UnitPrice, partial.Columns.UnitPrice)
	mergeString(&merged.Columns.LineTotal, partial.Columns.LineTotal)
	mergeString(&merged.Columns.Description, partial.Columns.Description)
	mergeString(&merged.Columns.MaintenanceTotal, partial.Columns.MaintenanceTotal)

	mergeString(&merged.Quote.ClientName, partial.Quote.ClientName)
	mergeString(&merged.Quote.CompanyName, partial.Quote.CompanyName)
	mergeString(&merged.Quote.Email, partial.Quote.Email)
	mergeString(&merged.Quote.QuoteDate, partial.Quote.QuoteDate)
	mergeString(&merged.Quote.Notes, partial.Quote.Notes)

	for segment, set := range partial.RateColumns {
		base, ok := merged.RateColumns[segment]
		if !ok {
			merged.RateColumns[segment] = set
			continue
		}
		mergeString(&base.Low, set.Low)
		mergeString(&base.High, set.High)
		mergeString(&base.Maintenance, set.Maintenance)
		merged.RateColumns[segment] = base
	}

	return merged
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeInt(dst *int, v int) {
	if v != 0 {
		*dst = v
	}
}
