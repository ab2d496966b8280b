package model

import "time"

// LineSelection 调用方对单行的选择/覆盖
type LineSelection struct {
	LineID        string   `json:"lineId"`
	Selected      *bool    `json:"selected,omitempty"`
	Quantity      *float64 `json:"quantity,omitempty"`
	RateOverrides RateBand `json:"rateOverrides,omitempty"` // 合并到蓝图费率档之上
	OverridePrice *float64 `json:"overridePrice,omitempty"` // 硬性单价覆盖，绕过费率档
}

// LineResult 解析后的单行结果
type LineResult struct {
	ID             string     `json:"id"`
	Name           string     `json:"name"`
	Tier           string     `json:"tier,omitempty"`
	BillingLabel   string     `json:"billingLabel"`
	Selected       bool       `json:"selected"`
	Quantity       float64    `json:"quantity"`
	BasePrice      float64    `json:"basePrice"`
	OverridePrice  *float64   `json:"overridePrice,omitempty"`
	EffectivePrice float64    `json:"effectivePrice"` // 覆盖价优先，否则基础价
	LineTotal      float64    `json:"lineTotal"`      // 未选中为 0
	ChargeType     ChargeType `json:"chargeType"`
	TypeLabel      string     `json:"typeLabel"` // 展示用类型标签
}

// Totals 报价合计
//
// 不变式：GrandTotalMonthOne == Monthly + OneTime + Maintenance（缺省按 0）。
// MaintenanceSubtotal 仅在映射声明了维护合计时出现，nil 区分“无维护概念”
// 与“本次报价维护为 0”。
type Totals struct {
	MonthlySubtotal     float64  `json:"monthlySubtotal"`
	OneTimeSubtotal     float64  `json:"oneTimeSubtotal"`
	MaintenanceSubtotal *float64 `json:"maintenanceSubtotal,omitempty"`
	GrandTotalMonthOne  float64  `json:"grandTotalMonthOne"`
	OngoingMonthly      float64  `json:"ongoingMonthly"`
}

// QuoteDetails 报价单抬头字段（导出用）
type QuoteDetails struct {
	ClientName  string `json:"clientName,omitempty"`
	CompanyName string `json:"companyName,omitempty"`
	Email       string `json:"email,omitempty"`
	QuoteDate   string `json:"quoteDate,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// CalculateRequest 报价计算请求
type CalculateRequest struct {
	Segment      string          `json:"segment"`
	PriceTier    string          `json:"priceTier"`
	QuoteDetails *QuoteDetails   `json:"quoteDetails,omitempty"`
	Selections   []LineSelection `json:"selections"`
}

// CalculateResult 报价计算结果
type CalculateResult struct {
	Lines  []LineResult `json:"lines"`
	Totals Totals       `json:"totals"`
}

// Settings 持久化的管理员默认值
type Settings struct {
	DefaultSegment   string              `json:"defaultSegment"`
	DefaultPriceTier string              `json:"defaultPriceTier"`
	LineOverrides    []BlueprintOverride `json:"lineOverrides"`
	ExportRecipients []string            `json:"exportRecipients"`
	WorkbookMapping  *WorkbookMapping    `json:"workbookMapping,omitempty"`
}

// WorkbookInfo 存储的工作簿记录元信息
type WorkbookInfo struct {
	ID             string    `json:"id"`
	Filename       string    `json:"filename"`
	MimeType       string    `json:"mimeType"`
	UploadedAt     time.Time `json:"uploadedAt"`
	BlueprintError string    `json:"blueprintError,omitempty"` // AI 失败记录，非致命
}

// Bootstrap 启动态汇总
type Bootstrap struct {
	Metadata      *Blueprint      `json:"metadata"`
	Settings      *Settings       `json:"settings"`
	Defaults      *Defaults       `json:"defaults"`
	WorkbookInfo  *WorkbookInfo   `json:"workbookInfo"`
	Mapping       WorkbookMapping `json:"mapping"`
	SetupRequired bool            `json:"setupRequired"`
	Message       string          `json:"message,omitempty"`
}

// Defaults bootstrap 返回的默认选择
type Defaults struct {
	Segment   string `json:"segment"`
	PriceTier string `json:"priceTier"`
}
