package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ChargeType 计费时点分类，决定行金额计入哪个小计
type ChargeType string

const (
	ChargeRecurring ChargeType = "recurring" // 周期性费用 → 月度小计
	ChargeOneTime   ChargeType = "one-time"  // 一次性费用 → 一次性小计
)

// RateBand 一个客户分级的费率档：档位名 → 价格
//
// 档位名不固定为 low/high/maintenance；AI 生成路径可能发现其他命名档位。
type RateBand map[string]float64

// ServiceBlueprint 单条可售服务
type ServiceBlueprint struct {
	ID              string     `json:"id"`                  // 跨重新生成保持稳定（源行或名称派生）
	SourceRow       int        `json:"sourceRow,omitempty"` // 计算表源行（确定性策略）
	Tier            string     `json:"tier,omitempty"`      // 档位标签
	Name            string     `json:"name"`                // 服务名
	BillingCadence  string     `json:"billingCadence"`      // 计费周期标签（自由文本，如 Monthly / Project）
	ChargeType      ChargeType `json:"chargeType"`          // 权威时点分类，与标签独立
	Description     string     `json:"description,omitempty"`
	DefaultSelected bool       `json:"defaultSelected"`
	DefaultQuantity float64    `json:"defaultQuantity"`

	// RateBands 分级名 → 费率档
	RateBands map[string]RateBand `json:"rateBands"`

	Components []string `json:"components,omitempty"` // 展示用组成项
	Tags       []string `json:"tags,omitempty"`
}

// ColumnMapping 计算表模式的公式列绑定
//
// 非 nil 表示该蓝图来自带公式的计算表，解析时走表内重算；nil 表示纯价目表。
type ColumnMapping struct {
	Select       string `json:"select,omitempty"`
	Quantity     string `json:"quantity"`
	UnitPrice    string `json:"unitPrice"`
	LineTotal    string `json:"lineTotal"`
	RateOverride string `json:"rateOverride,omitempty"` // 行内费率覆盖列（可选）
}

// BlueprintMeta 蓝图元数据
type BlueprintMeta struct {
	WorkbookFilename string         `json:"workbookFilename"`
	GeneratedAt      time.Time      `json:"generatedAt"`
	Generator        string         `json:"generator"` // ai / deterministic
	Notes            string         `json:"notes,omitempty"`
	ColumnMapping    *ColumnMapping `json:"columnMapping,omitempty"`
}

// BlueprintModifier 附加输入项（折扣、加急系数等）
type BlueprintModifier struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Kind  string  `json:"kind"` // percent / flat
	Value float64 `json:"value"`
}

// Blueprint 生成器产出的标准化服务目录
type Blueprint struct {
	ID          string              `json:"id"`
	Meta        BlueprintMeta       `json:"meta"`
	Segments    []string            `json:"segments"`    // 声明的客户分级
	PricePoints []string            `json:"pricePoints"` // 声明的价格档位
	Services    []ServiceBlueprint  `json:"services"`
	Modifiers   []BlueprintModifier `json:"modifiers,omitempty"`
}

// BlueprintOverride 管理员对单条服务的补丁
//
// 只补字段，永远不整体替换服务；指针为 nil 表示“不改”。
type BlueprintOverride struct {
	ServiceID       string              `json:"serviceId"`
	Name            *string             `json:"name,omitempty"`
	Tier            *string             `json:"tier,omitempty"`
	BillingCadence  *string             `json:"billingCadence,omitempty"`
	ChargeType      *ChargeType         `json:"chargeType,omitempty"`
	Description     *string             `json:"description,omitempty"`
	DefaultSelected *bool               `json:"defaultSelected,omitempty"`
	DefaultQuantity *float64            `json:"defaultQuantity,omitempty"`
	RateBands       map[string]RateBand `json:"rateBands,omitempty"` // 按分级逐档位补丁
	Notes           string              `json:"notes,omitempty"`
	Tags            []string            `json:"tags,omitempty"`
}

// ServiceID 派生稳定服务 ID
//
// 优先用源行（同一布局重新上传时行号稳定），否则用规范化服务名。
func ServiceID(sourceRow int, name string) string {
	if sourceRow > 0 {
		return fmt.Sprintf("row-%d", sourceRow)
	}
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = regexp.MustCompile(`[^a-z0-9]+`).ReplaceAllString(slug, "-")
	return "svc-" + strings.Trim(slug, "-")
}

var recurringKeywords = regexp.MustCompile(`(?i)month|quarter|annual|retainer|ongoing|recurring`)

// DeriveChargeType 唯一的计费时点推导入口
//
// 顺序：显式值 > 周期标签关键词 > 非空标签视为一次性 > 无标签默认周期性。
// 两个生成策略和覆盖合并都只走这一个函数。
func DeriveChargeType(explicit ChargeType, billingLabel string) ChargeType {
	switch explicit {
	case ChargeRecurring, ChargeOneTime:
		return explicit
	}
	label := strings.TrimSpace(billingLabel)
	if label == "" {
		return ChargeRecurring
	}
	if recurringKeywords.MatchString(label) {
		return ChargeRecurring
	}
	return ChargeOneTime
}

// NormalizeSegmentName 展开缩写的分级标签
func NormalizeSegmentName(name string) string {
	name = strings.TrimSpace(name)
	switch strings.ToLower(name) {
	case "solo", "startup", "solo/startup", "solo / startup":
		return "Solo/Startup"
	case "small", "small business", "smb", "small biz":
		return "Small Business"
	case "mid", "mid-market", "mid market", "midmarket":
		return "Mid-Market"
	}
	return name
}

// NormalizeBillingCadence 将自由文本周期标签收敛到一个小的规范集合
func NormalizeBillingCadence(label string) string {
	l := strings.ToLower(strings.TrimSpace(label))
	switch {
	case l == "":
		return ""
	case strings.Contains(l, "month"):
		return "Monthly"
	case strings.Contains(l, "quarter"):
		return "Quarterly"
	case strings.Contains(l, "annual") || strings.Contains(l, "year"):
		return "Annual"
	case strings.Contains(l, "retainer"):
		return "Retainer"
	case strings.Contains(l, "hour"):
		return "Hourly"
	case strings.Contains(l, "project") || strings.Contains(l, "one-time") || strings.Contains(l, "one time") || strings.Contains(l, "once") || strings.Contains(l, "setup"):
		return "Project"
	}
	return strings.TrimSpace(label)
}
