package blueprint

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
)

// 响应 schema 的两个世代：
//   - fixed    固定 low/high/maintenance 费率档（旧）
//   - flexible 每个分级下任意命名价格点（规范形态）
//
// 两种响应最终都映射到内部统一的灵活费率档表示，fixed 只在解码边界做一次
// 单向适配，下游不感知旧形态。
const (
	SchemaEraFixed    = "fixed"
	SchemaEraFlexible = "flexible"
)

// ResponseSchema 指定世代的严格输出 schema
//
// 逐字段枚举对象形状，除 description/notes 外不允许开放自由文本。
func ResponseSchema(era string) *genai.Schema {
	serviceProps := map[string]*genai.Schema{
		"sourceRow":       {Type: genai.TypeInteger, Description: "1-based calculator sheet row the service came from, 0 if unknown"},
		"name":            {Type: genai.TypeString},
		"tier":            {Type: genai.TypeString},
		"billingCadence":  {Type: genai.TypeString, Description: "free-text cadence label, e.g. Monthly or Project"},
		"chargeType":      {Type: genai.TypeString, Enum: []string{"recurring", "one-time"}},
		"description":     {Type: genai.TypeString},
		"defaultSelected": {Type: genai.TypeBoolean},
		"defaultQuantity": {Type: genai.TypeNumber},
	}
	required := []string{"name", "billingCadence"}

	if era == SchemaEraFixed {
		serviceProps["rates"] = &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"segment":     {Type: genai.TypeString},
					"low":         {Type: genai.TypeNumber},
					"high":        {Type: genai.TypeNumber},
					"maintenance": {Type: genai.TypeNumber},
				},
				Required: []string{"segment"},
			},
		}
	} else {
		serviceProps["rateBands"] = &genai.Schema{
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"segment": {Type: genai.TypeString},
					"points": {
						Type: genai.TypeArray,
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"name":  {Type: genai.TypeString},
								"price": {Type: genai.TypeNumber},
							},
							Required: []string{"name", "price"},
						},
					},
				},
				Required: []string{"segment", "points"},
			},
		}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"segments":    {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"pricePoints": {Type: genai.TypeArray, Items: &genai.Schema{Type: genai.TypeString}},
			"services": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type:       genai.TypeObject,
					Properties: serviceProps,
					Required:   required,
				},
			},
			"notes": {Type: genai.TypeString},
		},
		Required: []string{"services"},
	}
}

// ---- 防御性解码 ----
//
// 外部响应按对抗性输入对待：数值/布尔/字符串逐字段宽松纠偏，形状不认识的
// 字段静默丢弃而不是抛错。完全空的响应在 ai.go 已拦截为硬失败。

// flexFloat 接受 number / 数字字符串 / 会计记法字符串；其余归零
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		if v, ok := ParseAmount(s); ok {
			*f = flexFloat(v)
		}
		return nil
	}
	*f = 0
	return nil
}

// flexBool 接受 bool / "true"/"yes"/"1" 类字符串；其余为 false
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	var v bool
	if err := json.Unmarshal(b, &v); err == nil {
		*f = flexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexBool(ParseFlag(s))
		return nil
	}
	*f = false
	return nil
}

// flexString 接受 string / number；其余为空
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*f = flexString(strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", n), "0"), "."))
		return nil
	}
	*f = ""
	return nil
}

type aiResponse struct {
	Segments    []flexString `json:"segments"`
	PricePoints []flexString `json:"pricePoints"`
	Services    []aiService  `json:"services"`
	Notes       flexString   `json:"notes"`
}

type aiService struct {
	SourceRow       flexFloat  `json:"sourceRow"`
	Name            flexString `json:"name"`
	Tier            flexString `json:"tier"`
	BillingCadence  flexString `json:"billingCadence"`
	ChargeType      flexString `json:"chargeType"`
	Description     flexString `json:"description"`
	DefaultSelected flexBool   `json:"defaultSelected"`
	DefaultQuantity flexFloat  `json:"defaultQuantity"`

	Rates     []aiFixedRate `json:"rates"`     // fixed 世代
	RateBands []aiRateBand  `json:"rateBands"` // flexible 世代
}

type aiFixedRate struct {
	Segment     flexString `json:"segment"`
	Low         *flexFloat `json:"low"`
	High        *flexFloat `json:"high"`
	Maintenance *flexFloat `json:"maintenance"`
}

type aiRateBand struct {
	Segment flexString    `json:"segment"`
	Points  []aiRatePoint `json:"points"`
}

type aiRatePoint struct {
	Name  flexString `json:"name"`
	Price flexFloat  `json:"price"`
}

// decodeResponse 校验后的响应 → 内部蓝图的纯全映射
func decodeResponse(text string, filename string) (*model.Blueprint, error) {
	var resp aiResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return nil, &model.BlueprintGenerationError{Stage: "response", Err: fmt.Errorf("malformed JSON: %w", err)}
	}
	if len(resp.Services) == 0 {
		return nil, &model.BlueprintGenerationError{Stage: "response", Err: fmt.Errorf("response contains no services")}
	}

	segmentSet := make(map[string]struct{})
	for _, s := range resp.Segments {
		if name := model.NormalizeSegmentName(string(s)); name != "" {
			segmentSet[name] = struct{}{}
		}
	}

	services := make([]model.ServiceBlueprint, 0, len(resp.Services))
	for _, raw := range resp.Services {
		name := strings.TrimSpace(string(raw.Name))
		if name == "" {
			continue // 形状不完整的条目静默丢弃
		}

		svc := model.ServiceBlueprint{
			SourceRow:       int(raw.SourceRow),
			Name:            name,
			Tier:            strings.TrimSpace(string(raw.Tier)),
			BillingCadence:  model.NormalizeBillingCadence(string(raw.BillingCadence)),
			Description:     strings.TrimSpace(string(raw.Description)),
			DefaultSelected: bool(raw.DefaultSelected),
			DefaultQuantity: float64(raw.DefaultQuantity),
			RateBands:       make(map[string]model.RateBand),
		}
		svc.ID = model.ServiceID(svc.SourceRow, name)
		if svc.DefaultQuantity <= 0 {
			svc.DefaultQuantity = 1
		}
		svc.ChargeType = model.DeriveChargeType(explicitChargeType(string(raw.ChargeType)), string(raw.BillingCadence))

		// fixed 世代：单向适配为命名价格点
		for _, rate := range raw.Rates {
			segment := model.NormalizeSegmentName(string(rate.Segment))
			if segment == "" {
				continue
			}
			band := make(model.RateBand)
			if rate.Low != nil {
				band["low"] = float64(*rate.Low)
			}
			if rate.High != nil {
				band["high"] = float64(*rate.High)
			}
			if rate.Maintenance != nil {
				band["maintenance"] = float64(*rate.Maintenance)
			}
			if len(band) > 0 {
				svc.RateBands[segment] = band
				segmentSet[segment] = struct{}{}
			}
		}

		// flexible 世代：已是规范形态
		for _, rb := range raw.RateBands {
			segment := model.NormalizeSegmentName(string(rb.Segment))
			if segment == "" {
				continue
			}
			band := make(model.RateBand)
			for _, p := range rb.Points {
				if key := strings.TrimSpace(string(p.Name)); key != "" {
					band[strings.ToLower(key)] = float64(p.Price)
				}
			}
			if len(band) > 0 {
				svc.RateBands[segment] = band
				segmentSet[segment] = struct{}{}
			}
		}

		services = append(services, svc)
	}

	if len(services) == 0 {
		return nil, &model.BlueprintGenerationError{Stage: "response", Err: fmt.Errorf("no usable services in response")}
	}

	segments := make([]string, 0, len(segmentSet))
	for s := range segmentSet {
		segments = append(segments, s)
	}
	sort.Strings(segments)

	pricePoints := make([]string, 0, len(resp.PricePoints))
	for _, p := range resp.PricePoints {
		if v := strings.TrimSpace(string(p)); v != "" {
			pricePoints = append(pricePoints, v)
		}
	}
	if len(pricePoints) == 0 {
		pricePoints = []string{"Low", "Midpoint", "High"}
	}

	return &model.Blueprint{
		ID: uuid.New().String(),
		Meta: model.BlueprintMeta{
			WorkbookFilename: filename,
			GeneratedAt:      time.Now(),
			Generator:        "ai",
			Notes:            strings.TrimSpace(string(resp.Notes)),
			// AI 路径产出静态价目表：不带公式列绑定，计算走费率档查找模式
			ColumnMapping: nil,
		},
		Segments:    segments,
		PricePoints: pricePoints,
		Services:    services,
	}, nil
}
