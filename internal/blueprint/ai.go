package blueprint

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
)

const defaultAITimeout = 60 * time.Second

// AIGenerator AI 辅助生成策略
//
// 把快照交给外部结构化生成服务，携带严格的响应 schema。分级名规范化、
// chargeType 分类、逐字段防御纠偏都在本组件完成，不信任外部服务。
type AIGenerator struct {
	APIKey    string
	Model     string
	SchemaEra string        // fixed / flexible，见 schema.go
	Timeout   time.Duration // 外部调用上限；失败走确定性回退，不无限挂起
}

// NewAI 按配置装配 AI 生成策略；timeoutSeconds <= 0 取默认
func NewAI(apiKey, model, schemaEra string, timeoutSeconds int) *AIGenerator {
	g := &AIGenerator{
		APIKey:    apiKey,
		Model:     model,
		SchemaEra: schemaEra,
	}
	if timeoutSeconds > 0 {
		g.Timeout = time.Duration(timeoutSeconds) * time.Second
	}
	return g
}

// Name 策略身份
func (g *AIGenerator) Name() string { return "ai" }

// Configured 是否具备调用条件（未配置凭证时直接走确定性策略）
func (g *AIGenerator) Configured() bool {
	return g != nil && strings.TrimSpace(g.APIKey) != ""
}

// Generate 调用外部服务并解码为蓝图
func (g *AIGenerator) Generate(ctx context.Context, snap *model.WorkbookSnapshot, mapping model.WorkbookMapping) (*model.Blueprint, error) {
	if !g.Configured() {
		return nil, &model.BlueprintGenerationError{Stage: "credential", Err: fmt.Errorf("no API key configured")}
	}

	timeout := g.Timeout
	if timeout <= 0 {
		timeout = defaultAITimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  g.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &model.BlueprintGenerationError{Stage: "request", Err: err}
	}

	prompt, err := buildPrompt(snap, mapping)
	if err != nil {
		return nil, &model.BlueprintGenerationError{Stage: "request", Err: err}
	}

	era := g.SchemaEra
	if era != SchemaEraFixed {
		era = SchemaEraFlexible
	}

	resp, err := client.Models.GenerateContent(ctx, g.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   ResponseSchema(era),
		Temperature:      genai.Ptr[float32](0),
	})
	if err != nil {
		return nil, &model.BlueprintGenerationError{Stage: "request", Err: err}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		// 无输出文本是硬失败；畸形但非空的响应在解码阶段逐字段纠偏
		return nil, &model.BlueprintGenerationError{Stage: "response", Err: fmt.Errorf("empty response text")}
	}

	return decodeResponse(text, snap.Filename)
}

// buildPrompt 快照 + 映射提示拼装请求正文
func buildPrompt(snap *model.WorkbookSnapshot, mapping model.WorkbookMapping) (string, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("marshal snapshot: %w", err)
	}

	var b strings.Builder
	b.WriteString("You are reading a small-business accounting workbook that prices sellable service lines.\n")
	b.WriteString("Extract every sellable service from the calculator sheet into the response schema.\n")
	b.WriteString("Rules:\n")
	b.WriteString("- one service per line-item row; skip headers, blank rows and summary/total rows\n")
	b.WriteString("- segment names must be full labels (e.g. \"Solo/Startup\", not \"Solo\")\n")
	b.WriteString("- chargeType is recurring when the service bills on a cadence, one-time otherwise\n")
	b.WriteString("- prices are plain numbers without currency symbols\n")
	if mapping.CalculatorSheet != "" {
		fmt.Fprintf(&b, "The calculator sheet is likely named %q.\n", mapping.CalculatorSheet)
	}
	b.WriteString("\nWorkbook snapshot (bounded preview, JSON):\n")
	b.Write(payload)
	return b.String(), nil
}
