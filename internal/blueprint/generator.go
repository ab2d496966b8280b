package blueprint

import (
	"context"
	"log"

	"github.com/RockyWearsAHat/nat-accounting-sub000/internal/model"
)

// Generator 蓝图生成策略
//
// 两个策略（AI 辅助 / 确定性结构回退）满足同一结构契约：调用方不需要知道
// 哪个策略在跑，策略只在 Blueprint.Meta 里记录自己的身份和失败备注。
type Generator interface {
	Name() string
	Generate(ctx context.Context, snap *model.WorkbookSnapshot, mapping model.WorkbookMapping) (*model.Blueprint, error)
}

// Result 生成结果
type Result struct {
	Blueprint *model.Blueprint
	AIError   string // AI 路径失败文本；非致命，挂在工作簿记录上展示
}

// Generate 策略选择入口
//
// ai 为 nil 表示未配置凭证，直接走确定性策略。配置了 AI 时先试 AI；
// AI 任何失败（响应空/畸形、请求失败、快照不可读）都回退确定性策略并
// 保留错误文本——bootstrap 必须仍拿到可用的目录。
func Generate(ctx context.Context, ai Generator, snap *model.WorkbookSnapshot, mapping model.WorkbookMapping) (*Result, error) {
	if ai != nil {
		bp, err := ai.Generate(ctx, snap, mapping)
		if err == nil {
			return &Result{Blueprint: bp}, nil
		}
		log.Printf("AI blueprint generation failed, falling back to deterministic: %v", err)

		fallback, detErr := NewDeterministic().Generate(ctx, snap, mapping)
		if detErr != nil {
			return nil, detErr
		}
		fallback.Meta.Notes = "deterministic fallback after AI failure"
		return &Result{Blueprint: fallback, AIError: err.Error()}, nil
	}

	bp, err := NewDeterministic().Generate(ctx, snap, mapping)
	if err != nil {
		return nil, err
	}
	return &Result{Blueprint: bp}, nil
}
