package service

import (
	"context"
	"errors"
	"time"

	"chefos/internal/core/ai/provider"
	"chefos/internal/infrastructure/metrics"
	"chefos/internal/pkg/common"
)

// 流程階段名稱，用於日誌與指標標籤
const (
	StageExtract = "extract"
	StageAdapt   = "adapt"
)

// Service AI 服務：在模型客戶端外加上計時、日誌與指標
type Service struct {
	generator provider.Generator
	metrics   *metrics.Metrics
}

// NewService 創建 AI 服務
func NewService(generator provider.Generator, m *metrics.Metrics) *Service {
	return &Service{
		generator: generator,
		metrics:   m,
	}
}

// Stage 回傳標記為指定階段的 Generator
func (s *Service) Stage(name string) provider.Generator {
	return &stageGenerator{service: s, stage: name}
}

type stageGenerator struct {
	service *Service
	stage   string
}

// Generate 呼叫模型並記錄耗時與結果
func (g *stageGenerator) Generate(ctx context.Context, prompt string, format provider.Format) (string, error) {
	start := time.Now()
	out, err := g.service.generator.Generate(ctx, prompt, format)
	duration := time.Since(start)

	common.LogAICall(g.stage, duration, err)
	g.service.metrics.ObserveModelCall(g.stage, outcomeOf(err), duration)

	return out, err
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, common.ErrUnparsableResponse):
		return metrics.OutcomeUnparsable
	default:
		return metrics.OutcomeError
	}
}
