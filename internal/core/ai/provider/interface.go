package provider

import (
	"context"
	"time"
)

// Format 回覆格式提示
type Format int

const (
	// FormatText 自由文字（敘述式食譜）
	FormatText Format = iota
	// FormatJSON 要求模型只回覆一個 JSON 物件
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// Message 表示與 AI 模型的對話消息
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage token 使用量
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Generator 單一提示詞進、單一文字回覆出的模型介面
type Generator interface {
	// Generate 送出提示詞並回傳模型的原始文字回覆
	Generate(ctx context.Context, prompt string, format Format) (string, error)
}

// Provider 定義 AI 提供者介面
type Provider interface {
	Generator

	// GetModel 獲取當前使用的模型名稱
	GetModel() string

	// GetTimeout 獲取請求超時時間
	GetTimeout() time.Duration

	// Close 關閉提供者連接
	Close() error
}
