package openrouter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"chefos/internal/core/ai/provider"
	"chefos/internal/infrastructure/config"
	"chefos/internal/pkg/common"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const maxLoggedBody = 512

// Client OpenAI 相容 chat completions 端點的客戶端（預設為 OpenRouter）
type Client struct {
	client *resty.Client
	cfg    config.ModelConfig
}

var _ provider.Provider = (*Client)(nil)

// Request 表示 API 請求
type Request struct {
	Model          string             `json:"model"`
	Messages       []provider.Message `json:"messages"`
	MaxTokens      int                `json:"max_tokens,omitempty"`
	Temperature    float64            `json:"temperature,omitempty"`
	ResponseFormat *ResponseFormat    `json:"response_format,omitempty"`
}

// ResponseFormat 要求模型輸出 JSON 物件
type ResponseFormat struct {
	Type string `json:"type"`
}

// Response OpenRouter 響應結構
type Response struct {
	ID      string         `json:"id"`
	Choices []Choice       `json:"choices"`
	Usage   provider.Usage `json:"usage"`
}

// Choice 選擇結構
type Choice struct {
	Message      provider.Message `json:"message"`
	FinishReason string           `json:"finish_reason"`
}

// Error 表示 API 錯誤
type Error struct {
	Error struct {
		Message string      `json:"message"`
		Type    string      `json:"type"`
		Code    interface{} `json:"code"`
	} `json:"error"`
}

// NewClient 創建新的客戶端
func NewClient(cfg config.ModelConfig) *Client {
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json")
	if cfg.Referer != "" {
		client.SetHeader("HTTP-Referer", cfg.Referer)
	}
	if cfg.Title != "" {
		client.SetHeader("X-Title", cfg.Title)
	}

	return &Client{
		client: client,
		cfg:    cfg,
	}
}

// Generate 生成回應
func (c *Client) Generate(ctx context.Context, prompt string, format provider.Format) (string, error) {
	req := &Request{
		Model: c.cfg.Model,
		Messages: []provider.Message{
			{Role: "user", Content: prompt},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	}
	if format == provider.FormatJSON && c.cfg.JSONMode {
		req.ResponseFormat = &ResponseFormat{Type: "json_object"}
	}

	common.LogDebug("Sending request to model provider",
		zap.String("model", req.Model),
		zap.String("format", format.String()),
		zap.Int("prompt_length", len(prompt)),
	)

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(req).
		Post("/chat/completions")
	if err != nil {
		common.LogError("Failed to send request to AI service",
			zap.Error(err),
			zap.String("model", req.Model),
		)
		return "", common.WrapError(common.ErrConnection, fmt.Errorf("send request: %w", err))
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		message := apiErrorMessage(body)
		common.LogError("AI service returned error status",
			zap.Int("status_code", resp.StatusCode()),
			zap.String("model", req.Model),
			zap.String("response", message),
		)
		return "", common.WrapError(common.ErrConnection,
			fmt.Errorf("AI service error (status %d): %s", resp.StatusCode(), message))
	}

	var response Response
	if err := json.Unmarshal(body, &response); err != nil {
		return "", common.WrapError(common.ErrUnparsableResponse,
			fmt.Errorf("decode completion envelope: %w", err))
	}

	if len(response.Choices) == 0 {
		return "", common.WrapError(common.ErrUnparsableResponse, fmt.Errorf("empty choices in response"))
	}

	content := response.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", common.WrapError(common.ErrUnparsableResponse,
			fmt.Errorf("empty content in response (finish_reason=%q)", response.Choices[0].FinishReason))
	}

	common.LogDebug("Successfully generated response from AI service",
		zap.String("model", req.Model),
		zap.Int("content_length", len(content)),
		zap.Int("total_tokens", response.Usage.TotalTokens),
	)

	return content, nil
}

// apiErrorMessage 取出錯誤訊息，避免把整個回應寫進日誌
func apiErrorMessage(body []byte) string {
	var apiErr Error
	if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
		return apiErr.Error.Message
	}
	text := strings.TrimSpace(string(body))
	if len(text) > maxLoggedBody {
		text = text[:maxLoggedBody] + "..."
	}
	return text
}

// GetModel 獲取當前使用的模型名稱
func (c *Client) GetModel() string {
	return c.cfg.Model
}

// GetTimeout 獲取請求超時時間
func (c *Client) GetTimeout() time.Duration {
	return c.cfg.Timeout
}

// Close 關閉客戶端
func (c *Client) Close() error {
	c.client.GetClient().CloseIdleConnections()
	return nil
}
