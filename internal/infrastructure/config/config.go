package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"chefos/internal/pkg/common"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 應用配置
type Config struct {
	App         AppConfig       `mapstructure:"app"`
	Server      ServerConfig    `mapstructure:"server"`
	Model       ModelConfig     `mapstructure:"model"`
	Pipeline    PipelineConfig  `mapstructure:"pipeline"`
	Cache       CacheConfig     `mapstructure:"cache"`
	Session     SessionConfig   `mapstructure:"session"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	DedupWindow time.Duration   `mapstructure:"dedup_window"`
	LogLevel    string          `mapstructure:"log_level"`
	LogFile     string          `mapstructure:"log_file"`
}

// AppConfig 應用程式設定
type AppConfig struct {
	Env     string `mapstructure:"env"`
	Debug   bool   `mapstructure:"debug"`
	Version string `mapstructure:"version"`
	Name    string `mapstructure:"name"`
}

// ServerConfig 服務器配置
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	MaxBodyBytes int64         `mapstructure:"max_body_bytes"`
}

// ModelConfig 模型供應商配置（OpenAI 相容的 chat completions 端點）
type ModelConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Temperature float64       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
	JSONMode    bool          `mapstructure:"json_mode"`
	Referer     string        `mapstructure:"referer"`
	Title       string        `mapstructure:"title"`
}

// PipelineConfig 食材分析與食譜調整流程設定
type PipelineConfig struct {
	Variant         string `mapstructure:"variant"`
	OutputMode      string `mapstructure:"output_mode"`
	MinServings     int    `mapstructure:"min_servings"`
	MaxServings     int    `mapstructure:"max_servings"`
	DefaultServings int    `mapstructure:"default_servings"`
	RawFallback     bool   `mapstructure:"raw_fallback"`
}

// CacheConfig 緩存配置
type CacheConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Backend         string        `mapstructure:"backend"`
	MaxSize         int           `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	RedisAddr       string        `mapstructure:"redis_addr"`
	RedisPassword   string        `mapstructure:"redis_password"`
	RedisDB         int           `mapstructure:"redis_db"`
}

// SessionConfig 會話設定
type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitConfig 速率限制配置
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// 可用的提示詞變體與輸出模式
const (
	VariantClassic = "classic"
	VariantChef    = "chef"
	VariantKitchen = "kitchen"

	OutputModeDefault    = ""
	OutputModeNarrative  = "narrative"
	OutputModeStructured = "structured"

	CacheBackendMemory = "memory"
	CacheBackendRedis  = "redis"
)

// LoadConfig 載入設定
func LoadConfig() (*Config, error) {
	// 加載 .env 文件，不存在時忽略
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()

	// 設定預設值
	setDefaults(v)

	// 設定環境變數前綴
	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 綁定環境變量
	bindings := map[string][]string{
		"model.api_key":        {"OPENROUTER_API_KEY", "LLM_API_KEY"},
		"model.model":          {"OPENROUTER_MODEL", "LLM_MODEL"},
		"model.base_url":       {"LLM_BASE_URL"},
		"model.max_tokens":     {"MODEL_MAX_TOKENS"},
		"model.json_mode":      {"MODEL_JSON_MODE"},
		"pipeline.variant":     {"PROMPT_VARIANT"},
		"pipeline.output_mode": {"OUTPUT_MODE"},
		"cache.enabled":        {"CACHE_ENABLED"},
		"cache.backend":        {"CACHE_BACKEND"},
		"cache.redis_addr":     {"REDIS_ADDR"},
		"cache.redis_password": {"REDIS_PASSWORD"},
		"rate_limit.enabled":   {"RATE_LIMIT_ENABLED"},
		"rate_limit.requests":  {"RATE_LIMIT_REQUESTS"},
		"rate_limit.window":    {"RATE_LIMIT_WINDOW"},
		"dedup_window":         {"DEDUP_WINDOW"},
		"log_level":            {"LOG_LEVEL"},
		"log_file":             {"LOG_FILE"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	// 設定設定檔名稱和路徑
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// 讀取設定檔
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// 解析設定
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	normalize(&config)

	// 驗證必要設定
	if err := Validate(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults 設定預設值
func setDefaults(v *viper.Viper) {
	// 應用程式設定
	v.SetDefault("app.env", "development")
	v.SetDefault("app.debug", false)
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.name", "chefos")

	// 伺服器設定
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.max_body_bytes", 64<<10)

	// 模型設定
	v.SetDefault("model.base_url", "https://openrouter.ai/api/v1")
	v.SetDefault("model.model", "google/gemini-flash-1.5")
	v.SetDefault("model.max_tokens", 2048)
	v.SetDefault("model.temperature", 0.4)
	v.SetDefault("model.timeout", "60s")
	v.SetDefault("model.json_mode", true)
	v.SetDefault("model.referer", "https://chefos.local")
	v.SetDefault("model.title", "ChefOS")

	// 流程設定
	v.SetDefault("pipeline.variant", VariantClassic)
	v.SetDefault("pipeline.output_mode", OutputModeDefault)
	v.SetDefault("pipeline.min_servings", 1)
	v.SetDefault("pipeline.max_servings", 8)
	v.SetDefault("pipeline.default_servings", 2)
	v.SetDefault("pipeline.raw_fallback", true)

	// 快取設定
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.backend", CacheBackendMemory)
	v.SetDefault("cache.max_size", 500)
	v.SetDefault("cache.ttl", "24h")
	v.SetDefault("cache.cleanup_interval", "10m")
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)

	// 會話設定
	v.SetDefault("session.ttl", "2h")
	v.SetDefault("session.cleanup_interval", "5m")

	// 限流設定
	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests", 60)
	v.SetDefault("rate_limit.window", "1m")

	v.SetDefault("dedup_window", "1s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_file", "")
}

// normalize 統一大小寫與空白
func normalize(config *Config) {
	config.Model.APIKey = strings.TrimSpace(config.Model.APIKey)
	config.Model.BaseURL = strings.TrimRight(strings.TrimSpace(config.Model.BaseURL), "/")
	config.Pipeline.Variant = strings.ToLower(strings.TrimSpace(config.Pipeline.Variant))
	config.Pipeline.OutputMode = strings.ToLower(strings.TrimSpace(config.Pipeline.OutputMode))
	config.Cache.Backend = strings.ToLower(strings.TrimSpace(config.Cache.Backend))
}

// Validate 驗證設定；缺少模型憑證時直接失敗，不做任何退回
func Validate(config *Config) error {
	if config.Model.APIKey == "" {
		return common.WrapError(common.ErrMissingAPICredential,
			errors.New("set OPENROUTER_API_KEY (or LLM_API_KEY) in the environment or .env file"))
	}

	invalid := func(format string, args ...any) error {
		return common.WrapError(common.ErrInvalidConfig, fmt.Errorf(format, args...))
	}

	// 驗證伺服器設定
	if config.Server.Port <= 0 {
		return invalid("server port is required")
	}

	// 驗證模型設定
	if config.Model.BaseURL == "" {
		return invalid("model base url is required")
	}
	if config.Model.Model == "" {
		return invalid("model name is required")
	}
	if config.Model.Timeout <= 0 {
		return invalid("invalid model timeout")
	}

	// 驗證流程設定
	switch config.Pipeline.Variant {
	case VariantClassic, VariantChef, VariantKitchen:
	default:
		return invalid("unknown prompt variant %q", config.Pipeline.Variant)
	}
	switch config.Pipeline.OutputMode {
	case OutputModeDefault, OutputModeNarrative, OutputModeStructured:
	default:
		return invalid("unknown output mode %q", config.Pipeline.OutputMode)
	}
	p := config.Pipeline
	if p.MinServings < 1 || p.MaxServings < p.MinServings {
		return invalid("invalid servings range %d-%d", p.MinServings, p.MaxServings)
	}
	if p.DefaultServings < p.MinServings || p.DefaultServings > p.MaxServings {
		return invalid("default servings %d outside %d-%d", p.DefaultServings, p.MinServings, p.MaxServings)
	}

	// 驗證快取設定
	if config.Cache.Enabled {
		switch config.Cache.Backend {
		case CacheBackendMemory:
			if config.Cache.MaxSize <= 0 {
				return invalid("invalid cache max size")
			}
			if config.Cache.CleanupInterval <= 0 {
				return invalid("invalid cache cleanup interval")
			}
		case CacheBackendRedis:
			if config.Cache.RedisAddr == "" {
				return invalid("redis address is required for the redis cache backend")
			}
		default:
			return invalid("unknown cache backend %q", config.Cache.Backend)
		}
		if config.Cache.TTL <= 0 {
			return invalid("invalid cache ttl")
		}
	}

	// 驗證會話設定
	if config.Session.TTL <= 0 || config.Session.CleanupInterval <= 0 {
		return invalid("invalid session ttl or cleanup interval")
	}

	// 驗證限流設定
	if config.RateLimit.Enabled && (config.RateLimit.Requests <= 0 || config.RateLimit.Window <= 0) {
		return invalid("invalid rate limit settings")
	}

	return nil
}

// MaskedAPIKey 回傳遮罩後的憑證，供啟動日誌使用
func (c *Config) MaskedAPIKey() string {
	return common.MaskSecret(c.Model.APIKey)
}
