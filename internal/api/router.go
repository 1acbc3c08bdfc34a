package api

import (
	"context"
	"errors"
	"time"

	"chefos/internal/api/handlers/cook"
	"chefos/internal/api/handlers/health"
	"chefos/internal/api/middleware"
	"chefos/internal/core/ai/cache"
	"chefos/internal/core/session"
	"chefos/internal/infrastructure/config"
	"chefos/internal/pkg/common"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const (
	// 請求體大小預設上限 (1MB)
	defaultMaxBodySize = 1 << 20
	apiPrefix          = "/api/v1"
)

// Dependencies 路由所需的服務
type Dependencies struct {
	Config   *config.Config
	Sessions *session.Service
	Store    *session.Store
	// Cache 可為 nil（快取停用）
	Cache cache.Store
	// Gatherer 為 nil 時使用 prometheus.DefaultGatherer
	Gatherer prometheus.Gatherer
}

// SetupRouter 設置路由；ctx 結束時停止背景清理
func SetupRouter(ctx context.Context, deps Dependencies) (*gin.Engine, error) {
	cfg := deps.Config
	if cfg == nil || deps.Sessions == nil || deps.Store == nil {
		return nil, errors.New("router requires config, session service and session store")
	}

	common.LogInfo("Starting router setup",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Env),
	)

	// 設置 gin 模式
	if !cfg.App.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.NoRoute(func(c *gin.Context) {
		status, resp := common.BuildErrorResponse(common.ErrNotFound, false)
		c.JSON(status, resp)
	})
	router.NoMethod(func(c *gin.Context) {
		status, resp := common.BuildErrorResponse(common.ErrMethodNotAllowed, false)
		c.JSON(status, resp)
	})

	// 註冊基礎中間件
	router.Use(middleware.Recovery())
	router.Use(requestid.New()) // 自動生成請求 ID
	router.Use(middleware.Logger())

	// CORS 設置
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// 請求體大小限制
	maxBody := cfg.Server.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodySize
	}
	router.Use(middleware.BodySizeLimit(maxBody))

	if cfg.RateLimit.Enabled {
		limiter := middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
		go limiter.Run(time.Minute, ctx.Done())
		router.Use(middleware.RateLimit(limiter))
	}

	// 呼叫模型的路由已由會話層的進行中檢查保護，失敗後需可立即重試
	dedup := middleware.NewDeduplicator(cfg.DedupWindow)
	if cfg.DedupWindow > 0 {
		go dedup.Run(time.Minute, ctx.Done())
	}
	router.Use(middleware.Deduplication(dedup, cook.ModelRoutes(apiPrefix)...))

	// 注入配置與健康檢查需要的服務
	router.Use(func(c *gin.Context) {
		c.Set(health.ConfigKey, cfg)
		c.Set(health.SessionsKey, deps.Store)
		if deps.Cache != nil {
			c.Set(health.CacheKey, deps.Cache)
		}
		c.Next()
	})

	// 健康檢查路由
	router.GET("/health", health.HealthCheck)
	router.GET("/ready", health.ReadinessCheck)
	router.GET("/live", health.LivenessCheck)

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	// API 路由組
	api := router.Group(apiPrefix)
	cook.NewHandler(deps.Sessions, cfg.App.Debug).Register(api)

	common.LogInfo("Router setup completed successfully",
		zap.Bool("debug_mode", cfg.App.Debug),
		zap.Bool("rate_limit", cfg.RateLimit.Enabled),
		zap.Bool("cache_enabled", deps.Cache != nil),
		zap.Duration("dedup_window", cfg.DedupWindow),
		zap.Int64("max_body_size", maxBody),
	)

	return router, nil
}
