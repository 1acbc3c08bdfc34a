package health

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"chefos/internal/core/ai/cache"
	"chefos/internal/infrastructure/config"
	"chefos/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// 路由注入到 gin.Context 的鍵
const (
	ConfigKey   = "config"
	SessionsKey = "sessions"
	CacheKey    = "cache"
)

// SessionCounter 回報目前的會話數
type SessionCounter interface {
	Len() int
}

// HealthResponse 健康檢查響應
type HealthResponse struct {
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Version   string                 `json:"version"`
	Model     string                 `json:"model"`
	Variant   string                 `json:"variant"`
	Runtime   map[string]interface{} `json:"runtime"`
	Sessions  int                    `json:"sessions"`
	Cache     *CacheStatus           `json:"cache,omitempty"`
}

// CacheStatus 快取狀態
type CacheStatus struct {
	Backend string       `json:"backend"`
	Stats   *cache.Stats `json:"stats,omitempty"`
}

// HealthCheck 健康檢查處理器
func HealthCheck(c *gin.Context) {
	// 獲取配置
	cfg, ok := fromContext[*config.Config](c, ConfigKey)
	if !ok {
		common.LogError("Configuration not found in context")
		status, resp := common.BuildErrorResponse(common.ErrInternalError, false)
		c.JSON(status, resp)
		return
	}

	// 獲取運行時信息
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Version:   cfg.App.Version,
		Model:     cfg.Model.Model,
		Variant:   cfg.Pipeline.Variant,
		Runtime: map[string]interface{}{
			"goroutines": runtime.NumGoroutine(),
			"memory": map[string]interface{}{
				"alloc":       m.Alloc,
				"total_alloc": m.TotalAlloc,
				"sys":         m.Sys,
				"num_gc":      m.NumGC,
			},
		},
	}

	if sessions, ok := fromContext[SessionCounter](c, SessionsKey); ok {
		response.Sessions = sessions.Len()
	}

	if cfg.Cache.Enabled {
		response.Cache = &CacheStatus{Backend: cfg.Cache.Backend}
		if mgr, ok := fromContext[*cache.CacheManager](c, CacheKey); ok {
			stats := mgr.GetStats()
			response.Cache.Stats = &stats
		}
	}

	common.LogDebug("Health check request",
		zap.String("client_ip", c.ClientIP()),
		zap.String("path", c.Request.URL.Path),
	)

	c.JSON(http.StatusOK, response)
}

// ReadinessCheck 就緒檢查處理器，快取後端無法連線時回報未就緒
func ReadinessCheck(c *gin.Context) {
	store, ok := fromContext[cache.Store](c, CacheKey)
	if !ok || store == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := store.Ping(ctx); err != nil {
		common.LogWarn("快取後端無法連線", zap.Error(err))
		status, resp := common.BuildErrorResponse(common.WrapError(common.ErrServiceUnavailable, err), true)
		c.JSON(status, resp)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

// LivenessCheck 存活檢查處理器
func LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

func fromContext[T any](c *gin.Context, key string) (T, bool) {
	var zero T
	v, exists := c.Get(key)
	if !exists {
		return zero, false
	}
	t, ok := v.(T)
	return t, ok
}
