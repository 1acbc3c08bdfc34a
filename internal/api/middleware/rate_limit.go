package middleware

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"chefos/internal/pkg/common"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter 依用戶端 IP 分開計算的令牌桶
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	limit    rate.Limit
	burst    int
	window   time.Duration
	now      func() time.Time
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter 每個 window 允許 requests 次請求
func NewRateLimiter(requests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*clientLimiter),
		limit:    rate.Every(window / time.Duration(requests)),
		burst:    requests,
		window:   window,
		now:      time.Now,
	}
}

// Allow 檢查是否允許請求
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	cl, ok := rl.limiters[key]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.limiters[key] = cl
	}
	now := rl.now()
	cl.lastSeen = now
	allowed := cl.limiter.AllowN(now, 1)
	rl.mu.Unlock()

	return allowed
}

// Len 目前追蹤的用戶端數
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// cleanup 移除閒置超過 idle 的用戶端；閒置一個 window 後令牌桶已補滿，移除不影響限流
func (rl *RateLimiter) cleanup(idle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	count := 0
	for key, cl := range rl.limiters {
		if now.Sub(cl.lastSeen) > idle {
			delete(rl.limiters, key)
			count++
		}
	}
	return count
}

// Run 定期清理閒置用戶端，直到 done 關閉
func (rl *RateLimiter) Run(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := rl.cleanup(rl.window); n > 0 {
				common.LogDebug("清除閒置限流紀錄", zap.Int("count", n))
			}
		case <-done:
			return
		}
	}
}

// RateLimit 限流中間件
func RateLimit(limiter *RateLimiter) gin.HandlerFunc {
	retryAfter := fmt.Sprintf("%d", int(limiter.window.Seconds()))

	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			common.LogInfo("Rate limit exceeded",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
			)

			c.Header("Retry-After", retryAfter)
			abortWithError(c, http.StatusTooManyRequests, common.ErrTooManyRequests)
			return
		}

		c.Next()
	}
}

// abortWithError 以統一的錯誤格式中止請求
func abortWithError(c *gin.Context, status int, ce *common.CustomError) {
	c.AbortWithStatusJSON(status, common.ErrorResponse{
		Code:    ce.Code,
		Message: ce.Message,
	})
}
