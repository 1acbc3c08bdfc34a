package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"chefos/internal/pkg/common"
)

// Deduplicator 記錄近期 POST 請求的指紋，用來擋掉重複送出
type Deduplicator struct {
	mu       sync.Mutex
	window   time.Duration
	requests map[string]time.Time
	now      func() time.Time
}

// NewDeduplicator 創建去重器
func NewDeduplicator(window time.Duration) *Deduplicator {
	return &Deduplicator{
		window:   window,
		requests: make(map[string]time.Time),
		now:      time.Now,
	}
}

// seen 指紋在時間窗內出現過則回傳 true，否則記錄下來
func (d *Deduplicator) seen(fingerprint string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	if last, ok := d.requests[fingerprint]; ok && now.Sub(last) <= d.window {
		return true
	}
	d.requests[fingerprint] = now
	return false
}

// cleanup 移除過期指紋
func (d *Deduplicator) cleanup() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	count := 0
	for k, t := range d.requests {
		if now.Sub(t) > 10*d.window {
			delete(d.requests, k)
			count++
		}
	}
	return count
}

// Run 定期清理，直到 done 關閉
func (d *Deduplicator) Run(interval time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.cleanup()
		case <-done:
			return
		}
	}
}

// Deduplication 請求去重中間件；window 小於等於 0 時停用。
// exempt 為不去重的路由樣式（gin FullPath），例如已有其他防護、需要允許立即重試的路由。
func Deduplication(d *Deduplicator, exempt ...string) gin.HandlerFunc {
	skip := make(map[string]struct{}, len(exempt))
	for _, route := range exempt {
		skip[route] = struct{}{}
	}

	return func(c *gin.Context) {
		// 只處理 POST 請求
		if d == nil || d.window <= 0 || c.Request.Method != http.MethodPost {
			c.Next()
			return
		}
		if _, ok := skip[c.FullPath()]; ok {
			c.Next()
			return
		}

		// 計算請求體哈希
		bodyHash := ""
		if c.Request.Body != nil {
			body, err := io.ReadAll(c.Request.Body)
			if err != nil {
				common.LogError("Failed to read request body", zap.Error(err))
				c.Next()
				return
			}

			hash := sha256.Sum256(body)
			bodyHash = hex.EncodeToString(hash[:])

			// 恢復請求體
			c.Request.Body = io.NopCloser(bytes.NewBuffer(body))
		}

		// 生成請求指紋
		fingerprint := c.ClientIP() + ":" + c.Request.Method + ":" + c.Request.URL.Path
		if bodyHash != "" {
			fingerprint += ":" + bodyHash
		}

		if d.seen(fingerprint) {
			common.LogDebug("Duplicate request rejected", zap.String("path", c.Request.URL.Path))
			abortWithError(c, http.StatusTooManyRequests, common.ErrTooManyRequests)
			return
		}

		c.Next()
	}
}
