package recipe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chefos/internal/core/ai/cache"
	"chefos/internal/core/ai/provider"
	"chefos/internal/pkg/common"

	"go.uber.org/zap"
)

// Service 食譜服務：同一組提示詞變體下的食材分析器與食譜調整器
type Service struct {
	Extractor *Extractor
	Adapter   *Adapter
	Variant   PromptVariant
}

// NewService 創建新的食譜服務
func NewService(extract, adapt provider.Generator, store cache.Store, variant PromptVariant) *Service {
	return &Service{
		Extractor: NewExtractor(extract, store, variant),
		Adapter:   NewAdapter(adapt, variant),
		Variant:   variant,
	}
}

// cachedStore 快取為選用；store 為 nil 時所有操作皆為 no-op
type cachedStore struct {
	store cache.Store
}

// getCacheKey 生成緩存鍵
func getCacheKey(prefix, data string) string {
	return fmt.Sprintf("%s:%s", prefix, strings.Join(strings.Fields(strings.ToLower(data)), " "))
}

// getFromCache 從緩存獲取數據
func (c cachedStore) getFromCache(ctx context.Context, key string) (string, bool) {
	if c.store == nil {
		return "", false
	}
	val, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, common.ErrCacheMiss) {
			common.LogWarn("讀取快取失敗", zap.String("key", key), zap.Error(err))
		}
		return "", false
	}
	return val, true
}

// setToCache 將數據存入緩存，失敗只記錄不中斷流程
func (c cachedStore) setToCache(ctx context.Context, key, value string) {
	if c.store == nil {
		return
	}
	if err := c.store.Set(ctx, key, value); err != nil {
		common.LogWarn("寫入快取失敗", zap.String("key", key), zap.Error(err))
	}
}
