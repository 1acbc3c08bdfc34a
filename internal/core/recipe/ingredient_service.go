package recipe

import (
	"context"
	"fmt"

	"chefos/internal/core/ai/cache"
	"chefos/internal/core/ai/provider"
	"chefos/internal/pkg/common"

	"go.uber.org/zap"
)

// StageExtract 食材分析階段名稱
const StageExtract = "extract"

// Extractor 食材分析器：請模型列出三類食材並整理成 IngredientSet
type Extractor struct {
	cachedStore
	generator provider.Generator
	variant   PromptVariant
}

// NewExtractor 創建食材分析器
func NewExtractor(generator provider.Generator, store cache.Store, variant PromptVariant) *Extractor {
	return &Extractor{
		cachedStore: cachedStore{store: store},
		generator:   generator,
		variant:     variant,
	}
}

// Extract 分析一道菜需要的食材。
// 連線失敗回傳包裝 common.ErrConnection 的錯誤；回覆無法解析時回傳 *UnparsableError。
// 主要食材為空仍屬成功結果，由呼叫端判斷。
func (e *Extractor) Extract(ctx context.Context, q DishQuery) (*IngredientSet, error) {
	key := getCacheKey("extract:"+e.variant.Name, q.Name)
	if cached, ok := e.getFromCache(ctx, key); ok {
		var set IngredientSet
		if err := common.ParseJSON(cached, &set); err == nil {
			return &set, nil
		}
	}

	raw, err := e.generator.Generate(ctx, e.variant.ExtractionPrompt(q), provider.FormatJSON)
	if err != nil {
		return nil, fmt.Errorf("extract ingredients for %q: %w", q.Name, err)
	}

	set, stage, err := ParseIngredients(raw)
	if err != nil {
		common.LogWarn("無法解析食材分析結果",
			zap.String("dish", q.Name),
			zap.Int("raw_length", len(raw)),
		)
		return nil, newUnparsableError(StageExtract, raw, err)
	}

	common.LogDebug("食材分析完成",
		zap.String("dish", q.Name),
		zap.String("recovery", stage.String()),
		zap.Int("mandatory", len(set.Mandatory)),
		zap.Int("substitutable", len(set.Substitutable)),
		zap.Int("staple", len(set.Staple)),
	)

	if len(set.Mandatory) > 0 {
		if data, err := common.ToJSON(set); err == nil {
			e.setToCache(ctx, key, data)
		}
	}
	return set, nil
}

// ParseIngredients 從模型回覆取出 JSON 物件並對應到三個分類
func ParseIngredients(raw string) (*IngredientSet, common.RecoveryStage, error) {
	obj, stage, err := common.RecoverJSONObject(raw)
	if err != nil {
		return nil, stage, err
	}
	return MapCategories(obj), stage, nil
}

// MapCategories 依同義詞表把物件欄位對應到分類，再展平清理
func MapCategories(obj *common.OrderedObject) *IngredientSet {
	raw := map[Category][]any{}
	stapleField := map[int]bool{}

	for i, f := range obj.Fields {
		c, ok := CategoryOf(f.Key)
		if !ok {
			continue
		}
		raw[c] = append(raw[c], f.Value)
		if c == CategoryStaple {
			stapleField[i] = true
		}
	}

	// 包了一層的回覆，例如 {"dish": "...", "ingredients": {"heroes": [...]}}
	if len(raw) == 0 {
		if inner := wrappedCategories(obj); inner != nil {
			return MapCategories(inner)
		}
	}

	// 找不到主要與可替換分類時，依序採用前兩個清單欄位
	if raw[CategoryMandatory] == nil && raw[CategorySubstitutable] == nil {
		var lists []any
		for i, f := range obj.Fields {
			if _, isList := f.Value.([]any); isList && !stapleField[i] {
				lists = append(lists, f.Value)
			}
		}
		if len(lists) >= 2 {
			raw[CategoryMandatory] = lists[:1]
			raw[CategorySubstitutable] = lists[1:2]
		}
	}

	return &IngredientSet{
		Mandatory:     CleanItems(Flatten(raw[CategoryMandatory])),
		Substitutable: CleanItems(Flatten(raw[CategorySubstitutable])),
		Staple:        CleanItems(Flatten(raw[CategoryStaple])),
	}
}

// wrappedCategories 找出第一個含有分類鍵的子物件；只有單一欄位時直接採用該子物件
func wrappedCategories(obj *common.OrderedObject) *common.OrderedObject {
	for _, f := range obj.Fields {
		inner, ok := f.Value.(*common.OrderedObject)
		if !ok {
			continue
		}
		for _, g := range inner.Fields {
			if _, ok := CategoryOf(g.Key); ok {
				return inner
			}
		}
	}
	if obj.Len() == 1 {
		if inner, ok := obj.Fields[0].Value.(*common.OrderedObject); ok {
			return inner
		}
	}
	return nil
}
