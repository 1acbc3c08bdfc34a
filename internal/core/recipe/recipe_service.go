package recipe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"chefos/internal/core/ai/provider"
	"chefos/internal/pkg/common"

	"go.uber.org/zap"
)

// StageAdapt 食譜調整階段名稱
const StageAdapt = "adapt"

// 結構化食譜欄位的別名
var (
	metaAliases         = []string{"meta", "metadata", "info"}
	prepTimeAliases     = []string{"prep_time", "preptime", "prep"}
	cookTimeAliases     = []string{"cook_time", "cooktime", "cook"}
	difficultyAliases   = []string{"difficulty", "level"}
	strategyNoteAliases = []string{"strategy_note", "strategy", "pivot", "the_fix", "fix", "note"}
	ingredientAliases   = []string{"ingredients", "ingredient_list"}
	stepAliases         = []string{"steps", "instructions", "method", "the_recipe"}
	tipAliases          = []string{"tip", "chef_tip", "tips"}
	stepTextAliases     = []string{"instruction", "text", "description", "step", "action"}
)

// Adapter 食譜調整器：依使用者確認與缺少的食材改寫食譜
type Adapter struct {
	generator provider.Generator
	variant   PromptVariant
}

// NewAdapter 創建食譜調整器
func NewAdapter(generator provider.Generator, variant PromptVariant) *Adapter {
	return &Adapter{
		generator: generator,
		variant:   variant,
	}
}

// Mode 目前的輸出模式
func (a *Adapter) Mode() OutputMode {
	return a.variant.Mode
}

// Adapt 產生調整後的食譜。confirmedMandatory 為空時不呼叫模型直接拒絕。
func (a *Adapter) Adapt(ctx context.Context, q DishQuery, confirmedMandatory, confirmedExtras, missingExtras []string) (*Recipe, error) {
	if len(confirmedMandatory) == 0 {
		return nil, common.WrapError(common.ErrMissingMandatoryIngredient,
			errors.New("no confirmed mandatory ingredients"))
	}

	confirmed := make([]string, 0, len(confirmedMandatory)+len(confirmedExtras))
	confirmed = append(confirmed, confirmedMandatory...)
	confirmed = append(confirmed, confirmedExtras...)

	format := provider.FormatText
	if a.variant.Mode == OutputStructured {
		format = provider.FormatJSON
	}

	raw, err := a.generator.Generate(ctx, a.variant.AdaptationPrompt(q, confirmed, missingExtras), format)
	if err != nil {
		return nil, fmt.Errorf("adapt recipe for %q: %w", q.Name, err)
	}

	if a.variant.Mode != OutputStructured {
		return &Recipe{Mode: OutputNarrative, Narrative: raw}, nil
	}

	obj, stage, err := common.RecoverJSONObject(raw)
	if err != nil {
		common.LogWarn("無法解析食譜結果",
			zap.String("dish", q.Name),
			zap.Int("raw_length", len(raw)),
		)
		return nil, newUnparsableError(StageAdapt, raw, err)
	}

	recipe := DecodeRecipe(obj)
	if len(missingExtras) == 0 {
		recipe.StrategyNote = ""
	}

	common.LogDebug("食譜調整完成",
		zap.String("dish", q.Name),
		zap.String("recovery", stage.String()),
		zap.Int("steps", len(recipe.Steps)),
	)
	return recipe, nil
}

// DecodeRecipe 以別名表讀取結構化食譜，缺少的欄位留空
func DecodeRecipe(obj *common.OrderedObject) *Recipe {
	recipe := &Recipe{
		Mode:        OutputStructured,
		Ingredients: []string{},
		Steps:       []string{},
	}

	metaSource := obj
	if v, ok := lookup(obj, metaAliases); ok {
		if m, ok := v.(*common.OrderedObject); ok {
			metaSource = m
		}
	}
	recipe.Meta = RecipeMeta{
		PrepTime:   textField(metaSource, prepTimeAliases),
		CookTime:   textField(metaSource, cookTimeAliases),
		Difficulty: textField(metaSource, difficultyAliases),
	}

	recipe.StrategyNote = textField(obj, strategyNoteAliases)
	recipe.Tip = textField(obj, tipAliases)

	if v, ok := lookup(obj, ingredientAliases); ok {
		recipe.Ingredients = cleanLines(Flatten(v))
	}
	if v, ok := lookup(obj, stepAliases); ok {
		recipe.Steps = stepLines(v)
	}
	return recipe
}

// lookup 依別名順序找第一個存在的欄位（鍵先正規化）
func lookup(obj *common.OrderedObject, aliases []string) (any, bool) {
	for _, alias := range aliases {
		for _, f := range obj.Fields {
			if NormalizeKey(f.Key) == alias {
				return f.Value, true
			}
		}
	}
	return nil, false
}

// textField 讀取文字欄位；清單以空白連接
func textField(obj *common.OrderedObject, aliases []string) string {
	v, ok := lookup(obj, aliases)
	if !ok {
		return ""
	}
	return strings.TrimSpace(strings.Join(cleanLines(Flatten(v)), " "))
}

// stepLines 步驟可能是字串陣列、物件陣列或一段多行文字
func stepLines(v any) []string {
	switch x := v.(type) {
	case string:
		return cleanLines(strings.Split(x, "\n"))
	case []any:
		var lines []string
		for _, item := range x {
			if step, ok := item.(*common.OrderedObject); ok {
				if text, ok := lookup(step, stepTextAliases); ok {
					if s, ok := text.(string); ok {
						lines = append(lines, s)
						continue
					}
				}
			}
			lines = append(lines, strings.Join(Flatten(item), " "))
		}
		return cleanLines(lines)
	default:
		return cleanLines(Flatten(v))
	}
}
