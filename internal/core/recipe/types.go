package recipe

import (
	"fmt"

	"chefos/internal/pkg/common"
)

// DishQuery 使用者要煮的菜與份量
type DishQuery struct {
	Name     string `json:"dish_name"`
	Servings int    `json:"servings"`
}

// Category 食材分類
type Category string

const (
	// CategoryMandatory 缺少即無法製作
	CategoryMandatory Category = "mandatory"
	// CategorySubstitutable 可替換的風味食材
	CategorySubstitutable Category = "substitutable"
	// CategoryStaple 預設家中已有的基本食材
	CategoryStaple Category = "staple"
)

// IngredientSet 食材分析結果
type IngredientSet struct {
	Mandatory     []string `json:"mandatory"`
	Substitutable []string `json:"substitutable"`
	Staple        []string `json:"staple"`
}

// Extras 可替換與基本食材（依序）
func (s *IngredientSet) Extras() []string {
	out := make([]string, 0, len(s.Substitutable)+len(s.Staple))
	out = append(out, s.Substitutable...)
	return append(out, s.Staple...)
}

// All 全部食材，依分類順序
func (s *IngredientSet) All() []string {
	out := make([]string, 0, len(s.Mandatory)+len(s.Substitutable)+len(s.Staple))
	out = append(out, s.Mandatory...)
	return append(out, s.Extras()...)
}

// OutputMode 食譜輸出模式
type OutputMode string

const (
	// OutputNarrative 自由文字
	OutputNarrative OutputMode = "narrative"
	// OutputStructured 固定結構的 JSON
	OutputStructured OutputMode = "structured"
)

// RecipeMeta 食譜基本資訊（自由文字）
type RecipeMeta struct {
	PrepTime   string `json:"prep_time"`
	CookTime   string `json:"cook_time"`
	Difficulty string `json:"difficulty"`
}

// Recipe 調整後的食譜
type Recipe struct {
	Mode         OutputMode `json:"mode"`
	Narrative    string     `json:"narrative,omitempty"`
	Meta         RecipeMeta `json:"meta"`
	StrategyNote string     `json:"strategy_note"`
	Ingredients  []string   `json:"ingredients"`
	Steps        []string   `json:"steps"`
	Tip          string     `json:"tip"`
	// Degraded 結構化解析失敗，改以原始文字呈現
	Degraded bool `json:"degraded,omitempty"`
}

// UnparsableError 模型有回覆但無法取得結構化內容，保留原始文字
type UnparsableError struct {
	Stage string
	Raw   string
	Err   error
}

func (e *UnparsableError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *UnparsableError) Unwrap() error {
	return e.Err
}

func newUnparsableError(stage, raw string, cause error) *UnparsableError {
	return &UnparsableError{
		Stage: stage,
		Raw:   raw,
		Err:   common.WrapError(common.ErrUnparsableResponse, cause),
	}
}
