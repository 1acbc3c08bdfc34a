package recipe

import (
	"fmt"
	"strings"
)

// CategoryKeys 提示詞中三個分類使用的鍵名
type CategoryKeys struct {
	Mandatory     string
	Substitutable string
	Staple        string
}

// PromptVariant 提示詞變體：同一套流程，不同用語與輸出模式
type PromptVariant struct {
	Name         string
	Keys         CategoryKeys
	Descriptions CategoryKeys
	Mode         OutputMode
}

var variants = map[string]PromptVariant{
	"classic": {
		Name: "classic",
		Keys: CategoryKeys{Mandatory: "heroes", Substitutable: "variables", Staple: "pantry"},
		Descriptions: CategoryKeys{
			Mandatory:     "list of mandatory meats/veg",
			Substitutable: "list of swappable items like cream/ghee",
			Staple:        "list of basics like oil/salt",
		},
		Mode: OutputNarrative,
	},
	"chef": {
		Name: "chef",
		Keys: CategoryKeys{Mandatory: "must_haves", Substitutable: "soul", Staple: "foundation"},
		Descriptions: CategoryKeys{
			Mandatory:     "ingredients the dish cannot exist without",
			Substitutable: "ingredients that give the dish its character but can be swapped",
			Staple:        "everyday basics such as oil, salt, water",
		},
		Mode: OutputStructured,
	},
	"kitchen": {
		Name: "kitchen",
		Keys: CategoryKeys{Mandatory: "core", Substitutable: "character", Staple: "staple"},
		Descriptions: CategoryKeys{
			Mandatory:     "core ingredients, no substitutes possible",
			Substitutable: "flavor ingredients with reasonable substitutes",
			Staple:        "pantry staples assumed to be on hand",
		},
		Mode: OutputStructured,
	},
}

// LookupVariant 依名稱取得提示詞變體
func LookupVariant(name string) (PromptVariant, bool) {
	v, ok := variants[strings.ToLower(strings.TrimSpace(name))]
	return v, ok
}

// WithMode 覆寫輸出模式；空字串表示沿用變體預設
func (v PromptVariant) WithMode(mode OutputMode) PromptVariant {
	if mode != "" {
		v.Mode = mode
	}
	return v
}

// ExtractionPrompt 食材分析提示詞
func (v PromptVariant) ExtractionPrompt(q DishQuery) string {
	var b strings.Builder
	fmt.Fprintf(&b, "I want to cook %s for %d servings.\n", q.Name, q.Servings)
	b.WriteString("List the ingredients.\n")
	b.WriteString("Return a JSON object with 3 keys:\n")
	fmt.Fprintf(&b, "  %q (%s),\n", v.Keys.Mandatory, v.Descriptions.Mandatory)
	fmt.Fprintf(&b, "  %q (%s),\n", v.Keys.Substitutable, v.Descriptions.Substitutable)
	fmt.Fprintf(&b, "  %q (%s).\n", v.Keys.Staple, v.Descriptions.Staple)
	b.WriteString("Every value must be a flat list of ingredient names.\n")
	b.WriteString("Return ONLY JSON.")
	return b.String()
}

const structuredShape = `{"meta":{"prep_time":"...","cook_time":"...","difficulty":"..."},"strategy_note":"...","ingredients":["..."],"steps":["..."],"tip":"..."}`

// AdaptationPrompt 食譜調整提示詞
func (v PromptVariant) AdaptationPrompt(q DishQuery, confirmed, missing []string) string {
	missingStr := "none"
	if len(missing) > 0 {
		missingStr = strings.Join(missing, ", ")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The user is making %s for %d servings but is missing: %s.\n", q.Name, q.Servings, missingStr)
	fmt.Fprintf(&b, "Available ingredients: %s.\n", strings.Join(confirmed, ", "))
	b.WriteString("Rules:\n")
	b.WriteString("- Use the available ingredients exactly as listed.\n")
	b.WriteString("- Never use a missing ingredient.\n")
	b.WriteString("- For each missing ingredient, explain how the recipe compensates for it.\n")
	b.WriteString("Example: If missing Cream, suggest using Cashew paste or Milk + Butter.\n")

	if v.Mode == OutputStructured {
		b.WriteString("Return ONLY a JSON object with this shape:\n")
		b.WriteString(structuredShape)
		b.WriteString("\nSet \"strategy_note\" to an empty string when nothing is missing.")
		return b.String()
	}

	b.WriteString("Rewrite the recipe steps to compensate.\n")
	b.WriteString("Structure the output as:\n")
	b.WriteString("1. 'The Fix': Explain how we are swapping the missing item.\n")
	b.WriteString("2. 'The Recipe': The full step-by-step instructions.")
	return b.String()
}
