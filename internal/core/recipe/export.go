package recipe

import (
	"fmt"
	"strings"
)

// RenderMarkdown 產生可複製分享的 markdown 文字，相同輸入永遠得到相同輸出
func RenderMarkdown(q DishQuery, p Partition, r *Recipe) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", strings.TrimSpace(q.Name))
	if q.Servings > 0 {
		fmt.Fprintf(&b, "Servings: %d\n", q.Servings)
	}
	if r != nil && r.Mode == OutputStructured {
		if meta := metaLine(r.Meta); meta != "" {
			fmt.Fprintf(&b, "%s\n", meta)
		}
	}

	if r != nil && r.Mode == OutputStructured && !StrategyNoteIsEmpty(r.StrategyNote) {
		writeSection(&b, "Strategy")
		b.WriteString(strings.TrimSpace(r.StrategyNote))
		b.WriteString("\n")
	}

	writeSection(&b, "On hand")
	writeList(&b, p.Confirmed())

	if len(p.MissingMandatory)+len(p.MissingExtras) > 0 {
		writeSection(&b, "Missing")
		writeList(&b, append(append([]string{}, p.MissingMandatory...), p.MissingExtras...))
	}

	if r == nil {
		return b.String()
	}

	if r.Mode != OutputStructured {
		writeSection(&b, "Recipe")
		b.WriteString(strings.TrimSpace(r.Narrative))
		b.WriteString("\n")
		return b.String()
	}

	if len(r.Ingredients) > 0 {
		writeSection(&b, "Ingredients")
		writeList(&b, r.Ingredients)
	}
	if len(r.Steps) > 0 {
		writeSection(&b, "Steps")
		for i, step := range r.Steps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, step)
		}
	}
	if tip := strings.TrimSpace(r.Tip); tip != "" {
		writeSection(&b, "Tip")
		b.WriteString(tip)
		b.WriteString("\n")
	}
	return b.String()
}

func metaLine(m RecipeMeta) string {
	var parts []string
	if m.PrepTime != "" {
		parts = append(parts, "Prep: "+m.PrepTime)
	}
	if m.CookTime != "" {
		parts = append(parts, "Cook: "+m.CookTime)
	}
	if m.Difficulty != "" {
		parts = append(parts, "Difficulty: "+m.Difficulty)
	}
	return strings.Join(parts, " | ")
}

func writeSection(b *strings.Builder, title string) {
	fmt.Fprintf(b, "\n## %s\n\n", title)
}

func writeList(b *strings.Builder, items []string) {
	if len(items) == 0 {
		b.WriteString("- (none)\n")
		return
	}
	for _, item := range items {
		fmt.Fprintf(b, "- %s\n", item)
	}
}
