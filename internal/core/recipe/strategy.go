package recipe

import "strings"

var nothingMissingMarkers = []string{
	"nothing is missing",
	"nothing missing",
	"no missing",
	"no substitution",
	"no swaps",
	"all ingredients are available",
	"no changes needed",
	"no adaptation needed",
}

// StrategyNoteIsEmpty 說明為空或只是在表示「沒有缺少任何食材」
func StrategyNoteIsEmpty(note string) bool {
	text := strings.ToLower(strings.TrimSpace(note))
	if text == "" || IsIgnored(text) {
		return true
	}
	for _, marker := range nothingMissingMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
