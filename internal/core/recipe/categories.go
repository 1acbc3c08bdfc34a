package recipe

import (
	"strings"
	"unicode"
)

// categorySynonyms 模型可能使用的分類鍵（已正規化）
var categorySynonyms = map[string]Category{
	"heroes":          CategoryMandatory,
	"hero":            CategoryMandatory,
	"must_haves":      CategoryMandatory,
	"must_have":       CategoryMandatory,
	"mandatory":       CategoryMandatory,
	"core":            CategoryMandatory,
	"essentials":      CategoryMandatory,
	"essential":       CategoryMandatory,
	"required":        CategoryMandatory,
	"non_negotiables": CategoryMandatory,

	"variables":     CategorySubstitutable,
	"variable":      CategorySubstitutable,
	"soul":          CategorySubstitutable,
	"character":     CategorySubstitutable,
	"substitutable": CategorySubstitutable,
	"swappable":     CategorySubstitutable,
	"flavor":        CategorySubstitutable,
	"flavour":       CategorySubstitutable,
	"enhancers":     CategorySubstitutable,

	"pantry":       CategoryStaple,
	"foundation":   CategoryStaple,
	"staple":       CategoryStaple,
	"staples":      CategoryStaple,
	"basics":       CategoryStaple,
	"pantry_items": CategoryStaple,
}

// ignoreSet 模型自己的佔位雜訊
var ignoreSet = map[string]struct{}{
	"none":      {},
	"null":      {},
	"n/a":       {},
	"na":        {},
	"undefined": {},
	"missing":   {},
	"optional":  {},
	"nil":       {},
	"-":         {},
	"unknown":   {},
	"tbd":       {},
}

var keyReplacer = strings.NewReplacer(" ", "_", "-", "_")

// NormalizeKey 小寫、去空白；camelCase 拆成底線，空白與連字號轉為底線
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)

	var b strings.Builder
	var prev rune
	for i, r := range key {
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(prev) || unicode.IsDigit(prev)) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
		prev = r
	}

	out := keyReplacer.Replace(b.String())
	for strings.Contains(out, "__") {
		out = strings.ReplaceAll(out, "__", "_")
	}
	return out
}

// CategoryOf 回傳鍵對應的分類
func CategoryOf(key string) (Category, bool) {
	c, ok := categorySynonyms[NormalizeKey(key)]
	return c, ok
}

// IsIgnored 是否為佔位雜訊（不分大小寫，忽略結尾的句點與驚嘆號）
func IsIgnored(item string) bool {
	text := strings.ToLower(strings.TrimSpace(item))
	if trimmed := strings.TrimRight(text, ".!"); trimmed != "" {
		text = strings.TrimSpace(trimmed)
	}
	_, ok := ignoreSet[text]
	return ok
}
