package recipe

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"chefos/internal/pkg/common"
)

const minItemRunes = 3

const leadingMarkup = "-*•·#>~`_"

const trailingMarkup = "*_`~"

var leadingNumbering = regexp.MustCompile(`^\d+[.)](\s+|$)`)

// Flatten 將巢狀清單或物件展平成字串序列，null 會被略過
func Flatten(v any) []string {
	return flattenInto(nil, v)
}

func flattenInto(out []string, v any) []string {
	switch x := v.(type) {
	case nil:
		return out
	case string:
		return append(out, x)
	case json.Number:
		return append(out, x.String())
	case bool:
		return append(out, strconv.FormatBool(x))
	case []any:
		for _, item := range x {
			out = flattenInto(out, item)
		}
		return out
	case *common.OrderedObject:
		if x == nil {
			return out
		}
		for _, f := range x.Fields {
			out = flattenInto(out, f.Value)
		}
		return out
	default:
		return append(out, fmt.Sprint(x))
	}
}

// StripMarkup 去除開頭的項目符號、編號與結尾的強調符號，直到不再變化
func StripMarkup(item string) string {
	s := strings.TrimSpace(item)
	for {
		prev := s
		s = strings.TrimLeft(s, leadingMarkup)
		if loc := leadingNumbering.FindStringIndex(s); loc != nil {
			s = s[loc[1]:]
		}
		s = strings.TrimRight(s, trailingMarkup)
		s = strings.TrimSpace(s)
		if s == prev {
			return s
		}
	}
}

// CleanItems 清理食材清單：去標記、過短與佔位雜訊都會被移除。重複執行結果不變。
func CleanItems(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		s := StripMarkup(item)
		if utf8.RuneCountInString(s) < minItemRunes || IsIgnored(s) {
			continue
		}
		out = append(out, s)
	}
	return out
}

// cleanLines 去標記並丟棄空字串，不做長度與雜訊過濾（用於食譜步驟與清單）
func cleanLines(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s := StripMarkup(item); s != "" {
			out = append(out, s)
		}
	}
	return out
}
