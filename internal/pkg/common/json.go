package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"
)

// ErrNoJSONObject 文字中找不到可解析的 JSON 物件
var ErrNoJSONObject = errors.New("no JSON object could be recovered")

// ParseJSON 解析 JSON 字符串到結構體
func ParseJSON(data string, v interface{}) error {
	return decodeJSON(strings.NewReader(data), v)
}

func decodeJSON(r io.Reader, v interface{}) error {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	if err := dec.Decode(v); err != nil {
		return err
	}
	return ensureEOF(dec)
}

// ensureEOF 確保沒有多餘資料
func ensureEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); err != io.EOF {
		if err != nil {
			return err
		}
		return fmt.Errorf("unexpected extra JSON data")
	}
	return nil
}

var unquotedKeyPattern = regexp.MustCompile(`([{\[,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)

// QuoteJSONKeys 將未加雙引號的鍵補上雙引號
func QuoteJSONKeys(raw string) string {
	return unquotedKeyPattern.ReplaceAllString(raw, `$1"$2":`)
}

// ToJSON 將結構體轉換為 JSON 字符串
func ToJSON(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Field 物件中的一個鍵值
type Field struct {
	Key   string
	Value any
}

// OrderedObject 保留鍵順序的 JSON 物件。
// 值的型別為 string、json.Number、bool、nil、[]any 或 *OrderedObject。
type OrderedObject struct {
	Fields []Field
}

// Get 回傳第一個符合的鍵
func (o *OrderedObject) Get(key string) (any, bool) {
	if o == nil {
		return nil, false
	}
	for _, f := range o.Fields {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Len 欄位數
func (o *OrderedObject) Len() int {
	if o == nil {
		return 0
	}
	return len(o.Fields)
}

// ParseOrderedObject 嚴格解析單一 JSON 物件（不允許前後多餘內容）
func ParseOrderedObject(text string) (*OrderedObject, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	v, err := decodeOrderedValue(dec)
	if err != nil {
		return nil, err
	}
	obj, ok := v.(*OrderedObject)
	if !ok {
		return nil, fmt.Errorf("top-level JSON value is %T, not an object", v)
	}
	if err := ensureEOF(dec); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeOrderedValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	delim, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}

	switch delim {
	case '{':
		obj := &OrderedObject{}
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, ok := keyTok.(string)
			if !ok {
				return nil, fmt.Errorf("object key is %T, not a string", keyTok)
			}
			val, err := decodeOrderedValue(dec)
			if err != nil {
				return nil, err
			}
			obj.Fields = append(obj.Fields, Field{Key: key, Value: val})
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return obj, nil
	case '[':
		arr := make([]any, 0)
		for dec.More() {
			val, err := decodeOrderedValue(dec)
			if err != nil {
				return nil, err
			}
			arr = append(arr, val)
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("unexpected delimiter %q", delim)
	}
}

// RecoveryStage 表示 JSON 復原停在哪個階段
type RecoveryStage int

const (
	// StageStrictParse 全文即為合法 JSON 物件
	StageStrictParse RecoveryStage = iota
	// StageFallbackRecover 需去除 code fence 或截取 {...} 才能解析
	StageFallbackRecover
	// StageFailed 無法復原
	StageFailed
)

func (s RecoveryStage) String() string {
	switch s {
	case StageStrictParse:
		return "strict"
	case StageFallbackRecover:
		return "fallback"
	default:
		return "failed"
	}
}

// RecoverJSONObject 從模型回覆中盡力取出單一 JSON 物件
func RecoverJSONObject(raw string) (*OrderedObject, RecoveryStage, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil, StageFailed, ErrNoJSONObject
	}

	if obj, err := ParseOrderedObject(text); err == nil {
		return obj, StageStrictParse, nil
	}

	for _, candidate := range recoveryCandidates(text) {
		if obj, err := ParseOrderedObject(candidate); err == nil {
			return obj, StageFallbackRecover, nil
		}
	}

	return nil, StageFailed, ErrNoJSONObject
}

// recoveryCandidates 依優先順序列出可嘗試解析的子字串
func recoveryCandidates(text string) []string {
	var out []string
	seen := map[string]struct{}{text: {}}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" {
			return
		}
		if _, ok := seen[s]; ok {
			return
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}

	base := StripCodeFence(text)
	add(base)

	var spans []string
	if span, ok := MatchingObjectSpan(base); ok {
		spans = append(spans, span)
	}
	if start, end := strings.Index(base, "{"), strings.LastIndex(base, "}"); start != -1 && end > start {
		spans = append(spans, base[start:end+1])
	}
	for _, s := range spans {
		add(s)
	}
	for _, s := range spans {
		add(QuoteJSONKeys(s))
	}
	return out
}

var fenceTagPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_+.-]*[ \t]*(\r?\n|$)`)

var inlineJSONTagPattern = regexp.MustCompile(`^(?i)json\b`)

// StripCodeFence 去除 markdown code fence 與開頭的語言標記
func StripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") {
		return t
	}

	t = strings.TrimLeft(t, "`")
	if loc := fenceTagPattern.FindStringIndex(t); loc != nil {
		t = t[loc[1]:]
	} else if loc := inlineJSONTagPattern.FindStringIndex(t); loc != nil {
		t = t[loc[1]:]
	}

	t = strings.TrimSpace(t)
	t = strings.TrimRight(t, "`")
	return strings.TrimSpace(t)
}

// MatchingObjectSpan 回傳第一個 { 與其對應 } 之間的子字串（會略過字串內的括號）
func MatchingObjectSpan(text string) (string, bool) {
	start := strings.Index(text, "{")
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
