// Package receipt defines the extracted receipt data shared between
// the capability layer, the pipeline, and the store.
package receipt

import (
	"encoding/json"
	"fmt"
	"time"
)

// Field names produced by the vision extraction prompt. The extraction
// targets Japanese receipts, so the model is instructed to key its
// output with the original Japanese labels.
const (
	KeyAddressee    = "宛名"
	KeyDate         = "日付"
	KeyAmount       = "金額"
	KeyTax          = "消費税"
	KeyTaxRate      = "消費税率"
	KeyVendor       = "相手先"
	KeyVendorName   = "名前"
	KeyVendorAddr   = "住所"
	KeyVendorPhone  = "電話番号"
	KeyRegistration = "登録番号"
	KeyDescription  = "摘要"
	KeyCategory     = "カテゴリ"
)

// Fields is the raw field mapping returned by vision extraction.
// Values are whatever JSON types the model produced; accessors
// normalize them to strings for persistence.
type Fields map[string]any

// String returns the named field rendered as a string. Numeric values
// are formatted without a decimal point when integral; missing or null
// fields return "".
func (f Fields) String(key string) string {
	return stringify(f[key])
}

// Vendor returns the named sub-field of the 相手先 mapping.
func (f Fields) Vendor(key string) string {
	vendor, ok := f[KeyVendor].(map[string]any)
	if !ok {
		return ""
	}
	return stringify(vendor[key])
}

// Description returns the 摘要 field serialized as JSON, since the
// model returns it as a list of line items.
func (f Fields) Description() string {
	v, ok := f[KeyDescription]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// DatePrefix derives the YYMMDD generated-id prefix from the 日付
// field (expected YYYYMMDD). Missing or malformed dates fall back to
// now.
func (f Fields) DatePrefix(now time.Time) string {
	raw := f.String(KeyDate)
	if t, err := time.Parse("20060102", raw); err == nil {
		return t.Format("060102")
	}
	return now.Format("060102")
}

// Raw returns the complete mapping serialized as JSON for the
// original_extracted_data column.
func (f Fields) Raw() string {
	if f == nil {
		return "{}"
	}
	data, err := json.Marshal(f)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Evaluation is the confidence assessment produced by the evaluation
// capability.
type Evaluation struct {
	Score    int    `json:"evaluation_score"`
	Feedback string `json:"feedback"`
}

// Valid reports whether the score is inside the contract range.
func (e Evaluation) Valid() bool {
	return e.Score >= 0 && e.Score <= 100
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	case json.Number:
		return t.String()
	default:
		return fmt.Sprintf("%v", t)
	}
}
