package tool

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Tool results are bounded before they re-enter conversation history so
// multi-tool turns cannot grow the prompt without limit.
const (
	maxTextResult  = 5000
	textMarker     = "\n...[truncated]"
	defaultItemCap = 10
	truncatedKey   = "_truncated"
)

// Array fields that look like time series are collapsed to their last
// element; recent value is what the model needs.
var seriesFields = map[string]bool{
	"prices":        true,
	"price_history": true,
	"tvl":           true,
	"series":        true,
	"history":       true,
	"chart":         true,
}

// Per-field caps for item-record arrays; anything else uses defaultItemCap.
var itemCaps = map[string]int{
	"transactions": 10,
	"tokens":       8,
	"holdings":     8,
	"pools":        8,
}

// Truncate bounds a tool result. Idempotent: re-truncating an already
// truncated result is a no-op, since caps and the marker are stable.
func Truncate(result string) string {
	trimmed := strings.TrimSpace(result)
	if strings.HasPrefix(trimmed, "{") {
		var payload map[string]any
		if err := json.Unmarshal([]byte(trimmed), &payload); err == nil {
			if !truncateObject(payload) {
				return result
			}
			b, err := json.Marshal(payload)
			if err != nil {
				return result
			}
			return string(b)
		}
	}

	if len(result) <= maxTextResult || strings.HasSuffix(result, textMarker) {
		return result
	}
	return result[:maxTextResult] + textMarker
}

func truncateObject(payload map[string]any) bool {
	changed := false
	for key, val := range payload {
		arr, ok := val.([]any)
		if !ok {
			continue
		}
		lower := strings.ToLower(key)

		if seriesFields[lower] {
			if len(arr) > 1 {
				payload[key] = arr[len(arr)-1:]
				changed = true
			}
			continue
		}

		limit := defaultItemCap
		if c, ok := itemCaps[lower]; ok {
			limit = c
		}
		if len(arr) > limit {
			payload[key] = arr[:limit]
			payload[truncatedKey] = fmt.Sprintf("showing %d of %d %s", limit, len(arr), key)
			changed = true
		}
	}
	return changed
}
