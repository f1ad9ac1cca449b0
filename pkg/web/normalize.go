package web

import "golang.org/x/text/unicode/norm"

// normalizeValue brings a submitted value to NFC so composed and
// decomposed accents compare equal. The text is otherwise kept as typed:
// the page autoescapes on render and JSON responses escape HTML.
func normalizeValue(raw string) string {
	return norm.NFC.String(raw)
}

// normalizeData applies normalizeValue to every string leaf of a decoded
// payload.
func normalizeData(value any) any {
	switch v := value.(type) {
	case string:
		return normalizeValue(v)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			out[key] = normalizeData(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = normalizeData(val)
		}
		return out
	default:
		return v
	}
}
