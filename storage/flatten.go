package storage

// Flatten projects a nested payload onto a single level of scalar values.
// Nested map keys are joined with underscores; a non-empty list contributes
// its first element; empty lists are dropped.
func Flatten(payload map[string]any) map[string]any {
	out := make(map[string]any, len(payload))
	flattenInto(out, payload, "")
	return out
}

func flattenInto(out map[string]any, v any, prefix string) {
	switch val := v.(type) {
	case map[string]any:
		for k, child := range val {
			flattenInto(out, child, prefix+k+"_")
		}
	case []any:
		if len(val) > 0 {
			out[trimKey(prefix)] = val[0]
		}
	default:
		out[trimKey(prefix)] = val
	}
}

func trimKey(prefix string) string {
	if prefix == "" {
		return ""
	}
	return prefix[:len(prefix)-1]
}

// SanitizeColumn derives a column name from a flattened key path: lowercase,
// every non-alphanumeric rune collapsed to underscore. Distinct paths can
// sanitize to the same column; the last write wins.
func SanitizeColumn(key string) string {
	b := make([]byte, 0, len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b = append(b, byte(r))
		case r >= 'A' && r <= 'Z':
			b = append(b, byte(r+('a'-'A')))
		default:
			b = append(b, '_')
		}
	}
	if len(b) == 0 {
		return "unknown_field"
	}
	return string(b)
}
