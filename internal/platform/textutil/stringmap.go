package textutil

import "strings"

// NormalizeStringMap trims keys and values and drops entries whose trimmed
// key is empty. A map that normalizes to nothing is returned as nil.
func NormalizeStringMap(values map[string]string) map[string]string {
	var result map[string]string
	for key, value := range values {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if result == nil {
			result = make(map[string]string, len(values))
		}
		result[key] = strings.TrimSpace(value)
	}
	return result
}
