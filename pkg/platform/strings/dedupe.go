// Package strings provides small string-slice utilities.
package strings

import "strings"

// DedupeAndTrim trims whitespace from each element and drops empties and
// duplicates, preserving first-seen order. Used for normalizing
// comma-separated configuration lists like broker addresses.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; !ok {
			seen[trimmed] = struct{}{}
			result = append(result, trimmed)
		}
	}
	return result
}
