package utils

import "strings"

// NormalizeKeywords lowercases, trims, and de-duplicates a keyword list.
func NormalizeKeywords(keywords []string) []string {
	seen := make(map[string]struct{}, len(keywords))
	normalized := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		normalized = append(normalized, kw)
	}
	return normalized
}

// ContainsAnyKeyword reports whether text contains any of the keywords,
// case-insensitively. Keywords are matched as substrings.
func ContainsAnyKeyword(text string, keywords []string) bool {
	if text == "" || len(keywords) == 0 {
		return false
	}
	lowered := strings.ToLower(text)
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(lowered, kw) {
			return true
		}
	}
	return false
}
