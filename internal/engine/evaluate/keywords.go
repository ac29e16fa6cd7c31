package evaluate

import "strings"

// MatchKeywords returns the configured keywords contained in the content,
// case-insensitive substring containment. Recorded per item and rolled
// into daily keyword metrics.
func MatchKeywords(content string, keywords []string) []string {
	lower := strings.ToLower(content)
	var matched []string
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(lower, strings.ToLower(kw)) {
			matched = append(matched, kw)
		}
	}
	return matched
}
