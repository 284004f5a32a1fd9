package utils

import "strings"

// UniqueFold trims, lowercases and de-duplicates names, dropping empty ones.
// Order of first appearance is preserved.
func UniqueFold(names []string) []string {
	seen := make(map[string]bool, len(names))
	list := []string{}
	for _, entry := range names {
		n := strings.ToLower(strings.TrimSpace(entry))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		list = append(list, n)
	}
	return list
}
