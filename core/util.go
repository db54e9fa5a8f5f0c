package core

import (
	"strconv"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// SplitList splits a comma-separated string into its cleaned, non-empty items.
// "a, b,,c " -> ["a" "b" "c"]
func SplitList(s string, lower ...bool) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(s, ",") {
		if item = CleanString(item, lower...); item != "" {
			items = append(items, item)
		}
	}
	return items
}

// JoinList is the inverse of SplitList.
func JoinList(items []string) string {
	return strings.Join(items, ", ")
}

// SplitIDs parses a comma-separated list of positive integer IDs.
func SplitIDs(s string) ([]int, error) {
	items := SplitList(s)
	ids := make([]int, 0, len(items))
	for _, item := range items {
		id, err := strconv.Atoi(item)
		if err != nil || id <= 0 {
			return nil, NewFieldValidationError("ids", "invalid id "+strconv.Quote(item))
		}
		ids = append(ids, id)
	}
	return ids, nil
}
