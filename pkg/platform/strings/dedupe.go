// Package strings provides slice helpers for identifier lists.
package strings

import (
	"strings"
)

// DedupeFunc keeps the first item for every distinct key, preserving order.
// When merge is non-nil it is called with the kept item and each later
// duplicate, and its result replaces the kept item in place.
//
// Example:
//
//	DedupeFunc(reqs, func(r Req) string { return r.ID }, nil)
func DedupeFunc[T any](items []T, key func(T) string, merge func(kept, dup T) T) []T {
	if len(items) == 0 {
		return items
	}

	index := make(map[string]int, len(items))
	result := make([]T, 0, len(items))

	for _, item := range items {
		k := key(item)
		if pos, ok := index[k]; ok {
			if merge != nil {
				result[pos] = merge(result[pos], item)
			}
			continue
		}
		index[k] = len(result)
		result = append(result, item)
	}

	return result
}

// DedupeAndTrim trims every identifier, drops blanks and keeps the first of
// each distinct value. Case is preserved; remote ids are case sensitive.
//
//	DedupeAndTrim([]string{" r-1 ", "r-2", "r-1", ""}) // [r-1 r-2]
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	trimmed := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			trimmed = append(trimmed, v)
		}
	}
	return DedupeFunc(trimmed, func(s string) string { return s }, nil)
}
