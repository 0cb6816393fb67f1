// Package strings holds list helpers for configuration values.
package strings

import (
	"strings"
)

// DedupeAndTrim trims each value and drops empty and repeated ones, keeping
// first-seen order. Comparison is case-sensitive.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// SplitList parses a comma separated list such as KAFKA_BROKERS. A blank
// input yields nil.
func SplitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return DedupeAndTrim(strings.Split(s, ","))
}
