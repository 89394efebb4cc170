// Package strings provides string-slice helpers shared by token handling.
package strings

import (
	"strings"

	"github.com/samber/lo"
)

// Tokens trims and lowercases each value, drops blanks and removes
// duplicates. First-seen order is kept.
//
//	Tokens([]string{" Report:Read ", "report:read", ""})
//	// []string{"report:read"}
func Tokens(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	return lo.Uniq(lo.FilterMap(values, func(v string, _ int) (string, bool) {
		v = strings.ToLower(strings.TrimSpace(v))
		return v, v != ""
	}))
}
