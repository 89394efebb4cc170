// Package email derives presentable names from email addresses.
package email

import (
	"strings"
	"unicode"
)

// DisplayName turns the local part of addr into a name, e.g.
// "jane.doe+inbox@example.com" becomes "Jane Doe". It returns "" when the
// local part has no usable words.
func DisplayName(addr string) string {
	local, _, _ := strings.Cut(strings.TrimSpace(addr), "@")
	if plus := strings.IndexByte(local, '+'); plus >= 0 {
		local = local[:plus]
	}
	words := strings.FieldsFunc(local, func(r rune) bool {
		return r == '.' || r == '_' || r == '-'
	})
	for i, w := range words {
		words[i] = capitalize(w)
	}
	return strings.Join(words, " ")
}

func capitalize(s string) string {
	runes := []rune(strings.ToLower(s))
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
