package store

import "strings"

// NameKey is the normalized lookup key for a visitor name: lowercased,
// trimmed, inner whitespace collapsed to single spaces. Applied both when
// writing a visitor record and when searching for a returning visitor.
func NameKey(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// PhoneKey keeps digits only, so "010-1111-2222" and "010 1111 2222"
// resolve to the same visitor.
func PhoneKey(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
