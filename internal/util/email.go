package util

import "strings"

// NormalizeEmail lowercases and trims an email address so that lookups by
// email are consistent across endpoints.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
