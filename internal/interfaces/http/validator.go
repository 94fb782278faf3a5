package http

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Input validation constants
const (
	MaxTenantIDLength   = 64
	MaxCredentialLength = 256
)

var tenantIDPattern = regexp.MustCompile(`^-?[a-zA-Z0-9_]+$`)

// ValidTenantID accepts chat ids (which are negative for groups) and simple string ids.
func ValidTenantID(s string) bool {
	if s == "" || len(s) > MaxTenantIDLength {
		return false
	}
	return tenantIDPattern.MatchString(s)
}

// SanitizeString removes null bytes and invalid UTF-8
func SanitizeString(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	if !utf8.ValidString(s) {
		v := make([]rune, 0, len(s))
		for _, r := range s {
			if r != utf8.RuneError {
				v = append(v, r)
			}
		}
		s = string(v)
	}
	return s
}

// ValidateLength checks if string is within bounds
func ValidateLength(s string, min, max int) bool {
	l := len(s)
	return l >= min && l <= max
}
