package observability

import (
	"strings"
	"unicode"
)

const (
	maxRouteLength  = 180
	maxMethodLength = 10
	maxUserIDLength = 64
)

// sanitizeString strips control characters and truncates the value so
// client-controlled input cannot break log lines or span attributes.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = maxUserIDLength
	}
	var b strings.Builder
	b.Grow(len(value))
	count := 0
	for _, r := range value {
		if count == limit {
			break
		}
		if unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t' {
			continue
		}
		b.WriteRune(r)
		count++
	}
	return b.String()
}

// SanitizeRoute prepares a chi route pattern for logging.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return sanitizeString(route, maxRouteLength)
}

// SanitizeMethod prepares an HTTP method for logging.
func SanitizeMethod(method string) string {
	return sanitizeString(method, maxMethodLength)
}

// SanitizeUserID truncates user identifiers before they reach logs.
func SanitizeUserID(uid string) string {
	if uid == "" {
		return ""
	}
	return sanitizeString(uid, maxUserIDLength)
}
