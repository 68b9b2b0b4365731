package logging

import (
	"log/slog"
	"strings"
)

// RedactedValue replaces masked values in emitted log lines.
const RedactedValue = "[REDACTED]"

// Keys the farm daemon logs routinely. They are compared lower-cased.
var farmLogKeys = map[string]struct{}{
	"service":    {},
	"env":        {},
	"message":    {},
	"severity":   {},
	"timestamp":  {},
	"component":  {},
	"error":      {},
	"op":         {},
	"module":     {},
	"method":     {},
	"requestid":  {},
	"code":       {},
	"height":     {},
	"time":       {},
	"poolid":     {},
	"type":       {},
	"events":     {},
	"subscriber": {},
	"paused":     {},
	"addr":       {},
	"database":   {},
	"automine":   {},
	"webhook":    {},
}

var credentialMarkers = []string{"token", "secret", "password", "authorization", "jwt"}

// IsAllowlisted reports whether key is one of the daemon's ordinary log keys.
func IsAllowlisted(key string) bool {
	_, ok := farmLogKeys[normalizeKey(key)]
	return ok
}

// MaskField returns a string attribute whose value is replaced by
// RedactedValue unless key is allowlisted. Empty values pass through.
func MaskField(key, value string) slog.Attr {
	if strings.TrimSpace(value) == "" || IsAllowlisted(key) {
		return slog.String(key, value)
	}
	return slog.String(key, RedactedValue)
}

// redactCredentials masks attributes whose key names a credential. Setup
// installs it on every handler it builds.
func redactCredentials(attr slog.Attr) slog.Attr {
	key := normalizeKey(attr.Key)
	if _, ok := farmLogKeys[key]; ok {
		return attr
	}
	for _, marker := range credentialMarkers {
		if strings.Contains(key, marker) {
			if attr.Value.Kind() == slog.KindString && strings.TrimSpace(attr.Value.String()) == "" {
				return attr
			}
			return slog.String(attr.Key, RedactedValue)
		}
	}
	return attr
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}
