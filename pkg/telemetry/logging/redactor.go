package logging

import (
	"log/slog"
	"strings"
)

// sensitiveKeys are attribute keys whose values never reach a log sink
// in clear text. Matching is case-insensitive on substrings.
var sensitiveKeys = []string{
	"api_key",
	"apikey",
	"authorization",
	"credential",
	"password",
	"secret",
	"token_value",
	"dsn",
}

// redactAttr is a slog ReplaceAttr hook masking credential attributes.
func redactAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Value.Kind() != slog.KindString {
		return a
	}
	if isSensitiveKey(a.Key) {
		return slog.String(a.Key, RedactAPIKey(a.Value.String()))
	}
	return a
}

func isSensitiveKey(key string) bool {
	lower := strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// RedactAPIKey redacts a credential, keeping only a short prefix for
// identification.
func RedactAPIKey(apiKey string) string {
	if len(apiKey) <= 8 {
		return "***"
	}
	return apiKey[:4] + "***"
}
