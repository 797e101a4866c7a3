package auth

import (
	"net/http"
	"strings"
)

const bearerPrefix = "Bearer "

// BearerToken returns the token of the single Authorization header in h.
// The header name is matched case-insensitively; the scheme is not.
func BearerToken(h http.Header) (string, error) {
	var values []string
	for name, v := range h {
		if strings.EqualFold(name, "Authorization") {
			values = append(values, v...)
		}
	}
	switch {
	case len(values) == 0:
		return "", unauthenticated("authorization header missing", nil)
	case len(values) > 1:
		return "", unauthenticated("multiple authorization headers", nil)
	}
	raw := values[0]
	if !strings.HasPrefix(raw, bearerPrefix) {
		return "", unauthenticated("authorization scheme is not Bearer", nil)
	}
	token := strings.TrimSpace(raw[len(bearerPrefix):])
	if token == "" {
		return "", unauthenticated("bearer token empty", nil)
	}
	if strings.ContainsAny(token, " \t") {
		return "", unauthenticated("bearer token contains whitespace", nil)
	}
	return token, nil
}
