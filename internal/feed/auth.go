package feed

import "strings"

// TokenAuthenticator accepts payloads that carry the shared token anywhere in
// the body. This is the convention used by alerting providers that cannot set
// custom headers (TradingView-style alerts embed the token in the message
// text). An empty token rejects everything rather than accepting everything.
func TokenAuthenticator(token string) Authenticator {
	return func(body string) bool {
		if token == "" {
			return false
		}
		return strings.Contains(body, token)
	}
}

// AllowAll accepts every payload. Useful for feeds behind other protection
// and in tests.
func AllowAll() Authenticator {
	return func(string) bool { return true }
}
