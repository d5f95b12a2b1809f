// Package tunnel exposes local ports to the public internet through a
// tunneling relay. The provider session (the set of open tunnels) is owned
// entirely by this package; callers tear it down wholesale via TeardownAll
// and never reach into provider internals.
package tunnel

import "fmt"

//go:generate mockgen -destination=mocks/mock_provider.go -package=mocks github.com/mattjoyce/hookgate/internal/tunnel Provider

// Provider opens public tunnels to local ports.
type Provider interface {
	// SetAuthToken configures the provider credential. Must be called
	// before any Connect.
	SetAuthToken(token string)

	// Connect opens a tunnel from the given local port and returns the
	// publicly reachable base URL. Credential rejections surface as
	// *AuthError; any other provider failure is a generic error.
	Connect(port int, protocol string) (string, error)

	// TeardownAll closes every tunnel opened through this provider
	// session. Idempotent.
	TeardownAll() error
}

// AuthError indicates the tunnel provider rejected the configured credential.
// Callers branch on it with errors.As to give an actionable message.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("tunnel provider rejected auth token: %v", e.Err)
}

func (e *AuthError) Unwrap() error {
	return e.Err
}
