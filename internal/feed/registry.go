// Package feed holds the registry of service feeds that consume webhook payloads.
package feed

import (
	"fmt"
	"sort"
)

// Handler consumes a raw webhook payload. Dispatch is fire-and-forget: the
// handler returns nothing and any failure handling is its own business.
type Handler func(body string)

// Authenticator reports whether a raw payload is authorized for its feed.
type Authenticator func(body string) bool

// DuplicateFeedError is returned when a feed name is subscribed twice.
type DuplicateFeedError struct {
	Name string
}

func (e *DuplicateFeedError) Error() string {
	return fmt.Sprintf("feed %q has already subscribed to a webhook", e.Name)
}

// Registration binds a feed name to its handler and authenticator.
type Registration struct {
	Name          string
	Handler       Handler
	Authenticator Authenticator
}

// Registry maps feed names to registrations. Populate it before the webhook
// server starts serving; the router treats it as read-only afterwards, so no
// locking happens on the dispatch path.
type Registry struct {
	feeds map[string]Registration
}

// NewRegistry creates an empty feed registry.
func NewRegistry() *Registry {
	return &Registry{feeds: make(map[string]Registration)}
}

// Subscribe registers a feed. The insert is atomic: either both callbacks are
// registered or neither is. Re-registering an existing name fails with
// *DuplicateFeedError and leaves the first registration untouched.
func (r *Registry) Subscribe(name string, handler Handler, authenticator Authenticator) error {
	if name == "" {
		return fmt.Errorf("feed name is empty")
	}
	if handler == nil {
		return fmt.Errorf("feed %q: handler is nil", name)
	}
	if authenticator == nil {
		return fmt.Errorf("feed %q: authenticator is nil", name)
	}
	if _, ok := r.feeds[name]; ok {
		return &DuplicateFeedError{Name: name}
	}

	r.feeds[name] = Registration{
		Name:          name,
		Handler:       handler,
		Authenticator: authenticator,
	}
	return nil
}

// IsSubscribed reports whether a feed name is registered.
func (r *Registry) IsSubscribed(name string) bool {
	_, ok := r.feeds[name]
	return ok
}

// Lookup returns the registration for a feed name.
func (r *Registry) Lookup(name string) (Registration, bool) {
	reg, ok := r.feeds[name]
	return reg, ok
}

// Names returns all registered feed names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.feeds))
	for name := range r.feeds {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered feeds.
func (r *Registry) Len() int {
	return len(r.feeds)
}

// SubscriptionURL returns the delivery URL for a feed under the given public
// base URL. Valid only once the webhook server is connected; with an empty
// base it returns a relative path, nothing more is enforced.
func (r *Registry) SubscriptionURL(base, name string) string {
	return base + "/" + name
}
