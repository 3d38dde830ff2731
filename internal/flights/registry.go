package flights

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnsupportedAirport is returned when no fetcher is registered for a
// user-supplied airport token.
var ErrUnsupportedAirport = errors.New("unsupported airport")

// Registry maps user-supplied airport tokens (city names or IATA codes,
// case-insensitive) onto fetcher instances. Multiple tokens may resolve to
// the same fetcher.
type Registry struct {
	entries map[string]Fetcher
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Fetcher)}
}

// Register binds a fetcher to one or more lookup tokens.
func (r *Registry) Register(f Fetcher, tokens ...string) {
	for _, token := range tokens {
		r.entries[normalizeToken(token)] = f
	}
}

// Lookup resolves a token to its fetcher. Unknown tokens are rejected with
// an error naming the token; there is no default airport.
func (r *Registry) Lookup(token string) (Fetcher, error) {
	f, ok := r.entries[normalizeToken(token)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedAirport, token)
	}
	return f, nil
}

// Tokens returns every registered token, sorted, for error messages and UI.
func (r *Registry) Tokens() []string {
	tokens := make([]string, 0, len(r.entries))
	for t := range r.entries {
		tokens = append(tokens, t)
	}
	sort.Strings(tokens)
	return tokens
}

func normalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}
