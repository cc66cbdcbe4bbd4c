// Package search routes web queries to whichever search backend the
// deployment has credentials for. Backends register with the Manager
// under a name; the configured primary answers unqualified searches.
package search

import (
	"context"
	"fmt"
	"sort"
)

// Result is one hit from a web search.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Options tune a query. Zero values mean backend defaults.
type Options struct {
	Count    int    `json:"count,omitempty"`    // max results wanted
	Language string `json:"language,omitempty"` // ISO 639-1 code
}

// Provider is one search backend.
type Provider interface {
	Name() string
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// Manager dispatches queries to registered providers.
type Manager struct {
	providers map[string]Provider
	primary   string
}

// NewManager returns a manager whose Search calls go to the provider
// registered under primary.
func NewManager(primary string) *Manager {
	return &Manager{providers: make(map[string]Provider), primary: primary}
}

// Register makes p available under its own name.
func (m *Manager) Register(p Provider) {
	m.providers[p.Name()] = p
}

func (m *Manager) provider(name string) (Provider, error) {
	p, ok := m.providers[name]
	if !ok {
		return nil, fmt.Errorf("search provider %q not configured", name)
	}
	return p, nil
}

// Search queries the primary provider.
func (m *Manager) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	return m.SearchWith(ctx, m.primary, query, opts)
}

// SearchWith queries a provider by name.
func (m *Manager) SearchWith(ctx context.Context, name, query string, opts Options) ([]Result, error) {
	p, err := m.provider(name)
	if err != nil {
		return nil, err
	}
	return p.Search(ctx, query, opts)
}

// Providers lists the registered backend names, sorted.
func (m *Manager) Providers() []string {
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Configured reports whether any backend registered.
func (m *Manager) Configured() bool {
	return len(m.providers) > 0
}
