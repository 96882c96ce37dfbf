// Package platform normalizes heterogeneous posting platforms behind one
// adapter contract so the resolver and upload engine stay platform-agnostic.
package platform

import (
	"context"
	"fmt"
	"strings"

	"github.com/Veetaha/snowpity/service/persist"
)

// ParsedQuery is a successful URL match: the request identity plus the origin
// tag (matched host) which is used for metrics and mirror display only.
type ParsedQuery struct {
	Origin string
	ID     persist.RequestID
}

// Adapter resolves one platform family. ParseQuery is pure: unrecognized
// input returns false, never an error.
type Adapter interface {
	Platforms() []persist.Platform
	ParseQuery(query string) (ParsedQuery, bool)
	GetPost(ctx context.Context, id persist.RequestID) (persist.Post, error)
}

// Registry holds adapters in registration order; the first ParseQuery match
// wins.
type Registry struct {
	adapters  []Adapter
	byPlatform map[persist.Platform]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	byPlatform := map[persist.Platform]Adapter{}
	for _, adapter := range adapters {
		for _, p := range adapter.Platforms() {
			byPlatform[p] = adapter
		}
	}
	return &Registry{adapters: adapters, byPlatform: byPlatform}
}

// ParseQuery tries each adapter in registration order against the trimmed
// input.
func (r *Registry) ParseQuery(query string) (ParsedQuery, bool) {
	query = strings.TrimSpace(query)
	for _, adapter := range r.adapters {
		if parsed, ok := adapter.ParseQuery(query); ok {
			return parsed, true
		}
	}
	return ParsedQuery{}, false
}

// GetPost dispatches to the adapter serving the request's platform.
func (r *Registry) GetPost(ctx context.Context, id persist.RequestID) (persist.Post, error) {
	adapter, ok := r.byPlatform[id.Platform]
	if !ok {
		return persist.Post{}, fmt.Errorf("platform: no adapter registered for %s", id.Platform)
	}
	return adapter.GetPost(ctx, id)
}
