package gateway

import (
	"fmt"
	"sort"
)

type Registry struct {
	gateways map[string]Gateway
}

func NewRegistry(gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Platform()] = g
	}
	return r
}

func (r *Registry) Resolve(platform string) (Gateway, error) {
	g, ok := r.gateways[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedPlatform, platform)
	}
	return g, nil
}

// AsyncPlatforms lists platforms whose gateway needs polling, sorted.
func (r *Registry) AsyncPlatforms() []string {
	var platforms []string
	for name, g := range r.gateways {
		if _, ok := AsAsync(g); ok {
			platforms = append(platforms, name)
		}
	}
	sort.Strings(platforms)
	return platforms
}
