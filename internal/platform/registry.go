package platform

import (
	"fmt"
	"sort"
	"sync"

	"questlog/internal/domain"
)

// Registry holds the providers that came up with usable configuration.
type Registry struct {
	mu        sync.RWMutex
	providers map[domain.Platform]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[domain.Platform]Provider),
	}
}

// Register adds a provider to the registry.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Tag()] = p
}

// Get retrieves a provider by platform tag.
func (r *Registry) Get(tag domain.Platform) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[tag]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlatform, tag)
	}
	return p, nil
}

// Tags returns the tags of all registered providers.
func (r *Registry) Tags() []domain.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]domain.Platform, 0, len(r.providers))
	for tag := range r.providers {
		tags = append(tags, tag)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Info describes one registered platform.
type Info struct {
	Tag  domain.Platform `json:"tag"`
	Name string          `json:"name"`
}

// List returns display information for every registered platform.
func (r *Registry) List() []Info {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]Info, 0, len(r.providers))
	for _, p := range r.providers {
		infos = append(infos, Info{Tag: p.Tag(), Name: p.Name()})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Tag < infos[j].Tag })
	return infos
}
