package registry

import (
	"sync"

	"github.com/hexforge/hexforge/internal/core/bridge"
)

// Registry tracks which display surfaces are attached to which document.
// It is a multimap: nothing restricts a document to a single surface, and
// a surface stays registered from attach until it is removed on close.
type Registry struct {
	mu       sync.RWMutex
	surfaces map[string][]bridge.Surface
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{surfaces: make(map[string][]bridge.Surface)}
}

// Add attaches surface under the document uri.
func (r *Registry) Add(uri string, surface bridge.Surface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.surfaces[uri] = append(r.surfaces[uri], surface)
}

// Remove detaches the surface with the given id from uri. Unknown ids are
// ignored.
func (r *Registry) Remove(uri, surfaceID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	attached := r.surfaces[uri]
	for i, s := range attached {
		if s.ID() == surfaceID {
			r.surfaces[uri] = append(attached[:i:i], attached[i+1:]...)
			break
		}
	}
	if len(r.surfaces[uri]) == 0 {
		delete(r.surfaces, uri)
	}
}

// Get returns a copy of the surfaces attached to uri, in attach order.
func (r *Registry) Get(uri string) []bridge.Surface {
	r.mu.RLock()
	defer r.mu.RUnlock()
	attached := r.surfaces[uri]
	out := make([]bridge.Surface, len(attached))
	copy(out, attached)
	return out
}

// First returns the earliest attached surface for uri.
func (r *Registry) First(uri string) (bridge.Surface, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	attached := r.surfaces[uri]
	if len(attached) == 0 {
		return nil, false
	}
	return attached[0], true
}

// Len returns the number of surfaces attached to uri.
func (r *Registry) Len(uri string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.surfaces[uri])
}
