package dispatch

import (
	"sort"
	"sync"
)

// Global registers a controller for every namespace.
const Global = ""

type factoryKey struct {
	namespace string
	name      string
}

// Registry maps controller names to factories, per namespace.
type Registry struct {
	mu        sync.RWMutex
	factories map[factoryKey]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[factoryKey]Factory)}
}

// Register adds or replaces the factory for name in namespace. Use Global for
// a controller shared by every namespace.
func (r *Registry) Register(namespace, name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[factoryKey{namespace, name}] = f
}

// Lookup walks chain, most specific first, and then the global namespace.
func (r *Registry) Lookup(chain []string, name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, ns := range chain {
		if f, ok := r.factories[factoryKey{ns, name}]; ok {
			return f, true
		}
	}
	f, ok := r.factories[factoryKey{Global, name}]
	return f, ok
}

// Names lists registered controllers as namespace/name ("*/name" for global).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for k := range r.factories {
		ns := k.namespace
		if ns == Global {
			ns = "*"
		}
		out = append(out, ns+"/"+k.name)
	}
	sort.Strings(out)
	return out
}
