// Package meta provides the ordered key/value map used for view metadata,
// controller request data and render-local overlays.
package meta

import (
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Map is an insertion-ordered string-keyed map safe for concurrent use.
// Overwriting an existing key keeps its original position.
type Map struct {
	mu sync.RWMutex
	om *orderedmap.OrderedMap[string, any]
}

// New returns an empty Map.
func New() *Map {
	return &Map{om: orderedmap.New[string, any]()}
}

// FromPairs builds a Map from alternating key/value arguments.
// A trailing key without a value is stored as nil.
func FromPairs(kv ...any) *Map {
	m := New()
	for i := 0; i < len(kv); i += 2 {
		k, _ := kv[i].(string)
		var v any
		if i+1 < len(kv) {
			v = kv[i+1]
		}
		m.Set(k, v)
	}
	return m
}

func (m *Map) Get(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.om.Get(key)
}

// Value returns the value for key or nil.
func (m *Map) Value(key string) any {
	v, _ := m.Get(key)
	return v
}

func (m *Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

func (m *Map) Set(key string, value any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.om.Set(key, value)
}

func (m *Map) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.om.Delete(key)
}

func (m *Map) Len() int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.om.Len()
}

// Keys returns the keys in insertion order.
func (m *Map) Keys() []string {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, m.om.Len())
	for p := m.om.Oldest(); p != nil; p = p.Next() {
		keys = append(keys, p.Key)
	}
	return keys
}

// Each calls fn for every pair in order until fn returns false.
// fn must not modify m.
func (m *Map) Each(fn func(key string, value any) bool) {
	if m == nil {
		return
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	for p := m.om.Oldest(); p != nil; p = p.Next() {
		if !fn(p.Key, p.Value) {
			return
		}
	}
}

// Clone returns a shallow copy.
func (m *Map) Clone() *Map {
	c := New()
	m.Each(func(k string, v any) bool {
		c.om.Set(k, v)
		return true
	})
	return c
}

// Merge copies every pair of other into m. Values from other win.
func (m *Map) Merge(other *Map) {
	if other == nil || other == m {
		return
	}
	other.Each(func(k string, v any) bool {
		m.Set(k, v)
		return true
	})
}

// ToMap flattens m into a plain map, losing order.
func (m *Map) ToMap() map[string]any {
	out := make(map[string]any, m.Len())
	m.Each(func(k string, v any) bool {
		out[k] = v
		return true
	})
	return out
}
