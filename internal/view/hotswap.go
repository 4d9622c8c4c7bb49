package view

import (
	"context"
	"sync"
)

// HotSwap is a thread-safe wrapper that allows swapping the active registry.
// Each registry keeps its insert-once contract; a swap simply starts a fresh
// arena, which is how file changes are picked up in development.
type HotSwap struct {
	mu      sync.RWMutex
	current *Registry
}

func NewHotSwap(initial *Registry) *HotSwap {
	return &HotSwap{current: initial}
}

// Swap atomically replaces the current registry and returns the old one.
func (h *HotSwap) Swap(next *Registry) *Registry {
	h.mu.Lock()
	defer h.mu.Unlock()
	old := h.current
	h.current = next
	return old
}

// Current returns the active registry.
func (h *HotSwap) Current() *Registry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.current
}

// Get delegates to the current registry.
func (h *HotSwap) Get(name string) (*Node, error) {
	return h.Current().Get(name)
}

// GetContext delegates to the current registry.
func (h *HotSwap) GetContext(ctx context.Context, name string) (*Node, error) {
	return h.Current().GetContext(ctx, name)
}

var (
	_ Source = (*Registry)(nil)
	_ Source = (*HotSwap)(nil)
)
