package engine

import (
	"context"
	"sync"

	"github.com/agentic-research/facade/internal/config"
	"github.com/agentic-research/facade/internal/dispatch"
)

// InitPlugin runs once per request, after the namespace is known and before
// the controller chain. An error aborts the request.
type InitPlugin interface {
	Process(ctx context.Context, s *config.Settings, req *dispatch.Request) error
}

// InitPluginFunc adapts a function to InitPlugin.
type InitPluginFunc func(ctx context.Context, s *config.Settings, req *dispatch.Request) error

func (f InitPluginFunc) Process(ctx context.Context, s *config.Settings, req *dispatch.Request) error {
	return f(ctx, s, req)
}

// InitPlugins is the set of init plugins available by name.
type InitPlugins struct {
	mu sync.RWMutex
	m  map[string]InitPlugin
}

func NewInitPlugins() *InitPlugins {
	return &InitPlugins{m: make(map[string]InitPlugin)}
}

func (p *InitPlugins) Register(name string, ip InitPlugin) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[name] = ip
}

func (p *InitPlugins) Lookup(name string) (InitPlugin, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	ip, ok := p.m[name]
	return ip, ok
}
