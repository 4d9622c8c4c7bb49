package layout

import (
	"context"
	"sync"
)

// ViewPlugin runs on the render-local page before the layout is applied.
type ViewPlugin interface {
	Process(ctx context.Context, p *Page) error
}

// ViewPluginFunc adapts a function to ViewPlugin.
type ViewPluginFunc func(ctx context.Context, p *Page) error

func (f ViewPluginFunc) Process(ctx context.Context, p *Page) error { return f(ctx, p) }

// Plugins is the set of view plugins available by name.
type Plugins struct {
	mu sync.RWMutex
	m  map[string]ViewPlugin
}

// NewPlugins returns a set holding the built-in plugins.
func NewPlugins() *Plugins {
	p := &Plugins{m: make(map[string]ViewPlugin)}
	p.Register("stamp", ViewPluginFunc(stamp))
	return p
}

func (p *Plugins) Register(name string, vp ViewPlugin) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[name] = vp
}

func (p *Plugins) Lookup(name string) (ViewPlugin, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	vp, ok := p.m[name]
	return vp, ok
}

// stamp records the render time, in the namespace time zone.
func stamp(_ context.Context, p *Page) error {
	t := p.Env.Start
	if p.Env.Location != nil {
		t = t.In(p.Env.Location)
	}
	p.Set("rendered_at", t)
	return nil
}
