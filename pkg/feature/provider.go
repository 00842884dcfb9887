package feature

import (
	"context"
	"sync"
)

// Provider builds the registry on first use and hands out the same instance
// to every caller afterwards. A failed build is remembered; the process is
// expected to stop rather than serve with a partial registry.
type Provider struct {
	once  sync.Once
	build func(context.Context) (*Registry, error)
	reg   *Registry
	err   error
}

// NewProvider returns a Provider that loads roots with l.
func NewProvider(l *Loader, roots []string) *Provider {
	return NewProviderFunc(func(ctx context.Context) (*Registry, error) {
		return l.Load(ctx, roots)
	})
}

// NewProviderFunc returns a Provider around an arbitrary build function.
func NewProviderFunc(build func(context.Context) (*Registry, error)) *Provider {
	return &Provider{build: build}
}

// Registry returns the registry, building it on the first call. Concurrent
// first callers block until the single build completes.
func (p *Provider) Registry(ctx context.Context) (*Registry, error) {
	p.once.Do(func() {
		p.reg, p.err = p.build(ctx)
	})
	return p.reg, p.err
}

// Static returns a Provider for an already built registry.
func Static(reg *Registry) *Provider {
	p := &Provider{reg: reg}
	p.once.Do(func() {})
	return p
}
