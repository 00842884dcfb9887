package pipeline

import (
	"context"
	"strings"
	"sync"

	"github.com/matzehuels/gadgethost/pkg/gadget"
)

// FeatureProcessor is the server-side logic of a feature. For one render,
// Prepare is called on every resolved feature before Process is called on any
// of them, both in dependency order.
type FeatureProcessor interface {
	Prepare(ctx context.Context, g *gadget.Gadget, gctx *gadget.Context, params map[string][]string) error
	Process(ctx context.Context, g *gadget.Gadget, gctx *gadget.Context, params map[string][]string) error
}

// ProcessorFuncs adapts two functions to FeatureProcessor. Nil functions are
// no-ops.
type ProcessorFuncs struct {
	PrepareFunc func(ctx context.Context, g *gadget.Gadget, gctx *gadget.Context, params map[string][]string) error
	ProcessFunc func(ctx context.Context, g *gadget.Gadget, gctx *gadget.Context, params map[string][]string) error
}

// Prepare calls PrepareFunc.
func (p ProcessorFuncs) Prepare(ctx context.Context, g *gadget.Gadget, gctx *gadget.Context, params map[string][]string) error {
	if p.PrepareFunc == nil {
		return nil
	}
	return p.PrepareFunc(ctx, g, gctx, params)
}

// Process calls ProcessFunc.
func (p ProcessorFuncs) Process(ctx context.Context, g *gadget.Gadget, gctx *gadget.Context, params map[string][]string) error {
	if p.ProcessFunc == nil {
		return nil
	}
	return p.ProcessFunc(ctx, g, gctx, params)
}

// Processors maps feature names, ignoring case, to their processors. Features
// without a processor contribute only script content.
type Processors struct {
	mu sync.RWMutex
	m  map[string]FeatureProcessor
}

// NewProcessors returns an empty registry.
func NewProcessors() *Processors {
	return &Processors{m: make(map[string]FeatureProcessor)}
}

// Register sets the processor for a feature, replacing any previous one.
func (p *Processors) Register(feature string, fp FeatureProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.m[strings.ToLower(feature)] = fp
}

// Get returns the processor for a feature.
func (p *Processors) Get(feature string) (FeatureProcessor, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	fp, ok := p.m[strings.ToLower(feature)]
	return fp, ok
}
