// Package pkg provides the core libraries for the gadgethost gadget container.
//
// # Overview
//
// Gadgethost renders OpenSocial gadget specs into iframe content: it fetches
// a gadget XML spec, merges its message bundles, substitutes hangman
// variables, reconciles requested features against a registry of JavaScript
// libraries and inlines the resulting feature code. The pkg directory is
// organized into four main areas:
//
//  1. [feature] - Feature descriptors, loading and dependency ordering
//  2. [gadget] - Gadget spec model and XML parsing
//  3. [pipeline] - Orchestration (fetch → merge → substitute → assemble)
//  4. [server] - HTTP surface for iframe rendering and JS bundles
//
// # Architecture
//
// The typical data flow through gadgethost:
//
//	features/**/feature.xml
//	         ↓
//	    [feature] package (load descriptors, order dependencies)
//	         ↓
//	    [assemble] package (read and cache feature scripts)
//	         ↓
//	    [pipeline] package (render a gadget spec)
//	         ↓
//	    iframe HTML / JS bundle
//
// # Quick Start
//
//	loader := feature.NewLoader("localhost:8080", false)
//	reg, _ := feature.NewProvider(loader, []string{"features"}).Registry(ctx)
//	fetcher, _ := httpfetch.New(httpfetch.Options{})
//	asm := assemble.New(reg, assemble.Options{Fetcher: fetcher})
//	runner := pipeline.NewRunner(reg, asm, fetcher, nil)
//	g, _ := runner.Render(ctx, &gadget.Context{URL: "http://example.com/gadget.xml"})
//
// # Supporting Packages
//
// [dag] - Directed acyclic graph with deterministic topological ordering,
// used for feature dependency resolution and DOT/SVG export.
//
// [substitute] - Hangman variable substitution (__MSG_x__, __UP_x__,
// __MODULE_x__, __BIDI_x__).
//
// [cache] - Pluggable byte caches (memory, file, Redis, MongoDB).
//
// [httpfetch] - Outbound fetcher with retries and an in-process LRU.
//
// [minify] - Optional JavaScript compression for feature payloads.
//
// [config] - TOML configuration.
//
// [errors] - Coded errors shared by every layer.
//
// [observability] - Hook interfaces for metrics and tracing.
//
// [feature]: https://pkg.go.dev/github.com/matzehuels/gadgethost/pkg/feature
// [gadget]: https://pkg.go.dev/github.com/matzehuels/gadgethost/pkg/gadget
// [pipeline]: https://pkg.go.dev/github.com/matzehuels/gadgethost/pkg/pipeline
// [server]: https://pkg.go.dev/github.com/matzehuels/gadgethost/pkg/server
// [assemble]: https://pkg.go.dev/github.com/matzehuels/gadgethost/pkg/assemble
// [dag]: https://pkg.go.dev/github.com/matzehuels/gadgethost/pkg/dag
// [substitute]: https://pkg.go.dev/github.com/matzehuels/gadgethost/pkg/substitute
// [cache]: https://pkg.go.dev/github.com/matzehuels/gadgethost/pkg/cache
// [httpfetch]: https://pkg.go.dev/github.com/matzehuels/gadgethost/pkg/httpfetch
// [minify]: https://pkg.go.dev/github.com/matzehuels/gadgethost/pkg/minify
// [config]: https://pkg.go.dev/github.com/matzehuels/gadgethost/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/gadgethost/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/gadgethost/pkg/observability
package pkg
