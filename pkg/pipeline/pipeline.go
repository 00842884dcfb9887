// Package pipeline renders gadgets.
//
// A render is a sequential state machine. Each stage either completes or
// fails the whole render; work inside a stage may run concurrently.
//
//  1. spec_fetch: blacklist check, fetch and parse of the gadget spec
//  2. message_bundles: locale matching and bundle merge
//  3. substitutions: module id, messages, bidi flags and user prefs
//  4. features: required/optional reconciliation against the registry
//  5. process_features: Prepare on every feature, then Process on every feature
//  6. substitute: placeholders in metadata, views and preload hrefs
//  7. preloads: concurrent, non-fatal preload fetches
//  8. feature_content: ordered feature script payload
//
// The terminal states are Rendered, where the fully substituted
// [gadget.Gadget] is returned, and Failed, where a single coded error is
// returned and no payload is produced.
//
// # Usage
//
//	runner := pipeline.NewRunner(reg, assembler, fetcher, logger)
//	g, err := runner.Render(ctx, &gadget.Context{
//	    URL:    "http://example.com/gadget.xml",
//	    Locale: gadget.NewLocale("en", "US"),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	payload := g.FeatureContent
package pipeline

import (
	"time"
)

// Stage names, as reported to logs and observability hooks.
const (
	StageSpecFetch       = "spec_fetch"
	StageMessageBundles  = "message_bundles"
	StageSubstitutions   = "substitutions"
	StageFeatures        = "features"
	StageProcessFeatures = "process_features"
	StageSubstitute      = "substitute"
	StagePreloads        = "preloads"
	StageFeatureContent  = "feature_content"
)

// State is the terminal state of a render.
type State string

const (
	Rendered State = "rendered"
	Failed   State = "failed"
)

// StageTiming records how long one stage took.
type StageTiming struct {
	Stage    string
	Duration time.Duration
}

// Stats summarizes a render.
type Stats struct {
	Stages       []StageTiming
	Total        time.Duration
	Features     int
	Preloads     int
	PayloadBytes int
}

// Result is the outcome of [Runner.Execute].
type Result struct {
	RenderID string
	State    State
	Stats    Stats
}
