// Package httpfetch performs the outbound HTTP fetches of the gadget
// container: gadget specs, message bundles, remote feature scripts and
// preloads.
//
// [Fetcher] is the interface consumed by the rendering pipeline and the
// content assembler. [HTTPFetcher] is the production implementation: it
// retries transient failures (transport errors and 5xx responses) with
// exponential backoff and keeps successful unsigned responses in a bounded
// in-process LRU cache.
//
// Non-200 responses are not errors. They are returned with their status code
// so the caller decides whether the condition is fatal (a gadget spec) or
// degraded (a remote feature script).
package httpfetch
