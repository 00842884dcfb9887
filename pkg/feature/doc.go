// Package feature loads gadget feature descriptors and resolves the feature
// dependency graph.
//
// A feature is a named JavaScript bundle with declared dependencies and two
// script lists, one for the gadget iframe and one for the container page.
// Descriptors are listed in a manifest (features.txt) and parsed once at
// startup into an immutable [Registry].
//
// # Core features
//
// Every feature whose lowercase name starts with "core" is a core feature.
// Core features are implicitly added to the dependencies of every other
// feature, except "glob" and "shindig.auth", so that normal features always
// load after the core baseline.
//
// # Ordering
//
// [Build] computes one global topological order with Kahn's algorithm in
// rounds. Ties are broken by manifest order, which is why the [Loader] sorts
// manifest entries deterministically before parsing. A cycle is a fatal
// startup error.
//
// [Registry.Resolve] computes the dependency closure of a requested set and
// [Registry.SortFeatures] re-expresses any subset in the global order.
package feature
