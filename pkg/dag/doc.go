// Package dag provides the directed graph used to model feature dependencies.
//
// # Overview
//
// Every registered feature becomes a node; an edge From→To means "From depends
// on To". The graph remembers node insertion order, and that order is the
// tie-breaker for everything that needs determinism: [DAG.Nodes] iteration,
// [DAG.TopologicalSort] rounds and DOT export. Callers that load features from
// a manifest therefore get the same global order on every start.
//
// # Basic Usage
//
//	g := dag.New(nil)
//	_ = g.AddNode(dag.Node{ID: "core"})
//	_ = g.AddNode(dag.Node{ID: "core.io"})
//	_ = g.AddEdge(dag.Edge{From: "core.io", To: "core"})
//
//	order, err := g.TopologicalSort()
//	// order == ["core", "core.io"]
//
// # Ordering
//
// [DAG.TopologicalSort] is Kahn's algorithm run in rounds: each round takes
// every node whose dependencies have all been emitted, in insertion order,
// then releases their dependents. When a round finds nothing ready while nodes
// remain, it returns a [*CycleError] naming the stuck nodes. The error matches
// [ErrGraphHasCycle] with errors.Is.
//
// # Export
//
// [DAG.ToDOT] renders the graph as Graphviz DOT and [DAG.RenderSVG] turns that
// into SVG through github.com/goccy/go-graphviz. Both are used by the CLI's
// "features graph" command.
//
// # Concurrency
//
// DAG instances are not safe for concurrent mutation. The feature registry
// builds its graph once and only reads it afterwards, which is safe from any
// number of goroutines.
package dag
