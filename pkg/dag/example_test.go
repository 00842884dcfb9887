package dag_test

import (
	"errors"
	"fmt"

	"github.com/matzehuels/gadgethost/pkg/dag"
)

func ExampleDAG_TopologicalSort() {
	// foo depends on core.io, which depends on core.
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "foo"})
	_ = g.AddNode(dag.Node{ID: "core.io"})
	_ = g.AddNode(dag.Node{ID: "core"})
	_ = g.AddEdge(dag.Edge{From: "foo", To: "core.io"})
	_ = g.AddEdge(dag.Edge{From: "core.io", To: "core"})

	order, _ := g.TopologicalSort()
	fmt.Println(order)
	// Output:
	// [core core.io foo]
}

func ExampleDAG_TopologicalSort_cycle() {
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "a"})
	_ = g.AddNode(dag.Node{ID: "b"})
	_ = g.AddEdge(dag.Edge{From: "a", To: "b"})
	_ = g.AddEdge(dag.Edge{From: "b", To: "a"})

	_, err := g.TopologicalSort()
	fmt.Println(errors.Is(err, dag.ErrGraphHasCycle))
	fmt.Println(err)
	// Output:
	// true
	// dependency graph contains a cycle: a, b
}

func ExampleDAG_traversal() {
	g := dag.New(nil)
	_ = g.AddNode(dag.Node{ID: "core"})
	_ = g.AddNode(dag.Node{ID: "rpc"})
	_ = g.AddNode(dag.Node{ID: "pubsub"})
	_ = g.AddEdge(dag.Edge{From: "rpc", To: "core"})
	_ = g.AddEdge(dag.Edge{From: "pubsub", To: "rpc"})

	fmt.Println("Children of pubsub:", g.Children("pubsub"))
	fmt.Println("Parents of core:", g.Parents("core"))
	// Output:
	// Children of pubsub: [rpc]
	// Parents of core: [rpc]
}
