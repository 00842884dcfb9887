package dag

import (
	"fmt"
	"strings"
)

// CycleError reports the nodes that could not be ordered because every one of
// them still waits on another member of the set.
type CycleError struct {
	Pending []string // unordered remainder, in insertion order
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("%s: %s", ErrGraphHasCycle, strings.Join(e.Pending, ", "))
}

// Unwrap lets errors.Is(err, ErrGraphHasCycle) match.
func (e *CycleError) Unwrap() error { return ErrGraphHasCycle }

// TopologicalSort returns every node ID such that each node comes after all of
// its dependencies.
//
// The sort proceeds in rounds. A round collects all pending nodes with no
// unemitted dependencies, in insertion order, appends them to the result and
// only then releases their dependents. Ties are therefore broken by insertion
// order and never re-sorted.
func (d *DAG) TopologicalSort() ([]string, error) {
	indegree := make(map[string]int, len(d.nodes))
	for _, id := range d.order {
		indegree[id] = len(d.outgoing[id])
	}

	order := make([]string, 0, len(d.order))
	pending := d.order
	for len(pending) > 0 {
		var ready, rest []string
		for _, id := range pending {
			if indegree[id] == 0 {
				ready = append(ready, id)
			} else {
				rest = append(rest, id)
			}
		}
		if len(ready) == 0 {
			return nil, &CycleError{Pending: rest}
		}
		order = append(order, ready...)
		for _, id := range ready {
			for _, dependent := range d.incoming[id] {
				indegree[dependent]--
			}
		}
		pending = rest
	}
	return order, nil
}
