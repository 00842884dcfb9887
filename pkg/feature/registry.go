package feature

import (
	"errors"
	"slices"
	"strings"

	"github.com/matzehuels/gadgethost/pkg/dag"
	gerrors "github.com/matzehuels/gadgethost/pkg/errors"
)

// Registry is the immutable set of known features with their global
// dependency order. It is safe for concurrent use without locking.
type Registry struct {
	features map[string]*Descriptor // keyed by lowercase name
	order    []string               // global topological order
	core     []string               // core feature names, in global order
	graph    *dag.DAG
}

// Resolution is the result of [Registry.Resolve].
type Resolution struct {
	// Found holds the dependency closure, each feature after its dependencies.
	Found []string
	// Missing holds requested names with no descriptor, in request order.
	Missing []string
}

// OK reports whether every requested feature was found.
func (r Resolution) OK() bool { return len(r.Missing) == 0 }

// Build constructs a Registry from descriptors given in manifest order.
//
// Core features are injected into the dependencies of every non-core feature
// except "glob" and "shindig.auth". The descriptors passed in are not
// modified. Build fails with INVALID_DESCRIPTOR for empty or duplicate names
// and with DEPENDENCY_CYCLE when the graph cannot be ordered.
func Build(descriptors []*Descriptor) (*Registry, error) {
	r := &Registry{
		features: make(map[string]*Descriptor, len(descriptors)),
		graph:    dag.New(dag.Metadata{"kind": "features"}),
	}

	ordered := make([]*Descriptor, 0, len(descriptors))
	var coreNames []string
	for _, d := range descriptors {
		if d == nil || strings.TrimSpace(d.Name) == "" {
			return nil, gerrors.New(gerrors.ErrCodeInvalidDescriptor, "feature without a name")
		}
		key := strings.ToLower(d.Name)
		if _, dup := r.features[key]; dup {
			return nil, gerrors.New(gerrors.ErrCodeInvalidDescriptor, "duplicate feature %q", d.Name)
		}
		c := d.clone()
		r.features[key] = c
		ordered = append(ordered, c)
		if c.IsCore() {
			coreNames = append(coreNames, c.Name)
		}
	}

	for _, d := range ordered {
		injectCore(d, coreNames)
	}

	for _, d := range ordered {
		_ = r.graph.AddNode(dag.Node{ID: d.Name, Meta: dag.Metadata{
			"core":              d.IsCore(),
			"gadget_scripts":    len(d.GadgetScripts),
			"container_scripts": len(d.ContainerScripts),
		}})
	}
	for _, d := range ordered {
		for _, dep := range d.Dependencies {
			if target, ok := r.features[strings.ToLower(dep)]; ok {
				_ = r.graph.AddEdge(dag.Edge{From: d.Name, To: target.Name})
			}
		}
	}

	order, err := r.graph.TopologicalSort()
	if err != nil {
		var ce *dag.CycleError
		if errors.As(err, &ce) {
			return nil, gerrors.Wrap(gerrors.ErrCodeDependencyCycle, err, "build feature registry")
		}
		return nil, gerrors.Wrap(gerrors.ErrCodeInternal, err, "build feature registry")
	}
	r.order = order

	pos := dag.PosMap(order)
	slices.SortStableFunc(coreNames, func(a, b string) int { return pos[a] - pos[b] })
	r.core = coreNames
	return r, nil
}

// injectCore unions the core names into d's dependencies. Applying it twice
// adds nothing.
func injectCore(d *Descriptor, coreNames []string) {
	if exemptFromCore(d.Name) {
		return
	}
	for _, c := range coreNames {
		if !d.DependsOn(c) {
			d.Dependencies = append(d.Dependencies, c)
		}
	}
}

// Resolve returns the dependency closure of needed. An empty request resolves
// the core features. Unknown names are reported in Missing and do not stop
// resolution of the others.
func (r *Registry) Resolve(needed []string) Resolution {
	if len(needed) == 0 {
		needed = r.core
	}

	var res Resolution
	visited := make(map[string]bool)
	missing := make(map[string]bool)
	for _, name := range needed {
		d, ok := r.lookup(name)
		if !ok {
			if key := strings.ToLower(name); !missing[key] {
				missing[key] = true
				res.Missing = append(res.Missing, name)
			}
			continue
		}
		res.Found = r.visit(d, visited, res.Found)
	}
	return res
}

// visit appends d after all of its dependencies, each feature at most once.
func (r *Registry) visit(d *Descriptor, visited map[string]bool, out []string) []string {
	key := strings.ToLower(d.Name)
	if visited[key] {
		return out
	}
	visited[key] = true
	for _, dep := range d.Dependencies {
		if dd, ok := r.lookup(dep); ok {
			out = r.visit(dd, visited, out)
		}
	}
	return append(out, d.Name)
}

// SortFeatures returns the members of subset in global dependency order.
// Unknown names are dropped.
func (r *Registry) SortFeatures(subset []string) []string {
	want := make(map[string]bool, len(subset))
	for _, name := range subset {
		want[strings.ToLower(name)] = true
	}
	out := make([]string, 0, len(subset))
	for _, name := range r.order {
		if want[strings.ToLower(name)] {
			out = append(out, name)
		}
	}
	return out
}

// Feature returns the descriptor for name, ignoring case. The descriptor must
// not be modified.
func (r *Registry) Feature(name string) (*Descriptor, bool) {
	return r.lookup(name)
}

// Names returns every feature name in global dependency order.
func (r *Registry) Names() []string { return slices.Clone(r.order) }

// CoreFeatureNames returns the core features in global dependency order.
func (r *Registry) CoreFeatureNames() []string { return slices.Clone(r.core) }

// Len returns the number of features.
func (r *Registry) Len() int { return len(r.order) }

// Graph returns the dependency graph, core edges included. Callers must treat
// it as read-only.
func (r *Registry) Graph() *dag.DAG { return r.graph }

// Descriptors returns every descriptor in global order.
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.features[strings.ToLower(name)])
	}
	return out
}

func (r *Registry) lookup(name string) (*Descriptor, bool) {
	d, ok := r.features[strings.ToLower(name)]
	return d, ok
}
