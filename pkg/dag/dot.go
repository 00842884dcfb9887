package dag

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
)

// DOTOptions controls [DAG.ToDOT] output.
type DOTOptions struct {
	// Highlight marks nodes (e.g. a resolved feature set) with a filled style.
	Highlight map[string]bool
	// Title is written as the graph label when non-empty.
	Title string
}

// ToDOT returns a Graphviz DOT representation of the graph. Nodes and edges are
// written in insertion order so the output is stable across runs. Edges point
// from a feature to the feature it depends on.
func (d *DAG) ToDOT(opts DOTOptions) string {
	var buf bytes.Buffer
	buf.WriteString("digraph features {\n")
	buf.WriteString("  rankdir=BT;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	if opts.Title != "" {
		fmt.Fprintf(&buf, "  label=%q;\n", opts.Title)
	}
	buf.WriteString("  node [fontname=\"SF Mono, Menlo, monospace\", fontsize=12, shape=box, style=\"rounded\"];\n\n")

	for _, id := range d.order {
		style := "rounded"
		if opts.Highlight[id] {
			style = "filled,rounded"
		}
		fmt.Fprintf(&buf, "  %q [style=%q];\n", id, style)
	}
	if len(d.edges) > 0 {
		buf.WriteString("\n")
	}
	for _, e := range d.edges {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderSVG renders [DAG.ToDOT] output to SVG through Graphviz.
//
// Errors are returned if Graphviz cannot initialize, the DOT is malformed, or
// rendering fails.
func (d *DAG) RenderSVG(ctx context.Context, opts DOTOptions) ([]byte, error) {
	dot := d.ToDOT(opts)

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return buf.Bytes(), nil
}
