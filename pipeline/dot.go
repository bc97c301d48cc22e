package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-graphviz"
)

// DOT returns the graph in Graphviz DOT format with edges pointing from a
// dependency to its dependents. Stage elapsed times from res are added to the
// node labels when res is not nil.
func (g *Graph) DOT(res *Results) string {
	var b strings.Builder
	b.WriteString("digraph pipeline {\n")
	b.WriteString("  rankdir=LR;\n  node [shape=box, style=rounded];\n")
	names := g.Stages()
	for _, name := range names {
		label := name
		if res != nil && res.Has(name) {
			label = fmt.Sprintf("%s\\n%s", name, res.Elapsed(name).Round(time.Millisecond))
		}
		fmt.Fprintf(&b, "  %q [label=\"%s\"];\n", name, label)
	}
	for _, name := range names {
		for _, dep := range g.Deps(name) {
			fmt.Fprintf(&b, "  %q -> %q;\n", dep, name)
		}
	}
	b.WriteString("}\n")
	return b.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
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
