package report

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"

	"github.com/goccy/go-graphviz"
	"github.com/nao1215/domainmap/internal/model"
)

// DOTWriter outputs the link graph as Graphviz DOT source.
type DOTWriter struct {
	baseWriter
}

// NewDOTWriter creates a DOTWriter that outputs to the given writer.
func NewDOTWriter(output io.Writer) *DOTWriter {
	return &DOTWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the DOT document.
func (w *DOTWriter) Write(sitemap *model.Sitemap) (int, error) {
	return w.output.Write([]byte(ToDOT(sitemap)))
}

// ToDOT converts a sitemap to a Graphviz digraph. Nodes are labeled with the
// URL path; failed pages are filled red and pending pages grey.
func ToDOT(sitemap *model.Sitemap) string {
	var buf bytes.Buffer
	buf.WriteString("digraph sitemap {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  node [shape=box, style=\"rounded,filled\", fillcolor=white, fontsize=12];\n")
	fmt.Fprintf(&buf, "  label=%q;\n", sitemap.Host)
	buf.WriteString("\n")

	for _, p := range sitemap.Pages {
		attrs := fmt.Sprintf("label=%q, tooltip=%q", nodeLabel(p.URL), p.URL)
		switch p.Status {
		case model.PageStatusFailed:
			attrs += ", fillcolor=\"#f8d7da\""
		case model.PageStatusPending:
			attrs += ", fillcolor=lightgrey"
		}
		if p.URL == sitemap.Seed {
			attrs += ", penwidth=2"
		}
		fmt.Fprintf(&buf, "  %q [%s];\n", p.URL, attrs)
	}

	buf.WriteString("\n")
	for _, e := range sitemap.Edges() {
		fmt.Fprintf(&buf, "  %q -> %q;\n", e.From, e.To)
	}

	buf.WriteString("}\n")
	return buf.String()
}

func nodeLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Path == "" {
		return raw
	}
	if u.RawQuery != "" {
		return u.Path + "?" + u.RawQuery
	}
	return u.Path
}

// SVGWriter renders the link graph to SVG with Graphviz.
type SVGWriter struct {
	baseWriter
}

// NewSVGWriter creates an SVGWriter that outputs to the given writer.
func NewSVGWriter(output io.Writer) *SVGWriter {
	return &SVGWriter{baseWriter: newBaseWriter(output)}
}

// Write renders and outputs the SVG document.
func (w *SVGWriter) Write(sitemap *model.Sitemap) (int, error) {
	svg, err := RenderSVG(context.Background(), ToDOT(sitemap))
	if err != nil {
		return 0, err
	}
	return w.output.Write(svg)
}

// RenderSVG renders DOT source to SVG.
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
