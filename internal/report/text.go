package report

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/domainmap/internal/model"
)

// revisitMarker is appended to a page that was already printed higher up
// in the tree; its children are not repeated.
const revisitMarker = " (see above)"

// TextWriter writes the page tree as plain text.
//
// Each page is printed on its own line, prefixed by four dashes per level
// below the seed:
//
//	http://ex.org/
//	----http://ex.org/b
//	--------http://ex.org/d
//	----http://ex.org/c
type TextWriter struct {
	baseWriter
}

// NewTextWriter creates a TextWriter that outputs to the given writer.
func NewTextWriter(output io.Writer) *TextWriter {
	return &TextWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the tree.
func (w *TextWriter) Write(sitemap *model.Sitemap) (int, error) {
	bw := bufio.NewWriter(w.output)
	cw := &countingWriter{w: bw}
	for _, line := range TreeLines(sitemap) {
		fmt.Fprintln(cw, line)
	}
	if cw.err != nil {
		return cw.n, cw.err
	}
	return cw.n, bw.Flush()
}

// WriteDiff outputs a diff, one change per line.
//
//	+ page URL      page found only in the newer crawl
//	- page URL      page found only in the older crawl
//	+ link A -> B   new link
//	- link A -> B   vanished link
//	~ URL: old -> new   status change
func (w *TextWriter) WriteDiff(diff *model.SitemapDiff) (int, error) {
	cw := &countingWriter{w: w.output}

	fmt.Fprintf(cw, "Changes for %s (%s -> %s)\n", diff.Host, diff.OldID, diff.NewID)
	if diff.Unchanged() {
		fmt.Fprintln(cw, "No changes.")
		return cw.n, cw.err
	}

	for _, u := range diff.AddedPages {
		fmt.Fprintf(cw, "+ page %s\n", u)
	}
	for _, u := range diff.RemovedPages {
		fmt.Fprintf(cw, "- page %s\n", u)
	}
	for _, e := range diff.AddedLinks {
		fmt.Fprintf(cw, "+ link %s -> %s\n", e.From, e.To)
	}
	for _, e := range diff.RemovedLinks {
		fmt.Fprintf(cw, "- link %s -> %s\n", e.From, e.To)
	}
	for _, c := range diff.StatusChanges {
		fmt.Fprintf(cw, "~ %s: %s -> %s\n", c.URL, c.Old, c.New)
	}
	fmt.Fprintf(cw, "%s pages added, %s removed, %s links added, %s removed\n",
		formatCount(len(diff.AddedPages)),
		formatCount(len(diff.RemovedPages)),
		formatCount(len(diff.AddedLinks)),
		formatCount(len(diff.RemovedLinks)),
	)
	return cw.n, cw.err
}

// TreeLines returns the text tree of a sitemap, one entry per line.
func TreeLines(sitemap *model.Sitemap) []string {
	lines := make([]string, 0, len(sitemap.Pages))
	sitemap.Walk(func(v model.Visit) bool {
		line := strings.Repeat("-", 4*v.Depth) + v.URL
		if v.Revisit {
			line += revisitMarker
		}
		lines = append(lines, line)
		return true
	})
	return lines
}

// countingWriter counts bytes and remembers the first error so a sequence
// of Fprintf calls can be checked once.
type countingWriter struct {
	w   io.Writer
	n   int
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	if c.err != nil {
		return 0, c.err
	}
	n, err := c.w.Write(p)
	c.n += n
	c.err = err
	return n, err
}
