package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/domainmap/internal/model"
)

// JSONWriter outputs sitemaps and diffs in JSON format.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string

	// version is embedded in the document when set.
	version string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with default indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// WithVersion records the generating program version in the output.
func WithVersion(version string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.version = version
	}
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// JSONSitemap is the document written for a sitemap.
type JSONSitemap struct {
	// Version is the domainmap version that generated the document.
	Version string `json:"version,omitempty"`

	// Stats summarizes the graph.
	Stats model.Stats `json:"stats"`

	// Sitemap is the link graph.
	Sitemap *model.Sitemap `json:"sitemap"`
}

// Write outputs the sitemap together with its statistics.
func (w *JSONWriter) Write(sitemap *model.Sitemap) (int, error) {
	return w.writeJSON(&JSONSitemap{
		Version: w.version,
		Stats:   sitemap.Stats(),
		Sitemap: sitemap,
	})
}

// WriteDiff outputs a diff.
func (w *JSONWriter) WriteDiff(diff *model.SitemapDiff) (int, error) {
	return w.writeJSON(diff)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Add trailing newline for better terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}
