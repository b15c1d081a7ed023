package report

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/domainmap/internal/model"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// ErrUnknownFormat is returned for an output format this package cannot write.
var ErrUnknownFormat = errors.New("unknown output format")

// Format names an output format.
type Format string

// Supported formats.
const (
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatJSON     Format = "json"
	FormatXML      Format = "xml"
	FormatDOT      Format = "dot"
	FormatSVG      Format = "svg"
)

// Formats lists every sitemap format, in the order shown in help texts.
func Formats() []Format {
	return []Format{FormatText, FormatMarkdown, FormatJSON, FormatXML, FormatDOT, FormatSVG}
}

// DiffFormats lists the formats a diff can be written in.
func DiffFormats() []Format {
	return []Format{FormatText, FormatMarkdown, FormatJSON}
}

// ParseFormat converts a user supplied name ("md" is accepted for markdown).
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "md" {
		name = string(FormatMarkdown)
	}
	for _, f := range Formats() {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Writer writes a sitemap in one format.
type Writer interface {
	// Write renders the sitemap and returns the number of bytes written.
	Write(sitemap *model.Sitemap) (int, error)
}

// DiffWriter writes the difference between two crawls.
type DiffWriter interface {
	WriteDiff(diff *model.SitemapDiff) (int, error)
}

// NewWriter returns the Writer for format.
func NewWriter(format Format, output io.Writer) (Writer, error) {
	switch format {
	case FormatText:
		return NewTextWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	case FormatXML:
		return NewXMLWriter(output), nil
	case FormatDOT:
		return NewDOTWriter(output), nil
	case FormatSVG:
		return NewSVGWriter(output), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
}

// NewDiffWriter returns the DiffWriter for format.
func NewDiffWriter(format Format, output io.Writer) (DiffWriter, error) {
	switch format {
	case FormatText:
		return NewTextWriter(output), nil
	case FormatMarkdown:
		return NewMarkdownWriter(output), nil
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint()), nil
	default:
		return nil, fmt.Errorf("%w for diffs: %q", ErrUnknownFormat, format)
	}
}

// MultiWriter writes a sitemap to several Writers, for example a file and
// the terminal.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write renders to every writer in turn and stops on the first error.
func (m *MultiWriter) Write(sitemap *model.Sitemap) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(sitemap)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// numberPrinter formats counts with thousands separators.
var numberPrinter = message.NewPrinter(language.English)

func formatCount(n int) string {
	return numberPrinter.Sprintf("%d", n)
}
