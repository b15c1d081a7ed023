package report

import (
	"encoding/xml"
	"io"

	"github.com/nao1215/domainmap/internal/model"
)

// sitemapNamespace is the sitemaps.org protocol namespace.
const sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

// XMLWriter outputs a sitemaps.org urlset listing every fetched page.
// Failed and pending pages are left out.
type XMLWriter struct {
	baseWriter
}

// NewXMLWriter creates an XMLWriter that outputs to the given writer.
func NewXMLWriter(output io.Writer) *XMLWriter {
	return &XMLWriter{baseWriter: newBaseWriter(output)}
}

type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []xmlURL `xml:"url"`
}

type xmlURL struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

// Write outputs the urlset document.
func (w *XMLWriter) Write(sitemap *model.Sitemap) (int, error) {
	set := xmlURLSet{XMLNS: sitemapNamespace, URLs: make([]xmlURL, 0, len(sitemap.Pages))}

	lastMod := ""
	if !sitemap.StartedAt.IsZero() {
		lastMod = sitemap.StartedAt.UTC().Format("2006-01-02")
	}
	for _, p := range sitemap.Pages {
		if p.Status != model.PageStatusOK {
			continue
		}
		set.URLs = append(set.URLs, xmlURL{Loc: p.URL, LastMod: lastMod})
	}

	data, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return 0, err
	}

	cw := &countingWriter{w: w.output}
	_, _ = io.WriteString(cw, xml.Header)
	_, _ = cw.Write(data)
	_, _ = io.WriteString(cw, "\n")
	return cw.n, cw.err
}
