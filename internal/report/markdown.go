package report

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/nao1215/domainmap/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// MarkdownWriter outputs sitemaps and diffs in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the sitemap in Markdown format.
func (w *MarkdownWriter) Write(sitemap *model.Sitemap) (int, error) {
	md := markdown.NewMarkdown(w.output)
	stats := sitemap.Stats()

	w.writeHeader(md, sitemap, stats)
	w.writeStatus(md, stats)
	w.writeTree(md, sitemap)
	w.writePages(md, sitemap)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and the crawl properties table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, sitemap *model.Sitemap, stats model.Stats) {
	md.H1("Sitemap of " + sitemap.Host)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Seed", "`" + sitemap.Seed + "`"},
			{"Run ID", "`" + sitemap.ID + "`"},
			{"Started", sitemap.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Duration", sitemap.Duration.Round(time.Millisecond).String()},
			{"Workers", strconv.Itoa(sitemap.Workers)},
			{"Pages", formatCount(stats.Pages)},
			{"Links", formatCount(stats.Links)},
			{"Max Depth", strconv.Itoa(stats.MaxDepth)},
			{"Fingerprint", "`" + sitemap.Fingerprint + "`"},
		},
	})
	md.PlainText("")
}

// writeStatus writes the page status chart and an alert summarizing it.
func (w *MarkdownWriter) writeStatus(md *markdown.Markdown, stats model.Stats) {
	md.H2("Page Status")
	md.PlainText("")

	if stats.Pages > 0 {
		chart := piechart.NewPieChart(
			io.Discard,
			piechart.WithTitle("Fetch Results"),
			piechart.WithShowData(true),
		)
		if stats.OK > 0 {
			chart.LabelAndIntValue("OK", uint64(stats.OK))
		}
		if stats.Failed > 0 {
			chart.LabelAndIntValue("Failed", uint64(stats.Failed))
		}
		if stats.Pending > 0 {
			chart.LabelAndIntValue("Pending", uint64(stats.Pending))
		}
		md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
		md.PlainText("")
	}

	switch {
	case stats.OK == 0:
		md.Cautionf("No page could be fetched (%s failed).", formatCount(stats.Failed))
	case stats.Failed > 0:
		md.Warningf("%s of %s pages could not be fetched and are dead ends.",
			formatCount(stats.Failed), formatCount(stats.Pages))
	case stats.Pending > 0:
		md.Importantf("The crawl was interrupted; %s pages were never fetched.", formatCount(stats.Pending))
	default:
		md.Tip("Every discovered page was fetched.")
	}
	md.PlainText("")
}

// writeTree writes the page tree as a text code block.
func (w *MarkdownWriter) writeTree(md *markdown.Markdown, sitemap *model.Sitemap) {
	md.H2("Tree")
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightText, strings.Join(TreeLines(sitemap), "\n"))
	md.PlainText("")
}

// writePages writes a table of every page.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, sitemap *model.Sitemap) {
	md.H2("Pages")
	md.PlainText("")

	title := cases.Title(language.English)
	rows := make([][]string, 0, len(sitemap.Pages))
	for _, p := range sitemap.Pages {
		errText := p.Error
		if errText == "" {
			errText = "-"
		}
		rows = append(rows, []string{
			"`" + p.URL + "`",
			title.String(string(p.Status)),
			strconv.Itoa(len(p.Children)),
			truncateString(errText, 60),
		})
	}

	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Children", "Error"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Generated by [domainmap](https://github.com/nao1215/domainmap)*")
}

// WriteDiff outputs a diff between two crawls in Markdown format.
func (w *MarkdownWriter) WriteDiff(diff *model.SitemapDiff) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Sitemap Changes for " + diff.Host)
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Change", "Count"},
		Rows: [][]string{
			{"Pages added", formatCount(len(diff.AddedPages))},
			{"Pages removed", formatCount(len(diff.RemovedPages))},
			{"Links added", formatCount(len(diff.AddedLinks))},
			{"Links removed", formatCount(len(diff.RemovedLinks))},
			{"Status changes", formatCount(len(diff.StatusChanges))},
		},
	})
	md.PlainText("")
	md.PlainTextf("Compared run `%s` with run `%s`.", diff.OldID, diff.NewID)
	md.PlainText("")

	if diff.Unchanged() {
		md.Tip("The link graph did not change.")
		return len(md.String()), md.Build()
	}

	writeList := func(heading string, items []string) {
		if len(items) == 0 {
			return
		}
		md.H2(heading)
		md.PlainText("")
		md.BulletList(items...)
		md.PlainText("")
	}

	writeList("Added Pages", quoteAll(diff.AddedPages))
	writeList("Removed Pages", quoteAll(diff.RemovedPages))
	writeList("Added Links", edgeItems(diff.AddedLinks))
	writeList("Removed Links", edgeItems(diff.RemovedLinks))

	if len(diff.StatusChanges) > 0 {
		md.H2("Status Changes")
		md.PlainText("")
		rows := make([][]string, 0, len(diff.StatusChanges))
		for _, c := range diff.StatusChanges {
			rows = append(rows, []string{"`" + c.URL + "`", string(c.Old), string(c.New)})
		}
		md.Table(markdown.TableSet{
			Header: []string{"URL", "Before", "After"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	w.writeFooter(md)
	return len(md.String()), md.Build()
}

func quoteAll(urls []string) []string {
	out := make([]string, len(urls))
	for i, u := range urls {
		out[i] = "`" + u + "`"
	}
	return out
}

func edgeItems(edges []model.Edge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = "`" + e.From + "` → `" + e.To + "`"
	}
	return out
}

// truncateString truncates a string to maxLen characters with ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
