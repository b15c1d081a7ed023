// Package report renders sitemaps and sitemap diffs.
//
// Sitemap formats:
//   - text: the page tree, one URL per line, indented four dashes per level
//   - markdown: summary table, status chart and the tree (nao1215/markdown)
//   - json: the full graph with statistics
//   - xml: a sitemaps.org urlset of the fetched pages
//   - dot: Graphviz source of the link graph
//   - svg: the dot graph rendered with go-graphviz
//
// Every renderer walks the graph with model.Sitemap.Walk and therefore
// terminates on cyclic graphs. Diffs render as text, markdown or json.
package report
