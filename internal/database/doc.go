// Package database keeps the crawl history of domainmap in SQLite.
//
// Every saved crawl run stores its metadata, its pages with their fetch
// status, and its links. Runs of the same host can then be listed, reloaded
// as model.Sitemap values, and diffed against each other. The store only
// holds finished sitemaps; a crawl never resumes from it.
//
// The driver is modernc.org/sqlite, which needs no cgo, so the database is a
// single file in the XDG data directory.
package database
