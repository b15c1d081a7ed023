package model

import "slices"

// StatusChange records a page whose fetch status differs between two crawls.
type StatusChange struct {
	URL string     `json:"url"`
	Old PageStatus `json:"old"`
	New PageStatus `json:"new"`
}

// SitemapDiff describes how a site's link graph changed between two crawls.
type SitemapDiff struct {
	Host  string `json:"host"`
	OldID string `json:"old_id"`
	NewID string `json:"new_id"`

	AddedPages    []string       `json:"added_pages"`
	RemovedPages  []string       `json:"removed_pages"`
	AddedLinks    []Edge         `json:"added_links"`
	RemovedLinks  []Edge         `json:"removed_links"`
	StatusChanges []StatusChange `json:"status_changes"`
}

// Unchanged reports whether the two crawls found the same graph.
func (d *SitemapDiff) Unchanged() bool {
	return len(d.AddedPages) == 0 &&
		len(d.RemovedPages) == 0 &&
		len(d.AddedLinks) == 0 &&
		len(d.RemovedLinks) == 0 &&
		len(d.StatusChanges) == 0
}

// Diff compares an older and a newer sitemap of the same host.
func Diff(older, newer *Sitemap) *SitemapDiff {
	d := &SitemapDiff{
		Host:          newer.Host,
		OldID:         older.ID,
		NewID:         newer.ID,
		AddedPages:    make([]string, 0),
		RemovedPages:  make([]string, 0),
		AddedLinks:    make([]Edge, 0),
		RemovedLinks:  make([]Edge, 0),
		StatusChanges: make([]StatusChange, 0),
	}

	for _, p := range newer.Pages {
		old, ok := older.Lookup(p.URL)
		if !ok {
			d.AddedPages = append(d.AddedPages, p.URL)
			continue
		}
		if old.Status != p.Status {
			d.StatusChanges = append(d.StatusChanges, StatusChange{URL: p.URL, Old: old.Status, New: p.Status})
		}
	}
	for _, p := range older.Pages {
		if _, ok := newer.Lookup(p.URL); !ok {
			d.RemovedPages = append(d.RemovedPages, p.URL)
		}
	}

	oldEdges := edgeSet(older)
	newEdges := edgeSet(newer)
	for _, e := range newer.Edges() {
		if !oldEdges[e] {
			d.AddedLinks = append(d.AddedLinks, e)
		}
	}
	for _, e := range older.Edges() {
		if !newEdges[e] {
			d.RemovedLinks = append(d.RemovedLinks, e)
		}
	}

	slices.Sort(d.AddedPages)
	slices.Sort(d.RemovedPages)
	return d
}

func edgeSet(s *Sitemap) map[Edge]bool {
	set := make(map[Edge]bool)
	for _, e := range s.Edges() {
		set[e] = true
	}
	return set
}
