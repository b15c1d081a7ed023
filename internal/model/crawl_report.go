package model

import "time"

// CrawlReport is the per-target record that flows through the pipeline.
// Steps fill it in; failures are recorded here instead of aborting a batch.
type CrawlReport struct {
	// Target is the seed URL as given on the command line, normalized.
	Target string `json:"target"`

	// StartedAt is when processing of the target began.
	StartedAt time.Time `json:"started_at"`

	// Sitemap is the crawl result. It is nil if the crawl step did not run.
	Sitemap *Sitemap `json:"sitemap,omitempty"`

	// Saved is true once the sitemap has been stored in the database.
	Saved bool `json:"saved"`

	// TimedOut is set when the context was canceled mid-pipeline.
	TimedOut bool `json:"timed_out"`

	// Error is the step failure, if any.
	Error error `json:"-"`

	// ErrorMessage is Error as a string for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// PerformedSteps lists the steps that ran, in order.
	PerformedSteps []string `json:"performed_steps"`
}

// NewCrawlReport returns a report for target.
func NewCrawlReport(target string) *CrawlReport {
	return &CrawlReport{
		Target:         target,
		StartedAt:      time.Now(),
		PerformedSteps: make([]string, 0),
	}
}
