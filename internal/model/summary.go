package model

import "time"

// TaskResult is what a single crawl task produced for one seed.
// Records hold only kept (saved, non-duplicate) images.
type TaskResult struct {
	// Seed is the seed URL the task started from.
	Seed string `json:"seed"`

	// Records are the metadata rows to append, in completion order.
	Records []MetadataRecord `json:"records,omitempty"`

	// Images carries the decoded properties of every kept image.
	Images []ImageInfo `json:"images,omitempty"`

	// Pages is the number of pages fetched successfully.
	Pages int `json:"pages"`

	// Found is the number of image references that passed the extension filter.
	Found int `json:"found"`

	// Downloaded is the number of images written to disk.
	Downloaded int `json:"downloaded"`

	// Duplicates counts URL-level and content-level duplicates.
	Duplicates int `json:"duplicates"`

	// Failed counts page fetch failures and image download failures.
	Failed int `json:"failed"`

	// Skipped is true when the task did not start because shutdown was
	// already requested.
	Skipped bool `json:"skipped,omitempty"`
}

// RunSummary aggregates the counters of every completed task.
type RunSummary struct {
	// OutputDir is the directory images and metadata are written to.
	OutputDir string `json:"output_dir"`

	// MetadataPath is the path of the metadata file.
	MetadataPath string `json:"metadata_path"`

	// SitesTotal is the number of seeds in the run.
	SitesTotal int `json:"sites_total"`

	// SitesVisited is the number of seeds whose task ran to completion.
	SitesVisited int `json:"sites_visited"`

	// Pages is the number of pages fetched successfully.
	Pages int `json:"pages"`

	Found      int `json:"found"`
	Downloaded int `json:"downloaded"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`

	// Resumed is the number of records loaded from a previous run.
	Resumed int `json:"resumed"`

	// Interrupted is true when the run stopped because of a shutdown request.
	Interrupted bool `json:"interrupted"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Add folds a task result into the summary.
// Skipped tasks do not count as visited sites.
func (s *RunSummary) Add(r TaskResult) {
	if r.Skipped {
		return
	}
	s.SitesVisited++
	s.Pages += r.Pages
	s.Found += r.Found
	s.Downloaded += r.Downloaded
	s.Duplicates += r.Duplicates
	s.Failed += r.Failed
}

// Elapsed returns the wall time of the run.
func (s *RunSummary) Elapsed() time.Duration {
	if s.FinishedAt.IsZero() {
		return time.Since(s.StartedAt)
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
