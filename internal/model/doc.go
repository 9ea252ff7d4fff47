// Package model defines the data structures shared by the crawler, the
// download worker, the metadata store and the reports.
//
// This package contains the following main types:
//   - PageVisit: A page waiting in a crawl frontier with its remaining depth
//   - ImageReference: An image URL discovered on a page
//   - MetadataRecord: One row of the resumable metadata file
//   - ImageInfo: Decoded properties of a kept image (format, size, EXIF)
//   - TaskResult: What one crawl task produced for its seed
//   - RunSummary: Aggregate counters for a whole run
//
// The models live in their own package so that crawler, download, metadata,
// database and report can share them without import cycles.
package model
