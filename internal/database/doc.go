// Package database provides SQLite-based run history for ImCrawler.
//
// The HistoryDB stores:
//   - One row per crawl run with its summary counters
//   - One row per kept image with its source URLs, content hash and the
//     properties observed while decoding it
//
// The metadata file in each output directory remains the source of truth
// for resuming; the history database is a catalog across output directories
// and is never read by the crawl itself.
//
// SQLite (via modernc.org/sqlite) keeps the history in a single file, needs
// no CGO and is fast enough for the write rate of a crawl.
package database
