// Package session runs one crawl over a seed list.
//
// A Session loads the metadata of the output directory, builds the shared
// dedup gate, HTTP client and download worker, and runs one crawl task per
// seed on a bounded errgroup. Each finished task is committed to the
// metadata file before its counters become visible in the run summary.
//
// Shutdown is cooperative: Trigger stops dispatching new seeds and makes
// running tasks finish the image in flight and return. Cancelling the
// context passed to Run aborts in-flight requests as well.
package session
