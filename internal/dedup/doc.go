// Package dedup owns the state shared by all crawl tasks of a run: the set
// of image URLs already claimed, the set of content hashes already kept, the
// next free file index, the run-wide set of visited pages, and the run
// counters.
//
// Every check-and-insert is a single critical section, so two tasks can
// never claim the same URL, keep the same content, or receive the same
// index.
package dedup
