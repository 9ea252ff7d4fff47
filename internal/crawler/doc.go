// Package crawler discovers images on seed sites and hands them to the
// downloader.
//
// # Components
//
//   - Fetcher: GETs a page, rejects non-2xx and non-HTML responses, and
//     decodes the body to UTF-8
//   - Parser: extracts <img> sources (with data-src fallback for lazy
//     loading) and <a href> targets, resolved to absolute http(s) URLs
//   - Task: crawls one seed at a time
//
// # Traversal
//
// A Task keeps an explicit stack of pages, each carrying its remaining
// depth. A page is fetched, all of its images are downloaded, and then its
// same-origin links are pushed so that they are visited depth-first in
// document order. The visited-page set is owned by the Gate and shared by
// every task of the run, so a page linked from several seeds is fetched
// once.
//
// # Usage
//
//	task := crawler.NewTask(fetcher, gate, worker, shutdown, outputDir,
//	    crawler.WithExtensions(cfg.Extensions))
//	result := task.Crawl(ctx, "https://example.com/gallery", 1)
package crawler
