// Package main provides the entry point for the ImCrawler CLI.
//
// ImCrawler reads a list of seed URLs, crawls each site concurrently and
// downloads the images it finds into one output directory, skipping images
// it already has. Interrupted runs resume where they stopped.
//
// Usage:
//
//	imcrawler <seed_list_file>
//	imcrawler crawl -d 2 -o photos seeds.txt
//	imcrawler history
//
// See --help for all available options.
package main

// main is the entry point for ImCrawler.
func main() {
	Execute()
}
