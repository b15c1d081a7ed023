// Package main provides the entry point for the domainmap CLI.
//
// domainmap crawls a web domain with a pool of workers and prints the link
// graph it found as a sitemap.
//
// Usage:
//
//	domainmap crawl example.com
//	domainmap crawl --format markdown --output site.md example.com
//	domainmap history example.com
//
// See --help for all available options.
package main

func main() {
	Execute()
}
