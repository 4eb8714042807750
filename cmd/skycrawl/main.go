// Package main provides the entry point for the skycrawl CLI.
//
// skycrawl walks the Bluesky follow graph around one account: it lists who
// the root follows, who those accounts follow, and looks up the profile of
// every identity it meets exactly once.
//
// Usage:
//
//	skycrawl crawl <handle-or-did>
//	skycrawl history [handle-or-did]
//	skycrawl compare <run-a> <run-b>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
