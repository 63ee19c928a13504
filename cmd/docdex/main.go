// Package main provides the entry point for the docdex CLI.
//
// docdex ingests documentation websites into a local cache of markdown
// pages, keeps the cache fresh with incremental syncs, and reports on
// what it holds.
//
// Usage:
//
//	docdex fetch <url>
//	docdex sync <name[@version]>
//	docdex list
//	docdex status <name[@version]>
//
// See --help for all available options.
package main

// main is the entry point for docdex.
func main() {
	Execute()
}
