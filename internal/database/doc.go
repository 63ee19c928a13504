// Package database provides SQLite-backed storage for cross-run crawl
// state: the fetch history and the robots policy cache.
//
// The database is advisory. Every caller treats it as an optimization:
// a crawl with no database still works, it just refetches robots.txt
// per run and answers "docdex list" from the cache directory alone.
//
// One database file serves all cache entries. A single connection is
// used because SQLite supports only one writer, and docdex runs one
// crawl target per process.
package database
