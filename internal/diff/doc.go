// Package diff compares a cached page manifest against freshly
// discovered pages, classifying every page as unchanged, modified,
// added, or removed. The result drives incremental sync: only modified
// and added pages are refetched.
//
// Change detection is deliberately conservative. When no signal says a
// page changed, it is reported unchanged: a stale cached page costs one
// sync cycle of freshness, while eager invalidation refetches entire
// sites. Do not "fix" this bias toward detecting more changes.
package diff
