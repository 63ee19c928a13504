// Package extract converts fetched HTML into the markdown stored in
// the page cache.
//
// The crawler depends only on the Extractor interface; the default
// HTMLExtractor prunes chrome (navigation, scripts, sidebars) with
// goquery, picks the main content region using framework-specific
// selectors, and converts it with html-to-markdown. When selector
// heuristics find nothing useful it falls back to readability
// extraction, which trades precision for robustness on unknown
// layouts.
package extract
