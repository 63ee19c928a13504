// Package cache implements the on-disk layout for ingested
// documentation.
//
// Each (name, version) target owns one directory under the cache
// root:
//
//	<root>/<name>/<version>/
//	    index.json        entry metadata (source, counts, artifacts)
//	    sitemap.json      page manifest used by incremental sync
//	    .checkpoint.json  crawl progress, removed on completion
//	    pages/<slug>.md   extracted pages with a frontmatter header
//
// All JSON artifacts are written atomically (temp file then rename)
// so an interrupted run never leaves a half-written index behind.
package cache
