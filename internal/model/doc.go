// Package model defines the core data types shared across docdex:
// page descriptors produced by source discovery, page records persisted
// in the cache manifest, crawl checkpoints, and crawl/diff results.
//
// Types in this package are plain data with small helper methods.
// They perform no I/O; persistence lives in the cache and crawler packages.
package model
