// Package log builds the application's slog loggers.
//
// It provides a handler wrapper that masks credential-bearing
// attributes before they reach the underlying handler. Crawls of gated
// documentation sites carry Authorization headers and cookies from the
// per-site config, and those values end up as log attributes on request
// failures; masking at the handler level means no call site has to
// remember to redact them.
package log
