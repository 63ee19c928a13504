// Package config holds all runtime configuration for docdex.
//
// Configuration flows in one direction: the CLI populates a Config from
// flags and the optional .docdex YAML file, validates it once, and passes
// it (or values derived from it) into component constructors. Core
// packages never read the environment or files themselves, which keeps
// them testable and keeps this package the single place defaults live.
package config
