// Package domain contains the core types of the embedding driver:
// simulation snapshots, embedding parameters, iteration records, the
// error taxonomy and lifecycle hooks.
//
// The types here are deliberately free of infrastructure concerns.
// Adapters (process, tinker, stores) and the runtime loop depend on this
// package; it depends on nothing but the standard library.
package domain
