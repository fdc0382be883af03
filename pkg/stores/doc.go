// Package stores keeps the history of analysis runs in SQLite: one row per
// run with its lifecycle phases, the modules and parameter values it was
// gated with, the per-module event counters and an append-only event log.
//
// The schema ships as embedded golang-migrate migrations. A Recorder plugs
// the store into a chain as an observer.
package stores
