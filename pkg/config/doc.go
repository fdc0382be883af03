// Package config loads declarative pipeline definitions and the settings of
// the anlchain command.
//
// # Pipelines
//
// A pipeline names an application, the namespaces its module classes are
// resolved in, and the ordered list of modules with their parameters. It is
// written either in CUE, as the top-level "pipeline" value checked against
// the built-in #Pipeline schema, or in YAML with the same fields:
//
//	pipeline: {
//		name:       "Demo"
//		num_loop:   1000
//		namespaces: ["sample"]
//		modules: [
//			{class: "Generator", params: {mean: 2.5, seed: 7}},
//			{class: "Histogram", id: "hist", params: {bins: 64, range: {vec: [0, 10]}}},
//		]
//	}
//
// Parameters keep the order in which they are written, because they are
// committed to the modules in that order. Vectors of two or three components
// are written as {vec: [...]}; plain lists become string, int or float
// vectors. Pipeline.App turns a definition into a chain.App.
//
// # Settings
//
// Settings are read from a YAML file and then overridden by ANLCHAIN_*
// environment variables, for example ANLCHAIN_LOG_LEVEL or
// ANLCHAIN_TELEMETRY_EXPORTER. Both pipelines and settings are validated
// with struct tags before use.
//
// # Watching
//
// Watcher reloads a pipeline when its files change, collapsing bursts of
// file system events into one reload.
package config
