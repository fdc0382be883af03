// Package wasmmod runs analysis modules compiled to WebAssembly.
//
// A WASM module class is described by a YAML manifest next to its binary:
//
//	name: EnergyCut
//	version: "1.0"
//	description: Drops events below a threshold
//	module: energy_cut.wasm
//	checksum: 3f1a...       # optional hex SHA-256 of the binary
//	memory_limit_pages: 64  # optional, 64KiB pages
//	timeout: 5s             # optional, per hook call
//	parameters:
//	  - name: threshold
//	    type: float         # int, float, string or bool
//	    default: "10"
//	    unit: keV
//	exports:
//	  analyze: process      # optional export name overrides
//
// The guest implements any of the hooks startup, prepare, initialize,
// begin_run, analyze, end_run and exit as exports of type () -> i32 that
// return a status code (0 OK, 1 SKIP, 2 SKIP_ERROR, 3 QUIT, 4 QUIT_ERROR).
// Parameters are read through the functions of the "env" host module; see
// registerHostFunctions. WASI preview 1 is available, and an exported
// _initialize function is called once after instantiation.
//
// Classes are registered in a chain namespace:
//
//	classes, err := wasmmod.LoadDir("modules/", wasmmod.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	ns := chain.NewNamespace("Wasm")
//	if err := wasmmod.Register(ns, classes...); err != nil {
//	    return err
//	}
package wasmmod
