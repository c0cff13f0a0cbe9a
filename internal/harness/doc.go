// Package harness runs scripted boot scenarios end to end and renders
// the resulting boot journal as a transcript for golden comparison.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: two_cycle_deployed
//	description: "What this scenario demonstrates"
//	cycles: 2
//	volume: formatted        # formatted (default) | blank | broken
//	scripts:
//	  main.js: |
//	    console.log("deployed")
//	turns:
//	  - line: "1 + 1"
//	  - exit: true
//	remote_script: 'led.toggle()'
//
// The volume field selects the flash state at power-on: formatted is a
// fresh usable filesystem, blank forces the format-and-retry path, and
// broken makes formatting impossible so the frozen bootstrap runs.
//
// # Determinism
//
// Every scenario executes with fixed cycle tokens, a frozen wall clock,
// a fixed device UID, and a fixed entropy seed, so the rendered
// transcript is byte-identical across runs and machines. Golden files
// live in testdata/golden; regenerate with:
//
//	go test ./internal/harness -update
package harness
