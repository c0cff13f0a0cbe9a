// Package board loads and validates board definition files.
//
// A board file is the single static configuration surface of the firmware:
// memory banks, purpose-tagged regions, named allocations, I2C bus
// assignments, codec thresholds, and the fixed script names. The file is
// checked against an embedded CUE schema before it is decoded, so malformed
// definitions fail with positions instead of half-decoded structs.
//
// Board configuration is consumed exactly once, at process start, to build
// the validated memory layout. Nothing re-reads it piecemeal afterwards.
package board
