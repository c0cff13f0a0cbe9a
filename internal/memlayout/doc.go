// Package memlayout models the static partitioning of the board's physical
// address space: memory banks, purpose-tagged regions carved from those
// banks, and named allocations carved from regions.
//
// The model is validated exactly once at process start. Validate returns an
// immutable Layout whose per-purpose extents are handed to the external
// allocators (heap arena, frame-buffer allocator, DMA buffer providers).
// Nothing here allocates memory - the package only proves that the declared
// partitioning is consistent before any subsystem is allowed to run.
package memlayout
