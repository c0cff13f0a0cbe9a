// Package firmware is the boot and soft-reset lifecycle controller.
//
// One logical thread of control drives an explicit state machine:
//
//	cold-init → subsystems-up → fs-ready → running-bootscripts →
//	interactive → executing-remote-script → soft-reset-teardown →
//	(back to subsystems-up)
//
// Cold init happens once per process; every other state is re-entered on
// each soft reset. Subsystems come up in registration order and go down
// in the exact reverse of the order recorded for the cycle. The validated
// memory layout is process-lifetime and survives soft resets untouched;
// the scripting runtime arena is cycle-lifetime and is swept at every
// teardown.
//
// Script faults are caught at the loop boundary, reported, and never
// propagate past the controller. Configuration faults before any init and
// uncaught faults at the top of the lifecycle both land in a Beacon, a
// repeating visible fault indication.
package firmware
