// Package engine composes the trigger configuration, authorization state, a
// run-lock and the history ledger into one state machine.
//
// # Overview
//
// All mutations go through a single mutex so transitions serialize: config
// saves, enable toggles, authorize/revoke, manual tests and history appends.
// Observers never see engine internals; every change publishes an immutable
// Snapshot on the event bus.
//
// # States
//
//   - Unauthorized
//   - Authorized (enabled or disabled)
//   - TestRunning: orthogonal to enabled/disabled; a boolean run-lock, not a
//     queue. A second test request while one is in flight is dropped.
//   - RevokePending: a confirmation sub-state gating the actual revoke.
//
// # Automatic firing
//
// The engine does not own timers for scheduled fires; the autofire worker
// (worker.go) reads NextFire from snapshots, sleeps, invokes the runner and
// appends an auto record. Any trigger completion also releases a pending
// run-lock: a fresh execution result is treated as proof the prior test is
// no longer outstanding.
package engine
