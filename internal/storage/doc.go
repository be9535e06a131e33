package storage

// Package storage persists the trigger configuration and execution history.
//
// It currently supports:
//   - Whole-object schedule config replace/load
//   - Append-only trigger history (bounded by the engine, compacted here)
//
// Drivers: "file" (dependency-free JSON snapshot + JSONL journal) and
// "sqlite" (optional build tag). An empty driver disables persistence and the
// engine runs memory-only.
