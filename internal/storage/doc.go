// Package storage persists recorded instruction batches so the history
// survives restarts.
//
// Only metadata is stored: instruction name, record time and the per-job
// offsets. Actions are closures and are never persisted.
package storage
