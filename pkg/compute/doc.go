// Package compute keeps buffers coherent between host memory and device
// memory across several execution contexts.
//
// A buffer owns one Stream per context, created lazily the first time the
// context maps it. Each Stream tracks which side holds the newest data and
// copies between sides only when a side is mapped while stale. Writes are
// detected by intent: unmapping a target mapping marks the other side dirty.
//
// Streams are touched only from the thread a context is assigned to; the
// buffer serialises Stream creation and nothing else.
package compute
