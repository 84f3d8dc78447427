// Package l3background owns Layer 3 (Background) of the calling pipeline.
//
// Responsibilities: per-spot weighted removal of the channel background
// before gene matching.
// Key functions: Remove, FitSpot.
//
// Dependency rule: L3 may depend on L1 and L2, but never on L4+.
package l3background
