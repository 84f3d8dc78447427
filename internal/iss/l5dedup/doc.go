// Package l5dedup owns Layer 5 (Duplicate Resolution) of the calling
// pipeline.
//
// Responsibilities: mapping local spot coordinates to global ones through
// tile origins and deciding, for spots detected in more than one overlapping
// tile, which detection survives. The output is a keep mask aligned with the
// input; records are never modified.
// Key types: Geometry, Spot, Resolver, Rule.
//
// Dependency rule: L5 may depend on L1–L4, but never on the pipeline.
package l5dedup
