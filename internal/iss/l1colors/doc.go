// Package l1colors owns Layer 1 (Spot Colours) of the calling data model.
//
// Responsibilities: batches of per-spot intensity matrices [n × rounds ×
// channels], selection of used rounds/channels, normalisation by
// color_norm_factor, the NaN precondition check, and spot intensity used by
// the initial intensity pre-filter.
// Key types: Colors.
//
// Dependency rule: L1 depends only on the iss root package.
package l1colors
