// Package l2codes owns Layer 2 (Codes) of the calling data model.
//
// Responsibilities: the immutable bled-code dictionary, per-channel
// background codes, the stable gene/background → column mapping and the
// sparse coefficient rows that use it.
// Key types: Dictionary, Background, Columns, SparseRow.
//
// Dependency rule: L2 may depend on L1, but never on L3+.
package l2codes
