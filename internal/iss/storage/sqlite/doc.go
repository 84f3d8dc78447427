// Package sqlite persists calling runs: one row per run, one row per kept
// spot, and one row per non-zero coefficient of each spot.
//
// Spot info and coefficient rows share the (run_id, spot_no) key and are
// always written, pruned and renumbered together in a single transaction, so
// a spot never exists in one table without the other.
package sqlite
