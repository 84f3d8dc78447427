// Package l4omp owns Layer 4 (Gene Matching) of the calling pipeline.
//
// Responsibilities: the per-spot orthogonal matching pursuit state machine
// (INIT → BACKGROUND_FIT → ITERATE → TERMINAL), weighted least squares refits
// of background ∪ active genes, optional per-stage tracking, and the batch
// driver that fans spots out over a bounded worker pool.
// Key types: Params, Matcher, SpotFit, Track.
//
// Stage numbering: stage 0 is the initial colour, stage 1 the background fit,
// and stage 2+k the fit after the (k+1)-th accepted gene.
//
// Dependency rule: L4 may depend on L1–L3, but never on L5+.
package l4omp
