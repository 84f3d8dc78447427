// Package pipeline runs a gene calling pass over a set of tiles.
//
// It is the composition root for the iss layers: it imports l1colors,
// l2codes, l3background (through l4omp), l4omp and l5dedup, and none of
// those packages import pipeline/. Colour extraction and persistence are
// injected through the ColorSource and SpotSink interfaces.
//
// Dependency rule: pipeline may import any iss layer and internal/config;
// layers never import pipeline.
package pipeline
