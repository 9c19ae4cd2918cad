// Package pipeline drives an uploaded asset from probe to playable HLS
// output.
//
// One Run value carries all state for a single asset: the detected encoder,
// issued key material, per-track results and segment mappings. Nothing is
// shared between runs, so concurrent assets never interfere.
//
// The pipeline guarantees a terminal state: every run ends with the asset
// marked completed or failed, including when a step panics. The job queue
// relies on that guarantee for meaningful retries.
package pipeline
