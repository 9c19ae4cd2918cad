// Package procrun supervises external processes: spawn, wall-clock timeout,
// await, and stdout/stderr capture. The media prober, the track transcoder,
// the capability detector, and the thumbnail generator all drive their
// binaries through this one abstraction.
package procrun
