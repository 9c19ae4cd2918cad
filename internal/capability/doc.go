// Package capability locates the encoder and prober binaries and probes for
// hardware-accelerated H.264 encoders.
//
// Detection order for binaries: explicitly configured paths, then a fixed
// list of well-known install locations, then the execution PATH. Nothing here
// fails hard: if no binary is found the conservative default path is kept and
// the absence surfaces as a process-start failure on first use.
//
// The hardware probe invokes the encoder's "-encoders" listing once and picks
// the first available encoder from an ordered preference table. The probe is
// a pure read; callers cache the resulting EncoderConfig for the lifetime of
// one pipeline run.
package capability
