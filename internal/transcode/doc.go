// Package transcode runs per-track HLS encodes.
//
// Each track (a video rendition or an audio-only variant) is produced by one
// supervised encoder process writing an encrypted playlist plus temporary
// segment files into the asset output directory. Starts are non-blocking:
// the orchestrator launches tracks and waits on the returned jobs, so the
// concurrency policy lives entirely outside this package.
package transcode
