package transcode

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"hls-vault/internal/capability"
	"hls-vault/internal/keys"
	"hls-vault/internal/logging"
	"hls-vault/internal/metrics"
	"hls-vault/internal/procrun"
)

// TrackEncodeError reports a failed track encode. Track failures are isolated:
// one bad rendition never fails the asset while siblings succeed.
type TrackEncodeError struct {
	TrackID  string
	ExitCode int
	TimedOut bool
	Stderr   string
	Err      error
}

func (e *TrackEncodeError) Error() string {
	if e.TimedOut {
		return fmt.Sprintf("track %s timed out", e.TrackID)
	}
	return fmt.Sprintf("track %s encode failed (exit %d): %v", e.TrackID, e.ExitCode, e.Err)
}

func (e *TrackEncodeError) Unwrap() error {
	return e.Err
}

// JobResult is the outcome of one track encode.
type JobResult struct {
	Track    TrackSpec
	Material keys.Material
	Duration time.Duration
	Err      error
}

// Succeeded reports whether the track produced a usable playlist.
func (r JobResult) Succeeded() bool {
	return r.Err == nil
}

// Job tracks one running encode.
type Job struct {
	track      TrackSpec
	material   keys.Material
	handle     *procrun.Handle
	playlist   string
	startupErr error
}

// Transcoder launches per-track encodes against one source file.
type Transcoder struct {
	encoder capability.EncoderConfig
	perf    PerfSettings
	timeout time.Duration
}

// NewTranscoder creates a transcoder bound to the run-scoped encoder config.
func NewTranscoder(encoder capability.EncoderConfig, perf PerfSettings, timeout time.Duration) *Transcoder {
	return &Transcoder{encoder: encoder, perf: perf, timeout: timeout}
}

// TempSegmentPattern is the encoder-side segment naming template for a track.
// Segments carry this transitional name until obfuscation renames them.
func TempSegmentPattern(outputDir, trackID string) string {
	return filepath.Join(outputDir, "temp_"+trackID+"_%03d.ts")
}

// TempSegmentGlob matches a track's transitional segments in directory order.
func TempSegmentGlob(outputDir, trackID string) string {
	return filepath.Join(outputDir, "temp_"+trackID+"_*.ts")
}

// Start launches the encode for one track without blocking. The returned job
// must be waited on. A start failure (missing binary) is reported through
// Wait as a *capability.Error so callers handle both paths uniformly.
func (t *Transcoder) Start(ctx context.Context, inputPath, outputDir string, track TrackSpec, mat keys.Material) *Job {
	playlist := filepath.Join(outputDir, track.PlaylistName())
	args := t.buildArgs(inputPath, outputDir, track, mat, playlist)

	logging.Debug("track %s: %s %v", track.ID, t.encoder.FFmpegPath, args)

	handle, err := procrun.Start(ctx, t.timeout, t.encoder.FFmpegPath, args...)
	if err != nil {
		return &Job{
			track:      track,
			material:   mat,
			playlist:   playlist,
			startupErr: &capability.Error{Binary: t.encoder.FFmpegPath, Err: err},
		}
	}
	return &Job{track: track, material: mat, handle: handle, playlist: playlist}
}

// Wait blocks until the encode finishes and classifies the outcome. Success
// requires a zero exit and a playlist on disk.
func (j *Job) Wait() JobResult {
	res := JobResult{Track: j.track, Material: j.material}

	if j.startupErr != nil {
		res.Err = j.startupErr
		metrics.TrackEncodesTotal.WithLabelValues(string(j.track.Kind), "failure").Inc()
		return res
	}

	proc := j.handle.Wait()
	res.Duration = proc.Duration
	metrics.TrackEncodeDuration.WithLabelValues(string(j.track.Kind)).Observe(proc.Duration.Seconds())

	switch {
	case proc.TimedOut:
		res.Err = &TrackEncodeError{TrackID: j.track.ID, TimedOut: true, Stderr: tail(proc.Stderr), Err: proc.Err}
		metrics.TrackEncodesTotal.WithLabelValues(string(j.track.Kind), "timeout").Inc()
	case !proc.Success():
		res.Err = &TrackEncodeError{TrackID: j.track.ID, ExitCode: proc.ExitCode, Stderr: tail(proc.Stderr), Err: proc.Err}
		metrics.TrackEncodesTotal.WithLabelValues(string(j.track.Kind), "failure").Inc()
	default:
		if _, err := os.Stat(j.playlist); err != nil {
			res.Err = &TrackEncodeError{TrackID: j.track.ID, Err: fmt.Errorf("encoder exited clean but playlist missing: %w", err)}
			metrics.TrackEncodesTotal.WithLabelValues(string(j.track.Kind), "failure").Inc()
		} else {
			metrics.TrackEncodesTotal.WithLabelValues(string(j.track.Kind), "success").Inc()
		}
	}

	if res.Err != nil {
		logging.Warn("track %s failed after %s: %v", j.track.ID, res.Duration.Round(time.Millisecond), res.Err)
	} else {
		logging.Info("track %s encoded in %s", j.track.ID, res.Duration.Round(time.Millisecond))
	}
	return res
}

// buildArgs assembles the encoder command line for one track. Audio tracks
// drop video (-vn); video tracks drop audio (-an) and scale to the target
// resolution. Both emit an encrypted segmented playlist.
func (t *Transcoder) buildArgs(inputPath, outputDir string, track TrackSpec, mat keys.Material, playlist string) []string {
	args := []string{"-i", inputPath}

	if track.Kind == TrackAudio {
		args = append(args,
			"-vn",
			"-c:a", track.Codec,
			"-b:a", track.Bitrate,
			"-threads", strconv.Itoa(t.perf.Threads),
		)
	} else {
		args = append(args, "-an")
		args = append(args, t.encoder.VideoCodecArgs()...)
		if t.encoder.HWAccel == "" {
			args = append(args,
				"-preset", t.perf.Preset,
				"-tune", t.perf.Tune,
			)
		}
		args = append(args,
			"-b:v", track.Bitrate,
			"-vf", fmt.Sprintf("scale=%d:%d", track.Width, track.Height),
			"-threads", strconv.Itoa(t.perf.Threads),
			"-crf", strconv.Itoa(t.perf.CRF),
		)
	}

	args = append(args,
		"-hls_time", strconv.Itoa(t.perf.SegmentSeconds),
		"-hls_list_size", "0",
		"-hls_segment_filename", TempSegmentPattern(outputDir, track.ID),
		"-hls_key_info_file", mat.KeyInfoPath,
		"-y", playlist,
	)
	return args
}

// tail keeps the last chunk of encoder stderr for error reporting.
func tail(s string) string {
	const max = 512
	if len(s) <= max {
		return s
	}
	return s[len(s)-max:]
}
