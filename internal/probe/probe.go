// Package probe extracts container metadata from uploaded media files using
// the ffprobe binary. The only field the service needs is the duration, which
// is truncated to whole seconds.
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"hls-vault/internal/logging"
	"hls-vault/internal/metrics"
	"hls-vault/internal/procrun"
)

// ProbeError reports a failed or unparseable probe. Probe failures are fatal
// for the asset: without a duration the file is presumed unreadable.
type ProbeError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("probe of %s failed: %v (%s)", e.Path, e.Err, e.Stderr)
	}
	return fmt.Sprintf("probe of %s failed: %v", e.Path, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Info is the parsed probe result.
type Info struct {
	// DurationSeconds is the container duration truncated to whole seconds.
	DurationSeconds int
}

// ffprobe emits duration as a decimal string inside the format section.
type formatOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Prober runs ffprobe against media files.
type Prober struct {
	ffprobePath string
	timeout     time.Duration
}

// NewProber creates a prober using the given binary path. A zero timeout
// defaults to one minute.
func NewProber(ffprobePath string, timeout time.Duration) *Prober {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Prober{ffprobePath: ffprobePath, timeout: timeout}
}

// Probe inspects the file at path and returns its metadata.
func (p *Prober) Probe(ctx context.Context, path string) (Info, error) {
	start := time.Now()
	res, err := procrun.Run(ctx, p.timeout,
		p.ffprobePath, "-v", "quiet", "-print_format", "json", "-show_format", path)
	metrics.ProbeDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		return Info{}, &ProbeError{Path: path, Err: err}
	}
	if !res.Success() {
		err := res.Err
		if err == nil {
			err = fmt.Errorf("exit code %d", res.ExitCode)
		}
		return Info{}, &ProbeError{Path: path, Stderr: res.Stderr, Err: err}
	}

	var out formatOutput
	if err := json.Unmarshal([]byte(res.Stdout), &out); err != nil {
		return Info{}, &ProbeError{Path: path, Err: fmt.Errorf("unparseable probe output: %w", err)}
	}
	if out.Format.Duration == "" {
		return Info{}, &ProbeError{Path: path, Err: fmt.Errorf("probe output missing duration")}
	}

	seconds, err := strconv.ParseFloat(out.Format.Duration, 64)
	if err != nil {
		return Info{}, &ProbeError{Path: path, Err: fmt.Errorf("invalid duration %q: %w", out.Format.Duration, err)}
	}

	info := Info{DurationSeconds: int(seconds)}
	logging.Debug("probed %s: duration %ds", path, info.DurationSeconds)
	return info, nil
}
