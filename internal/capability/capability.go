package capability

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"hls-vault/internal/logging"
	"hls-vault/internal/procrun"
)

// Error indicates that an encoder or prober binary could not be used. It is
// raised when a supervised process fails to start, not during detection.
type Error struct {
	Binary string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("encoder binary %q unusable: %v", e.Binary, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// EncoderConfig is the run-scoped result of capability detection.
type EncoderConfig struct {
	FFmpegPath  string
	FFprobePath string
	// HWAccel is the detected hardware encoder family: "nvenc",
	// "videotoolbox", "qsv", or empty for software encoding.
	HWAccel string
}

// VideoCodecArgs returns the codec selection arguments for the detected
// encoder. Hardware variants substitute their own preset handling.
func (c EncoderConfig) VideoCodecArgs() []string {
	for _, hw := range hwEncoders {
		if hw.name == c.HWAccel {
			return append([]string{}, hw.codecArgs...)
		}
	}
	return []string{"-c:v", "libx264"}
}

// hwEncoder is one entry in the ordered hardware-encoder preference table.
type hwEncoder struct {
	name      string // family name stored in EncoderConfig.HWAccel
	encoder   string // substring looked up in the -encoders listing
	codecArgs []string
}

// Preference order: discrete GPU first, then the platform media engine, then
// integrated quick-sync. First available entry wins.
var hwEncoders = []hwEncoder{
	{name: "nvenc", encoder: "h264_nvenc", codecArgs: []string{"-c:v", "h264_nvenc", "-preset", "fast"}},
	{name: "videotoolbox", encoder: "h264_videotoolbox", codecArgs: []string{"-c:v", "h264_videotoolbox", "-realtime", "1"}},
	{name: "qsv", encoder: "h264_qsv", codecArgs: []string{"-c:v", "h264_qsv", "-preset", "fast"}},
}

// Fixed fallback locations, tried in order when no path is configured.
var ffmpegSearchPaths = []string{
	"/opt/homebrew/bin/ffmpeg",
	"/usr/local/bin/ffmpeg",
	"/usr/bin/ffmpeg",
}

const (
	defaultFFmpegPath  = "ffmpeg"
	defaultFFprobePath = "ffprobe"
	probeTimeout       = 5 * time.Second
)

// Detector resolves encoder binaries and hardware support.
type Detector struct {
	configuredFFmpeg  string
	configuredFFprobe string
	hardwareEnabled   bool
}

// NewDetector creates a detector. Empty configured paths enable auto-detection.
func NewDetector(ffmpegPath, ffprobePath string, hardwareEnabled bool) *Detector {
	return &Detector{
		configuredFFmpeg:  ffmpegPath,
		configuredFFprobe: ffprobePath,
		hardwareEnabled:   hardwareEnabled,
	}
}

// Detect resolves binary paths and probes hardware encoders. It never returns
// an error: a missing binary keeps the conservative default and is discovered
// as a process-start failure later, which callers must treat as fatal for the
// affected track.
func (d *Detector) Detect(ctx context.Context) EncoderConfig {
	cfg := EncoderConfig{
		FFmpegPath:  defaultFFmpegPath,
		FFprobePath: defaultFFprobePath,
	}

	if d.configuredFFmpeg != "" && binaryExists(d.configuredFFmpeg) {
		cfg.FFmpegPath = d.configuredFFmpeg
	} else {
		for _, candidate := range ffmpegSearchPaths {
			if binaryExists(candidate) {
				cfg.FFmpegPath = candidate
				break
			}
		}
		if cfg.FFmpegPath == defaultFFmpegPath {
			if resolved, err := exec.LookPath(defaultFFmpegPath); err == nil {
				cfg.FFmpegPath = resolved
			}
		}
	}

	if d.configuredFFprobe != "" && binaryExists(d.configuredFFprobe) {
		cfg.FFprobePath = d.configuredFFprobe
	} else if cfg.FFmpegPath != defaultFFmpegPath {
		// The prober ships alongside the encoder
		sibling := strings.Replace(cfg.FFmpegPath, "ffmpeg", "ffprobe", 1)
		if binaryExists(sibling) {
			cfg.FFprobePath = sibling
		}
	} else if resolved, err := exec.LookPath(defaultFFprobePath); err == nil {
		cfg.FFprobePath = resolved
	}

	if d.hardwareEnabled {
		cfg.HWAccel = d.detectHardware(ctx, cfg.FFmpegPath)
	}

	if cfg.HWAccel == "" {
		logging.Info("hardware acceleration: software encoding (CPU only)")
	} else {
		logging.Info("hardware acceleration: %s detected", cfg.HWAccel)
	}

	return cfg
}

// detectHardware lists available encoders once and returns the first family
// from the preference table present in the listing.
func (d *Detector) detectHardware(ctx context.Context, ffmpegPath string) string {
	res, err := procrun.Run(ctx, probeTimeout, ffmpegPath, "-hide_banner", "-encoders")
	if err != nil || !res.Success() {
		logging.Debug("encoder listing unavailable (%v), assuming software encoding", err)
		return ""
	}

	for _, hw := range hwEncoders {
		if strings.Contains(res.Stdout, hw.encoder) {
			return hw.name
		}
	}
	return ""
}

func binaryExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Mode()&0o111 != 0
}
