// Package media generates poster thumbnails for processed assets.
//
// A still frame is grabbed from the source one second in, then resized and
// re-encoded as a JPEG poster. Thumbnail generation is best-effort: a failure
// leaves the asset without a poster but never fails the run.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/disintegration/imaging"

	"hls-vault/internal/capability"
	"hls-vault/internal/logging"
	"hls-vault/internal/procrun"
)

// posterWidth is the output width; height follows the source aspect ratio.
const posterWidth = 640

const grabTimeout = time.Minute

// ThumbnailGenerator produces JPEG posters from video sources.
type ThumbnailGenerator struct {
	encoder capability.EncoderConfig
}

// NewThumbnailGenerator creates a generator bound to the detected encoder.
func NewThumbnailGenerator(encoder capability.EncoderConfig) *ThumbnailGenerator {
	return &ThumbnailGenerator{encoder: encoder}
}

// Generate writes a poster for inputPath to outputPath. The frame is taken
// one second in so black lead-in frames are skipped.
func (g *ThumbnailGenerator) Generate(ctx context.Context, inputPath, outputPath string) error {
	frame := filepath.Join(filepath.Dir(outputPath), ".frame_"+filepath.Base(outputPath))
	defer func() {
		if err := os.Remove(frame); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove frame grab %s: %v", frame, err)
		}
	}()

	res, err := procrun.Run(ctx, grabTimeout, g.encoder.FFmpegPath,
		"-ss", "00:00:01", "-i", inputPath, "-vframes", "1", "-y", frame)
	if err != nil {
		return fmt.Errorf("grabbing frame from %s: %w", inputPath, err)
	}
	if !res.Success() {
		return fmt.Errorf("grabbing frame from %s: exit %d: %s", inputPath, res.ExitCode, res.Stderr)
	}

	img, err := imaging.Open(frame, imaging.AutoOrientation(true))
	if err != nil {
		return fmt.Errorf("decoding frame grab: %w", err)
	}

	poster := imaging.Resize(img, posterWidth, 0, imaging.Lanczos)
	if err := imaging.Save(poster, outputPath, imaging.JPEGQuality(85)); err != nil {
		return fmt.Errorf("writing poster %s: %w", outputPath, err)
	}

	logging.Debug("poster written: %s", outputPath)
	return nil
}
