package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"hls-vault/internal/capability"
	"hls-vault/internal/database"
	"hls-vault/internal/keys"
	"hls-vault/internal/logging"
	"hls-vault/internal/manifest"
	"hls-vault/internal/media"
	"hls-vault/internal/metrics"
	"hls-vault/internal/obfuscate"
	"hls-vault/internal/probe"
	"hls-vault/internal/transcode"
)

// Options configures the pipeline.
type Options struct {
	HLSDir         string
	ThumbnailDir   string
	Tracks         []transcode.TrackSpec
	Perf           transcode.PerfSettings
	ParallelJobs   int64
	ProcessTimeout time.Duration
}

// Pipeline processes uploaded assets into encrypted HLS output.
type Pipeline struct {
	db       *database.Database
	detector *capability.Detector
	opts     Options
}

// New creates a pipeline.
func New(db *database.Database, detector *capability.Detector, opts Options) *Pipeline {
	return &Pipeline{db: db, detector: detector, opts: opts}
}

// Process runs one asset to a terminal state. The returned error reports a
// failed run; the asset row is already marked failed by the time it returns.
// A panic anywhere in the run is recovered and also lands the asset in the
// failed state.
func (p *Pipeline) Process(ctx context.Context, assetID string) (err error) {
	start := time.Now()
	metrics.PipelineRunsInProgress.Inc()
	defer metrics.PipelineRunsInProgress.Dec()

	claimed := false
	defer func() {
		if r := recover(); r != nil {
			logging.Error("asset %s: run panicked: %v", assetID, r)
			err = fmt.Errorf("processing panicked: %v", r)
		}
		outcome := "completed"
		if err != nil {
			outcome = "failed"
			// A lost claim means another worker owns the asset; only the
			// claim holder may write the terminal state.
			if claimed {
				p.markFailed(assetID, err)
			}
		}
		metrics.PipelineRunsTotal.WithLabelValues(outcome).Inc()
		metrics.PipelineRunDuration.Observe(time.Since(start).Seconds())
		logging.Info("asset %s: run %s in %s", assetID, outcome, time.Since(start).Round(time.Millisecond))
	}()

	asset, err := p.db.GetAsset(ctx, assetID)
	if err != nil {
		return fmt.Errorf("loading asset: %w", err)
	}
	if err := p.db.MarkProcessing(ctx, assetID); err != nil {
		return fmt.Errorf("claiming asset: %w", err)
	}
	claimed = true

	return p.run(ctx, asset)
}

// run executes the body of one claimed run.
func (p *Pipeline) run(ctx context.Context, asset *database.Asset) error {
	// Capability detection is probed fresh for every run so newly installed
	// encoders are picked up without a restart.
	encoder := p.detector.Detect(ctx)

	prober := probe.NewProber(encoder.FFprobePath, time.Minute)
	info, err := prober.Probe(ctx, asset.OriginalPath)
	if err != nil {
		return err
	}
	if err := p.db.SetDuration(ctx, asset.ID, info.DurationSeconds); err != nil {
		return err
	}

	p.generateThumbnail(ctx, encoder, asset)

	outputDir := filepath.Join(p.opts.HLSDir, asset.ID)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	transcoder := transcode.NewTranscoder(encoder, p.opts.Perf, p.opts.ProcessTimeout)
	orch := NewOrchestrator(transcoder, keys.NewManager(), p.opts.ParallelJobs)
	results := orch.Run(ctx, asset.OriginalPath, outputDir, p.opts.Tracks)

	succeeded, mappings := p.secureTracks(outputDir, results)

	var okCount int
	for _, ok := range succeeded {
		if ok {
			okCount++
		}
	}
	if okCount == 0 {
		return fmt.Errorf("all %d tracks failed", len(results))
	}

	if err := manifest.Compose(outputDir, p.opts.Tracks, succeeded); err != nil {
		return err
	}
	if err := obfuscate.SaveMappings(outputDir, mappings); err != nil {
		return err
	}
	keys.CleanupKeyInfoFiles(outputDir)

	var trackIDs []string
	for _, spec := range p.opts.Tracks {
		if succeeded[spec.ID] {
			trackIDs = append(trackIDs, spec.ID)
		}
	}
	hlsPath := filepath.Join(asset.ID, manifest.MasterPlaylistName)
	return p.db.MarkCompleted(ctx, asset.ID, hlsPath, trackIDs)
}

// secureTracks obfuscates every successful track. A track whose segments
// cannot be secured is demoted to failed so the manifest never references it.
func (p *Pipeline) secureTracks(outputDir string, results []transcode.JobResult) (map[string]bool, obfuscate.AssetMappings) {
	succeeded := make(map[string]bool, len(results))
	mappings := obfuscate.AssetMappings{Encryption: make(map[string]string)}

	for _, res := range results {
		if !res.Succeeded() {
			logging.Warn("track %s failed: %v", res.Track.ID, res.Err)
			succeeded[res.Track.ID] = false
			continue
		}

		chunk, err := obfuscate.Secure(outputDir, res.Track.ID, res.Track.Kind)
		if err != nil {
			logging.Warn("track %s demoted: %v", res.Track.ID, err)
			succeeded[res.Track.ID] = false
			continue
		}

		succeeded[res.Track.ID] = true
		mappings.Chunks = append(mappings.Chunks, chunk)
		mappings.Encryption[res.Track.ID] = res.Material.KeyFileName
	}
	return succeeded, mappings
}

// generateThumbnail is best-effort: a missing poster never fails the run.
func (p *Pipeline) generateThumbnail(ctx context.Context, encoder capability.EncoderConfig, asset *database.Asset) {
	gen := media.NewThumbnailGenerator(encoder)
	posterPath := filepath.Join(p.opts.ThumbnailDir, asset.ID+".jpg")
	if err := gen.Generate(ctx, asset.OriginalPath, posterPath); err != nil {
		logging.Warn("asset %s: thumbnail skipped: %v", asset.ID, err)
		return
	}
	if err := p.db.SetThumbnail(ctx, asset.ID, posterPath); err != nil {
		logging.Warn("asset %s: recording thumbnail: %v", asset.ID, err)
	}
}

// markFailed lands the asset in the failed state. A fresh context is used so
// the terminal write survives a cancelled run context.
func (p *Pipeline) markFailed(assetID string, cause error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := p.db.MarkFailed(ctx, assetID, cause.Error()); err != nil {
		logging.Error("asset %s: failed to record failure: %v", assetID, err)
	}
}
