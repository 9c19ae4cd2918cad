package pipeline

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"hls-vault/internal/keys"
	"hls-vault/internal/logging"
	"hls-vault/internal/metrics"
	"hls-vault/internal/transcode"
)

// Orchestrator runs all tracks of one asset in parallel. Audio tracks are
// cheap and start immediately; video tracks contend for a bounded number of
// encode slots.
type Orchestrator struct {
	transcoder *transcode.Transcoder
	keyManager *keys.Manager
	videoSlots *semaphore.Weighted
}

// NewOrchestrator creates an orchestrator allowing at most maxVideoJobs
// concurrent video encodes.
func NewOrchestrator(t *transcode.Transcoder, km *keys.Manager, maxVideoJobs int64) *Orchestrator {
	if maxVideoJobs < 1 {
		maxVideoJobs = 1
	}
	return &Orchestrator{
		transcoder: t,
		keyManager: km,
		videoSlots: semaphore.NewWeighted(maxVideoJobs),
	}
}

// Run encodes every track and returns one result per track, in input order.
// Each track's goroutine owns its result slot, so no locking is needed on the
// results. A failed track never stops its siblings.
func (o *Orchestrator) Run(ctx context.Context, inputPath, outputDir string, tracks []transcode.TrackSpec) []transcode.JobResult {
	results := make([]transcode.JobResult, len(tracks))
	var wg sync.WaitGroup

	for i, track := range tracks {
		wg.Add(1)
		go func(slot int, track transcode.TrackSpec) {
			defer wg.Done()
			results[slot] = o.runTrack(ctx, inputPath, outputDir, track)
		}(i, track)
	}

	wg.Wait()
	return results
}

func (o *Orchestrator) runTrack(ctx context.Context, inputPath, outputDir string, track transcode.TrackSpec) transcode.JobResult {
	if track.Kind == transcode.TrackVideo {
		if err := o.videoSlots.Acquire(ctx, 1); err != nil {
			return transcode.JobResult{Track: track, Err: err}
		}
		defer o.videoSlots.Release(1)
		metrics.VideoEncodesInProgress.Inc()
		defer metrics.VideoEncodesInProgress.Dec()
	}

	mat, err := o.keyManager.Issue(outputDir, track.ID)
	if err != nil {
		logging.Error("track %s: key material: %v", track.ID, err)
		return transcode.JobResult{Track: track, Err: err}
	}

	logging.Debug("track %s: starting encode", track.ID)
	return o.transcoder.Start(ctx, inputPath, outputDir, track, mat).Wait()
}
