package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"hls-vault/internal/capability"
	"hls-vault/internal/keys"
	"hls-vault/internal/transcode"
)

func testPerf() transcode.PerfSettings {
	return transcode.PerfSettings{Preset: "ultrafast", Tune: "zerolatency", CRF: 28, SegmentSeconds: 6}
}

// writeEncoderScript installs a shell script standing in for the encoder.
func writeEncoderScript(t *testing.T, body string) capability.EncoderConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing encoder script: %v", err)
	}
	return capability.EncoderConfig{FFmpegPath: path}
}

// countingEncoder tracks its own concurrency through a mkdir spin lock and
// records the high-water mark in maxFile. It writes the playlist so every
// track succeeds.
func countingEncoder(t *testing.T, stateDir string) capability.EncoderConfig {
	t.Helper()
	if err := os.WriteFile(filepath.Join(stateDir, "count"), []byte("0"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(stateDir, "max"), []byte("0"), 0o644); err != nil {
		t.Fatal(err)
	}
	body := fmt.Sprintf(`
lockdir=%[1]s/lock
adjust() {
  while ! mkdir "$lockdir" 2>/dev/null; do sleep 0.01; done
  c=$(cat %[1]s/count)
  c=$((c + $1))
  echo $c > %[1]s/count
  m=$(cat %[1]s/max)
  [ $c -gt $m ] && echo $c > %[1]s/max
  rmdir "$lockdir"
}
adjust 1
sleep 0.3
adjust -1
for out; do :; done
touch "$out"`, stateDir)
	return writeEncoderScript(t, body)
}

func ladder() []transcode.TrackSpec {
	return []transcode.TrackSpec{
		{ID: "audio_128k", Kind: transcode.TrackAudio, Codec: "aac", Bitrate: "128k"},
		{ID: "360p", Kind: transcode.TrackVideo, Width: 640, Height: 360, Bitrate: "600k"},
		{ID: "720p", Kind: transcode.TrackVideo, Width: 1280, Height: 720, Bitrate: "1800k"},
		{ID: "1080p", Kind: transcode.TrackVideo, Width: 1920, Height: 1080, Bitrate: "3500k"},
	}
}

func TestRunBoundsVideoConcurrency(t *testing.T) {
	stateDir := t.TempDir()
	enc := countingEncoder(t, stateDir)
	tr := transcode.NewTranscoder(enc, testPerf(), 30*time.Second)

	// Five video tracks against two slots; audio is unbounded on top.
	tracks := []transcode.TrackSpec{
		{ID: "audio_128k", Kind: transcode.TrackAudio, Codec: "aac", Bitrate: "128k"},
	}
	for i := 0; i < 5; i++ {
		tracks = append(tracks, transcode.TrackSpec{
			ID: fmt.Sprintf("v%d", i), Kind: transcode.TrackVideo,
			Width: 640, Height: 360, Bitrate: "600k",
		})
	}

	orch := NewOrchestrator(tr, keys.NewManager(), 2)
	results := orch.Run(context.Background(), "/in.mp4", t.TempDir(), tracks)

	for _, res := range results {
		if !res.Succeeded() {
			t.Fatalf("track %s failed: %v", res.Track.ID, res.Err)
		}
	}

	raw, err := os.ReadFile(filepath.Join(stateDir, "max"))
	if err != nil {
		t.Fatalf("reading high-water mark: %v", err)
	}
	max, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		t.Fatalf("parsing high-water mark %q: %v", raw, err)
	}
	// 2 video slots plus 1 unbounded audio track.
	if max > 3 {
		t.Errorf("Concurrency high-water mark = %d, want at most 3", max)
	}
	if max < 2 {
		t.Errorf("Concurrency high-water mark = %d, expected the slots to be used", max)
	}
}

func TestRunIsolatesTrackFailure(t *testing.T) {
	// Fails only the 720p encode; every other track succeeds.
	enc := writeEncoderScript(t, `
for out; do :; done
case "$out" in
  *720p*) echo "encode error" >&2; exit 1 ;;
esac
touch "$out"`)
	tr := transcode.NewTranscoder(enc, testPerf(), 30*time.Second)
	orch := NewOrchestrator(tr, keys.NewManager(), 3)

	results := orch.Run(context.Background(), "/in.mp4", t.TempDir(), ladder())

	failures := 0
	for _, res := range results {
		if res.Succeeded() {
			continue
		}
		failures++
		if res.Track.ID != "720p" {
			t.Errorf("Unexpected failed track %s: %v", res.Track.ID, res.Err)
		}
	}
	if failures != 1 {
		t.Errorf("Expected exactly one failed track, got %d", failures)
	}
}

func TestRunResultsInInputOrder(t *testing.T) {
	enc := writeEncoderScript(t, `for out; do :; done
touch "$out"`)
	tr := transcode.NewTranscoder(enc, testPerf(), 30*time.Second)
	orch := NewOrchestrator(tr, keys.NewManager(), 3)

	tracks := ladder()
	results := orch.Run(context.Background(), "/in.mp4", t.TempDir(), tracks)

	if len(results) != len(tracks) {
		t.Fatalf("Expected %d results, got %d", len(tracks), len(results))
	}
	for i, res := range results {
		if res.Track.ID != tracks[i].ID {
			t.Errorf("Result %d is for %s, want %s", i, res.Track.ID, tracks[i].ID)
		}
	}
}

func TestRunIssuesDistinctKeysPerTrack(t *testing.T) {
	out := t.TempDir()
	enc := writeEncoderScript(t, `for out; do :; done
touch "$out"`)
	tr := transcode.NewTranscoder(enc, testPerf(), 30*time.Second)
	orch := NewOrchestrator(tr, keys.NewManager(), 3)

	results := orch.Run(context.Background(), "/in.mp4", out, ladder())

	seen := make(map[string]bool)
	for _, res := range results {
		if res.Material.KeyFileName == "" {
			t.Fatalf("track %s has no key material", res.Track.ID)
		}
		if seen[res.Material.KeyFileName] {
			t.Errorf("Key file %s reused across tracks", res.Material.KeyFileName)
		}
		seen[res.Material.KeyFileName] = true
		if _, err := os.Stat(filepath.Join(out, res.Material.KeyFileName)); err != nil {
			t.Errorf("Key file for %s missing: %v", res.Track.ID, err)
		}
	}
}
