package transcode

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"hls-vault/internal/capability"
	"hls-vault/internal/keys"
)

func testPerf() PerfSettings {
	return PerfSettings{Preset: "ultrafast", Tune: "zerolatency", CRF: 28, Threads: 0, SegmentSeconds: 6}
}

func TestTrackSpecString(t *testing.T) {
	video := TrackSpec{ID: "720p", Kind: TrackVideo, Width: 1280, Height: 720, Bitrate: "1800k"}
	if got := video.String(); !strings.Contains(got, "1280x720") || !strings.Contains(got, "1800k") {
		t.Errorf("Video track String() = %q", got)
	}
	audio := TrackSpec{ID: "audio_128k", Kind: TrackAudio, Codec: "aac", Bitrate: "128k"}
	if got := audio.String(); !strings.Contains(got, "aac") || !strings.Contains(got, "128k") {
		t.Errorf("Audio track String() = %q", got)
	}
}

func TestBuildArgsAudio(t *testing.T) {
	tr := NewTranscoder(capability.EncoderConfig{FFmpegPath: "ffmpeg"}, testPerf(), time.Minute)
	track := TrackSpec{ID: "audio_128k", Kind: TrackAudio, Codec: "aac", Bitrate: "128k"}
	mat := keys.Material{KeyInfoPath: "/out/keyinfo_audio_128k.txt"}
	args := tr.buildArgs("/in.mp4", "/out", track, mat, "/out/audio_128k.m3u8")
	line := strings.Join(args, " ")

	for _, want := range []string{
		"-i /in.mp4",
		"-vn",
		"-c:a aac",
		"-b:a 128k",
		"-hls_time 6",
		"-hls_list_size 0",
		"-hls_segment_filename /out/temp_audio_128k_%03d.ts",
		"-hls_key_info_file /out/keyinfo_audio_128k.txt",
		"-y /out/audio_128k.m3u8",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("Audio args missing %q in %q", want, line)
		}
	}
	if strings.Contains(line, "-an") {
		t.Error("Audio args must not drop the audio stream")
	}
}

func TestBuildArgsVideoSoftware(t *testing.T) {
	tr := NewTranscoder(capability.EncoderConfig{FFmpegPath: "ffmpeg"}, testPerf(), time.Minute)
	track := TrackSpec{ID: "720p", Kind: TrackVideo, Width: 1280, Height: 720, Bitrate: "1800k"}
	mat := keys.Material{KeyInfoPath: "/out/keyinfo_720p.txt"}
	args := tr.buildArgs("/in.mp4", "/out", track, mat, "/out/720p.m3u8")
	line := strings.Join(args, " ")

	for _, want := range []string{
		"-an",
		"-c:v libx264",
		"-preset ultrafast",
		"-tune zerolatency",
		"-b:v 1800k",
		"-vf scale=1280:720",
		"-crf 28",
		"-hls_segment_filename /out/temp_720p_%03d.ts",
	} {
		if !strings.Contains(line, want) {
			t.Errorf("Video args missing %q in %q", want, line)
		}
	}
}

func TestBuildArgsVideoHardwareSkipsPresetTune(t *testing.T) {
	tr := NewTranscoder(capability.EncoderConfig{FFmpegPath: "ffmpeg", HWAccel: "nvenc"}, testPerf(), time.Minute)
	track := TrackSpec{ID: "1080p", Kind: TrackVideo, Width: 1920, Height: 1080, Bitrate: "3500k"}
	args := tr.buildArgs("/in.mp4", "/out", track, keys.Material{KeyInfoPath: "/out/ki.txt"}, "/out/1080p.m3u8")
	line := strings.Join(args, " ")

	if !strings.Contains(line, "-c:v h264_nvenc -preset fast") {
		t.Errorf("Expected nvenc codec args, got %q", line)
	}
	if strings.Contains(line, "-tune") {
		t.Error("Hardware path must not carry the software tune flag")
	}
}

// stubEncoder writes a shell script the transcoder can run as the encoder.
func stubEncoder(t *testing.T, body string) capability.EncoderConfig {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("writing stub encoder: %v", err)
	}
	return capability.EncoderConfig{FFmpegPath: path}
}

func TestJobSuccessRequiresPlaylist(t *testing.T) {
	out := t.TempDir()
	track := TrackSpec{ID: "360p", Kind: TrackVideo, Width: 640, Height: 360, Bitrate: "600k"}

	// Exits zero and writes the playlist: success.
	enc := stubEncoder(t, fmt.Sprintf("touch %s", filepath.Join(out, "360p.m3u8")))
	tr := NewTranscoder(enc, testPerf(), 10*time.Second)
	res := tr.Start(context.Background(), "/in.mp4", out, track, keys.Material{KeyInfoPath: "/ki"}).Wait()
	if !res.Succeeded() {
		t.Fatalf("Expected success, got %v", res.Err)
	}

	// Exits zero but writes nothing: failure.
	out2 := t.TempDir()
	enc2 := stubEncoder(t, "true")
	tr2 := NewTranscoder(enc2, testPerf(), 10*time.Second)
	res2 := tr2.Start(context.Background(), "/in.mp4", out2, track, keys.Material{KeyInfoPath: "/ki"}).Wait()
	if res2.Succeeded() {
		t.Fatal("Expected failure when playlist is missing")
	}
	var te *TrackEncodeError
	if !errors.As(res2.Err, &te) {
		t.Fatalf("Expected *TrackEncodeError, got %T", res2.Err)
	}
}

func TestJobNonZeroExit(t *testing.T) {
	enc := stubEncoder(t, `echo "encoder blew up" >&2; exit 187`)
	tr := NewTranscoder(enc, testPerf(), 10*time.Second)
	track := TrackSpec{ID: "720p", Kind: TrackVideo, Width: 1280, Height: 720, Bitrate: "1800k"}

	res := tr.Start(context.Background(), "/in.mp4", t.TempDir(), track, keys.Material{KeyInfoPath: "/ki"}).Wait()
	var te *TrackEncodeError
	if !errors.As(res.Err, &te) {
		t.Fatalf("Expected *TrackEncodeError, got %v", res.Err)
	}
	if te.ExitCode != 187 {
		t.Errorf("ExitCode = %d, want 187", te.ExitCode)
	}
	if !strings.Contains(te.Stderr, "encoder blew up") {
		t.Errorf("Stderr not captured: %q", te.Stderr)
	}
}

func TestJobTimeout(t *testing.T) {
	enc := stubEncoder(t, "sleep 30")
	tr := NewTranscoder(enc, testPerf(), 200*time.Millisecond)
	track := TrackSpec{ID: "1080p", Kind: TrackVideo, Width: 1920, Height: 1080, Bitrate: "3500k"}

	res := tr.Start(context.Background(), "/in.mp4", t.TempDir(), track, keys.Material{KeyInfoPath: "/ki"}).Wait()
	var te *TrackEncodeError
	if !errors.As(res.Err, &te) {
		t.Fatalf("Expected *TrackEncodeError, got %v", res.Err)
	}
	if !te.TimedOut {
		t.Error("Expected TimedOut to be set")
	}
}

func TestJobMissingBinary(t *testing.T) {
	tr := NewTranscoder(capability.EncoderConfig{FFmpegPath: "/nonexistent/ffmpeg"}, testPerf(), time.Second)
	track := TrackSpec{ID: "360p", Kind: TrackVideo, Width: 640, Height: 360, Bitrate: "600k"}

	res := tr.Start(context.Background(), "/in.mp4", t.TempDir(), track, keys.Material{}).Wait()
	var ce *capability.Error
	if !errors.As(res.Err, &ce) {
		t.Fatalf("Expected *capability.Error for missing binary, got %v", res.Err)
	}
}

func TestTempSegmentNaming(t *testing.T) {
	if got := TempSegmentPattern("/out", "720p"); got != "/out/temp_720p_%03d.ts" {
		t.Errorf("TempSegmentPattern = %q", got)
	}
	if got := TempSegmentGlob("/out", "720p"); got != "/out/temp_720p_*.ts" {
		t.Errorf("TempSegmentGlob = %q", got)
	}
}
