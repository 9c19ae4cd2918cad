package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// stubProber points the prober at a shell script standing in for ffprobe.
func stubProber(t *testing.T, body string) *Prober {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ffprobe")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("failed to write stub: %v", err)
	}
	return NewProber(path, 10*time.Second)
}

func TestProbeTruncatesDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration string
		expected int
	}{
		{"Fractional truncates down", "125.7", 125},
		{"Whole seconds", "60.0", 60},
		{"Just under a second", "0.9", 0},
		{"Long film", "7265.04", 7265},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := stubProber(t, fmt.Sprintf(`echo '{"format":{"duration":"%s"}}'`, tt.duration))
			info, err := p.Probe(context.Background(), "/tmp/in.mp4")
			if err != nil {
				t.Fatalf("Probe() error: %v", err)
			}
			if info.DurationSeconds != tt.expected {
				t.Errorf("DurationSeconds = %d, want %d", info.DurationSeconds, tt.expected)
			}
		})
	}
}

func TestProbeNonZeroExit(t *testing.T) {
	p := stubProber(t, `echo "moov atom not found" >&2; exit 1`)
	_, err := p.Probe(context.Background(), "/tmp/broken.mp4")
	if err == nil {
		t.Fatal("Expected error for non-zero exit")
	}
	var pe *ProbeError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected *ProbeError, got %T", err)
	}
	if pe.Stderr == "" {
		t.Error("Expected stderr to be captured in ProbeError")
	}
}

func TestProbeUnparseableOutput(t *testing.T) {
	p := stubProber(t, `echo "not json at all"`)
	_, err := p.Probe(context.Background(), "/tmp/in.mp4")
	var pe *ProbeError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected *ProbeError for garbage output, got %v", err)
	}
}

func TestProbeMissingDuration(t *testing.T) {
	p := stubProber(t, `echo '{"format":{}}'`)
	_, err := p.Probe(context.Background(), "/tmp/in.mp4")
	if err == nil {
		t.Fatal("Expected error when duration is absent")
	}
}

func TestProbeMissingBinary(t *testing.T) {
	p := NewProber("/nonexistent/ffprobe", time.Second)
	_, err := p.Probe(context.Background(), "/tmp/in.mp4")
	var pe *ProbeError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected *ProbeError for missing binary, got %v", err)
	}
}
