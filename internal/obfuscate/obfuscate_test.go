package obfuscate

import (
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"hls-vault/internal/transcode"
)

func writePlaylist(t *testing.T, dir, track string, segments []string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("#EXTM3U\n#EXT-X-VERSION:6\n#EXT-X-TARGETDURATION:6\n")
	for _, s := range segments {
		b.WriteString("#EXTINF:6.000000,\n")
		b.WriteString(s + "\n")
	}
	b.WriteString("#EXT-X-ENDLIST\n")
	path := filepath.Join(dir, track+".m3u8")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		t.Fatalf("writing playlist: %v", err)
	}
	return path
}

func writeSegments(t *testing.T, dir string, names []string) {
	t.Helper()
	for _, n := range names {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("ts-data"), 0o644); err != nil {
			t.Fatalf("writing segment %s: %v", n, err)
		}
	}
}

func TestSecureRenamesAndRewrites(t *testing.T) {
	dir := t.TempDir()
	segs := []string{"temp_720p_000.ts", "temp_720p_001.ts", "temp_720p_002.ts"}
	playlistPath := writePlaylist(t, dir, "720p", segs)
	writeSegments(t, dir, segs)

	mapping, err := Secure(dir, "720p", transcode.TrackVideo)
	if err != nil {
		t.Fatalf("Secure() error: %v", err)
	}
	if len(mapping.Segments) != 3 {
		t.Fatalf("Expected 3 mapped segments, got %d", len(mapping.Segments))
	}

	raw, err := os.ReadFile(playlistPath)
	if err != nil {
		t.Fatalf("reading rewritten playlist: %v", err)
	}
	playlist := string(raw)
	if strings.Contains(playlist, "temp_") {
		t.Errorf("Playlist still references transitional names:\n%s", playlist)
	}

	opaque := regexp.MustCompile(`^seg_[a-f0-9]{12}\.ts$`)
	for temp, name := range mapping.Segments {
		if !opaque.MatchString(name) {
			t.Errorf("Mapped name %q for %s has wrong shape", name, temp)
		}
		if !strings.Contains(playlist, name) {
			t.Errorf("Playlist missing renamed segment %s", name)
		}
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("Renamed segment %s missing on disk: %v", name, err)
		}
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, "temp_*"))
	if len(leftovers) != 0 {
		t.Errorf("Transitional segments left behind: %v", leftovers)
	}
}

func TestSecureAudioPrefix(t *testing.T) {
	dir := t.TempDir()
	segs := []string{"temp_audio_128k_000.ts"}
	writePlaylist(t, dir, "audio_128k", segs)
	writeSegments(t, dir, segs)

	mapping, err := Secure(dir, "audio_128k", transcode.TrackAudio)
	if err != nil {
		t.Fatalf("Secure() error: %v", err)
	}
	for _, name := range mapping.Segments {
		if !strings.HasPrefix(name, "aud_") {
			t.Errorf("Audio segment renamed to %q, want aud_ prefix", name)
		}
	}
}

func TestSecureRemovesStraySegments(t *testing.T) {
	dir := t.TempDir()
	referenced := []string{"temp_360p_000.ts"}
	writePlaylist(t, dir, "360p", referenced)
	writeSegments(t, dir, append(referenced, "temp_360p_999.ts")) // stray from a crashed run

	if _, err := Secure(dir, "360p", transcode.TrackVideo); err != nil {
		t.Fatalf("Secure() error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "temp_360p_999.ts")); !os.IsNotExist(err) {
		t.Error("Stray transitional segment should have been removed")
	}
}

func TestSecureMissingPlaylist(t *testing.T) {
	_, err := Secure(t.TempDir(), "720p", transcode.TrackVideo)
	var oe *ObfuscationError
	if !errors.As(err, &oe) {
		t.Fatalf("Expected *ObfuscationError, got %v", err)
	}
}

func TestSaveAndLoadMappings(t *testing.T) {
	dir := t.TempDir()
	m := AssetMappings{
		Chunks: []ChunkMapping{
			{TrackID: "720p", Segments: map[string]string{"temp_720p_000.ts": "seg_abcdef123456.ts"}},
		},
		Encryption: map[string]string{"720p": "key_abcdef123456.key"},
	}
	if err := SaveMappings(dir, m); err != nil {
		t.Fatalf("SaveMappings() error: %v", err)
	}

	for _, name := range []string{".chunk_map.json", ".encryption_map.json"} {
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			t.Fatalf("Mapping artifact %s missing: %v", name, err)
		}
		if perm := info.Mode().Perm(); perm != 0o600 {
			t.Errorf("%s permissions = %o, want 600", name, perm)
		}
		raw, _ := os.ReadFile(filepath.Join(dir, name))
		if strings.Contains(string(raw), "seg_") || strings.Contains(string(raw), "{") {
			t.Errorf("%s appears to contain plain JSON, want base64", name)
		}
	}

	chunks, err := LoadChunkMappings(dir)
	if err != nil {
		t.Fatalf("LoadChunkMappings() error: %v", err)
	}
	if len(chunks) != 1 || chunks[0].TrackID != "720p" {
		t.Fatalf("Round-trip mismatch: %+v", chunks)
	}
	if chunks[0].Segments["temp_720p_000.ts"] != "seg_abcdef123456.ts" {
		t.Errorf("Segment mapping lost in round trip: %+v", chunks[0].Segments)
	}
}
