// Package obfuscate replaces the encoder's transitional segment names with
// opaque ones and rewrites playlists to match.
//
// Segment names produced during encoding reveal track identity and ordering
// (temp_720p_000.ts, temp_720p_001.ts, ...). After a track encodes, every
// segment is renamed to an unguessable name and the playlist is atomically
// replaced so it only ever references names that exist on disk. The
// name mappings are persisted alongside the asset for audit and debugging.
package obfuscate

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio/v2"

	"hls-vault/internal/keys"
	"hls-vault/internal/logging"
	"hls-vault/internal/metrics"
	"hls-vault/internal/transcode"
)

// ObfuscationError demotes an otherwise-successful track: a track whose
// segments cannot be safely renamed is treated as failed.
type ObfuscationError struct {
	TrackID string
	Err     error
}

func (e *ObfuscationError) Error() string {
	return fmt.Sprintf("obfuscating track %s: %v", e.TrackID, e.Err)
}

func (e *ObfuscationError) Unwrap() error {
	return e.Err
}

// ChunkMapping records the opaque names assigned to one track's segments.
type ChunkMapping struct {
	TrackID  string            `json:"track"`
	Segments map[string]string `json:"segments"` // temp name -> opaque name
}

// AssetMappings aggregates per-track mappings and encryption references for
// one asset.
type AssetMappings struct {
	Chunks     []ChunkMapping    `json:"chunks"`
	Encryption map[string]string `json:"encryption"` // track id -> key file name
}

const (
	chunkMapFile      = ".chunk_map.json"
	encryptionMapFile = ".encryption_map.json"
)

// segmentPrefix picks the opaque name prefix for a track kind.
func segmentPrefix(kind transcode.TrackKind) string {
	if kind == transcode.TrackAudio {
		return "aud_"
	}
	return "seg_"
}

// Secure renames every transitional segment of the track to an opaque name and
// rewrites the playlist accordingly. The playlist replace is atomic; segments
// are renamed before the playlist flips, so the new playlist never references
// a missing file. Stray transitional files left by a crashed earlier run are
// removed.
func Secure(outputDir, trackID string, kind transcode.TrackKind) (ChunkMapping, error) {
	mapping := ChunkMapping{TrackID: trackID, Segments: make(map[string]string)}

	playlistPath := filepath.Join(outputDir, trackID+".m3u8")
	raw, err := os.ReadFile(playlistPath)
	if err != nil {
		return mapping, &ObfuscationError{TrackID: trackID, Err: fmt.Errorf("reading playlist: %w", err)}
	}
	playlist := string(raw)

	segments, err := filepath.Glob(transcode.TempSegmentGlob(outputDir, trackID))
	if err != nil {
		return mapping, &ObfuscationError{TrackID: trackID, Err: err}
	}
	sort.Strings(segments)

	prefix := segmentPrefix(kind)
	for _, segPath := range segments {
		tempName := filepath.Base(segPath)
		opaque, err := keys.OpaqueName(prefix)
		if err != nil {
			return mapping, &ObfuscationError{TrackID: trackID, Err: err}
		}
		opaqueName := opaque + ".ts"

		if !strings.Contains(playlist, tempName) {
			// Not referenced: stray leftover from an earlier run.
			if err := os.Remove(segPath); err != nil {
				logging.Warn("failed to remove stray segment %s: %v", segPath, err)
			}
			continue
		}

		if err := os.Rename(segPath, filepath.Join(outputDir, opaqueName)); err != nil {
			return mapping, &ObfuscationError{TrackID: trackID, Err: fmt.Errorf("renaming %s: %w", tempName, err)}
		}
		playlist = strings.ReplaceAll(playlist, tempName, opaqueName)
		mapping.Segments[tempName] = opaqueName
		metrics.SegmentsObfuscatedTotal.WithLabelValues(string(kind)).Inc()
	}

	if err := renameio.WriteFile(playlistPath, []byte(playlist), 0o644); err != nil {
		return mapping, &ObfuscationError{TrackID: trackID, Err: fmt.Errorf("replacing playlist: %w", err)}
	}

	logging.Debug("track %s: obfuscated %d segments", trackID, len(mapping.Segments))
	return mapping, nil
}

// SaveMappings persists the aggregated mappings into outputDir. The artifacts
// are base64-wrapped JSON with owner-only permissions and dot-prefixed names
// so the HTTP layer never serves them.
func SaveMappings(outputDir string, m AssetMappings) error {
	if err := writeEncoded(filepath.Join(outputDir, chunkMapFile), m.Chunks); err != nil {
		return fmt.Errorf("saving chunk map: %w", err)
	}
	if err := writeEncoded(filepath.Join(outputDir, encryptionMapFile), m.Encryption); err != nil {
		return fmt.Errorf("saving encryption map: %w", err)
	}
	return nil
}

// LoadChunkMappings reads back a persisted chunk map.
func LoadChunkMappings(outputDir string) ([]ChunkMapping, error) {
	var chunks []ChunkMapping
	if err := readEncoded(filepath.Join(outputDir, chunkMapFile), &chunks); err != nil {
		return nil, err
	}
	return chunks, nil
}

func writeEncoded(path string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	encoded := base64.StdEncoding.EncodeToString(raw)
	return renameio.WriteFile(path, []byte(encoded), 0o600)
}

func readEncoded(path string, v any) error {
	encoded, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(string(encoded)))
	if err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return json.Unmarshal(raw, v)
}
