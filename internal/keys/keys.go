// Package keys generates and lays out AES-128 segment encryption material.
//
// Each track gets its own 16-byte key and IV. Key files are written under the
// asset output directory with opaque names and owner-only permissions; the
// key-info descriptor consumed by the encoder points clients at the key
// delivery endpoint rather than the file itself.
package keys

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"hls-vault/internal/logging"
)

// KeyURIPrefix is the client-facing path prefix for key delivery.
const KeyURIPrefix = "/api/hls/key/"

// Material holds the encryption material for one track.
type Material struct {
	KeyHex      string // 32 hex chars, never logged
	IVHex       string // 32 hex chars
	KeyFileName string // opaque, e.g. key_a1b2c3d4e5f6.key
	KeyInfoPath string // descriptor consumed by the encoder
}

// String redacts the key so Material can be logged safely.
func (m Material) String() string {
	return fmt.Sprintf("Material{key=REDACTED iv=%s file=%s}", m.IVHex, m.KeyFileName)
}

// OpaqueName returns prefix followed by 12 hex characters derived from fresh
// randomness and the current nanosecond clock. Names are unguessable and never
// reveal track ordering.
func OpaqueName(prefix string) (string, error) {
	seed := make([]byte, 24)
	if _, err := rand.Read(seed[:16]); err != nil {
		return "", fmt.Errorf("reading randomness: %w", err)
	}
	binary.BigEndian.PutUint64(seed[16:], uint64(time.Now().UnixNano()))
	sum := sha256.Sum256(seed)
	return prefix + hex.EncodeToString(sum[:])[:12], nil
}

// Manager issues per-track key material into asset output directories.
type Manager struct{}

// NewManager creates a key manager.
func NewManager() *Manager {
	return &Manager{}
}

// Issue generates key and IV for trackID, writes the key file and key-info
// descriptor into outputDir, and returns the material.
func (m *Manager) Issue(outputDir, trackID string) (Material, error) {
	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		return Material{}, fmt.Errorf("generating key for %s: %w", trackID, err)
	}
	iv := make([]byte, 16)
	if _, err := rand.Read(iv); err != nil {
		return Material{}, fmt.Errorf("generating iv for %s: %w", trackID, err)
	}

	name, err := OpaqueName("key_")
	if err != nil {
		return Material{}, err
	}

	mat := Material{
		KeyHex:      hex.EncodeToString(key),
		IVHex:       hex.EncodeToString(iv),
		KeyFileName: name + ".key",
		KeyInfoPath: filepath.Join(outputDir, "keyinfo_"+trackID+".txt"),
	}

	keyPath := filepath.Join(outputDir, mat.KeyFileName)
	if err := os.WriteFile(keyPath, key, 0o600); err != nil {
		return Material{}, fmt.Errorf("writing key file for %s: %w", trackID, err)
	}

	// Three lines: client URI, local path for the encoder, IV.
	info := strings.Join([]string{
		KeyURIPrefix + mat.KeyFileName,
		keyPath,
		mat.IVHex,
	}, "\n") + "\n"
	if err := os.WriteFile(mat.KeyInfoPath, []byte(info), 0o600); err != nil {
		return Material{}, fmt.Errorf("writing key info for %s: %w", trackID, err)
	}

	logging.Debug("issued encryption material for track %s: %s", trackID, mat)
	return mat, nil
}

// CleanupKeyInfoFiles removes key-info descriptors from outputDir. Key files
// themselves persist: clients fetch them for playback. Removal failures are
// logged and swallowed; descriptors are only needed during encoding.
func CleanupKeyInfoFiles(outputDir string) {
	matches, err := filepath.Glob(filepath.Join(outputDir, "keyinfo_*.txt"))
	if err != nil {
		return
	}
	for _, path := range matches {
		if err := os.Remove(path); err != nil {
			logging.Warn("failed to remove key info file %s: %v", path, err)
		}
	}
}
