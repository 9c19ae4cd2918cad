package keys

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

var keyFilePattern = regexp.MustCompile(`^key_[a-f0-9]{12}\.key$`)

func TestOpaqueName(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		name, err := OpaqueName("seg_")
		if err != nil {
			t.Fatalf("OpaqueName() error: %v", err)
		}
		if !strings.HasPrefix(name, "seg_") {
			t.Fatalf("Expected seg_ prefix, got %s", name)
		}
		suffix := strings.TrimPrefix(name, "seg_")
		if len(suffix) != 12 {
			t.Fatalf("Expected 12 hex chars, got %q", suffix)
		}
		if _, err := hex.DecodeString(suffix); err != nil {
			t.Fatalf("Suffix %q is not hex", suffix)
		}
		if seen[name] {
			t.Fatalf("Duplicate opaque name %s", name)
		}
		seen[name] = true
	}
}

func TestIssueWritesKeyAndInfo(t *testing.T) {
	dir := t.TempDir()
	mat, err := NewManager().Issue(dir, "720p")
	if err != nil {
		t.Fatalf("Issue() error: %v", err)
	}

	if !keyFilePattern.MatchString(mat.KeyFileName) {
		t.Errorf("Key file name %q does not match expected shape", mat.KeyFileName)
	}
	if len(mat.KeyHex) != 32 || len(mat.IVHex) != 32 {
		t.Errorf("Expected 32 hex chars for key and iv, got %d and %d", len(mat.KeyHex), len(mat.IVHex))
	}

	keyPath := filepath.Join(dir, mat.KeyFileName)
	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("Key file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("Key file permissions = %o, want 600", perm)
	}
	raw, err := os.ReadFile(keyPath)
	if err != nil {
		t.Fatalf("Reading key file: %v", err)
	}
	if hex.EncodeToString(raw) != mat.KeyHex {
		t.Error("Key file contents do not match reported key")
	}

	data, err := os.ReadFile(mat.KeyInfoPath)
	if err != nil {
		t.Fatalf("Key info missing: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected 3 key info lines, got %d: %q", len(lines), lines)
	}
	if lines[0] != KeyURIPrefix+mat.KeyFileName {
		t.Errorf("Key URI line = %q, want %q", lines[0], KeyURIPrefix+mat.KeyFileName)
	}
	if lines[1] != keyPath {
		t.Errorf("Key path line = %q, want %q", lines[1], keyPath)
	}
	if lines[2] != mat.IVHex {
		t.Errorf("IV line = %q, want %q", lines[2], mat.IVHex)
	}
}

func TestMaterialStringRedactsKey(t *testing.T) {
	mat := Material{KeyHex: "deadbeefdeadbeefdeadbeefdeadbeef", IVHex: "00112233445566778899aabbccddeeff"}
	if strings.Contains(mat.String(), "deadbeef") {
		t.Error("Material.String() leaks the key")
	}
}

func TestCleanupKeyInfoFiles(t *testing.T) {
	dir := t.TempDir()
	mgr := NewManager()
	mat1, _ := mgr.Issue(dir, "720p")
	mat2, _ := mgr.Issue(dir, "audio_128k")

	CleanupKeyInfoFiles(dir)

	for _, p := range []string{mat1.KeyInfoPath, mat2.KeyInfoPath} {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("Key info file %s should have been removed", p)
		}
	}
	// Key files persist for playback.
	for _, m := range []Material{mat1, mat2} {
		if _, err := os.Stat(filepath.Join(dir, m.KeyFileName)); err != nil {
			t.Errorf("Key file %s should persist: %v", m.KeyFileName, err)
		}
	}
}
