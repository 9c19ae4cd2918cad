package handlers

import (
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/gorilla/mux"

	"hls-vault/internal/logging"
	"hls-vault/internal/mediatypes"
	"hls-vault/internal/metrics"
)

// keyFilePattern is the only key name shape ever served.
var keyFilePattern = regexp.MustCompile(`^key_[a-f0-9]{12}\.key$`)

// allowedPlayerAgents are user-agent markers of real players. Requests from
// anything else must come from localhost to get a key.
var allowedPlayerAgents = []string{"Mozilla/", "VLC/", "ffmpeg/", "hls.js"}

// ServeHLS delivers playlists and segments from the output tree. Key files,
// mapping artifacts and anything dot-prefixed are never served here.
func (h *Handlers) ServeHLS(w http.ResponseWriter, r *http.Request) {
	rel := mux.Vars(r)["path"]

	clean := filepath.Clean("/" + rel)
	if strings.Contains(clean, "..") {
		writeJSONError(w, "not found", http.StatusNotFound)
		return
	}
	for _, part := range strings.Split(clean, "/") {
		if strings.HasPrefix(part, ".") && part != "" {
			writeJSONError(w, "not found", http.StatusNotFound)
			return
		}
	}
	base := filepath.Base(clean)
	if strings.HasSuffix(base, ".key") || strings.HasPrefix(base, "keyinfo_") {
		writeJSONError(w, "not found", http.StatusNotFound)
		return
	}

	fullPath := filepath.Join(h.hlsDir, clean)
	info, err := os.Stat(fullPath)
	if err != nil || info.IsDir() {
		writeJSONError(w, "not found", http.StatusNotFound)
		return
	}

	ext := filepath.Ext(base)
	mime, servable := mediatypes.HLSMimeType(ext)
	if !servable {
		writeJSONError(w, "not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", mime)
	if ext == ".ts" {
		metrics.SegmentBytesServed.Add(float64(info.Size()))
	}
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "public, max-age=3600")

	http.ServeFile(w, r, fullPath)
}

// ServeKey delivers one AES-128 segment key. The name must match the opaque
// shape exactly and the requester must look like a media player or come from
// localhost. Denials are logged and counted.
func (h *Handlers) ServeKey(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["keyfile"]
	if !keyFilePattern.MatchString(name) {
		metrics.KeyRequestsTotal.WithLabelValues("denied").Inc()
		logging.Warn("key request denied (bad name %q) from %s", name, r.RemoteAddr)
		writeJSONError(w, "not found", http.StatusNotFound)
		return
	}

	if !h.keyRequestAllowed(r) {
		metrics.KeyRequestsTotal.WithLabelValues("denied").Inc()
		logging.Warn("key request denied (unrecognized client %q) from %s",
			r.Header.Get("User-Agent"), r.RemoteAddr)
		writeJSONError(w, "forbidden", http.StatusForbidden)
		return
	}

	// Key names are globally unique, so locate the asset directory by glob.
	matches, err := filepath.Glob(filepath.Join(h.hlsDir, "*", name))
	if err != nil || len(matches) == 0 {
		metrics.KeyRequestsTotal.WithLabelValues("not_found").Inc()
		writeJSONError(w, "not found", http.StatusNotFound)
		return
	}

	key, err := os.ReadFile(matches[0])
	if err != nil {
		metrics.KeyRequestsTotal.WithLabelValues("not_found").Inc()
		logging.Error("failed to read key %s: %v", matches[0], err)
		writeJSONError(w, "not found", http.StatusNotFound)
		return
	}

	metrics.KeyRequestsTotal.WithLabelValues("served").Inc()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Cache-Control", "private, max-age=3600")
	if _, err := w.Write(key); err != nil {
		logging.Error("failed to write key response: %v", err)
	}
}

// keyRequestAllowed accepts recognized player user agents and any loopback
// client.
func (h *Handlers) keyRequestAllowed(r *http.Request) bool {
	ua := r.Header.Get("User-Agent")
	for _, marker := range allowedPlayerAgents {
		if strings.Contains(ua, marker) {
			return true
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	return false
}
