package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"hls-vault/internal/database"
	"hls-vault/internal/logging"
	"hls-vault/internal/mediatypes"
)

// maxUploadBytes caps a single upload at 8 GiB.
const maxUploadBytes = 8 << 30

// UploadVideo accepts a multipart upload, stores the source file and enqueues
// the asset for processing.
func (h *Handlers) UploadVideo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeJSONError(w, "invalid multipart request", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		writeJSONError(w, "missing video file field", http.StatusBadRequest)
		return
	}
	defer func() {
		if err := file.Close(); err != nil {
			logging.Error("failed to close upload: %v", err)
		}
	}()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !mediatypes.IsUploadable(ext) {
		writeJSONError(w, fmt.Sprintf("unsupported file type %q", ext), http.StatusUnsupportedMediaType)
		return
	}

	id := uuid.NewString()
	destPath := filepath.Join(h.uploadDir, id+ext)
	dest, err := os.Create(destPath)
	if err != nil {
		logging.Error("failed to create upload file: %v", err)
		writeJSONError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}
	size, err := io.Copy(dest, file)
	if closeErr := dest.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		logging.Error("failed to write upload %s: %v", destPath, err)
		if err := os.Remove(destPath); err != nil {
			logging.Error("failed to remove partial upload %s: %v", destPath, err)
		}
		writeJSONError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	title := strings.TrimSpace(r.FormValue("title"))
	if title == "" {
		title = strings.TrimSuffix(header.Filename, ext)
	}

	asset := &database.Asset{
		ID:               id,
		Title:            title,
		OriginalFilename: filepath.Base(header.Filename),
		OriginalPath:     destPath,
		FileSize:         size,
	}
	if err := h.db.CreateAsset(r.Context(), asset); err != nil {
		logging.Error("failed to create asset: %v", err)
		if err := os.Remove(destPath); err != nil {
			logging.Error("failed to remove upload %s: %v", destPath, err)
		}
		writeJSONError(w, "failed to create asset", http.StatusInternalServerError)
		return
	}

	if err := h.queue.Enqueue(id); err != nil {
		logging.Error("failed to enqueue asset %s: %v", id, err)
		// The asset stays in uploaded; a reprocess call can pick it up.
	}

	logging.Info("upload accepted: %s (%s, %d bytes)", id, asset.OriginalFilename, size)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, asset)
}

// ListVideos returns all assets newest-first.
func (h *Handlers) ListVideos(w http.ResponseWriter, r *http.Request) {
	assets, err := h.db.ListAssets(r.Context())
	if err != nil {
		logging.Error("failed to list assets: %v", err)
		writeJSONError(w, "failed to list videos", http.StatusInternalServerError)
		return
	}
	if assets == nil {
		assets = []*database.Asset{}
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, assets)
}

// GetVideo returns one asset.
func (h *Handlers) GetVideo(w http.ResponseWriter, r *http.Request) {
	asset, err := h.db.GetAsset(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "video not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("failed to fetch asset: %v", err)
		writeJSONError(w, "failed to fetch video", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	writeJSON(w, asset)
}

// ReprocessVideo re-enqueues an asset that is not currently processing.
func (h *Handlers) ReprocessVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	asset, err := h.db.GetAsset(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "video not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("failed to fetch asset: %v", err)
		writeJSONError(w, "failed to fetch video", http.StatusInternalServerError)
		return
	}
	if asset.Status == database.StatusProcessing {
		writeJSONError(w, "video is already processing", http.StatusConflict)
		return
	}

	if err := h.queue.Enqueue(id); err != nil {
		logging.Error("failed to enqueue asset %s: %v", id, err)
		writeJSONError(w, "failed to enqueue video", http.StatusServiceUnavailable)
		return
	}

	logging.Info("reprocess requested: %s", id)
	writeJSONStatus(w, "queued")
}

// DeleteVideo removes the asset row, its source file and all output.
func (h *Handlers) DeleteVideo(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	asset, err := h.db.GetAsset(r.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "video not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logging.Error("failed to fetch asset: %v", err)
		writeJSONError(w, "failed to fetch video", http.StatusInternalServerError)
		return
	}

	if err := h.db.DeleteAsset(r.Context(), id); err != nil {
		logging.Error("failed to delete asset %s: %v", id, err)
		writeJSONError(w, "failed to delete video", http.StatusInternalServerError)
		return
	}

	// File removal is best-effort after the row is gone.
	if asset.OriginalPath != "" {
		if err := os.Remove(asset.OriginalPath); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove source %s: %v", asset.OriginalPath, err)
		}
	}
	if err := os.RemoveAll(filepath.Join(h.hlsDir, id)); err != nil {
		logging.Warn("failed to remove output for %s: %v", id, err)
	}
	if asset.ThumbnailPath != "" {
		if err := os.Remove(asset.ThumbnailPath); err != nil && !os.IsNotExist(err) {
			logging.Warn("failed to remove thumbnail %s: %v", asset.ThumbnailPath, err)
		}
	}

	logging.Info("asset deleted: %s", id)
	writeJSONStatus(w, "deleted")
}
