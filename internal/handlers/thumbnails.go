package handlers

import (
	"errors"
	"net/http"
	"os"

	"github.com/gorilla/mux"

	"hls-vault/internal/database"
)

// ServeThumbnail delivers the poster image for an asset.
func (h *Handlers) ServeThumbnail(w http.ResponseWriter, r *http.Request) {
	asset, err := h.db.GetAsset(r.Context(), mux.Vars(r)["id"])
	if errors.Is(err, database.ErrNotFound) {
		writeJSONError(w, "video not found", http.StatusNotFound)
		return
	}
	if err != nil {
		writeJSONError(w, "failed to fetch video", http.StatusInternalServerError)
		return
	}
	if asset.ThumbnailPath == "" {
		writeJSONError(w, "no thumbnail", http.StatusNotFound)
		return
	}
	if _, err := os.Stat(asset.ThumbnailPath); err != nil {
		writeJSONError(w, "no thumbnail", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, asset.ThumbnailPath)
}
