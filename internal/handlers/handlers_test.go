package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"

	"hls-vault/internal/database"
	"hls-vault/internal/startup"
)

type fakeQueue struct {
	enqueued []string
	err      error
}

func (f *fakeQueue) Enqueue(assetID string) error {
	if f.err != nil {
		return f.err
	}
	f.enqueued = append(f.enqueued, assetID)
	return nil
}

type testHarness struct {
	h      *Handlers
	db     *database.Database
	queue  *fakeQueue
	router *mux.Router
	hlsDir string
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	cfg := &startup.Config{
		UploadDir:    t.TempDir(),
		HLSDir:       t.TempDir(),
		ThumbnailDir: t.TempDir(),
	}
	queue := &fakeQueue{}
	h := New(db, queue, cfg)

	r := mux.NewRouter()
	r.HandleFunc("/api/videos", h.UploadVideo).Methods(http.MethodPost)
	r.HandleFunc("/api/videos", h.ListVideos).Methods(http.MethodGet)
	r.HandleFunc("/api/videos/{id}", h.GetVideo).Methods(http.MethodGet)
	r.HandleFunc("/api/videos/{id}", h.DeleteVideo).Methods(http.MethodDelete)
	r.HandleFunc("/api/videos/{id}/reprocess", h.ReprocessVideo).Methods(http.MethodPost)
	r.HandleFunc("/api/videos/{id}/thumbnail", h.ServeThumbnail).Methods(http.MethodGet)
	r.HandleFunc("/api/hls/key/{keyfile}", h.ServeKey).Methods(http.MethodGet)
	r.HandleFunc("/api/hls/{path:.*}", h.ServeHLS).Methods(http.MethodGet)
	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.Liveness).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.Readiness).Methods(http.MethodGet)
	r.HandleFunc("/version", h.GetVersion).Methods(http.MethodGet)

	return &testHarness{h: h, db: db, queue: queue, router: r, hlsDir: cfg.HLSDir}
}

func (th *testHarness) do(t *testing.T, method, target string, body *bytes.Buffer, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, target, body)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	th.router.ServeHTTP(rec, req)
	return rec
}

func uploadBody(t *testing.T, filename, title string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("video", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("fake video bytes")); err != nil {
		t.Fatal(err)
	}
	if title != "" {
		if err := mw.WriteField("title", title); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}
