package handlers

import (
	"hls-vault/internal/database"
	"hls-vault/internal/startup"
)

// Enqueuer submits assets for processing.
type Enqueuer interface {
	Enqueue(assetID string) error
}

type Handlers struct {
	db           *database.Database
	queue        Enqueuer
	uploadDir    string
	hlsDir       string
	thumbnailDir string
}

func New(db *database.Database, queue Enqueuer, config *startup.Config) *Handlers {
	return &Handlers{
		db:           db,
		queue:        queue,
		uploadDir:    config.UploadDir,
		hlsDir:       config.HLSDir,
		thumbnailDir: config.ThumbnailDir,
	}
}
