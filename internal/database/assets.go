package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hls-vault/internal/logging"
	"hls-vault/internal/metrics"
)

// ErrNotFound is returned when an asset id does not exist.
var ErrNotFound = errors.New("asset not found")

const assetColumns = `id, title, original_filename, original_path, status,
	duration_seconds, hls_path, thumbnail_path, tracks, file_size,
	error_message, created_at, updated_at, processed_at`

// CreateAsset inserts a new asset in the uploaded state.
func (d *Database) CreateAsset(ctx context.Context, a *Asset) error {
	start := time.Now()

	tracks, err := json.Marshal(a.Tracks)
	if err != nil {
		return fmt.Errorf("encoding tracks: %w", err)
	}
	if a.Status == "" {
		a.Status = StatusUploaded
	}
	now := time.Now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO videos (id, title, original_filename, original_path, status,
			duration_seconds, hls_path, thumbnail_path, tracks, file_size,
			error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Title, a.OriginalFilename, a.OriginalPath, a.Status,
		a.DurationSeconds, a.HLSPath, a.ThumbnailPath, string(tracks), a.FileSize,
		a.ErrorMessage, a.CreatedAt, a.UpdatedAt)
	observe("create_asset", start, err)
	if err != nil {
		return fmt.Errorf("inserting asset %s: %w", a.ID, err)
	}
	return nil
}

// GetAsset fetches one asset by id.
func (d *Database) GetAsset(ctx context.Context, id string) (*Asset, error) {
	start := time.Now()
	row := d.db.QueryRowContext(ctx,
		"SELECT "+assetColumns+" FROM videos WHERE id = ?", id)
	a, err := scanAsset(row)
	observe("get_asset", start, err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching asset %s: %w", id, err)
	}
	return a, nil
}

// ListAssets returns all assets newest-first.
func (d *Database) ListAssets(ctx context.Context) ([]*Asset, error) {
	start := time.Now()
	rows, err := d.db.QueryContext(ctx,
		"SELECT "+assetColumns+" FROM videos ORDER BY created_at DESC, id")
	observe("list_assets", start, err)
	if err != nil {
		return nil, fmt.Errorf("listing assets: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("failed to close rows: %v", err)
		}
	}()

	var assets []*Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning asset: %w", err)
		}
		assets = append(assets, a)
	}
	return assets, rows.Err()
}

// MarkProcessing moves the asset into the processing state and clears any
// previous error. Allowed from uploaded, failed and completed (reprocess).
func (d *Database) MarkProcessing(ctx context.Context, id string) error {
	start := time.Now()
	res, err := d.db.ExecContext(ctx, `
		UPDATE videos SET status = ?, error_message = '', updated_at = ?
		WHERE id = ? AND status IN (?, ?, ?)`,
		StatusProcessing, time.Now().UTC(), id,
		StatusUploaded, StatusFailed, StatusCompleted)
	observe("mark_processing", start, err)
	if err != nil {
		return fmt.Errorf("marking asset %s processing: %w", id, err)
	}
	return requireRow(res, id)
}

// SetDuration stores the probed duration.
func (d *Database) SetDuration(ctx context.Context, id string, seconds int) error {
	start := time.Now()
	res, err := d.db.ExecContext(ctx,
		"UPDATE videos SET duration_seconds = ?, updated_at = ? WHERE id = ?",
		seconds, time.Now().UTC(), id)
	observe("set_duration", start, err)
	if err != nil {
		return fmt.Errorf("setting duration for %s: %w", id, err)
	}
	return requireRow(res, id)
}

// SetThumbnail stores the poster path.
func (d *Database) SetThumbnail(ctx context.Context, id, path string) error {
	start := time.Now()
	res, err := d.db.ExecContext(ctx,
		"UPDATE videos SET thumbnail_path = ?, updated_at = ? WHERE id = ?",
		path, time.Now().UTC(), id)
	observe("set_thumbnail", start, err)
	if err != nil {
		return fmt.Errorf("setting thumbnail for %s: %w", id, err)
	}
	return requireRow(res, id)
}

// MarkCompleted records a successful run: the playable path and the tracks
// that made it into the master playlist. Only the processing row can be
// completed, so a stale worker cannot overwrite another run's outcome.
func (d *Database) MarkCompleted(ctx context.Context, id, hlsPath string, tracks []string) error {
	start := time.Now()
	encoded, err := json.Marshal(tracks)
	if err != nil {
		return fmt.Errorf("encoding tracks: %w", err)
	}
	now := time.Now().UTC()
	res, err := d.db.ExecContext(ctx, `
		UPDATE videos SET status = ?, hls_path = ?, tracks = ?,
			error_message = '', updated_at = ?, processed_at = ?
		WHERE id = ? AND status = ?`,
		StatusCompleted, hlsPath, string(encoded), now, now, id, StatusProcessing)
	observe("mark_completed", start, err)
	if err != nil {
		return fmt.Errorf("marking asset %s completed: %w", id, err)
	}
	return requireRow(res, id)
}

// MarkFailed records a failed run with its reason. Guarded like MarkCompleted:
// only the processing row can be failed.
func (d *Database) MarkFailed(ctx context.Context, id, reason string) error {
	start := time.Now()
	now := time.Now().UTC()
	res, err := d.db.ExecContext(ctx, `
		UPDATE videos SET status = ?, error_message = ?, updated_at = ?, processed_at = ?
		WHERE id = ? AND status = ?`,
		StatusFailed, reason, now, now, id, StatusProcessing)
	observe("mark_failed", start, err)
	if err != nil {
		return fmt.Errorf("marking asset %s failed: %w", id, err)
	}
	return requireRow(res, id)
}

// DeleteAsset removes the asset row. Callers remove output files separately.
func (d *Database) DeleteAsset(ctx context.Context, id string) error {
	start := time.Now()
	res, err := d.db.ExecContext(ctx, "DELETE FROM videos WHERE id = ?", id)
	observe("delete_asset", start, err)
	if err != nil {
		return fmt.Errorf("deleting asset %s: %w", id, err)
	}
	return requireRow(res, id)
}

// GetStats returns asset counts by status for the metrics collector.
func (d *Database) GetStats() metrics.Stats {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	start := time.Now()
	rows, err := d.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM videos GROUP BY status")
	observe("get_stats", start, err)
	if err != nil {
		logging.Error("failed to collect asset stats: %v", err)
		return metrics.Stats{}
	}
	defer func() {
		if err := rows.Close(); err != nil {
			logging.Error("failed to close rows: %v", err)
		}
	}()

	var stats metrics.Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			continue
		}
		switch status {
		case StatusUploaded:
			stats.Uploaded = count
		case StatusProcessing:
			stats.Processing = count
		case StatusCompleted:
			stats.Completed = count
		case StatusFailed:
			stats.Failed = count
		}
	}
	metrics.DBConnectionsOpen.Set(float64(d.db.Stats().OpenConnections))
	return stats
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (*Asset, error) {
	var a Asset
	var duration sql.NullInt64
	var processedAt sql.NullTime
	var tracks string

	err := row.Scan(&a.ID, &a.Title, &a.OriginalFilename, &a.OriginalPath,
		&a.Status, &duration, &a.HLSPath, &a.ThumbnailPath, &tracks,
		&a.FileSize, &a.ErrorMessage, &a.CreatedAt, &a.UpdatedAt, &processedAt)
	if err != nil {
		return nil, err
	}
	if duration.Valid {
		v := int(duration.Int64)
		a.DurationSeconds = &v
	}
	if processedAt.Valid {
		t := processedAt.Time
		a.ProcessedAt = &t
	}
	if err := json.Unmarshal([]byte(tracks), &a.Tracks); err != nil {
		return nil, fmt.Errorf("decoding tracks for %s: %w", a.ID, err)
	}
	return &a, nil
}

func requireRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("asset %s: %w", id, ErrNotFound)
	}
	return nil
}
