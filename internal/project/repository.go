package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/obscura/obscura-agent/internal/region"
)

type Repository interface {
	UpsertVideo(ctx context.Context, v *Video) error
	GetVideo(ctx context.Context, id string) (*Video, error)
	GetVideoByPath(ctx context.Context, path string) (*Video, error)
	ListVideos(ctx context.Context) ([]*Video, error)
	DeleteVideo(ctx context.Context, id string) error
	TouchVideo(ctx context.Context, id string) error

	ReplaceRegions(ctx context.Context, videoID string, regions []*region.Region) error
	GetRegions(ctx context.Context, videoID string) ([]*region.Region, error)

	CreateJob(ctx context.Context, job *Job) error
	GetJob(ctx context.Context, id string) (*Job, error)
	ListJobs(ctx context.Context, limit int) ([]*Job, error)
	ListPendingJobs(ctx context.Context) ([]*Job, error)
	HasOpenJob(ctx context.Context, analysis bool) (bool, error)
	UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateJobProgress(ctx context.Context, id string, progress int) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) UpsertVideo(ctx context.Context, v *Video) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO videos (id, path, filename, width, height, fps, total_frames, created_at, last_opened_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			width = excluded.width,
			height = excluded.height,
			fps = excluded.fps,
			total_frames = excluded.total_frames,
			last_opened_at = excluded.last_opened_at
	`, v.ID, v.Path, v.Filename, v.Width, v.Height, v.FPS, v.TotalFrames,
		v.CreatedAt.Format(time.RFC3339), v.LastOpenedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetVideo(ctx context.Context, id string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, path, filename, width, height, fps, total_frames, created_at, last_opened_at
		FROM videos WHERE id = ?
	`, id)
	return scanVideo(row)
}

func (r *SQLiteRepository) GetVideoByPath(ctx context.Context, path string) (*Video, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, path, filename, width, height, fps, total_frames, created_at, last_opened_at
		FROM videos WHERE path = ?
	`, path)
	return scanVideo(row)
}

func scanVideo(row *sql.Row) (*Video, error) {
	var v Video
	var createdAt, lastOpenedAt string

	err := row.Scan(&v.ID, &v.Path, &v.Filename, &v.Width, &v.Height, &v.FPS, &v.TotalFrames, &createdAt, &lastOpenedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	v.LastOpenedAt, _ = time.Parse(time.RFC3339, lastOpenedAt)
	return &v, nil
}

func (r *SQLiteRepository) ListVideos(ctx context.Context) ([]*Video, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, path, filename, width, height, fps, total_frames, created_at, last_opened_at
		FROM videos ORDER BY last_opened_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var videos []*Video
	for rows.Next() {
		var v Video
		var createdAt, lastOpenedAt string
		if err := rows.Scan(&v.ID, &v.Path, &v.Filename, &v.Width, &v.Height, &v.FPS, &v.TotalFrames, &createdAt, &lastOpenedAt); err != nil {
			return nil, err
		}
		v.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		v.LastOpenedAt, _ = time.Parse(time.RFC3339, lastOpenedAt)
		videos = append(videos, &v)
	}
	return videos, rows.Err()
}

func (r *SQLiteRepository) DeleteVideo(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM videos WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) TouchVideo(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "UPDATE videos SET last_opened_at = datetime('now') WHERE id = ?", id)
	return err
}

// ReplaceRegions persists the full region list for a video in paint order,
// replacing whatever was stored before. The region list is small; a wholesale
// rewrite inside one transaction is simpler than diffing.
func (r *SQLiteRepository) ReplaceRegions(ctx context.Context, videoID string, regions []*region.Region) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM regions WHERE video_id = ?", videoID); err != nil {
		return err
	}

	for i, reg := range regions {
		tracked, err := json.Marshal(reg.TrackedPositions)
		if err != nil {
			return fmt.Errorf("marshal tracked positions for region %s: %w", reg.ID, err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO regions (id, video_id, x, y, w, h, active_from, active_to, blur_strength, origin, tracked_positions, paint_order, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, datetime('now'))
		`, reg.ID, videoID, reg.Bounds.X, reg.Bounds.Y, reg.Bounds.W, reg.Bounds.H,
			reg.ActiveFrom, reg.ActiveTo, reg.BlurStrength, string(reg.Origin), string(tracked), i); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) GetRegions(ctx context.Context, videoID string) ([]*region.Region, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, x, y, w, h, active_from, active_to, blur_strength, origin, tracked_positions
		FROM regions WHERE video_id = ? ORDER BY paint_order ASC
	`, videoID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var regions []*region.Region
	for rows.Next() {
		reg := &region.Region{}
		var origin, tracked string
		if err := rows.Scan(&reg.ID, &reg.Bounds.X, &reg.Bounds.Y, &reg.Bounds.W, &reg.Bounds.H,
			&reg.ActiveFrom, &reg.ActiveTo, &reg.BlurStrength, &origin, &tracked); err != nil {
			return nil, err
		}
		reg.Origin = region.Origin(origin)
		if tracked != "" && tracked != "{}" {
			if err := json.Unmarshal([]byte(tracked), &reg.TrackedPositions); err != nil {
				return nil, fmt.Errorf("unmarshal tracked positions for region %s: %w", reg.ID, err)
			}
		}
		regions = append(regions, reg)
	}
	return regions, rows.Err()
}

func (r *SQLiteRepository) CreateJob(ctx context.Context, j *Job) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO jobs (id, type, status, video_id, region_id, frame, progress, error, output_path, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.Type, j.Status, j.VideoID, j.RegionID, j.Frame, j.Progress, j.Error, j.OutputPath,
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339))
	return err
}

func (r *SQLiteRepository) GetJob(ctx context.Context, id string) (*Job, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, type, status, video_id, region_id, frame, progress, error, output_path, created_at, updated_at
		FROM jobs WHERE id = ?
	`, id)

	var j Job
	var createdAt, updatedAt string
	err := row.Scan(&j.ID, &j.Type, &j.Status, &j.VideoID, &j.RegionID, &j.Frame, &j.Progress, &j.Error, &j.OutputPath, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) ListJobs(ctx context.Context, limit int) ([]*Job, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, status, video_id, region_id, frame, progress, error, output_path, created_at, updated_at
		FROM jobs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

func (r *SQLiteRepository) ListPendingJobs(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, status, video_id, region_id, frame, progress, error, output_path, created_at, updated_at
		FROM jobs WHERE status = 'pending' ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanJobs(rows)
}

// HasOpenJob reports whether a pending or running job exists in the given
// family (export or analysis). New work in a busy family is rejected, not
// queued.
func (r *SQLiteRepository) HasOpenJob(ctx context.Context, analysis bool) (bool, error) {
	var count int
	var err error
	if analysis {
		err = r.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM jobs
			WHERE type IN (?, ?) AND status IN ('pending', 'running')
		`, JobTypeScanFaces, JobTypeTrack).Scan(&count)
	} else {
		err = r.db.QueryRowContext(ctx, `
			SELECT COUNT(*) FROM jobs
			WHERE type = ? AND status IN ('pending', 'running')
		`, JobTypeExport).Scan(&count)
	}
	return count > 0, err
}

func scanJobs(rows *sql.Rows) ([]*Job, error) {
	var jobs []*Job
	for rows.Next() {
		var j Job
		var createdAt, updatedAt string
		if err := rows.Scan(&j.ID, &j.Type, &j.Status, &j.VideoID, &j.RegionID, &j.Frame, &j.Progress, &j.Error, &j.OutputPath, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		jobs = append(jobs, &j)
	}
	return jobs, rows.Err()
}

func (r *SQLiteRepository) UpdateJobStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET status = ?, error = ?, updated_at = datetime('now') WHERE id = ?
	`, status, errorMsg, id)
	return err
}

func (r *SQLiteRepository) UpdateJobProgress(ctx context.Context, id string, progress int) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE jobs SET progress = ?, updated_at = datetime('now') WHERE id = ?
	`, progress, id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
