package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"stream-resolver/internal/domain"
	"stream-resolver/internal/repository"
)

const createResolutionsTable = `
CREATE TABLE IF NOT EXISTS resolutions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	hash TEXT NOT NULL,
	requester TEXT NOT NULL,
	season INTEGER NOT NULL DEFAULT 0,
	episode INTEGER NOT NULL DEFAULT 0,
	absolute_episode INTEGER NOT NULL DEFAULT 0,
	file_index INTEGER NOT NULL,
	file_path TEXT NOT NULL,
	url TEXT NOT NULL,
	created_at DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_resolutions_hash ON resolutions(hash);
CREATE INDEX IF NOT EXISTS idx_resolutions_requester ON resolutions(requester);
`

type ResolutionRepository struct {
	db *sql.DB
}

func NewResolutionRepository(db *sql.DB) repository.ResolutionRepository {
	return &ResolutionRepository{db: db}
}

func (r *ResolutionRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createResolutionsTable); err != nil {
		return fmt.Errorf("create resolutions table: %w", err)
	}
	return nil
}

func (r *ResolutionRepository) Create(ctx context.Context, rec *domain.ResolutionRecord) (int64, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO resolutions (hash, requester, season, episode, absolute_episode, file_index, file_path, url, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Hash,
		rec.Requester,
		rec.Season,
		rec.Episode,
		rec.AbsoluteEpisode,
		rec.FileIndex,
		rec.FilePath,
		rec.URL,
		rec.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("insert resolution: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("resolution last insert id: %w", err)
	}
	rec.ID = id
	return id, nil
}

func (r *ResolutionRepository) List(ctx context.Context, limit int) ([]domain.ResolutionRecord, error) {
	return r.query(ctx, `
SELECT id, hash, requester, season, episode, absolute_episode, file_index, file_path, url, created_at
FROM resolutions
ORDER BY id DESC
LIMIT ?`, limit)
}

func (r *ResolutionRepository) ListByRequester(ctx context.Context, requester string, limit int) ([]domain.ResolutionRecord, error) {
	return r.query(ctx, `
SELECT id, hash, requester, season, episode, absolute_episode, file_index, file_path, url, created_at
FROM resolutions
WHERE requester = ?
ORDER BY id DESC
LIMIT ?`, requester, limit)
}

func (r *ResolutionRepository) query(ctx context.Context, q string, args ...any) ([]domain.ResolutionRecord, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query resolutions: %w", err)
	}
	defer rows.Close()

	var records []domain.ResolutionRecord
	for rows.Next() {
		var rec domain.ResolutionRecord
		if err := rows.Scan(
			&rec.ID,
			&rec.Hash,
			&rec.Requester,
			&rec.Season,
			&rec.Episode,
			&rec.AbsoluteEpisode,
			&rec.FileIndex,
			&rec.FilePath,
			&rec.URL,
			&rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan resolution: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}
