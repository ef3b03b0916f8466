package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"objectvision/internal/dto"
	"objectvision/internal/model"
)

// MediaRepository implements repository.MediaRepository for SQLite.
type MediaRepository struct {
	db *DB
}

// NewMediaRepository creates a new SQLite media repository.
func NewMediaRepository(db *DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Insert adds a new media record. A zero CreatedAt is set to now.
func (r *MediaRepository) Insert(media *model.Media) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	if media.CreatedAt.IsZero() {
		media.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.Conn().Exec(`
		INSERT INTO media (filename, processed, pipeline, filesize, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, media.Filename, media.Processed, media.Pipeline, media.FileSize, media.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("failed to insert media: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}
	media.ID = id
	return id, nil
}

// GetByFilename retrieves a record by its original or processed filename.
// It returns nil, nil when nothing matches.
func (r *MediaRepository) GetByFilename(filename string) (*model.Media, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var m model.Media
	err := r.db.Conn().QueryRow(`
		SELECT id, filename, processed, pipeline, filesize, created_at
		FROM media WHERE filename = ? OR processed = ?
	`, filename, filename).Scan(&m.ID, &m.Filename, &m.Processed, &m.Pipeline, &m.FileSize, &m.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	return &m, nil
}

// GetAll retrieves media records, newest first.
func (r *MediaRepository) GetAll(filter *dto.MediaFilters) ([]model.Media, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := filterClause(`
		SELECT id, filename, processed, pipeline, filesize, created_at
		FROM media WHERE 1=1
	`, filter)

	query += " ORDER BY created_at DESC, id DESC"

	if filter != nil && filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query media: %w", err)
	}
	defer rows.Close()

	media := []model.Media{}
	for rows.Next() {
		var m model.Media
		if err := rows.Scan(&m.ID, &m.Filename, &m.Processed, &m.Pipeline, &m.FileSize, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		media = append(media, m)
	}

	return media, rows.Err()
}

// GetTotalCount returns the number of records matching the filter.
func (r *MediaRepository) GetTotalCount(filter *dto.MediaFilters) (int, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	query, args := filterClause(`SELECT COUNT(*) FROM media WHERE 1=1`, filter)

	var count int
	if err := r.db.Conn().QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count media: %w", err)
	}
	return count, nil
}

// GetTotalSize returns the summed size of all catalogued uploads in bytes.
func (r *MediaRepository) GetTotalSize() (int64, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	var size int64
	if err := r.db.Conn().QueryRow(`SELECT COALESCE(SUM(filesize), 0) FROM media`).Scan(&size); err != nil {
		return 0, fmt.Errorf("failed to sum media size: %w", err)
	}
	return size, nil
}

// DeleteByFilename removes the record for an original or processed filename.
func (r *MediaRepository) DeleteByFilename(filename string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM media WHERE filename = ? OR processed = ?`, filename, filename); err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	return nil
}

// DeleteAll removes every record.
func (r *MediaRepository) DeleteAll() error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`DELETE FROM media`); err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}
	return nil
}

func filterClause(query string, filter *dto.MediaFilters) (string, []interface{}) {
	args := []interface{}{}
	if filter == nil {
		return query, args
	}

	if filter.Pipeline != "" {
		query += " AND pipeline = ?"
		args = append(args, filter.Pipeline)
	}
	return query, args
}
