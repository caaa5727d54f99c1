package projectdb

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/TheMichaelB/artvault/internal/events"
	"github.com/TheMichaelB/artvault/internal/models"
)

// SQLiteStore implements SQLite-based project storage.
type SQLiteStore struct {
	db       *sql.DB
	maxTotal int64
	logger   *events.Logger
}

// NewSQLiteStore creates a SQLite project store. maxTotalSize is the
// configured quota ceiling used for storage accounting.
func NewSQLiteStore(dbPath string, maxTotalSize int64, logger *events.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{
		db:       db,
		maxTotal: maxTotalSize,
		logger:   logger.WithField("component", "sqlite_project_store"),
	}

	if err := store.initialize(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize database: %w", err)
	}

	return store, nil
}

// initialize creates tables and indexes.
func (s *SQLiteStore) initialize() error {
	schema := `
    CREATE TABLE IF NOT EXISTS projects (
        id TEXT PRIMARY KEY,
        title TEXT NOT NULL,
        original_data BLOB NOT NULL,
        original_filename TEXT NOT NULL,
        original_size INTEGER NOT NULL,
        original_mime TEXT NOT NULL DEFAULT '',
        transformed_data BLOB NOT NULL,
        transformed_filename TEXT NOT NULL,
        transformed_size INTEGER NOT NULL,
        thumbnail BLOB NOT NULL,
        thumbnail_size INTEGER NOT NULL,
        style_name TEXT NOT NULL,
        style_params TEXT NOT NULL DEFAULT '{}',
        created_at TIMESTAMP NOT NULL,
        transformation_ms INTEGER NOT NULL DEFAULT 0,
        favorited INTEGER NOT NULL DEFAULT 0,
        tags TEXT NOT NULL DEFAULT '[]'
    );

    CREATE INDEX IF NOT EXISTS idx_projects_created_at ON projects(created_at);
    CREATE INDEX IF NOT EXISTS idx_projects_favorited ON projects(favorited);
    CREATE INDEX IF NOT EXISTS idx_projects_style ON projects(style_name);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Save upserts a project by ID.
func (s *SQLiteStore) Save(p *models.Project) error {
	s.logger.WithFields(map[string]interface{}{
		"id":    p.ID,
		"title": p.Title,
		"size":  p.EstimatedSize(),
	}).Debug("Saving project")

	styleParams, err := json.Marshal(p.Style.Parameters)
	if err != nil {
		return fmt.Errorf("marshal style parameters: %w", err)
	}

	tags := p.Metadata.Tags
	if tags == nil {
		tags = []string{}
	}
	tagsJSON, err := json.Marshal(tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = s.db.Exec(`
        INSERT INTO projects (
            id, title,
            original_data, original_filename, original_size, original_mime,
            transformed_data, transformed_filename, transformed_size,
            thumbnail, thumbnail_size,
            style_name, style_params,
            created_at, transformation_ms, favorited, tags
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(id) DO UPDATE SET
            title = excluded.title,
            original_data = excluded.original_data,
            original_filename = excluded.original_filename,
            original_size = excluded.original_size,
            original_mime = excluded.original_mime,
            transformed_data = excluded.transformed_data,
            transformed_filename = excluded.transformed_filename,
            transformed_size = excluded.transformed_size,
            thumbnail = excluded.thumbnail,
            thumbnail_size = excluded.thumbnail_size,
            style_name = excluded.style_name,
            style_params = excluded.style_params,
            created_at = excluded.created_at,
            transformation_ms = excluded.transformation_ms,
            favorited = excluded.favorited,
            tags = excluded.tags
    `,
		p.ID, p.Title,
		p.OriginalImage.Data, p.OriginalImage.Filename, p.OriginalImage.Size, p.OriginalImage.MimeType,
		p.TransformedImage.Data, p.TransformedImage.Filename, p.TransformedImage.Size,
		p.Thumbnail, p.ThumbnailSize,
		p.Style.Name, string(styleParams),
		p.Metadata.CreatedAt, p.Metadata.TransformationTime, p.Metadata.Favorited, string(tagsJSON),
	)

	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}

	return nil
}

// Get retrieves a project by ID.
func (s *SQLiteStore) Get(id string) (*models.Project, error) {
	row := s.db.QueryRow(selectColumns+" FROM projects WHERE id = ?", id)

	p, err := scanProject(row)
	if err == sql.ErrNoRows {
		return nil, models.ErrProjectNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query project: %w", err)
	}

	return p, nil
}

// Delete removes a project by ID.
func (s *SQLiteStore) Delete(id string) error {
	res, err := s.db.Exec("DELETE FROM projects WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete project: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return models.ErrProjectNotFound
	}

	s.logger.WithField("id", id).Info("Deleted project")
	return nil
}

// ToggleFavorite flips the favorited flag via read-modify-write. Not
// atomic against a concurrent toggler; last write wins.
func (s *SQLiteStore) ToggleFavorite(id string) (bool, error) {
	p, err := s.Get(id)
	if err != nil {
		return false, err
	}

	p.Metadata.Favorited = !p.Metadata.Favorited
	if err := s.Save(p); err != nil {
		return false, err
	}

	return p.Metadata.Favorited, nil
}

// Search walks records newest-first, narrowing by the most selective
// index the filter allows (favorited, then style, then plain creation
// order) and applying the full predicate per row. totalCount accumulates
// across the whole walk so hasMore is exact.
func (s *SQLiteStore) Search(filter models.ProjectFilter, limit, offset int) (*models.SearchResult, error) {
	if limit < 0 || offset < 0 {
		return nil, &models.ValidationError{Field: "pagination", Reason: "limit and offset must be non-negative"}
	}

	query := selectColumns + " FROM projects"
	var args []interface{}

	// The index narrows; it never fully satisfies a compound filter.
	switch {
	case filter.Favorited != nil:
		query += " WHERE favorited = ?"
		args = append(args, *filter.Favorited)
	case filter.Style != "":
		query += " WHERE style_name = ?"
		args = append(args, filter.Style)
	}

	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("open cursor: %w", err)
	}
	defer rows.Close()

	result := &models.SearchResult{Projects: []*models.Project{}}

	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project row: %w", err)
		}

		if !filter.Matches(p) {
			continue
		}

		result.TotalCount++
		if result.TotalCount > offset && len(result.Projects) < limit {
			result.Projects = append(result.Projects, p)
		}
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	result.HasMore = result.TotalCount > offset+limit
	return result, nil
}

// Stats computes storage accounting with a full-store scan. Not cached:
// records can change between calls.
func (s *SQLiteStore) Stats() (*models.StorageStats, error) {
	const metadataOverhead = 1024

	var count int
	var used sql.NullInt64

	err := s.db.QueryRow(`
        SELECT COUNT(*),
               SUM(original_size + transformed_size + thumbnail_size + ?)
        FROM projects
    `, metadataOverhead).Scan(&count, &used)
	if err != nil {
		return nil, fmt.Errorf("query storage stats: %w", err)
	}

	stats := &models.StorageStats{
		TotalProjects: count,
		TotalSize:     used.Int64,
		UsedStorage:   used.Int64,
	}
	stats.AvailableStorage = s.maxTotal - stats.UsedStorage
	if s.maxTotal > 0 {
		stats.StoragePercentage = float64(stats.UsedStorage) / float64(s.maxTotal) * 100
	}

	return stats, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectColumns = `SELECT
    id, title,
    original_data, original_filename, original_size, original_mime,
    transformed_data, transformed_filename, transformed_size,
    thumbnail, thumbnail_size,
    style_name, style_params,
    created_at, transformation_ms, favorited, tags`

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row scanner) (*models.Project, error) {
	var p models.Project
	var styleParams, tags string

	err := row.Scan(
		&p.ID, &p.Title,
		&p.OriginalImage.Data, &p.OriginalImage.Filename, &p.OriginalImage.Size, &p.OriginalImage.MimeType,
		&p.TransformedImage.Data, &p.TransformedImage.Filename, &p.TransformedImage.Size,
		&p.Thumbnail, &p.ThumbnailSize,
		&p.Style.Name, &styleParams,
		&p.Metadata.CreatedAt, &p.Metadata.TransformationTime, &p.Metadata.Favorited, &tags,
	)
	if err != nil {
		return nil, err
	}

	if styleParams != "" && styleParams != "{}" {
		if err := json.Unmarshal([]byte(styleParams), &p.Style.Parameters); err != nil {
			return nil, fmt.Errorf("parse style parameters: %w", err)
		}
	}

	p.Metadata.Tags = []string{}
	if tags != "" {
		if err := json.Unmarshal([]byte(tags), &p.Metadata.Tags); err != nil {
			return nil, fmt.Errorf("parse tags: %w", err)
		}
	}

	return &p, nil
}
