// Package library implements project lifecycle on top of the project
// store: compression on save, quota enforcement with optional eviction,
// search, export and cleanup.
package library

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/TheMichaelB/artvault/internal/config"
	"github.com/TheMichaelB/artvault/internal/events"
	"github.com/TheMichaelB/artvault/internal/imaging"
	"github.com/TheMichaelB/artvault/internal/models"
	"github.com/TheMichaelB/artvault/internal/projectdb"
)

// DefaultSearchLimit applies when a caller passes no limit.
const DefaultSearchLimit = 50

// exportVersion tags the backup document format.
const exportVersion = "1.0"

// Service owns saved projects. All quota policy lives here; the store
// below persists whatever it is told to.
type Service struct {
	store  projectdb.Store
	codec  *imaging.Codec
	cfg    *config.Config
	logger *events.Logger
}

// NewService creates a library service.
func NewService(store projectdb.Store, codec *imaging.Codec, cfg *config.Config, logger *events.Logger) *Service {
	return &Service{
		store:  store,
		codec:  codec,
		cfg:    cfg,
		logger: logger.WithField("service", "library"),
	}
}

// SaveProject compresses the request's images, enforces the storage
// quota (evicting old non-favorites when auto-cleanup is enabled) and
// persists the result. Returns the stored project.
func (s *Service) SaveProject(ctx context.Context, req *models.SaveProjectRequest) (*models.Project, error) {
	if len(req.OriginalImage.Data) == 0 {
		return nil, &models.ValidationError{Field: "original_image", Reason: "image data required"}
	}
	if len(req.TransformedImage) == 0 {
		return nil, &models.ValidationError{Field: "transformed_image", Reason: "image data required"}
	}

	s.logger.WithField("filename", req.OriginalImage.Filename).Debug("Compressing project images")

	opts := imaging.Options{
		MaxWidth:  s.cfg.Images.MaxDimension,
		MaxHeight: s.cfg.Images.MaxDimension,
		Quality:   s.cfg.Images.Quality,
		Format:    "auto",
		Adaptive:  true,
	}

	var original, transformed, thumbnail []byte
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, metrics, err := s.codec.AdaptiveCompress(gctx, req.OriginalImage.Data, opts)
		if err != nil {
			return fmt.Errorf("compress original: %w", err)
		}
		s.logger.WithField("ratio", metrics.CompressionRatio).Debug("Original compressed")
		original = out
		return nil
	})
	g.Go(func() error {
		out, metrics, err := s.codec.AdaptiveCompress(gctx, req.TransformedImage, opts)
		if err != nil {
			return fmt.Errorf("compress transformed: %w", err)
		}
		s.logger.WithField("ratio", metrics.CompressionRatio).Debug("Transformed compressed")
		transformed = out
		return nil
	})
	g.Go(func() error {
		out, err := s.codec.Thumbnail(gctx, req.TransformedImage, s.cfg.Images.ThumbnailSize, s.cfg.Images.ThumbnailQuality)
		if err != nil {
			return fmt.Errorf("generate thumbnail: %w", err)
		}
		thumbnail = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	project := &models.Project{
		ID:    uuid.New().String(),
		Title: req.Title,
		OriginalImage: models.ImageAsset{
			Data:     original,
			Filename: req.OriginalImage.Filename,
			Size:     int64(len(original)),
			MimeType: "image/jpeg",
		},
		TransformedImage: models.ImageAsset{
			Data:     transformed,
			Filename: transformedFilename(req.OriginalImage.Filename),
			Size:     int64(len(transformed)),
			MimeType: "image/jpeg",
		},
		Thumbnail:     thumbnail,
		ThumbnailSize: int64(len(thumbnail)),
		Style:         req.Style,
		Metadata: models.ProjectMetadata{
			CreatedAt:          now,
			TransformationTime: req.TransformationTime,
			Favorited:          false,
			Tags:               req.Tags,
		},
	}
	if project.Title == "" {
		project.Title = autoTitle(req.OriginalImage.Filename, req.Style.Name, now)
	}

	if err := s.ensureCapacity(ctx, project.EstimatedSize()); err != nil {
		return nil, err
	}

	if err := s.store.Save(project); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"project_id": project.ID,
		"size":       project.EstimatedSize(),
	}).Info("Project saved")

	return project, nil
}

// ensureCapacity verifies the request fits under the quota, evicting
// oldest non-favorited projects first when auto-cleanup is on.
func (s *Service) ensureCapacity(ctx context.Context, needed int64) error {
	stats, err := s.store.Stats()
	if err != nil {
		return fmt.Errorf("storage stats: %w", err)
	}

	limit := s.cfg.Storage.MaxTotalSize

	if stats.UsedStorage+needed > s.cfg.Storage.WarnThreshold {
		s.logger.WithFields(map[string]interface{}{
			"used":  stats.UsedStorage,
			"limit": limit,
		}).Warn("Storage usage above warning threshold")
	}

	if stats.UsedStorage+needed <= limit {
		return nil
	}

	quotaErr := &models.QuotaError{
		Used:      stats.UsedStorage,
		Requested: needed,
		Limit:     limit,
	}

	if !s.cfg.Storage.AutoCleanup {
		return quotaErr
	}

	freed, err := s.evictOldest(ctx, stats.UsedStorage+needed-limit)
	if err != nil {
		return err
	}
	if stats.UsedStorage-freed+needed > limit {
		return quotaErr
	}
	return nil
}

// evictOldest deletes non-favorited projects oldest-first until at least
// wanted bytes are freed or candidates run out. Favorites are never
// evicted.
func (s *Service) evictOldest(ctx context.Context, wanted int64) (int64, error) {
	candidates, err := s.evictionCandidates()
	if err != nil {
		return 0, err
	}

	var freed int64
	for i := len(candidates) - 1; i >= 0 && freed < wanted; i-- {
		p := candidates[i]
		if err := s.store.Delete(p.ID); err != nil {
			return freed, fmt.Errorf("evict project %s: %w", p.ID, err)
		}
		freed += p.EstimatedSize()

		s.logger.WithFields(map[string]interface{}{
			"project_id": p.ID,
			"freed":      p.EstimatedSize(),
		}).Info("Evicted project to reclaim storage")
	}

	return freed, nil
}

// evictionCandidates returns every non-favorited project, newest first.
func (s *Service) evictionCandidates() ([]*models.Project, error) {
	notFavorited := false
	filter := models.ProjectFilter{Favorited: &notFavorited}

	// First pass counts, second collects everything.
	result, err := s.store.Search(filter, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("list eviction candidates: %w", err)
	}
	if result.TotalCount == 0 {
		return nil, nil
	}

	result, err = s.store.Search(filter, result.TotalCount, 0)
	if err != nil {
		return nil, fmt.Errorf("list eviction candidates: %w", err)
	}
	return result.Projects, nil
}

// GetProject retrieves one project by ID.
func (s *Service) GetProject(ctx context.Context, id string) (*models.Project, error) {
	return s.store.Get(id)
}

// DeleteProject removes one project by ID.
func (s *Service) DeleteProject(ctx context.Context, id string) error {
	if err := s.store.Delete(id); err != nil {
		return err
	}
	s.logger.WithField("project_id", id).Info("Project deleted")
	return nil
}

// ToggleFavorite flips a project's favorite flag and returns the new
// value.
func (s *Service) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	return s.store.ToggleFavorite(id)
}

// SearchProjects runs a filtered, paginated search. A non-positive limit
// falls back to DefaultSearchLimit.
func (s *Service) SearchProjects(ctx context.Context, filter models.ProjectFilter, limit, offset int) (*models.SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	if offset < 0 {
		offset = 0
	}
	return s.store.Search(filter, limit, offset)
}

// GetRecentProjects returns the newest projects up to limit.
func (s *Service) GetRecentProjects(ctx context.Context, limit int) ([]*models.Project, error) {
	result, err := s.SearchProjects(ctx, models.ProjectFilter{}, limit, 0)
	if err != nil {
		return nil, err
	}
	return result.Projects, nil
}

// GetFavoriteProjects returns every favorited project, newest first.
func (s *Service) GetFavoriteProjects(ctx context.Context) ([]*models.Project, error) {
	favorited := true
	return s.collectAll(models.ProjectFilter{Favorited: &favorited})
}

// GetProjectsByStyle returns every project with the given style name,
// newest first.
func (s *Service) GetProjectsByStyle(ctx context.Context, style string) ([]*models.Project, error) {
	return s.collectAll(models.ProjectFilter{Style: style})
}

// SearchByText runs a substring search over titles and filenames.
func (s *Service) SearchByText(ctx context.Context, text string, limit, offset int) (*models.SearchResult, error) {
	return s.SearchProjects(ctx, models.ProjectFilter{Search: text}, limit, offset)
}

// collectAll exhausts a filter in one pass.
func (s *Service) collectAll(filter models.ProjectFilter) ([]*models.Project, error) {
	result, err := s.store.Search(filter, 0, 0)
	if err != nil {
		return nil, err
	}
	if result.TotalCount == 0 {
		return nil, nil
	}

	result, err = s.store.Search(filter, result.TotalCount, 0)
	if err != nil {
		return nil, err
	}
	return result.Projects, nil
}

// GetStorageStats returns raw storage accounting.
func (s *Service) GetStorageStats(ctx context.Context) (*models.StorageStats, error) {
	return s.store.Stats()
}

// GetStorageInfo returns the human-readable storage summary.
func (s *Service) GetStorageInfo(ctx context.Context) (*models.StorageInfo, error) {
	stats, err := s.store.Stats()
	if err != nil {
		return nil, err
	}

	return &models.StorageInfo{
		Used:         formatBytes(stats.UsedStorage),
		Available:    formatBytes(stats.AvailableStorage),
		Percentage:   int(stats.StoragePercentage + 0.5),
		ProjectCount: stats.TotalProjects,
	}, nil
}

// ExportProjects builds a portable backup document of every project and
// returns it with a dated suggested filename.
func (s *Service) ExportProjects(ctx context.Context) (*models.ExportDocument, string, error) {
	projects, err := s.collectAll(models.ProjectFilter{})
	if err != nil {
		return nil, "", fmt.Errorf("collect projects: %w", err)
	}

	stats, err := s.store.Stats()
	if err != nil {
		return nil, "", fmt.Errorf("storage stats: %w", err)
	}

	now := time.Now().UTC()
	doc := &models.ExportDocument{
		Version:    exportVersion,
		ExportDate: now,
		Projects:   make([]*models.ExportProject, 0, len(projects)),
		Stats:      *stats,
	}

	for _, p := range projects {
		doc.Projects = append(doc.Projects, &models.ExportProject{
			ID:    p.ID,
			Title: p.Title,
			OriginalImage: models.ExportAsset{
				Data:     imaging.ToDataURI(p.OriginalImage.Data, p.OriginalImage.MimeType),
				Filename: p.OriginalImage.Filename,
				Size:     p.OriginalImage.Size,
				MimeType: p.OriginalImage.MimeType,
			},
			TransformedImage: models.ExportAsset{
				Data:     imaging.ToDataURI(p.TransformedImage.Data, p.TransformedImage.MimeType),
				Filename: p.TransformedImage.Filename,
				Size:     p.TransformedImage.Size,
				MimeType: p.TransformedImage.MimeType,
			},
			Thumbnail: imaging.ToDataURI(p.Thumbnail, "image/jpeg"),
			Style:     p.Style,
			Metadata:  p.Metadata,
		})
	}

	filename := fmt.Sprintf("artvault-export-%s.json", now.Format("2006-01-02"))

	s.logger.WithFields(map[string]interface{}{
		"projects": len(doc.Projects),
		"filename": filename,
	}).Info("Export built")

	return doc, filename, nil
}

// CleanupStorage evicts oldest non-favorited projects until at least
// targetFree bytes are available. Returns how many projects were
// removed.
func (s *Service) CleanupStorage(ctx context.Context, targetFree int64) (int, error) {
	stats, err := s.store.Stats()
	if err != nil {
		return 0, fmt.Errorf("storage stats: %w", err)
	}

	if stats.AvailableStorage >= targetFree {
		return 0, nil
	}

	candidates, err := s.evictionCandidates()
	if err != nil {
		return 0, err
	}

	removed := 0
	available := stats.AvailableStorage
	for i := len(candidates) - 1; i >= 0 && available < targetFree; i-- {
		p := candidates[i]
		if err := s.store.Delete(p.ID); err != nil {
			return removed, fmt.Errorf("cleanup project %s: %w", p.ID, err)
		}
		available += p.EstimatedSize()
		removed++
	}

	s.logger.WithFields(map[string]interface{}{
		"removed":   removed,
		"available": available,
	}).Info("Storage cleanup complete")

	return removed, nil
}

// autoTitle builds "name - style (date)" from the source filename.
func autoTitle(filename, style string, at time.Time) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	if base == "" || base == "." {
		base = "Untitled"
	}
	if style == "" {
		return fmt.Sprintf("%s (%s)", base, at.Format("Jan 2, 2006"))
	}
	return fmt.Sprintf("%s - %s (%s)", base, style, at.Format("Jan 2, 2006"))
}

// transformedFilename derives the stored name for the transformed asset.
func transformedFilename(original string) string {
	base := strings.TrimSuffix(filepath.Base(original), filepath.Ext(original))
	if base == "" || base == "." {
		base = "untitled"
	}
	return base + "-transformed.jpg"
}

// formatBytes renders a byte count for humans.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
