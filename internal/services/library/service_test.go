package library_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TheMichaelB/artvault/internal/config"
	"github.com/TheMichaelB/artvault/internal/events"
	"github.com/TheMichaelB/artvault/internal/imaging"
	"github.com/TheMichaelB/artvault/internal/models"
	"github.com/TheMichaelB/artvault/internal/projectdb"
	"github.com/TheMichaelB/artvault/internal/services/library"
	"github.com/TheMichaelB/artvault/test/testutil"
)

type harness struct {
	service *library.Service
	store   projectdb.Store
	cfg     *config.Config
}

// newHarness builds a service over a real SQLite store with a small
// quota so eviction paths are reachable with test-sized images.
func newHarness(t *testing.T, maxTotalSize int64, autoCleanup bool) *harness {
	t.Helper()

	logger := events.Discard()

	cfg := config.DefaultConfig()
	cfg.Storage.DataDir = t.TempDir()
	cfg.Storage.MaxTotalSize = maxTotalSize
	cfg.Storage.WarnThreshold = maxTotalSize * 4 / 5
	cfg.Storage.AutoCleanup = autoCleanup
	cfg.Images.MaxDimension = 400
	cfg.Images.ThumbnailSize = 64

	store, err := projectdb.NewSQLiteStore(filepath.Join(cfg.Storage.DataDir, "projects.db"), maxTotalSize, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	codec, err := imaging.NewCodec(2, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = codec.Close() })

	return &harness{
		service: library.NewService(store, codec, cfg, logger),
		store:   store,
		cfg:     cfg,
	}
}

func saveRequest(filename, style string) *models.SaveProjectRequest {
	return &models.SaveProjectRequest{
		OriginalImage: models.ImageAsset{
			Data:     testutil.JPEGImage(800, 600),
			Filename: filename,
		},
		TransformedImage:   testutil.JPEGImage(800, 600),
		Style:              models.StyleInfo{Name: style},
		TransformationTime: 1500,
	}
}

func TestSaveProject(t *testing.T) {
	h := newHarness(t, 10*1024*1024, true)
	ctx := context.Background()

	t.Run("compresses and persists", func(t *testing.T) {
		req := saveRequest("sunset.jpg", "Renaissance")

		project, err := h.service.SaveProject(ctx, req)
		require.NoError(t, err)
		require.NotEmpty(t, project.ID)

		stored, err := h.service.GetProject(ctx, project.ID)
		require.NoError(t, err)

		assert.Equal(t, "sunset.jpg", stored.OriginalImage.Filename)
		assert.Equal(t, "sunset-transformed.jpg", stored.TransformedImage.Filename)
		assert.Equal(t, "Renaissance", stored.Style.Name)
		assert.NotEmpty(t, stored.Thumbnail)
		assert.Equal(t, int64(len(stored.Thumbnail)), stored.ThumbnailSize)
		assert.Equal(t, int64(len(stored.OriginalImage.Data)), stored.OriginalImage.Size)
		assert.False(t, stored.Metadata.Favorited)
		assert.Equal(t, int64(1500), stored.Metadata.TransformationTime)
	})

	t.Run("generates a title when absent", func(t *testing.T) {
		project, err := h.service.SaveProject(ctx, saveRequest("garden.png", "Cubist"))
		require.NoError(t, err)

		assert.Contains(t, project.Title, "garden")
		assert.Contains(t, project.Title, "Cubist")
	})

	t.Run("keeps an explicit title", func(t *testing.T) {
		req := saveRequest("x.jpg", "Cubist")
		req.Title = "My Masterpiece"

		project, err := h.service.SaveProject(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, "My Masterpiece", project.Title)
	})

	t.Run("rejects empty payloads", func(t *testing.T) {
		req := saveRequest("y.jpg", "Cubist")
		req.OriginalImage.Data = nil

		_, err := h.service.SaveProject(ctx, req)
		var vErr *models.ValidationError
		assert.True(t, errors.As(err, &vErr))
	})
}

func TestQuotaEnforcement(t *testing.T) {
	// Small enough that a few dozen compressed test projects overflow
	// it, large enough that any single project fits.
	const quota = 150 * 1024
	const maxSaves = 60

	t.Run("evicts oldest non-favorites when full", func(t *testing.T) {
		h := newHarness(t, quota, true)
		ctx := context.Background()

		first, err := h.service.SaveProject(ctx, saveRequest("first.jpg", "A"))
		require.NoError(t, err)

		// Keep saving until quota pressure evicts the oldest project.
		var lastID string
		for i := 0; i < maxSaves; i++ {
			p, err := h.service.SaveProject(ctx, saveRequest("filler.jpg", "A"))
			require.NoError(t, err)
			lastID = p.ID

			if _, err := h.service.GetProject(ctx, first.ID); errors.Is(err, models.ErrProjectNotFound) {
				// Eviction happened; the newest project survives and
				// usage stays under the ceiling.
				_, err = h.service.GetProject(ctx, lastID)
				assert.NoError(t, err)

				stats, err := h.service.GetStorageStats(ctx)
				require.NoError(t, err)
				assert.LessOrEqual(t, stats.UsedStorage, int64(quota))
				return
			}
		}
		t.Fatal("oldest project never evicted")
	})

	t.Run("never evicts favorites", func(t *testing.T) {
		h := newHarness(t, quota, true)
		ctx := context.Background()

		kept, err := h.service.SaveProject(ctx, saveRequest("keep.jpg", "A"))
		require.NoError(t, err)
		_, err = h.service.ToggleFavorite(ctx, kept.ID)
		require.NoError(t, err)

		for i := 0; i < maxSaves; i++ {
			_, err := h.service.SaveProject(ctx, saveRequest("filler.jpg", "A"))
			require.NoError(t, err)
		}

		_, err = h.service.GetProject(ctx, kept.ID)
		assert.NoError(t, err)
	})

	t.Run("fails without auto-cleanup", func(t *testing.T) {
		h := newHarness(t, quota, false)
		ctx := context.Background()

		var quotaErr *models.QuotaError
		for i := 0; i < maxSaves; i++ {
			_, err := h.service.SaveProject(ctx, saveRequest("filler.jpg", "A"))
			if err != nil {
				require.True(t, errors.As(err, &quotaErr))
				assert.ErrorIs(t, err, models.ErrQuotaExceeded)
				assert.Equal(t, int64(quota), quotaErr.Limit)
				return
			}
		}
		t.Fatal("quota never enforced")
	})

	t.Run("fails when only favorites remain", func(t *testing.T) {
		h := newHarness(t, quota, true)
		ctx := context.Background()

		for i := 0; i < maxSaves; i++ {
			p, err := h.service.SaveProject(ctx, saveRequest("fav.jpg", "A"))
			if err != nil {
				assert.ErrorIs(t, err, models.ErrQuotaExceeded)
				return
			}
			_, err = h.service.ToggleFavorite(ctx, p.ID)
			require.NoError(t, err)
		}
		t.Fatal("quota never enforced")
	})
}

func TestSearchAndListing(t *testing.T) {
	h := newHarness(t, 50*1024*1024, true)
	ctx := context.Background()

	styles := []string{"Renaissance", "Cubist", "Renaissance", "Watercolor"}
	ids := make([]string, 0, len(styles))
	for _, style := range styles {
		req := saveRequest("city.jpg", style)
		req.Title = style + " city"
		p, err := h.service.SaveProject(ctx, req)
		require.NoError(t, err)
		ids = append(ids, p.ID)

		// Distinct creation instants keep ordering deterministic.
		time.Sleep(5 * time.Millisecond)
	}

	t.Run("by style", func(t *testing.T) {
		projects, err := h.service.GetProjectsByStyle(ctx, "Renaissance")
		require.NoError(t, err)
		require.Len(t, projects, 2)
		// Newest first.
		assert.Equal(t, ids[2], projects[0].ID)
		assert.Equal(t, ids[0], projects[1].ID)
	})

	t.Run("by text", func(t *testing.T) {
		result, err := h.service.SearchByText(ctx, "watercolor", 0, 0)
		require.NoError(t, err)
		require.Equal(t, 1, result.TotalCount)
		assert.Equal(t, ids[3], result.Projects[0].ID)
	})

	t.Run("recent respects limit and order", func(t *testing.T) {
		projects, err := h.service.GetRecentProjects(ctx, 2)
		require.NoError(t, err)
		require.Len(t, projects, 2)
		assert.Equal(t, ids[3], projects[0].ID)
		assert.Equal(t, ids[2], projects[1].ID)
	})

	t.Run("favorites", func(t *testing.T) {
		_, err := h.service.ToggleFavorite(ctx, ids[1])
		require.NoError(t, err)

		projects, err := h.service.GetFavoriteProjects(ctx)
		require.NoError(t, err)
		require.Len(t, projects, 1)
		assert.Equal(t, ids[1], projects[0].ID)
	})
}

func TestDeleteProject(t *testing.T) {
	h := newHarness(t, 10*1024*1024, true)
	ctx := context.Background()

	p, err := h.service.SaveProject(ctx, saveRequest("a.jpg", "A"))
	require.NoError(t, err)

	require.NoError(t, h.service.DeleteProject(ctx, p.ID))
	assert.ErrorIs(t, h.service.DeleteProject(ctx, p.ID), models.ErrProjectNotFound)
}

func TestStorageInfo(t *testing.T) {
	h := newHarness(t, 10*1024*1024, true)
	ctx := context.Background()

	info, err := h.service.GetStorageInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, info.ProjectCount)
	assert.Equal(t, "0 B", info.Used)

	_, err = h.service.SaveProject(ctx, saveRequest("a.jpg", "A"))
	require.NoError(t, err)

	info, err = h.service.GetStorageInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, info.ProjectCount)
	assert.NotEqual(t, "0 B", info.Used)
	assert.NotEmpty(t, info.Available)
}

func TestExportProjects(t *testing.T) {
	h := newHarness(t, 10*1024*1024, true)
	ctx := context.Background()

	saved, err := h.service.SaveProject(ctx, saveRequest("beach.jpg", "Impressionist"))
	require.NoError(t, err)

	doc, filename, err := h.service.ExportProjects(ctx)
	require.NoError(t, err)

	assert.Equal(t, "1.0", doc.Version)
	assert.WithinDuration(t, time.Now(), doc.ExportDate, 5*time.Second)
	assert.Regexp(t, `^artvault-export-\d{4}-\d{2}-\d{2}\.json$`, filename)
	require.Len(t, doc.Projects, 1)

	exported := doc.Projects[0]
	assert.Equal(t, saved.ID, exported.ID)

	// Payloads round-trip losslessly through the data URLs.
	data, mimeType, err := imaging.FromDataURI(exported.OriginalImage.Data)
	require.NoError(t, err)
	assert.Equal(t, saved.OriginalImage.Data, data)
	assert.Equal(t, "image/jpeg", mimeType)

	thumb, _, err := imaging.FromDataURI(exported.Thumbnail)
	require.NoError(t, err)
	assert.Equal(t, saved.Thumbnail, thumb)

	assert.Equal(t, 1, doc.Stats.TotalProjects)
}

func TestCleanupStorage(t *testing.T) {
	h := newHarness(t, 10*1024*1024, true)
	ctx := context.Background()

	fav, err := h.service.SaveProject(ctx, saveRequest("fav.jpg", "A"))
	require.NoError(t, err)
	_, err = h.service.ToggleFavorite(ctx, fav.ID)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := h.service.SaveProject(ctx, saveRequest("filler.jpg", "A"))
		require.NoError(t, err)
	}

	t.Run("no-op when already free", func(t *testing.T) {
		removed, err := h.service.CleanupStorage(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, removed)
	})

	t.Run("frees the requested space", func(t *testing.T) {
		stats, err := h.service.GetStorageStats(ctx)
		require.NoError(t, err)

		// Ask for more than is currently free so at least one project
		// must go.
		target := stats.AvailableStorage + 1

		removed, err := h.service.CleanupStorage(ctx, target)
		require.NoError(t, err)
		assert.Greater(t, removed, 0)

		// The favorite survives cleanup.
		_, err = h.service.GetProject(ctx, fav.ID)
		assert.NoError(t, err)

		after, err := h.service.GetStorageStats(ctx)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, after.AvailableStorage, target)
	})
}
