// Package projectdb is the embedded-database access layer for saved
// projects: schema, CRUD, cursor-based filtered search and storage
// accounting. Quota policy lives a layer up; this package reports raw
// write failures verbatim.
package projectdb

import (
	"github.com/TheMichaelB/artvault/internal/models"
)

// Store persists projects keyed by ID.
type Store interface {
	// Save upserts a project by ID.
	Save(project *models.Project) error

	// Get retrieves a project by ID.
	Get(id string) (*models.Project, error)

	// Delete removes a project. Deleting an absent ID reports
	// models.ErrProjectNotFound.
	Delete(id string) error

	// ToggleFavorite flips the favorited flag and returns the new value.
	// Read-modify-write; last write wins against concurrent togglers.
	ToggleFavorite(id string) (bool, error)

	// Search walks records in reverse chronological order applying the
	// full filter predicate per record. O(stored records) per call.
	Search(filter models.ProjectFilter, limit, offset int) (*models.SearchResult, error)

	// Stats scans the whole store and sums per-record size estimates
	// against the configured ceiling.
	Stats() (*models.StorageStats, error)

	// Close releases resources.
	Close() error
}
