package models

import (
	"strings"
	"time"
)

// ImageAsset holds one stored image payload with its bookkeeping fields.
type ImageAsset struct {
	Data     []byte `json:"data"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type,omitempty"`
}

// StyleInfo identifies the transformation style applied to a project.
type StyleInfo struct {
	Name       string                 `json:"name"`
	Parameters map[string]interface{} `json:"parameters,omitempty"`
}

// ProjectMetadata carries per-project bookkeeping.
type ProjectMetadata struct {
	CreatedAt          time.Time `json:"created_at"`
	TransformationTime int64     `json:"transformation_time_ms"`
	Favorited          bool      `json:"favorited"`
	Tags               []string  `json:"tags"`
}

// Project is one saved unit of work: original image, transformed image,
// thumbnail, style and metadata. The ID is generated locally and is
// immutable once created.
type Project struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	OriginalImage    ImageAsset      `json:"original_image"`
	TransformedImage ImageAsset      `json:"transformed_image"`
	Thumbnail        []byte          `json:"thumbnail"`
	ThumbnailSize    int64           `json:"thumbnail_size"`
	Style            StyleInfo       `json:"style"`
	Metadata         ProjectMetadata `json:"metadata"`
}

// EstimatedSize returns the storage footprint used for quota accounting:
// both image payloads, the thumbnail, and a fixed metadata overhead.
func (p *Project) EstimatedSize() int64 {
	const metadataOverhead = 1024
	return p.OriginalImage.Size + p.TransformedImage.Size + p.ThumbnailSize + metadataOverhead
}

// SaveProjectRequest is the input to the save operation. Title is optional;
// a title is generated from the filename and style when empty.
type SaveProjectRequest struct {
	Title              string
	OriginalImage      ImageAsset
	TransformedImage   []byte
	Style              StyleInfo
	TransformationTime int64
	Tags               []string
}

// DateRange bounds a filter on creation time, inclusive on both ends.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ProjectFilter is a pure query value object. Zero-valued fields do not
// constrain the result set.
type ProjectFilter struct {
	Search    string     `json:"search,omitempty"`
	Style     string     `json:"style,omitempty"`
	Favorited *bool      `json:"favorited,omitempty"`
	DateRange *DateRange `json:"date_range,omitempty"`
	Tags      []string   `json:"tags,omitempty"`
}

// Matches reports whether a project satisfies every constraint the filter
// carries. Indexes only narrow the scan; the full predicate always runs
// here.
func (f *ProjectFilter) Matches(p *Project) bool {
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(p.Title), needle) &&
			!strings.Contains(strings.ToLower(p.OriginalImage.Filename), needle) {
			return false
		}
	}

	if f.Style != "" && p.Style.Name != f.Style {
		return false
	}

	if f.Favorited != nil && p.Metadata.Favorited != *f.Favorited {
		return false
	}

	if f.DateRange != nil {
		created := p.Metadata.CreatedAt
		if created.Before(f.DateRange.Start) || created.After(f.DateRange.End) {
			return false
		}
	}

	if len(f.Tags) > 0 {
		matched := false
		for _, want := range f.Tags {
			for _, have := range p.Metadata.Tags {
				if want == have {
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched {
			return false
		}
	}

	return true
}

// SearchResult is one page of a filtered scan.
type SearchResult struct {
	Projects   []*Project `json:"projects"`
	TotalCount int        `json:"total_count"`
	HasMore    bool       `json:"has_more"`
}

// StorageStats is derived on demand, never stored.
// Invariant: UsedStorage + AvailableStorage == the configured ceiling.
type StorageStats struct {
	TotalProjects     int     `json:"total_projects"`
	TotalSize         int64   `json:"total_size"`
	UsedStorage       int64   `json:"used_storage"`
	AvailableStorage  int64   `json:"available_storage"`
	StoragePercentage float64 `json:"storage_percentage"`
}

// StorageInfo is the human-readable view of StorageStats.
type StorageInfo struct {
	Used         string `json:"used"`
	Available    string `json:"available"`
	Percentage   int    `json:"percentage"`
	ProjectCount int    `json:"project_count"`
}

// ExportDocument is the backup format offered to the user.
type ExportDocument struct {
	Version    string           `json:"version"`
	ExportDate time.Time        `json:"export_date"`
	Projects   []*ExportProject `json:"projects"`
	Stats      StorageStats     `json:"stats"`
}

// ExportProject mirrors Project with binary payloads as data URLs so the
// document survives a JSON round trip.
type ExportProject struct {
	ID               string          `json:"id"`
	Title            string          `json:"title"`
	OriginalImage    ExportAsset     `json:"original_image"`
	TransformedImage ExportAsset     `json:"transformed_image"`
	Thumbnail        string          `json:"thumbnail"`
	Style            StyleInfo       `json:"style"`
	Metadata         ProjectMetadata `json:"metadata"`
}

// ExportAsset is an ImageAsset with the payload as a data URL.
type ExportAsset struct {
	Data     string `json:"data"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type,omitempty"`
}
