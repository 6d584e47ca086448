package domain

import (
	"strconv"
	"time"
)

// Visibility controls who can see a document. The empty value means "not
// filtered"; VisibilityAll is a filter-only value.
type Visibility string

// Visibility levels.
const (
	VisibilityAll     Visibility = "all"
	VisibilityPublic  Visibility = "public"
	VisibilityGroup   Visibility = "group"
	VisibilityPrivate Visibility = "private"
)

// Valid reports whether v is a level a document can carry.
func (v Visibility) Valid() bool {
	switch v {
	case VisibilityPublic, VisibilityGroup, VisibilityPrivate:
		return true
	default:
		return false
	}
}

// SortField is a server-side sort key for search.
type SortField string

// Sort keys.
const (
	SortByCreatedAt     SortField = "created_at"
	SortByUpdatedAt     SortField = "updated_at"
	SortByTitle         SortField = "title"
	SortByAverageRating SortField = "average_rating"
)

// SortOrder is the search sort direction.
type SortOrder string

// Sort directions.
const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// FileType is the server's coarse classification of an uploaded file.
type FileType string

// File types.
const (
	FileTypePDF   FileType = "pdf"
	FileTypeDoc   FileType = "doc"
	FileTypeDocx  FileType = "docx"
	FileTypeImage FileType = "image"
)

// Document is a document summary as returned by the list and search endpoints.
type Document struct {
	ID            string     `json:"id"`
	Title         string     `json:"title"`
	Summary       string     `json:"summary"`
	Tags          []string   `json:"tags"`
	Visibility    Visibility `json:"visibility"`
	OwnerID       string     `json:"owner_id"`
	OwnerName     string     `json:"owner_name"`
	FilePath      string     `json:"file_path,omitempty"`
	FileType      FileType   `json:"file_type,omitempty"`
	FileSize      int64      `json:"file_size,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	AverageRating float64    `json:"average_rating"`
	RatingCount   int        `json:"rating_count"`
}

// RatingDisplay formats the average rating with one decimal, e.g. "4.5".
func (d *Document) RatingDisplay() string {
	return strconv.FormatFloat(d.AverageRating, 'f', 1, 64)
}

// IsOwnedBy reports whether the user owns the document.
func (d *Document) IsOwnedBy(u *User) bool {
	return u != nil && d.OwnerID == u.ID
}

// TagCount is one entry of the tag vocabulary.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// Rating is the caller's own rating of a document. Value is nil when the
// caller has not rated it.
type Rating struct {
	Value     *int       `json:"rating"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// AIAnalysis is the result of POST /ai/analyze-file.
type AIAnalysis struct {
	Summary              string   `json:"summary"`
	Tags                 []string `json:"tags"`
	ExtractedTextPreview string   `json:"extracted_text_preview"`
	HasContent           bool     `json:"has_content"`
}
