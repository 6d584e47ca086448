package service

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/docshelf/docshelf/internal/api"
	"github.com/docshelf/docshelf/internal/domain"
	"github.com/docshelf/docshelf/internal/search"
	"github.com/docshelf/docshelf/internal/validation"
)

// UploadAPI is the slice of the API client used when uploading.
type UploadAPI interface {
	UploadDocument(ctx context.Context, req api.UploadRequest) (*domain.Document, error)
	AnalyzeFile(ctx context.Context, file api.File, title string) (*domain.AIAnalysis, error)
	GenerateSummary(ctx context.Context, text string, maxWords int) (string, error)
	GenerateTags(ctx context.Context, text, title string) ([]string, error)
}

// UploadForm is an upload being prepared. The file is held in memory so it
// can be analyzed and then sent.
type UploadForm struct {
	Title      string
	Summary    string
	Tags       string
	Visibility domain.Visibility
	FileName   string
	Content    []byte
}

func (f *UploadForm) file() api.File {
	return api.File{Name: f.FileName, Reader: bytes.NewReader(f.Content)}
}

// UploadService uploads documents and asks the server for AI suggestions.
type UploadService struct {
	api       UploadAPI
	validator *validation.Validator
	logger    *slog.Logger
}

// NewUploadService creates a new upload service.
func NewUploadService(api UploadAPI, validator *validation.Validator, logger *slog.Logger) *UploadService {
	return &UploadService{
		api:       api,
		validator: validator,
		logger:    logger,
	}
}

// Suggest analyzes the form's file. The form title, or the file name when
// empty, is sent as a hint.
func (s *UploadService) Suggest(ctx context.Context, form *UploadForm) (*domain.AIAnalysis, error) {
	if _, err := api.DetectFileType(form.FileName, form.Content); err != nil {
		return nil, err
	}
	title := form.Title
	if title == "" {
		title = filepath.Base(form.FileName)
	}

	analysis, err := s.api.AnalyzeFile(ctx, form.file(), title)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("file analyzed",
		"file", form.FileName,
		"tags", len(analysis.Tags),
		"has_content", analysis.HasContent,
	)
	return analysis, nil
}

// ApplySuggestions copies the suggested summary over the form's when one was
// produced and merges the suggested tags into the existing ones.
func ApplySuggestions(form *UploadForm, a *domain.AIAnalysis) {
	if a == nil {
		return
	}
	if s := strings.TrimSpace(a.Summary); s != "" {
		form.Summary = s
	}
	form.Tags = search.MergeTags(form.Tags, a.Tags)
}

// Upload validates the form and sends it.
func (s *UploadService) Upload(ctx context.Context, form *UploadForm, progress api.ProgressFunc) (*domain.Document, error) {
	req := api.UploadRequest{
		Title:      form.Title,
		Summary:    form.Summary,
		Tags:       form.Tags,
		Visibility: form.Visibility,
		File:       form.file(),
		Progress:   progress,
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	doc, err := s.api.UploadDocument(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("document uploaded", "document_id", doc.ID, "title", doc.Title, "size", doc.FileSize)
	return doc, nil
}

// SummarizeText asks the server for a summary of free text.
func (s *UploadService) SummarizeText(ctx context.Context, text string, maxWords int) (string, error) {
	return s.api.GenerateSummary(ctx, text, maxWords)
}

// SuggestTags asks the server for tags describing free text.
func (s *UploadService) SuggestTags(ctx context.Context, text, title string) ([]string, error) {
	return s.api.GenerateTags(ctx, text, title)
}
