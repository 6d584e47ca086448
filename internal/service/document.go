package service

import (
	"context"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/docshelf/docshelf/internal/api"
	"github.com/docshelf/docshelf/internal/domain"
	domainerrors "github.com/docshelf/docshelf/internal/errors"
	"github.com/docshelf/docshelf/internal/validation"
)

// DocumentAPI is the slice of the API client used for a single document.
type DocumentAPI interface {
	GetDocument(ctx context.Context, docID string) (*domain.Document, error)
	UpdateDocument(ctx context.Context, docID string, req api.UpdateRequest) (*domain.Document, error)
	DeleteDocument(ctx context.Context, docID string) error
	DownloadDocument(ctx context.Context, docID string, w io.Writer) (int64, error)
	RateDocument(ctx context.Context, docID string, rating int) error
	MyRating(ctx context.Context, docID string) (*domain.Rating, error)
	RemoveRating(ctx context.Context, docID string) error
}

// CurrentUserSource reports who is signed in.
type CurrentUserSource interface {
	CurrentUser() *domain.User
}

// DocumentView is a document page: the document, the caller's rating and
// whether the caller may edit it.
type DocumentView struct {
	Document *domain.Document
	MyRating *int
	CanEdit  bool
}

// DocumentService handles viewing, rating and managing one document.
type DocumentService struct {
	api       DocumentAPI
	users     CurrentUserSource
	validator *validation.Validator
	logger    *slog.Logger
}

// NewDocumentService creates a new document service.
func NewDocumentService(api DocumentAPI, users CurrentUserSource, validator *validation.Validator, logger *slog.Logger) *DocumentService {
	return &DocumentService{
		api:       api,
		users:     users,
		validator: validator,
		logger:    logger,
	}
}

// View loads the document and the caller's rating concurrently.
func (s *DocumentService) View(ctx context.Context, docID string) (*DocumentView, error) {
	var (
		doc    *domain.Document
		rating *domain.Rating
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		doc, err = s.api.GetDocument(gctx, docID)
		return err
	})
	g.Go(func() error {
		var err error
		rating, err = s.api.MyRating(gctx, docID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &DocumentView{
		Document: doc,
		MyRating: rating.Value,
		CanEdit:  doc.IsOwnedBy(s.users.CurrentUser()),
	}, nil
}

// Rate records the caller's rating and returns the document with its new
// average.
func (s *DocumentService) Rate(ctx context.Context, docID string, rating int) (*domain.Document, error) {
	if err := s.validator.Validate(api.RateRequest{Rating: rating}); err != nil {
		return nil, err
	}
	if err := s.api.RateDocument(ctx, docID, rating); err != nil {
		return nil, err
	}
	s.logger.Info("document rated", "document_id", docID, "rating", rating)
	return s.api.GetDocument(ctx, docID)
}

// RemoveRating deletes the caller's rating and returns the refreshed document.
func (s *DocumentService) RemoveRating(ctx context.Context, docID string) (*domain.Document, error) {
	if err := s.api.RemoveRating(ctx, docID); err != nil {
		return nil, err
	}
	return s.api.GetDocument(ctx, docID)
}

// MyRating returns the caller's rating, nil when unrated.
func (s *DocumentService) MyRating(ctx context.Context, docID string) (*int, error) {
	r, err := s.api.MyRating(ctx, docID)
	if err != nil {
		return nil, err
	}
	return r.Value, nil
}

// Update changes document metadata.
func (s *DocumentService) Update(ctx context.Context, docID string, req api.UpdateRequest) (*domain.Document, error) {
	if req.Empty() {
		return nil, domainerrors.Validation("nothing to update")
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	doc, err := s.api.UpdateDocument(ctx, docID, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("document updated", "document_id", docID)
	return doc, nil
}

// Delete removes a document.
func (s *DocumentService) Delete(ctx context.Context, docID string) error {
	if err := s.api.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	s.logger.Info("document deleted", "document_id", docID)
	return nil
}

// Download writes the document file to w.
func (s *DocumentService) Download(ctx context.Context, docID string, w io.Writer) (int64, error) {
	return s.api.DownloadDocument(ctx, docID, w)
}
