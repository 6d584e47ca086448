// Package service composes API calls into the operations behind each screen
// of the client.
package service

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/docshelf/docshelf/internal/domain"
)

// DashboardLimit is how many documents each home list shows.
const DashboardLimit = 5

// DashboardAPI is the slice of the API client the home page needs.
type DashboardAPI interface {
	LatestDocuments(ctx context.Context, limit int) ([]domain.Document, error)
	PopularDocuments(ctx context.Context, limit int) ([]domain.Document, error)
	MyDocuments(ctx context.Context, limit int) ([]domain.Document, error)
}

// Dashboard is the home page content.
type Dashboard struct {
	Latest  []domain.Document
	Popular []domain.Document
	Mine    []domain.Document
}

// DashboardService loads the home page.
type DashboardService struct {
	api    DashboardAPI
	logger *slog.Logger
}

// NewDashboardService creates a new dashboard service.
func NewDashboardService(api DashboardAPI, logger *slog.Logger) *DashboardService {
	return &DashboardService{
		api:    api,
		logger: logger,
	}
}

// Load fetches the three lists concurrently. The first failure cancels the
// others and is returned.
func (s *DashboardService) Load(ctx context.Context) (*Dashboard, error) {
	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		d.Latest, err = s.api.LatestDocuments(ctx, DashboardLimit)
		return err
	})
	g.Go(func() error {
		var err error
		d.Popular, err = s.api.PopularDocuments(ctx, DashboardLimit)
		return err
	})
	g.Go(func() error {
		var err error
		d.Mine, err = s.api.MyDocuments(ctx, DashboardLimit)
		return err
	})

	if err := g.Wait(); err != nil {
		s.logger.Warn("failed to load dashboard", "error", err)
		return nil, err
	}

	s.logger.Debug("dashboard loaded",
		"latest", len(d.Latest),
		"popular", len(d.Popular),
		"mine", len(d.Mine),
	)
	return &d, nil
}
