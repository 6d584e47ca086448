package service_test

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docshelf/docshelf/internal/api"
	"github.com/docshelf/docshelf/internal/apitest"
	"github.com/docshelf/docshelf/internal/domain"
	"github.com/docshelf/docshelf/internal/errors"
	"github.com/docshelf/docshelf/internal/service"
	"github.com/docshelf/docshelf/internal/validation"
)

var pdf = []byte("%PDF-1.4\nquarterly revenue grew across every region\n")

type fixedUser struct{ u domain.User }

func (f fixedUser) CurrentUser() *domain.User { return &f.u }

type bearer string

func (b bearer) AuthorizationHeader() (string, bool) { return "Bearer " + string(b), true }

type env struct {
	srv    *apitest.Server
	client *api.Client
	alice  domain.User
	bob    domain.User
	logger *slog.Logger
}

func setup(t *testing.T) *env {
	t.Helper()
	srv := apitest.New(t)
	e := &env{
		srv:    srv,
		alice:  srv.AddUser("alice", "Alice Doe", "research"),
		bob:    srv.AddUser("bob", "Bob Ray", ""),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	c, err := api.New(api.Config{BaseURL: srv.URL, RateLimit: 1000, RateBurst: 1000}, nil)
	require.NoError(t, err)
	c.SetAuthorizer(bearer(srv.IssueToken("alice", time.Hour)))
	e.client = c
	return e
}

func TestDashboardService_Load(t *testing.T) {
	e := setup(t)
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := range 7 {
		e.srv.AddDocument(e.bob, domain.Document{Title: "bob doc", CreatedAt: base.Add(time.Duration(i) * time.Minute)}, nil)
	}
	e.srv.AddDocument(e.alice, domain.Document{Title: "alice doc", CreatedAt: base}, nil)

	d, err := service.NewDashboardService(e.client, e.logger).Load(context.Background())
	require.NoError(t, err)

	assert.Len(t, d.Latest, service.DashboardLimit)
	assert.Len(t, d.Popular, service.DashboardLimit)
	require.Len(t, d.Mine, 1)
	assert.Equal(t, "alice doc", d.Mine[0].Title)

	for _, path := range []string{"/documents/latest", "/documents/popular", "/documents/my"} {
		reqs := e.srv.RequestsTo(path)
		require.Len(t, reqs, 1, path)
		assert.Equal(t, "limit=5", reqs[0].RawQuery)
	}
}

func TestDashboardService_LoadFailure(t *testing.T) {
	e := setup(t)
	e.srv.Fail(apitest.Path("/documents/popular"), 500, "", -1)

	_, err := service.NewDashboardService(e.client, e.logger).Load(context.Background())
	assert.ErrorIs(t, err, api.ErrServer)
}

func TestDocumentService_View(t *testing.T) {
	e := setup(t)
	mine := e.srv.AddDocument(e.alice, domain.Document{Title: "Mine"}, nil)
	theirs := e.srv.AddDocument(e.bob, domain.Document{Title: "Theirs"}, nil)
	svc := service.NewDocumentService(e.client, fixedUser{e.alice}, validation.New(), e.logger)
	ctx := context.Background()

	v, err := svc.View(ctx, mine.ID)
	require.NoError(t, err)
	assert.True(t, v.CanEdit)
	assert.Nil(t, v.MyRating)

	_, err = svc.Rate(ctx, theirs.ID, 5)
	require.NoError(t, err)

	v, err = svc.View(ctx, theirs.ID)
	require.NoError(t, err)
	assert.False(t, v.CanEdit)
	require.NotNil(t, v.MyRating)
	assert.Equal(t, 5, *v.MyRating)
}

func TestDocumentService_ViewPrivate(t *testing.T) {
	e := setup(t)
	secret := e.srv.AddDocument(e.bob, domain.Document{Title: "Secret", Visibility: domain.VisibilityPrivate}, nil)
	svc := service.NewDocumentService(e.client, fixedUser{e.alice}, validation.New(), e.logger)

	_, err := svc.View(context.Background(), secret.ID)
	assert.ErrorIs(t, err, api.ErrForbidden)
}

func TestDocumentService_RateRefreshesAverage(t *testing.T) {
	e := setup(t)
	doc := e.srv.AddDocument(e.bob, domain.Document{Title: "Report"}, nil)
	svc := service.NewDocumentService(e.client, fixedUser{e.alice}, validation.New(), e.logger)
	ctx := context.Background()

	got, err := svc.Rate(ctx, doc.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 1, got.RatingCount)
	assert.Equal(t, "3.0", got.RatingDisplay())

	got, err = svc.RemoveRating(ctx, doc.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.RatingCount)
}

func TestDocumentService_RateValidation(t *testing.T) {
	tests := []struct {
		name   string
		rating int
	}{
		{"zero", 0},
		{"too high", 6},
		{"negative", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t)
			svc := service.NewDocumentService(e.client, fixedUser{e.alice}, validation.New(), e.logger)

			_, err := svc.Rate(context.Background(), "doc-x", tt.rating)
			assert.ErrorIs(t, err, errors.ErrValidation)
			assert.Empty(t, e.srv.Requests())
		})
	}
}

func TestDocumentService_UpdateAndDelete(t *testing.T) {
	e := setup(t)
	doc := e.srv.AddDocument(e.alice, domain.Document{Title: "Draft"}, []byte("data"))
	svc := service.NewDocumentService(e.client, fixedUser{e.alice}, validation.New(), e.logger)
	ctx := context.Background()

	_, err := svc.Update(ctx, doc.ID, api.UpdateRequest{})
	assert.ErrorIs(t, err, errors.ErrValidation)

	title := "Final"
	updated, err := svc.Update(ctx, doc.ID, api.UpdateRequest{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Final", updated.Title)

	var buf bytes.Buffer
	n, err := svc.Download(ctx, doc.ID, &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	require.NoError(t, svc.Delete(ctx, doc.ID))
	_, ok := e.srv.Document(doc.ID)
	assert.False(t, ok)
}

func TestUploadService_SuggestApplyUpload(t *testing.T) {
	e := setup(t)
	svc := service.NewUploadService(e.client, validation.New(), e.logger)
	ctx := context.Background()

	form := &service.UploadForm{
		Tags:       "finance",
		Visibility: domain.VisibilityGroup,
		FileName:   "q3.pdf",
		Content:    pdf,
	}

	analysis, err := svc.Suggest(ctx, form)
	require.NoError(t, err)
	assert.Equal(t, "Summary of q3.pdf", analysis.Summary)
	assert.Equal(t, "title=q3.pdf", e.srv.RequestsTo("/ai/analyze-file")[0].RawQuery)

	service.ApplySuggestions(form, analysis)
	assert.Equal(t, "Summary of q3.pdf", form.Summary)
	assert.Equal(t, "finance, %pdf-1.4, quarterly, revenue, grew, across", form.Tags)

	var lastSent int64
	doc, err := svc.Upload(ctx, form, func(sent, _ int64) { lastSent = sent })
	require.NoError(t, err)
	assert.Equal(t, "q3.pdf", doc.Title)
	assert.Equal(t, domain.VisibilityGroup, doc.Visibility)
	assert.Equal(t, int64(len(pdf)), doc.FileSize)
	assert.Positive(t, lastSent)
}

func TestApplySuggestions(t *testing.T) {
	tests := []struct {
		name        string
		form        service.UploadForm
		analysis    *domain.AIAnalysis
		wantSummary string
		wantTags    string
	}{
		{
			name:        "nil analysis",
			form:        service.UploadForm{Summary: "mine", Tags: "a"},
			wantSummary: "mine",
			wantTags:    "a",
		},
		{
			name:        "empty summary keeps existing",
			form:        service.UploadForm{Summary: "mine", Tags: "a, b"},
			analysis:    &domain.AIAnalysis{Summary: "  ", Tags: []string{"b", "c"}},
			wantSummary: "mine",
			wantTags:    "a, b, c",
		},
		{
			name:        "fills empty form",
			analysis:    &domain.AIAnalysis{Summary: "ai", Tags: []string{"x", "y"}},
			wantSummary: "ai",
			wantTags:    "x, y",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			form := tt.form
			service.ApplySuggestions(&form, tt.analysis)
			assert.Equal(t, tt.wantSummary, form.Summary)
			assert.Equal(t, tt.wantTags, form.Tags)
		})
	}
}

func TestUploadService_RejectsUnsupportedFile(t *testing.T) {
	e := setup(t)
	svc := service.NewUploadService(e.client, validation.New(), e.logger)

	_, err := svc.Suggest(context.Background(), &service.UploadForm{FileName: "notes.txt", Content: []byte("hi")})
	assert.ErrorIs(t, err, api.ErrUnsupportedFile)
	assert.Empty(t, e.srv.Requests())
}

func TestUploadService_TextHelpers(t *testing.T) {
	e := setup(t)
	svc := service.NewUploadService(e.client, validation.New(), e.logger)
	ctx := context.Background()

	summary, err := svc.SummarizeText(ctx, "alpha beta gamma delta epsilon zeta", 2)
	require.NoError(t, err)
	assert.Equal(t, "alpha beta", summary)

	tags, err := svc.SuggestTags(ctx, "distributed systems primer", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"distributed", "systems", "primer"}, tags)
}
