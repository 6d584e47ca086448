package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/docshelf/docshelf/internal/domain"
)

// AnalyzeFile asks the server to extract text from a file and suggest a
// summary and tags. The file is checked locally first.
func (c *Client) AnalyzeFile(ctx context.Context, file File, title string) (*domain.AIAnalysis, error) {
	body, contentType, err := buildMultipart("analyze", nil, &file)
	if err != nil {
		return nil, err
	}

	q := url.Values{}
	if title != "" {
		q.Set("title", title)
	}

	var analysis domain.AIAnalysis
	err = c.do(ctx, request{
		op:          "analyze",
		group:       groupAI,
		method:      http.MethodPost,
		path:        "/ai/analyze-file",
		rawQuery:    q.Encode(),
		body:        body,
		contentType: contentType,
	}, &analysis)
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// GenerateSummary summarises text in at most maxWords words (server default
// when maxWords is 0).
func (c *Client) GenerateSummary(ctx context.Context, text string, maxWords int) (string, error) {
	q := url.Values{}
	q.Set("text", text)
	if maxWords > 0 {
		q.Set("max_words", strconv.Itoa(maxWords))
	}

	var resp struct {
		Summary string `json:"summary"`
	}
	err := c.do(ctx, request{
		op:       "generate summary",
		group:    groupAI,
		method:   http.MethodPost,
		path:     "/ai/generate-summary",
		rawQuery: q.Encode(),
	}, &resp)
	return resp.Summary, err
}

// GenerateTags suggests tags for text.
func (c *Client) GenerateTags(ctx context.Context, text, title string) ([]string, error) {
	q := url.Values{}
	q.Set("text", text)
	if title != "" {
		q.Set("title", title)
	}

	var resp struct {
		Tags []string `json:"tags"`
	}
	err := c.do(ctx, request{
		op:       "generate tags",
		group:    groupAI,
		method:   http.MethodPost,
		path:     "/ai/generate-tags",
		rawQuery: q.Encode(),
	}, &resp)
	return resp.Tags, err
}
