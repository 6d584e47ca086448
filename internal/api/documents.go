package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/docshelf/docshelf/internal/domain"
	"github.com/docshelf/docshelf/internal/search"
)

// SearchDocuments returns one page of documents matching q.
func (c *Client) SearchDocuments(ctx context.Context, q search.Query) ([]domain.Document, error) {
	var docs []domain.Document
	err := c.do(ctx, request{
		op:       "search",
		group:    groupSearch,
		method:   http.MethodGet,
		path:     "/documents/search",
		rawQuery: q.Encode(),
	}, &docs)
	return docs, err
}

// CountDocuments returns the number of documents matching q across all pages.
func (c *Client) CountDocuments(ctx context.Context, q search.Query) (int, error) {
	var resp struct {
		Total int `json:"total"`
	}
	err := c.do(ctx, request{
		op:       "search count",
		group:    groupSearch,
		method:   http.MethodGet,
		path:     "/documents/search/count",
		rawQuery: q.Encode(),
	}, &resp)
	return resp.Total, err
}

// ListTags returns the tag vocabulary of documents visible to the caller,
// most used first.
func (c *Client) ListTags(ctx context.Context) ([]domain.TagCount, error) {
	var resp struct {
		Tags []domain.TagCount `json:"tags"`
	}
	err := c.do(ctx, request{
		op:     "tags",
		group:  groupSearch,
		method: http.MethodGet,
		path:   "/documents/tags",
	}, &resp)
	return resp.Tags, err
}

// LatestDocuments returns the most recently created visible documents.
func (c *Client) LatestDocuments(ctx context.Context, limit int) ([]domain.Document, error) {
	return c.listing(ctx, "latest", "/documents/latest", limitQuery(limit))
}

// PopularDocuments returns the best rated visible documents.
func (c *Client) PopularDocuments(ctx context.Context, limit int) ([]domain.Document, error) {
	return c.listing(ctx, "popular", "/documents/popular", limitQuery(limit))
}

// MyDocuments returns the caller's own documents, newest first.
func (c *Client) MyDocuments(ctx context.Context, limit int) ([]domain.Document, error) {
	return c.listing(ctx, "my documents", "/documents/my", limitQuery(limit))
}

// ListDocuments returns a page of all visible documents.
func (c *Client) ListDocuments(ctx context.Context, page, limit int) ([]domain.Document, error) {
	v := limitQuery(limit)
	if page > 0 {
		v.Set("page", strconv.Itoa(page))
	}
	return c.listing(ctx, "list", "/documents/", v)
}

func (c *Client) listing(ctx context.Context, op, path string, q url.Values) ([]domain.Document, error) {
	var docs []domain.Document
	err := c.do(ctx, request{
		op:       op,
		group:    groupDocuments,
		method:   http.MethodGet,
		path:     path,
		rawQuery: q.Encode(),
	}, &docs)
	return docs, err
}

func limitQuery(limit int) url.Values {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	return v
}

// GetDocument returns a single document.
func (c *Client) GetDocument(ctx context.Context, docID string) (*domain.Document, error) {
	var doc domain.Document
	err := c.do(ctx, request{
		op:     "get document",
		group:  groupDocuments,
		method: http.MethodGet,
		path:   "/documents/" + url.PathEscape(docID),
	}, &doc)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// DeleteDocument removes a document the caller owns.
func (c *Client) DeleteDocument(ctx context.Context, docID string) error {
	return c.do(ctx, request{
		op:     "delete document",
		group:  groupDocuments,
		method: http.MethodDelete,
		path:   "/documents/" + url.PathEscape(docID),
	}, nil)
}

// DownloadDocument streams the stored file into w and returns the bytes written.
func (c *Client) DownloadDocument(ctx context.Context, docID string, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, request{
		op:     "download",
		group:  groupDocuments,
		method: http.MethodGet,
		path:   "/documents/" + url.PathEscape(docID) + "/download",
	})
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, wrapError("download", 0, "", fmt.Errorf("copy body: %w", err))
	}
	return n, nil
}
