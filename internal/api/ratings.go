package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/docshelf/docshelf/internal/domain"
)

// RateRequest is the body of POST /ratings/documents/{id}.
type RateRequest struct {
	Rating int `json:"rating" validate:"required,gte=1,lte=5"`
}

// RateDocument sets or replaces the caller's rating.
func (c *Client) RateDocument(ctx context.Context, docID string, rating int) error {
	body, err := jsonBody(RateRequest{Rating: rating})
	if err != nil {
		return err
	}
	return c.do(ctx, request{
		op:          "rate",
		group:       groupRatings,
		method:      http.MethodPost,
		path:        "/ratings/documents/" + url.PathEscape(docID),
		body:        body,
		contentType: "application/json",
	}, nil)
}

// MyRating returns the caller's rating; Value is nil when unrated.
func (c *Client) MyRating(ctx context.Context, docID string) (*domain.Rating, error) {
	var r domain.Rating
	err := c.do(ctx, request{
		op:     "my rating",
		group:  groupRatings,
		method: http.MethodGet,
		path:   "/ratings/documents/" + url.PathEscape(docID) + "/my-rating",
	}, &r)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// RemoveRating deletes the caller's rating.
func (c *Client) RemoveRating(ctx context.Context, docID string) error {
	return c.do(ctx, request{
		op:     "remove rating",
		group:  groupRatings,
		method: http.MethodDelete,
		path:   "/ratings/documents/" + url.PathEscape(docID),
	}, nil)
}
