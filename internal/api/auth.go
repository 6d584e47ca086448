package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/docshelf/docshelf/internal/domain"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, username, password string) (*oauth2.Token, error) {
	body, err := jsonBody(loginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}

	var tr tokenResponse
	err = c.do(ctx, request{
		op:          "login",
		group:       groupAuth,
		method:      http.MethodPost,
		path:        "/auth/login",
		body:        body,
		contentType: "application/json",
		public:      true,
	}, &tr)
	if err != nil {
		return nil, err
	}
	if tr.AccessToken == "" {
		// The server answered; only the body is unusable.
		return nil, wrapError("login", http.StatusOK, "", fmt.Errorf("%w: empty access token", ErrMalformedResponse))
	}

	tokenType := tr.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}
	return &oauth2.Token{AccessToken: tr.AccessToken, TokenType: tokenType}, nil
}

// Register creates an account. It does not log the caller in.
func (c *Client) Register(ctx context.Context, req domain.RegisterRequest) (*domain.User, error) {
	body, err := jsonBody(req)
	if err != nil {
		return nil, err
	}

	var user domain.User
	err = c.do(ctx, request{
		op:          "register",
		group:       groupAuth,
		method:      http.MethodPost,
		path:        "/auth/register",
		body:        body,
		contentType: "application/json",
		public:      true,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// Me returns the profile for token. The session's own header is not used so
// a stored token can be checked before it becomes current.
func (c *Client) Me(ctx context.Context, token *oauth2.Token) (*domain.User, error) {
	if token == nil || token.AccessToken == "" {
		return nil, wrapError("me", 0, "", errors.New("no token"))
	}

	var user domain.User
	err := c.do(ctx, request{
		op:     "me",
		group:  groupAuth,
		method: http.MethodGet,
		path:   "/auth/me",
		bearer: token.Type() + " " + token.AccessToken,
	}, &user)
	if err != nil {
		return nil, err
	}
	return &user, nil
}
