// Package domain holds the DocShelf entities the client reads from and sends
// to the server.
package domain

import "time"

// User is the profile returned by GET /auth/me.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FullName   string    `json:"full_name"`
	Department string    `json:"department,omitempty"`
	Group      string    `json:"group,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username   string `json:"username" validate:"required,min=3,max=50"`
	Email      string `json:"email" validate:"required,email"`
	FullName   string `json:"full_name" validate:"required,min=1,max=100"`
	Password   string `json:"password" validate:"required,min=6"`
	Department string `json:"department,omitempty" validate:"omitempty,max=100"`
	Group      string `json:"group,omitempty" validate:"omitempty,max=100"`
}
