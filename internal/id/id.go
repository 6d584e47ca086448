// Package id generates identifiers the client attaches to outgoing requests.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

const (
	requestAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	requestLength   = 16
)

// Generate returns prefix-<nanoid> using the default 21 character URL-safe alphabet.
func Generate(prefix string) (string, error) {
	id, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + id, nil
}

// RequestID returns a short lowercase ID for the X-Request-ID header,
// e.g. "req-4f9k2m0a7c1x8b3d".
func RequestID() string {
	id, err := gonanoid.Generate(requestAlphabet, requestLength)
	if err != nil {
		// Tracing only; a fixed marker is better than failing the request.
		return "req-unknown"
	}
	return "req-" + id
}

// MustGenerate is like Generate but panics if the system has no entropy.
func MustGenerate(prefix string) string {
	id, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return id
}
