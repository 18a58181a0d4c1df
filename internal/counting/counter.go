package counting

import (
	"context"
	"errors"
)

// countPrompt is the shared instruction sent to every vision provider
const countPrompt = `Count the bread items visible in this photo. Respond with only an integer and nothing else. If there is no bread in the photo, respond with 0.`

var (
	// ErrMissingCredentials is returned when the vision service has no credentials configured
	ErrMissingCredentials = errors.New("vision service credentials are not configured")

	// ErrEmptyImage is returned when the image payload is empty
	ErrEmptyImage = errors.New("image payload is empty")

	// ErrInvalidImage is returned when the payload cannot be decoded into an image
	ErrInvalidImage = errors.New("image payload is not a readable image")
)

// Counter defines the interface for image count estimation
type Counter interface {
	// Count sends an encoded image to the vision service and returns the estimated item count
	Count(ctx context.Context, payload string) (int, error)
	// Close closes the counter and releases resources
	Close() error
}

// Unconfigured is a Counter used when the process starts without vision credentials.
// Every call fails with ErrMissingCredentials and no network call is made.
type Unconfigured struct{}

// Count always returns ErrMissingCredentials
func (Unconfigured) Count(ctx context.Context, payload string) (int, error) {
	return 0, ErrMissingCredentials
}

// Close is a no-op
func (Unconfigured) Close() error {
	return nil
}
