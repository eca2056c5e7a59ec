package design

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig indicates that no service credential is configured.
	ErrConfig = errors.New("service credential is not configured")

	// ErrInvalidResponse indicates the model reply could not be accepted.
	ErrInvalidResponse = errors.New("received an invalid response from the AI")

	// ErrGeneration indicates an image call returned no image payload.
	ErrGeneration = fmt.Errorf("image generation failed to produce an image: %w", ErrInvalidResponse)

	// ErrValidation indicates missing or malformed input caught before any call.
	ErrValidation = errors.New("invalid input")
)

// Validationf builds an ErrValidation with a user-facing message.
func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
