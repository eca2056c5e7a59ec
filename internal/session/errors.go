package session

import (
	"context"
	"errors"
	"strings"

	"interiorDesignAi/internal/design"
	"interiorDesignAi/internal/media"
)

var (
	// ErrNotFound indicates an unknown or expired session.
	ErrNotFound = errors.New("session not found")
	// ErrClosed indicates the session was closed while the call was made.
	ErrClosed = errors.New("session closed")
)

const (
	msgInvalidResponse = "Received an invalid response from the AI. Please try again."
	msgGeneration      = "Image generation failed to produce an image."
	msgCancelled       = "The request was cancelled."
	msgUnexpected      = "Something went wrong. Please try again."
)

// Message maps an error onto the text shown to the user.
func Message(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, design.ErrConfig):
		return "The AI service is not configured (" + design.ErrConfig.Error() + ")."
	case errors.Is(err, design.ErrValidation):
		return userText(err, design.ErrValidation.Error()+": ")
	case errors.Is(err, design.ErrGeneration):
		return msgGeneration
	case errors.Is(err, design.ErrInvalidResponse):
		return msgInvalidResponse
	case errors.Is(err, media.ErrEncoding), errors.Is(err, media.ErrUnsupportedType), errors.Is(err, media.ErrTooLarge):
		return userText(err, "media: ")
	case errors.Is(err, context.Canceled):
		return msgCancelled
	default:
		return msgUnexpected
	}
}

// userText drops the sentinel marker wherever wrapping has placed it.
func userText(err error, marker string) string {
	return capitalize(strings.ReplaceAll(err.Error(), marker, ""))
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
