package vision

import (
	"context"

	"interiorDesignAi/internal/design"
	"interiorDesignAi/internal/media"
)

// Gateway is the contract between the design session and the AI service.
// Every method reads the credential when it is called and fails with
// design.ErrConfig before any network request when none is configured.
type Gateway interface {
	EstimateDimensions(ctx context.Context, room media.InlineImage) (design.RoomDimensions, error)
	Analyze(ctx context.Context, req AnalysisRequest) (design.DesignAnalysis, error)
	Visualize(ctx context.Context, req VisualizationRequest) (ImageResult, error)
	GenerateView(ctx context.Context, prompt string) (ImageResult, error)
}

// AnalysisRequest bundles the room, optional furniture photos and preferences.
type AnalysisRequest struct {
	Room         media.InlineImage
	Furniture    []media.InlineImage
	Style        design.Style
	CustomItems  string
	Instructions string
	Dimensions   design.RoomDimensions
	Language     design.Language
}

// VisualizationRequest asks for an edit of the room photo.
type VisualizationRequest struct {
	Room      media.InlineImage
	Furniture []media.InlineImage
	Prompt    string
}

// ImageResult represents a rendered image payload.
type ImageResult struct {
	Data string `json:"data"`
	MIME string `json:"mime"`
}

// DataURL renders the payload the way browsers display it.
func (r ImageResult) DataURL() string {
	if r.Data == "" {
		return ""
	}
	return "data:" + r.MIME + ";base64," + r.Data
}
