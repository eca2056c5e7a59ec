package vision

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"interiorDesignAi/internal/design"
	"interiorDesignAi/internal/media"
	"interiorDesignAi/internal/prompts"
)

const (
	DefaultTextModel       = "gemini-2.5-flash"
	DefaultEditModel       = "gemini-2.5-flash-image-preview"
	DefaultViewModel       = "imagen-4.0-generate-001"
	DefaultViewAspectRatio = "4:3"

	viewMIMEType = "image/jpeg"
	jsonMIMEType = "application/json"
)

// generativeModels is the slice of genai.Models the gateway uses.
type generativeModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
	GenerateImages(ctx context.Context, model string, prompt string, config *genai.GenerateImagesConfig) (*genai.GenerateImagesResponse, error)
}

type modelFactory func(ctx context.Context, apiKey string) (generativeModels, error)

// GeminiConfig tunes the Gemini gateway.
type GeminiConfig struct {
	TextModel       string
	EditModel       string
	ViewModel       string
	ViewAspectRatio string
	// Timeout bounds each call; zero disables it.
	Timeout      time.Duration
	ContractMode design.ContractMode
	// BaseURL overrides the API endpoint, e.g. for a proxy.
	BaseURL string
}

// GeminiGateway implements Gateway via the Gemini API. A client is built per
// call from the current credential.
type GeminiGateway struct {
	credentials Credentials
	cfg         GeminiConfig
	views       ViewRenderer
	newModels   modelFactory
	logger      *zap.Logger
}

// NewGeminiGateway wires a gateway. Empty config fields fall back to defaults.
func NewGeminiGateway(creds Credentials, cfg GeminiConfig, logger *zap.Logger) *GeminiGateway {
	if creds == nil {
		creds = EnvCredentials{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.TextModel = normalizeModel(cfg.TextModel, DefaultTextModel)
	cfg.EditModel = normalizeModel(cfg.EditModel, DefaultEditModel)
	cfg.ViewModel = normalizeModel(cfg.ViewModel, DefaultViewModel)
	if strings.TrimSpace(cfg.ViewAspectRatio) == "" {
		cfg.ViewAspectRatio = DefaultViewAspectRatio
	}
	if cfg.ContractMode == "" {
		cfg.ContractMode = design.ContractStrict
	}

	g := &GeminiGateway{
		credentials: creds,
		cfg:         cfg,
		logger:      logger,
	}
	g.newModels = g.genaiModels
	return g
}

// WithViewRenderer routes GenerateView through another backend, e.g. Vertex Imagen.
func (g *GeminiGateway) WithViewRenderer(r ViewRenderer) *GeminiGateway {
	g.views = r
	return g
}

func (g *GeminiGateway) genaiModels(ctx context.Context, apiKey string) (generativeModels, error) {
	cc := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if base := strings.TrimSpace(g.cfg.BaseURL); base != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: base}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("vision: create genai client: %w", err)
	}
	return client.Models, nil
}

// connect resolves the credential before anything else touches the network.
func (g *GeminiGateway) connect(ctx context.Context) (generativeModels, context.Context, context.CancelFunc, error) {
	apiKey, err := g.credentials.APIKey()
	if err != nil {
		return nil, nil, nil, err
	}
	childCtx, cancel := g.callContext(ctx)
	models, err := g.newModels(childCtx, apiKey)
	if err != nil {
		cancel()
		return nil, nil, nil, err
	}
	return models, childCtx, cancel, nil
}

// callContext bounds one backend call by the configured timeout.
func (g *GeminiGateway) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.cfg.Timeout > 0 {
		return context.WithTimeout(ctx, g.cfg.Timeout)
	}
	return context.WithCancel(ctx)
}

// EstimateDimensions asks the text model for the room's length, width and height.
func (g *GeminiGateway) EstimateDimensions(ctx context.Context, room media.InlineImage) (design.RoomDimensions, error) {
	models, childCtx, cancel, err := g.connect(ctx)
	if err != nil {
		return design.RoomDimensions{}, err
	}
	defer cancel()

	roomPart, err := inlinePart(room)
	if err != nil {
		return design.RoomDimensions{}, err
	}

	contents := []*genai.Content{genai.NewContentFromParts([]*genai.Part{
		genai.NewPartFromText(prompts.DimensionEstimate()),
		roomPart,
	}, genai.RoleUser)}

	resp, err := models.GenerateContent(childCtx, g.cfg.TextModel, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: jsonMIMEType,
		ResponseSchema:   dimensionSchema(),
	})
	if err != nil {
		return design.RoomDimensions{}, fmt.Errorf("vision: estimate dimensions: %w: %w", design.ErrInvalidResponse, err)
	}
	return design.ParseDimensions(responseText(resp))
}

// Analyze produces the structured redesign report.
func (g *GeminiGateway) Analyze(ctx context.Context, req AnalysisRequest) (design.DesignAnalysis, error) {
	models, childCtx, cancel, err := g.connect(ctx)
	if err != nil {
		return design.DesignAnalysis{}, err
	}
	defer cancel()

	imageParts, err := imageParts(req.Room, req.Furniture)
	if err != nil {
		return design.DesignAnalysis{}, err
	}

	instruction := prompts.Analysis(prompts.AnalysisInput{
		Style:          req.Style,
		CustomItems:    req.CustomItems,
		Instructions:   req.Instructions,
		Dimensions:     req.Dimensions,
		Language:       req.Language,
		FurnitureCount: len(req.Furniture),
	})
	parts := append([]*genai.Part{genai.NewPartFromText(instruction)}, imageParts...)

	resp, err := models.GenerateContent(childCtx, g.cfg.TextModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseMIMEType: jsonMIMEType,
			ResponseSchema:   analysisSchema(),
		})
	if err != nil {
		return design.DesignAnalysis{}, fmt.Errorf("vision: analyze: %w: %w", design.ErrInvalidResponse, err)
	}

	text := responseText(resp)
	analysis, err := design.ParseAnalysis(text)
	if err != nil {
		g.logger.Warn("analysis response rejected", zap.Error(err), zap.Int("length", len(text)))
		return design.DesignAnalysis{}, err
	}

	if violations := design.Validate(analysis, req.Language); len(violations) > 0 {
		if g.cfg.ContractMode == design.ContractStrict {
			return design.DesignAnalysis{}, design.ViolationError(violations)
		}
		g.logger.Warn("analysis accepted with contract violations",
			zap.Stringers("violations", violations),
			zap.String("language", string(req.Language)),
		)
	}
	return analysis, nil
}

// Visualize edits the room photo according to the photorealistic prompt.
func (g *GeminiGateway) Visualize(ctx context.Context, req VisualizationRequest) (ImageResult, error) {
	models, childCtx, cancel, err := g.connect(ctx)
	if err != nil {
		return ImageResult{}, err
	}
	defer cancel()

	if strings.TrimSpace(req.Prompt) == "" {
		return ImageResult{}, design.Validationf("a visualization prompt is required")
	}
	parts, err := imageParts(req.Room, req.Furniture)
	if err != nil {
		return ImageResult{}, err
	}
	parts = append(parts, genai.NewPartFromText(prompts.Visualization(req.Prompt)))

	resp, err := models.GenerateContent(childCtx, g.cfg.EditModel,
		[]*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)},
		&genai.GenerateContentConfig{
			ResponseModalities: []string{string(genai.ModalityImage), string(genai.ModalityText)},
		})
	if err != nil {
		return ImageResult{}, fmt.Errorf("vision: visualize: %w: %w", design.ErrInvalidResponse, err)
	}

	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
				continue
			}
			mime := part.InlineData.MIMEType
			if strings.TrimSpace(mime) == "" {
				mime = "image/png"
			}
			return ImageResult{
				Data: base64.StdEncoding.EncodeToString(part.InlineData.Data),
				MIME: mime,
			}, nil
		}
		// Only the first candidate is considered.
		break
	}
	return ImageResult{}, fmt.Errorf("vision: visualize: %w", design.ErrGeneration)
}

// GenerateView renders a 3D or 2D view from a text prompt.
func (g *GeminiGateway) GenerateView(ctx context.Context, prompt string) (ImageResult, error) {
	if g.views != nil {
		if _, err := g.credentials.APIKey(); err != nil {
			return ImageResult{}, err
		}
		if strings.TrimSpace(prompt) == "" {
			return ImageResult{}, design.Validationf("a view prompt is required")
		}
		renderCtx, cancel := g.callContext(ctx)
		defer cancel()
		img, err := g.views.Render(renderCtx, prompt)
		if err != nil && !errors.Is(err, design.ErrInvalidResponse) {
			return ImageResult{}, fmt.Errorf("vision: render view: %w: %w", design.ErrInvalidResponse, err)
		}
		return img, err
	}

	models, childCtx, cancel, err := g.connect(ctx)
	if err != nil {
		return ImageResult{}, err
	}
	defer cancel()

	if strings.TrimSpace(prompt) == "" {
		return ImageResult{}, design.Validationf("a view prompt is required")
	}

	resp, err := models.GenerateImages(childCtx, g.cfg.ViewModel, prompt, &genai.GenerateImagesConfig{
		NumberOfImages: 1,
		OutputMIMEType: viewMIMEType,
		AspectRatio:    g.cfg.ViewAspectRatio,
	})
	if err != nil {
		return ImageResult{}, fmt.Errorf("vision: generate view: %w: %w", design.ErrInvalidResponse, err)
	}
	if resp == nil || len(resp.GeneratedImages) == 0 {
		return ImageResult{}, fmt.Errorf("vision: generate view: %w", design.ErrGeneration)
	}
	img := resp.GeneratedImages[0]
	if img == nil || img.Image == nil || len(img.Image.ImageBytes) == 0 {
		reason := ""
		if img != nil {
			reason = img.RAIFilteredReason
		}
		if reason != "" {
			return ImageResult{}, fmt.Errorf("vision: generate view filtered (%s): %w", reason, design.ErrGeneration)
		}
		return ImageResult{}, fmt.Errorf("vision: generate view: %w", design.ErrGeneration)
	}
	mime := img.Image.MIMEType
	if mime == "" {
		mime = viewMIMEType
	}
	return ImageResult{
		Data: base64.StdEncoding.EncodeToString(img.Image.ImageBytes),
		MIME: mime,
	}, nil
}

func inlinePart(img media.InlineImage) (*genai.Part, error) {
	if img.Empty() {
		return nil, design.Validationf("an image is required")
	}
	data, err := img.Bytes()
	if err != nil {
		return nil, design.Validationf("image payload is not valid base64")
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: data}}, nil
}

// imageParts orders the room first and the furniture after it.
func imageParts(room media.InlineImage, furniture []media.InlineImage) ([]*genai.Part, error) {
	roomPart, err := inlinePart(room)
	if err != nil {
		return nil, err
	}
	parts := make([]*genai.Part, 0, len(furniture)+1)
	parts = append(parts, roomPart)
	for i, item := range furniture {
		part, err := inlinePart(item)
		if err != nil {
			return nil, fmt.Errorf("furniture image %d: %w", i+1, err)
		}
		parts = append(parts, part)
	}
	return parts, nil
}

// responseText joins the non-thought text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0] == nil || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Thought {
			continue
		}
		b.WriteString(part.Text)
	}
	return strings.TrimSpace(b.String())
}

func normalizeModel(model, fallback string) string {
	clean := strings.TrimPrefix(strings.TrimSpace(model), "models/")
	if clean == "" {
		return fallback
	}
	return clean
}
