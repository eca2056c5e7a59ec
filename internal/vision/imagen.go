package vision

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	aiplatform "cloud.google.com/go/aiplatform/apiv1"
	"cloud.google.com/go/aiplatform/apiv1/aiplatformpb"
	"google.golang.org/api/option"
	"google.golang.org/protobuf/types/known/structpb"

	"interiorDesignAi/internal/design"
)

// ViewRenderer turns a text prompt into a single image.
type ViewRenderer interface {
	Render(ctx context.Context, prompt string) (ImageResult, error)
}

// VertexImagen implements ViewRenderer via the Vertex AI prediction API.
type VertexImagen struct {
	projectID          string
	location           string
	model              string
	aspectRatio        string
	apiKey             string
	serviceAccount     string
	serviceAccountJSON string
}

// VertexImagenConfig describes how to connect to Imagen.
type VertexImagenConfig struct {
	ProjectID          string
	Location           string
	Model              string
	AspectRatio        string
	APIKey             string
	ServiceAccount     string
	ServiceAccountJSON string
}

// Enabled reports whether enough is configured to build a client.
func (c VertexImagenConfig) Enabled() bool {
	return strings.TrimSpace(c.ProjectID) != "" && strings.TrimSpace(c.Location) != ""
}

// NewVertexImagen wires a VertexImagen client.
func NewVertexImagen(cfg VertexImagenConfig) *VertexImagen {
	return &VertexImagen{
		projectID:          strings.TrimSpace(cfg.ProjectID),
		location:           strings.TrimSpace(cfg.Location),
		model:              normalizeModel(cfg.Model, DefaultViewModel),
		aspectRatio:        orDefault(strings.TrimSpace(cfg.AspectRatio), DefaultViewAspectRatio),
		apiKey:             strings.TrimSpace(cfg.APIKey),
		serviceAccount:     strings.TrimSpace(cfg.ServiceAccount),
		serviceAccountJSON: strings.TrimSpace(cfg.ServiceAccountJSON),
	}
}

// Render runs one Imagen generation request.
func (v *VertexImagen) Render(ctx context.Context, prompt string) (ImageResult, error) {
	if v == nil {
		return ImageResult{}, fmt.Errorf("imagen: client not configured")
	}
	if v.projectID == "" || v.location == "" {
		return ImageResult{}, fmt.Errorf("imagen: missing project/location")
	}

	instance, params, err := v.predictPayload(prompt)
	if err != nil {
		return ImageResult{}, err
	}

	client, err := aiplatform.NewPredictionClient(ctx, v.clientOptions()...)
	if err != nil {
		return ImageResult{}, fmt.Errorf("imagen: prediction client: %w", err)
	}
	defer client.Close()

	resp, err := client.Predict(ctx, &aiplatformpb.PredictRequest{
		Endpoint:   v.endpoint(),
		Instances:  []*structpb.Value{instance},
		Parameters: params,
	})
	if err != nil {
		return ImageResult{}, fmt.Errorf("imagen: predict: %w", err)
	}
	return decodePrediction(resp.GetPredictions())
}

func (v *VertexImagen) endpoint() string {
	return fmt.Sprintf("projects/%s/locations/%s/publishers/google/models/%s", v.projectID, v.location, v.model)
}

func (v *VertexImagen) clientOptions() []option.ClientOption {
	options := []option.ClientOption{option.WithEndpoint(fmt.Sprintf("%s-aiplatform.googleapis.com:443", v.location))}
	if v.serviceAccountJSON != "" {
		options = append(options, option.WithCredentialsJSON([]byte(v.serviceAccountJSON)))
	} else if v.serviceAccount != "" {
		options = append(options, option.WithCredentialsFile(v.serviceAccount))
	} else if v.apiKey != "" {
		options = append(options, option.WithAPIKey(v.apiKey))
	}
	return options
}

func (v *VertexImagen) predictPayload(prompt string) (*structpb.Value, *structpb.Value, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, nil, fmt.Errorf("imagen: prompt is required")
	}
	instance, err := structpb.NewValue(map[string]any{
		"prompt": prompt,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("imagen: build instance: %w", err)
	}
	params, err := structpb.NewValue(map[string]any{
		"sampleCount": 1,
		"aspectRatio": v.aspectRatio,
		"outputOptions": map[string]any{
			"mimeType": viewMIMEType,
		},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("imagen: build parameters: %w", err)
	}
	return instance, params, nil
}

func decodePrediction(predictions []*structpb.Value) (ImageResult, error) {
	if len(predictions) == 0 {
		return ImageResult{}, fmt.Errorf("imagen: empty prediction response: %w", design.ErrGeneration)
	}
	fields := predictions[0].GetStructValue().GetFields()
	field := fields["bytesBase64Encoded"]
	if field == nil || field.GetStringValue() == "" {
		return ImageResult{}, fmt.Errorf("imagen: prediction missing bytes: %w", design.ErrGeneration)
	}
	encoded := field.GetStringValue()
	if _, err := base64.StdEncoding.DecodeString(encoded); err != nil {
		return ImageResult{}, fmt.Errorf("imagen: decode result: %w", err)
	}
	mime := viewMIMEType
	if m := fields["mimeType"]; m != nil && m.GetStringValue() != "" {
		mime = m.GetStringValue()
	}
	return ImageResult{Data: encoded, MIME: mime}, nil
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
