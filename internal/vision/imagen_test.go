package vision

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/structpb"

	"interiorDesignAi/internal/design"
)

func TestDecodePrediction(t *testing.T) {
	pred, err := structpb.NewValue(map[string]any{
		"bytesBase64Encoded": "aW1hZ2U=",
		"mimeType":           "image/png",
	})
	require.NoError(t, err)

	img, err := decodePrediction([]*structpb.Value{pred})
	require.NoError(t, err)
	require.Equal(t, ImageResult{Data: "aW1hZ2U=", MIME: "image/png"}, img)

	_, err = decodePrediction(nil)
	require.ErrorIs(t, err, design.ErrGeneration)

	empty, err := structpb.NewValue(map[string]any{"raiFilteredReason": "blocked"})
	require.NoError(t, err)
	_, err = decodePrediction([]*structpb.Value{empty})
	require.ErrorIs(t, err, design.ErrGeneration)
}

func TestVertexImagenPayload(t *testing.T) {
	v := NewVertexImagen(VertexImagenConfig{ProjectID: "p", Location: "europe-west4"})
	require.Equal(t, "projects/p/locations/europe-west4/publishers/google/models/"+DefaultViewModel, v.endpoint())

	instance, params, err := v.predictPayload("a floor plan")
	require.NoError(t, err)
	require.Equal(t, "a floor plan", instance.GetStructValue().GetFields()["prompt"].GetStringValue())

	fields := params.GetStructValue().GetFields()
	require.EqualValues(t, 1, fields["sampleCount"].GetNumberValue())
	require.Equal(t, "4:3", fields["aspectRatio"].GetStringValue())
	require.Equal(t, "image/jpeg", fields["outputOptions"].GetStructValue().GetFields()["mimeType"].GetStringValue())

	_, _, err = v.predictPayload(" ")
	require.Error(t, err)
}

func TestVertexImagenRequiresProject(t *testing.T) {
	require.False(t, VertexImagenConfig{Location: "us-central1"}.Enabled())
	_, err := NewVertexImagen(VertexImagenConfig{}).Render(context.Background(), "x")
	require.Error(t, err)
}

func TestVertexImagenClientOptions(t *testing.T) {
	require.Len(t, NewVertexImagen(VertexImagenConfig{ProjectID: "p", Location: "l"}).clientOptions(), 1)

	withKey := NewVertexImagen(VertexImagenConfig{ProjectID: "p", Location: "l", APIKey: " key "})
	require.Equal(t, "key", withKey.apiKey)
	require.Len(t, withKey.clientOptions(), 2)
}
