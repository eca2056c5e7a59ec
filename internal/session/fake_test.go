package session

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"interiorDesignAi/internal/design"
	"interiorDesignAi/internal/media"
	"interiorDesignAi/internal/vision"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

// fakeGateway records calls and returns canned results. When gate is set
// every call blocks until the gate closes or the context is cancelled.
type fakeGateway struct {
	mu sync.Mutex

	dims        design.RoomDimensions
	dimsErr     error
	analysis    design.DesignAnalysis
	analyzeErr  error
	visualErr   error
	viewErr     error
	gate        chan struct{}
	cancelled   int
	calls       map[string]int
	analyzeReqs []vision.AnalysisRequest
	visualReqs  []vision.VisualizationRequest
	viewPrompts []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		dims:     design.RoomDimensions{Length: "5m", Width: "4m", Height: "2.7m"},
		analysis: sampleAnalysis(),
		calls:    make(map[string]int),
	}
}

func (f *fakeGateway) enter(ctx context.Context, name string) error {
	f.mu.Lock()
	f.calls[name]++
	gate := f.gate
	f.mu.Unlock()
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		f.mu.Lock()
		f.cancelled++
		f.mu.Unlock()
		return ctx.Err()
	}
}

func (f *fakeGateway) EstimateDimensions(ctx context.Context, _ media.InlineImage) (design.RoomDimensions, error) {
	if err := f.enter(ctx, "estimate"); err != nil {
		return design.RoomDimensions{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dims, f.dimsErr
}

func (f *fakeGateway) Analyze(ctx context.Context, req vision.AnalysisRequest) (design.DesignAnalysis, error) {
	if err := f.enter(ctx, "analyze"); err != nil {
		return design.DesignAnalysis{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.analyzeReqs = append(f.analyzeReqs, req)
	if f.analyzeErr != nil {
		return design.DesignAnalysis{}, f.analyzeErr
	}
	return f.analysis, nil
}

func (f *fakeGateway) Visualize(ctx context.Context, req vision.VisualizationRequest) (vision.ImageResult, error) {
	if err := f.enter(ctx, "visualize"); err != nil {
		return vision.ImageResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visualReqs = append(f.visualReqs, req)
	if f.visualErr != nil {
		return vision.ImageResult{}, f.visualErr
	}
	return renderedImage("photo"), nil
}

func (f *fakeGateway) GenerateView(ctx context.Context, prompt string) (vision.ImageResult, error) {
	if err := f.enter(ctx, "view"); err != nil {
		return vision.ImageResult{}, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewPrompts = append(f.viewPrompts, prompt)
	if f.viewErr != nil {
		return vision.ImageResult{}, f.viewErr
	}
	return renderedImage(prompt), nil
}

func (f *fakeGateway) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeGateway) set(fn func(f *fakeGateway)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn(f)
}

func renderedImage(label string) vision.ImageResult {
	return vision.ImageResult{
		Data: base64.StdEncoding.EncodeToString(append(append([]byte(nil), pngHeader...), label...)),
		MIME: "image/png",
	}
}

func roomImage(t *testing.T) media.InlineImage {
	t.Helper()
	img, err := media.EncodeBytes(append(append([]byte(nil), pngHeader...), "room"...), "")
	require.NoError(t, err)
	return img
}

func sampleAnalysis() design.DesignAnalysis {
	return design.DesignAnalysis{
		ImageAnalysis: design.ImageAnalysis{RoomType: "Living room", Features: []string{"large window"}, Lighting: "daylight"},
		DesignStyles: []design.DesignStyle{
			{StyleName: "Modern"}, {StyleName: "Warm Modern"}, {StyleName: "Soft Modern"},
		},
		RedesignConcept: design.RedesignConcept{Title: "Calm Modern Lounge"},
		AIImagePrompts: design.AIImagePrompts{
			Photorealistic: "Replace the red armchair with a grey lounge chair",
			ThreeD:         "3D render of a modern lounge",
			TwoD:           "Top-down floor plan of a modern lounge",
		},
		ArabicSummary: design.ArabicSummary{Title: "صالة عصرية", Concept: "تصميم هادئ"},
	}
}

func newTestManager(gw vision.Gateway, mutate ...func(*Options)) *Manager {
	opts := Options{Gateway: gw}
	for _, fn := range mutate {
		fn(&opts)
	}
	m := NewManager(opts)
	return m
}

func waitDone(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("stage did not finish")
	}
}
