package design

import "strings"

// Language selects the primary response language of an analysis.
type Language string

const (
	LanguageEnglish Language = "en"
	LanguageArabic  Language = "ar"
)

// ParseLanguage maps a selector value onto a supported language.
func ParseLanguage(raw string) (Language, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", "en", "english":
		return LanguageEnglish, true
	case "ar", "arabic":
		return LanguageArabic, true
	default:
		return "", false
	}
}

// Secondary returns the language the summary must be written in.
func (l Language) Secondary() Language {
	if l == LanguageArabic {
		return LanguageEnglish
	}
	return LanguageArabic
}

// Style is one of the selectable design styles.
type Style string

const (
	// StyleAISuggests lets the model pick the style.
	StyleAISuggests Style = "AI Suggests"
	StyleModern     Style = "Modern"
	StyleClassic    Style = "Classic"
	StyleMinimalist Style = "Minimalist"
)

// Styles lists the selectable styles, default first.
func Styles() []Style {
	return []Style{StyleAISuggests, StyleModern, StyleClassic, StyleMinimalist}
}

// ParseStyle matches a selector value case-insensitively. Empty input yields the default.
func ParseStyle(raw string) (Style, bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return StyleAISuggests, true
	}
	for _, s := range Styles() {
		if strings.EqualFold(string(s), trimmed) {
			return s, true
		}
	}
	return "", false
}

// View names one of the three visualizations.
type View string

const (
	ViewPhotorealistic View = "photorealistic"
	ViewThreeD         View = "3d"
	ViewTwoD           View = "2d"
)

// Views lists the visualizations in tab order.
func Views() []View {
	return []View{ViewPhotorealistic, ViewThreeD, ViewTwoD}
}

// ParseView accepts the tab names used by the UI.
func ParseView(raw string) (View, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "photorealistic", "photo":
		return ViewPhotorealistic, true
	case "3d", "threed":
		return ViewThreeD, true
	case "2d", "twod", "floorplan":
		return ViewTwoD, true
	default:
		return "", false
	}
}

// RoomDimensions holds free-form length/width/height strings, e.g. "5m".
type RoomDimensions struct {
	Length string `json:"length"`
	Width  string `json:"width"`
	Height string `json:"height"`
}

// IsZero reports whether no dimension was provided.
func (d RoomDimensions) IsZero() bool {
	return d.Length == "" && d.Width == "" && d.Height == ""
}

// DesignAnalysis is the full report produced by one analysis call.
type DesignAnalysis struct {
	ImageAnalysis   ImageAnalysis   `json:"imageAnalysis"`
	DesignStyles    []DesignStyle   `json:"designStyles"`
	RedesignConcept RedesignConcept `json:"redesignConcept"`
	Dimensions      Dimensions      `json:"dimensions"`
	AIImagePrompts  AIImagePrompts  `json:"aiImagePrompts"`
	ArabicSummary   ArabicSummary   `json:"arabicSummary"`
}

// ImageAnalysis describes what the model saw in the room photo.
type ImageAnalysis struct {
	RoomType string   `json:"roomType"`
	Features []string `json:"features"`
	Lighting string   `json:"lighting"`
	// DetectedFurniture is nil when the model omitted the field.
	DetectedFurniture []string `json:"detectedFurniture,omitempty"`
}

// DesignStyle is one suggested style variant.
type DesignStyle struct {
	StyleName    string   `json:"styleName"`
	Description  string   `json:"description"`
	ColorPalette []string `json:"colorPalette"`
	KeyFurniture []string `json:"keyFurniture"`
	Lighting     []string `json:"lighting"`
	Decor        []string `json:"decor"`
	Materials    []string `json:"materials"`
}

// RedesignConcept is the proposed makeover.
type RedesignConcept struct {
	Title              string          `json:"title"`
	SummaryOfChanges   string          `json:"summaryOfChanges,omitempty"`
	Layout             string          `json:"layout"`
	Details            string          `json:"details"`
	SuggestedFurniture []SuggestedItem `json:"suggestedFurniture"`
}

// SuggestedItem is a new or replacement piece.
type SuggestedItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Dimensions carries model-formatted area/volume plus the user's echoed input.
type Dimensions struct {
	EstimatedArea          string          `json:"estimatedArea"`
	EstimatedVolume        string          `json:"estimatedVolume"`
	UserProvidedDimensions *RoomDimensions `json:"userProvidedDimensions,omitempty"`
}

// AIImagePrompts are the English prompts used for the three visualizations.
type AIImagePrompts struct {
	Photorealistic string `json:"photorealistic"`
	ThreeD         string `json:"threeD"`
	TwoD           string `json:"twoD"`
}

// For returns the prompt backing the given view.
func (p AIImagePrompts) For(view View) string {
	switch view {
	case ViewPhotorealistic:
		return p.Photorealistic
	case ViewThreeD:
		return p.ThreeD
	case ViewTwoD:
		return p.TwoD
	default:
		return ""
	}
}

// ArabicSummary is the short summary in the secondary language. Despite the
// name it is English when the primary language is Arabic.
type ArabicSummary struct {
	Title   string `json:"title"`
	Concept string `json:"concept"`
}
