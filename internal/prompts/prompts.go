package prompts

import (
	"fmt"
	"strings"

	"interiorDesignAi/internal/design"
)

const dimensionPrompt = "Analyze the provided image of a room and estimate its dimensions. Provide the length, width, and height in meters (e.g., '5m'). Your response must be only a JSON object matching the schema. Be as accurate as possible based on common objects in the photo for scale."

const (
	arabicDirective  = "The user has selected Arabic. The entire JSON response, including all descriptions, titles, and suggestions, MUST be in Arabic. The ONLY exception is the 'aiImagePrompts' field, which MUST remain in English. The 'arabicSummary' field should be used to provide a brief summary in ENGLISH."
	englishDirective = "The user has selected English. The entire JSON response MUST be in English, except for the 'arabicSummary' field which must contain a brief summary in ARABIC."

	noFurnitureDirective = "The user has not provided their own furniture images to add."
	furnitureDirective   = "CRITICAL: The user has provided %d images of their own furniture to incorporate. Your redesign concept must include placing these new items into the room. The first image provided is the room to be redesigned, all subsequent images are the new furniture items."

	noCustomItems    = "None"
	noInstructions   = "The user did not provide specific instructions. Propose a general improvement to the space based on design principles."
	noDimensions     = "The user did not provide dimensions. Estimate them from the image."
	dimensionMissing = "Not provided"
)

const analysisTemplate = `You are a professional interior design AI. Your task is to analyze an image of a furnished room and create a redesign concept based on the user's instructions.

**Language Instructions:**
%s

**Furniture Instructions:**
%s

**User Preferences & Instructions:**
- **Chosen Style:** "%s"
- **Specific New Items to Add:** "%s"
- **Redesign Instructions:** "%s"
- **Provided Dimensions:** %s

**Instructions:**
1.  **Analyze Image:** In detail, identify the room type, architectural elements, lighting, AND any existing furniture in the main room image (the first image). List the detected furniture in the 'detectedFurniture' field.
2.  **Redesign Concept:** Create a detailed redesign concept based on the user's redesign instructions.
    - If the user provided furniture images, you MUST incorporate them.
    - If the user chose a style other than '%s', you MUST base the concept on the "%s" style.
    - If the user provided custom text items, incorporate them.
    - Create a list of suggested new or replacement furniture/decor in the 'suggestedFurniture' field.
    - Summarize the key changes you made from the original in the 'summaryOfChanges' field.
3.  **Propose 3 Styles:** Suggest three distinct interior design styles suitable for the space. The style used for the main redesign concept must be one of these three.
4.  **Dimensions:**
    - If the user provided dimensions, echo them back in the 'userProvidedDimensions' object.
    - Calculate and provide the 'estimatedArea' and 'estimatedVolume'.
5.  **AI Image Prompts:** Generate three distinct, highly detailed AI image prompts (photorealistic, 3D, 2D) as described in the schema. The photorealistic prompt is crucial for editing the original image based on your redesign. All prompts MUST be in English.
6.  **Secondary Language Summary:** Provide a summary as per the language instructions.

Your entire response MUST conform to the provided JSON schema. Do not output anything other than the JSON object.`

const visualizationPrefix = "IMPORTANT: This is an in-painting and image editing task. You MUST modify the first image (the room) according to the instructions. This may involve removing existing furniture, changing colors of walls or objects, and adding new items. The original room's architecture (windows, doors, floor plan) should remain the same unless specified. The subsequent images are new furniture items to be placed, if any were provided. Instructions: "

// AnalysisInput carries the user's preferences into the analysis prompt.
type AnalysisInput struct {
	Style          design.Style
	CustomItems    string
	Instructions   string
	Dimensions     design.RoomDimensions
	Language       design.Language
	FurnitureCount int
}

// DimensionEstimate returns the fixed dimension-estimation instruction.
func DimensionEstimate() string {
	return dimensionPrompt
}

// Analysis composes the full analysis instruction. User strings are quoted
// verbatim; empty ones are replaced by explicit defaults.
func Analysis(in AnalysisInput) string {
	style := string(in.Style)
	if strings.TrimSpace(style) == "" {
		style = string(design.StyleAISuggests)
	}
	return fmt.Sprintf(analysisTemplate,
		LanguageDirective(in.Language),
		FurnitureDirective(in.FurnitureCount),
		style,
		orDefault(in.CustomItems, noCustomItems),
		orDefault(in.Instructions, noInstructions),
		DimensionsDirective(in.Dimensions),
		design.StyleAISuggests,
		style,
	)
}

// LanguageDirective states which language every field must use.
func LanguageDirective(lang design.Language) string {
	if lang == design.LanguageArabic {
		return arabicDirective
	}
	return englishDirective
}

// FurnitureDirective explains image ordering when furniture photos are attached.
func FurnitureDirective(count int) string {
	if count <= 0 {
		return noFurnitureDirective
	}
	return fmt.Sprintf(furnitureDirective, count)
}

// DimensionsDirective echoes the user's dimensions or asks for an estimate.
func DimensionsDirective(dims design.RoomDimensions) string {
	if dims.IsZero() {
		return noDimensions
	}
	return fmt.Sprintf(`The user has provided the following dimensions: Length: "%s", Width: "%s", Height: "%s".`,
		orDefault(dims.Length, dimensionMissing),
		orDefault(dims.Width, dimensionMissing),
		orDefault(dims.Height, dimensionMissing),
	)
}

// Visualization frames the model-supplied photorealistic prompt as an edit of
// the first attached image.
func Visualization(prompt string) string {
	return visualizationPrefix + prompt
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
