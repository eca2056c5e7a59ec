package vision

import "google.golang.org/genai"

func stringField(description string) *genai.Schema {
	return &genai.Schema{Type: genai.TypeString, Description: description}
}

func stringList(description string) *genai.Schema {
	return &genai.Schema{
		Type:        genai.TypeArray,
		Items:       &genai.Schema{Type: genai.TypeString},
		Description: description,
	}
}

// dimensionSchema is rebuilt per call; the SDK may annotate schemas in place.
func dimensionSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"length": stringField("Estimated length in meters, e.g., '5m'"),
			"width":  stringField("Estimated width in meters, e.g., '4m'"),
			"height": stringField("Estimated height in meters, e.g., '2.5m'"),
		},
		Required: []string{"length", "width", "height"},
	}
}

func analysisSchema() *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"imageAnalysis": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"roomType":          stringField("Type of room (e.g., Living Room, Bedroom, Office)."),
					"features":          stringList("Key architectural features (e.g., 'Large window', 'Hardwood floors')."),
					"lighting":          stringField("Description of the lighting conditions (e.g., 'Bright natural light')."),
					"detectedFurniture": stringList("List of existing furniture items detected in the image."),
				},
			},
			"designStyles": {
				Type:        genai.TypeArray,
				Description: "Suggest 3 distinct interior design styles suitable for the space. If the user specified a style, it MUST be one of the three.",
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"styleName":    {Type: genai.TypeString},
						"description":  stringField("Brief description of the style, followed by an explanation of why it is a good fit for the analyzed room."),
						"colorPalette": stringList(""),
						"keyFurniture": stringList(""),
						"lighting":     stringList(""),
						"decor":        stringList(""),
						"materials":    stringList(""),
					},
				},
			},
			"redesignConcept": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"title":            stringField("A catchy title for the redesign concept."),
					"summaryOfChanges": stringField("A brief, one-paragraph summary of the main changes made from the original room, based on the user's request."),
					"layout":           stringField("Suggestions for spatial layout and furniture placement, incorporating the requested changes."),
					"details":          stringField("Detailed description of how to furnish and decorate the space according to the new concept."),
					"suggestedFurniture": {
						Type:        genai.TypeArray,
						Description: "A list of key new or replacement furniture and decor items mentioned in the redesign concept.",
						Items: &genai.Schema{
							Type: genai.TypeObject,
							Properties: map[string]*genai.Schema{
								"name":        stringField("The name of the furniture or decor item (e.g., 'Velvet Sofa')."),
								"description": stringField("A brief one-sentence description of the item."),
							},
							Required: []string{"name", "description"},
						},
					},
				},
			},
			"dimensions": {
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"userProvidedDimensions": {
						Type:        genai.TypeObject,
						Description: "The dimensions provided by the user, echoed back for display. If no dimensions were provided, this object can be omitted.",
						Properties: map[string]*genai.Schema{
							"length": {Type: genai.TypeString},
							"width":  {Type: genai.TypeString},
							"height": {Type: genai.TypeString},
						},
					},
					"estimatedArea":   stringField("Approximation of the room's area in sqm and sqft."),
					"estimatedVolume": stringField("Approximation of the room's volume in cbm and cft, if possible."),
				},
			},
			"aiImagePrompts": {
				Type:        genai.TypeObject,
				Description: "Generate three distinct, highly detailed prompts in English for AI image models to visualize the redesign concept.",
				Properties: map[string]*genai.Schema{
					"photorealistic": stringField("A prompt for an AI image EDITING model. This prompt will transform the user's original room photo into the redesigned space. It must describe REMOVING, REPLACING, or MODIFYING specific items from the original photo and adding new ones to match the redesign concept. For example: 'Remove the old brown sofa and replace it with a modern grey sectional. Change the wall color to a light sage green.' It should start with 'AI Image Editing Prompt: '."),
					"threeD":         stringField("A prompt for an AI image GENERATION model. This should create a photorealistic 3D render of the fully furnished redesigned room from a beautiful, slightly angled perspective. Do not mention the original image."),
					"twoD":           stringField("A prompt for an AI image GENERATION model. This should create a clean, 2D top-down architectural floor plan of the redesigned room, clearly showing the furniture layout and spacing. Use a simple, clear style."),
				},
				Required: []string{"photorealistic", "threeD", "twoD"},
			},
			"arabicSummary": {
				Type:        genai.TypeObject,
				Description: "If the main language is English, provide a brief summary in Arabic. If the main language is Arabic, provide a brief summary in English.",
				Properties: map[string]*genai.Schema{
					"title":   stringField("The redesign concept title in the secondary language."),
					"concept": stringField("A one-paragraph summary of the design concept in the secondary language."),
				},
			},
		},
	}
}
