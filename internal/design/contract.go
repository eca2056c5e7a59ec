package design

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// StyleCount is the number of style variants every analysis must carry.
const StyleCount = 3

var promptPrefix = regexp.MustCompile(`(?i)^(?:AI Image (?:Editing )?Prompt: )+`)

// StripPromptPrefix removes every leading "AI Image (Editing) Prompt: "
// marker from a prompt. Applying it twice equals applying it once.
func StripPromptPrefix(prompt string) string {
	return promptPrefix.ReplaceAllString(prompt, "")
}

// ParseDimensions decodes a dimension-estimate reply.
func ParseDimensions(text string) (RoomDimensions, error) {
	var dims RoomDimensions
	if err := decodeObject(text, &dims); err != nil {
		return RoomDimensions{}, err
	}
	return dims, nil
}

// ParseAnalysis decodes an analysis reply and normalizes the photorealistic
// prompt. Malformed text is rejected as a whole.
func ParseAnalysis(text string) (DesignAnalysis, error) {
	var analysis DesignAnalysis
	if err := decodeObject(text, &analysis); err != nil {
		return DesignAnalysis{}, err
	}
	analysis.AIImagePrompts.Photorealistic = StripPromptPrefix(analysis.AIImagePrompts.Photorealistic)
	return analysis, nil
}

func decodeObject(text string, v any) error {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return fmt.Errorf("%w: reply is not a JSON object", ErrInvalidResponse)
	}
	if err := json.Unmarshal([]byte(trimmed), v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}

// ContractMode decides what happens when a parsed analysis breaks an invariant.
type ContractMode string

const (
	// ContractStrict rejects the analysis.
	ContractStrict ContractMode = "strict"
	// ContractLenient accepts it and reports the violations for logging.
	ContractLenient ContractMode = "lenient"
)

// ParseContractMode falls back to strict for unknown values.
func ParseContractMode(raw string) ContractMode {
	if strings.EqualFold(strings.TrimSpace(raw), string(ContractLenient)) {
		return ContractLenient
	}
	return ContractStrict
}

// Violation describes one broken invariant.
type Violation struct {
	Field   string
	Message string
}

func (v Violation) String() string {
	return v.Field + ": " + v.Message
}

// Validate checks the invariants the schema only asks for: three styles,
// three non-empty image prompts, an unmarked photorealistic prompt and the
// secondary-language direction.
func Validate(analysis DesignAnalysis, primary Language) []Violation {
	var violations []Violation
	if n := len(analysis.DesignStyles); n != StyleCount {
		violations = append(violations, Violation{
			Field:   "designStyles",
			Message: fmt.Sprintf("expected %d styles, got %d", StyleCount, n),
		})
	}

	prompts := map[string]string{
		"aiImagePrompts.photorealistic": analysis.AIImagePrompts.Photorealistic,
		"aiImagePrompts.threeD":         analysis.AIImagePrompts.ThreeD,
		"aiImagePrompts.twoD":           analysis.AIImagePrompts.TwoD,
	}
	for _, field := range []string{"aiImagePrompts.photorealistic", "aiImagePrompts.threeD", "aiImagePrompts.twoD"} {
		if strings.TrimSpace(prompts[field]) == "" {
			violations = append(violations, Violation{Field: field, Message: "prompt is empty"})
		}
	}
	if promptPrefix.MatchString(analysis.AIImagePrompts.Photorealistic) {
		violations = append(violations, Violation{
			Field:   "aiImagePrompts.photorealistic",
			Message: "prompt still starts with a prompt marker",
		})
	}

	summary := analysis.ArabicSummary.Title + " " + analysis.ArabicSummary.Concept
	if strings.TrimSpace(summary) == "" {
		violations = append(violations, Violation{Field: "arabicSummary", Message: "summary is empty"})
	} else if got := dominantScript(summary); got != "" && got != primary.Secondary() {
		violations = append(violations, Violation{
			Field:   "arabicSummary",
			Message: fmt.Sprintf("summary must be in %q, looks like %q", primary.Secondary(), got),
		})
	}
	return violations
}

// dominantScript guesses the summary language from its letters.
func dominantScript(text string) Language {
	var arabic, latin int
	for _, r := range text {
		switch {
		case unicode.Is(unicode.Arabic, r):
			arabic++
		case unicode.Is(unicode.Latin, r):
			latin++
		}
	}
	switch {
	case arabic == 0 && latin == 0:
		return ""
	case arabic >= latin:
		return LanguageArabic
	default:
		return LanguageEnglish
	}
}

// ViolationError folds violations into an ErrInvalidResponse.
func ViolationError(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	parts := make([]string, 0, len(violations))
	for _, v := range violations {
		parts = append(parts, v.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidResponse, strings.Join(parts, "; "))
}
