package dataset

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"interiorDesignAi/internal/design"
	"interiorDesignAi/internal/prompts"
	"interiorDesignAi/internal/storage"
)

// Example represents a single prompt/completion pair built from a report.
type Example struct {
	ReportID       string          `json:"report_id"`
	SessionID      string          `json:"session_id,omitempty"`
	Style          design.Style    `json:"style"`
	Language       design.Language `json:"language"`
	FurnitureCount int             `json:"furniture_count"`
	InputText      string          `json:"input_text"`
	OutputText     string          `json:"output_text"`
	Renders        []string        `json:"renders,omitempty"`
}

// Options control which reports are exported.
type Options struct {
	// Style keeps only reports requested with this style when set.
	Style string
	// Language keeps only reports in this primary language when set.
	Language string
	// MinRenders drops reports with fewer archived views.
	MinRenders int
	// SkipInvalid drops reports whose analysis breaks the response contract.
	SkipInvalid bool
}

// BuildExamples converts reports to a consistent JSONL-friendly dataset.
func BuildExamples(reports []storage.Report, opts Options) ([]Example, error) {
	var style design.Style
	if trimmed := strings.TrimSpace(opts.Style); trimmed != "" {
		parsed, ok := design.ParseStyle(trimmed)
		if !ok {
			return nil, fmt.Errorf("dataset: unknown style %q", trimmed)
		}
		style = parsed
	}
	var lang design.Language
	if trimmed := strings.TrimSpace(opts.Language); trimmed != "" {
		parsed, ok := design.ParseLanguage(trimmed)
		if !ok {
			return nil, fmt.Errorf("dataset: unknown language %q", trimmed)
		}
		lang = parsed
	}

	var examples []Example
	for _, report := range reports {
		if style != "" && report.Style != style {
			continue
		}
		if lang != "" && report.Language != lang {
			continue
		}
		if len(report.Renders) < opts.MinRenders {
			continue
		}
		if opts.SkipInvalid && len(design.Validate(report.Analysis, report.Language)) > 0 {
			continue
		}

		output, err := json.Marshal(report.Analysis)
		if err != nil {
			return nil, fmt.Errorf("dataset: encode analysis of report %s: %w", report.ID, err)
		}
		examples = append(examples, Example{
			ReportID:       report.ID,
			SessionID:      report.SessionID,
			Style:          report.Style,
			Language:       report.Language,
			FurnitureCount: report.FurnitureCount,
			InputText: prompts.Analysis(prompts.AnalysisInput{
				Style:          report.Style,
				CustomItems:    report.CustomItems,
				Instructions:   report.Instructions,
				Dimensions:     report.Dimensions,
				Language:       report.Language,
				FurnitureCount: report.FurnitureCount,
			}),
			OutputText: string(output),
			Renders:    renderKeys(report.Renders),
		})
	}
	return examples, nil
}

func renderKeys(renders map[design.View]storage.Render) []string {
	if len(renders) == 0 {
		return nil
	}
	keys := make([]string, 0, len(renders))
	for _, view := range design.Views() {
		if r, ok := renders[view]; ok {
			keys = append(keys, r.Key)
		}
	}
	return keys
}

// WriteJSONL serializes examples to disk as JSON Lines.
func WriteJSONL(path string, examples []Example) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return Encode(file, examples)
}

// Encode writes one JSON object per line.
func Encode(w io.Writer, examples []Example) error {
	enc := json.NewEncoder(w)
	for _, ex := range examples {
		if err := enc.Encode(ex); err != nil {
			return err
		}
	}
	return nil
}
