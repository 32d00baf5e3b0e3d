// Package pdftables extracts raw table grids from statement PDFs using a
// Gemini model. It only reports cell text; locating the transaction table and
// interpreting the cells is left to the statement package.
package pdftables

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/dvloznov/mpesa-insights/internal/logger"
	"github.com/dvloznov/mpesa-insights/internal/statement"
	"google.golang.org/genai"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.0-flash"

// ContentGenerator is the subset of the genai models service used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiExtractor implements statement.TableExtractor.
type GeminiExtractor struct {
	models ContentGenerator
	model  string
}

// NewGeminiExtractor creates an extractor backed by the Gemini API.
func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("NewGeminiExtractor: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiExtractor: create genai client: %w", err)
	}
	return NewGeminiExtractorWithModels(client.Models, model), nil
}

// NewGeminiExtractorWithModels creates an extractor around an existing models service.
func NewGeminiExtractorWithModels(models ContentGenerator, model string) *GeminiExtractor {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiExtractor{models: models, model: model}
}

const extractPrompt = "You are a table extraction engine for PDF documents.\n\n" +
	"Task:\n" +
	"- Extract EVERY table on EVERY page of the attached PDF, in page order and top-to-bottom order.\n" +
	"- Copy cell text exactly as printed. Do not interpret, reformat, sum or translate anything.\n" +
	"- Keep header rows as ordinary rows. Keep line breaks inside a cell as \"\\n\".\n" +
	"- Use null for an empty cell. Every row of a table must have the same number of cells.\n\n" +
	"Output STRICT JSON only with this shape:\n" +
	"{\"pages\": [{\"page\": 1, \"tables\": [[[\"cell\", \"cell\"], [\"cell\", null]]]}]}\n\n" +
	"Include pages without tables with an empty \"tables\" array.\n" +
	"Return ONLY valid raw JSON. Do NOT wrap the response in code fences.\n"

type extraction struct {
	Pages []struct {
		Page   int       `json:"page"`
		Tables [][][]any `json:"tables"`
	} `json:"pages"`
}

// ExtractTables sends the PDF to the model and returns the grids it found.
func (e *GeminiExtractor) ExtractTables(ctx context.Context, pdf []byte) ([]statement.Page, error) {
	log := logger.FromContext(ctx)

	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: extractPrompt},
				{
					InlineData: &genai.Blob{
						MIMEType: "application/pdf",
						Data:     pdf,
					},
				},
			},
		},
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr[float32](0),
	}

	resp, err := e.models.GenerateContent(ctx, e.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("ExtractTables: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("ExtractTables: empty response from model")
	}

	var parsed extraction
	if err := json.Unmarshal([]byte(cleanModelJSON(rawText)), &parsed); err != nil {
		return nil, fmt.Errorf("ExtractTables: unmarshal JSON: %w", err)
	}

	pages := make([]statement.Page, 0, len(parsed.Pages))
	grids := 0
	for i, p := range parsed.Pages {
		number := p.Page
		if number == 0 {
			number = i + 1
		}
		page := statement.Page{Number: number}
		for _, table := range p.Tables {
			page.Grids = append(page.Grids, toGrid(table))
		}
		grids += len(page.Grids)
		pages = append(pages, page)
	}

	log.Debug().
		Str("model", e.model).
		Int("pages", len(pages)).
		Int("grids", grids).
		Msg("PDF tables extracted")

	return pages, nil
}

func toGrid(table [][]any) [][]string {
	grid := make([][]string, len(table))
	for r, row := range table {
		cells := make([]string, len(row))
		for c, v := range row {
			cells[c] = cellText(v)
		}
		grid[r] = cells
	}
	return grid
}

func cellText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// cleanModelJSON strips Markdown fences and any text around the outermost JSON object.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			return s
		}
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}
	return s
}

var _ statement.TableExtractor = (*GeminiExtractor)(nil)
