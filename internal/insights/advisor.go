// Package insights produces a written financial assessment of a ledger
// summary using a Gemini model.
package insights

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dvloznov/mpesa-insights/internal/analytics"
	"github.com/dvloznov/mpesa-insights/internal/logger"
	"google.golang.org/genai"
)

// DefaultModelName is used when no model is configured.
const DefaultModelName = "gemini-2.0-flash"

var (
	// ErrNotConfigured is returned when no API key was provided.
	ErrNotConfigured = errors.New("insights: Gemini API key not configured")

	// ErrRateLimited is returned when the model rejects the call for quota reasons.
	ErrRateLimited = errors.New("insights: rate limit exceeded")
)

// Advisor turns an insight summary into Markdown advice.
type Advisor interface {
	GenerateInsights(ctx context.Context, summary analytics.InsightSummary) (string, error)
}

// ContentGenerator is the subset of the genai models service used here.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiAdvisor implements Advisor with the Gemini API.
type GeminiAdvisor struct {
	client *genai.Client
	models ContentGenerator
	model  string
}

// NewGeminiAdvisor creates an advisor. An empty API key yields an advisor
// whose calls fail with ErrNotConfigured.
func NewGeminiAdvisor(ctx context.Context, apiKey, model string) (*GeminiAdvisor, error) {
	if model == "" {
		model = DefaultModelName
	}
	if apiKey == "" {
		return &GeminiAdvisor{model: model}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("NewGeminiAdvisor: create genai client: %w", err)
	}
	return &GeminiAdvisor{client: client, models: client.Models, model: model}, nil
}

// NewGeminiAdvisorWithModels creates an advisor around an existing models service.
func NewGeminiAdvisorWithModels(models ContentGenerator, model string) *GeminiAdvisor {
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiAdvisor{models: models, model: model}
}

// Model returns the configured model name.
func (a *GeminiAdvisor) Model() string {
	return a.model
}

// WithModel returns a copy of the advisor that uses a different model.
func (a *GeminiAdvisor) WithModel(model string) *GeminiAdvisor {
	cp := *a
	if model != "" {
		cp.model = model
	}
	return &cp
}

// GenerateInsights asks the model for an assessment of summary.
func (a *GeminiAdvisor) GenerateInsights(ctx context.Context, summary analytics.InsightSummary) (string, error) {
	log := logger.FromContext(ctx)

	if a.models == nil {
		return "", ErrNotConfigured
	}

	prompt, err := BuildPrompt(summary)
	if err != nil {
		return "", fmt.Errorf("GenerateInsights: %w", err)
	}

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: prompt}}},
	}

	resp, err := a.models.GenerateContent(ctx, a.model, contents, nil)
	if err != nil {
		if isRateLimit(err) {
			log.Warn().Err(err).Str("model", a.model).Msg("Insight generation rate limited")
			return "", fmt.Errorf("GenerateInsights: %w", ErrRateLimited)
		}
		return "", fmt.Errorf("GenerateInsights: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("GenerateInsights: empty response from model")
	}

	log.Info().Str("model", a.model).Int("chars", len(text)).Msg("Insights generated")
	return text, nil
}

// ListModels returns the short names of models that support content
// generation, sorted.
func (a *GeminiAdvisor) ListModels(ctx context.Context) ([]string, error) {
	if a.client == nil {
		return nil, ErrNotConfigured
	}

	var models []*genai.Model
	for m, err := range a.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("ListModels: %w", err)
		}
		models = append(models, m)
	}
	return generativeModels(models), nil
}

func generativeModels(models []*genai.Model) []string {
	var out []string
	for _, m := range models {
		if m == nil {
			continue
		}
		for _, action := range m.SupportedActions {
			if action == "generateContent" {
				out = append(out, strings.TrimPrefix(m.Name, "models/"))
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func isRateLimit(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "RESOURCE_EXHAUSTED") ||
		strings.Contains(msg, "Quota exceeded")
}

// BuildPrompt renders the advisor prompt around the JSON summary.
func BuildPrompt(summary analytics.InsightSummary) (string, error) {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return "", fmt.Errorf("BuildPrompt: marshal summary: %w", err)
	}

	return "You are an expert financial advisor analyzing M-Pesa transaction data.\n\n" +
		"Financial Summary:\n" +
		string(data) + "\n\n" +
		"Please provide a professional financial assessment including:\n" +
		"1. **Spending Analysis**: A concise summary of where the money is going.\n" +
		"2. **Actionable Recommendations**: 3-5 specific tips to improve financial health or reduce expenses.\n" +
		"3. **Alerts**: Highlight any potential red flags (e.g. high spending relative to income).\n" +
		"4. **Commendations**: Positive habits if any.\n\n" +
		"Format the response in clean Markdown. Keep it friendly but professional.\n", nil
}

// Notice returns the message to show a user in place of insights when err is not nil.
func Notice(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotConfigured):
		return "Gemini API key not found. Set GEMINI_API_KEY in your .env file to enable AI insights."
	case errors.Is(err, ErrRateLimited):
		return "Rate limit exceeded: the Gemini free tier has strict limits. Wait a minute and try again, or switch to a different model."
	default:
		return "Error generating insights: " + err.Error()
	}
}

var _ Advisor = (*GeminiAdvisor)(nil)
