// Package gemini generates cover letters with the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
	"github.com/minhnq-dev/jobmatch-be/internal/coverletter"
)

const (
	defaultModel      = "gemini-2.5-flash"
	defaultMaxRetries = 2
	retryBaseDelay    = 2 * time.Second
)

// sleep is swapped out in tests.
var sleep = time.Sleep

// Config holds Gemini API settings.
type Config struct {
	APIKey     string
	Model      string
	MaxRetries int
}

// contentGenerator is the slice of the genai Models API the generator uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator implements coverletter.Generator against the Gemini API with
// bounded retries on transient failures.
type Generator struct {
	models     contentGenerator
	model      string
	maxRetries int
	logger     *slog.Logger
}

// NewGenerator creates a Gemini-backed generator.
func NewGenerator(ctx context.Context, cfg *Config, logger *slog.Logger) (*Generator, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	return &Generator{
		models:     client.Models,
		model:      model,
		maxRetries: maxRetries,
		logger:     logger,
	}, nil
}

// Generate renders the prompt and calls Gemini, retrying transient API
// errors with doubling delays. All failures are wrapped in
// domain.ErrGenerationFailed.
func (g *Generator) Generate(ctx context.Context, req *coverletter.Request) (string, error) {
	prompt := coverletter.BuildPrompt(req)

	var lastErr error
	delay := retryBaseDelay
	for attempt := 1; attempt <= g.maxRetries+1; attempt++ {
		resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
		if err == nil {
			text := extractText(resp)
			if text == "" {
				return "", fmt.Errorf("%w: empty response from model", domain.ErrGenerationFailed)
			}
			return text, nil
		}

		lastErr = err
		if ctx.Err() != nil || !isTransient(err) {
			break
		}

		g.logger.Warn("Cover letter generation failed, retrying",
			slog.Int("attempt", attempt),
			slog.String("model", g.model),
			slog.Any("error", err),
		)
		sleep(delay)
		delay *= 2
	}

	return "", fmt.Errorf("%w: %v", domain.ErrGenerationFailed, lastErr)
}

// isTransient reports whether a genai API error is worth retrying.
func isTransient(err error) bool {
	var apiErr genai.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Code == 429 || apiErr.Code >= 500
}

// extractText joins the textual parts of the first non-empty candidate.
func extractText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(text)
		}
	}
	return strings.TrimSpace(b.String())
}
