package gemini

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
	"github.com/minhnq-dev/jobmatch-be/internal/coverletter"
)

type fakeModels struct {
	mu        sync.Mutex
	responses []fakeResponse
	calls     int
}

type fakeResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

func (f *fakeModels) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.calls >= len(f.responses) {
		return nil, errors.New("unexpected call")
	}
	res := f.responses[f.calls]
	f.calls++
	return res.resp, res.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: text}}},
		}},
	}
}

func newTestGenerator(models *fakeModels, maxRetries int) *Generator {
	return &Generator{
		models:     models,
		model:      "gemini-2.5-flash",
		maxRetries: maxRetries,
		logger:     slog.New(slog.DiscardHandler),
	}
}

func testRequest() *coverletter.Request {
	return &coverletter.Request{
		JobTitle:       "Scrape product listings",
		JobDescription: "Daily scraper needed.",
	}
}

func TestGenerator_Generate(t *testing.T) {
	models := &fakeModels{responses: []fakeResponse{
		{resp: textResponse("Dear client, I can build this.")},
	}}
	g := newTestGenerator(models, 2)

	letter, err := g.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "Dear client, I can build this.", letter)
	assert.Equal(t, 1, models.calls)
}

func TestGenerator_RetriesTransientErrors(t *testing.T) {
	originalSleep := sleep
	sleep = func(time.Duration) {}
	defer func() { sleep = originalSleep }()

	models := &fakeModels{responses: []fakeResponse{
		{err: genai.APIError{Code: http.StatusInternalServerError, Status: "INTERNAL"}},
		{resp: textResponse("second try")},
	}}
	g := newTestGenerator(models, 2)

	letter, err := g.Generate(context.Background(), testRequest())
	require.NoError(t, err)
	assert.Equal(t, "second try", letter)
	assert.Equal(t, 2, models.calls)
}

func TestGenerator_GivesUpAfterRetries(t *testing.T) {
	originalSleep := sleep
	sleep = func(time.Duration) {}
	defer func() { sleep = originalSleep }()

	apiErr := genai.APIError{Code: http.StatusTooManyRequests, Status: "RESOURCE_EXHAUSTED"}
	models := &fakeModels{responses: []fakeResponse{
		{err: apiErr}, {err: apiErr}, {err: apiErr},
	}}
	g := newTestGenerator(models, 2)

	_, err := g.Generate(context.Background(), testRequest())
	require.ErrorIs(t, err, domain.ErrGenerationFailed)
	assert.Equal(t, 3, models.calls)
}

func TestGenerator_DoesNotRetryPermanentErrors(t *testing.T) {
	models := &fakeModels{responses: []fakeResponse{
		{err: genai.APIError{Code: http.StatusBadRequest, Status: "INVALID_ARGUMENT"}},
	}}
	g := newTestGenerator(models, 3)

	_, err := g.Generate(context.Background(), testRequest())
	require.ErrorIs(t, err, domain.ErrGenerationFailed)
	assert.Equal(t, 1, models.calls)
}

func TestGenerator_EmptyResponseIsFailure(t *testing.T) {
	models := &fakeModels{responses: []fakeResponse{
		{resp: &genai.GenerateContentResponse{}},
	}}
	g := newTestGenerator(models, 2)

	_, err := g.Generate(context.Background(), testRequest())
	require.ErrorIs(t, err, domain.ErrGenerationFailed)
}
