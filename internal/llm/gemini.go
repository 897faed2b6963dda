// Package llm wraps the Gemini generative-model endpoint behind a narrow
// interface shared by the remote OCR engine and the translator.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// ErrEmptyResponse is returned when the model produced no candidates
var ErrEmptyResponse = errors.New("gemini: empty response")

// Generator sends one generateContent request and returns the response text
type Generator interface {
	Generate(ctx context.Context, model string, parts ...genai.Part) (string, error)
}

// GeminiClient creates a fresh genai client per call so concurrent requests share nothing
type GeminiClient struct {
	apiKey string
	opts   []option.ClientOption
}

func NewGeminiClient(apiKey string, opts ...option.ClientOption) *GeminiClient {
	return &GeminiClient{
		apiKey: strings.TrimSpace(apiKey),
		opts:   opts,
	}
}

// Generate performs a single attempt; callers decide how to classify failures.
func (c *GeminiClient) Generate(ctx context.Context, model string, parts ...genai.Part) (string, error) {
	opts := append([]option.ClientOption{option.WithAPIKey(c.apiKey)}, c.opts...)
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("gemini: create client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(strings.TrimSpace(model))
	if m == nil {
		return "", fmt.Errorf("gemini: model is nil")
	}

	resp, err := m.GenerateContent(ctx, parts...)
	if err != nil {
		return "", fmt.Errorf("gemini: generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return "", ErrEmptyResponse
	}
	return ResponseText(resp), nil
}

// ResponseText concatenates the text parts of the first candidate that has content
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		return sb.String()
	}
	return ""
}
