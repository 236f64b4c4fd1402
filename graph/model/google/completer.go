// Package google adapts the Gemini SDK to the model.Completer contract.
package google

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/dashworks/graphflow/graph/model"
)

// Completer calls the Gemini generate-content API.
//
// Close releases the underlying gRPC connection; call it when the
// completer is no longer needed.
type Completer struct {
	client *genai.Client
}

// New creates a Completer with the given API key.
func New(ctx context.Context, apiKey string) (*Completer, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &Completer{client: client}, nil
}

// Close closes the underlying client.
func (c *Completer) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Complete sends the prompt and concatenates the text parts of the first
// candidate.
func (c *Completer) Complete(ctx context.Context, req model.Request) (string, error) {
	m := c.client.GenerativeModel(req.Model)
	if req.Temperature > 0 {
		m.SetTemperature(float32(req.Temperature))
	}
	if req.MaxTokens > 0 {
		m.SetMaxOutputTokens(int32(req.MaxTokens))
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return "", fmt.Errorf("gemini completion failed: %w", err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("no candidates in Gemini response")
	}

	var text string
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text += string(t)
		}
	}
	if text == "" {
		return "", errors.New("no text content in Gemini response")
	}

	return text, nil
}
