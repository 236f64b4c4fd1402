// Package anthropic adapts the official Anthropic SDK to the
// model.Completer contract.
package anthropic

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/dashworks/graphflow/graph/model"
)

// defaultMaxTokens applies when the request doesn't set a cap; the
// Anthropic API requires an explicit max_tokens.
const defaultMaxTokens = 4096

// Completer calls the Anthropic Messages API.
//
// Safe for concurrent use after creation. Obtain the API key from the
// environment, never hardcode it.
type Completer struct {
	client *sdk.Client
}

// New creates a Completer with the given API key.
func New(apiKey string) *Completer {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &Completer{client: &client}
}

// Complete sends the prompt as a single user message and concatenates the
// text blocks of the reply.
func (c *Completer) Complete(ctx context.Context, req model.Request) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(req.Model),
		MaxTokens: int64(maxTokens),
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(req.Prompt)),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}

	message, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic completion failed: %w", err)
	}

	var text string
	for _, block := range message.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", errors.New("no text content in Anthropic response")
	}

	return text, nil
}
