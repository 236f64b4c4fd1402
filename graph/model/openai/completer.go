// Package openai adapts the official OpenAI SDK to the model.Completer
// contract.
package openai

import (
	"context"
	"errors"
	"fmt"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/dashworks/graphflow/graph/model"
)

// Completer calls the OpenAI chat completions API.
//
// Safe for concurrent use; the underlying SDK client handles concurrent
// requests. Obtain the API key from the environment, never hardcode it:
//
//	completer := openai.New(os.Getenv("OPENAI_API_KEY"))
type Completer struct {
	client *sdk.Client
}

// New creates a Completer with the given API key.
func New(apiKey string) *Completer {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return &Completer{client: &client}
}

// Complete sends the prompt as a single user message and returns the first
// choice's text.
func (c *Completer) Complete(ctx context.Context, req model.Request) (string, error) {
	params := sdk.ChatCompletionNewParams{
		Model: shared.ChatModel(req.Model),
		Messages: []sdk.ChatCompletionMessageParamUnion{
			{
				OfUser: &sdk.ChatCompletionUserMessageParam{
					Content: sdk.ChatCompletionUserMessageParamContentUnion{
						OfString: sdk.String(req.Prompt),
					},
				},
			},
		},
	}
	if req.Temperature > 0 {
		params.Temperature = sdk.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(req.MaxTokens))
	}

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai completion failed: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", errors.New("no response from OpenAI API")
	}

	return completion.Choices[0].Message.Content, nil
}
