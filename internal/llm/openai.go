package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"
	"github.com/openai/openai-go/v3/shared"
)

type openAICredentials struct {
	APIKey string `env:"OPENAI_API_KEY"`
}

// OpenAIProvider calls OpenAI's Responses API.
type OpenAIProvider struct {
	Model  string
	apiKey string
	client openai.Client
}

// NewOpenAIProvider reads OPENAI_API_KEY from the environment and builds a client.
func NewOpenAIProvider(model string) (*OpenAIProvider, error) {
	var creds openAICredentials
	if err := env.Parse(&creds); err != nil {
		return nil, fmt.Errorf("reading OpenAI credentials: %w", err)
	}
	return &OpenAIProvider{
		Model:  model,
		apiKey: creds.APIKey,
		client: openai.NewClient(option.WithAPIKey(creds.APIKey)),
	}, nil
}

// IsConfigured checks if the API key is set.
func (o *OpenAIProvider) IsConfigured() bool {
	return o.apiKey != ""
}

// Generate sends a prompt to OpenAI and returns the output text.
func (o *OpenAIProvider) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if o.apiKey == "" {
		return "", errors.New("OpenAI API key not configured")
	}

	params := responses.ResponseNewParams{
		Model: shared.ResponsesModel(o.Model),
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(prompt),
		},
	}
	if maxTokens > 0 {
		params.MaxOutputTokens = openai.Int(int64(maxTokens))
	}

	resp, err := o.client.Responses.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("OpenAI API error: %w", err)
	}
	if resp.Status == "incomplete" {
		return "", fmt.Errorf("response is incomplete (reason = %s)", resp.IncompleteDetails.Reason)
	}

	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return "", fmt.Errorf("output text is missing (status = %s)", resp.Status)
	}
	return text, nil
}
