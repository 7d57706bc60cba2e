package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIGenerator calls the OpenAI chat completions API.
type OpenAIGenerator struct {
	model   string
	baseURL string
}

func NewOpenAIGenerator(model, baseURL string) *OpenAIGenerator {
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultOpenAIModel
	}
	return &OpenAIGenerator{model: model, baseURL: strings.TrimSpace(baseURL)}
}

func (g *OpenAIGenerator) Name() string { return "openai" }

func (g *OpenAIGenerator) Generate(ctx context.Context, credential, symptoms string) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", ErrNoCredential
	}
	cfg := openai.DefaultConfig(credential)
	if g.baseURL != "" {
		cfg.BaseURL = g.baseURL
	}
	client := openai.NewClientWithConfig(cfg)

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       g.model,
		Temperature: 0.4,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemInstruction},
			{Role: openai.ChatMessageRoleUser, Content: BuildPrompt(symptoms)},
		},
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("openai chat completion: no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
