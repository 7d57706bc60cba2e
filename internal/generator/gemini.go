package generator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

// GeminiGenerator calls the Gemini text API. Clients are cached per credential.
type GeminiGenerator struct {
	model string

	mu      sync.Mutex
	clients map[string]*genai.Client
}

func NewGeminiGenerator(model string) *GeminiGenerator {
	model = strings.TrimSpace(model)
	if model == "" {
		model = defaultGeminiModel
	}
	return &GeminiGenerator{model: model, clients: make(map[string]*genai.Client)}
}

func (g *GeminiGenerator) Name() string { return "gemini" }

func (g *GeminiGenerator) Generate(ctx context.Context, credential, symptoms string) (string, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return "", ErrNoCredential
	}
	client, err := g.client(ctx, credential)
	if err != nil {
		return "", err
	}

	resp, err := client.Models.GenerateContent(ctx, g.model, genai.Text(BuildPrompt(symptoms)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(SystemInstruction, genai.RoleUser),
		Temperature:       genai.Ptr[float32](0.4),
	})
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (g *GeminiGenerator) client(ctx context.Context, credential string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[credential]; ok {
		return c, nil
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	g.clients[credential] = c
	return c, nil
}
