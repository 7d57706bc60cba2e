package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrNoCredential is returned by backends that need a key when none was resolved.
var ErrNoCredential = errors.New("analyzer credential is required")

// Generator produces the three-section analysis text for a symptom description.
type Generator interface {
	Generate(ctx context.Context, credential, symptoms string) (string, error)
	Name() string
}

// Config controls generator construction.
type Config struct {
	Mode        string
	GeminiModel string
	OpenAIModel string
	// OpenAIBaseURL overrides the OpenAI API root, mostly for compatible gateways.
	OpenAIBaseURL string
	HTTPURL       string
}

func New(cfg Config) (Generator, error) {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "auto"
	}

	switch mode {
	case "auto":
		if strings.TrimSpace(cfg.HTTPURL) != "" {
			return NewHTTPGenerator(cfg.HTTPURL), nil
		}
		return NewGeminiGenerator(cfg.GeminiModel), nil
	case "gemini":
		return NewGeminiGenerator(cfg.GeminiModel), nil
	case "openai":
		return NewOpenAIGenerator(cfg.OpenAIModel, cfg.OpenAIBaseURL), nil
	case "http":
		if strings.TrimSpace(cfg.HTTPURL) == "" {
			return nil, errors.New("analyzer HTTP url is required for http mode")
		}
		return NewHTTPGenerator(cfg.HTTPURL), nil
	case "mock":
		return NewMockGenerator(), nil
	default:
		return nil, fmt.Errorf("unsupported analyzer mode %q", cfg.Mode)
	}
}

// RequiresCredential reports whether g refuses to run without a key.
func RequiresCredential(g Generator) bool {
	switch g.(type) {
	case *GeminiGenerator, *OpenAIGenerator:
		return true
	default:
		return false
	}
}
