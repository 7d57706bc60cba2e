package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// HTTPGenerator forwards requests to a remote service speaking the
// POST {symptoms} -> {analysis} contract.
type HTTPGenerator struct {
	url    string
	client *http.Client
}

func NewHTTPGenerator(url string) *HTTPGenerator {
	return &HTTPGenerator{
		url: strings.TrimSpace(url),
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (g *HTTPGenerator) Name() string { return "http" }

func (g *HTTPGenerator) Generate(ctx context.Context, credential, symptoms string) (string, error) {
	payload, err := json.Marshal(map[string]string{"symptoms": symptoms})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c := strings.TrimSpace(credential); c != "" {
		req.Header.Set("Authorization", "Bearer "+c)
	}

	res, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var obj map[string]any
	jsonErr := json.Unmarshal(body, &obj)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg := strings.TrimSpace(string(body))
		if jsonErr == nil {
			if s, ok := obj["error"].(string); ok {
				msg = s
			}
		}
		return "", &StatusError{StatusCode: res.StatusCode, Message: msg}
	}

	if jsonErr != nil {
		return strings.TrimSpace(string(body)), nil
	}
	return strings.TrimSpace(extractText(obj)), nil
}

// StatusError reports a non-2xx answer from the remote analyzer.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analyzer http status %d: %s", e.StatusCode, e.Message)
}

func (e *StatusError) HTTPStatus() int { return e.StatusCode }

func extractText(obj map[string]any) string {
	for _, k := range []string{"analysis", "text", "output"} {
		if s, ok := obj[k].(string); ok {
			return s
		}
	}
	return ""
}
