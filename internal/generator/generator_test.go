package generator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSelectsMode(t *testing.T) {
	cases := []struct {
		cfg  Config
		want string
	}{
		{Config{}, "gemini"},
		{Config{Mode: "auto", HTTPURL: "http://x"}, "http"},
		{Config{Mode: "OpenAI"}, "openai"},
		{Config{Mode: "mock"}, "mock"},
		{Config{Mode: "http", HTTPURL: "http://x"}, "http"},
	}
	for _, c := range cases {
		g, err := New(c.cfg)
		require.NoError(t, err)
		assert.Equal(t, c.want, g.Name(), "mode %q", c.cfg.Mode)
	}

	_, err := New(Config{Mode: "http"})
	assert.Error(t, err)
	_, err = New(Config{Mode: "carrier-pigeon"})
	assert.Error(t, err)
}

func TestRequiresCredential(t *testing.T) {
	assert.True(t, RequiresCredential(NewGeminiGenerator("")))
	assert.True(t, RequiresCredential(NewOpenAIGenerator("", "")))
	assert.False(t, RequiresCredential(NewHTTPGenerator("http://x")))
	assert.False(t, RequiresCredential(NewMockGenerator()))
}

func TestKeyedGeneratorsRejectEmptyCredential(t *testing.T) {
	ctx := context.Background()
	_, err := NewGeminiGenerator("").Generate(ctx, " ", "ปวดหัว")
	assert.ErrorIs(t, err, ErrNoCredential)
	_, err = NewOpenAIGenerator("", "").Generate(ctx, "", "ปวดหัว")
	assert.ErrorIs(t, err, ErrNoCredential)
}

func TestHTTPGeneratorJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ไอ", body["symptoms"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"analysis":"  ### อาการที่ตรวจพบ\nไอ  "}`))
	}))
	defer srv.Close()

	got, err := NewHTTPGenerator(srv.URL).Generate(context.Background(), "tok", "ไอ")
	require.NoError(t, err)
	assert.Equal(t, "### อาการที่ตรวจพบ\nไอ", got)
}

func TestHTTPGeneratorPlainTextBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("plain answer\n"))
	}))
	defer srv.Close()

	got, err := NewHTTPGenerator(srv.URL).Generate(context.Background(), "", "x")
	require.NoError(t, err)
	assert.Equal(t, "plain answer", got)
}

func TestHTTPGeneratorStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"API key not configured"}`))
	}))
	defer srv.Close()

	_, err := NewHTTPGenerator(srv.URL).Generate(context.Background(), "", "x")
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 500, se.StatusCode)
	assert.Equal(t, "API key not configured", se.Message)
}

func TestOpenAIGeneratorUsesChatCompletions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-test", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.True(t, strings.Contains(req.Messages[1].Content, "เจ็บคอ"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"### อาการที่ตรวจพบ\n- เจ็บคอ"},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	g := NewOpenAIGenerator("gpt-test", srv.URL+"/v1")
	got, err := g.Generate(context.Background(), "sk-test", "เจ็บคอ")
	require.NoError(t, err)
	assert.Equal(t, "### อาการที่ตรวจพบ\n- เจ็บคอ", got)
}

func TestMockGeneratorHonorsContext(t *testing.T) {
	g := &MockGenerator{Delay: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := g.Generate(ctx, "", "x")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	out, err := NewMockGenerator().Generate(context.Background(), "", " ปวดท้อง ")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "### อาการที่ตรวจพบ\n- ปวดท้อง\n"))
}
