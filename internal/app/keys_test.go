package app

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ent0n29/symptomcheck/internal/config"
	"github.com/ent0n29/symptomcheck/internal/prefs"
	"github.com/ent0n29/symptomcheck/internal/realtime"
)

func clearKeyEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY", "OPENAI_API_KEY", "ANALYZER_HTTP_TOKEN"} {
		t.Setenv(k, "")
	}
}

func TestAnalyzerKeyOrdering(t *testing.T) {
	clearKeyEnv(t)
	ctx := context.Background()
	store := prefs.NewInMemoryStore()
	require.NoError(t, store.Set(ctx, "device-1", prefs.KeyAPIKey, "stored-key"))
	t.Setenv("GEMINI_API_KEY", "env-key")

	withStatic := KeyResolvers{Config: config.Config{AnalyzerAPIKey: "static-key"}, Store: store, Generator: "gemini", Logger: zerolog.Nop()}
	key, source, ok := withStatic.Analyzer("device-1").Resolve(ctx)
	require.True(t, ok)
	assert.Equal(t, "static-key", key)
	assert.Equal(t, "static", source)

	noStatic := KeyResolvers{Store: store, Generator: "gemini", Logger: zerolog.Nop()}
	key, source, _ = noStatic.Analyzer("device-1").Resolve(ctx)
	assert.Equal(t, "stored-key", key)
	assert.Equal(t, "preferences", source)

	key, source, _ = noStatic.Analyzer("device-2").Resolve(ctx)
	assert.Equal(t, "env-key", key)
	assert.Equal(t, "env", source)
}

func TestAnalyzerKeyUsesBackendEnvironment(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GEMINI_API_KEY", "gemini-key")
	t.Setenv("OPENAI_API_KEY", "openai-key")

	k := KeyResolvers{Generator: "openai", Logger: zerolog.Nop()}
	key, _, ok := k.Analyzer("").Resolve(context.Background())
	require.True(t, ok)
	assert.Equal(t, "openai-key", key)
}

func TestLiveKeyIgnoresNonGeminiAnalyzerKey(t *testing.T) {
	clearKeyEnv(t)
	t.Setenv("GEMINI_API_KEY", "gemini-key")

	k := KeyResolvers{Config: config.Config{AnalyzerAPIKey: "sk-openai"}, Generator: "openai", Logger: zerolog.Nop()}
	key, _, _ := k.Live("").Resolve(context.Background())
	assert.Equal(t, "gemini-key", key)

	k.Generator = "gemini"
	key, _, _ = k.Live("").Resolve(context.Background())
	assert.Equal(t, "sk-openai", key)
}

func TestLiveBackendFactory(t *testing.T) {
	mock := LiveBackendFactory(config.Config{LiveBackend: "mock"}, KeyResolvers{}, zerolog.Nop())
	assert.IsType(t, &realtime.MockBackend{}, mock("device-1"))

	gemini := LiveBackendFactory(config.Config{LiveBackend: "gemini"}, KeyResolvers{Logger: zerolog.Nop()}, zerolog.Nop())
	assert.Equal(t, "gemini", gemini("device-1").Name())
}
