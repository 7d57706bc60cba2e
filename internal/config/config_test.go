package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	setCoreEnvEmpty(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.GeneratorMode != "auto" {
		t.Fatalf("GeneratorMode = %q, want %q", cfg.GeneratorMode, "auto")
	}
	if cfg.AnalysisTimeout != 25*time.Second {
		t.Fatalf("AnalysisTimeout = %v, want %v", cfg.AnalysisTimeout, 25*time.Second)
	}
	if cfg.DefaultSpeechRate != 0.75 {
		t.Fatalf("DefaultSpeechRate = %v, want 0.75", cfg.DefaultSpeechRate)
	}
	if cfg.SpeechLocale != "th-TH" {
		t.Fatalf("SpeechLocale = %q, want %q", cfg.SpeechLocale, "th-TH")
	}
	if cfg.AnalyzerHTTPURL != "" {
		t.Fatalf("AnalyzerHTTPURL = %q, want empty default", cfg.AnalyzerHTTPURL)
	}
}

func TestLoadUsesExplicitValues(t *testing.T) {
	setCoreEnvEmpty(t)
	t.Setenv("ANALYZER_MODE", "http")
	t.Setenv("ANALYZER_HTTP_URL", "http://localhost:7777/api/analyze")
	t.Setenv("ANALYSIS_TIMEOUT", "3s")
	t.Setenv("SPEECH_DEFAULT_RATE", "1.2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.AnalyzerHTTPURL != "http://localhost:7777/api/analyze" {
		t.Fatalf("AnalyzerHTTPURL = %q, want explicit value", cfg.AnalyzerHTTPURL)
	}
	if cfg.AnalysisTimeout != 3*time.Second {
		t.Fatalf("AnalysisTimeout = %v, want 3s", cfg.AnalysisTimeout)
	}
	if cfg.DefaultSpeechRate != 1.2 {
		t.Fatalf("DefaultSpeechRate = %v, want 1.2", cfg.DefaultSpeechRate)
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"ANALYZER_MODE":       "magic",
		"NARRATION_MODE":      "smoke-signals",
		"LIVE_BACKEND":        "carrier-pigeon",
		"SPEECH_DEFAULT_RATE": "2.5",
		"ANALYSIS_TIMEOUT":    "soon",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			setCoreEnvEmpty(t)
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatalf("Load() with %s=%q expected error", key, value)
			}
		})
	}
}

func TestCredentialEnvKeys(t *testing.T) {
	if got := CredentialEnvKeys("openai"); len(got) != 1 || got[0] != "OPENAI_API_KEY" {
		t.Fatalf("CredentialEnvKeys(openai) = %v", got)
	}
	if got := CredentialEnvKeys("gemini"); got[0] != "GEMINI_API_KEY" {
		t.Fatalf("CredentialEnvKeys(gemini)[0] = %q, want GEMINI_API_KEY", got[0])
	}
}

func setCoreEnvEmpty(t *testing.T) {
	t.Helper()
	keys := []string{
		"APP_BIND_ADDR",
		"APP_SHUTDOWN_TIMEOUT",
		"APP_SESSION_INACTIVITY_TIMEOUT",
		"APP_METRICS_NAMESPACE",
		"APP_ALLOW_ANY_ORIGIN",
		"LOG_LEVEL",
		"LOG_FORMAT",
		"ANALYZER_MODE",
		"ANALYZER_API_KEY",
		"ANALYZER_HTTP_URL",
		"ANALYSIS_TIMEOUT",
		"GEMINI_TEXT_MODEL",
		"OPENAI_MODEL",
		"CONNECTIVITY_PROBE_URL",
		"CONNECTIVITY_TIMEOUT",
		"CONNECTIVITY_CACHE_TTL",
		"LIVE_BACKEND",
		"LIVE_MODEL",
		"LIVE_VOICE",
		"NARRATION_MODE",
		"SPEECH_LOCALE",
		"SPEECH_DEFAULT_RATE",
		"OPENAI_TTS_MODEL",
		"OPENAI_TTS_VOICE",
		"DATABASE_URL",
		"PREFERENCES_PATH",
		"KEYRING_SERVICE",
	}
	for _, key := range keys {
		t.Setenv(key, "")
	}
}
