package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains all runtime settings for the symptom-check service.
type Config struct {
	BindAddr                 string
	ShutdownTimeout          time.Duration
	SessionInactivityTimeout time.Duration
	MetricsNamespace         string

	AllowAnyOrigin bool

	LogLevel  string
	LogFormat string

	// GeneratorMode selects the online text backend: auto|gemini|openai|http|mock.
	GeneratorMode   string
	AnalyzerAPIKey  string
	GeminiTextModel string
	OpenAIModel     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	AnalyzerHTTPURL string
	AnalysisTimeout time.Duration

	ConnectivityProbeURL string
	ConnectivityTimeout  time.Duration
	ConnectivityCacheTTL time.Duration

	LiveBackend string
	LiveModel   string
	LiveVoice   string

	// NarrationMode selects the speech synthesizer: client|openai|mock.
	NarrationMode     string
	SpeechLocale      string
	OpenAITTSModel    string
	OpenAITTSVoice    string
	DefaultSpeechRate float64

	DatabaseURL     string
	PreferencesPath string

	KeyringService string
}

// Load reads .env (when present) and environment variables and applies safe defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		BindAddr:             envOrDefault("APP_BIND_ADDR", ":8080"),
		MetricsNamespace:     envOrDefault("APP_METRICS_NAMESPACE", "symptomcheck"),
		AllowAnyOrigin:       false,
		LogLevel:             envOrDefault("LOG_LEVEL", "info"),
		LogFormat:            envOrDefault("LOG_FORMAT", "json"),
		GeneratorMode:        envOrDefault("ANALYZER_MODE", "auto"),
		AnalyzerAPIKey:       stringsTrimSpace("ANALYZER_API_KEY"),
		GeminiTextModel:      envOrDefault("GEMINI_TEXT_MODEL", "gemini-2.5-flash"),
		OpenAIModel:          envOrDefault("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIAPIKey:         stringsTrimSpace("OPENAI_API_KEY"),
		OpenAIBaseURL:        stringsTrimSpace("OPENAI_BASE_URL"),
		AnalyzerHTTPURL:      stringsTrimSpace("ANALYZER_HTTP_URL"),
		ConnectivityProbeURL: envOrDefault("CONNECTIVITY_PROBE_URL", "https://generativelanguage.googleapis.com/"),
		LiveBackend:          envOrDefault("LIVE_BACKEND", "gemini"),
		LiveModel:            envOrDefault("LIVE_MODEL", "gemini-2.5-flash-native-audio-preview-09-2025"),
		LiveVoice:            envOrDefault("LIVE_VOICE", "Kore"),
		NarrationMode:        envOrDefault("NARRATION_MODE", "client"),
		SpeechLocale:         envOrDefault("SPEECH_LOCALE", "th-TH"),
		OpenAITTSModel:       envOrDefault("OPENAI_TTS_MODEL", "tts-1"),
		OpenAITTSVoice:       envOrDefault("OPENAI_TTS_VOICE", "nova"),
		DefaultSpeechRate:    0.75,
		DatabaseURL:          stringsTrimSpace("DATABASE_URL"),
		PreferencesPath:      envOrDefault("PREFERENCES_PATH", ".data/preferences.db"),
		KeyringService:       envOrDefault("KEYRING_SERVICE", "symptomcheck"),
		ShutdownTimeout:      15 * time.Second,
		// The online analysis request always races this deadline.
		AnalysisTimeout:          25 * time.Second,
		ConnectivityTimeout:      3 * time.Second,
		ConnectivityCacheTTL:     15 * time.Second,
		SessionInactivityTimeout: 10 * time.Minute,
	}
	var err error
	cfg.ShutdownTimeout, err = durationFromEnv("APP_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.SessionInactivityTimeout, err = durationFromEnv("APP_SESSION_INACTIVITY_TIMEOUT", cfg.SessionInactivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.AnalysisTimeout, err = durationFromEnv("ANALYSIS_TIMEOUT", cfg.AnalysisTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ConnectivityTimeout, err = durationFromEnv("CONNECTIVITY_TIMEOUT", cfg.ConnectivityTimeout)
	if err != nil {
		return Config{}, err
	}
	cfg.ConnectivityCacheTTL, err = durationFromEnv("CONNECTIVITY_CACHE_TTL", cfg.ConnectivityCacheTTL)
	if err != nil {
		return Config{}, err
	}
	cfg.AllowAnyOrigin, err = boolFromEnv("APP_ALLOW_ANY_ORIGIN", cfg.AllowAnyOrigin)
	if err != nil {
		return Config{}, err
	}
	cfg.DefaultSpeechRate, err = floatFromEnv("SPEECH_DEFAULT_RATE", cfg.DefaultSpeechRate)
	if err != nil {
		return Config{}, err
	}

	if cfg.SessionInactivityTimeout < 5*time.Second {
		return Config{}, fmt.Errorf("APP_SESSION_INACTIVITY_TIMEOUT must be at least 5s")
	}
	if cfg.AnalysisTimeout <= 0 {
		return Config{}, fmt.Errorf("ANALYSIS_TIMEOUT must be positive")
	}
	if cfg.DefaultSpeechRate < 0.5 || cfg.DefaultSpeechRate > 1.5 {
		return Config{}, fmt.Errorf("SPEECH_DEFAULT_RATE must be within [0.5, 1.5]")
	}
	switch strings.ToLower(cfg.GeneratorMode) {
	case "auto", "gemini", "openai", "http", "mock":
	default:
		return Config{}, fmt.Errorf("invalid ANALYZER_MODE: %q (expected auto|gemini|openai|http|mock)", cfg.GeneratorMode)
	}
	switch strings.ToLower(cfg.NarrationMode) {
	case "client", "openai", "mock":
	default:
		return Config{}, fmt.Errorf("invalid NARRATION_MODE: %q (expected client|openai|mock)", cfg.NarrationMode)
	}
	switch strings.ToLower(cfg.LiveBackend) {
	case "gemini", "mock":
	default:
		return Config{}, fmt.Errorf("invalid LIVE_BACKEND: %q (expected gemini|mock)", cfg.LiveBackend)
	}

	return cfg, nil
}

// CredentialEnvKeys lists the runtime environment variables consulted, in order,
// for the analyzer credential of the given generator mode.
func CredentialEnvKeys(mode string) []string {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "openai":
		return []string{"OPENAI_API_KEY"}
	case "http":
		return []string{"ANALYZER_HTTP_TOKEN"}
	default:
		return []string{"GEMINI_API_KEY", "GOOGLE_API_KEY", "API_KEY"}
	}
}

func envOrDefault(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func stringsTrimSpace(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func durationFromEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return d, nil
}

func floatFromEnv(key string, fallback float64) (float64, error) {
	v := stringsTrimSpace(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s parse error: %w", key, err)
	}
	return f, nil
}

func boolFromEnv(key string, fallback bool) (bool, error) {
	v := strings.ToLower(stringsTrimSpace(key))
	if v == "" {
		return fallback, nil
	}
	switch v {
	case "1", "true", "t", "yes", "y", "on":
		return true, nil
	case "0", "false", "f", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("%s parse error: expected bool", key)
	}
}
