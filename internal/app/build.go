package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ent0n29/symptomcheck/internal/assistant"
	"github.com/ent0n29/symptomcheck/internal/config"
	"github.com/ent0n29/symptomcheck/internal/connectivity"
	"github.com/ent0n29/symptomcheck/internal/generator"
	"github.com/ent0n29/symptomcheck/internal/httpapi"
	"github.com/ent0n29/symptomcheck/internal/observability"
	"github.com/ent0n29/symptomcheck/internal/prefs"
	"github.com/ent0n29/symptomcheck/internal/realtime"
	"github.com/ent0n29/symptomcheck/internal/session"
)

type BuildResult struct {
	Config      config.Config
	API         *httpapi.Server
	Sessions    *session.Manager
	Assistant   *assistant.Assistant
	Preferences prefs.Store
	Generator   generator.Generator
	Metrics     *observability.Metrics

	// Cleanup should be called on shutdown to release external resources (DB handles).
	Cleanup func() error
}

func Build(ctx context.Context, cfg config.Config, log zerolog.Logger) (*BuildResult, error) {
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := prefs.NewStore(ctx, cfg.DatabaseURL, cfg.PreferencesPath)
	if err != nil {
		return nil, fmt.Errorf("preferences store init failed: %w", err)
	}

	gen, err := generator.New(generator.Config{
		Mode:          cfg.GeneratorMode,
		GeminiModel:   cfg.GeminiTextModel,
		OpenAIModel:   cfg.OpenAIModel,
		OpenAIBaseURL: cfg.OpenAIBaseURL,
		HTTPURL:       cfg.AnalyzerHTTPURL,
	})
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("generator init failed: %w", err)
	}
	log.Info().
		Str("generator", gen.Name()).
		Str("preferences", store.Mode()).
		Str("narration", cfg.NarrationMode).
		Str("live_backend", cfg.LiveBackend).
		Msg("backends resolved")

	keys := KeyResolvers{Config: cfg, Store: store, Generator: gen.Name(), Logger: log}
	probe := connectivity.NewProbe(cfg.ConnectivityProbeURL, cfg.ConnectivityTimeout, cfg.ConnectivityCacheTTL)

	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	sessions.SetExpireHook(func(_ *session.Session) {
		metrics.ObserveSessionEvent("expired")
		metrics.ActiveSessions.Set(float64(sessions.ActiveCount()))
	})

	asst := assistant.New(assistant.Options{
		Sessions:           sessions,
		Preferences:        store,
		Generator:          gen,
		CredentialOptional: !generator.RequiresCredential(gen),
		Keys:               keys.Analyzer,
		Connectivity:       probe,
		AnalysisTimeout:    cfg.AnalysisTimeout,
		SpeechLocale:       cfg.SpeechLocale,
		DefaultSpeechRate:  cfg.DefaultSpeechRate,
		NarrationMode:      cfg.NarrationMode,
		OpenAIAPIKey:       cfg.OpenAIAPIKey,
		OpenAIBaseURL:      cfg.OpenAIBaseURL,
		OpenAITTSModel:     cfg.OpenAITTSModel,
		OpenAITTSVoice:     cfg.OpenAITTSVoice,
		LiveBackend:        LiveBackendFactory(cfg, keys, log),
		LiveVoice:          cfg.LiveVoice,
		SystemInstruction:  generator.Persona,
		Logger:             log,
		Metrics:            metrics,
	})

	api := httpapi.New(httpapi.Deps{
		Config:       cfg,
		Sessions:     sessions,
		Assistant:    asst,
		Generator:    gen,
		Keys:         keys.Analyzer,
		Connectivity: probe,
		Preferences:  store,
		Metrics:      metrics,
		Logger:       log,
	})

	cleanup := func() error {
		var errs []string
		if err := store.Close(); err != nil {
			errs = append(errs, err.Error())
		}
		if len(errs) > 0 {
			return fmt.Errorf("%s", strings.Join(errs, "; "))
		}
		return nil
	}

	return &BuildResult{
		Config:      cfg,
		API:         api,
		Sessions:    sessions,
		Assistant:   asst,
		Preferences: store,
		Generator:   gen,
		Metrics:     metrics,
		Cleanup:     cleanup,
	}, nil
}

// LiveBackendFactory returns the per-device realtime backend constructor.
func LiveBackendFactory(cfg config.Config, keys KeyResolvers, log zerolog.Logger) func(deviceID string) realtime.Backend {
	if strings.EqualFold(strings.TrimSpace(cfg.LiveBackend), "mock") {
		return func(string) realtime.Backend { return &realtime.MockBackend{Echo: true} }
	}
	return func(deviceID string) realtime.Backend {
		resolver := keys.Live(deviceID)
		return realtime.NewGeminiBackend(cfg.LiveModel, func(ctx context.Context) (string, bool) {
			key, _, ok := resolver.Resolve(ctx)
			return key, ok
		}, log)
	}
}
