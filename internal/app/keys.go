package app

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ent0n29/symptomcheck/internal/analysis"
	"github.com/ent0n29/symptomcheck/internal/config"
	"github.com/ent0n29/symptomcheck/internal/credentials"
	"github.com/ent0n29/symptomcheck/internal/prefs"
)

// KeyResolvers builds the ordered credential chains for one device.
type KeyResolvers struct {
	Config    config.Config
	Store     prefs.Store
	Generator string
	// Keychain, when set, is consulted after the device key. Terminal clients use it.
	Keychain  *credentials.Keychain
	Logger    zerolog.Logger
}

// Analyzer resolves the text backend key: configured key, the device's stored
// key, the keychain, the build-time key, then the backend's environment variables.
func (k KeyResolvers) Analyzer(deviceID string) analysis.KeyResolver {
	return k.chain(deviceID, strings.TrimSpace(k.Config.AnalyzerAPIKey), config.CredentialEnvKeys(k.Generator))
}

// Live resolves the Gemini key for the realtime voice backend. The configured
// analyzer key only counts when the analyzer is Gemini as well.
func (k KeyResolvers) Live(deviceID string) *credentials.Resolver {
	static := ""
	if k.Generator == "gemini" {
		static = strings.TrimSpace(k.Config.AnalyzerAPIKey)
	}
	return k.chain(deviceID, static, config.CredentialEnvKeys("gemini"))
}

func (k KeyResolvers) chain(deviceID, static string, envKeys []string) *credentials.Resolver {
	var providers []credentials.Provider
	if static != "" {
		providers = append(providers, credentials.Static(static))
	}
	if k.Store != nil && strings.TrimSpace(deviceID) != "" {
		store := k.Store
		providers = append(providers, credentials.Stored("preferences", func(ctx context.Context) (string, error) {
			return prefs.APIKey(ctx, store, deviceID)
		}))
	}
	if k.Keychain != nil {
		providers = append(providers, k.Keychain.Provider())
	}
	providers = append(providers, credentials.BuildTime(), credentials.Env(envKeys...))
	return credentials.NewResolver(k.Logger, providers...)
}
