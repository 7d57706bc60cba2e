// Package credentials resolves the analyzer API key from an ordered list of
// sources. Resolution is read-only and never fails: absence is a valid answer.
package credentials

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/ent0n29/symptomcheck/internal/policy"
)

// BuildKey is injected at link time:
//
//	go build -ldflags "-X github.com/ent0n29/symptomcheck/internal/credentials.BuildKey=..."
var BuildKey string

// Provider returns a candidate key. An empty string or an error means "try the next one".
type Provider struct {
	Name  string
	Fetch func(ctx context.Context) (string, error)
}

// Resolver evaluates providers lazily in order; the first non-empty trimmed value wins.
type Resolver struct {
	providers []Provider
	log       zerolog.Logger
}

func NewResolver(log zerolog.Logger, providers ...Provider) *Resolver {
	return &Resolver{
		providers: providers,
		log:       log.With().Str("component", "credentials").Logger(),
	}
}

// Resolve returns the key and the name of the provider that supplied it.
func (r *Resolver) Resolve(ctx context.Context) (key, source string, ok bool) {
	if r == nil {
		return "", "", false
	}
	for _, p := range r.providers {
		if p.Fetch == nil {
			continue
		}
		v, err := p.Fetch(ctx)
		if err != nil {
			r.log.Debug().Err(err).Str("provider", p.Name).Msg("credential source unavailable")
			continue
		}
		if v = strings.TrimSpace(v); v != "" {
			r.log.Debug().Str("provider", p.Name).Str("key", policy.MaskSecret(v)).Msg("credential resolved")
			return v, p.Name, true
		}
	}
	return "", "", false
}

// Static serves a key fixed at startup (flag or config file).
func Static(key string) Provider {
	return Provider{Name: "static", Fetch: func(context.Context) (string, error) { return key, nil }}
}

// Stored reads a user-supplied key persisted on the device.
func Stored(name string, get func(ctx context.Context) (string, error)) Provider {
	return Provider{Name: name, Fetch: get}
}

// BuildTime serves BuildKey.
func BuildTime() Provider {
	return Provider{Name: "build", Fetch: func(context.Context) (string, error) { return BuildKey, nil }}
}

// Env reads the first non-empty variable among keys at resolve time.
func Env(keys ...string) Provider {
	return Provider{Name: "env", Fetch: func(context.Context) (string, error) {
		for _, k := range keys {
			if v := strings.TrimSpace(os.Getenv(k)); v != "" {
				return v, nil
			}
		}
		return "", nil
	}}
}
