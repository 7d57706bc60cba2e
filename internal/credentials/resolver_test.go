package credentials

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestResolverOrder(t *testing.T) {
	t.Setenv("TEST_ANALYZER_KEY", "env-key")
	prev := BuildKey
	BuildKey = "build-key"
	t.Cleanup(func() { BuildKey = prev })

	stored := ""
	r := NewResolver(zerolog.Nop(),
		Static(""),
		Stored("prefs", func(context.Context) (string, error) { return stored, nil }),
		BuildTime(),
		Env("TEST_ANALYZER_KEY"),
	)

	key, src, ok := r.Resolve(context.Background())
	require.True(t, ok)
	assert.Equal(t, "build-key", key)
	assert.Equal(t, "build", src)

	stored = "  user-key \n"
	key, src, ok = r.Resolve(context.Background())
	require.True(t, ok)
	assert.Equal(t, "user-key", key)
	assert.Equal(t, "prefs", src)

	BuildKey = ""
	stored = ""
	key, src, _ = r.Resolve(context.Background())
	assert.Equal(t, "env-key", key)
	assert.Equal(t, "env", src)
}

func TestResolverStaticWins(t *testing.T) {
	r := NewResolver(zerolog.Nop(),
		Static(" configured "),
		Stored("prefs", func(context.Context) (string, error) { return "user", nil }),
	)
	key, src, ok := r.Resolve(context.Background())
	require.True(t, ok)
	assert.Equal(t, "configured", key)
	assert.Equal(t, "static", src)
}

func TestResolverAbsentNeverFails(t *testing.T) {
	t.Setenv("TEST_EMPTY_KEY", "")
	prev := BuildKey
	BuildKey = ""
	t.Cleanup(func() { BuildKey = prev })

	r := NewResolver(zerolog.Nop(),
		Static(""),
		Stored("prefs", func(context.Context) (string, error) { return "", errors.New("storage offline") }),
		Provider{Name: "nil"},
		BuildTime(),
		Env("TEST_EMPTY_KEY"),
	)
	_, _, ok := r.Resolve(context.Background())
	assert.False(t, ok)

	var nilResolver *Resolver
	_, _, ok = nilResolver.Resolve(context.Background())
	assert.False(t, ok)
}

func TestKeychainRoundTrip(t *testing.T) {
	keyring.MockInit()
	k := NewKeychain("symptomcheck-test")
	ctx := context.Background()

	v, err := k.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, v)

	require.NoError(t, k.Set(ctx, " secret "))
	v, err = k.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "secret", v)

	r := NewResolver(zerolog.Nop(), k.Provider())
	key, src, ok := r.Resolve(ctx)
	require.True(t, ok)
	assert.Equal(t, "secret", key)
	assert.Equal(t, "keychain", src)

	require.NoError(t, k.Delete(ctx))
	require.NoError(t, k.Delete(ctx))
	assert.Error(t, k.Set(ctx, "  "))
}
