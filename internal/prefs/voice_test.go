package prefs

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClampRate(t *testing.T) {
	cases := map[float64]float64{
		0.1:        MinSpeechRate,
		0.5:        0.5,
		0.75:       0.75,
		1.5:        1.5,
		3:          MaxSpeechRate,
		math.NaN(): DefaultSpeechRate,
	}
	for in, want := range cases {
		assert.Equal(t, want, ClampRate(in), "ClampRate(%v)", in)
	}
}

func TestLoadVoiceDefaults(t *testing.T) {
	s := NewInMemoryStore()
	p, err := LoadVoice(context.Background(), s, "dev", DefaultSpeechRate)
	require.NoError(t, err)
	assert.Equal(t, VoicePreferences{Rate: 0.75}, p)
}

func TestLoadVoiceIgnoresGarbageRate(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.Set(ctx, "dev", KeySpeechRate, "fast"))
	require.NoError(t, s.Set(ctx, "dev", KeySpeechVoice, " Kanya "))

	p, err := LoadVoice(ctx, s, "dev", 1.0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, p.Rate)
	assert.Equal(t, "Kanya", p.VoiceID)
}

func TestSaveVoiceClampsAndClearsVoice(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	saved, err := SaveVoice(ctx, s, "dev", VoicePreferences{Rate: 9, VoiceID: "Kanya"})
	require.NoError(t, err)
	assert.Equal(t, MaxSpeechRate, saved.Rate)

	p, err := LoadVoice(ctx, s, "dev", DefaultSpeechRate)
	require.NoError(t, err)
	assert.Equal(t, VoicePreferences{Rate: 1.5, VoiceID: "Kanya"}, p)

	_, err = SaveVoice(ctx, s, "dev", VoicePreferences{Rate: 0.6})
	require.NoError(t, err)
	p, err = LoadVoice(ctx, s, "dev", DefaultSpeechRate)
	require.NoError(t, err)
	assert.Equal(t, VoicePreferences{Rate: 0.6}, p)
}

func TestAPIKeyMissingIsEmpty(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	k, err := APIKey(ctx, s, "dev")
	require.NoError(t, err)
	assert.Empty(t, k)

	require.NoError(t, s.Set(ctx, "dev", KeyAPIKey, "abc"))
	k, err = APIKey(ctx, s, "dev")
	require.NoError(t, err)
	assert.Equal(t, "abc", k)
}
