package prefs

import (
	"context"
	"errors"
	"math"
	"strconv"
	"strings"
)

const (
	MinSpeechRate     = 0.5
	MaxSpeechRate     = 1.5
	DefaultSpeechRate = 0.75
)

// VoicePreferences are the narration settings a device remembers.
type VoicePreferences struct {
	Rate    float64 `json:"rate"`
	VoiceID string  `json:"voice_id"`
}

// ClampRate bounds rate to [MinSpeechRate, MaxSpeechRate]; NaN yields the default.
func ClampRate(rate float64) float64 {
	if math.IsNaN(rate) {
		return DefaultSpeechRate
	}
	return math.Min(MaxSpeechRate, math.Max(MinSpeechRate, rate))
}

// LoadVoice reads voice preferences, substituting defaultRate for a missing or
// unparsable rate.
func LoadVoice(ctx context.Context, s Store, deviceID string, defaultRate float64) (VoicePreferences, error) {
	out := VoicePreferences{Rate: ClampRate(defaultRate)}
	all, err := s.All(ctx, deviceID)
	if err != nil {
		return out, err
	}
	if raw, ok := all[KeySpeechRate]; ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			out.Rate = ClampRate(f)
		}
	}
	out.VoiceID = strings.TrimSpace(all[KeySpeechVoice])
	return out, nil
}

// SaveVoice clamps and writes both values.
func SaveVoice(ctx context.Context, s Store, deviceID string, p VoicePreferences) (VoicePreferences, error) {
	p.Rate = ClampRate(p.Rate)
	p.VoiceID = strings.TrimSpace(p.VoiceID)
	if err := s.Set(ctx, deviceID, KeySpeechRate, strconv.FormatFloat(p.Rate, 'f', -1, 64)); err != nil {
		return p, err
	}
	if p.VoiceID == "" {
		return p, s.Delete(ctx, deviceID, KeySpeechVoice)
	}
	return p, s.Set(ctx, deviceID, KeySpeechVoice, p.VoiceID)
}

// APIKey returns the device's stored analyzer key, empty when unset.
func APIKey(ctx context.Context, s Store, deviceID string) (string, error) {
	v, err := s.Get(ctx, deviceID, KeyAPIKey)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}
