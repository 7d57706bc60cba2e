package prefs

import (
	"context"
	"errors"
)

// Well-known preference keys.
const (
	KeySpeechRate  = "speech_rate"
	KeySpeechVoice = "speech_voice"
	KeyAPIKey      = "api_key"
)

var ErrNotFound = errors.New("preference not found")

// Store is a durable string-keyed value store, namespaced per device.
type Store interface {
	Get(ctx context.Context, deviceID, key string) (string, error)
	Set(ctx context.Context, deviceID, key, value string) error
	Delete(ctx context.Context, deviceID, key string) error
	All(ctx context.Context, deviceID string) (map[string]string, error)
	Mode() string
	Close() error
}
