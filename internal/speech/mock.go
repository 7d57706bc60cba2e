package speech

import (
	"context"
	"sync"
	"time"
)

// MockSynthesizer records utterances instead of speaking them.
type MockSynthesizer struct {
	VoiceList []Voice
	Delay     time.Duration
	Fail      func(Utterance) error

	mu       sync.Mutex
	spoken   []Utterance
	canceled int
}

func NewMockSynthesizer(voices ...Voice) *MockSynthesizer {
	return &MockSynthesizer{VoiceList: voices}
}

func (m *MockSynthesizer) Voices(context.Context) ([]Voice, error) {
	return append([]Voice(nil), m.VoiceList...), nil
}

func (m *MockSynthesizer) Speak(ctx context.Context, u Utterance) error {
	m.mu.Lock()
	m.spoken = append(m.spoken, u)
	m.mu.Unlock()

	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if m.Fail != nil {
		return m.Fail(u)
	}
	return nil
}

func (m *MockSynthesizer) Cancel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.canceled++
}

func (m *MockSynthesizer) Spoken() []Utterance {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Utterance(nil), m.spoken...)
}

func (m *MockSynthesizer) Canceled() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canceled
}
