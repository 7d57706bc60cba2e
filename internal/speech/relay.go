package speech

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"
)

var (
	ErrNarrationCanceled = errors.New("narration canceled")
	ErrNarrationTimeout  = errors.New("narration acknowledgement timed out")
)

const (
	ackBaseTimeout = 5 * time.Second
	ackPerRune     = 250 * time.Millisecond
)

// ackTimeout bounds the wait for one utterance; slower rates get longer.
func ackTimeout(u Utterance) time.Duration {
	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}
	perRune := time.Duration(float64(ackPerRune) / rate)
	return ackBaseTimeout + time.Duration(utf8.RuneCountInString(u.Text))*perRune
}

// RelaySynthesizer delegates playback to a remote engine, typically the
// browser on the other end of a websocket, which acknowledges each utterance.
type RelaySynthesizer struct {
	send    func(Utterance) error
	cancel  func() error
	timeout func(Utterance) time.Duration

	mu      sync.Mutex
	voices  []Voice
	pending map[string]chan error
}

func NewRelaySynthesizer(send func(Utterance) error, cancel func() error) *RelaySynthesizer {
	return &RelaySynthesizer{
		send:    send,
		cancel:  cancel,
		timeout: ackTimeout,
		pending: make(map[string]chan error),
	}
}

// SetVoices replaces the voice list reported by the remote engine.
func (r *RelaySynthesizer) SetVoices(voices []Voice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.voices = append([]Voice(nil), voices...)
}

func (r *RelaySynthesizer) Voices(context.Context) ([]Voice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Voice(nil), r.voices...), nil
}

func (r *RelaySynthesizer) Speak(ctx context.Context, u Utterance) error {
	ch := make(chan error, 1)
	r.mu.Lock()
	r.pending[u.ID] = ch
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		delete(r.pending, u.ID)
		r.mu.Unlock()
	}()

	if err := r.send(u); err != nil {
		return err
	}
	timer := time.NewTimer(r.timeout(u))
	defer timer.Stop()
	select {
	case err := <-ch:
		return err
	case <-timer.C:
		return fmt.Errorf("%w: %s", ErrNarrationTimeout, u.ID)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Ack completes the utterance id. A non-empty errMsg marks it failed.
func (r *RelaySynthesizer) Ack(id, errMsg string) bool {
	r.mu.Lock()
	ch, ok := r.pending[id]
	r.mu.Unlock()
	if !ok {
		return false
	}
	var err error
	if errMsg != "" {
		err = errors.New(errMsg)
	}
	select {
	case ch <- err:
	default:
	}
	return true
}

// Cancel tells the remote engine to stop and fails every pending utterance.
func (r *RelaySynthesizer) Cancel() {
	if r.cancel != nil {
		_ = r.cancel()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ch := range r.pending {
		select {
		case ch <- ErrNarrationCanceled:
		default:
		}
	}
}
