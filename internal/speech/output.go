package speech

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ent0n29/symptomcheck/internal/observability"
	"github.com/ent0n29/symptomcheck/internal/prefs"
)

// Voice is one synthesizer voice.
type Voice struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Locale  string `json:"locale"`
	Default bool   `json:"default,omitempty"`
}

// Utterance is a single chunk handed to a synthesizer.
type Utterance struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Voice  Voice   `json:"voice"`
	Rate   float64 `json:"rate"`
	Locale string  `json:"locale"`
}

// Synthesizer speaks one utterance at a time. Speak blocks until playback
// completes, fails, or ctx ends.
type Synthesizer interface {
	Voices(ctx context.Context) ([]Voice, error)
	Speak(ctx context.Context, u Utterance) error
}

// Canceler is implemented by synthesizers that can cut the current utterance short.
type Canceler interface {
	Cancel()
}

type QueueConfig struct {
	Synthesizer Synthesizer
	Locale      string
	// Preferences supplies rate and voice at the start of every narration.
	Preferences func(ctx context.Context) prefs.VoicePreferences
	OnSpeaking  func(speaking bool)
	Logger      zerolog.Logger
	Metrics     *observability.Metrics
}

// Queue narrates text chunk by chunk with at most one narration in flight.
type Queue struct {
	cfg QueueConfig
	log zerolog.Logger

	mu         sync.Mutex
	generation uint64
	speaking   bool
	cancel     context.CancelFunc
	done       chan struct{}
}

func NewQueue(cfg QueueConfig) *Queue {
	if cfg.Locale == "" {
		cfg.Locale = "th-TH"
	}
	return &Queue{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "speech_output").Logger(),
	}
}

// Speak cancels any current narration and starts narrating text in the
// background. Text that is empty after sanitizing is a no-op.
func (q *Queue) Speak(ctx context.Context, text string) {
	q.Stop()

	chunks := Chunk(Sanitize(text), MaxChunkRunes)
	if len(chunks) == 0 || q.cfg.Synthesizer == nil {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	q.mu.Lock()
	q.generation++
	gen := q.generation
	q.speaking = true
	q.cancel = cancel
	q.done = done
	q.mu.Unlock()

	q.notify(true)
	go q.play(runCtx, gen, chunks, done)
}

// Stop cancels the current narration. At most the chunk already handed to
// the synthesizer keeps playing, and only if the synthesizer cannot cancel.
func (q *Queue) Stop() {
	q.mu.Lock()
	wasSpeaking := q.speaking
	q.generation++
	q.speaking = false
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	q.mu.Unlock()

	if !wasSpeaking {
		return
	}
	if c, ok := q.cfg.Synthesizer.(Canceler); ok {
		c.Cancel()
	}
	q.notify(false)
}

func (q *Queue) Speaking() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.speaking
}

// Wait blocks until the most recent narration goroutine exits.
func (q *Queue) Wait() {
	q.mu.Lock()
	done := q.done
	q.mu.Unlock()
	if done != nil {
		<-done
	}
}

func (q *Queue) current(gen uint64) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.generation == gen
}

func (q *Queue) play(ctx context.Context, gen uint64, chunks []string, done chan struct{}) {
	defer close(done)

	p := prefs.VoicePreferences{Rate: prefs.DefaultSpeechRate}
	if q.cfg.Preferences != nil {
		p = q.cfg.Preferences(ctx)
	}
	voice := q.selectVoice(ctx, p.VoiceID)

	for i, text := range chunks {
		if !q.current(gen) {
			q.cfg.Metrics.ObserveNarrationChunk("skipped")
			return
		}
		err := q.cfg.Synthesizer.Speak(ctx, Utterance{
			ID:     uuid.NewString(),
			Text:   text,
			Voice:  voice,
			Rate:   prefs.ClampRate(p.Rate),
			Locale: q.cfg.Locale,
		})
		if err != nil {
			q.cfg.Metrics.ObserveNarrationChunk("error")
			q.log.Debug().Err(err).Int("chunk", i).Msg("utterance failed")
			continue
		}
		q.cfg.Metrics.ObserveNarrationChunk("spoken")
	}

	q.mu.Lock()
	finished := q.generation == gen
	if finished {
		q.speaking = false
		q.cancel = nil
	}
	q.mu.Unlock()
	if finished {
		q.notify(false)
	}
}

func (q *Queue) selectVoice(ctx context.Context, preferred string) Voice {
	voices, err := q.cfg.Synthesizer.Voices(ctx)
	if err != nil {
		q.log.Debug().Err(err).Msg("list voices")
		return Voice{}
	}
	return SelectVoice(voices, preferred, q.cfg.Locale)
}

func (q *Queue) notify(speaking bool) {
	if q.cfg.OnSpeaking != nil {
		q.cfg.OnSpeaking(speaking)
	}
}

// SelectVoice picks the preferred voice when available, else the first voice
// whose language matches locale, else the zero Voice (engine default).
func SelectVoice(voices []Voice, preferred, locale string) Voice {
	if preferred = strings.TrimSpace(preferred); preferred != "" {
		for _, v := range voices {
			if v.ID == preferred || v.Name == preferred {
				return v
			}
		}
	}
	lang := language(locale)
	for _, v := range voices {
		if strings.EqualFold(v.Locale, locale) {
			return v
		}
	}
	for _, v := range voices {
		if lang != "" && language(v.Locale) == lang {
			return v
		}
	}
	return Voice{}
}

func language(locale string) string {
	locale = strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(locale, "-_"); i >= 0 {
		return locale[:i]
	}
	return locale
}
