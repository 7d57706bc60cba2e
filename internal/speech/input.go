package speech

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"github.com/rs/zerolog"
)

// Recognizer is a continuous speech recognition engine. Results arrive through
// Input.Handle rather than a return value.
type Recognizer interface {
	Start(ctx context.Context, locale string) error
	Stop() error
}

type EventKind string

const (
	EventResult EventKind = "result"
	EventError  EventKind = "error"
	EventEnd    EventKind = "end"
)

// Result is one recognition hypothesis.
type Result struct {
	Transcript string `json:"transcript"`
	Final      bool   `json:"final"`
}

// Event is a single recognizer callback.
type Event struct {
	Kind    EventKind
	Results []Result
	Code    string
}

type InputConfig struct {
	Recognizer Recognizer
	Locale     string
	// OnTranscript receives the accumulated text plus any interim hypothesis.
	OnTranscript func(text string)
	// OnCommit receives the final text once recognition ends.
	OnCommit func(text string)
	OnError  func(err error)
	OnActive func(active bool)
	Logger   zerolog.Logger
}

// Input accumulates final results from a continuous recognizer.
type Input struct {
	cfg InputConfig
	log zerolog.Logger

	mu          sync.Mutex
	active      bool
	accumulated string
}

func NewInput(cfg InputConfig) *Input {
	if cfg.Locale == "" {
		cfg.Locale = "th-TH"
	}
	return &Input{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "speech_input").Logger(),
	}
}

func (in *Input) Active() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.active
}

// Start begins a fresh dictation.
func (in *Input) Start(ctx context.Context) error {
	return in.start(ctx, "")
}

// Toggle stops an active dictation, or starts one seeded with current.
func (in *Input) Toggle(ctx context.Context, current string) error {
	if in.Active() {
		in.Stop()
		return nil
	}
	return in.start(ctx, current)
}

func (in *Input) start(ctx context.Context, seed string) error {
	if in.cfg.Recognizer == nil {
		in.fail(ErrUnsupported)
		return ErrUnsupported
	}
	in.mu.Lock()
	if in.active {
		in.mu.Unlock()
		return nil
	}
	in.active = true
	in.accumulated = seed
	in.mu.Unlock()

	if err := in.cfg.Recognizer.Start(ctx, in.cfg.Locale); err != nil {
		in.mu.Lock()
		in.active = false
		in.mu.Unlock()
		in.fail(err)
		return err
	}
	if in.cfg.OnActive != nil {
		in.cfg.OnActive(true)
	}
	return nil
}

// Stop asks the recognizer to finish; the commit happens on its end event.
func (in *Input) Stop() {
	if !in.Active() || in.cfg.Recognizer == nil {
		return
	}
	if err := in.cfg.Recognizer.Stop(); err != nil {
		in.log.Debug().Err(err).Msg("recognizer stop")
	}
}

// Handle is the single entry point for recognizer callbacks.
func (in *Input) Handle(ev Event) {
	switch ev.Kind {
	case EventResult:
		in.handleResults(ev.Results)
	case EventError:
		// An error always ends the dictation; a later end event is a no-op.
		in.Stop()
		in.finish()
		in.fail(RecognitionError(ev.Code))
	case EventEnd:
		in.finish()
	}
}

func (in *Input) handleResults(results []Result) {
	in.mu.Lock()
	if !in.active {
		in.mu.Unlock()
		return
	}
	var interim string
	for _, r := range results {
		t := strings.TrimSpace(r.Transcript)
		if t == "" {
			continue
		}
		if r.Final {
			in.accumulated = joinSpaced(in.accumulated, t)
		} else {
			interim = joinSpaced(interim, t)
		}
	}
	live := joinSpaced(in.accumulated, interim)
	in.mu.Unlock()

	if in.cfg.OnTranscript != nil {
		in.cfg.OnTranscript(live)
	}
}

// finish commits the accumulated text and marks the session stopped.
func (in *Input) finish() {
	in.mu.Lock()
	if !in.active {
		in.mu.Unlock()
		return
	}
	in.active = false
	text := strings.TrimRightFunc(in.accumulated, unicode.IsSpace)
	in.accumulated = ""
	in.mu.Unlock()

	if in.cfg.OnCommit != nil {
		in.cfg.OnCommit(text)
	}
	if in.cfg.OnActive != nil {
		in.cfg.OnActive(false)
	}
}

func (in *Input) fail(err error) {
	in.log.Warn().Err(err).Msg("speech recognition error")
	if in.cfg.OnError != nil {
		in.cfg.OnError(err)
	}
}

func joinSpaced(acc, next string) string {
	switch {
	case next == "":
		return acc
	case acc == "" || strings.HasSuffix(acc, " "):
		return acc + next
	default:
		return acc + " " + next
	}
}
