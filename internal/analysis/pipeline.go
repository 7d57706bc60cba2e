package analysis

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ent0n29/symptomcheck/internal/observability"
	"github.com/ent0n29/symptomcheck/internal/offline"
	"github.com/ent0n29/symptomcheck/internal/policy"
	"github.com/ent0n29/symptomcheck/internal/reliability"
	"github.com/ent0n29/symptomcheck/internal/report"
)

const DefaultTimeout = 25 * time.Second

// NarrationIntro is spoken before the raw analysis text.
const NarrationIntro = "ผลการวิเคราะห์อาการเบื้องต้นของคุณมีดังนี้"

type Options struct {
	Generator    Generator
	Keys         KeyResolver
	Connectivity Connectivity
	// CredentialOptional lets keyless generators run when no credential resolves.
	CredentialOptional bool
	Timeout            time.Duration
	Narrator           Narrator
	OnResult           func(Outcome)
	Logger             zerolog.Logger
	Metrics            *observability.Metrics
}

// Pipeline drives one client's confirm-then-analyze flow.
type Pipeline struct {
	opts Options
	log  zerolog.Logger

	mu     sync.Mutex
	state  State
	text   string
	runID  string
	cancel context.CancelFunc
	last   *Outcome
}

func NewPipeline(opts Options) *Pipeline {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	return &Pipeline{
		opts:  opts,
		log:   opts.Logger.With().Str("component", "analysis").Logger(),
		state: StateIdle,
	}
}

// Submit validates text and moves to awaiting_confirmation.
func (p *Pipeline) Submit(text string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == StateRunning {
		return ErrRunning
	}
	if strings.TrimSpace(text) == "" {
		p.state = StateIdle
		return ErrEmptySymptoms
	}
	p.text = text
	p.state = StateAwaitingConfirmation
	return nil
}

// Cancel abandons a pending confirmation. It reports whether anything changed.
func (p *Pipeline) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateAwaitingConfirmation {
		return false
	}
	p.state = StateIdle
	return true
}

// Confirm runs the pending analysis to completion. The outcome is always
// usable: online failures degrade to the offline engine.
func (p *Pipeline) Confirm(ctx context.Context) (Outcome, error) {
	p.mu.Lock()
	if p.state != StateAwaitingConfirmation {
		state := p.state
		p.mu.Unlock()
		if state == StateRunning {
			return Outcome{}, ErrRunning
		}
		return Outcome{}, ErrNotAwaitingConfirmation
	}
	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	p.state = StateRunning
	p.runID = runID
	p.cancel = cancel
	text := p.text
	p.mu.Unlock()
	defer cancel()

	out := p.execute(runCtx, runID, text)

	p.mu.Lock()
	if p.runID != runID {
		p.mu.Unlock()
		p.log.Debug().Str("run_id", runID).Msg("discarding superseded analysis run")
		return out, context.Canceled
	}
	p.state = out.State()
	p.last = &out
	p.cancel = nil
	p.mu.Unlock()

	if p.opts.OnResult != nil {
		p.opts.OnResult(out)
	}
	if p.opts.Narrator != nil {
		p.opts.Narrator.Speak(context.WithoutCancel(ctx), NarrationIntro+"\n"+out.Raw)
	}
	return out, nil
}

// Reset aborts any running analysis and returns to idle. Results of the
// aborted run are discarded.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
	p.runID = ""
	p.state = StateIdle
}

func (p *Pipeline) Snapshot() Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := Snapshot{State: p.state, Text: p.text}
	if p.last != nil {
		last := *p.last
		snap.Last = &last
	}
	return snap
}

// Run analyzes text without touching pipeline state, narration or callbacks.
func (p *Pipeline) Run(ctx context.Context, text string) (Outcome, error) {
	if strings.TrimSpace(text) == "" {
		return Outcome{}, ErrEmptySymptoms
	}
	return p.execute(ctx, uuid.NewString(), text), nil
}

func (p *Pipeline) execute(ctx context.Context, runID, text string) Outcome {
	start := time.Now()
	log := p.log.With().Str("run_id", runID).Int("symptom_chars", utf8.RuneCountInString(text)).Logger()
	log.Debug().Str("symptoms", policy.Excerpt(text, 80)).Msg("analysis started")

	raw, reason := p.online(ctx, log, text)
	source := SourceOnline
	if reason != ReasonOK {
		source = SourceOffline
		raw = offline.Analyze(text)
	}

	out := Outcome{
		RunID:    runID,
		Result:   report.Parse(raw),
		Raw:      raw,
		Source:   source,
		Reason:   reason,
		Duration: time.Since(start),
	}
	p.opts.Metrics.ObserveAnalysis(string(source), string(reason), out.Duration)
	log.Info().Str("source", string(source)).Str("reason", string(reason)).Dur("duration", out.Duration).Msg("analysis complete")
	return out
}

type generated struct {
	text string
	err  error
}

func (p *Pipeline) online(ctx context.Context, log zerolog.Logger, text string) (string, Reason) {
	if p.opts.Generator == nil {
		return "", ReasonNoCredential
	}
	var key string
	if p.opts.Keys != nil {
		k, source, ok := p.opts.Keys.Resolve(ctx)
		if ok {
			key = k
			log.Debug().Str("credential_source", source).Msg("credential resolved")
		}
	}
	if key == "" && !p.opts.CredentialOptional {
		return "", ReasonNoCredential
	}
	if p.opts.Connectivity != nil && !p.opts.Connectivity.Online(ctx) {
		return "", ReasonOffline
	}

	reqCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Buffered so a request that loses the race can still complete its send.
	done := make(chan generated, 1)
	start := time.Now()
	go func() {
		t, err := p.opts.Generator.Generate(reqCtx, key, text)
		done <- generated{text: t, err: err}
	}()

	timer := time.NewTimer(p.opts.Timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		p.opts.Metrics.ObserveStage("analysis_online", time.Since(start))
		if res.err != nil {
			code := reliability.Classify(res.err)
			p.opts.Metrics.ObserveBackendError(p.opts.Generator.Name(), string(code))
			log.Warn().Err(res.err).Str("code", string(code)).Msg("online analysis failed")
			return "", ReasonError
		}
		if strings.TrimSpace(res.text) == "" {
			return "", ReasonEmpty
		}
		return res.text, ReasonOK
	case <-timer.C:
		p.opts.Metrics.ObserveBackendError(p.opts.Generator.Name(), string(reliability.CodeTimeout))
		log.Warn().Dur("timeout", p.opts.Timeout).Msg("online analysis timed out")
		return "", ReasonTimeout
	case <-ctx.Done():
		return "", ReasonError
	}
}
