// Package assistant runs one client connection: the symptom analysis flow,
// dictation, narration and the realtime voice session, all multiplexed over
// the websocket message channels.
package assistant

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/symptomcheck/internal/analysis"
	"github.com/ent0n29/symptomcheck/internal/observability"
	"github.com/ent0n29/symptomcheck/internal/prefs"
	"github.com/ent0n29/symptomcheck/internal/protocol"
	"github.com/ent0n29/symptomcheck/internal/realtime"
	"github.com/ent0n29/symptomcheck/internal/session"
)

// Narration modes.
const (
	NarrationClient = "client"
	NarrationOpenAI = "openai"
	NarrationMock   = "mock"
)

const criticalSendTimeout = 600 * time.Millisecond

type Options struct {
	Sessions    *session.Manager
	Preferences prefs.Store

	Generator          analysis.Generator
	CredentialOptional bool
	// Keys builds the credential resolver for one device.
	Keys            func(deviceID string) analysis.KeyResolver
	Connectivity    analysis.Connectivity
	AnalysisTimeout time.Duration

	SpeechLocale      string
	DefaultSpeechRate float64
	NarrationMode     string
	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAITTSModel    string
	OpenAITTSVoice    string

	// LiveBackend builds the realtime backend for one connection.
	LiveBackend       func(deviceID string) realtime.Backend
	LiveVoice         string
	SystemInstruction string

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// Assistant serves websocket connections.
type Assistant struct {
	opts Options
	log  zerolog.Logger
}

func New(opts Options) *Assistant {
	if strings.TrimSpace(opts.SpeechLocale) == "" {
		opts.SpeechLocale = "th-TH"
	}
	if opts.DefaultSpeechRate <= 0 {
		opts.DefaultSpeechRate = prefs.DefaultSpeechRate
	}
	mode := strings.ToLower(strings.TrimSpace(opts.NarrationMode))
	if mode == NarrationOpenAI && strings.TrimSpace(opts.OpenAIAPIKey) == "" {
		opts.Logger.Warn().Msg("NARRATION_MODE=openai without OPENAI_API_KEY, narrating on the client")
		mode = NarrationClient
	}
	switch mode {
	case NarrationClient, NarrationOpenAI, NarrationMock:
	default:
		mode = NarrationClient
	}
	opts.NarrationMode = mode
	return &Assistant{
		opts: opts,
		log:  opts.Logger.With().Str("component", "assistant").Logger(),
	}
}

// RunConnection serves one websocket until inbound closes or ctx ends.
func (a *Assistant) RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error {
	c := a.newConn(ctx, s, outbound)
	defer c.close()

	c.sendInitialState()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			if a.opts.Sessions != nil {
				_ = a.opts.Sessions.Touch(s.ID)
			}
			c.handle(msg)
		}
	}
}

// send delivers msg, waiting briefly for critical messages and dropping
// interim ones when the outbound queue is full.
func (a *Assistant) send(ctx context.Context, outbound chan<- any, msg any) {
	msgType, critical := outboundMessageMeta(msg)
	if !critical {
		select {
		case outbound <- msg:
			a.opts.Metrics.ObserveWSMessage("outbound", msgType)
		default:
			a.opts.Metrics.ObserveSessionEvent("outbound_drop")
		}
		return
	}

	timer := time.NewTimer(criticalSendTimeout)
	defer timer.Stop()
	select {
	case outbound <- msg:
		a.opts.Metrics.ObserveWSMessage("outbound", msgType)
	case <-ctx.Done():
	case <-timer.C:
		a.opts.Metrics.ObserveSessionEvent("outbound_timeout_critical")
	}
}

func outboundMessageMeta(msg any) (msgType string, critical bool) {
	switch m := msg.(type) {
	case protocol.DictationText:
		return string(m.Type), m.Final
	case protocol.AnalysisState:
		return string(m.Type), true
	case protocol.AnalysisResult:
		return string(m.Type), true
	case protocol.ValidationError:
		return string(m.Type), true
	case protocol.DictationState:
		return string(m.Type), true
	case protocol.DictationError:
		return string(m.Type), true
	case protocol.RecognitionControl:
		return string(m.Type), true
	case protocol.NarrationChunk:
		return string(m.Type), true
	case protocol.NarrationCancel:
		return string(m.Type), true
	case protocol.VoiceState:
		return string(m.Type), true
	case protocol.AssistantAudio:
		return string(m.Type), true
	case protocol.AudioStop:
		return string(m.Type), true
	case protocol.ErrorEvent:
		return string(m.Type), true
	default:
		return "unknown", false
	}
}
