package assistant

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/ent0n29/symptomcheck/internal/analysis"
	"github.com/ent0n29/symptomcheck/internal/audio"
	"github.com/ent0n29/symptomcheck/internal/prefs"
	"github.com/ent0n29/symptomcheck/internal/protocol"
	"github.com/ent0n29/symptomcheck/internal/realtime"
	"github.com/ent0n29/symptomcheck/internal/report"
	"github.com/ent0n29/symptomcheck/internal/session"
	"github.com/ent0n29/symptomcheck/internal/speech"
)

// conn is the per-websocket state. handle runs on the connection goroutine;
// callbacks from the pipeline, speech and voice components arrive on others.
type conn struct {
	a    *Assistant
	ctx  context.Context
	sess *session.Session
	out  chan<- any
	log  zerolog.Logger

	keys      analysis.KeyResolver
	pipeline  *analysis.Pipeline
	input     *speech.Input
	narration *speech.Queue
	relay     *speech.RelaySynthesizer
	narrOut   realtime.OutputContext
	devices   *realtime.RelayDevices
	voice     *realtime.Session

	mu   sync.Mutex
	text string

	wg sync.WaitGroup
}

func (a *Assistant) newConn(ctx context.Context, s *session.Session, out chan<- any) *conn {
	c := &conn{
		a:    a,
		ctx:  ctx,
		sess: s,
		out:  out,
		log:  a.log.With().Str("session_id", s.ID).Logger(),
	}
	if a.opts.Keys != nil {
		c.keys = a.opts.Keys(s.DeviceID)
	}

	c.narration = speech.NewQueue(speech.QueueConfig{
		Synthesizer: c.newSynthesizer(),
		Locale:      a.opts.SpeechLocale,
		Preferences: c.voicePreferences,
		Logger:      c.log,
		Metrics:     a.opts.Metrics,
	})

	c.pipeline = analysis.NewPipeline(analysis.Options{
		Generator:          a.opts.Generator,
		Keys:               c.keys,
		Connectivity:       a.opts.Connectivity,
		CredentialOptional: a.opts.CredentialOptional,
		Timeout:            a.opts.AnalysisTimeout,
		Narrator:           c.narration,
		OnResult:           c.onResult,
		Logger:             c.log,
		Metrics:            a.opts.Metrics,
	})

	c.input = speech.NewInput(speech.InputConfig{
		Recognizer:   relayRecognizer{c: c},
		Locale:       a.opts.SpeechLocale,
		OnTranscript: func(text string) { c.onDictation(text, false) },
		OnCommit:     func(text string) { c.onDictation(text, true) },
		OnError:      c.onDictationError,
		OnActive: func(active bool) {
			c.send(protocol.DictationState{Type: protocol.TypeDictationState, SessionID: s.ID, Active: active})
		},
		Logger: c.log,
	})

	c.devices = realtime.NewRelayDevices(
		func(chunk realtime.RelayChunk) error { return c.sendAudio(protocol.StreamVoice, chunk) },
		c.sendAudioStop,
	)
	var backend realtime.Backend
	if a.opts.LiveBackend != nil {
		backend = a.opts.LiveBackend(s.DeviceID)
	}
	c.voice = realtime.NewSession(realtime.Config{
		Backend:           backend,
		Devices:           c.devices,
		SystemInstruction: a.opts.SystemInstruction,
		Voice:             a.opts.LiveVoice,
		OnState:           c.onVoiceState,
		OnAnalysis:        c.onVoiceAnalysis,
		OnError:           c.onVoiceError,
		OnInterrupt: func() {
			if a.opts.Sessions != nil {
				_ = a.opts.Sessions.Interrupt(s.ID)
			}
		},
		Logger:  c.log,
		Metrics: a.opts.Metrics,
	})
	return c
}

func (c *conn) newSynthesizer() speech.Synthesizer {
	opts := c.a.opts
	switch opts.NarrationMode {
	case NarrationMock:
		return &speech.MockSynthesizer{}
	case NarrationOpenAI:
		devices := realtime.NewRelayDevices(
			func(chunk realtime.RelayChunk) error { return c.sendAudio(protocol.StreamNarration, chunk) },
			c.sendAudioStop,
		)
		out, err := devices.OpenOutput(c.ctx, audio.OutputSampleRate)
		if err == nil {
			c.narrOut = out
			return speech.NewOpenAISynthesizer(opts.OpenAIAPIKey, opts.OpenAIBaseURL, opts.OpenAITTSModel, opts.OpenAITTSVoice, realtime.PlaybackSink{Output: out})
		}
		c.log.Warn().Err(err).Msg("narration output unavailable, narrating on the client")
	}
	c.relay = speech.NewRelaySynthesizer(
		func(u speech.Utterance) error {
			c.send(protocol.NarrationChunk{
				Type:      protocol.TypeNarrationChunk,
				SessionID: c.sess.ID,
				ID:        u.ID,
				Text:      u.Text,
				VoiceID:   u.Voice.ID,
				Rate:      u.Rate,
				Locale:    u.Locale,
			})
			return nil
		},
		func() error {
			c.send(protocol.NarrationCancel{Type: protocol.TypeNarrationCancel, SessionID: c.sess.ID})
			return nil
		},
	)
	return c.relay
}

func (c *conn) send(msg any) {
	c.a.send(c.ctx, c.out, msg)
}

func (c *conn) sendInitialState() {
	c.send(protocol.AnalysisState{Type: protocol.TypeAnalysisState, SessionID: c.sess.ID, State: string(analysis.StateIdle)})
	c.send(protocol.DictationState{Type: protocol.TypeDictationState, SessionID: c.sess.ID})
	c.send(protocol.VoiceState{Type: protocol.TypeVoiceState, SessionID: c.sess.ID, State: string(c.voice.State())})
}

func (c *conn) handle(msg any) {
	switch m := msg.(type) {
	case protocol.SymptomText:
		c.setText(m.Text)
	case protocol.AnalysisSubmit:
		if m.Text != nil {
			c.setText(*m.Text)
		}
		c.submit()
	case protocol.AnalysisConfirm:
		c.confirm()
	case protocol.AnalysisCancel:
		if c.pipeline.Cancel() {
			c.sendAnalysisState(analysis.StateIdle)
		}
	case protocol.DictationToggle:
		if err := c.input.Toggle(c.ctx, c.currentText()); err != nil {
			c.log.Debug().Err(err).Msg("dictation toggle")
		}
	case protocol.RecognitionResult:
		results := make([]speech.Result, 0, len(m.Results))
		for _, r := range m.Results {
			results = append(results, speech.Result{Transcript: r.Transcript, Final: r.Final})
		}
		c.input.Handle(speech.Event{Kind: speech.EventResult, Results: results})
	case protocol.RecognitionError:
		c.input.Handle(speech.Event{Kind: speech.EventError, Code: m.Code})
	case protocol.RecognitionEnd:
		c.input.Handle(speech.Event{Kind: speech.EventEnd})
	case protocol.NarrationDone:
		if c.relay != nil && !c.relay.Ack(m.ID, m.Error) {
			c.log.Debug().Str("utterance_id", m.ID).Msg("ack for unknown utterance")
		}
	case protocol.NarrationStop:
		c.narration.Stop()
	case protocol.VoicesAvailable:
		if c.relay != nil {
			voices := make([]speech.Voice, 0, len(m.Voices))
			for _, v := range m.Voices {
				voices = append(voices, speech.Voice{ID: v.ID, Name: v.Name, Locale: v.Locale, Default: v.Default})
			}
			c.relay.SetVoices(voices)
		}
	case protocol.VoiceToggle:
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if err := c.voice.Toggle(c.ctx); err != nil {
				c.log.Debug().Err(err).Msg("voice toggle")
			}
		}()
	case protocol.MicFrame:
		pcm, err := audio.DecodeBase64(m.PCM16Base64)
		if err != nil {
			c.send(protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: c.sess.ID,
				Code:      "invalid_audio",
				Source:    "voice",
				Detail:    err.Error(),
			})
			return
		}
		c.devices.PushFrame(audio.PCM16ToFloat(pcm))
	default:
		c.log.Debug().Str("type", fmt.Sprintf("%T", msg)).Msg("ignoring message")
	}
}

func (c *conn) submit() {
	if err := c.pipeline.Submit(c.currentText()); err != nil {
		c.send(protocol.ValidationError{Type: protocol.TypeValidationError, SessionID: c.sess.ID, Message: analysis.UserMessage(err)})
		if errors.Is(err, analysis.ErrEmptySymptoms) {
			c.sendAnalysisState(analysis.StateIdle)
		}
		return
	}
	c.sendAnalysisState(analysis.StateAwaitingConfirmation)
}

func (c *conn) confirm() {
	if state := c.pipeline.Snapshot().State; state != analysis.StateAwaitingConfirmation {
		err := analysis.ErrNotAwaitingConfirmation
		if state == analysis.StateRunning {
			err = analysis.ErrRunning
		}
		c.send(protocol.ValidationError{Type: protocol.TypeValidationError, SessionID: c.sess.ID, Message: analysis.UserMessage(err)})
		return
	}
	c.input.Stop()
	c.sendAnalysisState(analysis.StateRunning)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if _, err := c.pipeline.Confirm(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.log.Debug().Err(err).Msg("analysis confirm")
		}
	}()
}

func (c *conn) onResult(out analysis.Outcome) {
	c.sendResult(out.RunID, out.Result, out.Raw, string(out.Source), string(out.Reason))
	c.sendAnalysisState(out.State())
}

func (c *conn) onVoiceAnalysis(a report.Analysis) {
	c.sendResult("", a, a.Markdown(), "voice", "")
}

func (c *conn) sendResult(runID string, a report.Analysis, raw, source, reason string) {
	blocks := report.Render(raw)
	c.send(protocol.AnalysisResult{
		Type:        protocol.TypeAnalysisResult,
		SessionID:   c.sess.ID,
		RunID:       runID,
		Symptoms:    a.Symptoms,
		Advice:      a.Advice,
		Precautions: a.Precautions,
		Blocks:      blocks,
		HTML:        report.HTML(blocks),
		Source:      source,
		Reason:      reason,
	})
	if c.a.opts.Sessions != nil {
		_ = c.a.opts.Sessions.RecordAnalysis(c.sess.ID)
	}
}

func (c *conn) sendAnalysisState(state analysis.State) {
	c.send(protocol.AnalysisState{Type: protocol.TypeAnalysisState, SessionID: c.sess.ID, State: string(state)})
}

func (c *conn) onDictation(text string, final bool) {
	c.setText(text)
	c.send(protocol.DictationText{Type: protocol.TypeDictationText, SessionID: c.sess.ID, Text: text, Final: final})
}

func (c *conn) onDictationError(err error) {
	c.send(protocol.DictationError{
		Type:      protocol.TypeDictationError,
		SessionID: c.sess.ID,
		Code:      speechErrorCode(err),
		Message:   speech.UserMessage(err),
	})
}

func (c *conn) onVoiceState(state realtime.State) {
	if c.a.opts.Sessions != nil {
		_ = c.a.opts.Sessions.SetVoiceState(c.sess.ID, string(state))
	}
	c.send(protocol.VoiceState{Type: protocol.TypeVoiceState, SessionID: c.sess.ID, State: string(state)})
}

func (c *conn) onVoiceError(err error) {
	c.send(protocol.ErrorEvent{
		Type:      protocol.TypeErrorEvent,
		SessionID: c.sess.ID,
		Code:      voiceErrorCode(err),
		Source:    "voice",
		Detail:    realtime.UserMessage(err),
	})
}

func (c *conn) sendAudio(stream string, chunk realtime.RelayChunk) error {
	c.send(protocol.AssistantAudio{
		Type:        protocol.TypeAssistantAudio,
		SessionID:   c.sess.ID,
		ID:          chunk.ID,
		Stream:      stream,
		PCM16Base64: audio.EncodeBase64(chunk.PCM),
		SampleRate:  chunk.SampleRate,
		StartAt:     chunk.StartAt,
	})
	return c.ctx.Err()
}

func (c *conn) sendAudioStop(id string) error {
	c.send(protocol.AudioStop{Type: protocol.TypeAudioStop, SessionID: c.sess.ID, ID: id})
	return nil
}

func (c *conn) voicePreferences(ctx context.Context) prefs.VoicePreferences {
	def := prefs.VoicePreferences{Rate: prefs.ClampRate(c.a.opts.DefaultSpeechRate)}
	if c.a.opts.Preferences == nil || c.sess.DeviceID == "" {
		return def
	}
	p, err := prefs.LoadVoice(ctx, c.a.opts.Preferences, c.sess.DeviceID, c.a.opts.DefaultSpeechRate)
	if err != nil {
		c.log.Debug().Err(err).Msg("load voice preferences")
	}
	return p
}

func (c *conn) setText(text string) {
	c.mu.Lock()
	c.text = text
	c.mu.Unlock()
}

func (c *conn) currentText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// close releases everything the connection opened.
func (c *conn) close() {
	c.input.Stop()
	c.pipeline.Reset()
	c.voice.Disconnect()
	c.wg.Wait()
	// A connect or a narration may have started while the goroutines drained.
	c.voice.Disconnect()
	c.narration.Stop()
	c.narration.Wait()
	if c.narrOut != nil {
		_ = c.narrOut.Close()
	}
}

// relayRecognizer asks the client to start or stop its recognition engine.
type relayRecognizer struct {
	c *conn
}

func (r relayRecognizer) Start(_ context.Context, locale string) error {
	r.c.send(protocol.RecognitionControl{Type: protocol.TypeRecognitionControl, SessionID: r.c.sess.ID, Action: "start", Locale: locale})
	return nil
}

func (r relayRecognizer) Stop() error {
	r.c.send(protocol.RecognitionControl{Type: protocol.TypeRecognitionControl, SessionID: r.c.sess.ID, Action: "stop"})
	return nil
}

func speechErrorCode(err error) string {
	switch {
	case errors.Is(err, speech.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, speech.ErrNoSpeech):
		return "no_speech"
	case errors.Is(err, speech.ErrUnsupported):
		return "unsupported"
	default:
		return "recognition_failed"
	}
}

func voiceErrorCode(err error) string {
	switch {
	case errors.Is(err, realtime.ErrMicrophone):
		return "microphone_unavailable"
	case errors.Is(err, realtime.ErrMissingAPIKey):
		return "missing_api_key"
	case errors.Is(err, realtime.ErrConnectionLost):
		return "connection_lost"
	default:
		return "voice_session_failed"
	}
}
