package realtime

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ent0n29/symptomcheck/internal/audio"
	"github.com/ent0n29/symptomcheck/internal/observability"
	"github.com/ent0n29/symptomcheck/internal/report"
)

type Config struct {
	Backend           Backend
	Devices           Devices
	SystemInstruction string
	Voice             string

	OnState     func(State)
	OnAnalysis  func(report.Analysis)
	OnError     func(error)
	// OnInterrupt fires when the model reports that the user barged in.
	OnInterrupt func()
	// OnAudio, when set, receives every inbound PCM16LE buffer (recording).
	OnAudio     func(pcm []byte)

	Logger  zerolog.Logger
	Metrics *observability.Metrics
}

// handle owns the resources of one connection. The session compares handles
// to decide whether a callback still belongs to the live connection.
type handle struct {
	conn    Conn
	capture CaptureContext
	output  OutputContext
	ctx     context.Context
	cancel  context.CancelFunc
	opened  time.Time
	heard   bool
}

type playing struct {
	src   Source
	ended bool
}

// Session is a bidirectional voice conversation.
type Session struct {
	cfg Config
	log zerolog.Logger

	mu     sync.Mutex
	state  State
	handle *handle
	cursor float64
	active map[*playing]struct{}
}

func NewSession(cfg Config) *Session {
	return &Session{
		cfg:    cfg,
		log:    cfg.Logger.With().Str("component", "realtime").Logger(),
		state:  StateDisconnected,
		active: make(map[*playing]struct{}),
	}
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Toggle connects when disconnected and disconnects otherwise.
func (s *Session) Toggle(ctx context.Context) error {
	if s.State() == StateDisconnected {
		return s.Connect(ctx)
	}
	s.Disconnect()
	return nil
}

// Connect opens capture, playback and the backend conversation. The
// connection lives until Disconnect or a receive failure, not until ctx ends.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateDisconnected {
		s.mu.Unlock()
		return nil
	}
	s.state = StateConnecting
	s.mu.Unlock()
	s.notify(StateConnecting)
	s.cfg.Metrics.ObserveVoiceEvent("connect_attempt")
	started := time.Now()

	h := &handle{opened: started}
	h.ctx, h.cancel = context.WithCancel(context.WithoutCancel(ctx))

	if err := s.open(ctx, h); err != nil {
		s.release(h, nil)
		s.mu.Lock()
		if s.state == StateConnecting {
			s.state = StateDisconnected
		}
		s.mu.Unlock()
		s.notify(StateDisconnected)
		s.cfg.Metrics.ObserveVoiceEvent("connect_failed")
		s.report(err)
		return err
	}

	s.mu.Lock()
	if s.state != StateConnecting {
		s.mu.Unlock()
		s.release(h, nil)
		return ErrConnectAborted
	}
	s.handle = h
	s.cursor = 0
	s.state = StateListening
	s.mu.Unlock()

	s.cfg.Metrics.ObserveStage("voice_connect", time.Since(started))
	s.cfg.Metrics.ObserveVoiceEvent("connected")
	s.log.Info().Str("backend", s.cfg.Backend.Name()).Msg("voice session connected")
	s.notify(StateListening)

	go s.receiveLoop(h)
	onBlock := func(block []float32) { s.sendBlock(h, block) }
	onError := func(err error) { s.fail(h, fmt.Errorf("%w: %v", ErrMicrophone, err)) }
	if err := h.capture.Start(h.ctx, onBlock, onError); err != nil {
		s.fail(h, fmt.Errorf("%w: %v", ErrMicrophone, err))
		return err
	}
	return nil
}

func (s *Session) open(ctx context.Context, h *handle) error {
	if s.cfg.Devices == nil || s.cfg.Backend == nil {
		return fmt.Errorf("%w: no devices or backend configured", ErrNotConnected)
	}
	var err error
	if h.capture, err = s.cfg.Devices.OpenCapture(ctx, audio.InputSampleRate); err != nil {
		return fmt.Errorf("%w: %v", ErrMicrophone, err)
	}
	if h.output, err = s.cfg.Devices.OpenOutput(ctx, audio.OutputSampleRate); err != nil {
		return fmt.Errorf("open playback: %w", err)
	}
	h.conn, err = s.cfg.Backend.Connect(ctx, ConnectConfig{
		SystemInstruction: s.cfg.SystemInstruction,
		Voice:             s.cfg.Voice,
	})
	if err != nil {
		return fmt.Errorf("connect %s: %w", s.cfg.Backend.Name(), err)
	}
	return nil
}

// Disconnect tears the session down. It is safe to call at any time and more
// than once.
func (s *Session) Disconnect() {
	s.mu.Lock()
	if s.state == StateDisconnected && s.handle == nil {
		s.mu.Unlock()
		return
	}
	h := s.handle
	s.handle = nil
	s.state = StateDisconnected
	s.cursor = 0
	sources := s.drainLocked()
	s.mu.Unlock()

	if h != nil {
		s.release(h, sources)
		s.cfg.Metrics.ObserveVoiceEvent("disconnected")
		s.log.Info().Msg("voice session disconnected")
	}
	s.notify(StateDisconnected)
}

func (s *Session) release(h *handle, sources []Source) {
	if h.cancel != nil {
		h.cancel()
	}
	for _, src := range sources {
		src.Stop()
	}
	if h.capture != nil {
		if err := h.capture.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close capture")
		}
	}
	if h.output != nil {
		if err := h.output.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close playback")
		}
	}
	if h.conn != nil {
		if err := h.conn.Close(); err != nil {
			s.log.Debug().Err(err).Msg("close backend session")
		}
	}
}

func (s *Session) fail(h *handle, err error) {
	if !s.owns(h) {
		return
	}
	s.log.Warn().Err(err).Msg("voice session failed")
	s.cfg.Metrics.ObserveVoiceEvent("failed")
	s.Disconnect()
	s.report(err)
}

func (s *Session) report(err error) {
	if s.cfg.OnError != nil {
		s.cfg.OnError(err)
	}
}

func (s *Session) owns(h *handle) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle == h
}

func (s *Session) notify(state State) {
	if s.cfg.OnState != nil {
		s.cfg.OnState(state)
	}
}

func (s *Session) sendBlock(h *handle, block []float32) {
	if !s.owns(h) {
		return
	}
	if err := h.conn.SendAudio(h.ctx, audio.FloatToPCM16(block)); err != nil {
		s.log.Debug().Err(err).Msg("send audio block")
	}
}

func (s *Session) receiveLoop(h *handle) {
	for {
		msg, err := h.conn.Receive(h.ctx)
		if err != nil {
			if s.owns(h) {
				s.fail(h, fmt.Errorf("%w: %v", ErrConnectionLost, err))
			}
			return
		}
		s.dispatch(h, msg)
	}
}

// dispatch is the single entry point for inbound server messages.
func (s *Session) dispatch(h *handle, msg Message) {
	if !s.owns(h) {
		return
	}
	for _, call := range msg.ToolCalls {
		s.handleToolCall(h, call)
	}
	if len(msg.Audio) > 0 {
		s.schedule(h, msg.Audio)
	}
	if msg.Interrupted {
		s.interrupt(h)
	}
	if msg.TurnComplete {
		s.log.Debug().Msg("model turn complete")
	}
}

func (s *Session) handleToolCall(h *handle, call ToolCall) {
	resp := okAck(call)
	if call.Name != ToolUpdateAnalysis {
		err := fmt.Errorf("%w: unknown tool %q", ErrInvalidToolCall, call.Name)
		s.log.Warn().Err(err).Msg("rejecting tool call")
		s.cfg.Metrics.ObserveToolCall(call.Name, "unknown")
		resp = errorAck(call, err)
	} else if a, err := ParseAnalysisArgs(call.Args); err != nil {
		s.log.Warn().Err(err).Msg("malformed tool call")
		s.cfg.Metrics.ObserveToolCall(call.Name, "invalid")
		resp = errorAck(call, err)
	} else {
		s.cfg.Metrics.ObserveToolCall(call.Name, "ok")
		if s.cfg.OnAnalysis != nil {
			s.cfg.OnAnalysis(a)
		}
	}
	if err := h.conn.SendToolResponse(h.ctx, resp); err != nil {
		s.log.Debug().Err(err).Msg("send tool response")
	}
}

func (s *Session) schedule(h *handle, pcm []byte) {
	if s.cfg.OnAudio != nil {
		s.cfg.OnAudio(pcm)
	}
	samples := audio.PCM16ToFloat(pcm)
	if len(samples) == 0 {
		return
	}

	s.mu.Lock()
	if s.handle != h {
		s.mu.Unlock()
		return
	}
	start := math.Max(s.cursor, h.output.Now())
	s.cursor = start + audio.Duration(len(samples), audio.OutputSampleRate)
	entry := &playing{}
	s.active[entry] = struct{}{}
	becameSpeaking := s.state == StateListening
	if becameSpeaking {
		s.state = StateSpeaking
	}
	firstAudio := !h.heard
	h.heard = true
	s.mu.Unlock()

	if firstAudio {
		s.cfg.Metrics.ObserveStage("voice_first_audio", time.Since(h.opened))
	}
	if becameSpeaking {
		s.notify(StateSpeaking)
	}

	src, err := h.output.Schedule(samples, audio.OutputSampleRate, start, func() { s.ended(h, entry) })
	if err != nil {
		s.log.Debug().Err(err).Msg("schedule playback")
		s.ended(h, entry)
		return
	}

	s.mu.Lock()
	_, stillActive := s.active[entry]
	if stillActive {
		entry.src = src
	}
	ended := entry.ended
	s.mu.Unlock()
	if !stillActive && !ended {
		// Interrupted or torn down before the source was registered.
		src.Stop()
	}
}

func (s *Session) ended(h *handle, entry *playing) {
	s.mu.Lock()
	entry.ended = true
	if _, ok := s.active[entry]; !ok {
		s.mu.Unlock()
		return
	}
	delete(s.active, entry)
	becameListening := len(s.active) == 0 && s.handle == h && s.state == StateSpeaking
	if becameListening {
		s.state = StateListening
	}
	s.mu.Unlock()
	if becameListening {
		s.notify(StateListening)
	}
}

func (s *Session) interrupt(h *handle) {
	s.mu.Lock()
	if s.handle != h {
		s.mu.Unlock()
		return
	}
	sources := s.drainLocked()
	s.cursor = 0
	wasSpeaking := s.state == StateSpeaking
	if wasSpeaking {
		s.state = StateListening
	}
	s.mu.Unlock()

	for _, src := range sources {
		src.Stop()
	}
	s.cfg.Metrics.ObserveVoiceEvent("interrupted")
	if s.cfg.OnInterrupt != nil {
		s.cfg.OnInterrupt()
	}
	if wasSpeaking {
		s.notify(StateListening)
	}
}

// drainLocked empties the active set and returns the sources to stop.
func (s *Session) drainLocked() []Source {
	out := make([]Source, 0, len(s.active))
	for p := range s.active {
		if p.src != nil {
			out = append(out, p.src)
		}
	}
	s.active = make(map[*playing]struct{})
	return out
}
