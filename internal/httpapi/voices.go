package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/ent0n29/symptomcheck/internal/audio"
	"github.com/ent0n29/symptomcheck/internal/prefs"
	"github.com/ent0n29/symptomcheck/internal/speech"
)

const (
	previewText    = "สวัสดีค่ะ นี่คือเสียงที่จะใช้อ่านผลการวิเคราะห์อาการของคุณ"
	maxPreviewText = 300
)

type listVoicesResponse struct {
	Mode           string        `json:"mode"`
	DefaultVoiceID string        `json:"default_voice_id"`
	Locale         string        `json:"locale"`
	Voices         []speech.Voice `json:"voices"`
}

type previewVoiceRequest struct {
	VoiceID string  `json:"voice_id"`
	Text    string  `json:"text"`
	Rate    float64 `json:"rate"`
}

// narrationMode mirrors the assistant's fallback: openai narration needs a key.
func (s *Server) narrationMode() string {
	mode := strings.ToLower(strings.TrimSpace(s.cfg.NarrationMode))
	switch mode {
	case "openai":
		if strings.TrimSpace(s.cfg.OpenAIAPIKey) == "" {
			return "client"
		}
		return mode
	case "mock":
		return mode
	default:
		return "client"
	}
}

func (s *Server) handleListVoices(w http.ResponseWriter, r *http.Request) {
	resp := listVoicesResponse{
		Mode:   s.narrationMode(),
		Locale: s.cfg.SpeechLocale,
		Voices: []speech.Voice{},
	}
	// In client mode the browser enumerates its own voices and reports them
	// over the websocket.
	if resp.Mode == "openai" {
		synth := speech.NewOpenAISynthesizer(s.cfg.OpenAIAPIKey, s.cfg.OpenAIBaseURL, s.cfg.OpenAITTSModel, s.cfg.OpenAITTSVoice, nil)
		voices, err := synth.Voices(r.Context())
		if err != nil {
			respondError(w, http.StatusBadGateway, "voices_unavailable", err.Error())
			return
		}
		resp.Voices = voices
		resp.DefaultVoiceID = s.cfg.OpenAITTSVoice
	}
	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handlePreviewVoice(w http.ResponseWriter, r *http.Request) {
	if s.narrationMode() != "openai" {
		respondError(w, http.StatusConflict, "preview_unavailable", "voice preview requires server-side narration")
		return
	}
	var req previewVoiceRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		text = previewText
	}
	if runes := []rune(text); len(runes) > maxPreviewText {
		text = string(runes[:maxPreviewText])
	}
	rate := s.cfg.DefaultSpeechRate
	if req.Rate > 0 {
		rate = req.Rate
	}

	sink := &collectSink{}
	synth := speech.NewOpenAISynthesizer(s.cfg.OpenAIAPIKey, s.cfg.OpenAIBaseURL, s.cfg.OpenAITTSModel, s.cfg.OpenAITTSVoice, sink)
	err := synth.Speak(r.Context(), speech.Utterance{
		Text:   text,
		Voice:  speech.Voice{ID: strings.TrimSpace(req.VoiceID)},
		Rate:   prefs.ClampRate(rate),
		Locale: s.cfg.SpeechLocale,
	})
	if err != nil {
		s.log.Warn().Err(err).Msg("voice preview failed")
		respondError(w, http.StatusBadGateway, "preview_failed", err.Error())
		return
	}

	pcm, rateHz := sink.audio()
	wav, err := audio.EncodeWAV(pcm, rateHz)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "preview_encode_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "audio/wav")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(wav)
}

// collectSink keeps synthesized audio instead of playing it.
type collectSink struct {
	mu   sync.Mutex
	pcm  []byte
	rate int
}

func (c *collectSink) Play(_ context.Context, pcm []byte, sampleRate int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pcm = append(c.pcm, pcm...)
	c.rate = sampleRate
	return nil
}

func (c *collectSink) audio() ([]byte, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pcm, c.rate
}
