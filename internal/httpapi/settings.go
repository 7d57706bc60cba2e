package httpapi

import (
	"net/http"

	"github.com/ent0n29/symptomcheck/internal/offline"
	"github.com/ent0n29/symptomcheck/internal/prefs"
)

type clientSettingsResponse struct {
	SpeechLocale      string   `json:"speech_locale"`
	DefaultSpeechRate float64  `json:"default_speech_rate"`
	MinSpeechRate     float64  `json:"min_speech_rate"`
	MaxSpeechRate     float64  `json:"max_speech_rate"`
	NarrationMode     string   `json:"narration_mode"`
	LiveVoice         string   `json:"live_voice"`
	InactivityTTLMS   int64    `json:"inactivity_ttl_ms"`
	OfflineGroups     []string `json:"offline_groups"`
}

func (s *Server) handleClientSettings(w http.ResponseWriter, _ *http.Request) {
	resp := clientSettingsResponse{
		SpeechLocale:      s.cfg.SpeechLocale,
		DefaultSpeechRate: prefs.ClampRate(s.cfg.DefaultSpeechRate),
		MinSpeechRate:     prefs.MinSpeechRate,
		MaxSpeechRate:     prefs.MaxSpeechRate,
		NarrationMode:     s.narrationMode(),
		LiveVoice:         s.cfg.LiveVoice,
		OfflineGroups:     offline.Groups(),
	}
	if s.sessions != nil {
		resp.InactivityTTLMS = s.sessions.InactivityTimeout().Milliseconds()
	}
	respondJSON(w, http.StatusOK, resp)
}
