package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ent0n29/symptomcheck/internal/policy"
	"github.com/ent0n29/symptomcheck/internal/prefs"
)

type preferencesResponse struct {
	DeviceID  string  `json:"device_id"`
	Rate      float64 `json:"rate"`
	VoiceID   string  `json:"voice_id"`
	HasAPIKey bool    `json:"has_api_key"`
}

type updatePreferencesRequest struct {
	Rate    *float64 `json:"rate"`
	VoiceID *string  `json:"voice_id"`
}

type credentialRequest struct {
	APIKey string `json:"api_key"`
}

func (s *Server) deviceParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	if s.prefs == nil {
		respondError(w, http.StatusServiceUnavailable, "preferences_unavailable", "preferences store is not configured")
		return "", false
	}
	device := strings.TrimSpace(chi.URLParam(r, "device"))
	if device == "" {
		respondError(w, http.StatusBadRequest, "invalid_device_id", "missing device id")
		return "", false
	}
	return device, true
}

func (s *Server) loadPreferences(r *http.Request, device string) (preferencesResponse, error) {
	voice, err := prefs.LoadVoice(r.Context(), s.prefs, device, s.cfg.DefaultSpeechRate)
	if err != nil {
		return preferencesResponse{}, err
	}
	key, err := prefs.APIKey(r.Context(), s.prefs, device)
	if err != nil {
		return preferencesResponse{}, err
	}
	return preferencesResponse{
		DeviceID:  device,
		Rate:      voice.Rate,
		VoiceID:   voice.VoiceID,
		HasAPIKey: strings.TrimSpace(key) != "",
	}, nil
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	device, ok := s.deviceParam(w, r)
	if !ok {
		return
	}
	out, err := s.loadPreferences(r, device)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "preferences_read_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	device, ok := s.deviceParam(w, r)
	if !ok {
		return
	}
	var req updatePreferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		if errors.Is(err, errEmptyBody) {
			respondError(w, http.StatusBadRequest, "invalid_request", "request body is required")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	current, err := prefs.LoadVoice(r.Context(), s.prefs, device, s.cfg.DefaultSpeechRate)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "preferences_read_failed", err.Error())
		return
	}
	if req.Rate != nil {
		current.Rate = *req.Rate
	}
	if req.VoiceID != nil {
		current.VoiceID = *req.VoiceID
	}
	if _, err := prefs.SaveVoice(r.Context(), s.prefs, device, current); err != nil {
		respondError(w, http.StatusInternalServerError, "preferences_write_failed", err.Error())
		return
	}

	out, err := s.loadPreferences(r, device)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "preferences_read_failed", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) handlePutCredential(w http.ResponseWriter, r *http.Request) {
	device, ok := s.deviceParam(w, r)
	if !ok {
		return
	}
	var req credentialRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	key := strings.TrimSpace(req.APIKey)
	if key == "" {
		respondError(w, http.StatusBadRequest, "missing_api_key", "api_key is required")
		return
	}
	if err := s.prefs.Set(r.Context(), device, prefs.KeyAPIKey, key); err != nil {
		respondError(w, http.StatusInternalServerError, "credential_write_failed", err.Error())
		return
	}
	s.log.Info().Str("device_id", device).Str("key", policy.MaskSecret(key)).Msg("device credential stored")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteCredential(w http.ResponseWriter, r *http.Request) {
	device, ok := s.deviceParam(w, r)
	if !ok {
		return
	}
	if err := s.prefs.Delete(r.Context(), device, prefs.KeyAPIKey); err != nil && !errors.Is(err, prefs.ErrNotFound) {
		respondError(w, http.StatusInternalServerError, "credential_delete_failed", err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
