package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/symptomcheck/internal/analysis"
	"github.com/ent0n29/symptomcheck/internal/generator"
	"github.com/ent0n29/symptomcheck/internal/reliability"
	"github.com/ent0n29/symptomcheck/internal/report"
)

type analyzeRequest struct {
	Symptoms string `json:"symptoms"`
}

type analyzeResponse struct {
	Analysis string `json:"analysis,omitempty"`
	Error    string `json:"error,omitempty"`
}

// handleAnalyzeAPI serves the remote analyzer contract used by the http
// generator mode. It never degrades to the offline engine.
func (s *Server) handleAnalyzeAPI(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		respondJSON(w, http.StatusMethodNotAllowed, analyzeResponse{Error: "method not allowed"})
		return
	}

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondJSON(w, http.StatusBadRequest, analyzeResponse{Error: "invalid request body"})
		return
	}
	symptoms := strings.TrimSpace(req.Symptoms)
	if symptoms == "" {
		respondJSON(w, http.StatusBadRequest, analyzeResponse{Error: "symptoms is required"})
		return
	}
	if s.gen == nil {
		respondJSON(w, http.StatusInternalServerError, analyzeResponse{Error: "analyzer is not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.analysisTimeout())
	defer cancel()

	var key string
	if s.keys != nil {
		key, _, _ = s.keys("").Resolve(ctx)
	}
	if key == "" && generator.RequiresCredential(s.gen) {
		respondJSON(w, http.StatusInternalServerError, analyzeResponse{Error: "API key is not configured"})
		return
	}

	started := time.Now()
	text, err := s.gen.Generate(ctx, key, symptoms)
	if err == nil && strings.TrimSpace(text) == "" {
		err = errors.New("empty analysis")
	}
	if err != nil {
		code := reliability.Classify(err)
		s.metrics.ObserveBackendError(s.gen.Name(), string(code))
		s.log.Warn().Err(err).Str("code", string(code)).Msg("analyze request failed")
		respondJSON(w, http.StatusInternalServerError, analyzeResponse{Error: "analysis failed"})
		return
	}
	s.metrics.ObserveStage("api_analyze", time.Since(started))
	respondJSON(w, http.StatusOK, analyzeResponse{Analysis: text})
}

type analysisRequest struct {
	Symptoms string `json:"symptoms"`
	DeviceID string `json:"device_id"`
}

type analysisResponse struct {
	RunID       string         `json:"run_id"`
	Symptoms    string         `json:"symptoms"`
	Advice      string         `json:"advice"`
	Precautions string         `json:"precautions"`
	Blocks      []report.Block `json:"blocks"`
	HTML        string         `json:"html"`
	Source      string         `json:"source"`
	Reason      string         `json:"reason"`
	DurationMS  int64          `json:"duration_ms"`
}

// handleAnalysis runs one pipeline pass and always answers with a result,
// falling back to the offline engine.
func (s *Server) handleAnalysis(w http.ResponseWriter, r *http.Request) {
	var req analysisRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	p := s.pipeline(strings.TrimSpace(req.DeviceID))
	out, err := p.Run(r.Context(), req.Symptoms)
	if err != nil {
		if errors.Is(err, analysis.ErrEmptySymptoms) {
			respondError(w, http.StatusBadRequest, "empty_symptoms", analysis.UserMessage(err))
			return
		}
		respondError(w, http.StatusInternalServerError, "analysis_failed", analysis.UserMessage(err))
		return
	}

	blocks := report.Render(out.Raw)
	respondJSON(w, http.StatusOK, analysisResponse{
		RunID:       out.RunID,
		Symptoms:    out.Result.Symptoms,
		Advice:      out.Result.Advice,
		Precautions: out.Result.Precautions,
		Blocks:      blocks,
		HTML:        report.HTML(blocks),
		Source:      string(out.Source),
		Reason:      string(out.Reason),
		DurationMS:  out.Duration.Milliseconds(),
	})
}

func (s *Server) pipeline(deviceID string) *analysis.Pipeline {
	opts := analysis.Options{
		Generator:    s.gen,
		Connectivity: s.online,
		Timeout:      s.analysisTimeout(),
		Logger:       s.log,
		Metrics:      s.metrics,
	}
	if s.gen != nil {
		opts.CredentialOptional = !generator.RequiresCredential(s.gen)
	}
	if s.keys != nil {
		opts.Keys = s.keys(deviceID)
	}
	return analysis.NewPipeline(opts)
}

func (s *Server) analysisTimeout() time.Duration {
	if s.cfg.AnalysisTimeout > 0 {
		return s.cfg.AnalysisTimeout
	}
	return analysis.DefaultTimeout
}
