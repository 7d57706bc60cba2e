package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/ent0n29/symptomcheck/internal/analysis"
	"github.com/ent0n29/symptomcheck/internal/config"
	"github.com/ent0n29/symptomcheck/internal/generator"
	"github.com/ent0n29/symptomcheck/internal/observability"
	"github.com/ent0n29/symptomcheck/internal/prefs"
	"github.com/ent0n29/symptomcheck/internal/protocol"
	"github.com/ent0n29/symptomcheck/internal/session"
)

type Orchestrator interface {
	RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error
}

type Deps struct {
	Config       config.Config
	Sessions     *session.Manager
	Assistant    Orchestrator
	Generator    generator.Generator
	Keys         func(deviceID string) analysis.KeyResolver
	Connectivity analysis.Connectivity
	Preferences  prefs.Store
	Metrics      *observability.Metrics
	Logger       zerolog.Logger
}

type Server struct {
	cfg       config.Config
	sessions  *session.Manager
	assistant Orchestrator
	gen       generator.Generator
	keys      func(deviceID string) analysis.KeyResolver
	online    analysis.Connectivity
	prefs     prefs.Store
	metrics   *observability.Metrics
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

func New(d Deps) *Server {
	cfg := d.Config
	return &Server{
		cfg:       cfg,
		sessions:  d.Sessions,
		assistant: d.Assistant,
		gen:       d.Generator,
		keys:      d.Keys,
		online:    d.Connectivity,
		prefs:     d.Preferences,
		metrics:   d.Metrics,
		log:       d.Logger.With().Str("component", "httpapi").Logger(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				// Browser connections must come from the same origin unless
				// APP_ALLOW_ANY_ORIGIN is set.
				if cfg.AllowAnyOrigin {
					return true
				}
				origin := strings.TrimSpace(r.Header.Get("Origin"))
				if origin == "" {
					// Non-browser clients often omit Origin. Allow them.
					return true
				}
				u, err := url.Parse(origin)
				if err != nil {
					return false
				}
				if u.Scheme != "http" && u.Scheme != "https" {
					return false
				}
				return strings.EqualFold(u.Host, r.Host)
			},
		},
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		observability.MetricsHandler().ServeHTTP(w, r)
	})

	r.HandleFunc("/api/analyze", s.handleAnalyzeAPI)
	r.Post("/v1/analysis", s.handleAnalysis)

	r.Get("/v1/devices/{device}/preferences", s.handleGetPreferences)
	r.Put("/v1/devices/{device}/preferences", s.handlePutPreferences)
	r.Put("/v1/devices/{device}/credential", s.handlePutCredential)
	r.Delete("/v1/devices/{device}/credential", s.handleDeleteCredential)

	r.Get("/v1/voices", s.handleListVoices)
	r.Post("/v1/voices/preview", s.handlePreviewVoice)

	r.Post("/v1/session", s.handleCreateSession)
	r.Post("/v1/session/{id}/end", s.handleEndSession)
	r.Get("/v1/session/ws", s.handleSessionWS)

	r.Get("/v1/status", s.handleStatus)
	r.Get("/v1/settings", s.handleClientSettings)
	r.Get("/v1/perf/latency", s.handlePerfLatency)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"generator":   s.generatorName(),
		"preferences": s.storeMode(),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	if s.gen == nil || s.prefs == nil {
		respondJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "not_ready"})
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"status":      "ready",
		"generator":   s.generatorName(),
		"preferences": s.storeMode(),
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req session.CreateRequest
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, errEmptyBody) {
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sess := s.sessions.Create(strings.TrimSpace(req.DeviceID))
	s.updateActiveSessions()
	s.metrics.ObserveSessionEvent("created")

	respondJSON(w, http.StatusCreated, session.CreateResponse{
		SessionID:       sess.ID,
		DeviceID:        sess.DeviceID,
		Status:          sess.Status,
		StartedAt:       sess.StartedAt,
		LastActivityAt:  sess.LastActivityAt,
		InactivityTTLMS: s.sessions.InactivityTimeout().Milliseconds(),
	})
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if strings.TrimSpace(id) == "" {
		respondError(w, http.StatusBadRequest, "invalid_session_id", "missing session id")
		return
	}

	sess, err := s.sessions.End(id)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	s.updateActiveSessions()
	s.metrics.ObserveSessionEvent("ended")
	respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleSessionWS(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "missing_session_id", "query parameter session_id is required")
		return
	}
	if s.assistant == nil {
		respondError(w, http.StatusNotImplemented, "unavailable", "assistant not configured")
		return
	}

	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		respondError(w, http.StatusNotFound, "session_not_found", err.Error())
		return
	}
	if sess.Status != session.StatusActive {
		respondError(w, http.StatusGone, "session_ended", "session has ended")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.metrics.ObserveSessionEvent("ws_connected")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	inbound := make(chan any, 256)
	outbound := make(chan any, 256)

	g.Go(func() error {
		return s.assistant.RunConnection(gctx, sess, inbound, outbound)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case msg := <-outbound:
				_ = conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
				if err := conn.WriteJSON(msg); err != nil {
					s.metrics.ObserveSessionEvent("ws_write_error")
					return err
				}
			}
		}
	})
	// Unblock ReadMessage once either side of the group gives up.
	go func() {
		<-gctx.Done()
		_ = conn.SetReadDeadline(time.Now())
	}()

	conn.SetReadLimit(2 << 20)
	_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		return nil
	})

readLoop:
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}
		_ = conn.SetReadDeadline(time.Now().Add(120 * time.Second))
		parsed, err := protocol.ParseClientMessage(data)
		if err != nil {
			errEvent := protocol.ErrorEvent{
				Type:      protocol.TypeErrorEvent,
				SessionID: sessionID,
				Code:      "invalid_client_message",
				Source:    "gateway",
				Retryable: false,
				Detail:    err.Error(),
			}
			select {
			case outbound <- errEvent:
			default:
				// Keep websocket writes single-threaded; drop if outbound queue is saturated.
				s.metrics.ObserveSessionEvent("outbound_drop")
			}
			continue
		}

		var env protocol.Envelope
		_ = json.Unmarshal(data, &env)
		s.metrics.ObserveWSMessage("inbound", string(env.Type))
		select {
		case <-gctx.Done():
			break readLoop
		case inbound <- parsed:
		}
	}

	cancel()
	close(inbound)
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		s.log.Debug().Err(err).Str("session_id", sessionID).Msg("websocket closed with error")
	}
	s.metrics.ObserveSessionEvent("ws_disconnected")
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errEmptyBody = errors.New("empty body")

func decodeJSON(r *http.Request, out any) error {
	if r.Body == nil {
		return errEmptyBody
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(out); err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "eof") {
			return errEmptyBody
		}
		return err
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

func (s *Server) generatorName() string {
	if s.gen == nil {
		return "none"
	}
	return s.gen.Name()
}

func (s *Server) storeMode() string {
	if s.prefs == nil {
		return "disabled"
	}
	return s.prefs.Mode()
}

func (s *Server) updateActiveSessions() {
	if s.metrics == nil {
		return
	}
	s.metrics.ActiveSessions.Set(float64(s.sessions.ActiveCount()))
}
