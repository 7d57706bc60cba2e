package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ent0n29/symptomcheck/internal/analysis"
	"github.com/ent0n29/symptomcheck/internal/config"
	"github.com/ent0n29/symptomcheck/internal/connectivity"
	"github.com/ent0n29/symptomcheck/internal/generator"
	"github.com/ent0n29/symptomcheck/internal/observability"
	"github.com/ent0n29/symptomcheck/internal/offline"
	"github.com/ent0n29/symptomcheck/internal/prefs"
	"github.com/ent0n29/symptomcheck/internal/protocol"
	"github.com/ent0n29/symptomcheck/internal/session"
)

type staticKey string

func (k staticKey) Resolve(context.Context) (string, string, bool) {
	if k == "" {
		return "", "", false
	}
	return string(k), "static", true
}

type failingGenerator struct{}

func (failingGenerator) Name() string { return "failing" }

func (failingGenerator) Generate(context.Context, string, string) (string, error) {
	return "", errors.New("upstream exploded")
}

// echoOrchestrator answers every symptom_text with an analysis_state carrying the text.
type echoOrchestrator struct{}

func (echoOrchestrator) RunConnection(ctx context.Context, s *session.Session, inbound <-chan any, outbound chan<- any) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-inbound:
			if !ok {
				return nil
			}
			if m, ok := msg.(protocol.SymptomText); ok {
				outbound <- protocol.AnalysisState{
					Type:      protocol.TypeAnalysisState,
					SessionID: s.ID,
					State:     string(analysis.StateIdle),
					Text:      m.Text,
				}
			}
		}
	}
}

type testDeps struct {
	gen    generator.Generator
	key    string
	online bool
	orch   Orchestrator
}

func newTestServer(t *testing.T, d testDeps) (*httptest.Server, *session.Manager, prefs.Store) {
	t.Helper()
	cfg := config.Config{
		SessionInactivityTimeout: 2 * time.Minute,
		AnalysisTimeout:          2 * time.Second,
		SpeechLocale:             "th-TH",
		DefaultSpeechRate:        0.75,
		NarrationMode:            "client",
		LiveBackend:              "mock",
		LiveVoice:                "Kore",
	}
	if d.gen == nil {
		d.gen = generator.NewMockGenerator()
	}
	sessions := session.NewManager(cfg.SessionInactivityTimeout)
	store := prefs.NewInMemoryStore()
	key := staticKey(d.key)
	srv := New(Deps{
		Config:       cfg,
		Sessions:     sessions,
		Assistant:    d.orch,
		Generator:    d.gen,
		Keys:         func(string) analysis.KeyResolver { return key },
		Connectivity: connectivity.Static(d.online),
		Preferences:  store,
		Metrics:      observability.NewMetricsWithRegistry("test_httpapi", prometheus.NewRegistry()),
		Logger:       zerolog.Nop(),
	})
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return ts, sessions, store
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	res, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s error = %v", url, err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func doJSON(t *testing.T, method, url string, body any) *http.Response {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, url, rdr)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s error = %v", method, url, err)
	}
	t.Cleanup(func() { res.Body.Close() })
	return res
}

func decodeBody(t *testing.T, res *http.Response, out any) {
	t.Helper()
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestCreateAndEndSession(t *testing.T) {
	ts, sessions, _ := newTestServer(t, testDeps{online: true})

	res := postJSON(t, ts.URL+"/v1/session", map[string]string{"device_id": "device-1"})
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want %d", res.StatusCode, http.StatusCreated)
	}
	var created session.CreateResponse
	decodeBody(t, res, &created)
	if created.SessionID == "" {
		t.Fatalf("missing session_id in create response: %+v", created)
	}
	if created.DeviceID != "device-1" {
		t.Fatalf("device_id = %q, want device-1", created.DeviceID)
	}
	if created.InactivityTTLMS != (2 * time.Minute).Milliseconds() {
		t.Fatalf("inactivity_ttl_ms = %d", created.InactivityTTLMS)
	}
	if sessions.ActiveCount() != 1 {
		t.Fatalf("ActiveCount() = %d, want 1", sessions.ActiveCount())
	}

	endRes := postJSON(t, ts.URL+"/v1/session/"+created.SessionID+"/end", nil)
	if endRes.StatusCode != http.StatusOK {
		t.Fatalf("end status = %d, want %d", endRes.StatusCode, http.StatusOK)
	}
	if sessions.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() after end = %d, want 0", sessions.ActiveCount())
	}

	missing := postJSON(t, ts.URL+"/v1/session/nope/end", nil)
	if missing.StatusCode != http.StatusNotFound {
		t.Fatalf("end unknown status = %d, want %d", missing.StatusCode, http.StatusNotFound)
	}
}

func TestAnalyzeAPIStatusCodes(t *testing.T) {
	tests := []struct {
		name   string
		deps   testDeps
		method string
		body   string
		want   int
	}{
		{name: "ok", deps: testDeps{key: "k"}, method: http.MethodPost, body: `{"symptoms":"ปวดหัว"}`, want: http.StatusOK},
		{name: "wrong method", deps: testDeps{key: "k"}, method: http.MethodGet, want: http.StatusMethodNotAllowed},
		{name: "invalid json", deps: testDeps{key: "k"}, method: http.MethodPost, body: `{`, want: http.StatusBadRequest},
		{name: "empty symptoms", deps: testDeps{key: "k"}, method: http.MethodPost, body: `{"symptoms":"   "}`, want: http.StatusBadRequest},
		{name: "no credential", deps: testDeps{gen: generator.NewGeminiGenerator("gemini-2.5-flash")}, method: http.MethodPost, body: `{"symptoms":"ไอ"}`, want: http.StatusInternalServerError},
		{name: "backend failure", deps: testDeps{gen: failingGenerator{}, key: "k"}, method: http.MethodPost, body: `{"symptoms":"ไอ"}`, want: http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, _, _ := newTestServer(t, tt.deps)
			req, err := http.NewRequest(tt.method, ts.URL+"/api/analyze", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("new request: %v", err)
			}
			res, err := http.DefaultClient.Do(req)
			if err != nil {
				t.Fatalf("request error = %v", err)
			}
			defer res.Body.Close()
			if res.StatusCode != tt.want {
				t.Fatalf("status = %d, want %d", res.StatusCode, tt.want)
			}

			var body map[string]string
			decodeBody(t, res, &body)
			if tt.want == http.StatusOK {
				if !strings.Contains(body["analysis"], "### อาการที่ตรวจพบ") {
					t.Fatalf("analysis = %q, want the symptoms section", body["analysis"])
				}
				if _, ok := body["error"]; ok {
					t.Fatalf("unexpected error field: %+v", body)
				}
				return
			}
			if body["error"] == "" {
				t.Fatalf("missing error field: %+v", body)
			}
		})
	}
}

func TestAnalysisOnline(t *testing.T) {
	ts, _, _ := newTestServer(t, testDeps{key: "k", online: true})

	res := postJSON(t, ts.URL+"/v1/analysis", map[string]string{"symptoms": "มีไข้"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var out analysisResponse
	decodeBody(t, res, &out)
	if out.Source != string(analysis.SourceOnline) {
		t.Fatalf("source = %q, want online", out.Source)
	}
	if !strings.Contains(out.Symptoms, "มีไข้") {
		t.Fatalf("symptoms = %q, want echoed text", out.Symptoms)
	}
	if out.RunID == "" || out.HTML == "" || len(out.Blocks) == 0 {
		t.Fatalf("incomplete response: %+v", out)
	}
}

func TestAnalysisDegradesWithoutCredential(t *testing.T) {
	ts, _, _ := newTestServer(t, testDeps{gen: generator.NewGeminiGenerator("gemini-2.5-flash"), online: true})

	res := postJSON(t, ts.URL+"/v1/analysis", map[string]string{"symptoms": "ปวดหัว เวียนหัว"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var out analysisResponse
	decodeBody(t, res, &out)
	if out.Source != string(analysis.SourceOffline) {
		t.Fatalf("source = %q, want offline", out.Source)
	}
	if out.Reason != string(analysis.ReasonNoCredential) {
		t.Fatalf("reason = %q, want %q", out.Reason, analysis.ReasonNoCredential)
	}
	if out.Precautions == "" {
		t.Fatalf("offline result has no precautions: %+v", out)
	}
}

func TestAnalysisRejectsEmptySymptoms(t *testing.T) {
	ts, _, _ := newTestServer(t, testDeps{key: "k", online: true})

	res := postJSON(t, ts.URL+"/v1/analysis", map[string]string{"symptoms": "  "})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
	var out errorResponse
	decodeBody(t, res, &out)
	if out.Error != analysis.UserMessage(analysis.ErrEmptySymptoms) {
		t.Fatalf("error = %q, want the Thai validation message", out.Error)
	}
}

func TestPreferencesRoundTrip(t *testing.T) {
	ts, _, store := newTestServer(t, testDeps{})
	base := ts.URL + "/v1/devices/phone-1"

	res := doJSON(t, http.MethodGet, base+"/preferences", nil)
	var got preferencesResponse
	decodeBody(t, res, &got)
	if got.Rate != 0.75 || got.VoiceID != "" || got.HasAPIKey {
		t.Fatalf("defaults = %+v", got)
	}

	res = doJSON(t, http.MethodPut, base+"/preferences", map[string]any{"rate": 9.0, "voice_id": "th-voice"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d, want %d", res.StatusCode, http.StatusOK)
	}
	decodeBody(t, res, &got)
	if got.Rate != prefs.MaxSpeechRate {
		t.Fatalf("rate = %v, want clamped %v", got.Rate, prefs.MaxSpeechRate)
	}
	if got.VoiceID != "th-voice" {
		t.Fatalf("voice_id = %q, want th-voice", got.VoiceID)
	}

	res = doJSON(t, http.MethodPut, base+"/credential", map[string]string{"api_key": "secret"})
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("credential status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
	key, err := prefs.APIKey(context.Background(), store, "phone-1")
	if err != nil || key != "secret" {
		t.Fatalf("APIKey() = %q, %v; want secret", key, err)
	}

	res = doJSON(t, http.MethodGet, base+"/preferences", nil)
	decodeBody(t, res, &got)
	if !got.HasAPIKey {
		t.Fatalf("has_api_key = false after storing a key")
	}

	res = doJSON(t, http.MethodDelete, base+"/credential", nil)
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want %d", res.StatusCode, http.StatusNoContent)
	}
	key, _ = prefs.APIKey(context.Background(), store, "phone-1")
	if key != "" {
		t.Fatalf("APIKey() after delete = %q, want empty", key)
	}

	other := doJSON(t, http.MethodGet, ts.URL+"/v1/devices/phone-2/preferences", nil)
	decodeBody(t, other, &got)
	if got.VoiceID != "" || got.Rate != 0.75 {
		t.Fatalf("other device sees %+v, want defaults", got)
	}
}

func TestCredentialRequiresKey(t *testing.T) {
	ts, _, _ := newTestServer(t, testDeps{})
	res := doJSON(t, http.MethodPut, ts.URL+"/v1/devices/phone-1/credential", map[string]string{"api_key": " "})
	if res.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", res.StatusCode, http.StatusBadRequest)
	}
}

func TestStatusAndSettings(t *testing.T) {
	ts, _, _ := newTestServer(t, testDeps{gen: generator.NewGeminiGenerator("gemini-2.5-flash"), online: false})

	res := doJSON(t, http.MethodGet, ts.URL+"/v1/status", nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d, want %d", res.StatusCode, http.StatusOK)
	}
	var status statusResponse
	decodeBody(t, res, &status)
	if status.Online {
		t.Fatalf("online = true, want false")
	}
	checks := map[string]statusCheck{}
	for _, c := range status.Checks {
		checks[c.ID] = c
	}
	for _, id := range []string{"generator", "credential", "connectivity", "preferences", "narration", "live_backend"} {
		if _, ok := checks[id]; !ok {
			t.Fatalf("missing check %q in %+v", id, status.Checks)
		}
	}
	if checks["credential"].Status != "warn" || checks["connectivity"].Status != "warn" {
		t.Fatalf("credential/connectivity checks = %+v / %+v, want warn", checks["credential"], checks["connectivity"])
	}

	res = doJSON(t, http.MethodGet, ts.URL+"/v1/settings", nil)
	var settings clientSettingsResponse
	decodeBody(t, res, &settings)
	if settings.SpeechLocale != "th-TH" || settings.DefaultSpeechRate != 0.75 || settings.NarrationMode != "client" {
		t.Fatalf("settings = %+v", settings)
	}
	if settings.MinSpeechRate != prefs.MinSpeechRate || settings.MaxSpeechRate != prefs.MaxSpeechRate {
		t.Fatalf("rate bounds = %v..%v", settings.MinSpeechRate, settings.MaxSpeechRate)
	}
	if len(settings.OfflineGroups) != len(offline.Groups()) || settings.OfflineGroups[len(settings.OfflineGroups)-1] != "general" {
		t.Fatalf("offline groups = %v", settings.OfflineGroups)
	}
}

func TestVoicesClientMode(t *testing.T) {
	ts, _, _ := newTestServer(t, testDeps{})

	res := doJSON(t, http.MethodGet, ts.URL+"/v1/voices", nil)
	var out listVoicesResponse
	decodeBody(t, res, &out)
	if out.Mode != "client" || len(out.Voices) != 0 {
		t.Fatalf("voices = %+v, want empty client list", out)
	}

	preview := postJSON(t, ts.URL+"/v1/voices/preview", map[string]string{"voice_id": "nova"})
	if preview.StatusCode != http.StatusConflict {
		t.Fatalf("preview status = %d, want %d", preview.StatusCode, http.StatusConflict)
	}
}

func TestHealthAndPerf(t *testing.T) {
	ts, _, _ := newTestServer(t, testDeps{})

	for _, path := range []string{"/healthz", "/readyz", "/v1/perf/latency"} {
		res := doJSON(t, http.MethodGet, ts.URL+path, nil)
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d, want %d", path, res.StatusCode, http.StatusOK)
		}
	}
}

func TestSessionWebsocket(t *testing.T) {
	ts, sessions, _ := newTestServer(t, testDeps{orch: echoOrchestrator{}})
	sess := sessions.Create("device-1")

	missing := doJSON(t, http.MethodGet, ts.URL+"/v1/session/ws", nil)
	if missing.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing session_id status = %d, want %d", missing.StatusCode, http.StatusBadRequest)
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/session/ws?session_id=" + sess.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial error = %v", err)
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"nonsense"}`)); err != nil {
		t.Fatalf("write error = %v", err)
	}
	var errEvent protocol.ErrorEvent
	if err := conn.ReadJSON(&errEvent); err != nil {
		t.Fatalf("read error event: %v", err)
	}
	if errEvent.Code != "invalid_client_message" {
		t.Fatalf("code = %q, want invalid_client_message", errEvent.Code)
	}

	if err := conn.WriteJSON(protocol.SymptomText{Type: protocol.TypeSymptomText, Text: "ไอ"}); err != nil {
		t.Fatalf("write error = %v", err)
	}
	var state protocol.AnalysisState
	if err := conn.ReadJSON(&state); err != nil {
		t.Fatalf("read state: %v", err)
	}
	if state.Text != "ไอ" || state.SessionID != sess.ID {
		t.Fatalf("state = %+v, want echoed text for %s", state, sess.ID)
	}

	if _, err := sessions.End(sess.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	_, res, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("dial on ended session succeeded")
	}
	if res == nil || res.StatusCode != http.StatusGone {
		t.Fatalf("ended session response = %v, want 410", res)
	}
}
