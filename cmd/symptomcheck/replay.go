package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/ent0n29/symptomcheck/internal/audio"
	"github.com/ent0n29/symptomcheck/internal/protocol"
)

var defaultReplayTexts = []string{
	"ปวดหัว เวียนหัว มาสองวัน",
	"มีไข้ ตัวร้อน หนาวสั่น",
	"ไอ เจ็บคอ มีเสมหะ",
	"ท้องเสีย คลื่นไส้",
}

type replayOptions struct {
	baseURL       string
	deviceID      string
	runs          int
	texts         []string
	runTimeout    time.Duration
	interRunDelay time.Duration
	voiceWAV      string
	chunkMS       int
	realtime      float64
	verbose       bool
}

// wsEvent is the union of server fields the replay inspects.
type wsEvent struct {
	Type    string `json:"type"`
	State   string `json:"state,omitempty"`
	ID      string `json:"id,omitempty"`
	Source  string `json:"source,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Stream  string `json:"stream,omitempty"`
	Code    string `json:"code,omitempty"`
	Detail  string `json:"detail,omitempty"`
	Message string `json:"message,omitempty"`
}

type replayRun struct {
	Text     string
	Source   string
	Reason   string
	Duration time.Duration
}

func newReplayCmd() *cobra.Command {
	opts := replayOptions{}
	var texts string
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay synthetic analyses against a running server and report latency",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.baseURL = strings.TrimRight(strings.TrimSpace(opts.baseURL), "/")
			if opts.baseURL == "" {
				return errors.New("base-url is required")
			}
			if opts.runs <= 0 {
				return errors.New("runs must be > 0")
			}
			if opts.chunkMS < 10 || opts.chunkMS > 2000 {
				return errors.New("chunk-ms must be in [10,2000]")
			}
			if opts.realtime <= 0 {
				return errors.New("realtime must be > 0")
			}
			opts.texts = splitTexts(texts)
			return replay(cmd.Context(), opts, cmd.OutOrStdout())
		},
	}
	f := cmd.Flags()
	f.StringVar(&opts.baseURL, "base-url", "http://127.0.0.1:8080", "server base URL")
	f.StringVar(&opts.deviceID, "device-id", "replay", "device_id for the synthetic session")
	f.IntVar(&opts.runs, "runs", 10, "number of analyses to replay")
	f.StringVar(&texts, "texts", "", "symptom descriptions separated by '|'")
	f.DurationVar(&opts.runTimeout, "run-timeout", 40*time.Second, "timeout waiting for each analysis_result")
	f.DurationVar(&opts.interRunDelay, "inter-run", 200*time.Millisecond, "delay between runs")
	f.StringVar(&opts.voiceWAV, "voice-wav", "", "optional WAV file streamed as microphone audio to the voice session")
	f.IntVar(&opts.chunkMS, "chunk-ms", 100, "microphone frame size in milliseconds")
	f.Float64Var(&opts.realtime, "realtime", 1.0, "frame pacing multiplier (1.0=realtime)")
	f.BoolVar(&opts.verbose, "verbose", true, "print replay progress")
	return cmd
}

func splitTexts(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, "|") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), defaultReplayTexts...)
	}
	return out
}

// wsWriter serializes writes from the read loop (narration acks) and the driver.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) send(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteJSON(v)
}

func replay(parent context.Context, opts replayOptions, out io.Writer) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, 10*time.Minute)
	defer cancel()

	client := &http.Client{Timeout: 30 * time.Second}
	sessionID, err := createReplaySession(ctx, client, opts.baseURL, opts.deviceID)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	defer func() { _ = endReplaySession(context.Background(), client, opts.baseURL, sessionID) }()

	wsURL, err := wsURLForSession(opts.baseURL, sessionID)
	if err != nil {
		return fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()
	w := &wsWriter{conn: conn}

	events := make(chan wsEvent, 256)
	readErr := make(chan error, 1)
	go replayReadLoop(conn, w, events, readErr, opts.verbose, out)

	if opts.verbose {
		fmt.Fprintf(out, "replay: session=%s runs=%d\n", sessionID, opts.runs)
	}

	runs := make([]replayRun, 0, opts.runs)
	for i := 0; i < opts.runs; i++ {
		text := opts.texts[i%len(opts.texts)]
		run, err := replayAnalysis(w, events, readErr, text, opts.runTimeout)
		if err != nil {
			return fmt.Errorf("run %d: %w", i+1, err)
		}
		runs = append(runs, run)
		if opts.verbose {
			fmt.Fprintf(out, "replay: run %d/%d source=%s reason=%s %dms\n", i+1, opts.runs, run.Source, run.Reason, run.Duration.Milliseconds())
		}
		if opts.interRunDelay > 0 && i < opts.runs-1 {
			time.Sleep(opts.interRunDelay)
		}
	}
	fmt.Fprintln(out, summarizeRuns(runs))

	if opts.voiceWAV != "" {
		firstAudio, err := replayVoice(ctx, w, events, readErr, opts)
		if err != nil {
			return fmt.Errorf("voice replay: %w", err)
		}
		fmt.Fprintf(out, "replay: first voice audio after %dms\n", firstAudio.Milliseconds())
	}
	return nil
}

func replayAnalysis(w *wsWriter, events <-chan wsEvent, readErr <-chan error, text string, timeout time.Duration) (replayRun, error) {
	started := time.Now()
	if err := w.send(protocol.AnalysisSubmit{Type: protocol.TypeAnalysisSubmit, Text: &text}); err != nil {
		return replayRun{}, err
	}
	if err := w.send(protocol.AnalysisConfirm{Type: protocol.TypeAnalysisConfirm}); err != nil {
		return replayRun{}, err
	}
	ev, err := awaitEvent(events, readErr, timeout, func(ev wsEvent) bool {
		return ev.Type == string(protocol.TypeAnalysisResult) || ev.Type == string(protocol.TypeValidationError)
	})
	if err != nil {
		return replayRun{}, err
	}
	if ev.Type == string(protocol.TypeValidationError) {
		return replayRun{}, fmt.Errorf("validation error: %s", ev.Message)
	}
	return replayRun{Text: text, Source: ev.Source, Reason: ev.Reason, Duration: time.Since(started)}, nil
}

// silentRMS is the level below which a replay recording carries no speech.
const silentRMS = 0.001

func loadVoiceWAV(path string) ([]byte, int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	pcm, rate, err := audio.DecodeWAV(raw)
	if err != nil {
		return nil, 0, fmt.Errorf("%s: %w", path, err)
	}
	if audio.RMS(audio.PCM16ToFloat(pcm)) < silentRMS {
		return nil, 0, fmt.Errorf("%s: recording is silent", path)
	}
	return pcm, rate, nil
}

func replayVoice(ctx context.Context, w *wsWriter, events <-chan wsEvent, readErr <-chan error, opts replayOptions) (time.Duration, error) {
	pcm, rate, err := loadVoiceWAV(opts.voiceWAV)
	if err != nil {
		return 0, err
	}

	if err := w.send(protocol.VoiceToggle{Type: protocol.TypeVoiceToggle}); err != nil {
		return 0, err
	}
	defer func() { _ = w.send(protocol.VoiceToggle{Type: protocol.TypeVoiceToggle}) }()
	if _, err := awaitEvent(events, readErr, opts.runTimeout, func(ev wsEvent) bool {
		return ev.Type == string(protocol.TypeVoiceState) && ev.State == "listening"
	}); err != nil {
		return 0, fmt.Errorf("await listening: %w", err)
	}

	started := time.Now()
	sendErr := make(chan error, 1)
	go func() { sendErr <- streamMicFrames(ctx, w, pcm, rate, opts.chunkMS, opts.realtime) }()

	_, err = awaitEvent(events, readErr, opts.runTimeout, func(ev wsEvent) bool {
		return ev.Type == string(protocol.TypeAssistantAudio) && ev.Stream == protocol.StreamVoice
	})
	if err != nil {
		return 0, fmt.Errorf("await assistant audio: %w", err)
	}
	elapsed := time.Since(started)
	select {
	case err := <-sendErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return elapsed, err
		}
	default:
	}
	return elapsed, nil
}

// streamMicFrames paces PCM out as mic_frame messages.
func streamMicFrames(ctx context.Context, w *wsWriter, pcm []byte, sampleRate, chunkMS int, realtime float64) error {
	bytesPerChunk := sampleRate * 2 * chunkMS / 1000
	if bytesPerChunk%2 != 0 {
		bytesPerChunk++
	}
	if bytesPerChunk < 2 {
		bytesPerChunk = 2
	}
	pace := time.Duration(float64(time.Duration(chunkMS)*time.Millisecond) / realtime)
	for off := 0; off+1 < len(pcm); off += bytesPerChunk {
		end := min(off+bytesPerChunk, len(pcm)&^1)
		msg := protocol.MicFrame{
			Type:        protocol.TypeMicFrame,
			PCM16Base64: audio.EncodeBase64(pcm[off:end]),
			SampleRate:  sampleRate,
		}
		if err := w.send(msg); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pace):
		}
	}
	return nil
}

func awaitEvent(events <-chan wsEvent, readErr <-chan error, timeout time.Duration, match func(wsEvent) bool) (wsEvent, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		select {
		case ev := <-events:
			if ev.Type == string(protocol.TypeErrorEvent) && ev.Code != "" {
				return ev, fmt.Errorf("error_event code=%s detail=%s", ev.Code, ev.Detail)
			}
			if match(ev) {
				return ev, nil
			}
		case err := <-readErr:
			return wsEvent{}, err
		case <-timer.C:
			return wsEvent{}, fmt.Errorf("timeout after %s", timeout)
		}
	}
}

func replayReadLoop(conn *websocket.Conn, w *wsWriter, events chan<- wsEvent, readErr chan<- error, verbose bool, out io.Writer) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case readErr <- err:
			default:
			}
			return
		}
		var ev wsEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			continue
		}
		// Narration would otherwise stall after the first chunk in client mode.
		if ev.Type == string(protocol.TypeNarrationChunk) {
			_ = w.send(protocol.NarrationDone{Type: protocol.TypeNarrationDone, ID: ev.ID})
			continue
		}
		if ev.Type == string(protocol.TypeErrorEvent) && verbose {
			fmt.Fprintf(out, "replay: error_event code=%s detail=%s\n", ev.Code, ev.Detail)
		}
		select {
		case events <- ev:
		default:
		}
	}
}

func summarizeRuns(runs []replayRun) string {
	if len(runs) == 0 {
		return "replay: no runs"
	}
	ms := make([]float64, 0, len(runs))
	sources := map[string]int{}
	for _, r := range runs {
		ms = append(ms, float64(r.Duration.Milliseconds()))
		sources[r.Source]++
	}
	sort.Float64s(ms)
	names := make([]string, 0, len(sources))
	for k := range sources {
		names = append(names, k)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, fmt.Sprintf("%s=%d", k, sources[k]))
	}
	return fmt.Sprintf("replay: runs=%d p50=%.0fms p95=%.0fms max=%.0fms %s",
		len(runs), nearestRank(ms, 0.50), nearestRank(ms, 0.95), ms[len(ms)-1], strings.Join(parts, " "))
}

// nearestRank expects sorted input.
func nearestRank(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(q*float64(len(sorted)))) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}

func createReplaySession(ctx context.Context, client *http.Client, baseURL, deviceID string) (string, error) {
	payload, err := json.Marshal(map[string]string{"device_id": deviceID})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/session", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	body, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if res.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(body)))
	}
	var created struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(body, &created); err != nil {
		return "", err
	}
	if strings.TrimSpace(created.SessionID) == "" {
		return "", errors.New("missing session_id in response")
	}
	return created.SessionID, nil
}

func endReplaySession(ctx context.Context, client *http.Client, baseURL, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/v1/session/"+url.PathEscape(sessionID)+"/end", nil)
	if err != nil {
		return err
	}
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return nil
}

func wsURLForSession(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", errors.New("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/session/ws"
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
