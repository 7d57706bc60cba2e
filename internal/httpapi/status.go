package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/ent0n29/symptomcheck/internal/generator"
)

type statusCheck struct {
	ID     string `json:"id"`
	Status string `json:"status"` // ok|warn|error
	Label  string `json:"label"`
	Detail string `json:"detail,omitempty"`
	Fix    string `json:"fix,omitempty"`
}

type statusResponse struct {
	Generator     string        `json:"generator"`
	Preferences   string        `json:"preferences"`
	NarrationMode string        `json:"narration_mode"`
	LiveBackend   string        `json:"live_backend"`
	Online        bool          `json:"online"`
	Checks        []statusCheck `json:"checks"`
}

// handleStatus reports which analysis path a client should expect. Missing
// credentials and connectivity are warnings: analysis still answers offline.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	device := strings.TrimSpace(r.URL.Query().Get("device_id"))
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := statusResponse{
		Generator:     s.generatorName(),
		Preferences:   s.storeMode(),
		NarrationMode: s.narrationMode(),
		LiveBackend:   strings.ToLower(strings.TrimSpace(s.cfg.LiveBackend)),
		Checks:        make([]statusCheck, 0, 6),
	}

	resp.Checks = append(resp.Checks, statusCheck{
		ID:     "generator",
		Status: "ok",
		Label:  "Analysis backend",
		Detail: resp.Generator,
	})
	resp.Checks = append(resp.Checks, s.credentialCheck(ctx, device))

	resp.Online = s.online == nil || s.online.Online(ctx)
	if resp.Online {
		resp.Checks = append(resp.Checks, statusCheck{ID: "connectivity", Status: "ok", Label: "Network", Detail: "online"})
	} else {
		resp.Checks = append(resp.Checks, statusCheck{
			ID:     "connectivity",
			Status: "warn",
			Label:  "Network",
			Detail: "offline",
			Fix:    "Analyses use the built-in offline rules until the network returns.",
		})
	}

	switch resp.Preferences {
	case "postgres", "sqlite":
		resp.Checks = append(resp.Checks, statusCheck{ID: "preferences", Status: "ok", Label: "Preference storage", Detail: resp.Preferences})
	default:
		resp.Checks = append(resp.Checks, statusCheck{
			ID:     "preferences",
			Status: "warn",
			Label:  "Preference storage",
			Detail: resp.Preferences,
			Fix:    "Set PREFERENCES_PATH or DATABASE_URL to keep voice settings across restarts.",
		})
	}

	narration := statusCheck{ID: "narration", Status: "ok", Label: "Narration", Detail: resp.NarrationMode}
	if strings.EqualFold(s.cfg.NarrationMode, "openai") && resp.NarrationMode != "openai" {
		narration.Status = "warn"
		narration.Fix = "Set OPENAI_API_KEY to narrate on the server."
	}
	resp.Checks = append(resp.Checks, narration)

	live := statusCheck{ID: "live_backend", Status: "ok", Label: "Voice conversation", Detail: resp.LiveBackend}
	if resp.LiveBackend == "mock" {
		live.Status = "warn"
		live.Fix = "Set LIVE_BACKEND=gemini for real voice conversations."
	}
	resp.Checks = append(resp.Checks, live)

	respondJSON(w, http.StatusOK, resp)
}

func (s *Server) credentialCheck(ctx context.Context, device string) statusCheck {
	check := statusCheck{ID: "credential", Label: "Analysis credential"}
	if s.gen != nil && !generator.RequiresCredential(s.gen) {
		check.Status = "ok"
		check.Detail = "not required"
		return check
	}
	if s.keys != nil {
		if _, source, ok := s.keys(device).Resolve(ctx); ok {
			check.Status = "ok"
			check.Detail = source
			return check
		}
	}
	check.Status = "warn"
	check.Detail = "missing"
	check.Fix = "Set ANALYZER_API_KEY or store a key for this device; analyses fall back to offline rules."
	return check
}
