package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/ent0n29/symptomcheck/internal/report"
)

type State string

const (
	StateIdle                 State = "idle"
	StateAwaitingConfirmation State = "awaiting_confirmation"
	StateRunning              State = "running"
	StateSucceeded            State = "succeeded"
	StateDegraded             State = "degraded"
)

type Source string

const (
	SourceOnline  Source = "online"
	SourceOffline Source = "offline"
)

// Reason explains which path produced an Outcome.
type Reason string

const (
	ReasonOK           Reason = "ok"
	ReasonNoCredential Reason = "no_credential"
	ReasonOffline      Reason = "offline"
	ReasonTimeout      Reason = "timeout"
	ReasonError        Reason = "error"
	ReasonEmpty        Reason = "empty"
)

var (
	ErrEmptySymptoms           = errors.New("symptom description is empty")
	ErrNotAwaitingConfirmation = errors.New("no analysis is awaiting confirmation")
	ErrRunning                 = errors.New("an analysis is already running")
)

// UserMessage returns the Thai text shown for pipeline validation errors.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrEmptySymptoms):
		return "กรุณาระบุอาการของคุณก่อนทำการวิเคราะห์"
	case errors.Is(err, ErrRunning):
		return "กำลังวิเคราะห์อาการ กรุณารอสักครู่"
	case errors.Is(err, ErrNotAwaitingConfirmation):
		return "กรุณากดวิเคราะห์อาการก่อนยืนยัน"
	default:
		return "เกิดข้อผิดพลาด กรุณาลองใหม่อีกครั้ง"
	}
}

// Outcome is the committed result of one analysis run.
type Outcome struct {
	RunID    string          `json:"run_id"`
	Result   report.Analysis `json:"result"`
	Raw      string          `json:"raw"`
	Source   Source          `json:"source"`
	Reason   Reason          `json:"reason"`
	Duration time.Duration   `json:"duration_ns"`
}

// State returns the terminal pipeline state this outcome maps to.
func (o Outcome) State() State {
	if o.Source == SourceOnline {
		return StateSucceeded
	}
	return StateDegraded
}

// Generator performs the online text request.
type Generator interface {
	Generate(ctx context.Context, credential, symptoms string) (string, error)
	Name() string
}

// KeyResolver yields the credential for the online request.
type KeyResolver interface {
	Resolve(ctx context.Context) (key, source string, ok bool)
}

// Connectivity reports whether the network is up.
type Connectivity interface {
	Online(ctx context.Context) bool
}

// Narrator starts speaking text without waiting for playback to finish.
type Narrator interface {
	Speak(ctx context.Context, text string)
}

// Snapshot is a read-only view of a Pipeline.
type Snapshot struct {
	State State    `json:"state"`
	Text  string   `json:"text,omitempty"`
	Last  *Outcome `json:"last,omitempty"`
}
