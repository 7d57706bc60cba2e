package realtime

import (
	"context"
	"errors"
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateListening    State = "listening"
	StateSpeaking     State = "speaking"
)

var (
	ErrMicrophone      = errors.New("microphone unavailable")
	ErrNotConnected    = errors.New("voice session is not connected")
	ErrConnectionLost  = errors.New("voice session connection lost")
	ErrInvalidToolCall = errors.New("invalid tool call")
	ErrMissingAPIKey   = errors.New("voice backend credential is required")
	ErrConnectAborted  = errors.New("voice session connect aborted")
)

// UserMessage returns the Thai text shown for a voice session failure.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrMicrophone):
		return "ไม่สามารถเข้าถึงไมโครโฟนได้ กรุณาตรวจสอบการอนุญาตใช้งานไมโครโฟน"
	case errors.Is(err, ErrMissingAPIKey):
		return "ยังไม่ได้ตั้งค่า API Key สำหรับผู้ช่วยเสียง"
	default:
		return "การเชื่อมต่อกับผู้ช่วยเสียงขัดข้อง กรุณาลองใหม่อีกครั้ง"
	}
}

// Source is one scheduled playback buffer.
type Source interface {
	Stop()
}

// CaptureContext delivers microphone audio in fixed-size blocks. onError is
// called at most once if capture stops before Close.
type CaptureContext interface {
	Start(ctx context.Context, onBlock func(samples []float32), onError func(error)) error
	Close() error
}

// OutputContext schedules buffers on a monotonic playback clock measured in
// seconds. onEnded must not be called synchronously from Schedule.
type OutputContext interface {
	Now() float64
	Schedule(samples []float32, sampleRate int, at float64, onEnded func()) (Source, error)
	Close() error
}

// Devices opens the capture and playback contexts for one connection.
type Devices interface {
	OpenCapture(ctx context.Context, sampleRate int) (CaptureContext, error)
	OpenOutput(ctx context.Context, sampleRate int) (OutputContext, error)
}

// ConnectConfig is what a backend needs to open a conversation.
type ConnectConfig struct {
	SystemInstruction string
	Voice             string
}

// Backend opens streaming conversations with a voice model.
type Backend interface {
	Connect(ctx context.Context, cfg ConnectConfig) (Conn, error)
	Name() string
}

// Conn is one open conversation. Receive blocks until a message arrives or
// the connection fails; Close unblocks it.
type Conn interface {
	SendAudio(ctx context.Context, pcm []byte) error
	SendToolResponse(ctx context.Context, resp ToolResponse) error
	Receive(ctx context.Context) (Message, error)
	Close() error
}

// Message is one inbound server event. Several fields may be set at once.
type Message struct {
	Audio        []byte
	ToolCalls    []ToolCall
	Interrupted  bool
	TurnComplete bool
}

type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

type ToolResponse struct {
	ID       string
	Name     string
	Response map[string]any
}
