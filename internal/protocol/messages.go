package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ent0n29/symptomcheck/internal/report"
)

// MessageType identifies websocket payload variants.
type MessageType string

// Client to server.
const (
	TypeSymptomText       MessageType = "symptom_text"
	TypeAnalysisSubmit    MessageType = "analysis_submit"
	TypeAnalysisConfirm   MessageType = "analysis_confirm"
	TypeAnalysisCancel    MessageType = "analysis_cancel"
	TypeDictationToggle   MessageType = "dictation_toggle"
	TypeRecognitionResult MessageType = "recognition_result"
	TypeRecognitionError  MessageType = "recognition_error"
	TypeRecognitionEnd    MessageType = "recognition_end"
	TypeNarrationDone     MessageType = "narration_done"
	TypeNarrationStop     MessageType = "narration_stop"
	TypeVoicesAvailable   MessageType = "voices_available"
	TypeVoiceToggle       MessageType = "voice_toggle"
	TypeMicFrame          MessageType = "mic_frame"
)

// Server to client.
const (
	TypeAnalysisState      MessageType = "analysis_state"
	TypeAnalysisResult     MessageType = "analysis_result"
	TypeValidationError    MessageType = "validation_error"
	TypeDictationState     MessageType = "dictation_state"
	TypeDictationText      MessageType = "dictation_text"
	TypeDictationError     MessageType = "dictation_error"
	TypeRecognitionControl MessageType = "recognition_control"
	TypeNarrationChunk     MessageType = "narration_chunk"
	TypeNarrationCancel    MessageType = "narration_cancel"
	TypeVoiceState         MessageType = "voice_state"
	TypeAssistantAudio     MessageType = "assistant_audio"
	TypeAudioStop          MessageType = "audio_stop"
	TypeErrorEvent         MessageType = "error_event"
)

// Audio streams carried by assistant_audio.
const (
	StreamVoice     = "voice"
	StreamNarration = "narration"
)

var ErrUnsupportedType = errors.New("unsupported message type")

type Envelope struct {
	Type MessageType `json:"type"`
}

type SymptomText struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

// AnalysisSubmit asks for confirmation. Text is optional and replaces the
// current symptom text when present.
type AnalysisSubmit struct {
	Type MessageType `json:"type"`
	Text *string     `json:"text,omitempty"`
}

type AnalysisConfirm struct {
	Type MessageType `json:"type"`
}

type AnalysisCancel struct {
	Type MessageType `json:"type"`
}

type DictationToggle struct {
	Type MessageType `json:"type"`
}

type RecognitionAlternative struct {
	Transcript string `json:"transcript"`
	Final      bool   `json:"final"`
}

type RecognitionResult struct {
	Type    MessageType              `json:"type"`
	Results []RecognitionAlternative `json:"results"`
}

type RecognitionError struct {
	Type MessageType `json:"type"`
	Code string      `json:"code"`
}

type RecognitionEnd struct {
	Type MessageType `json:"type"`
}

type NarrationDone struct {
	Type  MessageType `json:"type"`
	ID    string      `json:"id"`
	Error string      `json:"error,omitempty"`
}

type NarrationStop struct {
	Type MessageType `json:"type"`
}

type VoiceInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Locale  string `json:"locale"`
	Default bool   `json:"default,omitempty"`
}

type VoicesAvailable struct {
	Type   MessageType `json:"type"`
	Voices []VoiceInfo `json:"voices"`
}

type VoiceToggle struct {
	Type MessageType `json:"type"`
}

type MicFrame struct {
	Type        MessageType `json:"type"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
}

type AnalysisState struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	State     string      `json:"state"`
	Text      string      `json:"text,omitempty"`
}

type AnalysisResult struct {
	Type        MessageType    `json:"type"`
	SessionID   string         `json:"session_id"`
	RunID       string         `json:"run_id,omitempty"`
	Symptoms    string         `json:"symptoms"`
	Advice      string         `json:"advice"`
	Precautions string         `json:"precautions"`
	Blocks      []report.Block `json:"blocks,omitempty"`
	HTML        string         `json:"html,omitempty"`
	Source      string         `json:"source"`
	Reason      string         `json:"reason,omitempty"`
}

type ValidationError struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Message   string      `json:"message"`
}

type DictationState struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Active    bool        `json:"active"`
}

type DictationText struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Text      string      `json:"text"`
	Final     bool        `json:"final"`
}

type DictationError struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Message   string      `json:"message"`
}

type RecognitionControl struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Action    string      `json:"action"`
	Locale    string      `json:"locale,omitempty"`
}

type NarrationChunk struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	ID        string      `json:"id"`
	Text      string      `json:"text"`
	VoiceID   string      `json:"voice_id,omitempty"`
	Rate      float64     `json:"rate"`
	Locale    string      `json:"locale,omitempty"`
}

type NarrationCancel struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
}

type VoiceState struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	State     string      `json:"state"`
}

// AssistantAudio carries one scheduled PCM16 buffer. StartAt is on the
// stream's playback clock in seconds.
type AssistantAudio struct {
	Type        MessageType `json:"type"`
	SessionID   string      `json:"session_id"`
	ID          string      `json:"id"`
	Stream      string      `json:"stream"`
	PCM16Base64 string      `json:"pcm16_base64"`
	SampleRate  int         `json:"sample_rate"`
	StartAt     float64     `json:"start_at"`
}

type AudioStop struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	ID        string      `json:"id"`
}

type ErrorEvent struct {
	Type      MessageType `json:"type"`
	SessionID string      `json:"session_id"`
	Code      string      `json:"code"`
	Source    string      `json:"source"`
	Retryable bool        `json:"retryable"`
	Detail    string      `json:"detail"`
}

func ParseClientMessage(raw []byte) (any, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("invalid envelope: %w", err)
	}

	switch env.Type {
	case TypeSymptomText:
		return decode[SymptomText](raw)
	case TypeAnalysisSubmit:
		return decode[AnalysisSubmit](raw)
	case TypeAnalysisConfirm:
		return decode[AnalysisConfirm](raw)
	case TypeAnalysisCancel:
		return decode[AnalysisCancel](raw)
	case TypeDictationToggle:
		return decode[DictationToggle](raw)
	case TypeRecognitionResult:
		return decode[RecognitionResult](raw)
	case TypeRecognitionError:
		msg, err := decode[RecognitionError](raw)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(msg.Code) == "" {
			return nil, errors.New("invalid recognition_error")
		}
		return msg, nil
	case TypeRecognitionEnd:
		return decode[RecognitionEnd](raw)
	case TypeNarrationDone:
		msg, err := decode[NarrationDone](raw)
		if err != nil {
			return nil, err
		}
		if msg.ID == "" {
			return nil, errors.New("invalid narration_done")
		}
		return msg, nil
	case TypeNarrationStop:
		return decode[NarrationStop](raw)
	case TypeVoicesAvailable:
		return decode[VoicesAvailable](raw)
	case TypeVoiceToggle:
		return decode[VoiceToggle](raw)
	case TypeMicFrame:
		msg, err := decode[MicFrame](raw)
		if err != nil {
			return nil, err
		}
		if msg.PCM16Base64 == "" || msg.SampleRate <= 0 {
			return nil, errors.New("invalid mic_frame")
		}
		return msg, nil
	default:
		return nil, ErrUnsupportedType
	}
}

func decode[T any](raw []byte) (T, error) {
	var msg T
	if err := json.Unmarshal(raw, &msg); err != nil {
		return msg, err
	}
	return msg, nil
}
