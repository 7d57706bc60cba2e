package speech

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrNoSpeech         = errors.New("no speech detected")
	ErrRecognition      = errors.New("speech recognition failed")
	ErrUnsupported      = errors.New("speech recognition unavailable")
)

// RecognitionError maps a recognizer error code onto one of the sentinel errors.
func RecognitionError(code string) error {
	switch code {
	case "not-allowed", "service-not-allowed":
		return fmt.Errorf("%w (%s)", ErrPermissionDenied, code)
	case "no-speech":
		return ErrNoSpeech
	default:
		return fmt.Errorf("%w: %s", ErrRecognition, code)
	}
}

// UserMessage returns the Thai text shown to the user for a speech error.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, ErrPermissionDenied):
		return "ไม่ได้รับอนุญาตให้ใช้ไมโครโฟน กรุณาอนุญาตการเข้าถึงไมโครโฟนในการตั้งค่าเบราว์เซอร์"
	case errors.Is(err, ErrNoSpeech):
		return "ไม่ได้ยินเสียงพูด กรุณาลองพูดอีกครั้ง"
	case errors.Is(err, ErrUnsupported):
		return "อุปกรณ์นี้ไม่รองรับการรับรู้เสียงพูด"
	default:
		return "เกิดข้อผิดพลาดในการรับรู้เสียงพูด กรุณาลองใหม่อีกครั้ง"
	}
}
