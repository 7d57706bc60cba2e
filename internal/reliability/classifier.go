package reliability

import (
	"context"
	"errors"
	"net"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// Code is a low-cardinality error label for metrics and logs.
type Code string

const (
	CodeNone        Code = ""
	CodeTimeout     Code = "timeout"
	CodeCanceled    Code = "canceled"
	CodeRateLimited Code = "rate_limited"
	CodeUnavailable Code = "unavailable"
	CodeAuth        Code = "auth"
	CodeUpstream    Code = "upstream"
	CodeUnknown     Code = "unknown"
)

// Classify maps an error from any backend into a Code.
func Classify(err error) Code {
	if err == nil {
		return CodeNone
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}
	if errors.Is(err, context.Canceled) {
		return CodeCanceled
	}
	if status, ok := HTTPStatus(err); ok {
		return classifyStatus(status)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return CodeTimeout
		}
		return CodeUnavailable
	}
	return CodeUnknown
}

// HTTPStatus extracts an upstream HTTP status from known SDK error types.
func HTTPStatus(err error) (int, bool) {
	var geminiErr genai.APIError
	if errors.As(err, &geminiErr) && geminiErr.Code > 0 {
		return geminiErr.Code, true
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return apiErr.HTTPStatusCode, true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return reqErr.HTTPStatusCode, true
	}
	var coder interface{ HTTPStatus() int }
	if errors.As(err, &coder) {
		return coder.HTTPStatus(), true
	}
	return 0, false
}

// IsRetryable reports whether err is worth another attempt.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case CodeTimeout, CodeRateLimited, CodeUnavailable:
		return true
	default:
		return false
	}
}

func classifyStatus(code int) Code {
	switch {
	case code == 401 || code == 403:
		return CodeAuth
	case code == 429:
		return CodeRateLimited
	case code == 408 || code == 504:
		return CodeTimeout
	case IsRetryableHTTPStatus(code):
		return CodeUnavailable
	default:
		return CodeUpstream
	}
}

// IsRetryableHTTPStatus classifies retryable HTTP status codes.
func IsRetryableHTTPStatus(code int) bool {
	switch code {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

// ExponentialBackoff computes a deterministic capped backoff duration.
func ExponentialBackoff(attempt int, base, cap time.Duration) time.Duration {
	if attempt <= 0 {
		return base
	}
	d := base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	return d
}
