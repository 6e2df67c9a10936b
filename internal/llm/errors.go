package llm

import (
	"context"
	"errors"
	"net"

	openai "github.com/sashabaranov/go-openai"
)

// FailureKind classifies a provider error for callers and retry policy.
type FailureKind string

const (
	KindRateLimited FailureKind = "rate-limited"
	KindTimeout     FailureKind = "timeout"
	KindAuthInvalid FailureKind = "auth-invalid"
	KindModelError  FailureKind = "model-error"
)

// Classify maps a provider error onto a FailureKind.
func Classify(err error) FailureKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return KindRateLimited
		case apiErr.HTTPStatusCode == 401 || apiErr.HTTPStatusCode == 403:
			return KindAuthInvalid
		}
	}

	return KindModelError
}

// Transient reports whether the error is worth retrying. Rate limits,
// timeouts, 5xx responses and transport failures retry; any other API
// rejection (auth, invalid request) is permanent.
func Transient(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}
	return true
}
