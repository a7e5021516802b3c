package provider

import (
	"errors"
	"fmt"
	"strings"
)

// ErrAudioUnsupported is returned by adapters whose backing model cannot
// consume audio. The factory routes audio extraction to a capable provider,
// so callers normally never see it.
var ErrAudioUnsupported = errors.New("provider does not support audio extraction")

// RateLimitError marks a provider failure as rate limiting. It drives the
// credential fallback loop and is invisible to callers unless every
// credential is exhausted.
type RateLimitError struct {
	Err error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}

// ProviderError is any other provider failure: malformed JSON, a
// non-success response, or an SDK error. It terminates fallback
// immediately.
type ProviderError struct {
	Err      error
	Provider string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Provider, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// OCRError indicates the text-recognition job itself failed.
type OCRError struct {
	Err error
}

func (e *OCRError) Error() string {
	return fmt.Sprintf("ocr: %v", e.Err)
}

func (e *OCRError) Unwrap() error {
	return e.Err
}

// OCRTimeoutError indicates the text-recognition job did not finish within
// the poll budget.
type OCRTimeoutError struct {
	Attempts int
}

func (e *OCRTimeoutError) Error() string {
	return fmt.Sprintf("ocr did not complete after %d polls", e.Attempts)
}

// rateLimitMarkers are the message fragments providers use to signal rate
// limiting or quota exhaustion. SDK errors arrive as opaque strings, so
// classification is heuristic.
var rateLimitMarkers = []string{
	"rate limit",
	"quota",
	"429",
	"resource exhausted",
	"too many requests",
}

// isRateLimited decides whether a failure is transient and fallback-worthy.
func isRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var rlErr *RateLimitError
	if errors.As(err, &rlErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range rateLimitMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
