package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"unicode/utf8"
)

// PromptTooLargeError is raised when a rendered prompt cannot fit the
// provider's context window, either by local estimation (reducer/validator)
// or by the provider rejecting the request outright. Permanent.
type PromptTooLargeError struct {
	RequiredTokens  int // Estimated tokens needed (0 if reported by the provider)
	AvailableTokens int // Tokens available under the budget (0 if reported by the provider)
	Provider        string
	Message         string
}

func (e *PromptTooLargeError) Error() string {
	if e.RequiredTokens > 0 {
		return fmt.Sprintf("prompt too large: requires ~%d tokens, %d available (short by %d)",
			e.RequiredTokens, e.AvailableTokens, e.Shortfall())
	}
	return fmt.Sprintf("prompt too large: rejected by %s: %s", e.Provider, e.Message)
}

// Shortfall returns how many estimated tokens over budget the prompt was.
func (e *PromptTooLargeError) Shortfall() int {
	if e.RequiredTokens > e.AvailableTokens {
		return e.RequiredTokens - e.AvailableTokens
	}
	return 0
}

// TransientError represents a provider failure worth retrying: network
// errors, rate limits, and 5xx-equivalent responses.
type TransientError struct {
	Provider   string
	StatusCode int // 0 for transport-level failures
	Message    string
	Cause      error
}

func (e *TransientError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("transient %s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("transient %s error: %v", e.Provider, e.Cause)
}

func (e *TransientError) Unwrap() error { return e.Cause }

// PermanentError represents a provider failure that retrying cannot fix:
// authentication failures and request validation errors.
type PermanentError struct {
	Provider   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *PermanentError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("permanent %s error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("permanent %s error: %v", e.Provider, e.Cause)
}

func (e *PermanentError) Unwrap() error { return e.Cause }

// MalformedResponseError means the provider replied but the payload could
// not be interpreted. Permanent; the raw text is retained for diagnostics.
type MalformedResponseError struct {
	Provider string
	Raw      string
	Cause    error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed %s response: %v", e.Provider, e.Cause)
}

func (e *MalformedResponseError) Unwrap() error { return e.Cause }

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var transient *TransientError
	return errors.As(err, &transient)
}

// Phrases providers use to report a context window overflow. Checked
// case-insensitively against the response body.
var contextWindowIndicators = []string{
	"context length",
	"context window",
	"token limit",
	"maximum context",
	"input too large",
	"prompt is too long",
	"prompt too long",
	"maximum tokens",
	"exceeds maximum",
	"too many tokens",
}

// isContextWindowBody checks if an error response body indicates the
// prompt exceeded the provider's context window
func isContextWindowBody(statusCode int, body []byte) bool {
	// Status codes that typically carry payload/context issues
	if statusCode != http.StatusBadRequest &&
		statusCode != http.StatusRequestEntityTooLarge &&
		statusCode != http.StatusTooManyRequests {
		return false
	}

	bodyStr := strings.ToLower(string(body))
	for _, indicator := range contextWindowIndicators {
		if strings.Contains(bodyStr, indicator) {
			return true
		}
	}
	return false
}

// ClassifyHTTP maps a non-2xx provider response to the error taxonomy:
// context-window overflows become PromptTooLargeError, rate limits and
// server errors become TransientError, everything else is permanent.
func ClassifyHTTP(provider string, statusCode int, body []byte) error {
	if isContextWindowBody(statusCode, body) {
		return &PromptTooLargeError{
			Provider: provider,
			Message:  truncateBody(body),
		}
	}

	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode >= 500:
		return &TransientError{
			Provider:   provider,
			StatusCode: statusCode,
			Message:    truncateBody(body),
		}
	default:
		return &PermanentError{
			Provider:   provider,
			StatusCode: statusCode,
			Message:    truncateBody(body),
		}
	}
}

// truncateBody keeps error messages readable when providers echo the
// entire rejected prompt back in the response body.
func truncateBody(body []byte) string {
	const maxLen = 500
	s := string(body)
	if len(s) <= maxLen {
		return s
	}

	// Back up to a rune boundary so the cut never splits a multi-byte
	// character when providers echo non-ASCII prompt text
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
