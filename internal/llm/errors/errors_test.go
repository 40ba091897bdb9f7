package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestClassifyHTTP_ContextWindow(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		body       string
		isTooLarge bool
	}{
		{"400 with context length", 400, `{"error": "This model's maximum context length is 200000 tokens"}`, true},
		{"413 with input too large", 413, "Input too large for model", true},
		{"429 with token limit", 429, "Request exceeds token limit", true},
		{"400 prompt too long", 400, "prompt is too long: 250000 tokens", true},
		{"400 generic validation", 400, "invalid request: missing field 'messages'", false},
		{"500 with misleading body", 500, "internal error processing context window", false},
		{"200 is never classified as too large", 200, "context length", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassifyHTTP("Claude", tt.statusCode, []byte(tt.body))
			var tooLarge *PromptTooLargeError
			got := errors.As(err, &tooLarge)
			if got != tt.isTooLarge {
				t.Errorf("PromptTooLargeError = %v, expected %v (err: %v)", got, tt.isTooLarge, err)
			}
		})
	}
}

func TestClassifyHTTP_Transient(t *testing.T) {
	transientCodes := []int{429, 408, 500, 502, 503, 529}
	for _, code := range transientCodes {
		t.Run(fmt.Sprintf("status_%d", code), func(t *testing.T) {
			err := ClassifyHTTP("Gemini", code, []byte("overloaded"))
			if !IsTransient(err) {
				t.Errorf("status %d should classify as transient, got %v", code, err)
			}
		})
	}
}

func TestClassifyHTTP_Permanent(t *testing.T) {
	permanentCodes := []int{400, 401, 403, 404, 422}
	for _, code := range permanentCodes {
		t.Run(fmt.Sprintf("status_%d", code), func(t *testing.T) {
			err := ClassifyHTTP("Claude", code, []byte("bad credentials"))
			if IsTransient(err) {
				t.Errorf("status %d should not classify as transient", code)
			}
			var permanent *PermanentError
			if !errors.As(err, &permanent) {
				t.Errorf("status %d should classify as permanent, got %T", code, err)
			}
		})
	}
}

func TestIsTransient_WrappedError(t *testing.T) {
	inner := &TransientError{Provider: "OpenAI", StatusCode: 503, Message: "overloaded"}
	wrapped := fmt.Errorf("unit a1b2c3d4: %w", inner)
	if !IsTransient(wrapped) {
		t.Error("wrapped TransientError should still be transient")
	}

	if IsTransient(errors.New("plain error")) {
		t.Error("plain error should not be transient")
	}
	if IsTransient(nil) {
		t.Error("nil should not be transient")
	}
}

func TestPromptTooLargeError_Shortfall(t *testing.T) {
	err := &PromptTooLargeError{RequiredTokens: 25000, AvailableTokens: 20000}
	if err.Shortfall() != 5000 {
		t.Errorf("Shortfall() = %d, expected 5000", err.Shortfall())
	}
	if !strings.Contains(err.Error(), "short by 5000") {
		t.Errorf("Error() should mention shortfall: %s", err.Error())
	}

	providerSide := &PromptTooLargeError{Provider: "Claude", Message: "prompt is too long"}
	if providerSide.Shortfall() != 0 {
		t.Errorf("Shortfall() = %d, expected 0 for provider-reported error", providerSide.Shortfall())
	}
}

func TestMalformedResponseError_RetainsRaw(t *testing.T) {
	err := &MalformedResponseError{
		Provider: "Claude",
		Raw:      "Sure! Here are the improved messages:",
		Cause:    errors.New("invalid character 'S'"),
	}
	if err.Raw == "" {
		t.Error("Raw should be retained for diagnostics")
	}
	if IsTransient(err) {
		t.Error("malformed response should not be transient")
	}
}

func TestTruncateBody(t *testing.T) {
	long := strings.Repeat("x", 1000)
	got := truncateBody([]byte(long))
	if len(got) != 503 {
		t.Errorf("truncated body length = %d, expected 503", len(got))
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated body should end with ellipsis")
	}
}

func TestTruncateBody_RuneBoundary(t *testing.T) {
	// The two-byte é occupies bytes 499-500, straddling the cut point
	body := strings.Repeat("x", 499) + "éllo wörld"
	got := truncateBody([]byte(body))
	if !utf8.ValidString(got) {
		t.Errorf("truncated body is not valid UTF-8: %q", got[490:])
	}
	if !strings.HasSuffix(got, "...") {
		t.Error("truncated body should end with ellipsis")
	}
	if len(got) > 503 {
		t.Errorf("truncated body length = %d, expected at most 503", len(got))
	}

	short := "résumé"
	if truncateBody([]byte(short)) != short {
		t.Error("short body should pass through untouched")
	}
}
