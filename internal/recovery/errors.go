package recovery

import "strings"

// ErrorKind classifies a recorded worker error for retry decisions.
type ErrorKind string

const (
	// KindRetryable covers transient failures: network, timeout, rate limit.
	KindRetryable ErrorKind = "retryable"
	// KindNonRetryable covers environment problems that re-running cannot
	// fix. These block automatic retry even at the ceiling's mercy; only an
	// explicit force overrides them.
	KindNonRetryable ErrorKind = "non_retryable"
)

// nonRetryablePatterns is the fixed set of error text fragments that mark a
// failure as non-retryable. Matching is case-insensitive substring matching
// against the recorded error text.
var nonRetryablePatterns = []string{
	"configuration missing",
	"config not found",
	"playbook not found",
	"knowledge base missing",
	"invalid credential",
	"invalid api key",
	"authentication failed",
	"unknown model",
	"model not found",
	"insufficient permission",
	"permission denied",
}

// Classify returns the error kind for a recorded error text. Anything not
// matching the non-retryable set is treated as retryable.
func Classify(errText string) ErrorKind {
	lower := strings.ToLower(errText)
	for _, pattern := range nonRetryablePatterns {
		if strings.Contains(lower, pattern) {
			return KindNonRetryable
		}
	}
	return KindRetryable
}
