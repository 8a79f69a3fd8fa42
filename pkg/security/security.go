package security

import (
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/jdziat/distexec/pkg/core"
)

// Limits
const (
	// MaxNodeIDLength is the maximum length for node ids
	MaxNodeIDLength = 255

	// MaxErrorMessageLength is the maximum length for stored error messages
	MaxErrorMessageLength = 4096

	// MaxRetryDelay is the hard limit for the retry backoff cap
	MaxRetryDelay = time.Minute

	// MinRetryDelayStep is the smallest allowed backoff increment
	MinRetryDelayStep = time.Millisecond

	// MaxCloseTimeout is the hard limit for remote context close calls
	MaxCloseTimeout = 5 * time.Minute
)

// validNodeID matches alphanumeric, hyphens, underscores, dots and colons
var validNodeID = regexp.MustCompile(`^[a-zA-Z0-9_][a-zA-Z0-9_\-\.:]*$`)

// ValidateNodeID validates a node id
func ValidateNodeID(id core.NodeID) error {
	if id == "" {
		return core.ErrInvalidNodeID
	}
	if len(id) > MaxNodeIDLength {
		return core.ErrNodeIDTooLong
	}
	if !validNodeID.MatchString(string(id)) {
		return core.ErrInvalidNodeID
	}
	return nil
}

// SanitizeErrorMessage truncates and sanitizes error messages for storage
func SanitizeErrorMessage(msg string) string {
	if msg == "" {
		return ""
	}

	// Remove any null bytes or control characters (except newlines)
	var sanitized strings.Builder
	sanitized.Grow(len(msg))

	for _, r := range msg {
		if r == '\n' || r == '\r' || r == '\t' || (r >= 32 && r != 127) {
			sanitized.WriteRune(r)
		}
	}

	result := sanitized.String()

	if utf8.RuneCountInString(result) > MaxErrorMessageLength {
		runes := []rune(result)
		result = string(runes[:MaxErrorMessageLength-3]) + "..."
	}

	return result
}

// ClampDelayStep keeps a backoff increment within [MinRetryDelayStep, MaxRetryDelay]
func ClampDelayStep(d time.Duration) time.Duration {
	if d < MinRetryDelayStep {
		return MinRetryDelayStep
	}
	if d > MaxRetryDelay {
		return MaxRetryDelay
	}
	return d
}

// ClampMaxDelay keeps a backoff cap within [step, MaxRetryDelay]
func ClampMaxDelay(max, step time.Duration) time.Duration {
	if max < step {
		return step
	}
	if max > MaxRetryDelay {
		return MaxRetryDelay
	}
	return max
}

// ClampCloseTimeout keeps a context close timeout within (0, MaxCloseTimeout]
func ClampCloseTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 10 * time.Second
	}
	if d > MaxCloseTimeout {
		return MaxCloseTimeout
	}
	return d
}
