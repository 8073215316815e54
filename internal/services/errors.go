package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrAuthExpired   = errors.New("authentication expired")
	ErrUnavailable   = errors.New("service unavailable")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
)

// ProviderError reports a failure from an external provider (curator or
// voice synthesizer) and records whether the call is worth retrying.
type ProviderError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *ProviderError) Error() string {
	op := strings.TrimSpace(e.Op)
	if op == "" {
		op = "provider"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", op, e.Err)
	}
	return fmt.Sprintf("%s: provider failure", op)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the error carries a retryable provider failure.
func IsRetryable(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Retryable
	}
	return false
}

// Wrap builds an error message that includes run context while tagging it with
// the provided marker for later reason classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, kind, operation, message string, err error) error {
	detail := buildDetail(kind, operation, message)
	if marker == nil {
		marker = ErrUnavailable
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

func buildDetail(kind, operation, message string) string {
	parts := make([]string, 0, 3)
	if kind = strings.TrimSpace(kind); kind != "" {
		parts = append(parts, kind)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
