package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for failure classification. Wrap tags errors with one of
// these so callers can map a failure to job-level behaviour without string
// matching.
var (
	ErrInput         = errors.New("input error")
	ErrAcquisition   = errors.New("acquisition failure")
	ErrMatching      = errors.New("matching failure")
	ErrRetrieval     = errors.New("retrieval failure")
	ErrRateLimited   = errors.New("rate limit exceeded")
	ErrTimeout       = errors.New("timeout")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrRetrieval
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify returns the taxonomy label for an error, used in job status
// messages and API payloads.
func Classify(err error) string {
	switch {
	case errors.Is(err, ErrInput):
		return "input_error"
	case errors.Is(err, ErrAcquisition):
		return "acquisition_failure"
	case errors.Is(err, ErrMatching):
		return "matching_failure"
	case errors.Is(err, ErrRetrieval):
		return "retrieval_failure"
	case errors.Is(err, ErrRateLimited):
		return "rate_limit_exceeded"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrConfiguration):
		return "configuration_error"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal_error"
	}
}

// IsJobFatal reports whether an error aborts a whole job. Per-video,
// per-batch, and per-match failures degrade the aggregate result instead.
func IsJobFatal(err error) bool {
	return errors.Is(err, ErrInput) || errors.Is(err, ErrTimeout) || errors.Is(err, ErrConfiguration)
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
