package errs

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ProviderError is a failed provider call.
type ProviderError struct {
	Provider   string
	Kind       error // one of ErrAuth, ErrRateLimit, ErrNetwork, ErrProtocol
	StatusCode int
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	var sb strings.Builder
	if e.Provider != "" {
		sb.WriteString(e.Provider)
		sb.WriteString(": ")
	}
	sb.WriteString(e.Kind.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " (HTTP %d %s)", e.StatusCode, http.StatusText(e.StatusCode))
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	} else if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *ProviderError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// NewProviderError builds a ProviderError of the given kind.
func NewProviderError(provider string, kind error, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// FromStatus classifies an HTTP status code.
//
// 401/403 are auth failures, 429 is throttling, 408 and 5xx are transport
// level and worth retrying by the caller, anything else is a payload the
// vendor rejected.
func FromStatus(provider string, status int, message string, retryAfter time.Duration) *ProviderError {
	var kind error
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		kind = ErrAuth
	case status == http.StatusTooManyRequests:
		kind = ErrRateLimit
	case status == http.StatusRequestTimeout || status >= http.StatusInternalServerError:
		kind = ErrNetwork
	default:
		kind = ErrProtocol
	}
	return &ProviderError{
		Provider:   provider,
		Kind:       kind,
		StatusCode: status,
		Message:    message,
		RetryAfter: retryAfter,
	}
}

// RetryAfter returns the vendor's retry hint if err carries one.
func RetryAfter(err error) (time.Duration, bool) {
	var perr *ProviderError
	if errors.As(err, &perr) && perr.RetryAfter > 0 {
		return perr.RetryAfter, true
	}
	return 0, false
}

// ParseRetryAfter reads a vendor's retry hint from response headers. get
// looks a header up by its canonical name. Retry-After-Ms wins over
// Retry-After, which is given in seconds or as an HTTP date.
func ParseRetryAfter(get func(name string) string, now time.Time) time.Duration {
	if ms, err := strconv.ParseFloat(strings.TrimSpace(get("Retry-After-Ms")), 64); err == nil && ms > 0 {
		return time.Duration(ms * float64(time.Millisecond))
	}
	v := strings.TrimSpace(get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if at, err := http.ParseTime(v); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}

// AggregationError reports a stream chunk that references invalid state.
type AggregationError struct {
	Message int
	Part    int
	Reason  string
}

func (e *AggregationError) Error() string {
	return fmt.Sprintf("%s: message %d part %d: %s", ErrAggregation, e.Message, e.Part, e.Reason)
}

func (e *AggregationError) Unwrap() error { return ErrAggregation }

// DuplicateToolError is returned when a tool name is registered twice.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("%s: %q", ErrDuplicateTool, e.Name)
}

func (e *DuplicateToolError) Unwrap() error { return ErrDuplicateTool }

// ToolError is a contained tool handler failure.
type ToolError struct {
	Name   string
	CallID string
	Err    error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q: %v", e.Name, e.Err)
}

func (e *ToolError) Unwrap() []error { return []error{ErrToolExecution, e.Err} }
