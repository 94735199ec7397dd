package agent

import (
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"charm.land/fantasy"

	"github.com/dotcommander/unai/internal/errs"
)

// Attempt describes the request a failed run was made for.
type Attempt struct {
	API      string
	Model    string
	Fallback string
	Prompt   string
	NoLimit  bool
}

// Recovery describes how the caller should respond to a failed run.
type Recovery struct {
	Retry         bool
	Prompt        string
	ModelOverride string
	Err           errs.Error
}

// Recover decides whether a failed run is worth one more attempt, and with
// which prompt or model. It never retries rate limits or transport errors.
func Recover(err error, at Attempt) Recovery {
	var perr *errs.ProviderError
	if !errors.As(err, &perr) || perr.StatusCode == 0 {
		return Recovery{Err: Describe(err, at.API, at.Model)}
	}

	switch perr.StatusCode {
	case http.StatusNotFound:
		if at.Fallback != "" {
			return Recovery{
				Retry:         true,
				Prompt:        at.Prompt,
				ModelOverride: at.Fallback,
				Err:           errs.Error{Err: err, Reason: statusReason(perr, at.API)},
			}
		}
	case http.StatusBadRequest:
		if isContextLengthExceeded(perr) && !at.NoLimit {
			cut := cutPrompt(perr.Message, at.Prompt)
			return Recovery{
				Retry:  cut != at.Prompt,
				Prompt: cut,
				Err:    errs.Error{Err: err, Reason: "Maximum prompt size exceeded."},
			}
		}
	}
	return Recovery{Err: Describe(err, at.API, at.Model)}
}

// Describe turns the error of a failed run into a user-facing Error.
func Describe(err error, api, model string) errs.Error {
	var uerr errs.Error
	if errors.As(err, &uerr) {
		return uerr
	}

	var perr *errs.ProviderError
	hasStatus := errors.As(err, &perr) && perr.StatusCode != 0

	switch errs.KindOf(err) {
	case errs.KindCancelled:
		return errs.Error{Err: err, Reason: "Request cancelled."}
	case errs.KindIterationExceeded:
		var ierr *IterationExceededError
		if errors.As(err, &ierr) {
			return errs.Error{Err: err, Reason: fmt.Sprintf("Stopped after %d model turns with tool calls still pending.", ierr.Limit)}
		}
		return errs.Error{Err: err, Reason: "Stopped with tool calls still pending."}
	case errs.KindAuth:
		return errs.Error{Err: err, Reason: fmt.Sprintf("Invalid %s API key.", api)}
	case errs.KindRateLimit:
		reason := fmt.Sprintf("Rate limited by the %s API.", api)
		if d, ok := errs.RetryAfter(err); ok {
			reason = fmt.Sprintf("Rate limited by the %s API. Try again in %s.", api, d)
		}
		return errs.Error{Err: err, Reason: reason}
	case errs.KindAggregation:
		return errs.Error{Err: err, Reason: fmt.Sprintf("The %s API sent a malformed stream.", api)}
	}

	if hasStatus {
		if perr.StatusCode == http.StatusNotFound {
			return errs.Error{Err: err, Reason: fmt.Sprintf("Missing model '%s' for API '%s'.", model, api)}
		}
		if isContextLengthExceeded(perr) {
			return errs.Error{Err: err, Reason: "Maximum prompt size exceeded."}
		}
		return errs.Error{Err: err, Reason: statusReason(perr, api)}
	}
	return errs.Error{Err: err, Reason: fmt.Sprintf("There was a problem with the %s API request.", api)}
}

func statusReason(perr *errs.ProviderError, api string) string {
	if reason := fantasy.ErrorTitleForStatusCode(perr.StatusCode); reason != "" {
		return reason
	}
	if perr.StatusCode >= http.StatusInternalServerError {
		return fmt.Sprintf("%s API server error.", api)
	}
	return fmt.Sprintf("%s API request error.", api)
}

func isContextLengthExceeded(perr *errs.ProviderError) bool {
	msg := strings.ToLower(perr.Message)
	return strings.Contains(msg, "context_length_exceeded") ||
		strings.Contains(msg, "maximum context length")
}

var tokenErrRe = regexp.MustCompile(`This model's maximum context length is (\d+) tokens. However, your messages resulted in (\d+) tokens`)

func cutPrompt(msg, prompt string) string {
	found := tokenErrRe.FindStringSubmatch(msg)
	if len(found) != 3 { //nolint:mnd
		return prompt
	}

	maxt, _ := strconv.Atoi(found[1])
	current, _ := strconv.Atoi(found[2])

	if maxt > current {
		return prompt
	}

	// 1 token =~ 4 chars, plus 10 extra.
	reduceBy := 10 + (current-maxt)*4 //nolint:mnd
	if len(prompt) > reduceBy {
		return prompt[:len(prompt)-reduceBy]
	}

	return prompt
}
