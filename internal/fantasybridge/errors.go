package fantasybridge

import (
	"context"
	"errors"
	"strings"
	"time"

	"charm.land/fantasy"

	"github.com/dotcommander/unai/internal/errs"
)

// classify maps fantasy failures onto the error taxonomy. Provider errors
// with a status code are classified like any HTTP failure; everything else
// is treated as a transport problem.
func classify(api string, err error) error {
	if err == nil {
		err = errors.New("stream failed without an error")
	}
	if errors.Is(err, context.Canceled) {
		return errs.Cancelled(err)
	}
	var perr *fantasy.ProviderError
	if errors.As(err, &perr) && perr.StatusCode != 0 {
		retryAfter := errs.ParseRetryAfter(headerLookup(perr.ResponseHeaders), time.Now())
		pe := errs.FromStatus(api, perr.StatusCode, perr.Message, retryAfter)
		if pe.Message == "" {
			pe.Message = fantasy.ErrorTitleForStatusCode(perr.StatusCode)
		}
		pe.Err = err
		return pe
	}
	return errs.NewProviderError(api, errs.ErrNetwork, err)
}

// headerLookup matches header names case-insensitively. Fantasy providers
// copy response headers without normalizing their keys.
func headerLookup(headers map[string]string) func(string) string {
	return func(name string) string {
		if v, ok := headers[name]; ok {
			return v
		}
		for k, v := range headers {
			if strings.EqualFold(k, name) {
				return v
			}
		}
		return ""
	}
}
