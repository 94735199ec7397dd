package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dotcommander/unai/internal/errs"
)

const maxErrorBody = 64 << 10

func (c *Client) statusError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := errorMessage(body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return errs.FromStatus(c.name, resp.StatusCode, msg, errs.ParseRetryAfter(resp.Header.Get, time.Now()))
}

func (c *Client) transportError(ctx context.Context, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return errs.Cancelled(err)
	}
	return errs.NewProviderError(c.name, errs.ErrNetwork, err)
}

func errorMessage(body []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != nil {
		return env.Error.Message
	}
	return strings.TrimSpace(string(body))
}
