package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/dotcommander/unai/internal/errs"
	"github.com/dotcommander/unai/internal/stream"
)

var cutPromptTests = map[string]struct {
	msg      string
	prompt   string
	expected string
}{
	"bad error": {
		msg:      "nope",
		prompt:   "the prompt",
		expected: "the prompt",
	},
	"crazy error": {
		msg:      tokenErrMsg(10, 93),
		prompt:   "the prompt",
		expected: "the prompt",
	},
	"cut prompt": {
		msg:      tokenErrMsg(10, 3),
		prompt:   "this is a long prompt I have no idea if its really 10 tokens",
		expected: "this is a long prompt ",
	},
	"missmatch of token estimation vs api result": {
		msg:      tokenErrMsg(30000, 100),
		prompt:   "tell me a joke",
		expected: "tell me a joke",
	},
}

func tokenErrMsg(l, ml int) string {
	return fmt.Sprintf(
		`This model's maximum context length is %d tokens. However, your messages resulted in %d tokens`,
		ml,
		l,
	)
}

func TestCutPrompt(t *testing.T) {
	for name, tc := range cutPromptTests {
		t.Run(name, func(t *testing.T) {
			require.Equal(t, tc.expected, cutPrompt(tc.msg, tc.prompt))
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := map[string]struct {
		err    error
		reason string
	}{
		"cancelled": {
			err:    errs.Cancelled(context.Canceled),
			reason: "Request cancelled.",
		},
		"iteration limit": {
			err:    &IterationExceededError{Limit: 3},
			reason: "Stopped after 3 model turns with tool calls still pending.",
		},
		"auth": {
			err:    errs.FromStatus("openai", http.StatusUnauthorized, "bad key", 0),
			reason: "Invalid openai API key.",
		},
		"rate limit with hint": {
			err:    errs.FromStatus("openai", http.StatusTooManyRequests, "", 7*time.Second),
			reason: "Rate limited by the openai API. Try again in 7s.",
		},
		"rate limit without hint": {
			err:    errs.FromStatus("openai", http.StatusTooManyRequests, "", 0),
			reason: "Rate limited by the openai API.",
		},
		"aggregation": {
			err:    &errs.AggregationError{Reason: "bad index"},
			reason: "The openai API sent a malformed stream.",
		},
		"missing model": {
			err:    errs.FromStatus("openai", http.StatusNotFound, "", 0),
			reason: "Missing model 'gpt-x' for API 'openai'.",
		},
		"prompt too large": {
			err:    errs.FromStatus("openai", http.StatusBadRequest, "context_length_exceeded", 0),
			reason: "Maximum prompt size exceeded.",
		},
		"transport": {
			err:    errs.NewProviderError("openai", errs.ErrNetwork, stream.ErrUnexpectedEnd),
			reason: "There was a problem with the openai API request.",
		},
		"user error passes through": {
			err:    errs.Error{Reason: "Could not read settings file."},
			reason: "Could not read settings file.",
		},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got := Describe(tc.err, "openai", "gpt-x")
			require.Equal(t, tc.reason, got.Reason)
			if tc.err != nil && got.Err != nil {
				require.ErrorIs(t, got, tc.err)
			}
		})
	}
}

func TestRecover(t *testing.T) {
	prompt := "this is a long prompt I have no idea if its really 10 tokens"

	t.Run("fallback on missing model", func(t *testing.T) {
		rec := Recover(errs.FromStatus("openai", http.StatusNotFound, "", 0), Attempt{API: "openai", Model: "a", Fallback: "b", Prompt: prompt})
		require.True(t, rec.Retry)
		require.Equal(t, "b", rec.ModelOverride)
		require.Equal(t, prompt, rec.Prompt)
	})

	t.Run("missing model without fallback", func(t *testing.T) {
		rec := Recover(errs.FromStatus("openai", http.StatusNotFound, "", 0), Attempt{API: "openai", Model: "a"})
		require.False(t, rec.Retry)
		require.Equal(t, "Missing model 'a' for API 'openai'.", rec.Err.Reason)
	})

	t.Run("cut prompt on context length", func(t *testing.T) {
		err := errs.FromStatus("openai", http.StatusBadRequest, tokenErrMsg(10, 3), 0)
		rec := Recover(err, Attempt{API: "openai", Prompt: prompt})
		require.True(t, rec.Retry)
		require.Equal(t, "this is a long prompt ", rec.Prompt)
		require.Equal(t, "Maximum prompt size exceeded.", rec.Err.Reason)

		rec = Recover(err, Attempt{API: "openai", Prompt: prompt, NoLimit: true})
		require.False(t, rec.Retry)
	})

	t.Run("rate limits are not retried", func(t *testing.T) {
		rec := Recover(errs.FromStatus("openai", http.StatusTooManyRequests, "", 0), Attempt{API: "openai"})
		require.False(t, rec.Retry)
	})

	t.Run("plain errors", func(t *testing.T) {
		rec := Recover(errors.New("boom"), Attempt{API: "openai"})
		require.False(t, rec.Retry)
		require.Equal(t, "There was a problem with the openai API request.", rec.Err.Reason)
	})
}
