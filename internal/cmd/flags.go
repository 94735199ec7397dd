package cmd

import (
	"regexp"
	"strings"
	"time"

	"github.com/caarlos0/duration"
)

var helpText = map[string]string{
	"api":              "OpenAI compatible REST API (openai, anthropic, google, ollama, etc.)",
	"ask-model":        "Ask which model to use via interactive prompt",
	"continue":         "Continue from the last response or a given save title",
	"continue-last":    "Continue the last conversation",
	"editor":           "Edit the prompt in your $EDITOR",
	"format":           "Ask for the response to be formatted as markdown unless otherwise set",
	"format-as":        "Format the response as the given format (markdown, json)",
	"help":             "Show help and exit",
	"http-proxy":       "HTTP proxy to use for API requests",
	"log-level":        "Log level: debug, info, warn or error",
	"max-iterations":   "Maximum number of model round-trips before stopping",
	"max-tokens":       "Maximum number of tokens in response",
	"mcp-disable":      "Disable specific MCP servers",
	"model":            "Default model (gpt-4o-mini, sonnet, etc.)",
	"no-cache":         "Disables caching of the prompt/response",
	"no-limit":         "Turn off the client-side limit on the size of the input into the model",
	"no-tools":         "Do not offer any tools to the model",
	"prompt":           "Include the prompt from the arguments and stdin, truncate stdin to specified number of lines",
	"prompt-args":      "Include the prompt from the arguments in the response",
	"quiet":            "Quiet mode (hide the spinner while loading and tool activity)",
	"raw":              "Render output as raw text when connected to a TTY",
	"request-timeout":  "Time to wait for the provider to answer; e.g. 30s, 2m",
	"role":             "System role to use",
	"stream":           "Stream the response as it is generated",
	"system":           "System prompt; raw text, file:// or http(s) URL",
	"temp":             "Temperature (randomness) of results, from 0.0 to 2.0, -1.0 to disable",
	"theme":            "Theme to use in the forms; valid choices are charm, catppuccin, dracula, and base16",
	"title":            "Saves the current conversation with the given title",
	"tool-concurrency": "Maximum number of tools executed at once, 0 for unlimited",
	"topk":             "TopK, only sample from the top K options for each subsequent token, -1 to disable",
	"topp":             "TopP, an alternative to temperature that narrows response, from 0.0 to 1.0, -1.0 to disable",
	"verbose":          "Log every state transition and request to stderr",
	"version":          "Show version and exit",
	"word-wrap":        "Wrap formatted output at specific width (default is 80)",
}

func newFlagParseError(err error) flagParseError {
	var reason, flag string
	s := err.Error()
	switch {
	case strings.HasPrefix(s, "flag needs an argument:"):
		reason = "Flag %s needs an argument."
		ps := strings.Split(s, "-")
		switch len(ps) {
		case 2: //nolint:mnd
			flag = "-" + ps[len(ps)-1]
		case 3: //nolint:mnd
			flag = "--" + ps[len(ps)-1]
		}
	case strings.HasPrefix(s, "unknown flag:"):
		reason = "Flag %s is missing."
		flag = strings.TrimPrefix(s, "unknown flag: ")
	case strings.HasPrefix(s, "unknown shorthand flag:"):
		reason = "Short flag %s is missing."
		re := regexp.MustCompile(`unknown shorthand flag: '.*' in (-\w)`)
		if parts := re.FindStringSubmatch(s); len(parts) > 1 {
			flag = parts[1]
		}
	case strings.HasPrefix(s, "invalid argument"):
		reason = "Flag %s have an invalid argument."
		re := regexp.MustCompile(`invalid argument ".*" for "(.*)" flag: .*`)
		if parts := re.FindStringSubmatch(s); len(parts) > 1 {
			flag = parts[1]
		}
	default:
		reason = s
	}
	return flagParseError{
		err:    err,
		reason: reason,
		flag:   flag,
	}
}

type flagParseError struct {
	err    error
	reason string
	flag   string
}

func (f flagParseError) Error() string {
	return f.err.Error()
}

func (f flagParseError) ReasonFormat() string {
	return f.reason
}

func (f flagParseError) Flag() string {
	return f.flag
}

// durationFlag accepts day and week units on top of time.ParseDuration.
type durationFlag time.Duration

func newDurationFlag(val time.Duration, p *time.Duration) *durationFlag {
	*p = val
	return (*durationFlag)(p)
}

func (d *durationFlag) Set(s string) error {
	v, err := duration.Parse(s)
	*d = durationFlag(v)
	//nolint: wrapcheck
	return err
}

func (d *durationFlag) String() string {
	return time.Duration(*d).String()
}

func (*durationFlag) Type() string {
	return "duration"
}
