package provider

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/dotcommander/unai/internal/errs"
)

// HTTPClient builds the transport used by a client: an optional proxy,
// dial and handshake timeouts, a response header timeout taken from
// Options.Timeout and any extra headers. Streamed bodies are not bounded by
// the timeout.
func HTTPClient(opts Options) (*http.Client, error) {
	base, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return nil, errs.Error{Err: fmt.Errorf("default transport is not *http.Transport"), Reason: "Could not configure the HTTP client."}
	}
	tr := base.Clone()
	if opts.Proxy != "" {
		proxyURL, err := url.Parse(opts.Proxy)
		if err != nil {
			return nil, errs.Error{Err: err, Reason: "There was an error parsing your proxy URL."}
		}
		tr.Proxy = http.ProxyURL(proxyURL)
	}
	tr.DialContext = (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 30 * time.Second
	if opts.Timeout > 0 {
		tr.ResponseHeaderTimeout = opts.Timeout
	}
	tr.IdleConnTimeout = 90 * time.Second
	tr.ExpectContinueTimeout = 1 * time.Second

	var rt http.RoundTripper = tr
	if len(opts.Headers) > 0 {
		rt = headerTransport{next: tr, headers: opts.Headers}
	}
	return &http.Client{Transport: rt}, nil
}

type headerTransport struct {
	next    http.RoundTripper
	headers map[string]string
}

func (t headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
	return t.next.RoundTrip(req) //nolint:wrapcheck
}
