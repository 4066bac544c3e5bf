// Package proxy forwards API traffic to the partner trading service. A small
// circuit breaker shields the gateway when the upstream misbehaves.
package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUpstreamUnavailable is returned while the breaker is open.
var ErrUpstreamUnavailable = errors.New("trading upstream unavailable")

// Upstream is an HTTP client bound to the trading service base URL.
type Upstream struct {
	baseURL string
	client  *http.Client
	br      *Breaker
}

func NewUpstream(baseURL string, timeoutMs, failThreshold, openForMs int) *Upstream {
	if timeoutMs <= 0 {
		timeoutMs = 10000
	}
	return &Upstream{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: time.Duration(timeoutMs) * time.Millisecond},
		br:      NewBreaker(failThreshold, time.Duration(openForMs)*time.Millisecond),
	}
}

// Forward relays one request to the upstream and returns the raw response.
// Network errors and 5xx responses count against the breaker; 4xx responses
// are the client's problem and pass through without tripping it. The caller
// owns the response body.
func (u *Upstream) Forward(ctx context.Context, method, path, rawQuery string, header http.Header, body io.Reader) (*http.Response, error) {
	if !u.br.Allow() {
		return nil, ErrUpstreamUnavailable
	}

	url := u.baseURL + "/" + strings.TrimLeft(path, "/")
	if rawQuery != "" {
		url += "?" + rawQuery
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		u.br.OnFailure()
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	res, err := u.client.Do(req)
	if err != nil {
		u.br.OnFailure()
		return nil, err
	}

	if res.StatusCode >= 500 {
		u.br.OnFailure()
	} else {
		u.br.OnSuccess()
	}
	return res, nil
}
